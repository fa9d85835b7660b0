package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-rag/internal/app"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query      string   `json:"query" jsonschema:"the question or topic to find passages for"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum number of passages to return"`
	Threshold  *float64 `json:"threshold,omitempty" jsonschema:"minimum cosine similarity between 0 and 1"`
	Mode       string   `json:"mode,omitempty" jsonschema:"context mode: precise, contextual or comprehensive"`
	Collection string   `json:"collection,omitempty" jsonschema:"collection to search"`
	Domain     string   `json:"domain,omitempty" jsonschema:"only passages from books in this domain"`
	Language   string   `json:"language,omitempty" jsonschema:"only passages in this language"`
	Book       string   `json:"book,omitempty" jsonschema:"only passages from the book with this title"`
	Rerank     bool     `json:"rerank,omitempty" jsonschema:"reorder passages with the configured LLM"`
	Synthesize bool     `json:"synthesize,omitempty" jsonschema:"write an answer from the passages"`
	Pattern    string   `json:"pattern,omitempty" jsonschema:"response pattern name or literal format for synthesis"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Passages       []PassageOutput   `json:"passages"`
	Count          int               `json:"count"`
	Accounting     domain.Accounting `json:"accounting"`
	Reranked       bool              `json:"reranked"`
	DegradedRerank bool              `json:"degraded_rerank,omitempty"`
	RerankError    string            `json:"rerank_error,omitempty"`
	Synthesis      string            `json:"synthesis,omitempty"`
	SynthesisError string            `json:"synthesis_error,omitempty"`
}

// PassageOutput is one retrieved passage with its context.
type PassageOutput struct {
	ChunkID  string   `json:"chunk_id"`
	Book     string   `json:"book"`
	Author   string   `json:"author,omitempty"`
	Section  string   `json:"section,omitempty"`
	Chapter  int      `json:"chapter"`
	Score    float64  `json:"score"`
	Text     string   `json:"text"`
	Parent   string   `json:"parent,omitempty"`
	Siblings []string `json:"siblings,omitempty"`
}

// IngestInput is the input schema for the ingest_book tool.
type IngestInput struct {
	Path       string `json:"path" jsonschema:"path to a book file on the server host"`
	Collection string `json:"collection,omitempty" jsonschema:"target collection"`
	Title      string `json:"title,omitempty" jsonschema:"overrides the title found in the file"`
	Author     string `json:"author,omitempty" jsonschema:"overrides the author found in the file"`
	Language   string `json:"language,omitempty" jsonschema:"overrides the detected language"`
	Domain     string `json:"domain,omitempty" jsonschema:"book domain, selects the chunking threshold"`
	Flat       bool   `json:"flat,omitempty" jsonschema:"build flat chunks instead of parent and child chunks"`
	Force      bool   `json:"force,omitempty" jsonschema:"ingest even if the book was ingested before"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Find passages in ingested books that answer a query",
	}, s.handleRetrieve)

	if s.ports.canIngest() {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_book",
			Description: "Chunk, embed and store a book file so it can be retrieved",
		}, s.handleIngest)
	}
}

// retrievalParams overlays tool input on the configured defaults.
func (s *Server) retrievalParams(input RetrieveInput) domain.RetrievalParams {
	params := s.ports.defaults()
	if input.Limit > 0 {
		params.Limit = input.Limit
	}
	if input.Threshold != nil {
		params.SimilarityThreshold = *input.Threshold
	}
	if input.Mode != "" {
		params.ContextMode = domain.ContextMode(input.Mode)
	}
	if input.Collection != "" {
		params.Collection = input.Collection
	}
	params.Filters = domain.RetrievalFilters{
		Domain:    input.Domain,
		Language:  input.Language,
		BookTitle: input.Book,
	}
	params.Rerank = input.Rerank
	params.Synthesize = input.Synthesize
	params.ResponsePattern = input.Pattern
	return params
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	resp, err := s.ports.Retrieval.Retrieve(ctx, input.Query, s.retrievalParams(input))
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	output := RetrieveOutput{
		Passages:       make([]PassageOutput, len(resp.Results)),
		Count:          len(resp.Results),
		Accounting:     resp.Accounting,
		Reranked:       resp.Reranked,
		DegradedRerank: resp.DegradedRerank,
		RerankError:    resp.RerankError,
		Synthesis:      resp.Synthesis,
	}
	if resp.SynthesisError != nil {
		output.SynthesisError = *resp.SynthesisError
	}

	for i, result := range resp.Results {
		passage := PassageOutput{
			ChunkID: result.Chunk.ID,
			Book:    result.Chunk.Book.Title,
			Author:  result.Chunk.Book.Author,
			Section: result.Chunk.SectionName,
			Chapter: result.Chunk.ChapterIndex,
			Score:   result.Score,
			Text:    result.Chunk.Text,
		}
		if parent, ok := resp.ParentFor(result); ok {
			passage.Parent = parent.Text
		}
		for _, sibling := range result.Siblings {
			passage.Siblings = append(passage.Siblings, sibling.Text)
		}
		output.Passages[i] = passage
	}

	return nil, output, nil
}

// handleIngest handles the ingest_book tool invocation.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, domain.IngestionReport, error) {
	if input.Path == "" {
		return nil, domain.IngestionReport{}, errors.New("path is required")
	}

	req, err := s.ports.Loader.LoadBook(ctx, input.Path, app.BookOptions{
		Collection: input.Collection,
		Title:      input.Title,
		Author:     input.Author,
		Language:   input.Language,
		Domain:     input.Domain,
		Flat:       input.Flat,
		Force:      input.Force,
	})
	if err != nil {
		return nil, domain.IngestionReport{}, err
	}

	report, err := s.ports.Ingestion.Ingest(ctx, req)
	if err != nil {
		// A partial upload still reports which chunks landed.
		var partial *domain.PartialUploadError
		if errors.As(err, &partial) {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
			}, report, nil
		}
		return nil, domain.IngestionReport{}, err
	}
	return nil, report, nil
}
