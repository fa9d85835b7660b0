package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

const (
	// URIScheme is the custom URI scheme for library resources.
	uriScheme = "sercha://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "books",
		Name:        "books",
		Description: "Books recorded in the ingestion manifest",
		MIMEType:    "application/json",
	}, s.handleBooksResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "collections",
		Name:        "collections",
		Description: "Vector store collections with their dimensions and point counts",
		MIMEType:    "application/json",
	}, s.handleCollectionsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "books/{sourceId}",
		Name:        "book",
		Description: "Manifest entry for one ingested book",
		MIMEType:    "application/json",
	}, s.handleBookResource)
}

// handleBooksResource lists ingested books.
func (s *Server) handleBooksResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Library == nil {
		return jsonResult(req.Params.URI, "[]"), nil
	}

	books, err := s.ports.Library.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	if books == nil {
		books = []domain.ManifestEntry{}
	}
	return marshalResult(req.Params.URI, books)
}

// handleCollectionsResource lists vector store collections.
func (s *Server) handleCollectionsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Library == nil {
		return jsonResult(req.Params.URI, "[]"), nil
	}

	collections, err := s.ports.Library.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	if collections == nil {
		collections = []domain.CollectionInfo{}
	}
	return marshalResult(req.Params.URI, collections)
}

// handleBookResource returns the manifest entry for a single book.
func (s *Server) handleBookResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Library == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract sourceId from URI: sercha://books/{sourceId}
	sourceID := extractSourceID(req.Params.URI)
	if sourceID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	books, err := s.ports.Library.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	for _, book := range books {
		if book.SourceID == sourceID {
			return marshalResult(req.Params.URI, book)
		}
	}
	return nil, mcp.ResourceNotFoundError(req.Params.URI)
}

func marshalResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return jsonResult(uri, string(data)), nil
}

func jsonResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}
}

// extractSourceID extracts the source ID from a URI like sercha://books/{sourceId}.
func extractSourceID(uri string) string {
	const prefix = uriScheme + "books/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
