package domain

import (
	"fmt"
	"time"
)

// TieBreakPolicy decides which rule is credited when the similarity rule and
// the max-size rule both close a chunk at the same sentence.
type TieBreakPolicy string

// Available tie-break policies.
const (
	// TieBreakMaxSizeWins records the boundary as a size cap.
	TieBreakMaxSizeWins TieBreakPolicy = "max_size_wins"

	// TieBreakSimilarityWins records the boundary as a semantic split.
	TieBreakSimilarityWins TieBreakPolicy = "similarity_wins"
)

// IsValid returns true if the policy is recognised.
func (p TieBreakPolicy) IsValid() bool {
	return p == TieBreakMaxSizeWins || p == TieBreakSimilarityWins
}

// String returns the string representation.
func (p TieBreakPolicy) String() string {
	return string(p)
}

// ChunkingParams configures the boundary detector and hierarchy builder for one ingestion.
// Sizes are whitespace-delimited word counts.
type ChunkingParams struct {
	// MinChunkSize is the size a chunk must reach before a semantic split may close it.
	MinChunkSize int `json:"min_chunk_size"`

	// MaxChunkSize force-closes a chunk regardless of similarity.
	MaxChunkSize int `json:"max_chunk_size"`

	// Threshold is the cosine similarity below which adjacent sentences are a candidate split.
	Threshold float64 `json:"threshold"`

	// Hierarchical emits parent and child chunks; otherwise flat chunks.
	Hierarchical bool `json:"hierarchical"`

	// ParentMaxWords caps parent chunk text. Zero means unbounded.
	ParentMaxWords int `json:"parent_max_words"`

	// TieBreak selects the recorded reason when both closing rules fire.
	TieBreak TieBreakPolicy `json:"tie_break"`
}

// DefaultChunkingParams returns parameters suited to long-form prose.
func DefaultChunkingParams() ChunkingParams {
	return ChunkingParams{
		MinChunkSize:   100,
		MaxChunkSize:   1200,
		Threshold:      0.75,
		Hierarchical:   true,
		ParentMaxWords: 12000,
		TieBreak:       TieBreakMaxSizeWins,
	}
}

// Validate rejects parameter combinations that cannot produce valid chunks.
func (p ChunkingParams) Validate() error {
	if p.MinChunkSize < 0 || p.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: chunk sizes must be positive (min=%d, max=%d)",
			ErrConfiguration, p.MinChunkSize, p.MaxChunkSize)
	}
	if p.MinChunkSize > p.MaxChunkSize {
		return fmt.Errorf("%w: min_chunk_size %d exceeds max_chunk_size %d",
			ErrConfiguration, p.MinChunkSize, p.MaxChunkSize)
	}
	if p.Threshold < 0 || p.Threshold > 1 {
		return fmt.Errorf("%w: threshold %.3f outside [0, 1]", ErrConfiguration, p.Threshold)
	}
	if p.ParentMaxWords < 0 {
		return fmt.Errorf("%w: parent_max_words must not be negative", ErrConfiguration)
	}
	if p.TieBreak != "" && !p.TieBreak.IsValid() {
		return fmt.Errorf("%w: unknown tie-break policy %q", ErrConfiguration, p.TieBreak)
	}
	return nil
}

// ChapterInput is the unit of work for the chunk pipeline.
type ChapterInput struct {
	// IngestionID seeds the chunk ids.
	IngestionID string

	// Book is stamped on every produced chunk.
	Book BookMetadata

	// Chapter is the text to chunk.
	Chapter Chapter

	// Params configures boundary detection for this chapter.
	Params ChunkingParams
}

// IngestRequest describes one book ingestion.
type IngestRequest struct {
	// Collection is the target vector store collection.
	Collection string

	// Book is the bibliographic metadata for every chunk.
	Book BookMetadata

	// Chapters come from the chapter detector.
	Chapters []Chapter

	// Params configures chunking.
	Params ChunkingParams

	// IngestionID lets a retrying caller reproduce the same chunk ids.
	// Empty means a fresh id is generated.
	IngestionID string

	// Force ingests even when the manifest already records the source.
	Force bool
}

// IngestionReport accounts for every chunk an ingestion built.
// ChunksBuilt always equals ChunksCreated plus len(Failures).
type IngestionReport struct {
	IngestionID   string         `json:"ingestion_id"`
	SourceID      string         `json:"source_id"`
	Title         string         `json:"book_title"`
	Collection    string         `json:"collection"`
	Chapters      int            `json:"chapters"`
	ChunksBuilt   int            `json:"chunks_built"`
	ChunksCreated int            `json:"chunks_created"`
	ParentChunks  int            `json:"parent_chunks"`
	ChildChunks   int            `json:"child_chunks"`
	FlatChunks    int            `json:"flat_chunks"`
	Failures      []ChunkFailure `json:"failures"`
	Skipped       bool           `json:"skipped"`
	Duration      time.Duration  `json:"duration"`
}

// UploadReport lists exactly which chunk ids were persisted and which were not.
type UploadReport struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []ChunkFailure `json:"failed"`
}

// ManifestEntry records a completed ingestion.
type ManifestEntry struct {
	SourceID    string       `json:"source_id"`
	Book        BookMetadata `json:"book"`
	Collection  string       `json:"collection"`
	IngestionID string       `json:"ingestion_id"`
	ChunkCount  int          `json:"chunk_count"`
	IngestedAt  time.Time    `json:"ingested_at"`
}

// CollectionInfo describes a vector store collection.
type CollectionInfo struct {
	Name       string `json:"name"`
	Dimensions int    `json:"dimensions"`
	Points     int    `json:"points"`
}
