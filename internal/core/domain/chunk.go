package domain

import (
	"fmt"
	"strings"
	"time"
)

// ChunkLevel discriminates the chunk variants stored in a collection.
type ChunkLevel string

// Available chunk levels.
const (
	// LevelParent spans a whole chapter (or a bounded excerpt of it).
	LevelParent ChunkLevel = "parent"

	// LevelChild is a semantic sub-span linked to exactly one parent.
	LevelChild ChunkLevel = "child"

	// LevelFlat is an independent semantic span with no parent linkage.
	LevelFlat ChunkLevel = "flat"
)

// IsValid returns true if the level is recognised.
func (l ChunkLevel) IsValid() bool {
	switch l {
	case LevelParent, LevelChild, LevelFlat:
		return true
	default:
		return false
	}
}

// IsSearchable reports whether chunks of this level are vector-search targets.
// Parents are only fetched by id during context expansion.
func (l ChunkLevel) IsSearchable() bool {
	return l == LevelChild || l == LevelFlat
}

// String returns the string representation.
func (l ChunkLevel) String() string {
	return string(l)
}

// BookMetadata describes the source document a chunk belongs to.
type BookMetadata struct {
	// SourceID identifies the source document for manifest bookkeeping.
	SourceID string `json:"source_id"`

	// Title is the book title.
	Title string `json:"book_title"`

	// Author is the book author.
	Author string `json:"author,omitempty"`

	// Language is the text language (e.g. "en").
	Language string `json:"language,omitempty"`

	// Domain selects the chunking threshold and is a retrieval filter.
	Domain string `json:"domain,omitempty"`
}

// Chapter is one unit of chapter detection output.
type Chapter struct {
	// Index is the zero-based chapter position within the book.
	Index int `json:"index"`

	// Title is the chapter heading, used as the chunk section name.
	Title string `json:"title"`

	// Text is the chapter body.
	Text string `json:"text"`
}

// Chunk is the atomic retrievable unit.
// Level selects the variant: parent chunks carry ChildCount, child chunks
// carry ParentID, flat chunks carry neither.
// Chunks are immutable once uploaded.
type Chunk struct {
	ID            string       `json:"id"`
	Level         ChunkLevel   `json:"level"`
	Text          string       `json:"text"`
	WordCount     int          `json:"word_count"`
	Book          BookMetadata `json:"book"`
	SectionName   string       `json:"section_name,omitempty"`
	ChapterIndex  int          `json:"chapter_index"`
	ParentID      string       `json:"parent_id,omitempty"`
	SequenceIndex int          `json:"sequence_index"`
	ChildCount    int          `json:"child_count,omitempty"`
	Truncated     bool         `json:"truncated,omitempty"`
	StartOffset   int          `json:"start_offset"`
	EndOffset     int          `json:"end_offset"`
	IngestionID   string       `json:"ingestion_id,omitempty"`
	Embedding     []float32    `json:"-"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Validate enforces the per-level structural rules.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: chunk id is empty", ErrInvalidInput)
	}
	if c.SequenceIndex < 0 {
		return fmt.Errorf("%w: chunk %s has negative sequence index", ErrInvalidInput, c.ID)
	}

	switch c.Level {
	case LevelParent:
		if c.ParentID != "" {
			return fmt.Errorf("%w: parent chunk %s must not have a parent", ErrInvalidInput, c.ID)
		}
	case LevelChild:
		if c.ParentID == "" {
			return fmt.Errorf("%w: child chunk %s has no parent", ErrInvalidInput, c.ID)
		}
		if c.ParentID == c.ID {
			return fmt.Errorf("%w: child chunk %s is its own parent", ErrInvalidInput, c.ID)
		}
	case LevelFlat:
		if c.ParentID != "" {
			return fmt.Errorf("%w: flat chunk %s must not have a parent", ErrInvalidInput, c.ID)
		}
	default:
		return fmt.Errorf("%w: chunk %s has unknown level %q", ErrInvalidInput, c.ID, c.Level)
	}

	return nil
}

// CountWords returns the whitespace-delimited word count used for all size limits.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
