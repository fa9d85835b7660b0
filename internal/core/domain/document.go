package domain

import "time"

// RawDocument represents opaque bytes read from a book file.
// It is the loader's output before normalisation.
type RawDocument struct {
	// SourceID identifies the source document for manifest bookkeeping.
	SourceID string

	// URI is the original location (file path).
	URI string

	// MIMEType is the content type (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains caller-supplied overrides (title, author, language, domain).
	Metadata map[string]any
}

// Document is a normalised book: extracted text plus its bibliographic metadata.
// Chapter detection and chunking operate on Content.
type Document struct {
	// Book is the bibliographic metadata stamped on every chunk.
	Book BookMetadata

	// URI is the original location (file path).
	URI string

	// Content is the full extracted text before chapter detection.
	Content string

	// Metadata contains normaliser-specific key-value pairs.
	Metadata map[string]any

	// LoadedAt is when the document was normalised.
	LoadedAt time.Time
}

// ChangeType represents the type of file change seen by the watcher.
type ChangeType int

const (
	// ChangeCreated indicates a new file.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified file.
	ChangeUpdated

	// ChangeDeleted indicates a removed file.
	ChangeDeleted
)

// String returns the string representation.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return unknownDescription
	}
}
