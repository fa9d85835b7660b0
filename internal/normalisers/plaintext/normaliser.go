// Package plaintext normalises plain text books.
package plaintext

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/bookmeta"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct {
	now func() time.Time
}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{now: time.Now}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/x-rst",
		"text/x-asciidoc",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise converts a raw document to a normalised document.
// Project Gutenberg style headers and footers are stripped when present.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if !utf8.Valid(raw.Content) {
		return nil, domain.ErrInvalidInput
	}

	content := bookmeta.NormaliseNewlines(string(raw.Content))
	content = strings.TrimPrefix(content, "\uFEFF")
	detected := gutenbergMetadata(content)
	content = stripGutenbergBoilerplate(content)

	doc := domain.Document{
		Book:     bookmeta.Resolve(raw, detected),
		URI:      raw.URI,
		Content:  strings.TrimSpace(content),
		Metadata: bookmeta.CopyMetadata(raw, "plaintext"),
		LoadedAt: n.now(),
	}

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

const (
	gutenbergStart = "*** START OF"
	gutenbergEnd   = "*** END OF"
)

// gutenbergMetadata reads "Title:", "Author:" and "Language:" header lines.
func gutenbergMetadata(content string) domain.BookMetadata {
	var book domain.BookMetadata
	header := content
	if idx := strings.Index(content, gutenbergStart); idx >= 0 {
		header = content[:idx]
	} else {
		return book
	}

	for _, line := range strings.Split(header, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "title":
			book.Title = value
		case "author":
			book.Author = value
		case "language":
			book.Language = languageCode(value)
		}
	}
	return book
}

func stripGutenbergBoilerplate(content string) string {
	if idx := strings.Index(content, gutenbergStart); idx >= 0 {
		if nl := strings.Index(content[idx:], "\n"); nl >= 0 {
			content = content[idx+nl+1:]
		}
	}
	if idx := strings.Index(content, gutenbergEnd); idx >= 0 {
		content = content[:idx]
	}
	return content
}

var languageCodes = map[string]string{
	"english": "en",
	"french":  "fr",
	"german":  "de",
	"spanish": "es",
	"italian": "it",
	"latin":   "la",
	"greek":   "el",
}

func languageCode(name string) string {
	if code, ok := languageCodes[strings.ToLower(name)]; ok {
		return code
	}
	return strings.ToLower(name)
}
