// Package pdf normalises PDF books using a pure Go PDF reader.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/bookmeta"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Extraction is the text and document info read from a PDF.
type Extraction struct {
	// Pages holds the plain text of each page in order.
	Pages []string

	// Title and Author come from the document info dictionary.
	Title  string
	Author string
}

// Extractor reads text from PDF bytes.
type Extractor func(content []byte) (*Extraction, error)

// Normaliser handles PDF documents.
type Normaliser struct {
	extract Extractor
	now     func() time.Time
}

// Option configures the PDF normaliser.
type Option func(*Normaliser)

// WithExtractor replaces the PDF text extractor.
func WithExtractor(e Extractor) Option {
	return func(n *Normaliser) {
		if e != nil {
			n.extract = e
		}
	}
}

// New creates a new PDF normaliser.
func New(opts ...Option) *Normaliser {
	n := &Normaliser{
		extract: extractText,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts page text. Pages are separated by blank lines.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	ext, err := n.extract(raw.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: pdf %s: %w", domain.ErrInvalidInput, raw.URI, err)
	}

	pages := make([]string, 0, len(ext.Pages))
	for _, p := range ext.Pages {
		if p = strings.TrimSpace(bookmeta.NormaliseNewlines(p)); p != "" {
			pages = append(pages, p)
		}
	}

	metadata := bookmeta.CopyMetadata(raw, "pdf")
	metadata["pages"] = len(ext.Pages)

	doc := domain.Document{
		Book: bookmeta.Resolve(raw, domain.BookMetadata{
			Title:  strings.TrimSpace(ext.Title),
			Author: strings.TrimSpace(ext.Author),
		}),
		URI:      raw.URI,
		Content:  strings.Join(pages, "\n\n"),
		Metadata: metadata,
		LoadedAt: n.now(),
	}

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// extractText reads every page with github.com/ledongthuc/pdf.
// The reader panics on some malformed inputs, so panics become errors.
func extractText(content []byte) (ext *Extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			ext, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	ext = &Extraction{}
	info := reader.Trailer().Key("Info")
	if !info.IsNull() {
		ext.Title = info.Key("Title").Text()
		ext.Author = info.Key("Author").Text()
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		ext.Pages = append(ext.Pages, text)
	}

	return ext, nil
}
