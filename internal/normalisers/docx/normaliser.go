// Package docx normalises Word (OOXML) books.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/bookmeta"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// MIMEType is the OOXML word processing MIME type.
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Normaliser handles DOCX documents.
type Normaliser struct {
	now func() time.Time
}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{now: time.Now}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser
}

// Normalise converts a DOCX document to a normalised document.
// Paragraphs styled Title, Heading1 or Heading2 become "# " chapter markers.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a docx archive: %w", domain.ErrInvalidInput, err)
	}

	body, err := readEntry(reader, "word/document.xml")
	if err != nil {
		return nil, err
	}
	content, err := parseDocumentXML(body)
	if err != nil {
		return nil, err
	}

	var detected domain.BookMetadata
	if core, err := readEntry(reader, "docProps/core.xml"); err == nil && core != nil {
		detected = parseCoreXML(core)
	}

	doc := domain.Document{
		Book:     bookmeta.Resolve(raw, detected),
		URI:      raw.URI,
		Content:  content,
		Metadata: bookmeta.CopyMetadata(raw, "docx"),
		LoadedAt: n.now(),
	}

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// readEntry returns the bytes of a zip entry, or nil when it is absent.
func readEntry(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", domain.ErrInvalidInput, name, err)
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", domain.ErrInvalidInput, name, err)
		}
		return content, nil
	}
	return nil, nil
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Style struct {
		Val string `xml:"val,attr"`
	} `xml:"pPr>pStyle"`
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

var chapterStyles = map[string]struct{}{
	"title":    {},
	"heading1": {},
	"heading2": {},
}

// parseDocumentXML extracts paragraphs separated by blank lines.
func parseDocumentXML(content []byte) (string, error) {
	if content == nil {
		return "", nil
	}

	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("%w: document.xml: %w", domain.ErrInvalidInput, err)
	}

	paras := make([]string, 0, len(doc.Body.Paragraphs))
	for _, para := range doc.Body.Paragraphs {
		var b strings.Builder
		for _, r := range para.Runs {
			for _, t := range r.Text {
				b.WriteString(t.Content)
			}
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}
		if _, ok := chapterStyles[strings.ToLower(para.Style.Val)]; ok {
			text = "# " + text
		}
		paras = append(paras, text)
	}

	return strings.Join(paras, "\n\n"), nil
}

// coreXML represents the structure of docProps/core.xml.
type coreXML struct {
	Title    string `xml:"title"`
	Creator  string `xml:"creator"`
	Language string `xml:"language"`
}

func parseCoreXML(content []byte) domain.BookMetadata {
	var core coreXML
	if err := xml.Unmarshal(content, &core); err != nil {
		return domain.BookMetadata{}
	}
	lang, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(core.Language)), "-")
	return domain.BookMetadata{
		Title:    strings.TrimSpace(core.Title),
		Author:   strings.TrimSpace(core.Creator),
		Language: lang,
	}
}
