// Package bookmeta resolves bibliographic metadata for normalised books.
package bookmeta

import (
	"path/filepath"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Metadata keys callers may set on a RawDocument to override detected values.
const (
	KeyTitle    = "title"
	KeyAuthor   = "author"
	KeyLanguage = "language"
	KeyDomain   = "domain"
)

// Defaults applied when neither the caller nor the document supplies a value.
const (
	DefaultLanguage = "en"
	DefaultDomain   = "general"
)

// Resolve merges caller overrides, document-detected metadata and defaults.
// Overrides win; the title falls back to the file name.
func Resolve(raw *domain.RawDocument, detected domain.BookMetadata) domain.BookMetadata {
	book := domain.BookMetadata{
		SourceID: raw.SourceID,
		Title:    firstNonEmpty(override(raw, KeyTitle), detected.Title, TitleFromURI(raw.URI)),
		Author:   firstNonEmpty(override(raw, KeyAuthor), detected.Author),
		Language: firstNonEmpty(override(raw, KeyLanguage), detected.Language, DefaultLanguage),
		Domain:   strings.ToLower(firstNonEmpty(override(raw, KeyDomain), detected.Domain, DefaultDomain)),
	}
	if book.SourceID == "" {
		book.SourceID = domain.SourceIDFor(raw.Content)
	}
	return book
}

// TitleFromURI derives a human-readable title from a file name.
func TitleFromURI(uri string) string {
	filename := filepath.Base(uri)
	if ext := filepath.Ext(filename); ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return strings.TrimSpace(filename)
}

// CopyMetadata creates a shallow copy of metadata with the MIME type and format recorded.
func CopyMetadata(raw *domain.RawDocument, format string) map[string]any {
	dst := make(map[string]any, len(raw.Metadata)+2)
	for k, v := range raw.Metadata {
		dst[k] = v
	}
	dst["mime_type"] = raw.MIMEType
	dst["format"] = format
	return dst
}

// NormaliseNewlines converts CRLF and CR line endings to LF.
func NormaliseNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func override(raw *domain.RawDocument, key string) string {
	if raw.Metadata == nil {
		return ""
	}
	v, _ := raw.Metadata[key].(string)
	return strings.TrimSpace(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
