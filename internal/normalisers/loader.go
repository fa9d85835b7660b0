package normalisers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// extensionMIMETypes maps book file extensions to MIME types.
var extensionMIMETypes = map[string]string{
	".txt":      "text/plain",
	".text":     "text/plain",
	".rst":      "text/x-rst",
	".adoc":     "text/x-asciidoc",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".pdf":      "application/pdf",
}

// Book is a loaded document split into chapters.
type Book struct {
	Document domain.Document
	Chapters []domain.Chapter
}

// Loader reads book files and splits them into chapters.
type Loader struct {
	registry driven.NormaliserRegistry
	detector driven.ChapterDetector
}

// NewLoader creates a loader.
func NewLoader(registry driven.NormaliserRegistry, detector driven.ChapterDetector) *Loader {
	return &Loader{registry: registry, detector: detector}
}

// NewDefaultLoader creates a loader with the built-in normalisers and chapter detector.
func NewDefaultLoader() *Loader {
	return NewLoader(NewDefaultRegistry(), NewChapterDetector())
}

// MIMETypeFor returns the MIME type for a path, or "" when the extension is unknown.
func MIMETypeFor(path string) string {
	return extensionMIMETypes[strings.ToLower(filepath.Ext(path))]
}

// IsSupported reports whether path has a recognised book extension.
func IsSupported(path string) bool {
	return MIMETypeFor(path) != ""
}

// SupportedExtensions returns the recognised extensions, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensionMIMETypes))
	for ext := range extensionMIMETypes {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Load reads the file at path. Overrides (title, author, language, domain)
// take precedence over metadata found in the file.
func (l *Loader) Load(ctx context.Context, path string, overrides map[string]any) (*Book, error) {
	mime := MIMETypeFor(path)
	if mime == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, filepath.Ext(path))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return l.LoadBytes(ctx, path, mime, content, overrides)
}

// LoadBytes normalises in-memory content as if read from uri.
func (l *Loader) LoadBytes(ctx context.Context, uri, mime string, content []byte, overrides map[string]any) (*Book, error) {
	raw := &domain.RawDocument{
		SourceID: domain.SourceIDFor(content),
		URI:      uri,
		MIMEType: mime,
		Content:  content,
		Metadata: overrides,
	}

	result, err := l.registry.Normalise(ctx, raw)
	if err != nil {
		return nil, err
	}

	doc := result.Document
	chapters := l.detector.DetectChapters(&doc)
	if len(chapters) == 0 {
		return nil, fmt.Errorf("%w: %s contains no text", domain.ErrInvalidInput, uri)
	}

	logger.Debug("loaded %s: %q by %q, %d chapters", uri, doc.Book.Title, doc.Book.Author, len(chapters))
	return &Book{Document: doc, Chapters: chapters}, nil
}
