// Package markdown normalises Markdown books, reading YAML front matter for
// bibliographic metadata.
package markdown

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/bookmeta"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct {
	now func() time.Time
}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{now: time.Now}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// frontMatter is the YAML block at the top of a Markdown book.
type frontMatter struct {
	Title    string   `yaml:"title"`
	Author   string   `yaml:"author"`
	Authors  []string `yaml:"authors"`
	Language string   `yaml:"language"`
	Lang     string   `yaml:"lang"`
	Domain   string   `yaml:"domain"`
}

// Normalise converts a markdown document to a normalised document.
// Level one and two headings are kept as "# " lines for chapter detection;
// other formatting is simplified to plain text.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	body, fm, err := splitFrontMatter(bookmeta.NormaliseNewlines(string(raw.Content)))
	if err != nil {
		return nil, err
	}

	detected := domain.BookMetadata{
		Title:    fm.Title,
		Author:   fm.Author,
		Language: fm.Language,
		Domain:   fm.Domain,
	}
	if detected.Author == "" && len(fm.Authors) > 0 {
		detected.Author = strings.Join(fm.Authors, ", ")
	}
	if detected.Language == "" {
		detected.Language = fm.Lang
	}
	if detected.Title == "" {
		detected.Title = firstHeading(body)
	}

	doc := domain.Document{
		Book:     bookmeta.Resolve(raw, detected),
		URI:      raw.URI,
		Content:  stripMarkdown(body),
		Metadata: bookmeta.CopyMetadata(raw, "markdown"),
		LoadedAt: n.now(),
	}

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// splitFrontMatter separates a leading "---" delimited YAML block from the body.
func splitFrontMatter(content string) (string, frontMatter, error) {
	var fm frontMatter

	if !strings.HasPrefix(content, "---\n") {
		return content, fm, nil
	}
	rest := content[len("---\n"):]

	end := strings.Index(rest, "\n---")
	if end < 0 {
		return content, fm, nil
	}

	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return "", fm, fmt.Errorf("%w: front matter: %w", domain.ErrInvalidInput, err)
	}

	body := rest[end+len("\n---"):]
	if nl := strings.Index(body, "\n"); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = ""
	}
	return body, fm, nil
}

var (
	h1Line        = regexp.MustCompile(`(?m)^#[ \t]+(.+?)[ \t]*#*[ \t]*$`)
	codeBlock     = regexp.MustCompile("(?s)```.*?```")
	inlineCode    = regexp.MustCompile("`([^`]+)`")
	images        = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	links         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	chapterHead   = regexp.MustCompile(`(?m)^#{1,2}[ \t]+(.+?)[ \t]*#*[ \t]*$`)
	minorHead     = regexp.MustCompile(`(?m)^#{3,6}[ \t]+(.+?)[ \t]*#*[ \t]*$`)
	emphasis      = regexp.MustCompile(`(\*\*|__|\*|_)([^*_\n]+)(\*\*|__|\*|_)`)
	blockquote    = regexp.MustCompile(`(?m)^>\s?`)
	horizontal    = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	listMarkers   = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	numberedList  = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// firstHeading returns the first level one heading.
func firstHeading(content string) string {
	if m := h1Line.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// stripMarkdown removes common markdown formatting for plain text content.
func stripMarkdown(content string) string {
	content = codeBlock.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = images.ReplaceAllString(content, "")
	content = links.ReplaceAllString(content, "$1")

	// Chapter headings become standalone "# " paragraphs.
	content = chapterHead.ReplaceAllString(content, "\n# $1\n")
	content = minorHead.ReplaceAllString(content, "\n$1\n")

	content = emphasis.ReplaceAllString(content, "$2")
	content = blockquote.ReplaceAllString(content, "")
	content = horizontal.ReplaceAllString(content, "")
	content = listMarkers.ReplaceAllString(content, "")
	content = numberedList.ReplaceAllString(content, "")
	content = multiNewlines.ReplaceAllString(content, "\n\n")

	return strings.TrimSpace(content)
}
