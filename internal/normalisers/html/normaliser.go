package html

import (
	"context"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/bookmeta"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct {
	now func() time.Time
}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{now: time.Now}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise converts an HTML document to a normalised document.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	rawContent := bookmeta.NormaliseNewlines(string(raw.Content))

	detected := domain.BookMetadata{
		Title:    extractTitle(rawContent),
		Author:   metaContent(rawContent, "author"),
		Language: extractLanguage(rawContent),
	}

	doc := domain.Document{
		Book:     bookmeta.Resolve(raw, detected),
		URI:      raw.URI,
		Content:  stripHTML(rawContent),
		Metadata: bookmeta.CopyMetadata(raw, "html"),
		LoadedAt: n.now(),
	}

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// Pre-compiled regular expressions for HTML parsing performance.
var (
	titleTag      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	langAttr      = regexp.MustCompile(`(?is)<html[^>]*\blang\s*=\s*["']([^"']+)["']`)
	metaTag       = regexp.MustCompile(`(?is)<meta\s[^>]*>`)
	nameAttr      = regexp.MustCompile(`(?is)\bname\s*=\s*["']([^"']+)["']`)
	contentAttr   = regexp.MustCompile(`(?is)\bcontent\s*=\s*["']([^"']*)["']`)
	scriptTag     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag   = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag       = regexp.MustCompile(`(?is)<head(\s[^>]*)?>.*?</head>`)
	svgTag        = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	chapterOpen   = regexp.MustCompile(`(?i)<h[12][^>]*>`)
	chapterClose  = regexp.MustCompile(`(?i)</h[12]>`)
	blockOpen     = regexp.MustCompile(`(?i)<(p|div|h[3-6]|li|tr|blockquote|pre|table|section|article)(\s[^>]*)?>`)
	blockClose    = regexp.MustCompile(`(?i)</(p|div|h[3-6]|li|tr|blockquote|pre|table|section|article)>`)
	lineBreaks    = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// extractTitle reads the <title> tag.
func extractTitle(content string) string {
	if m := titleTag.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimSpace(html.UnescapeString(m[1]))
	}
	return ""
}

func extractLanguage(content string) string {
	if m := langAttr.FindStringSubmatch(content); len(m) > 1 {
		lang, _, _ := strings.Cut(strings.ToLower(m[1]), "-")
		return lang
	}
	return ""
}

// metaContent returns the content of <meta name="..."> for the given name.
func metaContent(content, name string) string {
	for _, tag := range metaTag.FindAllString(content, -1) {
		n := nameAttr.FindStringSubmatch(tag)
		if len(n) < 2 || !strings.EqualFold(n[1], name) {
			continue
		}
		if c := contentAttr.FindStringSubmatch(tag); len(c) > 1 {
			return strings.TrimSpace(html.UnescapeString(c[1]))
		}
	}
	return ""
}

// stripHTML removes HTML tags and extracts readable text content.
// Block elements become paragraph breaks.
func stripHTML(content string) string {
	for _, re := range []*regexp.Regexp{scriptTag, styleTag, noscriptTag, headTag, svgTag} {
		content = re.ReplaceAllString(content, "")
	}
	content = htmlComments.ReplaceAllString(content, "")

	// Inline newlines inside a paragraph are just whitespace.
	content = strings.ReplaceAll(content, "\n", " ")

	content = chapterOpen.ReplaceAllString(content, "\n\n# ")
	content = chapterClose.ReplaceAllString(content, "\n\n")
	content = blockOpen.ReplaceAllString(content, "\n\n")
	content = blockClose.ReplaceAllString(content, "\n\n")
	content = lineBreaks.ReplaceAllString(content, "\n")

	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	content = strings.Join(lines, "\n")
	content = multiNewlines.ReplaceAllString(content, "\n\n")

	return strings.TrimSpace(content)
}
