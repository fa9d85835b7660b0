package normalisers

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure ChapterDetector implements the interface.
var _ driven.ChapterDetector = (*ChapterDetector)(nil)

// maxHeadingLength rejects long lines that merely start with "Chapter".
const maxHeadingLength = 80

const numberWords = `one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|` +
	`thirteen|fourteen|fifteen|sixteen|seventeen|eighteen|nineteen|` +
	`(?:twenty|thirty|forty|fifty|sixty|seventy|eighty|ninety)(?:-[a-z]+)?|` +
	`first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth|last`

var (
	markerHeading = regexp.MustCompile(`^#+\s+(.+)$`)
	numbered      = regexp.MustCompile(`^(?i:chapter|part|book|volume)\s+(\d+|[IVXLCDM]+|(?i:` + numberWords + `))\b[.:]?(\s.*)?$`)
	bareRoman     = regexp.MustCompile(`^[IVXLCDM]+\.?$`)
	namedSection  = regexp.MustCompile(`(?i)^(prologue|epilogue|preface|introduction|foreword|afterword|conclusion)\.?$`)
	partKeyword   = regexp.MustCompile(`(?i)^(part|book|volume)\b`)
)

type headingKind int

const (
	chapterHeading headingKind = iota
	partHeading
)

type heading struct {
	start, end int
	title      string
	kind       headingKind
}

// ChapterDetector splits book text on heading lines: "# " markers written by
// the normalisers, "Chapter N" / "Part N" / "Book N" lines with arabic, roman
// or spelled-out numbers, bare upper-case roman numerals, and named sections
// such as "Prologue".
//
// Text before the first heading becomes a chapter titled after the book.
// A part heading with no body is prefixed to the next chapter title; an empty
// chapter heading (typically a table of contents entry) is dropped.
type ChapterDetector struct{}

// NewChapterDetector creates a chapter detector.
func NewChapterDetector() *ChapterDetector {
	return &ChapterDetector{}
}

// DetectChapters returns the chapters of doc. Empty content yields no chapters.
func (d *ChapterDetector) DetectChapters(doc *domain.Document) []domain.Chapter {
	if doc == nil || strings.TrimSpace(doc.Content) == "" {
		return nil
	}
	text := doc.Content
	headings := findHeadings(text)

	var chapters []domain.Chapter
	add := func(title, body string) {
		chapters = append(chapters, domain.Chapter{
			Index: len(chapters),
			Title: title,
			Text:  body,
		})
	}

	firstStart := len(text)
	if len(headings) > 0 {
		firstStart = headings[0].start
	}
	if preamble := strings.TrimSpace(text[:firstStart]); preamble != "" {
		add(doc.Book.Title, preamble)
	}

	prefix := ""
	for i, h := range headings {
		bodyEnd := len(text)
		if i+1 < len(headings) {
			bodyEnd = headings[i+1].start
		}
		body := strings.TrimSpace(text[h.end:bodyEnd])

		title := h.title
		if prefix != "" {
			title = prefix + ": " + title
		}

		if body == "" {
			if h.kind == partHeading {
				prefix = title
			}
			continue
		}
		prefix = ""
		add(title, body)
	}

	return chapters
}

// findHeadings returns heading lines in text order with their byte ranges.
func findHeadings(text string) []heading {
	var headings []heading

	for start := 0; start < len(text); {
		end := strings.IndexByte(text[start:], '\n')
		if end < 0 {
			end = len(text)
		} else {
			end += start
		}

		if title, kind, ok := classify(strings.TrimSpace(text[start:end])); ok {
			headings = append(headings, heading{start: start, end: end, title: title, kind: kind})
		}
		start = end + 1
	}

	return headings
}

func classify(line string) (string, headingKind, bool) {
	if line == "" || len(line) > maxHeadingLength {
		return "", chapterHeading, false
	}

	if m := markerHeading.FindStringSubmatch(line); m != nil {
		title := strings.TrimSpace(m[1])
		return title, kindOf(title), true
	}
	if numbered.MatchString(line) || bareRoman.MatchString(line) || namedSection.MatchString(line) {
		title := strings.TrimRight(line, ".:")
		return title, kindOf(title), true
	}
	return "", chapterHeading, false
}

func kindOf(title string) headingKind {
	if partKeyword.MatchString(title) {
		return partHeading
	}
	return chapterHeading
}
