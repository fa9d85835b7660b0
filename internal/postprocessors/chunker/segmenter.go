package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Sentence is one segmenter output with byte offsets into the source text.
// Text equals source[Start:End].
type Sentence struct {
	Text  string
	Start int
	End   int
}

// abbreviations never end a sentence. Entries are lower case without the final dot.
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "sr": {}, "jr": {},
	"st": {}, "vs": {}, "cf": {}, "e.g": {}, "i.e": {}, "vol": {}, "ch": {},
	"fig": {}, "pp": {}, "no": {}, "ed": {}, "approx": {}, "viz": {},
}

const closers = "\"')]}»”’"

// Segment splits text into ordered, trimmed, non-empty sentences.
// Empty input returns an empty slice.
func Segment(text string) []string {
	sentences := SegmentWithOffsets(text)
	out := make([]string, len(sentences))
	for i, s := range sentences {
		out[i] = s.Text
	}
	return out
}

// SegmentWithOffsets splits text into sentences and records where each came from.
// Sentences end at runs of . ! ? or … (plus closing quotes and brackets) followed
// by whitespace, and at blank lines. Trailing text without a terminator is the
// last sentence. Only whitespace is ever dropped.
func SegmentWithOffsets(text string) []Sentence {
	var sentences []Sentence
	start := -1

	emit := func(end int) {
		if start < 0 {
			return
		}
		s := strings.TrimRightFunc(text[start:end], unicode.IsSpace)
		if s != "" {
			sentences = append(sentences, Sentence{Text: s, Start: start, End: start + len(s)})
		}
		start = -1
	}

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])

		if unicode.IsSpace(r) {
			if r == '\n' && start >= 0 && blankLineFollows(text, i+size) {
				emit(i)
			}
			i += size
			continue
		}

		if start < 0 {
			start = i
		}

		if !isTerminator(r) {
			i += size
			continue
		}

		// Consume the terminator run and any closing punctuation.
		end := i + size
		for end < len(text) {
			next, n := utf8.DecodeRuneInString(text[end:])
			if !isTerminator(next) && !strings.ContainsRune(closers, next) {
				break
			}
			end += n
		}

		atBreak := end == len(text)
		if !atBreak {
			next, _ := utf8.DecodeRuneInString(text[end:])
			atBreak = unicode.IsSpace(next)
		}
		if atBreak && !(r == '.' && end == i+size && isAbbreviation(text[start:i])) {
			emit(end)
		}
		i = end
	}
	emit(len(text))

	return sentences
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

// blankLineFollows reports whether only spaces or tabs separate pos from the next newline.
func blankLineFollows(text string, pos int) bool {
	for pos < len(text) {
		switch text[pos] {
		case ' ', '\t', '\r':
			pos++
		case '\n':
			return true
		default:
			return false
		}
	}
	return false
}

// isAbbreviation checks the word that ends right before a single dot.
func isAbbreviation(before string) bool {
	idx := strings.LastIndexFunc(before, unicode.IsSpace)
	word := strings.TrimLeft(before[idx+1:], closers+"(")
	if word == "" {
		return false
	}

	// Initials such as "J." in "J. R. Tolkien".
	if r, size := utf8.DecodeRuneInString(word); size == len(word) && unicode.IsUpper(r) {
		return true
	}

	_, ok := abbreviations[strings.ToLower(word)]
	return ok
}
