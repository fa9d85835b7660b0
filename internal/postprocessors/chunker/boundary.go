package chunker

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// BoundaryReason records which rule closed a span.
type BoundaryReason string

// Boundary reasons.
const (
	// ReasonSimilarity closes at a low-similarity candidate once min size is reached.
	ReasonSimilarity BoundaryReason = "similarity"

	// ReasonMaxSize closes because the span reached, or would exceed, max size.
	ReasonMaxSize BoundaryReason = "max_size"

	// ReasonOversized is a single sentence longer than max size.
	ReasonOversized BoundaryReason = "oversized_sentence"

	// ReasonEndOfText closes the final span of the chapter.
	ReasonEndOfText BoundaryReason = "end_of_text"
)

// BoundaryConfig parameterises a BoundaryDetector.
type BoundaryConfig struct {
	// Threshold is the cosine similarity below which adjacent sentences are a candidate split.
	Threshold float64

	// MinChunkSize is the word count a span needs before a candidate split may close it.
	MinChunkSize int

	// MaxChunkSize is the word count that force-closes a span.
	MaxChunkSize int

	// TieBreak selects the recorded reason when both rules close at the same sentence.
	TieBreak domain.TieBreakPolicy
}

// ConfigFromParams builds a BoundaryConfig from ingestion parameters.
func ConfigFromParams(p domain.ChunkingParams) BoundaryConfig {
	return BoundaryConfig{
		Threshold:    p.Threshold,
		MinChunkSize: p.MinChunkSize,
		MaxChunkSize: p.MaxChunkSize,
		TieBreak:     p.TieBreak,
	}
}

// Span is one detected chunk: a contiguous run of sentences.
type Span struct {
	// Text is the span's sentences joined by single spaces.
	Text string

	// FirstSentence and LastSentence are inclusive sentence indexes.
	FirstSentence int
	LastSentence  int

	// StartOffset and EndOffset are byte offsets into the segmented text.
	StartOffset int
	EndOffset   int

	// WordCount is the whitespace-delimited word count.
	WordCount int

	// Reason is the rule that closed the span.
	Reason BoundaryReason
}

// BoundaryDetector partitions sentences into spans using embedding similarity
// and size limits. It holds no mutable state and is safe for concurrent use.
type BoundaryDetector struct {
	cfg BoundaryConfig
}

// NewBoundaryDetector validates cfg and returns a detector.
func NewBoundaryDetector(cfg BoundaryConfig) (*BoundaryDetector, error) {
	if cfg.TieBreak == "" {
		cfg.TieBreak = domain.TieBreakMaxSizeWins
	}
	params := domain.ChunkingParams{
		MinChunkSize: cfg.MinChunkSize,
		MaxChunkSize: cfg.MaxChunkSize,
		Threshold:    cfg.Threshold,
		TieBreak:     cfg.TieBreak,
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &BoundaryDetector{cfg: cfg}, nil
}

// Config returns the detector configuration.
func (d *BoundaryDetector) Config() BoundaryConfig {
	return d.cfg
}

// Detect partitions sentences into spans. embeddings[i] belongs to sentences[i].
//
// Before sentence i is added, a non-empty span that would exceed MaxChunkSize is
// closed. After it is added, the span closes when it has reached MaxChunkSize,
// or when similarity(i, i+1) < Threshold and the span holds at least
// MinChunkSize words. A sentence longer than MaxChunkSize forms its own span.
// Sentences are never split, so when the next sentence cannot fit, the max
// bound wins over the min bound and a non-final span may hold fewer than
// MinChunkSize words. The same input always yields the same spans.
func (d *BoundaryDetector) Detect(sentences []Sentence, embeddings [][]float32) ([]Span, error) {
	if len(sentences) != len(embeddings) {
		return nil, fmt.Errorf("%w: %d sentences but %d embeddings",
			domain.ErrConfiguration, len(sentences), len(embeddings))
	}
	if len(sentences) == 0 {
		return nil, nil
	}
	dims := len(embeddings[0])
	for i, e := range embeddings {
		if len(e) == 0 || len(e) != dims {
			return nil, domain.DimensionError(fmt.Sprintf("sentence embedding %d", i), dims, len(e))
		}
	}

	var spans []Span
	first, size := 0, 0

	closeSpan := func(last int, reason BoundaryReason) {
		if first == last && size > d.cfg.MaxChunkSize {
			reason = ReasonOversized
		}
		spans = append(spans, d.span(sentences, first, last, size, reason))
		first, size = last+1, 0
	}

	for i := range sentences {
		words := domain.CountWords(sentences[i].Text)

		// May leave the closed span below MinChunkSize.
		if size > 0 && size+words > d.cfg.MaxChunkSize {
			closeSpan(i-1, ReasonMaxSize)
		}
		size += words

		if i == len(sentences)-1 {
			closeSpan(i, ReasonEndOfText)
			break
		}

		capped := size >= d.cfg.MaxChunkSize
		semantic := size >= d.cfg.MinChunkSize &&
			domain.CosineSimilarity(embeddings[i], embeddings[i+1]) < d.cfg.Threshold

		switch {
		case capped && semantic:
			closeSpan(i, d.tieBreak())
		case capped:
			closeSpan(i, ReasonMaxSize)
		case semantic:
			closeSpan(i, ReasonSimilarity)
		}
	}

	return spans, nil
}

// DetectTexts runs Detect over plain sentence strings.
// Offsets are computed as if the sentences were joined by single spaces.
func (d *BoundaryDetector) DetectTexts(texts []string, embeddings [][]float32) ([]Span, error) {
	return d.Detect(SentencesFromTexts(texts), embeddings)
}

func (d *BoundaryDetector) tieBreak() BoundaryReason {
	if d.cfg.TieBreak == domain.TieBreakSimilarityWins {
		return ReasonSimilarity
	}
	return ReasonMaxSize
}

func (d *BoundaryDetector) span(sentences []Sentence, first, last, words int, reason BoundaryReason) Span {
	parts := make([]string, 0, last-first+1)
	for _, s := range sentences[first : last+1] {
		parts = append(parts, s.Text)
	}
	return Span{
		Text:          strings.Join(parts, " "),
		FirstSentence: first,
		LastSentence:  last,
		StartOffset:   sentences[first].Start,
		EndOffset:     sentences[last].End,
		WordCount:     words,
		Reason:        reason,
	}
}

// SentencesFromTexts wraps plain strings as sentences joined by single spaces.
func SentencesFromTexts(texts []string) []Sentence {
	out := make([]Sentence, len(texts))
	offset := 0
	for i, t := range texts {
		t = strings.TrimSpace(t)
		out[i] = Sentence{Text: t, Start: offset, End: offset + len(t)}
		offset += len(t) + 1
	}
	return out
}
