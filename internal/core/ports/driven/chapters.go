package driven

import "github.com/custodia-labs/sercha-rag/internal/core/domain"

// ChapterDetector splits a normalised book into ordered chapters.
type ChapterDetector interface {
	// DetectChapters returns at least one chapter for non-empty text.
	// Chapter indexes are zero-based and contiguous.
	DetectChapters(doc *domain.Document) []domain.Chapter
}
