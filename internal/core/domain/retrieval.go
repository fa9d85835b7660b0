package domain

import (
	"fmt"
	"strings"
)

// ContextMode controls how much surrounding text is attached to each match.
type ContextMode string

// Available context modes.
const (
	// ContextPrecise returns matched chunks as-is.
	ContextPrecise ContextMode = "precise"

	// ContextContextual attaches each match's parent chapter text.
	ContextContextual ContextMode = "contextual"

	// ContextComprehensive attaches parent text and neighbouring siblings.
	ContextComprehensive ContextMode = "comprehensive"
)

// IsValid returns true if the context mode is recognised.
func (m ContextMode) IsValid() bool {
	switch m {
	case ContextPrecise, ContextContextual, ContextComprehensive:
		return true
	default:
		return false
	}
}

// AttachesParent reports whether the mode fetches parent text.
func (m ContextMode) AttachesParent() bool {
	return m == ContextContextual || m == ContextComprehensive
}

// AttachesSiblings reports whether the mode fetches sibling chunks.
func (m ContextMode) AttachesSiblings() bool {
	return m == ContextComprehensive
}

// String returns the string representation.
func (m ContextMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m ContextMode) Description() string {
	switch m {
	case ContextPrecise:
		return "Precise (matched passages only)"
	case ContextContextual:
		return "Contextual (passages + chapter text)"
	case ContextComprehensive:
		return "Comprehensive (passages + chapter + neighbours)"
	default:
		return unknownDescription
	}
}

// AllContextModes returns all available context modes.
func AllContextModes() []ContextMode {
	return []ContextMode{ContextPrecise, ContextContextual, ContextComprehensive}
}

// FilterAll is the filter value that disables a filter.
const FilterAll = "all"

// RetrievalFilters narrows candidates by metadata. Set filters combine with AND.
// An empty value or "all" disables that filter.
type RetrievalFilters struct {
	Domain    string `json:"domain,omitempty"`
	Language  string `json:"language,omitempty"`
	BookTitle string `json:"book_title,omitempty"`
}

// Matches reports whether book metadata passes every active filter.
func (f RetrievalFilters) Matches(book BookMetadata) bool {
	return filterMatches(f.Domain, book.Domain) &&
		filterMatches(f.Language, book.Language) &&
		filterMatches(f.BookTitle, book.Title)
}

// IsEmpty returns true if no filter is active.
func (f RetrievalFilters) IsEmpty() bool {
	return !filterActive(f.Domain) && !filterActive(f.Language) && !filterActive(f.BookTitle)
}

func filterActive(want string) bool {
	want = strings.TrimSpace(want)
	return want != "" && !strings.EqualFold(want, FilterAll)
}

func filterMatches(want, got string) bool {
	if !filterActive(want) {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(want), strings.TrimSpace(got))
}

// RetrievalParams configures one retrieve call.
type RetrievalParams struct {
	// Collection is the vector store collection to search.
	Collection string `json:"collection"`

	// Limit is the maximum number of results.
	Limit int `json:"limit"`

	// SimilarityThreshold drops candidates scoring below it.
	SimilarityThreshold float64 `json:"similarity_threshold"`

	// ContextMode controls context expansion.
	ContextMode ContextMode `json:"context_mode"`

	// Filters narrow candidates by metadata.
	Filters RetrievalFilters `json:"filters"`

	// FetchMultiplier over-fetches to survive post-filtering.
	FetchMultiplier int `json:"fetch_multiplier"`

	// FetchFloor is the minimum number of candidates fetched.
	FetchFloor int `json:"fetch_floor"`

	// SiblingWindow is how many siblings on each side comprehensive mode attaches.
	// Comprehensive mode requires at least 1.
	SiblingWindow int `json:"sibling_window"`

	// Rerank enables the reranker for this call.
	Rerank bool `json:"rerank"`

	// Synthesize enables answer synthesis for this call.
	Synthesize bool `json:"synthesize"`

	// ResponsePattern is a prompt name or literal template for synthesis.
	ResponsePattern string `json:"response_pattern,omitempty"`
}

// DefaultRetrievalParams returns the defaults used when settings are absent.
func DefaultRetrievalParams() RetrievalParams {
	return RetrievalParams{
		Collection:          DefaultCollection,
		Limit:               5,
		SimilarityThreshold: 0.3,
		ContextMode:         ContextContextual,
		FetchMultiplier:     3,
		FetchFloor:          20,
		SiblingWindow:       1,
	}
}

// Validate rejects unusable parameters.
func (p RetrievalParams) Validate() error {
	if p.Collection == "" {
		return fmt.Errorf("%w: collection is required", ErrConfiguration)
	}
	if p.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}
	if !p.ContextMode.IsValid() {
		return fmt.Errorf("%w: unknown context mode %q", ErrInvalidInput, p.ContextMode)
	}
	if p.FetchMultiplier < 1 {
		return fmt.Errorf("%w: fetch_multiplier must be at least 1", ErrInvalidInput)
	}
	if p.SiblingWindow < 0 {
		return fmt.Errorf("%w: sibling_window must not be negative", ErrInvalidInput)
	}
	if p.ContextMode.AttachesSiblings() && p.SiblingWindow < 1 {
		return fmt.Errorf("%w: %s mode needs sibling_window of at least 1", ErrInvalidInput, p.ContextMode)
	}
	return nil
}

// FetchCount returns the number of candidates to request from the store.
func (p RetrievalParams) FetchCount() int {
	return max(p.Limit*p.FetchMultiplier, p.FetchFloor)
}

// RetrievalResult is one matched chunk.
type RetrievalResult struct {
	// Chunk is the matched child or flat chunk.
	Chunk Chunk `json:"chunk"`

	// Score is the cosine similarity to the query.
	Score float64 `json:"score"`

	// Siblings are neighbouring children in sequence order, excluding Chunk.
	// Only populated in comprehensive mode.
	Siblings []Chunk `json:"siblings,omitempty"`
}

// ParentContext is a parent chunk's text attached once per response.
type ParentContext struct {
	ID           string `json:"id"`
	SectionName  string `json:"section_name,omitempty"`
	ChapterIndex int    `json:"chapter_index"`
	ChildCount   int    `json:"child_count"`
	Text         string `json:"text"`
	Truncated    bool   `json:"truncated,omitempty"`
}

// NewParentContext builds a ParentContext from a parent chunk.
func NewParentContext(parent Chunk) ParentContext {
	return ParentContext{
		ID:           parent.ID,
		SectionName:  parent.SectionName,
		ChapterIndex: parent.ChapterIndex,
		ChildCount:   parent.ChildCount,
		Text:         parent.Text,
		Truncated:    parent.Truncated,
	}
}

// Accounting reconciles candidates in against results out.
// Fetched always equals BelowThreshold + FilteredOut + Truncated + Returned.
type Accounting struct {
	Fetched        int `json:"fetched"`
	BelowThreshold int `json:"below_threshold"`
	FilteredOut    int `json:"filtered_out"`
	Truncated      int `json:"truncated"`
	Returned       int `json:"returned"`
}

// Reconciles reports whether every fetched candidate is accounted for.
func (a Accounting) Reconciles() bool {
	return a.Fetched == a.BelowThreshold+a.FilteredOut+a.Truncated+a.Returned
}

// RetrievalResponse is the result of a retrieve call.
// Rerank and synthesis failures are reported here, never as call errors.
type RetrievalResponse struct {
	Query          string                   `json:"query"`
	Collection     string                   `json:"collection"`
	ContextMode    ContextMode              `json:"context_mode"`
	Results        []RetrievalResult        `json:"results"`
	Parents        map[string]ParentContext `json:"parents,omitempty"`
	Accounting     Accounting               `json:"accounting"`
	Reranked       bool                     `json:"reranked"`
	DegradedRerank bool                     `json:"degraded_rerank"`
	RerankError    string                   `json:"rerank_error,omitempty"`
	Synthesis      string                   `json:"synthesis,omitempty"`
	SynthesisError *string                  `json:"synthesis_error"`
}

// ParentFor returns the attached parent context for a result, if any.
func (r *RetrievalResponse) ParentFor(result RetrievalResult) (ParentContext, bool) {
	if result.Chunk.ParentID == "" || r.Parents == nil {
		return ParentContext{}, false
	}
	p, ok := r.Parents[result.Chunk.ParentID]
	return p, ok
}

// Texts returns the result chunk texts in order.
func (r *RetrievalResponse) Texts() []string {
	texts := make([]string, len(r.Results))
	for i, res := range r.Results {
		texts[i] = res.Chunk.Text
	}
	return texts
}
