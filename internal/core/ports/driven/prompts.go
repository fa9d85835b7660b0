package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Returns domain.ErrNotFound if no prompt with that name exists.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptRerank orders passages by relevance.
	// The template expects %s (query) and %s (numbered passages) placeholders.
	PromptRerank = "rerank"

	// PromptSynthesize answers a query from passages.
	// The template expects %s (query), %s (passages) and %s (response pattern) placeholders.
	PromptSynthesize = "synthesize"

	// PromptPatternPrefix prefixes named response patterns (e.g. "pattern_summary").
	PromptPatternPrefix = "pattern_"
)
