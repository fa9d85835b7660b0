package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

const excerptWords = 60

var (
	retrieveCollection string
	retrieveLimit      int
	retrieveThreshold  float64
	retrieveMode       string
	retrieveDomain     string
	retrieveLanguage   string
	retrieveBook       string
	retrieveRerank     bool
	retrieveSynthesize bool
	retrievePattern    string
	retrieveJSON       bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Retrieve passages relevant to a query",
	Long: `Embeds the query and searches child and flat chunks by cosine similarity.
Results below the similarity threshold or outside the filters are dropped.

Context modes:
  precise        - matched chunks only
  contextual     - matched chunks plus their parent chapter text
  comprehensive  - contextual plus neighbouring sibling chunks

--rerank reorders passages with the configured LLM and --synthesize writes an
answer from them. Both degrade gracefully: a failure is reported alongside
the passages instead of failing the command.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

func init() {
	defaults := domain.DefaultRetrievalParams()
	retrieveCmd.Flags().StringVarP(&retrieveCollection, "collection", "c", defaults.Collection, "collection to search")
	retrieveCmd.Flags().IntVarP(&retrieveLimit, "limit", "n", defaults.Limit, "maximum number of results")
	retrieveCmd.Flags().Float64VarP(&retrieveThreshold, "threshold", "t", defaults.SimilarityThreshold,
		"minimum cosine similarity")
	retrieveCmd.Flags().StringVarP(&retrieveMode, "mode", "m", string(defaults.ContextMode),
		"context mode: precise, contextual or comprehensive")
	retrieveCmd.Flags().StringVar(&retrieveDomain, "domain", "", "only books in this domain")
	retrieveCmd.Flags().StringVar(&retrieveLanguage, "language", "", "only books in this language")
	retrieveCmd.Flags().StringVar(&retrieveBook, "book", "", "only the book with this title")
	retrieveCmd.Flags().BoolVar(&retrieveRerank, "rerank", false, "rerank passages with the LLM")
	retrieveCmd.Flags().BoolVar(&retrieveSynthesize, "synthesize", false, "synthesize an answer with the LLM")
	retrieveCmd.Flags().StringVar(&retrievePattern, "pattern", "", "response pattern name or literal format")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output the response as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

// retrieveParams starts from the configured defaults and applies the flags
// the user set explicitly.
func retrieveParams(cmd *cobra.Command) (domain.RetrievalParams, error) {
	params := domain.DefaultRetrievalParams()
	if svc, err := settingsPort(); err == nil {
		settings, err := svc.Get()
		if err != nil {
			return params, err
		}
		params = settings.Retrieval.Params()
	}

	flags := cmd.Flags()
	if flags.Changed("collection") {
		params.Collection = retrieveCollection
	}
	if flags.Changed("limit") {
		params.Limit = retrieveLimit
	}
	if flags.Changed("threshold") {
		params.SimilarityThreshold = retrieveThreshold
	}
	if flags.Changed("mode") {
		params.ContextMode = domain.ContextMode(strings.ToLower(retrieveMode))
	}
	params.Filters = domain.RetrievalFilters{
		Domain:    retrieveDomain,
		Language:  retrieveLanguage,
		BookTitle: retrieveBook,
	}
	params.Rerank = retrieveRerank
	params.Synthesize = retrieveSynthesize || retrievePattern != ""
	params.ResponsePattern = retrievePattern
	return params, nil
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	query := args[0]

	params, err := retrieveParams(cmd)
	if err != nil {
		return err
	}
	if !params.ContextMode.IsValid() {
		return fmt.Errorf("unknown mode %q", retrieveMode)
	}

	svc, err := retrievalPort(cmd.Context())
	if err != nil {
		return err
	}

	resp, err := svc.Retrieve(cmd.Context(), query, params)
	if err != nil {
		return fmt.Errorf("retrieve failed: %w", err)
	}

	if retrieveJSON {
		return printJSON(cmd, resp)
	}
	printRetrieval(newPrinter(cmd), resp)
	return nil
}

func printRetrieval(p *printer, resp *domain.RetrievalResponse) {
	if resp.SynthesisError != nil {
		p.warning("synthesis unavailable: %s", *resp.SynthesisError)
	}
	if resp.DegradedRerank {
		p.warning("rerank skipped: %s", resp.RerankError)
	}

	if resp.Synthesis != "" {
		p.section("Answer")
		p.text(resp.Synthesis)
		p.println()
	}

	if len(resp.Results) == 0 {
		p.println("No results found.")
		printAccounting(p, resp.Accounting)
		return
	}

	p.println(p.heading.Render("Results:"))
	p.println()
	shownParents := make(map[string]bool)
	for i, result := range resp.Results {
		chunk := result.Chunk
		p.printf("  [%d] %s (%.2f)\n", i+1, p.label.Render(chunk.Book.Title), result.Score)
		location := chunk.SectionName
		if chunk.Book.Author != "" {
			location = chunk.Book.Author + ", " + location
		}
		p.println(p.dim.Render("      " + location))
		p.text(chunk.Text)

		for _, sibling := range result.Siblings {
			p.println(p.dim.Render(fmt.Sprintf("      ~ %s", excerpt(sibling.Text, excerptWords/2))))
		}
		if parent, ok := resp.ParentFor(result); ok && !shownParents[parent.ID] {
			shownParents[parent.ID] = true
			p.println(p.dim.Render(fmt.Sprintf("      Context (%s): %s", parent.SectionName,
				excerpt(parent.Text, excerptWords))))
		}
		p.println()
	}

	if resp.Reranked {
		p.println(p.dim.Render("Reranked by LLM."))
	}
	printAccounting(p, resp.Accounting)
}

func printAccounting(p *printer, a domain.Accounting) {
	p.println(p.dim.Render(fmt.Sprintf(
		"%d candidates: %d below threshold, %d filtered, %d over limit, %d returned",
		a.Fetched, a.BelowThreshold, a.FilteredOut, a.Truncated, a.Returned)))
}
