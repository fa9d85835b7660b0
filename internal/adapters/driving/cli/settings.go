package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:     "settings",
	Aliases: []string{"config"},
	Short:   "Manage application settings",
	Long: `View and configure embedding and LLM providers, the vector store and
chunking thresholds. Settings are stored in config.toml in the configuration
directory. API keys are read from environment variables, never stored.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding [provider] [model]",
	Short: "Configure embedding provider",
	Long: `Configure the embedding provider used for chunking and retrieval.
Without arguments an interactive menu is shown.

Changing the embedding model changes vector dimensions. Existing collections
keep their dimensions, so re-ingest into a new collection after switching.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm [provider] [model]",
	Short: "Configure LLM provider",
	Long: `Configure the LLM provider used for reranking and answer synthesis.
Without arguments an interactive menu is shown.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runSettingsLLM,
}

var settingsStoreCmd = &cobra.Command{
	Use:   "store <sqlite|qdrant|memory> [url]",
	Short: "Configure vector store",
	Long: `Select the vector store backend. sqlite stores vectors next to the
manifest in the configuration directory; qdrant requires a server URL;
memory keeps vectors for the life of the process only.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSettingsStore,
}

var settingsThresholdCmd = &cobra.Command{
	Use:   "threshold <domain> <value>",
	Short: "Set the chunking threshold for a domain",
	Long: `Set the similarity threshold below which adjacent sentences start a new
chunk for books of the given domain. Lower values keep long arguments
together; higher values split on smaller topic shifts.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsThreshold,
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate settings and ping providers",
	Args:  cobra.NoArgs,
	RunE:  runSettingsValidate,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsStoreCmd)
	settingsCmd.AddCommand(settingsThresholdCmd)
	settingsCmd.AddCommand(settingsValidateCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	svc, err := settingsPort()
	if err != nil {
		return err
	}

	settings, err := svc.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	p := newPrinter(cmd)
	p.section("Current Settings")
	p.println()

	p.println("[Embedding]")
	p.field("Provider", settings.Embedding.Provider.Description())
	p.field("Model", settings.Embedding.Model)
	p.field("Dimensions", settings.Embedding.ResolvedDimensions())
	if settings.Embedding.BaseURL != "" {
		p.field("Base URL", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		p.field("API Key", maskAPIKey(settings.Embedding.APIKey))
	}
	p.field("Status", configuredStatus(settings.Embedding.IsConfigured()))
	p.println()

	p.println("[LLM]")
	if settings.LLM.Provider == "" {
		p.field("Provider", "(not configured, rerank and synthesis disabled)")
	} else {
		p.field("Provider", settings.LLM.Provider.Description())
		p.field("Model", settings.LLM.Model)
		if settings.LLM.BaseURL != "" {
			p.field("Base URL", settings.LLM.BaseURL)
		}
		if settings.LLM.Provider.RequiresAPIKey() {
			p.field("API Key", maskAPIKey(settings.LLM.APIKey))
		}
		p.field("Status", configuredStatus(settings.LLM.IsConfigured()))
	}
	p.println()

	p.println("[Vector Store]")
	p.field("Provider", settings.VectorStore.Provider)
	if settings.VectorStore.URL != "" {
		p.field("URL", settings.VectorStore.URL)
	}
	p.println()

	p.println("[Chunking]")
	p.field("Words per chunk", fmt.Sprintf("%d-%d", settings.Chunking.MinChunkSize, settings.Chunking.MaxChunkSize))
	p.field("Hierarchical", settings.Chunking.Hierarchical)
	p.field("Default threshold", settings.Chunking.DefaultThreshold)
	domains := make([]string, 0, len(settings.Chunking.Thresholds))
	for name := range settings.Chunking.Thresholds {
		domains = append(domains, name)
	}
	sort.Strings(domains)
	for _, name := range domains {
		p.field("  "+name, settings.Chunking.Thresholds[name])
	}
	p.println()

	p.println("[Retrieval]")
	p.field("Collection", settings.Retrieval.Collection)
	p.field("Limit", settings.Retrieval.Limit)
	p.field("Similarity threshold", settings.Retrieval.SimilarityThreshold)
	p.field("Context mode", settings.Retrieval.ContextMode.Description())
	p.println()

	p.success("Configuration is valid.")
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, args []string) error {
	svc, err := settingsPort()
	if err != nil {
		return err
	}

	provider, model, err := chooseProvider(cmd, args, "Embedding",
		domain.AllEmbeddingProviders(), domain.DefaultEmbeddingModels())
	if err != nil {
		return err
	}

	if err := svc.SetEmbeddingProvider(provider, model); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := svc.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n", provider.Description(), modelOrDefault(model, provider,
		domain.DefaultEmbeddingModels()))
	return nil
}

func runSettingsLLM(cmd *cobra.Command, args []string) error {
	svc, err := settingsPort()
	if err != nil {
		return err
	}

	provider, model, err := chooseProvider(cmd, args, "LLM",
		domain.AllLLMProviders(), domain.DefaultLLMModels())
	if err != nil {
		return err
	}

	if err := svc.SetLLMProvider(provider, model); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := svc.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("LLM provider configured: %s (%s)\n", provider.Description(), modelOrDefault(model, provider,
		domain.DefaultLLMModels()))
	return nil
}

func runSettingsStore(cmd *cobra.Command, args []string) error {
	svc, err := settingsPort()
	if err != nil {
		return err
	}

	provider := domain.VectorStoreProvider(strings.ToLower(args[0]))
	if !provider.IsValid() {
		return fmt.Errorf("unknown vector store %q", args[0])
	}
	url := ""
	if len(args) == 2 {
		url = args[1]
	}
	if err := svc.SetVectorStore(provider, url); err != nil {
		return fmt.Errorf("failed to configure vector store: %w", err)
	}

	cmd.Printf("Vector store set to: %s\n", provider)
	return nil
}

func runSettingsThreshold(cmd *cobra.Command, args []string) error {
	svc, err := settingsPort()
	if err != nil {
		return err
	}

	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid threshold %q: %w", args[1], err)
	}
	if err := svc.SetDomainThreshold(args[0], value); err != nil {
		return fmt.Errorf("failed to set threshold: %w", err)
	}

	cmd.Printf("Chunking threshold for %s set to %.2f\n", strings.ToLower(args[0]), value)
	return nil
}

func runSettingsValidate(cmd *cobra.Command, _ []string) error {
	svc, err := settingsPort()
	if err != nil {
		return err
	}

	if err := svc.Validate(); err != nil {
		return err
	}
	settings, err := svc.Get()
	if err != nil {
		return err
	}

	p := newPrinter(cmd)
	var failed bool
	check := func(name string, validate func() error) {
		if err := validate(); err != nil {
			failed = true
			p.printf("  %s %s\n", p.label.Render(name+":"), p.warn.Render(err.Error()))
			return
		}
		p.printf("  %s %s\n", p.label.Render(name+":"), p.ok.Render("OK"))
	}

	check("Embedding", svc.ValidateEmbeddingConfig)
	if settings.LLM.Provider != "" {
		check("LLM", svc.ValidateLLMConfig)
	}

	if failed {
		return errors.New("provider validation failed")
	}
	return nil
}

// chooseProvider reads provider and model from args, or interactively when
// no args are given.
func chooseProvider(
	cmd *cobra.Command,
	args []string,
	kind string,
	providers []domain.AIProvider,
	defaults map[domain.AIProvider]string,
) (domain.AIProvider, string, error) {
	if len(args) > 0 {
		provider := domain.AIProvider(strings.ToLower(args[0]))
		if !slices.Contains(providers, provider) {
			return "", "", fmt.Errorf("unknown %s provider %q", strings.ToLower(kind), args[0])
		}
		model := ""
		if len(args) == 2 {
			model = args[1]
		}
		return provider, model, nil
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Select %s Provider\n", kind)
	for i, p := range providers {
		fmt.Fprintf(out, "  %d. %s\n", i+1, p.Description())
	}
	fmt.Fprint(out, "\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	provider := providers[idx-1]

	defaultModel := defaults[provider]
	fmt.Fprintf(out, "Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	return provider, model, nil
}

func modelOrDefault(model string, provider domain.AIProvider, defaults map[domain.AIProvider]string) string {
	if model != "" {
		return model
	}
	return defaults[provider]
}

func configuredStatus(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

// Helper functions.

func readLine(reader *bufio.Reader) string {
	input, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return ""
	}
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

func maskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
