// Package cli provides the sercha-rag command line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/mcp"
	"github.com/custodia-labs/sercha-rag/internal/app"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// version is set at build time.
var version = "dev"

var (
	verbose   bool
	logJSON   bool
	configDir string
)

// application is created before any subcommand runs unless already set.
var application *app.App

// Driving ports. A nil port is resolved from application on first use,
// so commands that never touch a provider never contact one.
var (
	ingestionService driving.IngestionService
	retrievalService driving.RetrievalService
	libraryService   driving.LibraryService
	settingsService  driving.SettingsService
	bookLoader       mcp.BookLoader
)

var rootCmd = &cobra.Command{
	Use:   "sercha-rag",
	Short: "Semantic chunking and retrieval for books",
	Long: `sercha-rag splits books into semantically coherent chunks, stores their
embeddings in a vector store and retrieves passages for retrieval-augmented
generation.

Chunks follow topic shifts rather than fixed sizes. Children are matched by
similarity and their parent chapter text is attached as context.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupApp,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.sercha-rag)")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command and releases providers on exit.
func Execute(ctx context.Context) error {
	defer closeApp()
	return rootCmd.ExecuteContext(ctx)
}

func setupApp(cmd *cobra.Command, _ []string) error {
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetVerbose(verbose)
	logger.SetJSON(logJSON)

	if application != nil {
		return nil
	}
	a, err := app.New(configDir)
	if err != nil {
		return err
	}
	application = a
	logger.Debug("Config directory: %s", a.ConfigDir())
	return nil
}

func closeApp() {
	if application == nil {
		return
	}
	if err := application.Close(); err != nil {
		logger.Warn("Closing storage: %v", err)
	}
	application = nil
}

func ingestionPort(ctx context.Context) (driving.IngestionService, error) {
	if ingestionService != nil {
		return ingestionService, nil
	}
	if application == nil {
		return nil, errors.New("ingestion service not configured")
	}
	return application.Ingestion(ctx)
}

func retrievalPort(ctx context.Context) (driving.RetrievalService, error) {
	if retrievalService != nil {
		return retrievalService, nil
	}
	if application == nil {
		return nil, errors.New("retrieval service not configured")
	}
	return application.Retrieval(ctx)
}

func libraryPort(ctx context.Context) (driving.LibraryService, error) {
	if libraryService != nil {
		return libraryService, nil
	}
	if application == nil {
		return nil, errors.New("library service not configured")
	}
	return application.Library(ctx)
}

func settingsPort() (driving.SettingsService, error) {
	if settingsService != nil {
		return settingsService, nil
	}
	if application == nil {
		return nil, errors.New("settings service not configured")
	}
	return application.Settings(), nil
}

func loaderPort() (mcp.BookLoader, error) {
	if bookLoader != nil {
		return bookLoader, nil
	}
	if application == nil {
		return nil, errors.New("book loader not configured")
	}
	return application, nil
}
