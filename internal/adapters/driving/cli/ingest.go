package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/mcp"
	"github.com/custodia-labs/sercha-rag/internal/app"
	"github.com/custodia-labs/sercha-rag/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// retryBaseDelay is the first backoff interval between ingestion attempts.
var retryBaseDelay = time.Second

var (
	ingestCollection string
	ingestTitle      string
	ingestAuthor     string
	ingestLanguage   string
	ingestDomain     string
	ingestFlat       bool
	ingestForce      bool
	ingestRecursive  bool
	ingestRetries    uint64
	ingestJSON       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|dir>...",
	Short: "Chunk, embed and store books",
	Long: `Reads each book, detects its chapters and splits them into semantic chunks.
Every chapter becomes a parent chunk with child chunks for retrieval unless
--flat is given. Chunks are embedded and upserted into the vector store.

Supported formats: plain text, Markdown (with YAML front matter), HTML, DOCX
and PDF. A book whose content was already ingested is skipped unless --force
is given. Directories are scanned for supported files; add --recursive to
include subdirectories.

A failed upload is retried with --retries attempts. Retries reuse the same
ingestion id, so chunks that already landed are overwritten rather than
duplicated.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestCollection, "collection", "c", "", "target collection (default from config)")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "override the book title")
	ingestCmd.Flags().StringVar(&ingestAuthor, "author", "", "override the book author")
	ingestCmd.Flags().StringVar(&ingestLanguage, "language", "", "override the book language")
	ingestCmd.Flags().StringVarP(&ingestDomain, "domain", "d", "", "book domain, selects the chunking threshold")
	ingestCmd.Flags().BoolVar(&ingestFlat, "flat", false, "build flat chunks without parents")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "ingest even if already ingested")
	ingestCmd.Flags().BoolVarP(&ingestRecursive, "recursive", "r", false, "scan subdirectories of directory arguments")
	ingestCmd.Flags().Uint64Var(&ingestRetries, "retries", 0, "retry failed uploads this many times")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output reports as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func ingestOptions() app.BookOptions {
	return app.BookOptions{
		Collection: ingestCollection,
		Title:      ingestTitle,
		Author:     ingestAuthor,
		Language:   ingestLanguage,
		Domain:     ingestDomain,
		Flat:       ingestFlat,
		Force:      ingestForce,
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	loader, err := loaderPort()
	if err != nil {
		return err
	}
	svc, err := ingestionPort(ctx)
	if err != nil {
		return err
	}

	paths, err := expandPaths(args, ingestRecursive)
	if err != nil {
		return err
	}

	reports := make([]domain.IngestionReport, 0, len(paths))
	var failed int
	for _, path := range paths {
		report, err := ingestFile(ctx, svc, loader, path, ingestOptions(), ingestRetries)
		if err != nil {
			failed++
			logger.Warn("%s: %v", path, err)
		}
		if report.IngestionID != "" || report.Skipped {
			reports = append(reports, report)
		}
		if !ingestJSON {
			printIngestReport(newPrinter(cmd), path, report, err)
		}
	}

	if ingestJSON {
		if err := printJSON(cmd, reports); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("ingest failed for %d of %d books", failed, len(paths))
	}
	return nil
}

// expandPaths replaces directory arguments with the books they contain.
func expandPaths(args []string, recursive bool) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(filesystem.ResolvePath(arg))
		if err != nil || !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		books, err := filesystem.FindBooks(arg, recursive)
		if err != nil {
			return nil, err
		}
		if len(books) == 0 {
			logger.Warn("%s contains no supported books", arg)
		}
		paths = append(paths, books...)
	}
	if len(paths) == 0 {
		return nil, errors.New("no books to ingest")
	}
	return paths, nil
}

// ingestFile loads one book and ingests it with retries.
func ingestFile(
	ctx context.Context,
	svc driving.IngestionService,
	loader mcp.BookLoader,
	path string,
	opts app.BookOptions,
	retries uint64,
) (domain.IngestionReport, error) {
	req, err := loader.LoadBook(ctx, path, opts)
	if err != nil {
		return domain.IngestionReport{}, err
	}
	logger.Section("Ingesting " + path)
	return ingestWithRetry(ctx, svc, req, retries)
}

// ingestWithRetry retries connectivity and partial upload failures with
// exponential backoff. Configuration errors are never retried.
func ingestWithRetry(
	ctx context.Context,
	svc driving.IngestionService,
	req domain.IngestRequest,
	retries uint64,
) (domain.IngestionReport, error) {
	if req.IngestionID == "" {
		req.IngestionID = domain.NewIngestionID()
	}

	backoff := retry.WithMaxRetries(retries, retry.NewExponential(retryBaseDelay))
	attempt := 0
	var report domain.IngestionReport
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var err error
		report, err = svc.Ingest(ctx, req)
		if err == nil {
			return nil
		}
		if retryable(err) {
			logger.Warn("Attempt %d failed: %v", attempt, err)
			return retry.RetryableError(err)
		}
		return err
	})
	return report, err
}

func retryable(err error) bool {
	if errors.Is(err, domain.ErrConfiguration) || errors.Is(err, domain.ErrInvalidInput) {
		return false
	}
	return errors.Is(err, domain.ErrConnectivity) || errors.Is(err, domain.ErrPartialUpload)
}

func printIngestReport(p *printer, path string, report domain.IngestionReport, err error) {
	switch {
	case report.Skipped:
		p.printf("%s: already ingested as %q (use --force to re-ingest)\n", path, report.Title)
		return
	case err != nil && report.ChunksBuilt == 0:
		p.printf("%s: %s\n", path, p.warn.Render(err.Error()))
		return
	}

	p.section(fmt.Sprintf("%s (%s)", report.Title, path))
	p.field("Collection", report.Collection)
	p.field("Chapters", report.Chapters)
	if report.ParentChunks > 0 {
		p.field("Chunks", fmt.Sprintf("%d (%d parents, %d children)",
			report.ChunksBuilt, report.ParentChunks, report.ChildChunks))
	} else {
		p.field("Chunks", fmt.Sprintf("%d flat", report.ChunksBuilt))
	}
	p.field("Uploaded", report.ChunksCreated)
	p.field("Took", report.Duration.Round(time.Millisecond))

	if len(report.Failures) > 0 {
		p.warning("%d chunks failed to upload", len(report.Failures))
		for _, f := range report.Failures {
			p.println(p.dim.Render(fmt.Sprintf("    %s: %s", f.ChunkID, f.Reason)))
		}
		return
	}
	if err == nil {
		p.success("Ingested %s", report.IngestionID)
	}
	p.println()
}
