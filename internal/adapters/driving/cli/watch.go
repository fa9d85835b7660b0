package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/mcp"
	"github.com/custodia-labs/sercha-rag/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/normalisers"
)

// watchDebounce batches the burst of events an editor or copy produces.
var watchDebounce = 500 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Ingest books as they appear in a directory",
	Long: `Ingests every supported book already in the directory, then watches it and
ingests files that are created or changed. Unchanged content is skipped by
the ingestion manifest, so saving a file twice does not duplicate chunks.

Accepts the same metadata and chunking flags as ingest. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&ingestCollection, "collection", "c", "", "target collection (default from config)")
	watchCmd.Flags().StringVarP(&ingestDomain, "domain", "d", "", "book domain, selects the chunking threshold")
	watchCmd.Flags().StringVar(&ingestLanguage, "language", "", "override the book language")
	watchCmd.Flags().BoolVar(&ingestFlat, "flat", false, "build flat chunks without parents")
	watchCmd.Flags().Uint64Var(&ingestRetries, "retries", 0, "retry failed uploads this many times")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", dir)
	}

	loader, err := loaderPort()
	if err != nil {
		return err
	}
	svc, err := ingestionPort(cmd.Context())
	if err != nil {
		return err
	}

	w := &bookWatcher{
		svc:    svc,
		loader: loader,
		p:      newPrinter(cmd),
	}
	return w.run(cmd.Context(), dir)
}

// bookWatcher ingests supported files under one directory.
type bookWatcher struct {
	svc    driving.IngestionService
	loader mcp.BookLoader
	p      *printer

	mu       sync.Mutex
	pending  map[string]*time.Timer
	inflight sync.WaitGroup
}

func (w *bookWatcher) run(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	defer w.drain()

	existing, err := filesystem.FindBooks(dir, false)
	if err != nil {
		return err
	}
	for _, path := range existing {
		w.ingest(ctx, path)
	}

	w.p.printf("Watching %s for books (%d formats)\n", dir, len(normalisers.SupportedExtensions()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			change, ok := changeFor(event)
			if !ok || !normalisers.IsSupported(event.Name) {
				continue
			}
			logger.Debug("%s %s", event.Name, change)
			if change == domain.ChangeDeleted {
				// Chunks stay in the store; the manifest keys on content, not path.
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watcher: %v", err)
		}
	}
}

// changeFor maps a filesystem event to a change kind.
func changeFor(event fsnotify.Event) (domain.ChangeType, bool) {
	switch {
	case event.Has(fsnotify.Create):
		return domain.ChangeCreated, true
	case event.Has(fsnotify.Write):
		return domain.ChangeUpdated, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return domain.ChangeDeleted, true
	default:
		return 0, false
	}
}

// schedule ingests path once events for it stop arriving.
func (w *bookWatcher) schedule(ctx context.Context, path string) {
	if !normalisers.IsSupported(path) || strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		w.pending = make(map[string]*time.Timer)
	}
	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(watchDebounce)
		return
	}

	// Each timer holds one inflight slot until it is stopped or its ingest ends.
	w.inflight.Add(1)
	var t *time.Timer
	t = time.AfterFunc(watchDebounce, func() {
		defer w.inflight.Done()
		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
	w.pending[path] = t
}

// drain cancels timers that have not fired and waits for running ingests.
func (w *bookWatcher) drain() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.inflight.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.inflight.Wait()
}

func (w *bookWatcher) ingest(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	report, err := ingestFile(ctx, w.svc, w.loader, path, ingestOptions(), ingestRetries)
	if err != nil {
		logger.Warn("%s: %v", path, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	printIngestReport(w.p, path, report, err)
}
