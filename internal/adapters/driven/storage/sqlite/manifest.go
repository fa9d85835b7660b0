package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// manifest implements driven.Manifest.
type manifest struct {
	store *Store
}

var _ driven.Manifest = (*manifest)(nil)

const manifestColumns = `source_id, title, author, language, domain, collection, ingestion_id, chunk_count, ingested_at`

// AlreadyIngested reports whether the source has a recorded ingestion.
func (m *manifest) AlreadyIngested(ctx context.Context, sourceID string) (bool, error) {
	var n int
	err := m.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM manifest WHERE source_id = ?", sourceID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying manifest: %w", err)
	}
	return n > 0, nil
}

// RecordIngestion stores or replaces the entry for entry.SourceID.
func (m *manifest) RecordIngestion(ctx context.Context, entry domain.ManifestEntry) error {
	if entry.SourceID == "" {
		return fmt.Errorf("%w: manifest entry has no source id", domain.ErrInvalidInput)
	}
	if entry.IngestedAt.IsZero() {
		entry.IngestedAt = time.Now()
	}

	_, err := m.store.db.ExecContext(ctx, `
		INSERT INTO manifest (`+manifestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			language = excluded.language,
			domain = excluded.domain,
			collection = excluded.collection,
			ingestion_id = excluded.ingestion_id,
			chunk_count = excluded.chunk_count,
			ingested_at = excluded.ingested_at
	`, entry.SourceID, entry.Book.Title, entry.Book.Author, entry.Book.Language, entry.Book.Domain,
		entry.Collection, entry.IngestionID, entry.ChunkCount,
		entry.IngestedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving manifest entry: %w", err)
	}
	return nil
}

// List returns all entries, most recent first.
func (m *manifest) List(ctx context.Context) ([]domain.ManifestEntry, error) {
	rows, err := m.store.db.QueryContext(ctx,
		"SELECT "+manifestColumns+" FROM manifest ORDER BY ingested_at DESC, source_id")
	if err != nil {
		return nil, fmt.Errorf("querying manifest: %w", err)
	}
	defer rows.Close()

	var entries []domain.ManifestEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		entry, err := scanManifestEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating manifest: %w", err)
	}
	return entries, nil
}

// Get returns the entry for a source.
func (m *manifest) Get(ctx context.Context, sourceID string) (*domain.ManifestEntry, error) {
	row := m.store.db.QueryRowContext(ctx,
		"SELECT "+manifestColumns+" FROM manifest WHERE source_id = ?", sourceID)

	entry, err := scanManifestEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return entry, err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanManifestEntry(row rowScanner) (*domain.ManifestEntry, error) {
	var entry domain.ManifestEntry
	var ingestedAt string

	err := row.Scan(&entry.SourceID, &entry.Book.Title, &entry.Book.Author, &entry.Book.Language,
		&entry.Book.Domain, &entry.Collection, &entry.IngestionID, &entry.ChunkCount, &ingestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning manifest entry: %w", err)
	}

	entry.Book.SourceID = entry.SourceID
	if t, err := time.Parse(time.RFC3339Nano, ingestedAt); err == nil {
		entry.IngestedAt = t
	}
	return &entry, nil
}
