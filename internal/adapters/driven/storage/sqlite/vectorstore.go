package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// vectorStore implements driven.VectorStore with a brute-force cosine scan.
// Store order is insertion order (rowid); upserts keep a point's rowid.
type vectorStore struct {
	store *Store
}

var _ driven.VectorStore = (*vectorStore)(nil)

// EnsureCollection creates the collection if missing.
func (v *vectorStore) EnsureCollection(ctx context.Context, name string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: collection %q needs a positive dimension", domain.ErrConfiguration, name)
	}

	_, err := v.store.db.ExecContext(ctx,
		"INSERT INTO collections (name, dimensions, created_at) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING",
		name, dimensions, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	existing, err := v.dimensions(ctx, name)
	if err != nil {
		return err
	}
	if existing != dimensions {
		return domain.DimensionError("collection "+name, existing, dimensions)
	}
	return nil
}

// CollectionInfo describes an existing collection.
func (v *vectorStore) CollectionInfo(ctx context.Context, name string) (domain.CollectionInfo, error) {
	info := domain.CollectionInfo{Name: name}
	err := v.store.db.QueryRowContext(ctx, `
		SELECT c.dimensions, (SELECT COUNT(*) FROM points p WHERE p.collection = c.name)
		FROM collections c WHERE c.name = ?
	`, name).Scan(&info.Dimensions, &info.Points)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CollectionInfo{}, fmt.Errorf("%w: %s", domain.ErrUnknownCollection, name)
	}
	if err != nil {
		return domain.CollectionInfo{}, fmt.Errorf("querying collection: %w", err)
	}
	return info, nil
}

// ListCollections returns every collection sorted by name.
func (v *vectorStore) ListCollections(ctx context.Context) ([]domain.CollectionInfo, error) {
	rows, err := v.store.db.QueryContext(ctx, `
		SELECT c.name, c.dimensions, (SELECT COUNT(*) FROM points p WHERE p.collection = c.name)
		FROM collections c ORDER BY c.name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying collections: %w", err)
	}
	defer rows.Close()

	var infos []domain.CollectionInfo //nolint:prealloc // size unknown from query
	for rows.Next() {
		var info domain.CollectionInfo
		if err := rows.Scan(&info.Name, &info.Dimensions, &info.Points); err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating collections: %w", err)
	}
	return infos, nil
}

// Upsert inserts or replaces points by id in one transaction.
func (v *vectorStore) Upsert(ctx context.Context, name string, points []driven.Point) error {
	dims, err := v.dimensions(ctx, name)
	if err != nil {
		return err
	}
	for _, p := range points {
		if len(p.Vector) != dims {
			return domain.DimensionError("point "+p.ID, dims, len(p.Vector))
		}
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO points (collection, id, level, vector, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			level = excluded.level,
			vector = excluded.vector,
			payload = excluded.payload
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		payloadJSON, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("marshalling payload: %w", err)
		}
		level, _ := p.Payload[domain.PayloadLevel].(string)

		if _, err := stmt.ExecContext(ctx, name, p.ID, level,
			float32SliceToBytes(p.Vector), string(payloadJSON)); err != nil {
			return fmt.Errorf("saving point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Search returns up to limit points matching filter, best score first.
func (v *vectorStore) Search(
	ctx context.Context,
	name string,
	vector []float32,
	limit int,
	filter driven.PointFilter,
) ([]driven.ScoredPoint, error) {
	dims, err := v.dimensions(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(vector) != dims {
		return nil, domain.DimensionError("query vector", dims, len(vector))
	}
	if limit <= 0 {
		return nil, nil
	}

	query := "SELECT id, vector, payload FROM points WHERE collection = ?"
	args := []any{name}
	if len(filter.Levels) > 0 {
		query += " AND level IN (" + strings.TrimSuffix(strings.Repeat("?,", len(filter.Levels)), ",") + ")"
		for _, l := range filter.Levels {
			args = append(args, string(l))
		}
	}
	query += " ORDER BY rowid"

	rows, err := v.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}
	defer rows.Close()

	var hits []driven.ScoredPoint
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		hits = append(hits, driven.ScoredPoint{
			Point: p,
			Score: domain.CosineSimilarity(vector, p.Vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating points: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// GetByIDs returns the points that exist among ids.
func (v *vectorStore) GetByIDs(ctx context.Context, name string, ids []string) ([]driven.Point, error) {
	if _, err := v.dimensions(ctx, name); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, name)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := v.store.db.QueryContext(ctx,
		"SELECT id, vector, payload FROM points WHERE collection = ? AND id IN ("+
			strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")+") ORDER BY rowid",
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}
	defer rows.Close()

	var points []driven.Point //nolint:prealloc // size unknown from query
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating points: %w", err)
	}
	return points, nil
}

// Close closes the underlying store.
func (v *vectorStore) Close() error {
	return v.store.Close()
}

// dimensions returns the collection dimension or ErrUnknownCollection.
func (v *vectorStore) dimensions(ctx context.Context, name string) (int, error) {
	var dims int
	err := v.store.db.QueryRowContext(ctx,
		"SELECT dimensions FROM collections WHERE name = ?", name).Scan(&dims)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownCollection, name)
	}
	if err != nil {
		return 0, fmt.Errorf("querying collection: %w", err)
	}
	return dims, nil
}

func scanPoint(rows *sql.Rows) (driven.Point, error) {
	var p driven.Point
	var vector []byte
	var payloadJSON string

	if err := rows.Scan(&p.ID, &vector, &payloadJSON); err != nil {
		return driven.Point{}, fmt.Errorf("scanning point: %w", err)
	}
	p.Vector = bytesToFloat32Slice(vector)
	if err := json.Unmarshal([]byte(payloadJSON), &p.Payload); err != nil {
		return driven.Point{}, fmt.Errorf("unmarshalling payload: %w", err)
	}
	return p, nil
}
