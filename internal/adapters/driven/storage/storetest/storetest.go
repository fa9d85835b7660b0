// Package storetest holds behaviour tests shared by every VectorStore and
// Manifest adapter.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// point builds a point with a level payload.
func point(id string, level domain.ChunkLevel, vector ...float32) driven.Point {
	return driven.Point{
		ID:     id,
		Vector: vector,
		Payload: map[string]any{
			domain.PayloadLevel:     string(level),
			domain.PayloadText:      "text " + id,
			domain.PayloadBookTitle: "Meditations",
		},
	}
}

// RunVectorStore exercises the driven.VectorStore contract.
// newStore must return an empty store.
func RunVectorStore(t *testing.T, newStore func(t *testing.T) driven.VectorStore) {
	t.Helper()

	t.Run("EnsureCollectionIsIdempotent", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		require.NoError(t, store.EnsureCollection(ctx, "books", 2))
		require.NoError(t, store.EnsureCollection(ctx, "books", 2))

		info, err := store.CollectionInfo(ctx, "books")
		require.NoError(t, err)
		assert.Equal(t, domain.CollectionInfo{Name: "books", Dimensions: 2, Points: 0}, info)
	})

	t.Run("EnsureCollectionDimensionConflict", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		require.NoError(t, store.EnsureCollection(ctx, "books", 2))
		err := store.EnsureCollection(ctx, "books", 3)

		assert.ErrorIs(t, err, domain.ErrConfiguration)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("UnknownCollection", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		_, err := store.CollectionInfo(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrUnknownCollection)
		assert.ErrorIs(t, err, domain.ErrConfiguration)

		_, err = store.Search(ctx, "missing", []float32{1, 0}, 5, driven.PointFilter{})
		assert.ErrorIs(t, err, domain.ErrUnknownCollection)

		err = store.Upsert(ctx, "missing", []driven.Point{point("a", domain.LevelFlat, 1, 0)})
		assert.ErrorIs(t, err, domain.ErrUnknownCollection)
	})

	t.Run("UpsertRejectsWrongDimension", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		require.NoError(t, store.EnsureCollection(ctx, "books", 2))

		err := store.Upsert(ctx, "books", []driven.Point{point("a", domain.LevelFlat, 1, 0, 0)})

		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("UpsertReplacesByID", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		require.NoError(t, store.EnsureCollection(ctx, "books", 2))

		require.NoError(t, store.Upsert(ctx, "books", []driven.Point{point("a", domain.LevelFlat, 1, 0)}))
		replacement := point("a", domain.LevelFlat, 0, 1)
		replacement.Payload[domain.PayloadText] = "replaced"
		require.NoError(t, store.Upsert(ctx, "books", []driven.Point{replacement}))

		info, err := store.CollectionInfo(ctx, "books")
		require.NoError(t, err)
		assert.Equal(t, 1, info.Points)

		got, err := store.GetByIDs(ctx, "books", []string{"a"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "replaced", got[0].Payload[domain.PayloadText])
		assert.Equal(t, []float32{0, 1}, got[0].Vector)
	})

	t.Run("SearchOrdersByScoreAndFiltersLevels", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		require.NoError(t, store.EnsureCollection(ctx, "books", 2))
		require.NoError(t, store.Upsert(ctx, "books", []driven.Point{
			point("parent", domain.LevelParent, 1, 0),
			point("far", domain.LevelChild, 0, 1),
			point("near", domain.LevelChild, 1, 0.1),
			point("mid", domain.LevelFlat, 1, 1),
		}))

		hits, err := store.Search(ctx, "books", []float32{1, 0}, 10, driven.PointFilter{
			Levels: []domain.ChunkLevel{domain.LevelChild, domain.LevelFlat},
		})
		require.NoError(t, err)

		ids := make([]string, len(hits))
		for i, h := range hits {
			ids[i] = h.ID
		}
		assert.Equal(t, []string{"near", "mid", "far"}, ids)
		assert.InDelta(t, 0.995, hits[0].Score, 0.001)
		assert.InDelta(t, 0.707, hits[1].Score, 0.001)
		assert.InDelta(t, 0.0, hits[2].Score, 0.001)
		assert.Equal(t, "text near", hits[0].Payload[domain.PayloadText])
	})

	t.Run("SearchRespectsLimit", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		require.NoError(t, store.EnsureCollection(ctx, "books", 2))
		require.NoError(t, store.Upsert(ctx, "books", []driven.Point{
			point("a", domain.LevelFlat, 1, 0),
			point("b", domain.LevelFlat, 1, 0.5),
			point("c", domain.LevelFlat, 0, 1),
		}))

		hits, err := store.Search(ctx, "books", []float32{1, 0}, 2, driven.PointFilter{})

		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "a", hits[0].ID)
		assert.Equal(t, "b", hits[1].ID)
	})

	t.Run("GetByIDsSkipsMissing", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		require.NoError(t, store.EnsureCollection(ctx, "books", 2))
		require.NoError(t, store.Upsert(ctx, "books", []driven.Point{
			point("a", domain.LevelFlat, 1, 0),
			point("b", domain.LevelFlat, 0, 1),
		}))

		got, err := store.GetByIDs(ctx, "books", []string{"b", "missing", "a"})

		require.NoError(t, err)
		ids := make([]string, len(got))
		for i, p := range got {
			ids[i] = p.ID
		}
		assert.ElementsMatch(t, []string{"a", "b"}, ids)
	})

	t.Run("ListCollections", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		require.NoError(t, store.EnsureCollection(ctx, "b", 3))
		require.NoError(t, store.EnsureCollection(ctx, "a", 2))

		infos, err := store.ListCollections(ctx)

		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, "a", infos[0].Name)
		assert.Equal(t, 2, infos[0].Dimensions)
		assert.Equal(t, "b", infos[1].Name)
	})
}

// RunManifest exercises the driven.Manifest contract.
// newManifest must return an empty manifest.
func RunManifest(t *testing.T, newManifest func(t *testing.T) driven.Manifest) {
	t.Helper()

	entry := func(sourceID string, at time.Time) domain.ManifestEntry {
		return domain.ManifestEntry{
			SourceID: sourceID,
			Book: domain.BookMetadata{
				SourceID: sourceID,
				Title:    "Book " + sourceID,
				Author:   "Author",
				Language: "en",
				Domain:   "philosophy",
			},
			Collection:  "books",
			IngestionID: "ing-" + sourceID,
			ChunkCount:  12,
			IngestedAt:  at,
		}
	}

	t.Run("RecordAndQuery", func(t *testing.T) {
		ctx := context.Background()
		m := newManifest(t)

		ok, err := m.AlreadyIngested(ctx, "src-1")
		require.NoError(t, err)
		assert.False(t, ok)

		at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, m.RecordIngestion(ctx, entry("src-1", at)))

		ok, err = m.AlreadyIngested(ctx, "src-1")
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := m.Get(ctx, "src-1")
		require.NoError(t, err)
		assert.Equal(t, "Book src-1", got.Book.Title)
		assert.Equal(t, "philosophy", got.Book.Domain)
		assert.Equal(t, 12, got.ChunkCount)
		assert.True(t, at.Equal(got.IngestedAt))
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := newManifest(t).Get(context.Background(), "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("RecordReplaces", func(t *testing.T) {
		ctx := context.Background()
		m := newManifest(t)
		at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		require.NoError(t, m.RecordIngestion(ctx, entry("src-1", at)))
		second := entry("src-1", at.Add(time.Hour))
		second.IngestionID = "ing-2"
		require.NoError(t, m.RecordIngestion(ctx, second))

		entries, err := m.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "ing-2", entries[0].IngestionID)
	})

	t.Run("ListMostRecentFirst", func(t *testing.T) {
		ctx := context.Background()
		m := newManifest(t)
		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		require.NoError(t, m.RecordIngestion(ctx, entry("old", base)))
		require.NoError(t, m.RecordIngestion(ctx, entry("new", base.Add(time.Hour))))

		entries, err := m.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "new", entries[0].SourceID)
		assert.Equal(t, "old", entries[1].SourceID)
	})
}
