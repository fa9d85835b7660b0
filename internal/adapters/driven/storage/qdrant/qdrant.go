// Package qdrant provides a VectorStore adapter for a Qdrant server over its REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// Default configuration values.
const (
	DefaultURL     = "http://localhost:6333"
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the Qdrant vector store.
type Config struct {
	// URL is the Qdrant REST endpoint (default: http://localhost:6333).
	URL string

	// APIKey is sent as the api-key header when set.
	APIKey string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// VectorStore stores chunk points in Qdrant collections with cosine distance.
type VectorStore struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewVectorStore creates a new Qdrant vector store.
func NewVectorStore(cfg Config) *VectorStore {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &VectorStore{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
	}
}

// vectorParams is the single unnamed vector configuration.
type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type collectionResult struct {
	PointsCount int `json:"points_count"`
	Config      struct {
		Params struct {
			Vectors vectorParams `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

type wirePoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type scoredWirePoint struct {
	wirePoint
	Score float64 `json:"score"`
}

type matchAny struct {
	Any []string `json:"any"`
}

type fieldCondition struct {
	Key   string   `json:"key"`
	Match matchAny `json:"match"`
}

type filter struct {
	Must []fieldCondition `json:"must"`
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	Filter      *filter   `json:"filter,omitempty"`
	WithPayload bool      `json:"with_payload"`
	WithVector  bool      `json:"with_vector"`
}

type retrieveRequest struct {
	IDs         []string `json:"ids"`
	WithPayload bool     `json:"with_payload"`
	WithVector  bool     `json:"with_vector"`
}

// EnsureCollection creates the collection if missing.
func (s *VectorStore) EnsureCollection(ctx context.Context, name string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: collection %q needs a positive dimension", domain.ErrConfiguration, name)
	}

	info, err := s.CollectionInfo(ctx, name)
	switch {
	case err == nil:
		if info.Dimensions != dimensions {
			return domain.DimensionError("collection "+name, info.Dimensions, dimensions)
		}
		return nil
	case !isUnknownCollection(err):
		return err
	}

	body := map[string]any{
		"vectors": vectorParams{Size: dimensions, Distance: "Cosine"},
	}
	return s.do(ctx, http.MethodPut, collectionPath(name), body, nil)
}

// CollectionInfo describes an existing collection.
func (s *VectorStore) CollectionInfo(ctx context.Context, name string) (domain.CollectionInfo, error) {
	var result collectionResult
	if err := s.do(ctx, http.MethodGet, collectionPath(name), nil, &result); err != nil {
		if isNotFound(err) {
			return domain.CollectionInfo{}, fmt.Errorf("%w: %s", domain.ErrUnknownCollection, name)
		}
		return domain.CollectionInfo{}, err
	}
	return domain.CollectionInfo{
		Name:       name,
		Dimensions: result.Config.Params.Vectors.Size,
		Points:     result.PointsCount,
	}, nil
}

// ListCollections returns every collection sorted by name.
func (s *VectorStore) ListCollections(ctx context.Context) ([]domain.CollectionInfo, error) {
	var result struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	}
	if err := s.do(ctx, http.MethodGet, "/collections", nil, &result); err != nil {
		return nil, err
	}

	infos := make([]domain.CollectionInfo, 0, len(result.Collections))
	for _, c := range result.Collections {
		info, err := s.CollectionInfo(ctx, c.Name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Upsert inserts or replaces points by id and waits for the write to apply.
func (s *VectorStore) Upsert(ctx context.Context, name string, points []driven.Point) error {
	info, err := s.CollectionInfo(ctx, name)
	if err != nil {
		return err
	}

	wire := make([]wirePoint, len(points))
	for i, p := range points {
		if len(p.Vector) != info.Dimensions {
			return domain.DimensionError("point "+p.ID, info.Dimensions, len(p.Vector))
		}
		wire[i] = wirePoint{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
	}
	if len(wire) == 0 {
		return nil
	}

	return s.do(ctx, http.MethodPut, collectionPath(name)+"/points?wait=true",
		map[string]any{"points": wire}, nil)
}

// Search returns up to limit points matching filter, best score first.
func (s *VectorStore) Search(
	ctx context.Context,
	name string,
	vector []float32,
	limit int,
	pf driven.PointFilter,
) ([]driven.ScoredPoint, error) {
	info, err := s.CollectionInfo(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(vector) != info.Dimensions {
		return nil, domain.DimensionError("query vector", info.Dimensions, len(vector))
	}
	if limit <= 0 {
		return nil, nil
	}

	req := searchRequest{
		Vector:      vector,
		Limit:       limit,
		WithPayload: true,
		WithVector:  true,
	}
	if len(pf.Levels) > 0 {
		levels := make([]string, len(pf.Levels))
		for i, l := range pf.Levels {
			levels[i] = string(l)
		}
		req.Filter = &filter{Must: []fieldCondition{{Key: domain.PayloadLevel, Match: matchAny{Any: levels}}}}
	}

	var result []scoredWirePoint
	if err := s.do(ctx, http.MethodPost, collectionPath(name)+"/points/search", req, &result); err != nil {
		return nil, err
	}

	hits := make([]driven.ScoredPoint, len(result))
	for i, r := range result {
		hits[i] = driven.ScoredPoint{
			Point: driven.Point{ID: r.ID, Vector: r.Vector, Payload: r.Payload},
			Score: r.Score,
		}
	}
	// Qdrant already orders by score; a stable sort keeps its tie order.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}

// GetByIDs returns the points that exist among ids.
func (s *VectorStore) GetByIDs(ctx context.Context, name string, ids []string) ([]driven.Point, error) {
	if len(ids) == 0 {
		if _, err := s.CollectionInfo(ctx, name); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var result []wirePoint
	req := retrieveRequest{IDs: ids, WithPayload: true, WithVector: true}
	if err := s.do(ctx, http.MethodPost, collectionPath(name)+"/points", req, &result); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCollection, name)
		}
		return nil, err
	}

	points := make([]driven.Point, len(result))
	for i, r := range result {
		points[i] = driven.Point{ID: r.ID, Vector: r.Vector, Payload: r.Payload}
	}
	return points, nil
}

// Close releases resources.
func (s *VectorStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// statusError is a non-2xx Qdrant response.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant: status %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

func isUnknownCollection(err error) bool {
	return errors.Is(err, domain.ErrUnknownCollection)
}

// do sends a JSON request and decodes the "result" field of the response.
func (s *VectorStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: qdrant: %w", domain.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: qdrant: read response: %w", domain.ErrConnectivity, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(data))}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", domain.ErrConnectivity, se)
		}
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, se)
	}

	if out == nil {
		return nil
	}
	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func collectionPath(name string) string {
	return "/collections/" + url.PathEscape(name)
}
