package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// Adapters wrap infrastructure failures with one of these kinds so callers
// can classify them with errors.Is.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider or file format.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrConfiguration is always fatal and never retried internally.
	// Dimension mismatches, unknown collections and inverted size
	// parameters all wrap it.
	ErrConfiguration = errors.New("configuration error")

	// ErrConnectivity indicates the embedding service or vector store is unreachable.
	// It is surfaced immediately; there is no internal retry loop.
	ErrConnectivity = errors.New("connectivity error")

	// ErrPartialUpload indicates some chunks in an ingestion batch failed to upsert.
	// The concrete error is *PartialUploadError.
	ErrPartialUpload = errors.New("partial upload")

	// ErrDegradedFeature marks rerank or synthesis failures.
	// It is recorded on responses and never returned as a call failure.
	ErrDegradedFeature = errors.New("degraded feature")

	// ErrUnknownCollection indicates the target collection does not exist.
	ErrUnknownCollection = fmt.Errorf("%w: unknown collection", ErrConfiguration)

	// ErrDimensionMismatch indicates a vector does not match the collection dimension.
	ErrDimensionMismatch = fmt.Errorf("%w: embedding dimension mismatch", ErrConfiguration)

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Rerank and synthesis fall back to their no-op implementations.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)

// DimensionError builds an ErrDimensionMismatch with the offending sizes.
func DimensionError(what string, expected, got int) error {
	return fmt.Errorf("%w: %s has %d dimensions, collection expects %d",
		ErrDimensionMismatch, what, got, expected)
}

// ChunkFailure records a chunk that could not be persisted and why.
type ChunkFailure struct {
	// ChunkID is the id of the failed chunk.
	ChunkID string `json:"chunk_id"`

	// Reason is a human-readable failure description.
	Reason string `json:"reason"`
}

// FailureReasonAborted marks chunks whose batch was never attempted because
// an earlier batch hit a connectivity failure.
const FailureReasonAborted = "aborted after connectivity failure"

// PartialUploadError reports exactly which chunks succeeded and which failed.
// Nothing is rolled back.
type PartialUploadError struct {
	Succeeded []string
	Failed    []ChunkFailure
	Cause     error
}

// Error implements error.
func (e *PartialUploadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "partial upload: %d succeeded, %d failed", len(e.Succeeded), len(e.Failed))
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Is matches ErrPartialUpload.
func (e *PartialUploadError) Is(target error) bool {
	return target == ErrPartialUpload
}

// Unwrap exposes the underlying cause, typically a connectivity error.
func (e *PartialUploadError) Unwrap() error {
	return e.Cause
}
