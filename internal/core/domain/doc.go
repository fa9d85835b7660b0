// Package domain defines the core business entities for sercha-rag.
//
// This package is part of the hexagonal architecture's innermost layer.
// It defines the fundamental types:
//
//   - Chunk: A retrievable span (parent, child or flat) with its embedding
//   - Chapter: A unit of chapter detection output
//   - ChunkingParams: Boundary detection configuration
//   - RetrievalParams / RetrievalResponse: The retrieve contract
//   - Settings: Typed application configuration
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. All other packages depend on
// domain, never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library and github.com/google/uuid (chunk ids)
//   - Cannot Import: Any internal/ package
package domain
