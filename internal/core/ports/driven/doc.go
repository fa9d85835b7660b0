// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - EmbeddingService: Maps text to fixed-dimension vectors
//   - VectorStore: Cosine similarity storage and search of chunk points
//   - ChapterDetector: Splits a normalised book into chapters
//   - Normaliser / NormaliserRegistry: Extracts text from book files
//   - Manifest: Records completed ingestions for duplicate avoidance
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These always have a no-op implementation, so the core never branches on nil:
//
//   - Reranker: Reorders retrieval results
//   - Synthesizer: Generates an answer from retrieval results
//   - LLMService: Backs the LLM reranker and synthesizer
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
