// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Normaliser, NormaliserRegistry: corpus file to plain text
//   - PostProcessor, PostProcessorPipeline: plain text to chunks
//   - TextStore: chunk text persistence, issues chunk ids
//   - EmbeddingService: text to unit-length vector
//   - VectorIndex: vector upsert and nearest-neighbour query
//   - LLMService: role-tagged messages to generated text
//   - ConfigStore, PromptStore: configuration and prompt text
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - HistoryStore: per-user conversation history. Only used when history is enabled.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
