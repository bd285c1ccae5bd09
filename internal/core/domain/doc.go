// Package domain defines the core entities for kbchat.
//
// This package is the hexagon's innermost layer. It has NO external
// dependencies and defines the fundamental types:
//
//   - RawDocument: bytes read from the corpus directory
//   - Document: the plain text extracted from one corpus file
//   - Chunk: a bounded span of a document, the unit of retrieval
//   - VectorRecord and Match: what the vector index stores and returns
//   - Turn and Role: one entry of a user's conversation history
//   - Message and Prompt: the role-tagged input to the language model
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
