// Package mongo stores chunk text and conversation history in MongoDB.
//
// Chunk text lives in the "documents" collection and conversation turns in
// "chat_history". The chunk's ObjectID (hex) is the id shared with the
// vector index.
package mongo
