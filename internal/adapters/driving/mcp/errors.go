// Package mcp provides an MCP (Model Context Protocol) server adapter for kbchat.
// It lets AI assistants ask grounded questions of the knowledge base.
package mcp

import "errors"

// ErrMissingAnswerService is returned when the answer service is not provided.
var ErrMissingAnswerService = errors.New("mcp: answer service is required")
