package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/kbchat/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for kbchat resources.
	uriScheme = "kbchat://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "index",
		Name:        "index",
		Description: "Knowledge base size and corpus location",
		MIMEType:    "application/json",
	}, s.handleIndexResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "chunks/{chunkId}",
		Name:        "chunk",
		Description: "Text of a stored knowledge base chunk",
		MIMEType:    "text/plain",
	}, s.handleChunkResource)
}

// indexInfo is the body of the index resource.
type indexInfo struct {
	Chunks    int    `json:"chunks"`
	CorpusDir string `json:"corpus_dir,omitempty"`
	TopK      int    `json:"top_k,omitempty"`
}

// handleIndexResource reports the number of indexed chunks.
func (s *Server) handleIndexResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	info := indexInfo{CorpusDir: s.ports.CorpusDir, TopK: s.ports.TopK}
	if s.ports.Index != nil {
		count, err := s.ports.Index.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("counting chunks: %w", err)
		}
		info.Chunks = count
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling index info: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleChunkResource returns the text of one chunk.
func (s *Server) handleChunkResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Chunks == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	id := extractChunkID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	text, err := s.ports.Chunks.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("reading chunk: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     text,
		}},
	}, nil
}

// extractChunkID extracts the chunk ID from a URI like kbchat://chunks/{chunkId}.
func extractChunkID(uri string) string {
	const prefix = uriScheme + "chunks/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
