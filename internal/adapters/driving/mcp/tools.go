package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// defaultUserID keys conversation history for MCP clients that do not name a user.
const defaultUserID = "mcp"

// defaultTopK is used when neither the call nor the ports set a retrieval depth.
const defaultTopK = 8

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the knowledge base"`
	UserID   string `json:"user_id,omitempty" jsonschema:"conversation id used for history (default mcp)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer string `json:"answer"`
}

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query string `json:"query" jsonschema:"text to find related knowledge base passages for"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of passages to return"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Context string `json:"context"`
	Found   bool   `json:"found"`
}

// IngestInput is the input schema for the ingest tool.
type IngestInput struct {
	Dir string `json:"dir,omitempty" jsonschema:"corpus directory (default: the configured corpus)"`
}

// IngestOutput is the output schema for the ingest tool.
type IngestOutput struct {
	Documents   int      `json:"documents"`
	Chunks      int      `json:"chunks"`
	Unsupported []string `json:"unsupported,omitempty"`
	Removed     []string `json:"removed,omitempty"`
	Failed      []string `json:"failed,omitempty"`
	DurationMS  int64    `json:"duration_ms"`
}

// registerTools registers all tool handlers with the MCP server.
// Optional tools are only offered when their port is set.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using only the knowledge base",
	}, s.handleAsk)

	if s.ports.Retriever != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "retrieve",
			Description: "Return the knowledge base passages most similar to a query",
		}, s.handleRetrieve)
	}

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest",
			Description: "Rebuild the knowledge base from the corpus directory",
		}, s.handleIngest)
	}
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		userID = defaultUserID
	}

	answer, err := s.ports.Answer.Answer(ctx, userID, input.Question)
	if err != nil {
		return nil, AskOutput{}, err
	}
	return nil, AskOutput{Answer: answer}, nil
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, RetrieveOutput{}, errors.New("query is required")
	}

	topK := input.TopK
	if topK <= 0 {
		topK = s.ports.TopK
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	text, err := s.ports.Retriever.Retrieve(ctx, input.Query, topK)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	return nil, RetrieveOutput{Context: text, Found: text != ""}, nil
}

// handleIngest handles the ingest tool invocation.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	dir := strings.TrimSpace(input.Dir)
	if dir == "" {
		dir = s.ports.CorpusDir
	}
	if dir == "" {
		return nil, IngestOutput{}, errors.New("no corpus directory configured")
	}

	report, err := s.ports.Ingest.Ingest(ctx, dir)
	if err != nil {
		return nil, IngestOutput{}, err
	}

	output := IngestOutput{
		Documents:   report.Documents,
		Chunks:      report.Chunks,
		Unsupported: report.Unsupported,
		Removed:     report.Removed,
		DurationMS:  report.Duration.Milliseconds(),
	}
	for _, f := range report.Failed {
		output.Failed = append(output.Failed, f.Path+": "+f.Err.Error())
	}
	return nil, output, nil
}
