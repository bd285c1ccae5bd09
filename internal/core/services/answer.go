package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
	"github.com/custodia-labs/kbchat/internal/core/ports/driving"
	"github.com/custodia-labs/kbchat/internal/logger"
)

// Ensure AnswerGenerator implements the interface.
var _ driving.AnswerService = (*AnswerGenerator)(nil)

// historyFetchTimeout bounds the best-effort history read.
const historyFetchTimeout = 3 * time.Second

// AnswerConfig tunes the answer generator.
type AnswerConfig struct {
	// TopK is the retrieval depth.
	TopK int

	// HistoryEnabled gates every history read and write.
	HistoryEnabled bool

	// HistoryLimit is the number of recent turns injected into the prompt.
	HistoryLimit int

	// Chat configures the language model call.
	Chat driven.ChatOptions
}

// AnswerConfigFromSettings maps application settings to an AnswerConfig.
func AnswerConfigFromSettings(s domain.AppSettings) AnswerConfig {
	return AnswerConfig{
		TopK:           s.Retrieval.TopK,
		HistoryEnabled: s.History.Enabled,
		HistoryLimit:   s.History.Limit,
		Chat: driven.ChatOptions{
			MaxTokens:   s.LLM.MaxTokens,
			Temperature: s.LLM.Temperature,
		},
	}
}

// answerState is one step of answering a single request.
// Steps run strictly in declaration order; optional steps are skipped.
type answerState int

const (
	stateStart answerState = iota
	stateHistoryFetch
	stateRetrieve
	statePromptAssemble
	stateGenerate
	stateHistoryStore
	stateDone
)

// String returns the state name for logging.
func (s answerState) String() string {
	switch s {
	case stateStart:
		return "START"
	case stateHistoryFetch:
		return "HISTORY_FETCH"
	case stateRetrieve:
		return "RETRIEVE"
	case statePromptAssemble:
		return "PROMPT_ASSEMBLE"
	case stateGenerate:
		return "GENERATE"
	case stateHistoryStore:
		return "HISTORY_STORE"
	case stateDone:
		return "DONE"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// answerRequest carries the data of one request between states.
type answerRequest struct {
	id         string
	userID     string
	question   string
	receivedAt time.Time

	transcript string
	context    string
	messages   []domain.Message
	reply      string
}

// AnswerGenerator answers questions from retrieved context.
// It holds no per-request state and is safe for concurrent use.
type AnswerGenerator struct {
	retriever driving.RetrieverService
	llm       driven.LLMService
	history   driven.HistoryStore
	writer    *HistoryWriter
	prompts   driven.PromptStore
	cfg       AnswerConfig
}

// NewAnswerGenerator creates an answer generator.
// writer may be nil when history is disabled.
func NewAnswerGenerator(
	deps *Dependencies,
	retriever driving.RetrieverService,
	writer *HistoryWriter,
	cfg AnswerConfig,
) *AnswerGenerator {
	return &AnswerGenerator{
		retriever: retriever,
		llm:       deps.LLM,
		history:   deps.History,
		writer:    writer,
		prompts:   deps.Prompts,
		cfg:       cfg,
	}
}

// Answer produces a grounded reply for question.
// History failures degrade to answering without history. A retrieval or
// language model failure fails the request with domain.ErrGeneration.
func (g *AnswerGenerator) Answer(ctx context.Context, userID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}
	if g.llm == nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGeneration, domain.ErrLLMUnavailable)
	}

	req := &answerRequest{
		id:         uuid.New().String(),
		userID:     userID,
		question:   question,
		receivedAt: time.Now(),
	}

	for state := stateStart; state != stateDone; {
		logger.Debug("answer %s: %s", req.id, state)
		next, err := g.step(ctx, req, state)
		if err != nil {
			logger.Warn("answer %s: failed in %s: %v", req.id, state, err)
			return "", err
		}
		state = next
	}

	logger.Debug("answer %s: DONE (%d chars)", req.id, len(req.reply))
	return req.reply, nil
}

// Reply answers question and never fails: any error becomes domain.ApologyReply.
func (g *AnswerGenerator) Reply(ctx context.Context, userID, question string) string {
	reply, err := g.Answer(ctx, userID, question)
	if err != nil {
		logger.Error("reply to %s: %v", userID, err)
		return domain.ApologyReply
	}
	return reply
}

func (g *AnswerGenerator) step(ctx context.Context, req *answerRequest, state answerState) (answerState, error) {
	switch state {
	case stateStart:
		if g.historyEnabled() {
			return stateHistoryFetch, nil
		}
		return stateRetrieve, nil

	case stateHistoryFetch:
		req.transcript = g.fetchHistory(ctx, req)
		return stateRetrieve, nil

	case stateRetrieve:
		retrieved, err := g.retriever.Retrieve(ctx, req.question, g.cfg.TopK)
		if err != nil {
			return stateDone, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
		}
		req.context = retrieved
		return statePromptAssemble, nil

	case statePromptAssemble:
		req.messages = BuildPrompt(SystemPolicy(g.prompts), req.transcript, req.context, req.question)
		return stateGenerate, nil

	case stateGenerate:
		out, err := g.llm.Chat(ctx, req.messages, g.cfg.Chat)
		if err != nil {
			return stateDone, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
		}
		req.reply = domain.ClampReply(out)
		if req.reply == "" {
			req.reply = domain.FallbackReply
		}
		if g.historyEnabled() {
			return stateHistoryStore, nil
		}
		return stateDone, nil

	case stateHistoryStore:
		g.writer.Record(
			domain.Turn{UserID: req.userID, Role: domain.RoleUser, Content: req.question, Timestamp: req.receivedAt},
			domain.Turn{UserID: req.userID, Role: domain.RoleAssistant, Content: req.reply, Timestamp: time.Now()},
		)
		return stateDone, nil
	}

	return stateDone, fmt.Errorf("unknown answer state %s", state)
}

func (g *AnswerGenerator) historyEnabled() bool {
	return g.cfg.HistoryEnabled && g.history != nil && g.cfg.HistoryLimit > 0
}

// fetchHistory renders the user's recent turns oldest first.
// Any failure is logged and yields an empty transcript.
func (g *AnswerGenerator) fetchHistory(ctx context.Context, req *answerRequest) string {
	ctx, cancel := context.WithTimeout(ctx, historyFetchTimeout)
	defer cancel()

	turns, err := g.history.Recent(ctx, req.userID, g.cfg.HistoryLimit)
	if err != nil {
		logger.Warn("answer %s: %v; continuing without history", req.id, domain.Recoverable("history fetch", err))
		return ""
	}
	return domain.RenderTranscript(domain.OldestFirst(turns))
}
