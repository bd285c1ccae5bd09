// Package telegram serves the chat assistant over a Telegram bot.
package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driving"
	"github.com/custodia-labs/kbchat/internal/core/services"
	"github.com/custodia-labs/kbchat/internal/logger"
)

const (
	typingInterval = 4 * time.Second
	answerTimeout  = 2 * time.Minute

	greeting = "Hi! Ask me anything about the knowledge base and I will answer from its documents."
	helpText = "Send a question as a plain message.\n\n/start - greeting\n/help - this message"
	busyText = "I'm handling a lot of questions right now. Please try again in a moment."
)

// ErrMissingToken is returned when the bot has no API token.
var ErrMissingToken = errors.New("telegram: bot token is required")

// sender is the part of *bot.Bot used to talk back to a chat.
type sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

// Bot answers incoming Telegram messages through an AnswerService.
// Each question runs on the worker pool so slow answers never block
// update polling.
type Bot struct {
	api     *bot.Bot
	send    sender
	answers driving.AnswerService
	pool    *services.WorkerPool

	typingInterval time.Duration
}

// New connects to the Telegram API with token.
func New(token string, answers driving.AnswerService, pool *services.WorkerPool, opts ...bot.Option) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	b := newBot(nil, answers, pool)
	opts = append([]bot.Option{bot.WithDefaultHandler(b.handleUpdate)}, opts...)
	api, err := bot.New(token, opts...)
	if err != nil {
		return nil, err
	}
	b.api = api
	b.send = api
	return b, nil
}

func newBot(send sender, answers driving.AnswerService, pool *services.WorkerPool) *Bot {
	return &Bot{
		send:           send,
		answers:        answers,
		pool:           pool,
		typingInterval: typingInterval,
	}
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	logger.Info("telegram bot polling for updates")
	b.api.Start(ctx)
	logger.Info("telegram bot stopped")
}

func (b *Bot) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil {
		return
	}
	msg := update.Message
	if msg.From == nil || msg.From.IsBot {
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if strings.HasPrefix(text, "/") {
		if b.handleCommand(ctx, msg, text) {
			return
		}
	}

	b.dispatch(ctx, msg, text)
}

// handleCommand replies to known slash commands and reports whether the
// message was consumed.
func (b *Bot) handleCommand(ctx context.Context, msg *models.Message, text string) bool {
	command := strings.Fields(text)[0]
	// Group chats address commands as /help@botname.
	command, _, _ = strings.Cut(command, "@")

	switch command {
	case "/start":
		b.reply(ctx, msg, greeting)
	case "/help":
		b.reply(ctx, msg, helpText)
	default:
		return false
	}
	return true
}

func (b *Bot) dispatch(ctx context.Context, msg *models.Message, question string) {
	userID := strconv.FormatInt(msg.From.ID, 10)
	logger.Debug("telegram: question from %s (%d chars)", userID, len(question))

	err := b.pool.TrySubmit(func(poolCtx context.Context) {
		b.answer(poolCtx, msg, userID, question)
	})
	if err == nil {
		return
	}

	if errors.Is(err, domain.ErrQueueFull) {
		logger.Warn("telegram: dropping question from %s: %v", userID, err)
		b.reply(ctx, msg, busyText)
		return
	}
	logger.Warn("telegram: cannot queue question from %s: %v", userID, err)
	b.reply(ctx, msg, domain.ApologyReply)
}

func (b *Bot) answer(ctx context.Context, msg *models.Message, userID, question string) {
	answerCtx, cancel := context.WithTimeout(ctx, answerTimeout)
	defer cancel()

	stopTyping := b.keepTyping(answerCtx, msg.Chat.ID)
	reply := b.answers.Reply(answerCtx, userID, question)
	stopTyping()

	b.reply(ctx, msg, reply)
}

// keepTyping shows the typing indicator until the returned func is called.
func (b *Bot) keepTyping(ctx context.Context, chatID int64) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(b.typingInterval)
		defer ticker.Stop()
		for {
			b.sendTyping(ctx, chatID)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (b *Bot) sendTyping(ctx context.Context, chatID int64) {
	_, err := b.send.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	})
	if err != nil && ctx.Err() == nil {
		logger.Debug("telegram: typing action failed: %v", err)
	}
}

func (b *Bot) reply(ctx context.Context, msg *models.Message, text string) {
	_, err := b.send.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          msg.Chat.ID,
		Text:            text,
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID},
	})
	if err != nil {
		logger.Error("telegram: sending reply to chat %d: %v", msg.Chat.ID, err)
	}
}
