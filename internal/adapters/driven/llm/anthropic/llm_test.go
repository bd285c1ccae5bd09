package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

func TestChat_JoinsSystemMessages(t *testing.T) {
	var got messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Blue"},{"type":"text","text":"."}]}`))
	}))
	defer srv.Close()

	svc, err := NewLLMService(Config{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	reply, err := svc.Chat(context.Background(), []domain.Message{
		domain.SystemMessage("rules"),
		domain.SystemMessage("history"),
		domain.QuestionMessage("ctx", "q"),
	}, driven.ChatOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Blue.", reply)
	assert.Equal(t, "rules\n\nhistory", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
}

func TestChat_RequiresUserMessage(t *testing.T) {
	svc, err := NewLLMService(Config{APIKey: "secret", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = svc.Chat(context.Background(), []domain.Message{domain.SystemMessage("rules")}, driven.ChatOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"overloaded", http.StatusTooManyRequests, `{}`, domain.ErrRateLimited},
		{"api error", http.StatusBadRequest, `{"error":{"type":"invalid_request_error","message":"bad"}}`, domain.ErrLLMUnavailable},
		{"empty content", http.StatusOK, `{"content":[]}`, domain.ErrLLMUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			svc, err := NewLLMService(Config{APIKey: "k", BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = svc.Chat(context.Background(), []domain.Message{domain.HumanMessage("hi")}, driven.ChatOptions{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewLLMService_RequiresKey(t *testing.T) {
	_, err := NewLLMService(Config{})
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}
