package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/metrics"
)

type chatRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, status int, body string, got *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestChat(url string) *Chat {
	return NewChat(ChatConfig{
		ClientConfig: ClientConfig{APIKey: "test-key", BaseURL: url},
		Model:        "chat-model",
	}, zap.NewNop())
}

func TestChat_Complete(t *testing.T) {
	var req chatRequest
	srv := chatServer(t, http.StatusOK, `{
		"id": "c1", "object": "chat.completion", "model": "chat-model",
		"choices": [{"index": 0, "finish_reason": "stop",
			"message": {"role": "assistant", "content": "  Rust uses ownership.  "}}],
		"usage": {"prompt_tokens": 120, "completion_tokens": 15, "total_tokens": 135}
	}`, &req)

	before := testutil.ToFloat64(metrics.GenerationTokensTotal.WithLabelValues("chat-model", "completion"))

	got, err := newTestChat(srv.URL).Complete(context.Background(), domain.CompletionRequest{
		System: "be brief", Prompt: "What is Rust?", MaxTokens: 500, Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got.Text != "Rust uses ownership." {
		t.Errorf("Text = %q", got.Text)
	}
	if got.Usage.TotalTokens != 135 || got.Usage.CompletionTokens != 15 {
		t.Errorf("Usage = %+v", got.Usage)
	}

	if req.Model != "chat-model" || req.MaxTokens != 500 {
		t.Errorf("request = %+v", req)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "What is Rust?" {
		t.Errorf("messages = %+v", req.Messages)
	}

	after := testutil.ToFloat64(metrics.GenerationTokensTotal.WithLabelValues("chat-model", "completion"))
	if after-before != 15 {
		t.Errorf("completion tokens metric delta = %v, want 15", after-before)
	}
}

func TestChat_Complete_NoSystemMessage(t *testing.T) {
	var req chatRequest
	srv := chatServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`, &req)

	if _, err := newTestChat(srv.URL).Complete(context.Background(), domain.CompletionRequest{Prompt: "q"}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", req.Messages)
	}
}

func TestChat_Complete_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api error", http.StatusInternalServerError, `{"error":{"message":"overloaded","type":"server_error"}}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, tt.status, tt.body, nil)
			_, err := newTestChat(srv.URL).Complete(context.Background(), domain.CompletionRequest{Prompt: "q"})
			if !errors.Is(err, domain.ErrGenerationFailed) {
				t.Fatalf("expected ErrGenerationFailed, got %v", err)
			}
		})
	}
}
