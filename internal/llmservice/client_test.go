package llmservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"policy-rag/internal/models"
)

func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "mistralai/mistral-7b-instruct",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}

func newClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL: url,
		Key:     "Bearer test-key",
		Model:   "mistralai/mistral-7b-instruct",
		Referer: "https://localhost:5000",
		Title:   "Policy Analyzer",
		Timeout: timeout,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.Header.Get("HTTP-Referer"); got != "https://localhost:5000" {
			t.Errorf("referer = %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "Policy Analyzer" {
			t.Errorf("title = %q", got)
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content any    `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Model != "mistralai/mistral-7b-instruct" {
			t.Errorf("model = %q", body.Model)
		}
		if len(body.Messages) != 1 || body.Messages[0].Role != "user" {
			t.Errorf("messages = %+v", body.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse("## Missing Policies\n- MFA"))
	}))
	defer server.Close()

	got, err := newClient(t, server.URL, 5*time.Second).Complete(context.Background(), "analyze this")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "## Missing Policies\n- MFA" {
		t.Errorf("got %q", got)
	}
}

func TestCompleteServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
	}))
	defer server.Close()

	_, err := newClient(t, server.URL, 5*time.Second).Complete(context.Background(), "x")
	if !errors.Is(err, models.ErrLLMRequest) {
		t.Fatalf("expected ErrLLMRequest, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times, want exactly 1 (no retries)", calls.Load())
	}
}

func TestCompleteMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": "nope"`))
	}))
	defer server.Close()

	if _, err := newClient(t, server.URL, 5*time.Second).Complete(context.Background(), "x"); !errors.Is(err, models.ErrLLMRequest) {
		t.Fatalf("expected ErrLLMRequest, got %v", err)
	}
}

func TestCompleteTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := newClient(t, server.URL, 50*time.Millisecond).Complete(context.Background(), "x")
	if !errors.Is(err, models.ErrLLMTimeout) {
		t.Fatalf("expected ErrLLMTimeout, got %v", err)
	}
}

func TestNewRequiresKey(t *testing.T) {
	for _, key := range []string{"", "   ", "Bearer ", "Bearer", " Bearer \t"} {
		if _, err := New(Config{BaseURL: "http://localhost", Model: "m", Key: key}); err == nil {
			t.Errorf("key %q: expected error for missing key", key)
		}
	}
}

func TestBearerPrefixSentOnce(t *testing.T) {
	var auth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse("ok"))
	}))
	defer server.Close()

	c, err := New(Config{BaseURL: server.URL, Model: "m", Key: "  Bearer   test-key  ", Timeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Complete(context.Background(), "x"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := auth.Load(); got != "Bearer test-key" {
		t.Errorf("authorization = %v", got)
	}
}
