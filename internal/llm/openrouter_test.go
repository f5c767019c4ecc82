package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func completionBody(content string) completionResponse {
	var resp completionResponse
	resp.Choices = []struct {
		Message chatMessage `json:"message"`
	}{
		{Message: chatMessage{Role: RoleAssistant, Content: content}},
	}
	return resp
}

func TestOpenRouterGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "test/model" {
			t.Errorf("model = %q, want test/model", req.Model)
		}

		json.NewEncoder(w).Encode(completionBody("routed reply"))
	}))
	defer srv.Close()

	client := NewOpenRouterWithBaseURL("test-key", "test/model", srv.URL)
	resp, err := client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got := resp.Text(); got != "routed reply" {
		t.Errorf("Text() = %q, want routed reply", got)
	}
}

func TestOpenRouterRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(completionBody("finally"))
	}))
	defer srv.Close()

	client := NewOpenRouterWithBaseURL("k", "m", srv.URL)
	resp, err := client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got := resp.Text(); got != "finally" {
		t.Errorf("Text() = %q, want finally", got)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestOpenRouterGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewOpenRouterWithBaseURL("k", "m", srv.URL)
	_, err := client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("Generate() error = %v, want rate limited", err)
	}
	if got := calls.Load(); got != maxRetries {
		t.Errorf("calls = %d, want %d", got, maxRetries)
	}
}

func TestOpenRouterNonRetryableError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "bad key"}`))
	}))
	defer srv.Close()

	client := NewOpenRouterWithBaseURL("k", "m", srv.URL)
	_, err := client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("Generate() error = %v, want upstream status 401", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry on non-429)", got)
	}
}

func TestOpenRouterEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(completionResponse{})
	}))
	defer srv.Close()

	client := NewOpenRouterWithBaseURL("k", "m", srv.URL)
	if _, err := client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}); err == nil {
		t.Fatal("Generate() error = nil, want empty choices failure")
	}
}
