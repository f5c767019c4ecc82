package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q, want test-model", req.Model)
		}
		if req.Stream {
			t.Error("stream should be false")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != RoleSystem {
			t.Errorf("messages = %+v", req.Messages)
		}

		json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: RoleAssistant, Content: "hello back"},
		})
	}))
	defer srv.Close()

	client := NewOllama(srv.URL, "test-model")
	resp, err := client.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "be nice"},
		{Role: RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got := resp.Text(); got != "hello back" {
		t.Errorf("Text() = %q, want hello back", got)
	}
}

func TestOllamaGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewOllama(srv.URL, "test-model")
	if _, err := client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}); err == nil {
		t.Fatal("Generate() error = nil, want failure on 500")
	}
}

func TestOllamaIsRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if !NewOllama(srv.URL, "m").IsRunning(context.Background()) {
		t.Error("IsRunning() = false against healthy server")
	}

	srv.Close()
	if NewOllama(srv.URL, "m").IsRunning(context.Background()) {
		t.Error("IsRunning() = true against closed server")
	}
}
