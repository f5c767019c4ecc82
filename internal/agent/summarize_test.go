package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/edustack/companion/internal/llm"
)

// mockGenerator records calls and replays scripted responses.
type mockGenerator struct {
	responses []llm.Response
	errs      []error
	calls     [][]llm.Message
}

func (m *mockGenerator) Generate(ctx context.Context, messages []llm.Message) (llm.Response, error) {
	i := len(m.calls)
	m.calls = append(m.calls, messages)
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	var resp llm.Response
	if i < len(m.responses) {
		resp = m.responses[i]
	}
	return resp, err
}

func makeHistory(n int) []llm.Message {
	history := make([]llm.Message, n)
	for i := range history {
		role := llm.RoleUser
		if i%2 == 1 {
			role = llm.RoleAssistant
		}
		history[i] = llm.Message{Role: role, Content: fmt.Sprintf("turn %d", i)}
	}
	return history
}

func TestCompressUnderThresholdPassesThrough(t *testing.T) {
	gen := &mockGenerator{}
	s := NewSummarizer(gen)

	history := makeHistory(15)
	gotHistory, gotSummary := s.Compress(context.Background(), history, "prior")

	if len(gotHistory) != 15 {
		t.Errorf("history length = %d, want 15", len(gotHistory))
	}
	if gotSummary != "prior" {
		t.Errorf("summary = %q, want prior", gotSummary)
	}
	if len(gen.calls) != 0 {
		t.Errorf("no model call expected, got %d", len(gen.calls))
	}
}

func TestCompressOverThreshold(t *testing.T) {
	gen := &mockGenerator{responses: []llm.Response{llm.TextResponse("the digest")}}
	s := NewSummarizer(gen)

	history := makeHistory(18)
	gotHistory, gotSummary := s.Compress(context.Background(), history, "old summary")

	if len(gotHistory) != 5 {
		t.Fatalf("kept history length = %d, want 5", len(gotHistory))
	}
	if gotHistory[0].Content != "turn 13" {
		t.Errorf("first kept turn = %q, want turn 13", gotHistory[0].Content)
	}
	if gotSummary != "the digest" {
		t.Errorf("summary = %q, want the digest", gotSummary)
	}

	if len(gen.calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(gen.calls))
	}
	prompt := gen.calls[0]
	if len(prompt) != 2 || prompt[0].Role != llm.RoleSystem {
		t.Fatalf("unexpected prompt shape: %+v", prompt)
	}
	if !strings.Contains(prompt[1].Content, "old summary") {
		t.Error("prior summary missing from prompt")
	}
	if !strings.Contains(prompt[1].Content, "turn 0") {
		t.Error("evicted turns missing from prompt")
	}
	if strings.Contains(prompt[1].Content, "turn 13") {
		t.Error("kept tail turn should not appear in the digest prompt")
	}
}

func TestCompressFailureDegradesToPassThrough(t *testing.T) {
	tests := []struct {
		name string
		gen  *mockGenerator
	}{
		{"generator error", &mockGenerator{errs: []error{errors.New("boom")}}},
		{"empty digest", &mockGenerator{responses: []llm.Response{llm.TextResponse("")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSummarizer(tt.gen)
			history := makeHistory(20)

			gotHistory, gotSummary := s.Compress(context.Background(), history, "prior")

			if len(gotHistory) != 20 {
				t.Errorf("history length = %d, want unchanged 20", len(gotHistory))
			}
			if gotSummary != "prior" {
				t.Errorf("summary = %q, want prior", gotSummary)
			}
		})
	}
}
