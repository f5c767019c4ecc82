package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/edustack/companion/internal/llm"
)

const (
	// historyThreshold is the turn count above which older history is
	// compressed; historyTail is how many recent turns survive verbatim.
	historyThreshold = 15
	historyTail      = 5

	summarizeTimeout = 15 * time.Second
)

// Summarizer bounds conversation-history size by digesting older turns into
// a short rolling summary.
type Summarizer struct {
	gen       llm.Generator
	threshold int
	tail      int
	timeout   time.Duration
}

// NewSummarizer creates a Summarizer with the default threshold and tail.
func NewSummarizer(gen llm.Generator) *Summarizer {
	return &Summarizer{
		gen:       gen,
		threshold: historyThreshold,
		tail:      historyTail,
		timeout:   summarizeTimeout,
	}
}

// Compress returns the history and summary to use for this turn. When the
// history is at or under the threshold both pass through unchanged. When it
// exceeds the threshold, the newest tail turns are kept verbatim and the
// evicted turns plus the prior summary are digested into a new summary that
// supersedes the old one. A failed or empty digest degrades to pass-through:
// nothing is lost, the prompt just stays large this turn.
func (s *Summarizer) Compress(ctx context.Context, history []llm.Message, prior string) ([]llm.Message, string) {
	if len(history) <= s.threshold {
		return history, prior
	}

	evicted := history[:len(history)-s.tail]
	tail := history[len(history)-s.tail:]

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.gen.Generate(ctx, summaryPrompt(evicted, prior))
	if err != nil {
		slog.Warn("history summarization failed, keeping full history", "error", err)
		return history, prior
	}

	digest := resp.Text()
	if digest == "" {
		slog.Warn("history summarization returned empty digest, keeping full history")
		return history, prior
	}

	slog.Debug("history compressed", "evicted", len(evicted), "kept", len(tail))
	return tail, digest
}

func summaryPrompt(evicted []llm.Message, prior string) []llm.Message {
	var sb strings.Builder
	if prior != "" {
		fmt.Fprintf(&sb, "Previous summary:\n%s\n\n", prior)
	}
	sb.WriteString("Conversation to fold in:\n")
	for _, m := range evicted {
		fmt.Fprintf(&sb, "[%s]: %s\n", m.Role, m.Content)
	}

	return []llm.Message{
		{
			Role: llm.RoleSystem,
			Content: "Condense the conversation below into a 2-3 sentence summary of this learner. " +
				"Preserve career goals, course progress, stated preferences, and learning challenges. " +
				"The summary replaces everything below, so keep anything still relevant from the previous summary. " +
				"Output only the summary.",
		},
		{Role: llm.RoleUser, Content: sb.String()},
	}
}
