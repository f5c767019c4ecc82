package llm

import (
	"context"
	"strings"
)

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// BlockText is the only content-block type consumed by this service;
// providers may emit others (e.g. "thought") and they are ignored.
const BlockText = "text"

// Message is a role-tagged chat message sent to a model.
type Message struct {
	Role    string
	Content string
}

// Block is one typed content block of a model response.
type Block struct {
	Type string
	Text string
}

// Response is a raw model response: an ordered sequence of typed blocks.
// Providers that return a single text payload wrap it in one text block.
type Response struct {
	Blocks []Block
}

// Text normalizes the response into a single string by concatenating the
// text blocks and dropping everything else.
func (r Response) Text() string {
	var sb strings.Builder
	for _, b := range r.Blocks {
		if b.Type != BlockText {
			continue
		}
		sb.WriteString(b.Text)
	}
	return strings.TrimSpace(sb.String())
}

// TextResponse wraps a plain string as a single-block response.
func TextResponse(s string) Response {
	return Response{Blocks: []Block{{Type: BlockText, Text: s}}}
}

// Generator is the opaque model capability: role-tagged messages in,
// response out. Implemented by the Gemini, Ollama, and OpenRouter providers.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}
