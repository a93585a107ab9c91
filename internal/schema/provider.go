package schema

import "context"

// ChatOptions configures a single LLM chat request.
type ChatOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

func NewChatOptions(model string, maxTokens int, temperature float64) ChatOptions {
	return ChatOptions{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

// StreamProvider is the interface every streaming LLM backend must satisfy.
//
// Stream returns immediately with a frame channel; the provider closes the
// channel when the upstream stream ends. An error frame is always the last
// frame sent. A non-nil error return means the request could not be started
// at all (no channel is returned in that case).
type StreamProvider interface {
	Stream(ctx context.Context, messages Messages, tools []ToolDefinition, opts ChatOptions) (<-chan Frame, error)
	DefaultModel() string
}

// Completer is the non-streaming one-shot interface used by tools that need
// a single full response (resume analysis, summarisation).
type Completer interface {
	Complete(ctx context.Context, messages Messages, opts ChatOptions) (string, error)
}
