// Package schema contains the core contracts shared across inkwell packages.
// Concrete implementations live in their respective packages; this package is
// the single canonical source of truth for the message, frame, tool and
// provider definitions.
package schema

// Message is one entry in the conversation history.
//
// Role is one of: "system", "user", "assistant". Tool results are carried as
// system-role entries so histories replay cleanly against OpenAI-compatible
// endpoints that reject orphan tool messages.
type Message struct {
	Role    string
	Content string
}

func NewSystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}

func NewUserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}
