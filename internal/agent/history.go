package agent

import (
	"sync"

	"github.com/inkwell/inkwell/internal/schema"
)

// History is the in-memory conversation window for one agent. Slot 0 always
// holds the system prompt; when the window grows past limit it is truncated
// to the system prompt plus the most recent keep entries.
type History struct {
	mu    sync.Mutex
	msgs  []schema.Message
	limit int
	keep  int
}

func NewHistory(systemPrompt string, limit, keep int) *History {
	if limit <= 0 {
		limit = 40
	}
	if keep <= 0 || keep >= limit {
		keep = limit / 2
	}
	return &History{
		msgs:  []schema.Message{schema.NewSystemMessage(systemPrompt)},
		limit: limit,
		keep:  keep,
	}
}

// SetSystem replaces the system prompt in place; the rest of the window is
// untouched.
func (h *History) SetSystem(prompt string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs[0] = schema.NewSystemMessage(prompt)
}

// AddUser appends a user message.
func (h *History) AddUser(content string) {
	h.add(schema.NewUserMessage(content))
}

// AddAssistant appends an assistant message.
func (h *History) AddAssistant(content string) {
	h.add(schema.NewAssistantMessage(content))
}

// AddNote appends a system-role entry (tool results, context notes) after
// the existing window; slot 0 stays the system prompt.
func (h *History) AddNote(content string) {
	h.add(schema.NewSystemMessage(content))
}

func (h *History) add(msg schema.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
	if len(h.msgs) > h.limit {
		truncated := make([]schema.Message, 0, h.keep+1)
		truncated = append(truncated, h.msgs[0])
		truncated = append(truncated, h.msgs[len(h.msgs)-h.keep:]...)
		h.msgs = truncated
	}
}

// Snapshot returns an independent copy of the current window.
func (h *History) Snapshot() schema.Messages {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]schema.Message, len(h.msgs))
	copy(out, h.msgs)
	return schema.Messages{Messages: out}
}

// Len returns the number of entries including the system prompt.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}
