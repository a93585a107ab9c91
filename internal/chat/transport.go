// Package chat abstracts the chat vendor behind a small transport contract.
// One backend is enabled at a time; the agent layer never talks to a vendor
// SDK directly.
package chat

import (
	"context"
	"sync"
)

// IndicatorState is the assistant status shown next to a message in the UI.
type IndicatorState string

const (
	IndicatorThinking        IndicatorState = "thinking"
	IndicatorExternalSources IndicatorState = "external_sources"
	IndicatorGenerating      IndicatorState = "generating"
	IndicatorDone            IndicatorState = "done"
	IndicatorError           IndicatorState = "error"
)

// InboundMessage is a message received from the chat vendor.
type InboundMessage struct {
	ConversationID string
	MessageID      string
	SenderID       string
	Text           string
	// Generated marks messages authored by the assistant itself.
	Generated bool
	// TaskContext, when present, replaces the agent's system prompt for the
	// rest of the conversation.
	TaskContext string
}

// CancelEvent asks the assistant to stop generating a specific message.
type CancelEvent struct {
	ConversationID string
	MessageID      string
}

// Transport is the contract every chat backend must satisfy.
//
// SendMessage creates a message (generated=true marks it as assistant
// output) and returns the vendor's message ID, used for partial updates and
// indicator events. Subscriptions return an unsubscribe func; callbacks run
// on the transport's event goroutine and must not block.
type Transport interface {
	// Start runs the backend's inbound event loop until ctx is cancelled.
	Start(ctx context.Context) error

	SendMessage(ctx context.Context, conversationID, text string, generated bool) (string, error)
	UpdateMessage(ctx context.Context, conversationID, messageID, text string) error
	SendIndicator(ctx context.Context, conversationID, messageID string, state IndicatorState) error

	Join(ctx context.Context, conversationID string) error
	Leave(ctx context.Context, conversationID string) error

	OnMessage(conversationID string, fn func(InboundMessage)) (func(), error)
	OnCancel(fn func(CancelEvent)) func()
}

// subscribers is the shared listener registry embedded by every backend.
type subscribers struct {
	mu         sync.Mutex
	nextID     int
	msgSubs    map[string]map[int]func(InboundMessage)
	cancelSubs map[int]func(CancelEvent)
}

func newSubscribers() *subscribers {
	return &subscribers{
		msgSubs:    make(map[string]map[int]func(InboundMessage)),
		cancelSubs: make(map[int]func(CancelEvent)),
	}
}

func (s *subscribers) onMessage(conversationID string, fn func(InboundMessage)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	if s.msgSubs[conversationID] == nil {
		s.msgSubs[conversationID] = make(map[int]func(InboundMessage))
	}
	s.msgSubs[conversationID][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.msgSubs[conversationID], id)
	}
}

func (s *subscribers) onCancel(fn func(CancelEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.cancelSubs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.cancelSubs, id)
	}
}

func (s *subscribers) dispatchMessage(msg InboundMessage) {
	s.mu.Lock()
	fns := make([]func(InboundMessage), 0, len(s.msgSubs[msg.ConversationID]))
	for _, fn := range s.msgSubs[msg.ConversationID] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}

func (s *subscribers) dispatchCancel(ev CancelEvent) {
	s.mu.Lock()
	fns := make([]func(CancelEvent), 0, len(s.cancelSubs))
	for _, fn := range s.cancelSubs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
