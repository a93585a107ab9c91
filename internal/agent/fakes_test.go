package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/inkwell/inkwell/internal/chat"
	"github.com/inkwell/inkwell/internal/schema"
)

// fakeTransport records every outbound call and lets tests inject inbound
// messages and cancel events.
type fakeTransport struct {
	mu         sync.Mutex
	nextMsg    int
	updates    []msgUpdate
	indicators []chat.IndicatorState
	joined     []string
	left       []string
	msgFns     map[string][]func(chat.InboundMessage)
	cancelFns  []func(chat.CancelEvent)

	sendErr   error
	updateErr error
	joinErr   error
}

type msgUpdate struct {
	messageID string
	text      string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{msgFns: make(map[string][]func(chat.InboundMessage))}
}

func (f *fakeTransport) Start(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeTransport) SendMessage(ctx context.Context, conversationID, text string, generated bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.nextMsg++
	return fmt.Sprintf("m%d", f.nextMsg), nil
}

func (f *fakeTransport) UpdateMessage(ctx context.Context, conversationID, messageID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, msgUpdate{messageID: messageID, text: text})
	return nil
}

func (f *fakeTransport) SendIndicator(ctx context.Context, conversationID, messageID string, state chat.IndicatorState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indicators = append(f.indicators, state)
	return nil
}

func (f *fakeTransport) Join(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		return f.joinErr
	}
	f.joined = append(f.joined, conversationID)
	return nil
}

func (f *fakeTransport) Leave(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, conversationID)
	return nil
}

func (f *fakeTransport) OnMessage(conversationID string, fn func(chat.InboundMessage)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgFns[conversationID] = append(f.msgFns[conversationID], fn)
	return func() {}, nil
}

func (f *fakeTransport) OnCancel(fn func(chat.CancelEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelFns = append(f.cancelFns, fn)
	return func() {}
}

func (f *fakeTransport) allUpdates() []msgUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]msgUpdate, len(f.updates))
	copy(out, f.updates)
	return out
}

func (f *fakeTransport) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		return ""
	}
	return f.updates[len(f.updates)-1].text
}

func (f *fakeTransport) countIndicator(state chat.IndicatorState) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.indicators {
		if s == state {
			n++
		}
	}
	return n
}

func (f *fakeTransport) lastIndicator() chat.IndicatorState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.indicators) == 0 {
		return ""
	}
	return f.indicators[len(f.indicators)-1]
}

var _ chat.Transport = (*fakeTransport)(nil)

// recEvents records handler outcomes.
type recEvents struct {
	mu        sync.Mutex
	toolCalls []ToolInvocation
	completes []string
	fails     []error
}

func (r *recEvents) ToolCall(ctx context.Context, call ToolInvocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolCalls = append(r.toolCalls, call)
}

func (r *recEvents) Complete(ctx context.Context, finalText string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completes = append(r.completes, finalText)
}

func (r *recEvents) Failed(ctx context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fails = append(r.fails, err)
}

func (r *recEvents) counts() (tool, complete, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.toolCalls), len(r.completes), len(r.fails)
}

// scriptedStream is one canned provider response: either a frame sequence or
// a request-time error.
type scriptedStream struct {
	frames []schema.Frame
	err    error
}

type capturedCall struct {
	messages schema.Messages
	tools    []schema.ToolDefinition
}

// fakeProvider plays back scripted streams and records every request.
type fakeProvider struct {
	mu     sync.Mutex
	script []scriptedStream
	calls  []capturedCall
}

func (p *fakeProvider) Stream(ctx context.Context, messages schema.Messages, tools []schema.ToolDefinition, opts schema.ChatOptions) (<-chan schema.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, capturedCall{messages: messages.Clone(), tools: tools})
	if len(p.script) == 0 {
		return feed(), nil
	}
	s := p.script[0]
	p.script = p.script[1:]
	if s.err != nil {
		return nil, s.err
	}
	return feed(s.frames...), nil
}

func (p *fakeProvider) DefaultModel() string { return "fake-model" }

func (p *fakeProvider) capturedCalls() []capturedCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]capturedCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// fakeSearch implements schema.Tool and records queries. execHook, when set,
// runs while Execute is in flight so tests can interleave events with the
// search window.
type fakeSearch struct {
	mu       sync.Mutex
	queries  []string
	result   string
	execHook func()
}

func (s *fakeSearch) Name() string        { return "web_search" }
func (s *fakeSearch) Description() string { return "Search the web." }
func (s *fakeSearch) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`)
}

func (s *fakeSearch) Execute(ctx context.Context, params map[string]any) (string, error) {
	s.mu.Lock()
	q, _ := params["query"].(string)
	s.queries = append(s.queries, q)
	hook := s.execHook
	result := s.result
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return result, nil
}

var (
	_ schema.Tool           = (*fakeSearch)(nil)
	_ schema.StreamProvider = (*fakeProvider)(nil)
)

func testSettings() Settings {
	return Settings{
		SystemPrompt: "You are a helpful writing assistant.",
		HistoryLimit: 40,
		HistoryKeep:  20,
		ChatOptions:  schema.NewChatOptions("fake-model", 512, 0.2),
	}
}

// feed returns a closed channel preloaded with the given frames.
func feed(frames ...schema.Frame) <-chan schema.Frame {
	ch := make(chan schema.Frame, len(frames))
	for _, f := range frames {
		ch <- f
	}
	close(ch)
	return ch
}

func textFrame(s string) schema.Frame { return schema.Frame{TextDelta: s} }

func toolFrame(id, name, args string) schema.Frame {
	return schema.Frame{Tool: &schema.ToolCallDelta{ID: id, Name: name, Arguments: args}}
}

func finishFrame(r schema.FinishReason) schema.Frame { return schema.Frame{Finish: r} }
