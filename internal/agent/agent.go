// Package agent implements the per-conversation assistant: streamed response
// handling, the two-pass search turn, bounded history and lifecycle
// management.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/inkwell/inkwell/internal/chat"
	"github.com/inkwell/inkwell/internal/schema"
	"github.com/inkwell/inkwell/internal/shared/llmutils"
)

var errSearchQueryMissing = errors.New("model requested web_search without a query")

// Settings carries the per-agent knobs resolved from config.
type Settings struct {
	SystemPrompt string
	HistoryLimit int
	HistoryKeep  int
	ChatOptions  schema.ChatOptions
}

// Agent owns one conversation: it subscribes to inbound messages and cancel
// events, keeps the bounded history, and runs each turn as at most two model
// passes (tool pass, then a resume pass with no tools declared).
type Agent struct {
	conversationID string
	transport      chat.Transport
	provider       schema.StreamProvider
	search         schema.Tool
	history        *History
	opts           schema.ChatOptions
	systemPrompt   string

	baseCtx context.Context
	stop    context.CancelFunc

	// turnMu serializes turns so interleaved inbound messages never share
	// a handler.
	turnMu sync.Mutex

	mu         sync.Mutex
	current    *Handler
	stopped    string
	lastActive time.Time
	unsubs     []func()
	closed     bool
}

// New constructs an Agent and wires its transport subscriptions. The caller
// is expected to have joined the conversation already.
func New(conversationID string, transport chat.Transport, provider schema.StreamProvider, search schema.Tool, settings Settings) (*Agent, error) {
	ctx, stop := context.WithCancel(context.Background())
	a := &Agent{
		conversationID: conversationID,
		transport:      transport,
		provider:       provider,
		search:         search,
		history:        NewHistory(settings.SystemPrompt, settings.HistoryLimit, settings.HistoryKeep),
		opts:           settings.ChatOptions,
		systemPrompt:   settings.SystemPrompt,
		baseCtx:        ctx,
		stop:           stop,
		lastActive:     time.Now(),
	}

	unsubMsg, err := transport.OnMessage(conversationID, func(msg chat.InboundMessage) {
		go a.HandleMessage(msg)
	})
	if err != nil {
		stop()
		return nil, err
	}
	unsubCancel := transport.OnCancel(a.handleCancel)
	a.unsubs = []func(){unsubMsg, unsubCancel}
	return a, nil
}

func (a *Agent) ConversationID() string { return a.conversationID }

// LastActive returns the time of the last inbound message.
func (a *Agent) LastActive() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastActive
}

// HandleMessage runs one full turn for an inbound message. Self-generated
// and blank messages are ignored.
func (a *Agent) HandleMessage(msg chat.InboundMessage) {
	if msg.Generated || strings.TrimSpace(msg.Text) == "" {
		return
	}
	a.touch()

	a.turnMu.Lock()
	defer a.turnMu.Unlock()
	if a.isClosed() {
		return
	}
	ctx := a.baseCtx

	a.history.AddUser(msg.Text)
	if msg.TaskContext != "" {
		a.history.SetSystem(a.systemPrompt + "\n\nTask context: " + msg.TaskContext)
	}

	messageID, err := a.transport.SendMessage(ctx, a.conversationID, "", true)
	if err != nil {
		slog.Error("create assistant message failed",
			"conversation", a.conversationID, "err", err)
		return
	}
	a.indicator(ctx, messageID, chat.IndicatorThinking)

	tools := []schema.ToolDefinition{schema.DefinitionOf(a.search)}
	frames, err := a.provider.Stream(ctx, a.history.Snapshot(), tools, a.opts)
	if err != nil {
		a.failTurn(ctx, messageID, err)
		return
	}

	h := NewHandler(a.transport, a.conversationID, messageID, &passEvents{agent: a, messageID: messageID}, true)
	a.setCurrent(h)
	// A stop may have slipped in before the handler was installed.
	if a.stopRequested(messageID) {
		h.Cancel(ctx)
	}
	h.Run(ctx, frames)
	a.clearCurrent(h)
}

// runSearchAndResume executes the web search and the no-tools resume pass,
// writing into the same vendor message.
func (a *Agent) runSearchAndResume(ctx context.Context, messageID string, call ToolInvocation) {
	query, _ := call.Args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		a.failTurn(ctx, messageID, errSearchQueryMissing)
		return
	}
	slog.Info("running tool",
		"conversation", a.conversationID, "call", llmutils.ToolHint(call.Name, call.Args))

	result, err := a.search.Execute(ctx, call.Args)
	if err != nil {
		// The tool contract degrades to text; a real error here is a bug,
		// but the turn still continues with what we have.
		result = "Error: " + err.Error()
	}

	// A stop may have arrived while the search ran, when no handler owned
	// the message. Discard the result and end the turn here.
	if a.stopRequested(messageID) {
		slog.Info("generation stopped during search, discarding result",
			"conversation", a.conversationID, "message", messageID)
		a.stopTurn(ctx, messageID)
		return
	}

	a.history.AddNote("Web search results for \"" + query + "\":\n\n" + result +
		"\n\nAnswer the user's message using these results. Cite sources inline where they help.")

	a.indicator(ctx, messageID, chat.IndicatorGenerating)

	frames, err := a.provider.Stream(ctx, a.history.Snapshot(), nil, a.opts)
	if err != nil {
		a.failTurn(ctx, messageID, err)
		return
	}
	h := NewHandler(a.transport, a.conversationID, messageID,
		&passEvents{agent: a, messageID: messageID, resumed: true}, false)
	a.setCurrent(h)
	if a.stopRequested(messageID) {
		h.Cancel(ctx)
	}
	h.Run(ctx, frames)
	a.clearCurrent(h)
}

// failTurn reports a failure for which no handler owns the message (the
// request never started, or the tool pass left nothing behind).
func (a *Agent) failTurn(ctx context.Context, messageID string, err error) {
	slog.Error("turn failed", "conversation", a.conversationID, "message", messageID, "err", err)
	if uerr := a.transport.UpdateMessage(ctx, a.conversationID, messageID, failureNotice); uerr != nil {
		slog.Warn("failure notice write failed",
			"conversation", a.conversationID, "message", messageID, "err", uerr)
	}
	a.indicator(ctx, messageID, chat.IndicatorError)
}

func (a *Agent) completeTurn(text string) {
	if strings.TrimSpace(text) != "" {
		a.history.AddAssistant(text)
	}
}

func (a *Agent) handleCancel(ev chat.CancelEvent) {
	if ev.ConversationID != a.conversationID {
		return
	}
	a.mu.Lock()
	h := a.current
	a.mu.Unlock()
	if h != nil && h.MessageID() == ev.MessageID && h.Cancel(a.baseCtx) {
		slog.Info("cancelling generation",
			"conversation", a.conversationID, "message", ev.MessageID)
		return
	}
	// No live handler owned the message: the tool pass has finalized and the
	// search is running between passes. Record the stop so the resume pass
	// never starts.
	a.mu.Lock()
	a.stopped = ev.MessageID
	a.mu.Unlock()
	slog.Info("stop recorded between passes",
		"conversation", a.conversationID, "message", ev.MessageID)
}

// stopRequested consumes a recorded stop for messageID.
func (a *Agent) stopRequested(messageID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped != messageID {
		return false
	}
	a.stopped = ""
	return true
}

// stopTurn finalizes a message the user stopped while no handler owned it:
// the stopped marker replaces the placeholder and the turn ends without the
// resume pass. Nothing is appended to history.
func (a *Agent) stopTurn(ctx context.Context, messageID string) {
	if err := a.transport.UpdateMessage(ctx, a.conversationID, messageID, stoppedMarker); err != nil {
		slog.Warn("stopped marker write failed",
			"conversation", a.conversationID, "message", messageID, "err", err)
	}
	a.indicator(ctx, messageID, chat.IndicatorDone)
}

// Close tears the agent down: subscriptions removed, any in-flight handler
// disposed mid-stream, the conversation left.
func (a *Agent) Close() error {
	a.shutdown(true)
	return nil
}

// discard tears the agent down without leaving the conversation. Used for
// the instance that loses a registry install race, where the conversation
// still belongs to the winning agent.
func (a *Agent) discard() {
	a.shutdown(false)
}

func (a *Agent) shutdown(leave bool) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	h := a.current
	a.current = nil
	unsubs := a.unsubs
	a.unsubs = nil
	a.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if h != nil {
		h.Dispose()
	}
	a.stop()

	if !leave {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.transport.Leave(ctx, a.conversationID); err != nil {
		slog.Warn("leave conversation failed", "conversation", a.conversationID, "err", err)
	}
}

func (a *Agent) touch() {
	a.mu.Lock()
	a.lastActive = time.Now()
	a.mu.Unlock()
}

func (a *Agent) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *Agent) setCurrent(h *Handler) {
	a.mu.Lock()
	a.current = h
	a.mu.Unlock()
}

func (a *Agent) clearCurrent(h *Handler) {
	a.mu.Lock()
	if a.current == h {
		a.current = nil
	}
	a.mu.Unlock()
}

func (a *Agent) indicator(ctx context.Context, messageID string, state chat.IndicatorState) {
	if err := a.transport.SendIndicator(ctx, a.conversationID, messageID, state); err != nil {
		slog.Warn("indicator update failed",
			"conversation", a.conversationID, "message", messageID, "state", state, "err", err)
	}
}

// passEvents routes handler outcomes back into the agent. resumed marks the
// second (no-tools) pass.
type passEvents struct {
	agent     *Agent
	messageID string
	resumed   bool
}

func (e *passEvents) ToolCall(ctx context.Context, call ToolInvocation) {
	e.agent.runSearchAndResume(ctx, e.messageID, call)
}

func (e *passEvents) Complete(ctx context.Context, finalText string) {
	e.agent.completeTurn(finalText)
}

func (e *passEvents) Failed(ctx context.Context, err error) {
	// The handler already surfaced the failure in the UI.
	_ = err
}
