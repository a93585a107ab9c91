package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/inkwell/inkwell/internal/chat"
	"github.com/inkwell/inkwell/internal/schema"
)

const (
	// Partial updates are debounced: flush when flushInterval has elapsed
	// since the last flush or flushFrameBatch deltas have buffered,
	// whichever comes first.
	flushInterval   = 100 * time.Millisecond
	flushFrameBatch = 5

	stoppedMarker = "[Generation stopped by user]"
	failureNotice = "Sorry, I ran into a problem while writing this reply. Please try again."
)

// ToolInvocation is a fully accumulated and parsed tool call.
type ToolInvocation struct {
	ID   string
	Name string
	Args map[string]any
}

// Events receives the terminal outcome of one streamed response. Exactly one
// of the three methods fires per handler.
type Events interface {
	ToolCall(ctx context.Context, call ToolInvocation)
	Complete(ctx context.Context, finalText string)
	Failed(ctx context.Context, err error)
}

type toolBuffer struct {
	id   string
	name string
	args strings.Builder
}

// Handler consumes one response stream and drives the visible message:
// debounced partial updates while text arrives, tool-call fragment
// accumulation, and a single idempotent finalize however the stream ends.
//
// Run owns frame processing on the caller's goroutine; Cancel may arrive
// concurrently from the transport, so all mutable state sits behind mu and
// finalization is claimed exactly once.
type Handler struct {
	transport      chat.Transport
	conversationID string
	messageID      string
	events         Events
	allowTools     bool

	mu        sync.Mutex
	finalized bool
	text      strings.Builder
	pending   int
	lastFlush time.Time
	tool      *toolBuffer
}

func NewHandler(transport chat.Transport, conversationID, messageID string, events Events, allowTools bool) *Handler {
	return &Handler{
		transport:      transport,
		conversationID: conversationID,
		messageID:      messageID,
		events:         events,
		allowTools:     allowTools,
	}
}

// MessageID returns the vendor message this handler is writing into.
func (h *Handler) MessageID() string { return h.messageID }

// Run consumes frames until the channel closes. Frames arriving after
// finalization are drained and ignored.
func (h *Handler) Run(ctx context.Context, frames <-chan schema.Frame) {
	for frame := range frames {
		if h.isFinalized() {
			continue
		}
		h.handleFrame(ctx, frame)
	}
	if h.isFinalized() {
		return
	}
	// The stream ended without a finish reason.
	if h.hasOpenToolCall() {
		h.finalizeError(ctx, errors.New("stream ended with an unterminated tool call"))
		return
	}
	h.finalizeComplete(ctx)
}

func (h *Handler) handleFrame(ctx context.Context, frame schema.Frame) {
	switch {
	case frame.Err != nil:
		h.finalizeError(ctx, frame.Err)
		return
	case frame.Tool != nil:
		if first := h.appendTool(frame.Tool); first {
			h.indicator(ctx, chat.IndicatorExternalSources)
		}
	case frame.TextDelta != "":
		if text, flush := h.appendText(frame.TextDelta); flush {
			h.pushUpdate(ctx, text)
		}
	}

	switch frame.Finish {
	case schema.FinishToolCalls:
		h.finalizeToolCall(ctx)
	case schema.FinishStop, schema.FinishLength:
		h.finalizeComplete(ctx)
	}
}

// Cancel stops generation for this message: the accumulated text stays on
// screen with the stopped marker appended, and the turn completes with the
// pre-marker text so the marker never enters model context. Safe to call
// from any goroutine. Reports whether this call claimed finalization; false
// means the handler had already reached a terminal state.
func (h *Handler) Cancel(ctx context.Context) bool {
	if !h.claimFinalize() {
		return false
	}
	kept := h.currentText()
	display := stoppedMarker
	if kept != "" {
		display = kept + "\n\n" + stoppedMarker
	}
	h.pushUpdate(ctx, display)
	h.indicator(ctx, chat.IndicatorDone)
	h.events.Complete(ctx, kept)
	return true
}

// Dispose finalizes the handler without touching the vendor message or
// firing events. Used on agent teardown.
func (h *Handler) Dispose() {
	h.claimFinalize()
}

func (h *Handler) finalizeComplete(ctx context.Context) {
	if !h.claimFinalize() {
		return
	}
	text := h.currentText()
	h.pushUpdate(ctx, text)
	h.indicator(ctx, chat.IndicatorDone)
	h.events.Complete(ctx, text)
}

func (h *Handler) finalizeToolCall(ctx context.Context) {
	if !h.claimFinalize() {
		return
	}
	h.mu.Lock()
	buf := h.tool
	h.mu.Unlock()

	if !h.allowTools {
		// The resume pass declares no tools; if the model asks anyway,
		// complete with whatever text accumulated.
		slog.Warn("tool call requested on resume pass, completing with text",
			"conversation", h.conversationID, "message", h.messageID)
		text := h.currentText()
		h.pushUpdate(ctx, text)
		h.indicator(ctx, chat.IndicatorDone)
		h.events.Complete(ctx, text)
		return
	}

	call, err := parseToolBuffer(buf)
	if err != nil {
		h.failFinalized(ctx, err)
		return
	}
	h.events.ToolCall(ctx, call)
}

func (h *Handler) finalizeError(ctx context.Context, err error) {
	if !h.claimFinalize() {
		return
	}
	h.failFinalized(ctx, err)
}

// failFinalized runs the error path after finalization has been claimed.
func (h *Handler) failFinalized(ctx context.Context, err error) {
	slog.Error("generation failed",
		"conversation", h.conversationID, "message", h.messageID, "err", err)
	text := h.currentText()
	if text == "" {
		text = failureNotice
	}
	h.pushUpdate(ctx, text)
	h.indicator(ctx, chat.IndicatorError)
	h.events.Failed(ctx, err)
}

func parseToolBuffer(buf *toolBuffer) (ToolInvocation, error) {
	if buf == nil || buf.name == "" {
		return ToolInvocation{}, errors.New("finish reason tool_calls with no accumulated tool call")
	}
	raw := strings.TrimSpace(buf.args.String())
	if raw == "" {
		return ToolInvocation{}, fmt.Errorf("tool call %s arrived with empty arguments", buf.name)
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return ToolInvocation{}, fmt.Errorf("tool call %s arguments unparseable: %w", buf.name, err)
	}
	return ToolInvocation{ID: buf.id, Name: buf.name, Args: args}, nil
}

// appendText buffers a text delta and reports whether a flush is due,
// returning the full text so far when it is.
func (h *Handler) appendText(delta string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finalized {
		return "", false
	}
	h.text.WriteString(delta)
	h.pending++
	if h.pending < flushFrameBatch && time.Since(h.lastFlush) < flushInterval {
		return "", false
	}
	h.pending = 0
	h.lastFlush = time.Now()
	return h.text.String(), true
}

// appendTool accumulates a tool-call fragment and reports whether it was the
// first one.
func (h *Handler) appendTool(delta *schema.ToolCallDelta) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finalized {
		return false
	}
	first := h.tool == nil
	if first {
		h.tool = &toolBuffer{}
	}
	if delta.ID != "" {
		h.tool.id = delta.ID
	}
	if delta.Name != "" {
		h.tool.name = delta.Name
	}
	h.tool.args.WriteString(delta.Arguments)
	return first
}

func (h *Handler) currentText() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return strings.TrimSpace(h.text.String())
}

func (h *Handler) isFinalized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finalized
}

func (h *Handler) hasOpenToolCall() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tool != nil
}

// claimFinalize flips the handler into its terminal state exactly once.
func (h *Handler) claimFinalize() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finalized {
		return false
	}
	h.finalized = true
	return true
}

func (h *Handler) pushUpdate(ctx context.Context, text string) {
	if err := h.transport.UpdateMessage(ctx, h.conversationID, h.messageID, text); err != nil {
		slog.Warn("partial update failed",
			"conversation", h.conversationID, "message", h.messageID, "err", err)
	}
}

func (h *Handler) indicator(ctx context.Context, state chat.IndicatorState) {
	if err := h.transport.SendIndicator(ctx, h.conversationID, h.messageID, state); err != nil {
		slog.Warn("indicator update failed",
			"conversation", h.conversationID, "message", h.messageID, "state", state, "err", err)
	}
}
