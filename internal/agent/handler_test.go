package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/inkwell/inkwell/internal/chat"
	"github.com/inkwell/inkwell/internal/schema"
)

func TestHandler_StreamsTextAndCompletes(t *testing.T) {
	tr := newFakeTransport()
	ev := &recEvents{}
	h := NewHandler(tr, "c1", "m1", ev, true)

	h.Run(context.Background(), feed(
		textFrame("Hello"),
		textFrame(" world"),
		textFrame("!"),
		finishFrame(schema.FinishStop),
	))

	if got := tr.lastText(); got != "Hello world!" {
		t.Errorf("final text = %q, want %q", got, "Hello world!")
	}
	tool, complete, failed := ev.counts()
	if tool != 0 || complete != 1 || failed != 0 {
		t.Errorf("events = %d/%d/%d, want 0/1/0", tool, complete, failed)
	}
	if ev.completes[0] != "Hello world!" {
		t.Errorf("completed with %q", ev.completes[0])
	}
	if tr.lastIndicator() != chat.IndicatorDone {
		t.Errorf("last indicator = %q, want done", tr.lastIndicator())
	}
}

// Every partial update must be a prefix of the next one; the display only
// ever grows.
func TestHandler_UpdatesAreMonotonic(t *testing.T) {
	tr := newFakeTransport()
	ev := &recEvents{}
	h := NewHandler(tr, "c1", "m1", ev, true)

	frames := make([]schema.Frame, 0, 13)
	full := ""
	for _, chunk := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		frames = append(frames, textFrame(chunk))
		full += chunk
	}
	frames = append(frames, finishFrame(schema.FinishStop))
	h.Run(context.Background(), feed(frames...))

	updates := tr.allUpdates()
	if len(updates) < 2 {
		t.Fatalf("expected batched intermediate flushes, got %d updates", len(updates))
	}
	prev := ""
	for i, u := range updates {
		if !strings.HasPrefix(u.text, prev) {
			t.Errorf("update %d %q is not an extension of %q", i, u.text, prev)
		}
		prev = u.text
	}
	if prev != full {
		t.Errorf("final text = %q, want %q", prev, full)
	}
}

func TestHandler_ToolCallFragmentAccumulation(t *testing.T) {
	tr := newFakeTransport()
	ev := &recEvents{}
	h := NewHandler(tr, "c1", "m1", ev, true)

	h.Run(context.Background(), feed(
		toolFrame("call_1", "web_search", `{"qu`),
		toolFrame("", "", `ery":"late`),
		toolFrame("", "", `st AI news"}`),
		finishFrame(schema.FinishToolCalls),
	))

	tool, complete, failed := ev.counts()
	if tool != 1 || complete != 0 || failed != 0 {
		t.Fatalf("events = %d/%d/%d, want 1/0/0", tool, complete, failed)
	}
	call := ev.toolCalls[0]
	if call.ID != "call_1" || call.Name != "web_search" {
		t.Errorf("unexpected call identity: %+v", call)
	}
	if q, _ := call.Args["query"].(string); q != "latest AI news" {
		t.Errorf("query = %q, want %q", q, "latest AI news")
	}
	if tr.countIndicator(chat.IndicatorExternalSources) != 1 {
		t.Error("expected a single external_sources indicator on first fragment")
	}
	if tr.countIndicator(chat.IndicatorDone) != 0 {
		t.Error("tool-call finalize must not mark the message done")
	}
}

func TestHandler_EmptyToolArguments(t *testing.T) {
	tr := newFakeTransport()
	ev := &recEvents{}
	h := NewHandler(tr, "c1", "m1", ev, true)

	h.Run(context.Background(), feed(
		toolFrame("call_1", "web_search", ""),
		finishFrame(schema.FinishToolCalls),
	))

	tool, complete, failed := ev.counts()
	if tool != 0 || complete != 0 || failed != 1 {
		t.Fatalf("events = %d/%d/%d, want 0/0/1", tool, complete, failed)
	}
	if tr.lastIndicator() != chat.IndicatorError {
		t.Errorf("last indicator = %q, want error", tr.lastIndicator())
	}
	if tr.lastText() != failureNotice {
		t.Errorf("expected failure notice, got %q", tr.lastText())
	}
}

func TestHandler_UnparseableToolArguments(t *testing.T) {
	tr := newFakeTransport()
	ev := &recEvents{}
	h := NewHandler(tr, "c1", "m1", ev, true)

	h.Run(context.Background(), feed(
		toolFrame("call_1", "web_search", `{"query":`),
		finishFrame(schema.FinishToolCalls),
	))

	if _, _, failed := ev.counts(); failed != 1 {
		t.Fatalf("expected a failure for unparseable arguments")
	}
}

func TestHandler_StreamEndsMidToolCall(t *testing.T) {
	tr := newFakeTransport()
	ev := &recEvents{}
	h := NewHandler(tr, "c1", "m1", ev, true)

	h.Run(context.Background(), feed(
		toolFrame("call_1", "web_search", `{"query":"weather"`),
	))

	tool, complete, failed := ev.counts()
	if tool != 0 || complete != 0 || failed != 1 {
		t.Fatalf("events = %d/%d/%d, want 0/0/1", tool, complete, failed)
	}
}

func TestHandler_StreamEndWithoutFinishCompletes(t *testing.T) {
	tr := newFakeTransport()
	ev := &recEvents{}
	h := NewHandler(tr, "c1", "m1", ev, true)

	h.Run(context.Background(), feed(textFrame("partial answer")))

	if _, complete, _ := ev.counts(); complete != 1 {
		t.Fatal("expected completion when the stream ends cleanly without a finish reason")
	}
	if tr.lastText() != "partial answer" {
		t.Errorf("final text = %q", tr.lastText())
	}
}

func TestHandler_ErrorFrameKeepsAccumulatedText(t *testing.T) {
	tr := newFakeTransport()
	ev := &recEvents{}
	h := NewHandler(tr, "c1", "m1", ev, true)

	h.Run(context.Background(), feed(
		textFrame("The answer is"),
		schema.Frame{Err: errors.New("connection reset")},
	))

	if _, _, failed := ev.counts(); failed != 1 {
		t.Fatal("expected failure event")
	}
	if tr.lastText() != "The answer is" {
		t.Errorf("expected accumulated text preserved, got %q", tr.lastText())
	}
	if tr.lastIndicator() != chat.IndicatorError {
		t.Errorf("last indicator = %q, want error", tr.lastIndicator())
	}
}

func TestHandler_CancelFinalizesOnceAndIgnoresLateFrames(t *testing.T) {
	tr := newFakeTransport()
	ev := &recEvents{}
	h := NewHandler(tr, "c1", "m1", ev, true)

	frames := make(chan schema.Frame)
	done := make(chan struct{})
	go func() {
		h.Run(context.Background(), frames)
		close(done)
	}()

	frames <- textFrame("Hello")
	time.Sleep(20 * time.Millisecond)
	h.Cancel(context.Background())

	// In-flight frames arriving after cancellation must be ignored.
	frames <- textFrame("XYZ")
	frames <- finishFrame(schema.FinishStop)
	close(frames)
	<-done

	want := "Hello\n\n" + stoppedMarker
	if got := tr.lastText(); got != want {
		t.Errorf("final text = %q, want %q", got, want)
	}
	for _, u := range tr.allUpdates() {
		if strings.Contains(u.text, "XYZ") {
			t.Errorf("late frame leaked into update %q", u.text)
		}
	}
	_, complete, failed := ev.counts()
	if complete != 1 || failed != 0 {
		t.Errorf("events complete/failed = %d/%d, want 1/0", complete, failed)
	}
	if n := tr.countIndicator(chat.IndicatorDone); n != 1 {
		t.Errorf("done indicator sent %d times, want 1", n)
	}
}

// The stopped marker is for the screen only; the completion event carries
// the pre-marker text so the marker never reaches history or model context.
func TestHandler_CancelCompletionExcludesStopMarker(t *testing.T) {
	tr := newFakeTransport()
	ev := &recEvents{}
	h := NewHandler(tr, "c1", "m1", ev, true)

	frames := make(chan schema.Frame)
	done := make(chan struct{})
	go func() {
		h.Run(context.Background(), frames)
		close(done)
	}()
	frames <- textFrame("Draft so far")
	time.Sleep(20 * time.Millisecond)
	if !h.Cancel(context.Background()) {
		t.Fatal("Cancel on a live handler must claim finalization")
	}
	close(frames)
	<-done

	if got := tr.lastText(); got != "Draft so far\n\n"+stoppedMarker {
		t.Errorf("displayed text = %q", got)
	}
	if _, complete, _ := ev.counts(); complete != 1 {
		t.Fatalf("completions = %d, want 1", complete)
	}
	if ev.completes[0] != "Draft so far" {
		t.Errorf("completed with %q, want the pre-marker text", ev.completes[0])
	}
	if h.Cancel(context.Background()) {
		t.Error("Cancel after finalize must report false")
	}
}

func TestHandler_CancelTwiceIsNoOp(t *testing.T) {
	tr := newFakeTransport()
	ev := &recEvents{}
	h := NewHandler(tr, "c1", "m1", ev, true)

	h.Cancel(context.Background())
	h.Cancel(context.Background())

	if _, complete, _ := ev.counts(); complete != 1 {
		t.Errorf("expected exactly one completion, got %d", complete)
	}
	if got := tr.lastText(); got != stoppedMarker {
		t.Errorf("final text = %q, want bare stopped marker", got)
	}
}

func TestHandler_ResumePassToolCallFallsBackToText(t *testing.T) {
	tr := newFakeTransport()
	ev := &recEvents{}
	h := NewHandler(tr, "c1", "m1", ev, false)

	h.Run(context.Background(), feed(
		textFrame("According to the results, "),
		toolFrame("call_2", "web_search", `{"query":"again"}`),
		finishFrame(schema.FinishToolCalls),
	))

	tool, complete, failed := ev.counts()
	if tool != 0 || complete != 1 || failed != 0 {
		t.Fatalf("events = %d/%d/%d, want 0/1/0", tool, complete, failed)
	}
	if !strings.HasPrefix(ev.completes[0], "According to the results,") {
		t.Errorf("completed with %q", ev.completes[0])
	}
}

func TestHandler_FinishAfterFinalizeIgnored(t *testing.T) {
	tr := newFakeTransport()
	ev := &recEvents{}
	h := NewHandler(tr, "c1", "m1", ev, true)

	h.Run(context.Background(), feed(
		textFrame("done"),
		finishFrame(schema.FinishStop),
		textFrame("late"),
		finishFrame(schema.FinishStop),
	))

	if _, complete, _ := ev.counts(); complete != 1 {
		t.Errorf("expected one completion, got %d", complete)
	}
	if tr.lastText() != "done" {
		t.Errorf("final text = %q, want %q", tr.lastText(), "done")
	}
}

func TestHandler_UpdateFailuresDoNotAbort(t *testing.T) {
	tr := newFakeTransport()
	tr.updateErr = errors.New("vendor down")
	ev := &recEvents{}
	h := NewHandler(tr, "c1", "m1", ev, true)

	h.Run(context.Background(), feed(
		textFrame("still going"),
		finishFrame(schema.FinishStop),
	))

	if _, complete, _ := ev.counts(); complete != 1 {
		t.Error("expected completion despite update failures")
	}
}
