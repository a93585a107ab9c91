package chat

import (
	"testing"

	"github.com/inkwell/inkwell/internal/config"
)

func newTestStream() *StreamTransport {
	return NewStreamTransport(config.StreamChatConfig{
		BaseURL:   "http://localhost:0",
		APIKey:    "test-key",
		BotUserID: "bot-1",
	})
}

func TestStreamHandleEvent_NewMessage(t *testing.T) {
	tr := newTestStream()

	var got []InboundMessage
	unsub, err := tr.OnMessage("c1", func(m InboundMessage) { got = append(got, m) })
	if err != nil {
		t.Fatalf("OnMessage: %v", err)
	}
	defer unsub()

	tr.handleEvent(nil, []byte(`{
		"type": "message.new",
		"conversation_id": "c1",
		"message": {"id": "m1", "user_id": "u1", "text": "hello", "task_context": "editor"}
	}`))

	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	m := got[0]
	if m.ConversationID != "c1" || m.MessageID != "m1" || m.SenderID != "u1" {
		t.Errorf("unexpected message identity: %+v", m)
	}
	if m.Text != "hello" || m.TaskContext != "editor" {
		t.Errorf("unexpected payload: %+v", m)
	}
	if m.Generated {
		t.Error("user message flagged as generated")
	}
}

func TestStreamHandleEvent_OwnMessageFlaggedGenerated(t *testing.T) {
	tr := newTestStream()

	var got []InboundMessage
	unsub, _ := tr.OnMessage("c1", func(m InboundMessage) { got = append(got, m) })
	defer unsub()

	tr.handleEvent(nil, []byte(`{
		"type": "message.new",
		"conversation_id": "c1",
		"message": {"id": "m2", "user_id": "bot-1", "text": "streamed reply"}
	}`))

	if len(got) != 1 || !got[0].Generated {
		t.Fatalf("expected own message marked generated, got %+v", got)
	}
}

func TestStreamHandleEvent_Cancel(t *testing.T) {
	tr := newTestStream()

	var got []CancelEvent
	unsub := tr.OnCancel(func(ev CancelEvent) { got = append(got, ev) })
	defer unsub()

	tr.handleEvent(nil, []byte(`{"type": "message.cancel", "conversation_id": "c1", "message_id": "m1"}`))

	if len(got) != 1 {
		t.Fatalf("expected 1 cancel event, got %d", len(got))
	}
	if got[0].ConversationID != "c1" || got[0].MessageID != "m1" {
		t.Errorf("unexpected cancel event: %+v", got[0])
	}
}

func TestStreamHandleEvent_RoutesByConversation(t *testing.T) {
	tr := newTestStream()

	var c1, c2 int
	u1, _ := tr.OnMessage("c1", func(InboundMessage) { c1++ })
	u2, _ := tr.OnMessage("c2", func(InboundMessage) { c2++ })
	defer u1()
	defer u2()

	tr.handleEvent(nil, []byte(`{"type":"message.new","conversation_id":"c1","message":{"id":"m1","user_id":"u1","text":"hi"}}`))
	tr.handleEvent(nil, []byte(`{"type":"message.new","conversation_id":"c1","message":{"id":"m2","user_id":"u1","text":"again"}}`))

	if c1 != 2 || c2 != 0 {
		t.Errorf("expected c1=2 c2=0, got c1=%d c2=%d", c1, c2)
	}
}

func TestStreamHandleEvent_UnsubscribeStopsDelivery(t *testing.T) {
	tr := newTestStream()

	var count int
	unsub, _ := tr.OnMessage("c1", func(InboundMessage) { count++ })

	payload := []byte(`{"type":"message.new","conversation_id":"c1","message":{"id":"m1","user_id":"u1","text":"hi"}}`)
	tr.handleEvent(nil, payload)
	unsub()
	tr.handleEvent(nil, payload)

	if count != 1 {
		t.Errorf("expected 1 delivery after unsubscribe, got %d", count)
	}
}

func TestStreamHandleEvent_MalformedJSONIgnored(t *testing.T) {
	tr := newTestStream()
	var count int
	unsub, _ := tr.OnMessage("c1", func(InboundMessage) { count++ })
	defer unsub()

	tr.handleEvent(nil, []byte(`{not json`))
	tr.handleEvent(nil, []byte(`{"type":"unknown.event"}`))

	if count != 0 {
		t.Errorf("expected no deliveries, got %d", count)
	}
}
