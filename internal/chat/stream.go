package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/inkwell/inkwell/internal/config"
)

// StreamTransport talks to the hosted chat vendor: REST for outbound
// messages and events, a websocket long connection for inbound messages and
// cancel requests.
type StreamTransport struct {
	*subscribers
	cfg        config.StreamChatConfig
	httpClient *http.Client
}

func NewStreamTransport(cfg config.StreamChatConfig) *StreamTransport {
	return &StreamTransport{
		subscribers: newSubscribers(),
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *StreamTransport) Start(ctx context.Context) error {
	if t.cfg.APIKey == "" || t.cfg.WSURL == "" {
		slog.Warn("stream: apiKey or wsUrl not configured")
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		if err := t.connectOnce(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (t *StreamTransport) connectOnce(ctx context.Context) error {
	wsURL := t.cfg.WSURL + "?api_key=" + url.QueryEscape(t.cfg.APIKey) +
		"&user_id=" + url.QueryEscape(t.cfg.BotUserID)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		slog.Warn("stream: connect failed", "err", err)
		return err
	}
	defer conn.Close()
	slog.Info("stream: connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		t.handleEvent(conn, raw)
	}
}

func (t *StreamTransport) handleEvent(conn *websocket.Conn, raw []byte) {
	var frame struct {
		Type           string `json:"type"`
		ConversationID string `json:"conversation_id"`
		MessageID      string `json:"message_id"`
		Message        struct {
			ID          string `json:"id"`
			UserID      string `json:"user_id"`
			Text        string `json:"text"`
			Generated   bool   `json:"generated"`
			TaskContext string `json:"task_context"`
		} `json:"message"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return
	}

	switch frame.Type {
	case "ping":
		if conn != nil {
			pong, _ := json.Marshal(map[string]any{"type": "pong"})
			_ = conn.WriteMessage(websocket.TextMessage, pong)
		}
	case "message.new":
		t.dispatchMessage(InboundMessage{
			ConversationID: frame.ConversationID,
			MessageID:      frame.Message.ID,
			SenderID:       frame.Message.UserID,
			Text:           frame.Message.Text,
			Generated:      frame.Message.Generated || frame.Message.UserID == t.cfg.BotUserID,
			TaskContext:    frame.Message.TaskContext,
		})
	case "message.cancel":
		t.dispatchCancel(CancelEvent{
			ConversationID: frame.ConversationID,
			MessageID:      frame.MessageID,
		})
	}
}

func (t *StreamTransport) SendMessage(ctx context.Context, conversationID, text string, generated bool) (string, error) {
	body := map[string]any{
		"user_id":   t.cfg.BotUserID,
		"text":      text,
		"generated": generated,
	}
	var resp struct {
		Message struct {
			ID string `json:"id"`
		} `json:"message"`
	}
	path := fmt.Sprintf("/conversations/%s/messages", url.PathEscape(conversationID))
	if err := t.call(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	if resp.Message.ID == "" {
		return "", fmt.Errorf("stream: send message: vendor returned no message id")
	}
	return resp.Message.ID, nil
}

func (t *StreamTransport) UpdateMessage(ctx context.Context, conversationID, messageID, text string) error {
	path := fmt.Sprintf("/messages/%s", url.PathEscape(messageID))
	return t.call(ctx, http.MethodPut, path, map[string]any{"text": text}, nil)
}

func (t *StreamTransport) SendIndicator(ctx context.Context, conversationID, messageID string, state IndicatorState) error {
	path := fmt.Sprintf("/conversations/%s/events", url.PathEscape(conversationID))
	body := map[string]any{
		"type":       "assistant.status",
		"message_id": messageID,
		"state":      string(state),
	}
	return t.call(ctx, http.MethodPost, path, body, nil)
}

func (t *StreamTransport) Join(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/conversations/%s/members", url.PathEscape(conversationID))
	return t.call(ctx, http.MethodPost, path, map[string]any{"user_id": t.cfg.BotUserID}, nil)
}

func (t *StreamTransport) Leave(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/conversations/%s/members/%s",
		url.PathEscape(conversationID), url.PathEscape(t.cfg.BotUserID))
	return t.call(ctx, http.MethodDelete, path, nil, nil)
}

func (t *StreamTransport) OnMessage(conversationID string, fn func(InboundMessage)) (func(), error) {
	return t.onMessage(conversationID, fn), nil
}

func (t *StreamTransport) OnCancel(fn func(CancelEvent)) func() {
	return t.onCancel(fn)
}

func (t *StreamTransport) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("stream: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(t.cfg.BaseURL, "/")+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stream: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stream: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("stream: decode response: %w", err)
		}
	}
	return nil
}
