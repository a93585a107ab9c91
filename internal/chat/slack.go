package chat

import (
	"context"
	"fmt"
	"log/slog"

	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/inkwell/inkwell/internal/config"
)

// SlackTransport implements the transport via Slack Socket Mode. Partial
// updates map to chat.update; indicator states map to reactions on the
// assistant message; a block-action "Stop" button raises the cancel event.
type SlackTransport struct {
	*subscribers
	cfg       config.SlackConfig
	webClient *slackgo.Client
	smClient  *socketmode.Client
	botUserID string
}

func NewSlackTransport(cfg config.SlackConfig) (*SlackTransport, error) {
	if cfg.BotToken == "" || cfg.AppToken == "" {
		return nil, fmt.Errorf("slack: bot/app token not configured")
	}
	web := slackgo.New(cfg.BotToken, slackgo.OptionAppLevelToken(cfg.AppToken))
	return &SlackTransport{
		subscribers: newSubscribers(),
		cfg:         cfg,
		webClient:   web,
		smClient:    socketmode.New(web),
	}, nil
}

func (s *SlackTransport) Start(ctx context.Context) error {
	if resp, err := s.webClient.AuthTestContext(ctx); err == nil {
		s.botUserID = resp.UserID
		slog.Info("slack: connected", "bot_user_id", s.botUserID)
	}

	go s.smClient.RunContext(ctx) //nolint:errcheck

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-s.smClient.Events:
			if !ok {
				return nil
			}
			s.handleEvent(evt)
		}
	}
}

func (s *SlackTransport) handleEvent(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		s.smClient.Ack(*evt.Request)
		cb, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok || cb.InnerEvent.Type != "message" {
			return
		}
		s.handleInnerEvent(cb.InnerEvent)
	case socketmode.EventTypeInteractive:
		s.smClient.Ack(*evt.Request)
		cb, ok := evt.Data.(slackgo.InteractionCallback)
		if !ok || cb.Type != slackgo.InteractionTypeBlockActions {
			return
		}
		for _, action := range cb.ActionCallback.BlockActions {
			if action.ActionID == "stop_generation" {
				s.dispatchCancel(CancelEvent{
					ConversationID: cb.Channel.ID,
					MessageID:      cb.Container.MessageTs,
				})
			}
		}
	}
}

func (s *SlackTransport) handleInnerEvent(ev slackevents.EventsAPIInnerEvent) {
	data, ok := ev.Data.(map[string]interface{})
	if !ok {
		return
	}
	userID, _ := data["user"].(string)
	channel, _ := data["channel"].(string)
	text, _ := data["text"].(string)
	subtype, _ := data["subtype"].(string)
	ts, _ := data["ts"].(string)
	botID, _ := data["bot_id"].(string)

	if subtype != "" || userID == "" || channel == "" {
		return
	}
	s.dispatchMessage(InboundMessage{
		ConversationID: channel,
		MessageID:      ts,
		SenderID:       userID,
		Text:           text,
		Generated:      botID != "" || userID == s.botUserID,
	})
}

func (s *SlackTransport) SendMessage(ctx context.Context, conversationID, text string, generated bool) (string, error) {
	_, ts, err := s.webClient.PostMessageContext(ctx, conversationID,
		slackgo.MsgOptionText(StringOrPlaceholder(text), false))
	if err != nil {
		return "", fmt.Errorf("slack: post message: %w", err)
	}
	return ts, nil
}

func (s *SlackTransport) UpdateMessage(ctx context.Context, conversationID, messageID, text string) error {
	_, _, _, err := s.webClient.UpdateMessageContext(ctx, conversationID, messageID,
		slackgo.MsgOptionText(StringOrPlaceholder(text), false))
	if err != nil {
		return fmt.Errorf("slack: update message: %w", err)
	}
	return nil
}

var slackIndicatorEmoji = map[IndicatorState]string{
	IndicatorThinking:        "thought_balloon",
	IndicatorExternalSources: "mag",
	IndicatorGenerating:      "writing_hand",
	IndicatorError:           "x",
}

func (s *SlackTransport) SendIndicator(ctx context.Context, conversationID, messageID string, state IndicatorState) error {
	ref := slackgo.ItemRef{Channel: conversationID, Timestamp: messageID}
	if state == IndicatorDone || state == IndicatorError {
		for st, emoji := range slackIndicatorEmoji {
			if st == IndicatorError {
				continue
			}
			_ = s.webClient.RemoveReactionContext(ctx, emoji, ref)
		}
	}
	if emoji, ok := slackIndicatorEmoji[state]; ok {
		// Best-effort; a duplicate reaction is not a failure.
		_ = s.webClient.AddReactionContext(ctx, emoji, ref)
	}
	return nil
}

func (s *SlackTransport) Join(ctx context.Context, conversationID string) error {
	_, _, _, err := s.webClient.JoinConversationContext(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("slack: join %s: %w", conversationID, err)
	}
	return nil
}

func (s *SlackTransport) Leave(ctx context.Context, conversationID string) error {
	_, err := s.webClient.LeaveConversationContext(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("slack: leave %s: %w", conversationID, err)
	}
	return nil
}

func (s *SlackTransport) OnMessage(conversationID string, fn func(InboundMessage)) (func(), error) {
	return s.onMessage(conversationID, fn), nil
}

func (s *SlackTransport) OnCancel(fn func(CancelEvent)) func() {
	return s.onCancel(fn)
}
