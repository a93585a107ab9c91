package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/inkwell/inkwell/internal/config"
)

// telegramPlaceholder stands in for the empty assistant message Telegram
// would otherwise reject; the first partial update replaces it.
const telegramPlaceholder = "…"

// TelegramTransport implements the transport over the Telegram bot API via
// long polling. Partial updates map to editMessageText and the cancel event
// comes from an inline "Stop" button on the assistant message.
type TelegramTransport struct {
	*subscribers
	cfg config.TelegramConfig
	bot *tgbotapi.BotAPI
}

func NewTelegramTransport(cfg config.TelegramConfig) (*TelegramTransport, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram: bot token not configured")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	return &TelegramTransport{
		subscribers: newSubscribers(),
		cfg:         cfg,
		bot:         bot,
	}, nil
}

func (t *TelegramTransport) Start(ctx context.Context) error {
	slog.Info("telegram: connected", "username", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update)
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

func (t *TelegramTransport) handleUpdate(update tgbotapi.Update) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.Data == "stop" && cb.Message != nil {
			t.dispatchCancel(CancelEvent{
				ConversationID: strconv.FormatInt(cb.Message.Chat.ID, 10),
				MessageID:      strconv.Itoa(cb.Message.MessageID),
			})
		}
		_, _ = t.bot.Request(tgbotapi.NewCallback(cb.ID, ""))
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	text := msg.Text
	if msg.Caption != "" {
		text = msg.Caption
	}
	t.dispatchMessage(InboundMessage{
		ConversationID: strconv.FormatInt(msg.Chat.ID, 10),
		MessageID:      strconv.Itoa(msg.MessageID),
		SenderID:       strconv.FormatInt(msg.From.ID, 10),
		Text:           text,
		Generated:      msg.From.IsBot,
	})
}

func (t *TelegramTransport) SendMessage(ctx context.Context, conversationID, text string, generated bool) (string, error) {
	chatID, err := parseChatID(conversationID)
	if err != nil {
		return "", err
	}
	m := tgbotapi.NewMessage(chatID, StringOrPlaceholder(text))
	if generated {
		m.ReplyMarkup = stopKeyboard()
	}
	sent, err := t.bot.Send(m)
	if err != nil {
		return "", fmt.Errorf("telegram: send message: %w", err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

func (t *TelegramTransport) UpdateMessage(ctx context.Context, conversationID, messageID, text string) error {
	chatID, err := parseChatID(conversationID)
	if err != nil {
		return err
	}
	msgID, err := strconv.Atoi(messageID)
	if err != nil {
		return fmt.Errorf("telegram: invalid message id %q", messageID)
	}
	edit := tgbotapi.NewEditMessageText(chatID, msgID, StringOrPlaceholder(text))
	kb := stopKeyboard()
	edit.ReplyMarkup = &kb
	if _, err := t.bot.Send(edit); err != nil {
		// Telegram rejects edits that leave the text unchanged.
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return fmt.Errorf("telegram: edit message: %w", err)
	}
	return nil
}

func (t *TelegramTransport) SendIndicator(ctx context.Context, conversationID, messageID string, state IndicatorState) error {
	chatID, err := parseChatID(conversationID)
	if err != nil {
		return err
	}
	switch state {
	case IndicatorThinking, IndicatorExternalSources, IndicatorGenerating:
		action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
		_, err := t.bot.Request(action)
		return err
	case IndicatorDone, IndicatorError:
		// Drop the Stop button once generation ends.
		if msgID, aerr := strconv.Atoi(messageID); aerr == nil {
			edit := tgbotapi.NewEditMessageReplyMarkup(chatID, msgID,
				tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow()))
			_, _ = t.bot.Request(edit)
		}
		return nil
	}
	return nil
}

// Join is a no-op: Telegram bots are added to chats by users.
func (t *TelegramTransport) Join(ctx context.Context, conversationID string) error { return nil }

func (t *TelegramTransport) Leave(ctx context.Context, conversationID string) error {
	chatID, err := parseChatID(conversationID)
	if err != nil {
		return err
	}
	// Private chats cannot be left; ignore the vendor's complaint.
	_, _ = t.bot.Request(tgbotapi.LeaveChatConfig{ChatID: chatID})
	return nil
}

func (t *TelegramTransport) OnMessage(conversationID string, fn func(InboundMessage)) (func(), error) {
	return t.onMessage(conversationID, fn), nil
}

func (t *TelegramTransport) OnCancel(fn func(CancelEvent)) func() {
	return t.onCancel(fn)
}

func stopKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏹ Stop", "stop"),
		),
	)
}

// StringOrPlaceholder substitutes the placeholder glyph for empty text.
func StringOrPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return telegramPlaceholder
	}
	return s
}

func parseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat_id: %s", s)
	}
	return id, nil
}
