package chat

import (
	"fmt"

	"github.com/inkwell/inkwell/internal/config"
)

var (
	_ Transport = (*StreamTransport)(nil)
	_ Transport = (*TelegramTransport)(nil)
	_ Transport = (*SlackTransport)(nil)
)

// New builds the transport selected by cfg.Backend.
func New(cfg config.ChatConfig) (Transport, error) {
	switch cfg.Backend {
	case "", "stream":
		return NewStreamTransport(cfg.Stream), nil
	case "telegram":
		return NewTelegramTransport(cfg.Telegram)
	case "slack":
		return NewSlackTransport(cfg.Slack)
	}
	return nil, fmt.Errorf("chat: unknown backend %q", cfg.Backend)
}
