// Package alert sends operational notices to a Telegram chat.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxMessageRunes = 4000

// Notifier posts plain-text alerts. A Notifier without a bot only logs.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    *slog.Logger
}

// New returns a logging-only notifier when token or chatID is unset.
func New(token string, chatID int64, log *slog.Logger) (*Notifier, error) {
	if strings.TrimSpace(token) == "" || chatID == 0 {
		return &Notifier{log: log}, nil
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: 15 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &Notifier{api: api, chatID: chatID, log: log}, nil
}

func newWithAPI(api *tgbotapi.BotAPI, chatID int64, log *slog.Logger) *Notifier {
	return &Notifier{api: api, chatID: chatID, log: log}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.api != nil
}

// Notify never blocks past ctx; the bot API call itself is bounded by the http client timeout.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	if n == nil {
		return nil
	}
	if n.log != nil {
		n.log.Warn("ops alert", "text", text)
	}
	if n.api == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if utf8.RuneCountInString(text) > maxMessageRunes {
		text = string([]rune(text)[:maxMessageRunes]) + "…"
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram alert: %w", err)
	}
	return nil
}
