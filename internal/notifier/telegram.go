package notifier

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"MarketPulse/internal/config"

	tb "gopkg.in/tucnak/telebot.v2"
)

// chatRecipient addresses a chat by numeric id or @channel name.
type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

// TelegramNotifier sends messages via the Telegram Bot API.
// A notifier built without a token and chat id drops everything silently.
type TelegramNotifier struct {
	bot    *tb.Bot
	chat   chatRecipient
	client *http.Client
}

// NewTelegramNotifier creates a notifier with optional proxy support.
// apiURL overrides the Bot API endpoint; empty means api.telegram.org.
func NewTelegramNotifier(cfg config.Telegram, proxyURL, apiURL string) (*TelegramNotifier, error) {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	client := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}

	n := &TelegramNotifier{chat: chatRecipient(cfg.ChatID), client: client}
	if !cfg.Enabled() {
		return n, nil
	}

	bot, err := tb.NewBot(tb.Settings{
		URL:     apiURL,
		Token:   cfg.BotToken,
		Client:  client,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	n.bot = bot
	return n, nil
}

// Enabled reports whether messages are actually delivered.
func (t *TelegramNotifier) Enabled() bool {
	return t.bot != nil
}

// SendText sends a Markdown message to the configured chat.
func (t *TelegramNotifier) SendText(text string) error {
	if t.bot == nil {
		return nil
	}
	if _, err := t.bot.Send(t.chat, text, tb.ModeMarkdown); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendPhoto uploads the image at path with a caption. The file is read at call time.
func (t *TelegramNotifier) SendPhoto(caption, path string) error {
	if t.bot == nil {
		return nil
	}
	photo := &tb.Photo{File: tb.FromDisk(path), Caption: caption}
	if _, err := t.bot.Send(t.chat, photo); err != nil {
		return fmt.Errorf("send photo %s: %w", path, err)
	}
	return nil
}

// Close releases pooled connections.
func (t *TelegramNotifier) Close() {
	t.client.CloseIdleConnections()
}
