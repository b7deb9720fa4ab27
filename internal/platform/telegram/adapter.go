// Package telegram is a thin adapter shell: it translates go-telegram/bot
// updates into platform.InboundMessage and platform.Handler replies into
// Telegram sends. No business logic lives here.
package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/hiveagent/hive/internal/platform"
)

// Config holds the Telegram bot token.
type Config struct {
	Token string
}

// Adapter bridges a go-telegram/bot instance to platform.Handler.
type Adapter struct {
	token   string
	handler *platform.Handler
	logger  *slog.Logger

	bot *bot.Bot
}

// New constructs a Telegram adapter shell.
func New(cfg Config, handler *platform.Handler, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{token: cfg.Token, handler: handler, logger: logger.With("adapter", "telegram")}
}

func (a *Adapter) Platform() string { return "telegram" }

// Start creates the bot and begins long polling in the background.
func (a *Adapter) Start(ctx context.Context) error {
	b, err := bot.New(a.token, bot.WithDefaultHandler(a.handleUpdate))
	if err != nil {
		return err
	}
	a.bot = b
	go b.Start(ctx)
	return nil
}

// Stop is a no-op: the bot's polling loop exits when ctx is cancelled.
func (a *Adapter) Stop(ctx context.Context) error {
	return nil
}

func (a *Adapter) handleUpdate(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	msg := update.Message
	out := a.handler.Handle(ctx, platform.InboundMessage{
		Platform:  "telegram",
		From:      strconv.FormatInt(msg.Chat.ID, 10),
		Text:      msg.Text,
		MessageID: strconv.Itoa(msg.ID),
		Timestamp: time.Unix(int64(msg.Date), 0),
	})
	chatID, err := strconv.ParseInt(out.To, 10, 64)
	if err != nil {
		a.logger.Error("parse telegram chat id", "error", err)
		return
	}
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: out.Text}); err != nil {
		a.logger.Error("send telegram reply", "error", err)
	}
}
