// Package discord is a thin adapter shell: it translates discordgo events
// into platform.InboundMessage and platform.Handler replies into Discord
// sends. No business logic lives here.
package discord

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/hiveagent/hive/internal/platform"
)

// Config holds the Discord bot token.
type Config struct {
	Token string
}

// Adapter bridges a discordgo session to platform.Handler.
type Adapter struct {
	token   string
	handler *platform.Handler
	logger  *slog.Logger

	session *discordgo.Session
}

// New constructs a Discord adapter shell.
func New(cfg Config, handler *platform.Handler, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{token: cfg.Token, handler: handler, logger: logger.With("adapter", "discord")}
}

func (a *Adapter) Platform() string { return "discord" }

// Start opens the Discord session and registers the message handler.
func (a *Adapter) Start(ctx context.Context) error {
	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		return err
	}
	session.AddHandler(a.handleMessageCreate)
	if err := session.Open(); err != nil {
		return err
	}
	a.session = session
	return nil
}

// Stop closes the Discord session.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.session == nil {
		return nil
	}
	return a.session.Close()
}

func (a *Adapter) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	out := a.handler.Handle(context.Background(), platform.InboundMessage{
		Platform:  "discord",
		From:      m.ChannelID,
		Text:      m.Content,
		MessageID: m.ID,
		Timestamp: time.Now(),
	})
	if _, err := s.ChannelMessageSend(out.To, out.Text); err != nil {
		a.logger.Error("send discord reply", "error", err)
	}
}
