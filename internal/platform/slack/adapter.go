// Package slack is a thin adapter shell: it translates Slack Socket Mode
// events into platform.InboundMessage and platform.Handler replies into
// Slack posts. No business logic lives here.
package slack

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/hiveagent/hive/internal/platform"
)

// Config holds Slack's two tokens: the bot (xoxb-) and app-level (xapp-)
// tokens required for Socket Mode.
type Config struct {
	BotToken string
	AppToken string
}

// Adapter bridges a Slack Socket Mode client to platform.Handler.
type Adapter struct {
	handler *platform.Handler
	logger  *slog.Logger

	client *slack.Client
	socket *socketmode.Client
	cancel context.CancelFunc
}

// New constructs a Slack adapter shell.
func New(cfg Config, handler *platform.Handler, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	client := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))
	socket := socketmode.New(client)
	return &Adapter{handler: handler, logger: logger.With("adapter", "slack"), client: client, socket: socket}
}

func (a *Adapter) Platform() string { return "slack" }

// Start begins the Socket Mode event loop in the background.
func (a *Adapter) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go a.handleEvents(ctx)
	go func() {
		if err := a.socket.Run(); err != nil && ctx.Err() == nil {
			a.logger.Error("slack socket mode stopped", "error", err)
		}
	}()
	return nil
}

// Stop cancels the Socket Mode event loop.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}

func (a *Adapter) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-a.socket.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			a.socket.Ack(*evt.Request)
			apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok || apiEvent.Type != slackevents.CallbackEvent {
				continue
			}
			inner, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent)
			if !ok || inner.BotID != "" {
				continue
			}
			if inner.SubType != "" && inner.SubType != "file_share" {
				continue
			}
			a.handleMessage(ctx, inner)
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, evt *slackevents.MessageEvent) {
	out := a.handler.Handle(ctx, platform.InboundMessage{
		Platform:  "slack",
		From:      evt.Channel,
		Text:      evt.Text,
		MessageID: evt.TimeStamp,
		Timestamp: parseSlackTimestamp(evt.TimeStamp),
	})
	if _, _, err := a.client.PostMessageContext(ctx, out.To, slack.MsgOptionText(out.Text, false)); err != nil {
		a.logger.Error("send slack reply", "error", err)
	}
}

func parseSlackTimestamp(ts string) time.Time {
	sec, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(int64(sec), 0)
}
