// Package matrix is a thin adapter shell: it translates mautrix room
// message events into platform.InboundMessage and platform.Handler
// replies into Matrix sends. No business logic lives here.
package matrix

import (
	"context"
	"log/slog"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/hiveagent/hive/internal/platform"
)

// Config holds the Matrix homeserver connection details.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	DeviceID    string
}

// Adapter bridges a mautrix client to platform.Handler.
type Adapter struct {
	cfg     Config
	handler *platform.Handler
	logger  *slog.Logger

	client *mautrix.Client
}

// New constructs a Matrix adapter shell.
func New(cfg Config, handler *platform.Handler, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{cfg: cfg, handler: handler, logger: logger.With("adapter", "matrix")}
}

func (a *Adapter) Platform() string { return "matrix" }

// Start connects the client, registers the message handler, and begins
// syncing in the background.
func (a *Adapter) Start(ctx context.Context) error {
	client, err := mautrix.NewClient(a.cfg.Homeserver, id.UserID(a.cfg.UserID), a.cfg.AccessToken)
	if err != nil {
		return err
	}
	if a.cfg.DeviceID != "" {
		client.DeviceID = id.DeviceID(a.cfg.DeviceID)
	}
	a.client = client

	syncer := client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, a.handleMessage)

	go func() {
		if err := client.SyncWithContext(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("matrix sync stopped", "error", err)
		}
	}()
	return nil
}

// Stop ends the sync loop.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.client != nil {
		a.client.StopSync()
	}
	return nil
}

func (a *Adapter) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(a.cfg.UserID) {
		return
	}
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || content.MsgType != event.MsgText {
		return
	}

	out := a.handler.Handle(ctx, platform.InboundMessage{
		Platform:  "matrix",
		From:      evt.RoomID.String(),
		Text:      content.Body,
		MessageID: evt.ID.String(),
		Timestamp: evt.Timestamp.Time(),
	})

	reply := &event.MessageEventContent{MsgType: event.MsgText, Body: out.Text}
	if _, err := a.client.SendMessageEvent(ctx, id.RoomID(out.To), event.EventMessage, reply); err != nil {
		a.logger.Error("send matrix reply", "error", err)
	}
}
