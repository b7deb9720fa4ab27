// Package whatsapp is a thin adapter shell: it translates whatsmeow events
// into platform.InboundMessage and platform.Handler replies into WhatsApp
// sends. No business logic lives here.
package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hiveagent/hive/internal/platform"
)

// Config holds the WhatsApp device session path.
type Config struct {
	// SessionDir holds the whatsmeow SQLite device store. Created if missing.
	SessionDir string
}

// Adapter bridges a whatsmeow client to platform.Handler.
type Adapter struct {
	sessionDir string
	handler    *platform.Handler
	logger     *slog.Logger

	store  *sqlstore.Container
	client *whatsmeow.Client
	cancel context.CancelFunc
}

// New constructs a WhatsApp adapter shell.
func New(cfg Config, handler *platform.Handler, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{sessionDir: cfg.SessionDir, handler: handler, logger: logger.With("adapter", "whatsapp")}
}

func (a *Adapter) Platform() string { return "whatsapp" }

// Start opens the device store, connects, and prints a pairing QR code to
// the log the first time the device has no saved session.
func (a *Adapter) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := os.MkdirAll(a.sessionDir, 0o755); err != nil {
		return err
	}
	dbPath := filepath.Join(a.sessionDir, "session.db")

	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", dbPath), waLog.Noop)
	if err != nil {
		return err
	}
	a.store = container

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return err
	}

	a.client = whatsmeow.NewClient(device, waLog.Noop)
	a.client.AddEventHandler(a.handleEvent)

	if a.client.Store.ID == nil {
		qrChan, err := a.client.GetQRChannel(ctx)
		if err != nil {
			return err
		}
		if err := a.client.Connect(); err != nil {
			return err
		}
		go a.logPairingCodes(ctx, qrChan)
		return nil
	}

	return a.client.Connect()
}

// logPairingCodes renders each pairing QR as ASCII to the log until the
// device logs in or the channel closes.
func (a *Adapter) logPairingCodes(ctx context.Context, qrChan <-chan whatsmeow.QRChannelItem) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-qrChan:
			if !ok {
				return
			}
			if evt.Event != "code" {
				continue
			}
			qr, err := qrcode.New(evt.Code, qrcode.Medium)
			if err != nil {
				a.logger.Error("render whatsapp pairing qr", "error", err)
				continue
			}
			a.logger.Info("scan this QR code with WhatsApp to pair\n" + qr.ToString(false))
		}
	}
}

// Stop disconnects the client and closes the device store.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.client != nil {
		a.client.Disconnect()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

func (a *Adapter) handleEvent(evt interface{}) {
	msg, ok := evt.(*events.Message)
	if !ok {
		return
	}
	if msg.Info.Chat.Server == "broadcast" || msg.Info.IsFromMe {
		return
	}
	text := msg.Message.GetConversation()
	if text == "" {
		if ext := msg.Message.GetExtendedTextMessage(); ext != nil {
			text = ext.GetText()
		}
	}
	if text == "" {
		return
	}

	out := a.handler.Handle(context.Background(), platform.InboundMessage{
		Platform:  "whatsapp",
		From:      msg.Info.Chat.String(),
		Text:      text,
		MessageID: msg.Info.ID,
		Timestamp: msg.Info.Timestamp,
	})

	jid, err := types.ParseJID(out.To)
	if err != nil {
		a.logger.Error("parse whatsapp jid", "error", err)
		return
	}
	waMsg := &waE2E.Message{Conversation: proto.String(out.Text)}
	if _, err := a.client.SendMessage(context.Background(), jid, waMsg); err != nil {
		a.logger.Error("send whatsapp reply", "error", err)
	}
}
