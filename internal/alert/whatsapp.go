// Package alert delivers user-visible alerts when a recipe alarm fires.
//
// This file wraps the Whatsmeow client as a notification channel.
package alert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/doughlab/DoughPilot/internal/store"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// JIDSuffix is the WhatsApp JID suffix for regular users.
const JIDSuffix = "s.whatsapp.net"

// WhatsAppOpts holds configuration options for the WhatsApp notifier.
type WhatsAppOpts struct {
	DBDSN       string // whatsmeow device database connection string
	Recipient   string // phone number that receives step alerts
	QRPath      string // path to write login QR code
	NumericCode bool   // print numeric login code instead of QR code
}

// WhatsAppOption defines a configuration option for the WhatsApp notifier.
type WhatsAppOption func(*WhatsAppOpts)

// WithWhatsAppDBDSN sets the whatsmeow device database connection string.
func WithWhatsAppDBDSN(dsn string) WhatsAppOption {
	return func(o *WhatsAppOpts) {
		o.DBDSN = dsn
	}
}

// WithWhatsAppRecipient sets the phone number that receives step alerts.
func WithWhatsAppRecipient(to string) WhatsAppOption {
	return func(o *WhatsAppOpts) {
		o.Recipient = to
	}
}

// WithQRCodeOutput writes the login QR code to the given path instead of stdout.
func WithQRCodeOutput(path string) WhatsAppOption {
	return func(o *WhatsAppOpts) {
		o.QRPath = path
	}
}

// WithNumericCode prints a numeric login code instead of a QR code.
func WithNumericCode() WhatsAppOption {
	return func(o *WhatsAppOpts) {
		o.NumericCode = true
	}
}

// WhatsAppNotifier sends step alerts as WhatsApp messages.
type WhatsAppNotifier struct {
	client    *whatsmeow.Client
	recipient string
}

// NewWhatsAppNotifier connects a whatsmeow client and returns a notifier
// targeting the configured recipient. First use requires pairing via QR
// code (or numeric code) printed during startup.
func NewWhatsAppNotifier(opts ...WhatsAppOption) (*WhatsAppNotifier, error) {
	var cfg WhatsAppOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("WhatsApp notifier options", "DBDSN_set", cfg.DBDSN != "", "recipient_set", cfg.Recipient != "", "numeric", cfg.NumericCode)

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("whatsapp device database DSN not set")
	}
	if cfg.Recipient == "" {
		return nil, fmt.Errorf("whatsapp recipient not set")
	}

	// whatsmeow keeps its own device store; reuse the DSN-type detection so
	// a Postgres deployment needs only one database server.
	dbDriver := "sqlite3"
	if store.DetectDSNType(cfg.DBDSN) == "postgres" {
		dbDriver = "postgres"
	} else if !strings.Contains(cfg.DBDSN, "_foreign_keys") && !strings.Contains(cfg.DBDSN, "foreign_keys") {
		slog.Warn("SQLite database for WhatsApp does not appear to have foreign keys enabled; "+
			"whatsmeow recommends adding '?_foreign_keys=on' to the connection string",
			"dsn_example", "file:"+cfg.DBDSN+"?_foreign_keys=on")
	}

	ctx := context.Background()
	container, err := sqlstore.New(ctx, dbDriver, cfg.DBDSN, waLog.Stdout("Database", "INFO", true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize WhatsApp database store: %w", err)
	}
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device from WhatsApp store: %w", err)
	}

	waClient := whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "INFO", true))

	if waClient.Store.ID == nil {
		slog.Info("WhatsApp login required; starting QR code flow")
		qrChan, _ := waClient.GetQRChannel(context.Background())
		if err := waClient.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to WhatsApp during login: %w", err)
		}
		writer := io.Writer(os.Stdout)
		if cfg.QRPath != "" {
			f, ferr := os.Create(cfg.QRPath)
			if ferr != nil {
				return nil, fmt.Errorf("failed to create QR file: %w", ferr)
			}
			defer f.Close()
			writer = f
		}
		for evt := range qrChan {
			if evt.Event == "code" {
				if cfg.NumericCode {
					fmt.Fprintln(writer, evt.Code)
				} else {
					qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, writer)
				}
			} else {
				slog.Debug("WhatsApp login event", "event", evt.Event)
			}
		}
	} else {
		slog.Debug("WhatsApp already logged in, connecting to server")
		if err := waClient.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to WhatsApp server: %w", err)
		}
	}

	slog.Info("WhatsApp notifier connected", "recipient_set", true)
	return &WhatsAppNotifier{client: waClient, recipient: cfg.Recipient}, nil
}

// Notify sends the alert as a WhatsApp message to the configured recipient.
func (n *WhatsAppNotifier) Notify(ctx context.Context, title, body string) error {
	if n.client == nil {
		return fmt.Errorf("whatsapp client not initialized")
	}
	msg := FormatMessage(title, body)
	jid := types.NewJID(n.recipient, JIDSuffix)
	_, err := n.client.SendMessage(ctx, jid, &waE2E.Message{Conversation: &msg})
	if err != nil {
		slog.Error("Failed to send WhatsApp alert", "error", err)
		return fmt.Errorf("failed to send WhatsApp alert: %w", err)
	}
	slog.Debug("WhatsApp alert sent")
	return nil
}

// Disconnect closes the WhatsApp connection.
func (n *WhatsAppNotifier) Disconnect() {
	if n.client != nil {
		n.client.Disconnect()
	}
}
