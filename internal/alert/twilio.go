// Package alert delivers user-visible alerts when a recipe alarm fires.
//
// This file wraps the Twilio REST API as an SMS notification channel.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioOpts holds configuration options for the Twilio SMS notifier.
type TwilioOpts struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
}

// TwilioOption defines a configuration option for the Twilio SMS notifier.
type TwilioOption func(*TwilioOpts)

// WithTwilioAccountSID sets the Twilio account SID.
func WithTwilioAccountSID(sid string) TwilioOption {
	return func(o *TwilioOpts) { o.AccountSID = sid }
}

// WithTwilioAuthToken sets the Twilio auth token.
func WithTwilioAuthToken(token string) TwilioOption {
	return func(o *TwilioOpts) { o.AuthToken = token }
}

// WithTwilioFrom sets the sending phone number.
func WithTwilioFrom(from string) TwilioOption {
	return func(o *TwilioOpts) { o.From = from }
}

// WithTwilioTo sets the phone number that receives step alerts.
func WithTwilioTo(to string) TwilioOption {
	return func(o *TwilioOpts) { o.To = to }
}

// TwilioNotifier sends step alerts as SMS messages via Twilio.
type TwilioNotifier struct {
	client *twilio.RestClient
	from   string
	to     string
}

// NewTwilioNotifier creates a Twilio-backed notifier. Options fall back to
// the TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER and
// ALERT_SMS_TO environment variables.
func NewTwilioNotifier(opts ...TwilioOption) (*TwilioNotifier, error) {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.To == "" {
		cfg.To = os.Getenv("ALERT_SMS_TO")
	}
	slog.Debug("Twilio notifier config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"From_set", cfg.From != "",
		"To_set", cfg.To != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" || cfg.To == "" {
		return nil, fmt.Errorf("from and to numbers must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioNotifier{client: client, from: cfg.From, to: cfg.To}, nil
}

// Notify sends the alert as an SMS to the configured recipient.
func (n *TwilioNotifier) Notify(ctx context.Context, title, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.to)
	params.SetFrom(n.from)
	params.SetBody(FormatMessage(title, body))

	_, err := n.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Failed to send SMS alert", "error", err)
		return fmt.Errorf("failed to send SMS alert: %w", err)
	}
	slog.Debug("SMS alert sent")
	return nil
}
