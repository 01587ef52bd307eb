// Package alert delivers user-visible alerts when a recipe alarm fires.
//
// Two independent channels exist: an audible beep on the host (Sound) and an
// outbound message (Notifier, backed by WhatsApp or Twilio SMS). Both are
// best-effort; a failure in one never suppresses the other.
package alert

import (
	"context"
	"fmt"
	"log/slog"
)

// Notifier sends a user-visible notification message.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// LogNotifier writes notifications to the structured log. It is the
// fallback when no messaging channel is configured, so an alarm always
// leaves a visible trace.
type LogNotifier struct{}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Notify logs the notification at info level.
func (n *LogNotifier) Notify(ctx context.Context, title, body string) error {
	slog.Info("ALERT", "title", title, "body", body)
	return nil
}

// FormatMessage renders the default notification text for a step alert.
func FormatMessage(title, body string) string {
	if body == "" {
		return title
	}
	return fmt.Sprintf("%s\n%s", title, body)
}
