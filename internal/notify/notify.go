// Package notify delivers scheduled-message notifications.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Message is one outbound notification.
type Message struct {
	// To addresses the recipient in transport-specific form.
	To string
	// Text is the message body.
	Text string
}

// Validate checks message coherence.
func (m Message) Validate() error {
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("validate notification: empty text")
	}

	return nil
}

// Notifier delivers one notification.
type Notifier interface {
	// Send delivers msg or reports why it could not.
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes notifications to the structured log. It is the default
// delivery transport when no external one is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogNotifier{logger: logger}
}

// Send logs the notification.
func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("log notifier send: %w", err)
	}

	n.logger.Info("notification delivered", "to", msg.To, "text", msg.Text)

	return nil
}
