// Package mail delivers overdue reminders. The notifier depends only on Dispatcher;
// SMTPDispatcher sends real mail and LogDispatcher stands in during development.
package mail

import (
	"context"
	"log/slog"
)

// Dispatcher sends one message to a batch of recipients.
type Dispatcher interface {
	Send(ctx context.Context, subject, message string, recipients []string) error
}

// LogDispatcher records each batch in the log instead of sending it.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a dispatcher that only logs.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

// Send implements Dispatcher.
func (d *LogDispatcher) Send(_ context.Context, subject, message string, recipients []string) error {
	d.logger.Info("mail not sent, no SMTP host configured",
		"subject", subject,
		"recipients", recipients,
		"message", message,
	)
	return nil
}
