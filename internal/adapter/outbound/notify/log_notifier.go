// Package notify provides Notifier implementations. The real chat
// delivery channel lives outside this module; the log notifier is the
// default sink so every event stays observable.
package notify

import (
	"context"
	"log/slog"

	"github.com/mark-ai1/Break-Management/internal/port/outbound"
)

// LogNotifier writes notifications to structured logs.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs via the given logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification. Never fails.
func (n *LogNotifier) Notify(ctx context.Context, msg outbound.Notification) error {
	attrs := []any{
		"audience", string(msg.Audience.Kind),
		"kind", string(msg.Kind),
		"session_id", msg.SessionID,
		"subject_id", msg.SubjectID,
		"category", msg.Category,
	}
	if msg.Reason != "" {
		attrs = append(attrs, "reason", msg.Reason)
	}
	if msg.FineAmount > 0 {
		attrs = append(attrs, "fine_amount", msg.FineAmount)
	}
	n.logger.Info("notification", attrs...)
	return nil
}

// Compile-time interface verification.
var _ outbound.Notifier = (*LogNotifier)(nil)
