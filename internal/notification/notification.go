package notification

import (
	"context"
	"log/slog"
)

const (
	// KindUserRegistered is sent after an account is created.
	KindUserRegistered = "user_registered"
	// KindUserBlocked is sent after a moderator blocks an account.
	KindUserBlocked = "user_blocked"
	// KindUserUnblocked is sent after a moderator restores an account.
	KindUserUnblocked = "user_unblocked"
	// KindUserDeleted is sent after an account is removed.
	KindUserDeleted = "user_deleted"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Actor       string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "notification",
		"kind", message.Kind,
		"destination", message.Destination,
		"actor", message.Actor,
		"body", message.Body,
	)
	return nil
}
