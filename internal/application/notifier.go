package application

import (
	"context"
	"log/slog"
)

// Notifier pushes operator alerts: failed window mutations, failed
// actions and fatal engine errors.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type NoopNotifier struct{}

func (n *NoopNotifier) Notify(_ context.Context, _ string) error {
	return nil
}

// alert delivers message and only logs a delivery failure.
func alert(ctx context.Context, n Notifier, logger *slog.Logger, message string) {
	if err := n.Notify(ctx, message); err != nil {
		logger.Error("notifying operator", "error", err)
	}
}
