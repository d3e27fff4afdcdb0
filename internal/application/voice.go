package application

import (
	"context"
	"log/slog"

	"github.com/git-commit/this-building-rocks-assistant/internal/observe"
)

// voice speaks on a best-effort basis: failures are logged and counted,
// never returned.
type voice struct {
	speaker Speaker
	logger  *slog.Logger
	metrics *observe.Metrics
}

func (v *voice) say(ctx context.Context, text string) {
	if err := v.speaker.Speak(ctx, text); err != nil {
		v.logger.Warn("speaking", "text", text, "error", err)
		v.metrics.RecordSpeechFailure(ctx)
	}
}
