package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
	"github.com/git-commit/this-building-rocks-assistant/internal/observe"
	"go.opentelemetry.io/otel/attribute"
)

const (
	PhraseWindowOpening = "Ok, I am opening the window!"
	PhraseWindowFailed  = "Sorry, I could not open the window."
	PhraseDeclined      = "Sure thing."
)

// Outcome is how a window confirmation ended.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeDeclined Outcome = "declined"
	// OutcomeFailed means the answer was yes but the window did not open.
	OutcomeFailed Outcome = "failed"
	// OutcomeAborted means ctx was cancelled before an answer was classified.
	OutcomeAborted Outcome = "aborted"
)

// ConfirmConfig names the window the dialog acts on.
type ConfirmConfig struct {
	WindowDeviceID string
	// SettleDelay lets the question finish playing before recording starts.
	SettleDelay time.Duration
}

// ConfirmationDialog asks nothing itself: the question is the humidity
// report spoken right before Run. It listens for exactly one answer and
// opens the window only on an explicit yes.
type ConfirmationDialog struct {
	recorder Recorder
	window   DeviceClient
	voice    *voice
	notifier Notifier
	cfg      ConfirmConfig
	logger   *slog.Logger
	metrics  *observe.Metrics
}

func newConfirmationDialog(
	recorder Recorder,
	window DeviceClient,
	v *voice,
	notifier Notifier,
	cfg ConfirmConfig,
	logger *slog.Logger,
	metrics *observe.Metrics,
) *ConfirmationDialog {
	return &ConfirmationDialog{
		recorder: recorder,
		window:   window,
		voice:    v,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

func (c *ConfirmationDialog) Run(ctx context.Context) Outcome {
	ctx, span := observe.StartSpan(ctx, "confirm.window")
	outcome := c.run(ctx)
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	span.End()

	if outcome != OutcomeAborted {
		c.metrics.RecordConfirmation(ctx, string(outcome))
	}
	return outcome
}

func (c *ConfirmationDialog) run(ctx context.Context) Outcome {
	if err := sleepCtx(ctx, c.cfg.SettleDelay); err != nil {
		return OutcomeAborted
	}

	answer, err := c.listen(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeAborted
		}
		c.logger.Warn("confirmation not understood, treating as no", "error", err)
	}
	c.logger.Info("confirmation answer", "text", answer)

	if !IsAffirmative(answer) {
		c.voice.say(ctx, PhraseDeclined)
		return OutcomeDeclined
	}

	req := domain.OpenWindowRequest(c.cfg.WindowDeviceID)
	if err := c.window.PatchDevice(ctx, req); err != nil {
		c.logger.Error("opening window",
			"device_id", req.DeviceID,
			"kind", domain.DeviceErrorKind(err),
			"error", err,
		)
		msg := fmt.Sprintf("Opening window %s failed: %s", req.DeviceID, err.Error())
		alert(ctx, c.notifier, c.logger, msg)
		c.voice.say(ctx, PhraseWindowFailed)
		return OutcomeFailed
	}

	c.voice.say(ctx, PhraseWindowOpening)
	return OutcomeAccepted
}

func (c *ConfirmationDialog) listen(ctx context.Context) (string, error) {
	var text string
	err := c.recorder.WithRecordingSession(ctx, func(s RecognitionSession) error {
		rec, err := s.RecognizeOnce(ctx)
		if err != nil {
			return fmt.Errorf("recognizing answer: %w", err)
		}
		text = rec.Text
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
