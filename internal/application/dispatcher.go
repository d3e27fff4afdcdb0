package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
	"github.com/git-commit/this-building-rocks-assistant/internal/observe"
)

const UsageHint = "Say the hotword then speak, or press Ctrl+C to quit..."

// Ports are the collaborators the dispatcher drives. Notifier and
// Conversation may be nil.
type Ports struct {
	Events       EventSource
	Speaker      Speaker
	Recorder     Recorder
	Conversation ConversationController
	Status       StatusIndicator
	Window       DeviceClient
	System       SystemController
	Notifier     Notifier
}

// Settings tune the dispatcher's behaviour.
type Settings struct {
	Confirm ConfirmConfig
	// Interactive enables the usage hint on session start.
	Interactive bool
	HintOut     io.Writer
}

// Option configures optional Dispatcher dependencies.
type Option func(*Dispatcher)

// WithMetrics replaces the global-provider metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher consumes recognition events one at a time, tracks the
// conversation phase and runs the handler for each recognized intent.
// Handlers, the confirmation dialog included, run inline: the next event is
// read only after the current one is fully handled.
type Dispatcher struct {
	events       EventSource
	status       StatusIndicator
	conversation ConversationController
	notifier     Notifier
	actions      *Actions
	settings     Settings
	logger       *slog.Logger
	metrics      *observe.Metrics

	mu     sync.RWMutex
	phase  domain.Phase
	turnID string
}

// NewDispatcher wires the handlers and the confirmation dialog to ports.
// The snapshot is the humidity reading reported on request.
func NewDispatcher(
	ports Ports,
	snapshot domain.DeviceSnapshot,
	settings Settings,
	logger *slog.Logger,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		events:       ports.Events,
		status:       ports.Status,
		conversation: ports.Conversation,
		notifier:     ports.Notifier,
		settings:     settings,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	if d.notifier == nil {
		d.notifier = &NoopNotifier{}
	}
	if d.conversation == nil {
		d.conversation = NoopConversation{}
	}
	if d.settings.HintOut == nil {
		d.settings.HintOut = os.Stdout
	}

	v := &voice{speaker: ports.Speaker, logger: logger, metrics: d.metrics}
	d.actions = &Actions{
		system:   ports.System,
		voice:    v,
		snapshot: snapshot,
		confirm: newConfirmationDialog(
			ports.Recorder, ports.Window, v, d.notifier, settings.Confirm, logger, d.metrics,
		),
	}
	return d
}

// Phase returns the current conversation phase. It is safe to call from
// other goroutines.
func (d *Dispatcher) Phase() domain.Phase {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.phase
}

// Ready reports an error until the engine has announced its session.
func (d *Dispatcher) Ready(context.Context) error {
	if d.Phase() == domain.PhaseNone {
		return errors.New("assistant session not started")
	}
	return nil
}

// Run starts the event source and processes events until ctx is cancelled,
// the stream fails, or the engine reports a fatal error, in which case the
// returned error wraps domain.ErrFatalAssistant.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("starting event source", "source", d.events.Name())
	if err := d.events.Start(ctx); err != nil {
		return fmt.Errorf("starting event source: %w", err)
	}
	defer func() {
		if err := d.events.Stop(); err != nil {
			d.logger.Warn("stopping event source", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ev, err := d.events.NextEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading event: %w", err)
		}
		if err := d.handle(ctx, ev); err != nil {
			return err
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev domain.Event) error {
	if ev == nil {
		return fmt.Errorf("%w: nil event", domain.ErrUnknownEvent)
	}
	d.metrics.RecordEvent(ctx, string(ev.Kind()))
	d.logger.Debug("event", "event", ev.Kind())

	switch e := ev.(type) {
	case domain.SessionReady:
		if d.setPhase(ctx, domain.PhaseReady) && d.settings.Interactive {
			fmt.Fprintln(d.settings.HintOut, UsageHint)
		}
	case domain.TurnStarted:
		d.startTurn()
		d.setPhase(ctx, domain.PhaseListening)
	case domain.SpeechRecognized:
		d.onSpeech(ctx, e)
	case domain.UtteranceEnded:
		d.setPhase(ctx, domain.PhaseThinking)
	case domain.TurnFinished, domain.TurnTimedOut, domain.NoResponse:
		d.setPhase(ctx, domain.PhaseReady)
	case domain.AssistantError:
		if !e.Fatal {
			d.logger.Warn("assistant reported a recoverable error")
			return nil
		}
		d.logger.Error("assistant reported a fatal error, stopping")
		alert(ctx, d.notifier, d.logger, "Assistant stopped after a fatal engine error")
		return domain.ErrFatalAssistant
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownEvent, ev)
	}
	return nil
}

func (d *Dispatcher) onSpeech(ctx context.Context, e domain.SpeechRecognized) {
	logger := d.turnLogger()
	if !e.HasText {
		logger.Debug("speech recognized without text")
		return
	}
	logger.Info("you said", "text", e.Text)

	intent := ClassifyIntent(e.Text)
	d.metrics.RecordIntent(ctx, string(intent))
	if intent == domain.IntentUnrecognized {
		return
	}

	ctx, span := observe.StartSpan(ctx, "dispatch.intent", trace.WithAttributes(
		attribute.String("intent", string(intent)),
	))
	var err error
	defer func() { observe.EndSpan(span, err) }()
	logger = observe.Logger(ctx, logger.With("intent", intent))

	if stopErr := d.conversation.StopConversation(ctx); stopErr != nil {
		logger.Warn("stopping conversation", "error", stopErr)
	}
	if intent.Irreversible() {
		logger.Warn("running irreversible action")
	}

	switch intent {
	case domain.IntentPowerOff:
		err = d.actions.PowerOff(ctx)
	case domain.IntentReboot:
		err = d.actions.Reboot(ctx)
	case domain.IntentReportIP:
		err = d.actions.ReportIP(ctx)
	case domain.IntentReportHumidity:
		outcome := d.actions.ReportHumidity(ctx)
		logger.Info("window confirmation finished", "outcome", outcome)
	}
	if err != nil {
		logger.Error("handling intent", "error", err)
		alert(ctx, d.notifier, logger, "Error: "+err.Error())
	}
}

// setPhase reports whether the phase changed. The status indicator is only
// updated on a change.
func (d *Dispatcher) setPhase(ctx context.Context, p domain.Phase) bool {
	d.mu.Lock()
	prev := d.phase
	if prev == p {
		d.mu.Unlock()
		return false
	}
	d.phase = p
	if p == domain.PhaseReady {
		d.turnID = ""
	}
	d.mu.Unlock()

	d.logger.Debug("phase changed", "from", prev, "phase", p)
	d.metrics.RecordPhase(ctx, string(p))
	if err := d.status.SetStatus(ctx, p); err != nil {
		d.logger.Warn("setting status", "phase", p, "error", err)
	}
	return true
}

func (d *Dispatcher) startTurn() {
	d.mu.Lock()
	d.turnID = uuid.NewString()
	d.mu.Unlock()
}

func (d *Dispatcher) turnLogger() *slog.Logger {
	d.mu.Lock()
	if d.turnID == "" {
		d.turnID = uuid.NewString()
	}
	id := d.turnID
	d.mu.Unlock()
	return d.logger.With("turn_id", id)
}
