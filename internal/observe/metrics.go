// Package observe holds the OpenTelemetry instruments and tracing helpers
// used by the dispatcher and its collaborators. Metrics are exported for
// Prometheus scraping through [InitProvider]; tests build a private
// [Metrics] with [NewMetrics] and a manual reader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/git-commit/this-building-rocks-assistant"

type Metrics struct {
	// EventsReceived counts engine events by attribute "kind".
	EventsReceived metric.Int64Counter

	// IntentsDispatched counts classified utterances by attribute "intent".
	IntentsDispatched metric.Int64Counter

	// PhaseChanges counts conversation phase transitions by attribute "phase".
	PhaseChanges metric.Int64Counter

	// Confirmations counts confirmation dialogs by attribute "outcome".
	Confirmations metric.Int64Counter

	// DeviceRequests counts device API calls by "op" and "status".
	DeviceRequests metric.Int64Counter

	// DeviceRequestDuration tracks device API latency by "op".
	DeviceRequestDuration metric.Float64Histogram

	// SpeechFailures counts swallowed speech output errors.
	SpeechFailures metric.Int64Counter
}

var latencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.EventsReceived, err = m.Int64Counter("assistant.events.received",
		metric.WithDescription("Engine events consumed by the dispatcher, by kind."),
	); err != nil {
		return nil, err
	}
	if met.IntentsDispatched, err = m.Int64Counter("assistant.intents.dispatched",
		metric.WithDescription("Recognized utterances by classified intent."),
	); err != nil {
		return nil, err
	}
	if met.PhaseChanges, err = m.Int64Counter("assistant.phase.changes",
		metric.WithDescription("Conversation phase transitions, by target phase."),
	); err != nil {
		return nil, err
	}
	if met.Confirmations, err = m.Int64Counter("assistant.confirmations",
		metric.WithDescription("Confirmation dialogs by outcome."),
	); err != nil {
		return nil, err
	}
	if met.DeviceRequests, err = m.Int64Counter("assistant.device.requests",
		metric.WithDescription("Device API requests by operation and status."),
	); err != nil {
		return nil, err
	}
	if met.DeviceRequestDuration, err = m.Float64Histogram("assistant.device.request.duration",
		metric.WithDescription("Device API request latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SpeechFailures, err = m.Int64Counter("assistant.speech.failures",
		metric.WithDescription("Speech output errors that were swallowed."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide instance bound to the global
// meter provider. Call it after [InitProvider] so instruments are exported.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: creating default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

func (m *Metrics) RecordEvent(ctx context.Context, kind string) {
	m.EventsReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordIntent(ctx context.Context, intent string) {
	m.IntentsDispatched.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", intent)))
}

func (m *Metrics) RecordPhase(ctx context.Context, phase string) {
	m.PhaseChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", phase)))
}

func (m *Metrics) RecordConfirmation(ctx context.Context, outcome string) {
	m.Confirmations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordDeviceRequest(ctx context.Context, op, status string, seconds float64) {
	m.DeviceRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("status", status),
	))
	m.DeviceRequestDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("op", op)))
}

func (m *Metrics) RecordSpeechFailure(ctx context.Context) {
	m.SpeechFailures.Add(ctx, 1)
}
