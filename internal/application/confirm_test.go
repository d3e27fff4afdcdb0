package application_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/git-commit/this-building-rocks-assistant/internal/application"
	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
	"github.com/git-commit/this-building-rocks-assistant/internal/observe"
)

const humidityQuestion = "What's the humidity inside"

func TestDispatcher_HumidityReportOpensSession(t *testing.T) {
	r := newRig(domain.Recognized(humidityQuestion))
	r.recorder.answer = application.Recognition{Text: "no"}
	if err := r.run(r.dispatcher(55.0, application.Settings{})); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(r.speaker.spoken) == 0 {
		t.Fatal("nothing spoken")
	}
	first := r.speaker.spoken[0]
	if !strings.Contains(first, "55") || !strings.Contains(first, "percent") {
		t.Errorf("humidity report: got %q", first)
	}
	if strings.Contains(first, "55.0") {
		t.Errorf("humidity report should not carry a trailing .0: %q", first)
	}

	want := []string{
		"stop",
		"speak:" + application.HumidityPhrase(55.0),
		"session:open",
		"recognize",
		"session:close",
		"speak:" + application.PhraseDeclined,
	}
	if !slices.Equal(r.j.entries, want) {
		t.Errorf("journal: got %v, want %v", r.j.entries, want)
	}
}

func TestConfirmation_Answers(t *testing.T) {
	tests := []struct {
		name         string
		answer       string
		recognizeErr error
		wantPatches  int
		wantPhrase   string
	}{
		{"yes please", "yes please", nil, 1, application.PhraseWindowOpening},
		{"capitalized yes", "Yes", nil, 1, application.PhraseWindowOpening},
		{"no", "no thanks", nil, 0, application.PhraseDeclined},
		{"empty", "", nil, 0, application.PhraseDeclined},
		{"sure is not yes", "sure", nil, 0, application.PhraseDeclined},
		{"recognition error", "", errors.New("recognize timeout"), 0, application.PhraseDeclined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(domain.Recognized(humidityQuestion))
			r.recorder.answer = application.Recognition{Text: tt.answer}
			r.recorder.err = tt.recognizeErr
			if err := r.run(r.dispatcher(61.2, application.Settings{})); err != nil {
				t.Fatalf("Run error: %v", err)
			}

			if r.recorder.sessions != 1 || r.recorder.recognize != 1 {
				t.Errorf("sessions/recognitions: got %d/%d, want 1/1", r.recorder.sessions, r.recorder.recognize)
			}
			if len(r.device.patches) != tt.wantPatches {
				t.Fatalf("patches: got %d, want %d", len(r.device.patches), tt.wantPatches)
			}
			if tt.wantPatches == 1 {
				got := r.device.patches[0]
				if got.DeviceID != windowID || !got.Patch.Custom.Open {
					t.Errorf("patch: got %+v, want open window %s", got, windowID)
				}
			}
			last := r.speaker.spoken[len(r.speaker.spoken)-1]
			if last != tt.wantPhrase {
				t.Errorf("final phrase: got %q, want %q", last, tt.wantPhrase)
			}
		})
	}
}

func TestConfirmation_PatchFailure(t *testing.T) {
	r := newRig(domain.Recognized(humidityQuestion), domain.TurnFinished{})
	r.recorder.answer = application.Recognition{Text: "yes"}
	r.device.err = domain.ErrAuthFailed
	if err := r.run(r.dispatcher(61.2, application.Settings{})); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(r.device.patches) != 1 {
		t.Errorf("patches: got %d, want exactly 1 (no retry)", len(r.device.patches))
	}
	last := r.speaker.spoken[len(r.speaker.spoken)-1]
	if last != application.PhraseWindowFailed {
		t.Errorf("final phrase: got %q, want %q", last, application.PhraseWindowFailed)
	}
	if len(r.notifier.messages) != 1 || !strings.Contains(r.notifier.messages[0], windowID) {
		t.Errorf("notifications: got %v", r.notifier.messages)
	}
	if r.events.reads != 2 {
		t.Errorf("dispatcher should keep reading events, read %d", r.events.reads)
	}
}

func TestConfirmation_SettleDelayHonoursCancel(t *testing.T) {
	r := newRig(domain.Recognized(humidityQuestion))
	d := r.dispatcher(61.2, application.Settings{
		Confirm: application.ConfirmConfig{SettleDelay: time.Hour},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := d.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run error: got %v, want deadline exceeded", err)
	}
	if r.recorder.sessions != 0 || len(r.device.patches) != 0 {
		t.Errorf("unexpected side effects after cancel: %v", r.j.entries)
	}
}

func TestConfirmation_RecordsOutcomeMetric(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	r := newRig(domain.Recognized(humidityQuestion), domain.Recognized(humidityQuestion))
	r.recorder.answer = application.Recognition{Text: "yes"}
	if err := r.run(r.dispatcher(61.2, application.Settings{}, application.WithMetrics(metrics))); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var accepted int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "assistant.confirmations" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key("outcome")); ok && v.AsString() == "accepted" {
					accepted += dp.Value
				}
			}
		}
	}
	if accepted != 2 {
		t.Errorf("accepted confirmations: got %d, want 2", accepted)
	}
}
