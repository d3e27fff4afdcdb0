package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/git-commit/this-building-rocks-assistant/internal/application"
	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// journal records every side effect in order so tests can assert sequencing.
type journal struct {
	entries []string
}

func (j *journal) add(s string) { j.entries = append(j.entries, s) }

type mockEventSource struct {
	events []domain.Event
	reads  int
}

func (m *mockEventSource) Start(_ context.Context) error { return nil }
func (m *mockEventSource) Stop() error                   { return nil }
func (m *mockEventSource) Name() string                  { return "mock" }

func (m *mockEventSource) NextEvent(_ context.Context) (domain.Event, error) {
	if m.reads >= len(m.events) {
		return nil, domain.ErrStreamClosed
	}
	ev := m.events[m.reads]
	m.reads++
	return ev, nil
}

type mockSpeaker struct {
	j      *journal
	spoken []string
	err    error
}

func (m *mockSpeaker) Speak(_ context.Context, text string) error {
	m.spoken = append(m.spoken, text)
	m.j.add("speak:" + text)
	return m.err
}

type mockRecorder struct {
	j         *journal
	answer    application.Recognition
	err       error
	sessions  int
	recognize int
}

func (m *mockRecorder) WithRecordingSession(_ context.Context, fn func(application.RecognitionSession) error) error {
	m.sessions++
	m.j.add("session:open")
	defer m.j.add("session:close")
	return fn(m)
}

func (m *mockRecorder) RecognizeOnce(_ context.Context) (application.Recognition, error) {
	m.recognize++
	m.j.add("recognize")
	return m.answer, m.err
}

type mockDevice struct {
	j       *journal
	patches []domain.DeviceMutationRequest
	err     error
}

func (m *mockDevice) GetDevice(_ context.Context, _ string) (json.RawMessage, error) {
	return nil, errors.New("not used")
}

func (m *mockDevice) PatchDevice(_ context.Context, req domain.DeviceMutationRequest) error {
	m.patches = append(m.patches, req)
	m.j.add("patch:" + req.DeviceID)
	return m.err
}

type mockSystem struct {
	j         *journal
	powerOffs int
	reboots   int
	ip        string
	ipErr     error
}

func (m *mockSystem) PowerOff(_ context.Context) error {
	m.powerOffs++
	m.j.add("poweroff")
	return nil
}

func (m *mockSystem) Reboot(_ context.Context) error {
	m.reboots++
	m.j.add("reboot")
	return nil
}

func (m *mockSystem) LocalIP(_ context.Context) (string, error) {
	return m.ip, m.ipErr
}

type mockStatus struct {
	j        *journal
	statuses []domain.Phase
}

func (m *mockStatus) SetStatus(_ context.Context, phase domain.Phase) error {
	m.statuses = append(m.statuses, phase)
	m.j.add("status:" + string(phase))
	return nil
}

type mockConversation struct {
	j     *journal
	stops int
}

func (m *mockConversation) StopConversation(_ context.Context) error {
	m.stops++
	m.j.add("stop")
	return nil
}

type mockNotifier struct {
	messages []string
}

func (m *mockNotifier) Notify(_ context.Context, message string) error {
	m.messages = append(m.messages, message)
	return nil
}

// rig bundles a dispatcher with all of its mocks.
type rig struct {
	j            *journal
	events       *mockEventSource
	speaker      *mockSpeaker
	recorder     *mockRecorder
	device       *mockDevice
	system       *mockSystem
	status       *mockStatus
	conversation *mockConversation
	notifier     *mockNotifier
}

const windowID = "window-1"

func newRig(events ...domain.Event) *rig {
	j := &journal{}
	return &rig{
		j:            j,
		events:       &mockEventSource{events: events},
		speaker:      &mockSpeaker{j: j},
		recorder:     &mockRecorder{j: j},
		device:       &mockDevice{j: j},
		system:       &mockSystem{j: j, ip: "192.168.1.20"},
		status:       &mockStatus{j: j},
		conversation: &mockConversation{j: j},
		notifier:     &mockNotifier{},
	}
}

func (r *rig) dispatcher(humidity float64, settings application.Settings, opts ...application.Option) *application.Dispatcher {
	settings.Confirm.WindowDeviceID = windowID
	return application.NewDispatcher(
		application.Ports{
			Events:       r.events,
			Speaker:      r.speaker,
			Recorder:     r.recorder,
			Conversation: r.conversation,
			Status:       r.status,
			Window:       r.device,
			System:       r.system,
			Notifier:     r.notifier,
		},
		domain.DeviceSnapshot{DeviceID: "indoor-1", Attribute: "Humidity", Value: humidity},
		settings,
		discardLogger(),
		opts...,
	)
}

// run drives the dispatcher until the scripted events are exhausted.
func (r *rig) run(d *application.Dispatcher) error {
	err := d.Run(context.Background())
	if errors.Is(err, domain.ErrStreamClosed) {
		return nil
	}
	return err
}
