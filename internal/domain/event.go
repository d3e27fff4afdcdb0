package domain

type EventKind string

const (
	EventSessionReady     EventKind = "session_ready"
	EventTurnStarted      EventKind = "turn_started"
	EventSpeechRecognized EventKind = "speech_recognized"
	EventUtteranceEnded   EventKind = "utterance_ended"
	EventTurnFinished     EventKind = "turn_finished"
	EventTurnTimedOut     EventKind = "turn_timed_out"
	EventNoResponse       EventKind = "no_response"
	EventAssistantError   EventKind = "assistant_error"
)

// EventKinds lists every kind the engine can emit, in wire order.
var EventKinds = []EventKind{
	EventSessionReady,
	EventTurnStarted,
	EventSpeechRecognized,
	EventUtteranceEnded,
	EventTurnFinished,
	EventTurnTimedOut,
	EventNoResponse,
	EventAssistantError,
}

// Event is one recognition event delivered by the assistant engine.
// The set of implementations is closed: only types in this package
// satisfy it, so a type switch over them can be checked for coverage.
type Event interface {
	Kind() EventKind
	sealed()
}

type SessionReady struct{}

type TurnStarted struct{}

// SpeechRecognized carries the final transcript of the user's utterance.
// HasText is false when the engine reported the event without arguments.
type SpeechRecognized struct {
	Text    string
	HasText bool
}

type UtteranceEnded struct{}

type TurnFinished struct{}

type TurnTimedOut struct{}

type NoResponse struct{}

type AssistantError struct {
	Fatal bool
}

func (SessionReady) Kind() EventKind     { return EventSessionReady }
func (TurnStarted) Kind() EventKind      { return EventTurnStarted }
func (SpeechRecognized) Kind() EventKind { return EventSpeechRecognized }
func (UtteranceEnded) Kind() EventKind   { return EventUtteranceEnded }
func (TurnFinished) Kind() EventKind     { return EventTurnFinished }
func (TurnTimedOut) Kind() EventKind     { return EventTurnTimedOut }
func (NoResponse) Kind() EventKind       { return EventNoResponse }
func (AssistantError) Kind() EventKind   { return EventAssistantError }

func (SessionReady) sealed()     {}
func (TurnStarted) sealed()      {}
func (SpeechRecognized) sealed() {}
func (UtteranceEnded) sealed()   {}
func (TurnFinished) sealed()     {}
func (TurnTimedOut) sealed()     {}
func (NoResponse) sealed()       {}
func (AssistantError) sealed()   {}

// Recognized is a convenience constructor for a SpeechRecognized event with text.
func Recognized(text string) SpeechRecognized {
	return SpeechRecognized{Text: text, HasText: true}
}
