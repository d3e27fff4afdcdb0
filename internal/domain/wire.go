package domain

import (
	"encoding/json"
	"fmt"
)

// Envelope is the JSON form of an Event shared by every event source:
//
//	{"type":"speech_recognized","text":"power off"}
//	{"type":"assistant_error","is_fatal":true}
type Envelope struct {
	Type    EventKind `json:"type"`
	Text    *string   `json:"text,omitempty"`
	IsFatal bool      `json:"is_fatal,omitempty"`
}

func ParseEvent(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	return env.Event()
}

func (e Envelope) Event() (Event, error) {
	switch e.Type {
	case EventSessionReady:
		return SessionReady{}, nil
	case EventTurnStarted:
		return TurnStarted{}, nil
	case EventSpeechRecognized:
		if e.Text == nil {
			return SpeechRecognized{}, nil
		}
		return Recognized(*e.Text), nil
	case EventUtteranceEnded:
		return UtteranceEnded{}, nil
	case EventTurnFinished:
		return TurnFinished{}, nil
	case EventTurnTimedOut:
		return TurnTimedOut{}, nil
	case EventNoResponse:
		return NoResponse{}, nil
	case EventAssistantError:
		return AssistantError{Fatal: e.IsFatal}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, e.Type)
	}
}

func EnvelopeOf(ev Event) Envelope {
	env := Envelope{Type: ev.Kind()}
	switch t := ev.(type) {
	case SpeechRecognized:
		if t.HasText {
			text := t.Text
			env.Text = &text
		}
	case AssistantError:
		env.IsFatal = t.Fatal
	}
	return env
}
