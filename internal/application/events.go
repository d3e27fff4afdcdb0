package application

import (
	"context"

	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
)

// EventSource delivers the ordered recognition event stream of the
// assistant engine. NextEvent blocks until an event is available, ctx is
// cancelled or the stream ends; a stream that ended cannot be restarted.
type EventSource interface {
	Start(ctx context.Context) error
	Stop() error
	NextEvent(ctx context.Context) (domain.Event, error)
	Name() string
}

// StatusIndicator reflects the conversation phase to the user (LED, log line).
type StatusIndicator interface {
	SetStatus(ctx context.Context, phase domain.Phase) error
}

// ConversationController ends the engine's current conversation turn so
// that a local handler can take over the speaker and microphone.
type ConversationController interface {
	StopConversation(ctx context.Context) error
}

// NoopConversation is used by sources that have no engine-side turn to stop.
type NoopConversation struct{}

func (NoopConversation) StopConversation(context.Context) error { return nil }
