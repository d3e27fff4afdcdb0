package engine

import "github.com/git-commit/this-building-rocks-assistant/internal/domain"

// Frames sent to the engine. Every command carries an id that the engine
// echoes in its reply.
const (
	cmdSpeak            = "speak"
	cmdStatus           = "status"
	cmdStopConversation = "stop_conversation"
	cmdRecordStart      = "record_start"
	cmdRecordStop       = "record_stop"
	cmdRecognize        = "recognize"
)

// typeReply marks an engine frame that answers a command rather than
// reporting a recognition event.
const typeReply = "reply"

type command struct {
	Type   string       `json:"type"`
	ID     string       `json:"id"`
	Text   string       `json:"text,omitempty"`
	Status domain.Phase `json:"status,omitempty"`
}

type reply struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}
