package domain

// Phase is the conversation phase tracked by the dispatcher. Its value
// doubles as the status string shown on the status indicator.
type Phase string

const (
	PhaseNone      Phase = ""
	PhaseReady     Phase = "ready"
	PhaseListening Phase = "listening"
	PhaseThinking  Phase = "thinking"
)
