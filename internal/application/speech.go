package application

import "context"

// SpeechToText turns captured audio into text for recorders that capture
// audio locally.
type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Speaker plays text to the user. Callers treat failures as non-fatal.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Recognition is the result of one recognition pass. Text is empty when
// nothing intelligible was said. Audio holds the captured samples when the
// recorder keeps them.
type Recognition struct {
	Text  string
	Audio []byte
}

// RecognitionSession is only valid inside the callback it was handed to.
type RecognitionSession interface {
	RecognizeOnce(ctx context.Context) (Recognition, error)
}

// Recorder grants exclusive microphone access for the duration of fn and
// releases it on every exit path, including a panic in fn.
type Recorder interface {
	WithRecordingSession(ctx context.Context, fn func(RecognitionSession) error) error
}
