//go:build !portaudio

package audio

import (
	"context"
	"errors"
	"log/slog"

	"github.com/git-commit/this-building-rocks-assistant/internal/application"
)

// MicrophoneRecorder stub when portaudio is not available.
type MicrophoneRecorder struct{}

func NewMicrophoneRecorder(_ int, _ float64, _ application.SpeechToText, _ *slog.Logger) *MicrophoneRecorder {
	return &MicrophoneRecorder{}
}

func (m *MicrophoneRecorder) WithRecordingSession(_ context.Context, _ func(application.RecognitionSession) error) error {
	return errors.New("microphone recorder not available: rebuild with -tags portaudio")
}
