//go:build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"

	"github.com/git-commit/this-building-rocks-assistant/internal/application"
)

const framesPerBuffer = 1024

// MicrophoneRecorder captures confirmation answers from the local
// microphone and transcribes them. The device is opened only for the
// duration of a recording session.
type MicrophoneRecorder struct {
	sampleRate int
	maxSeconds float64
	stt        application.SpeechToText
	logger     *slog.Logger

	recording recording
}

func NewMicrophoneRecorder(sampleRate int, maxSeconds float64, stt application.SpeechToText, logger *slog.Logger) *MicrophoneRecorder {
	return &MicrophoneRecorder{
		sampleRate: sampleRate,
		maxSeconds: maxSeconds,
		stt:        stt,
		logger:     logger,
	}
}

func (m *MicrophoneRecorder) WithRecordingSession(ctx context.Context, fn func(application.RecognitionSession) error) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}
	defer portaudio.Terminate()

	frame := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), len(frame), frame)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	defer stream.Stop()

	m.logger.Debug("microphone open", "sample_rate", m.sampleRate)
	return m.recording.run(fn, func(ctx context.Context) (application.Recognition, error) {
		return m.capture(ctx, stream, frame)
	})
}

func (m *MicrophoneRecorder) capture(ctx context.Context, stream *portaudio.Stream, frame []int16) (application.Recognition, error) {
	u := newUtterance(m.sampleRate, m.maxSeconds)
	for {
		if err := ctx.Err(); err != nil {
			return application.Recognition{}, err
		}
		if err := stream.Read(); err != nil {
			return application.Recognition{}, fmt.Errorf("reading from stream: %w", err)
		}
		if u.add(frame) {
			break
		}
	}

	wav := encodeWAV(u.samples, m.sampleRate)
	if !u.heard {
		return application.Recognition{Audio: wav}, nil
	}

	text, err := m.stt.Transcribe(ctx, wav)
	if err != nil {
		return application.Recognition{Audio: wav}, fmt.Errorf("transcribing: %w", err)
	}
	m.logger.Debug("transcribed answer", "text", text, "bytes", len(wav))
	return application.Recognition{Text: text, Audio: wav}, nil
}
