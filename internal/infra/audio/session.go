package audio

import (
	"context"
	"sync"

	"github.com/git-commit/this-building-rocks-assistant/internal/application"
	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
)

type recognizeFunc func(ctx context.Context) (application.Recognition, error)

// recording hands out one session at a time and invalidates it when the
// callback returns.
type recording struct {
	mu sync.Mutex
}

func (r *recording) run(fn func(application.RecognitionSession) error, recognize recognizeFunc) error {
	if !r.mu.TryLock() {
		return domain.ErrRecordingBusy
	}
	defer r.mu.Unlock()

	s := &session{recognize: recognize}
	defer s.close()
	return fn(s)
}

type session struct {
	mu        sync.Mutex
	closed    bool
	recognize recognizeFunc
}

func (s *session) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *session) RecognizeOnce(ctx context.Context) (application.Recognition, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return application.Recognition{}, domain.ErrNoRecordingSession
	}
	return s.recognize(ctx)
}
