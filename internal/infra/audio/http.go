package audio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/git-commit/this-building-rocks-assistant/internal/application"
	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
)

// HTTPSource lets a client drive the dispatcher over plain HTTP: engine
// events are posted to /events, shortcut transcripts to /text and
// confirmation answers to /answer while a recording session is open.
type HTTPSource struct {
	addr             string
	authToken        string
	recognizeTimeout time.Duration
	logger           *slog.Logger

	server      *http.Server
	mux         *http.ServeMux
	rateLimiter *RateLimiter
	events      chan domain.Event
	answers     chan string
	listening   chan struct{}

	mu        sync.Mutex
	running   bool
	recording recording
}

func NewHTTPSource(addr, authToken string, recognizeTimeout time.Duration, logger *slog.Logger) *HTTPSource {
	if recognizeTimeout <= 0 {
		recognizeTimeout = 10 * time.Second
	}
	h := &HTTPSource{
		addr:             addr,
		authToken:        authToken,
		recognizeTimeout: recognizeTimeout,
		logger:           logger,
		mux:              http.NewServeMux(),
		rateLimiter:      NewRateLimiter(30, time.Minute),
		events:           make(chan domain.Event, 32),
		answers:          make(chan string, 1),
		listening:        make(chan struct{}, 1),
	}
	h.mux.HandleFunc("POST /events", h.guard(h.handleEvents))
	h.mux.HandleFunc("POST /text", h.guard(h.handleText))
	h.mux.HandleFunc("POST /answer", h.guard(h.handleAnswer))
	h.mux.HandleFunc("GET /health", h.handleHealth)
	return h
}

func (h *HTTPSource) Name() string {
	return "http"
}

func (h *HTTPSource) Handler() http.Handler {
	return h.mux
}

func (h *HTTPSource) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return nil
	}

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}

	h.server = &http.Server{
		Handler:      h.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		h.logger.Info("HTTP event server starting", "addr", ln.Addr().String())
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", "error", err)
		}
	}()

	h.running = true
	return nil
}

func (h *HTTPSource) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return nil
	}
	h.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := h.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}
	return nil
}

// NextEvent blocks until a client posts an event. The stream never ends on
// its own.
func (h *HTTPSource) NextEvent(ctx context.Context) (domain.Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev := <-h.events:
		return ev, nil
	}
}

// InjectEvent queues ev as if it had been posted.
func (h *HTTPSource) InjectEvent(ev domain.Event) bool {
	select {
	case h.events <- ev:
		return true
	default:
		return false
	}
}

// WithRecordingSession opens a window during which /answer is accepted.
func (h *HTTPSource) WithRecordingSession(ctx context.Context, fn func(application.RecognitionSession) error) error {
	return h.recording.run(fn, h.recognize)
}

func (h *HTTPSource) recognize(ctx context.Context) (application.Recognition, error) {
	// drop answers posted before anyone asked
	select {
	case <-h.answers:
	default:
	}
	h.listening <- struct{}{}
	defer func() { <-h.listening }()

	t := time.NewTimer(h.recognizeTimeout)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return application.Recognition{}, ctx.Err()
	case <-t.C:
		return application.Recognition{}, fmt.Errorf("no answer within %s", h.recognizeTimeout)
	case text := <-h.answers:
		return application.Recognition{Text: text}, nil
	}
}

func (h *HTTPSource) guard(next http.HandlerFunc) http.HandlerFunc {
	return h.rateLimiter.Middleware(func(w http.ResponseWriter, r *http.Request) {
		if h.authToken != "" {
			token := r.Header.Get("X-Auth-Token")
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token != h.authToken {
				h.logger.Warn("unauthorized request", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	})
}

// handleEvents accepts one envelope or several newline-delimited ones.
func (h *HTTPSource) handleEvents(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	var parsed []domain.Event
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		ev, err := domain.ParseEvent(line)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		parsed = append(parsed, ev)
	}
	if len(parsed) == 0 {
		http.Error(w, "no events", http.StatusBadRequest)
		return
	}

	for i, ev := range parsed {
		if !h.InjectEvent(ev) {
			h.logger.Warn("event queue full", "accepted", i, "dropped", len(parsed)-i)
			http.Error(w, "queue full, try again", http.StatusServiceUnavailable)
			return
		}
	}
	h.logger.Debug("received events via HTTP", "count", len(parsed))
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "received", "events": len(parsed)})
}

// handleText is a shortcut for posting a speech_recognized event.
func (h *HTTPSource) handleText(w http.ResponseWriter, r *http.Request) {
	text, ok := readText(w, r)
	if !ok {
		return
	}
	if !h.InjectEvent(domain.Recognized(text)) {
		http.Error(w, "queue full, try again", http.StatusServiceUnavailable)
		return
	}
	h.logger.Info("received text command via HTTP", "text", text)
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "received", "text": text})
}

func (h *HTTPSource) handleAnswer(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, 1024))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	text := strings.TrimSpace(string(data))

	if len(h.listening) == 0 {
		http.Error(w, "not listening for an answer", http.StatusConflict)
		return
	}
	select {
	case h.answers <- text:
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "received", "text": text})
	default:
		http.Error(w, "answer already pending", http.StatusConflict)
	}
}

func (h *HTTPSource) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	running := h.running
	h.mu.Unlock()

	status, code := "ok", http.StatusOK
	if !running {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"running":    running,
		"queue_size": len(h.events),
		"listening":  len(h.listening) > 0,
	})
}

func readText(w http.ResponseWriter, r *http.Request) (string, bool) {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, 1024))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return "", false
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		http.Error(w, "empty text", http.StatusBadRequest)
		return "", false
	}
	return text, true
}
