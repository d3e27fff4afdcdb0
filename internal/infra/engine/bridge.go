// Package engine connects to the speech assistant engine over a websocket.
// The engine pushes recognition events and executes speak, status, stop
// and recording commands on behalf of the dispatcher.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/git-commit/this-building-rocks-assistant/internal/application"
	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
)

type Config struct {
	URL   string
	Token string

	DialTimeout time.Duration
	// ReplyTimeout bounds speak, status and recording commands.
	ReplyTimeout time.Duration
	// RecognizeTimeout bounds a single recognition request.
	RecognizeTimeout time.Duration
}

// errRejected wraps an error the engine returned in its reply.
var errRejected = errors.New("engine rejected")

type Bridge struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *slog.Logger

	// conn is set once by Start and read by the readiness check from
	// another goroutine.
	conn    atomic.Pointer[websocket.Conn]
	writeMu sync.Mutex

	queue *eventQueue
	done  chan struct{}
	err   error

	waitMu  sync.Mutex
	waiters map[string]chan reply

	recordMu sync.Mutex
}

func NewBridge(cfg Config, logger *slog.Logger) *Bridge {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 30 * time.Second
	}
	if cfg.RecognizeTimeout <= 0 {
		cfg.RecognizeTimeout = 10 * time.Second
	}
	return &Bridge{
		cfg:     cfg,
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout, Proxy: http.ProxyFromEnvironment},
		logger:  logger,
		queue:   newEventQueue(),
		done:    make(chan struct{}),
		waiters: make(map[string]chan reply),
	}
}

func (b *Bridge) Name() string { return "websocket" }

func (b *Bridge) Start(ctx context.Context) error {
	header := http.Header{}
	if b.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+b.cfg.Token)
	}

	dialCtx, cancel := context.WithTimeout(ctx, b.cfg.DialTimeout)
	defer cancel()

	conn, _, err := b.dialer.DialContext(dialCtx, b.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("dialing engine %s: %w", b.cfg.URL, err)
	}
	b.conn.Store(conn)
	b.logger.Info("connected to assistant engine", "url", b.cfg.URL)

	go b.readLoop(conn)
	return nil
}

func (b *Bridge) Stop() error {
	conn := b.conn.Load()
	if conn == nil {
		return nil
	}
	b.writeMu.Lock()
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second),
	)
	b.writeMu.Unlock()
	err := conn.Close()
	<-b.done
	return err
}

// Connected reports an error once the engine connection is gone.
func (b *Bridge) Connected(context.Context) error {
	if b.conn.Load() == nil {
		return errors.New("engine not connected")
	}
	select {
	case <-b.done:
		return b.err
	default:
		return nil
	}
}

func (b *Bridge) NextEvent(ctx context.Context) (domain.Event, error) {
	for {
		if ev, ok := b.queue.pop(); ok {
			return ev, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.queue.ready:
		case <-b.done:
			// drain what arrived before the connection dropped
			if ev, ok := b.queue.pop(); ok {
				return ev, nil
			}
			return nil, b.err
		}
	}
}

func (b *Bridge) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.Info("engine closed the connection")
			} else {
				b.logger.Error("reading from engine", "error", err)
			}
			b.shutdown(fmt.Errorf("%w: %v", domain.ErrStreamClosed, err))
			return
		}
		b.dispatchFrame(data)
	}
}

func (b *Bridge) dispatchFrame(data []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		b.logger.Warn("dropping malformed engine frame", "error", err)
		return
	}

	if head.Type == typeReply {
		var r reply
		if err := json.Unmarshal(data, &r); err != nil {
			b.logger.Warn("dropping malformed reply", "error", err)
			return
		}
		b.deliver(r)
		return
	}

	ev, err := domain.ParseEvent(data)
	if err != nil {
		b.logger.Warn("dropping engine frame", "type", head.Type, "error", err)
		return
	}
	b.queue.push(ev)
}

func (b *Bridge) deliver(r reply) {
	b.waitMu.Lock()
	ch, ok := b.waiters[r.ID]
	delete(b.waiters, r.ID)
	b.waitMu.Unlock()

	if !ok {
		b.logger.Debug("reply without waiter", "id", r.ID)
		return
	}
	ch <- r
}

// shutdown releases every pending request. No waiter can be registered
// after it returns.
func (b *Bridge) shutdown(err error) {
	b.waitMu.Lock()
	defer b.waitMu.Unlock()
	b.err = err
	for id, ch := range b.waiters {
		close(ch)
		delete(b.waiters, id)
	}
	close(b.done)
}

// request sends cmd and waits for the matching reply.
func (b *Bridge) request(ctx context.Context, cmd command, timeout time.Duration) (reply, error) {
	if b.conn.Load() == nil {
		return reply{}, errors.New("engine not connected")
	}
	cmd.ID = uuid.NewString()
	ch := make(chan reply, 1)

	b.waitMu.Lock()
	select {
	case <-b.done:
		b.waitMu.Unlock()
		return reply{}, b.err
	default:
	}
	b.waiters[cmd.ID] = ch
	b.waitMu.Unlock()

	if err := b.write(cmd); err != nil {
		b.forget(cmd.ID)
		return reply{}, fmt.Errorf("sending %s: %w", cmd.Type, err)
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case r, ok := <-ch:
		if !ok {
			return reply{}, b.err
		}
		if r.Error != "" {
			return r, fmt.Errorf("%w %s: %s", errRejected, cmd.Type, r.Error)
		}
		return r, nil
	case <-t.C:
		b.forget(cmd.ID)
		return reply{}, fmt.Errorf("%s: no reply within %s", cmd.Type, timeout)
	case <-ctx.Done():
		b.forget(cmd.ID)
		return reply{}, ctx.Err()
	}
}

func (b *Bridge) forget(id string) {
	b.waitMu.Lock()
	delete(b.waiters, id)
	b.waitMu.Unlock()
}

func (b *Bridge) write(cmd command) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.conn.Load().WriteJSON(cmd)
}

func (b *Bridge) Speak(ctx context.Context, text string) error {
	_, err := b.request(ctx, command{Type: cmdSpeak, Text: text}, b.cfg.ReplyTimeout)
	return err
}

func (b *Bridge) SetStatus(ctx context.Context, phase domain.Phase) error {
	_, err := b.request(ctx, command{Type: cmdStatus, Status: phase}, b.cfg.ReplyTimeout)
	return err
}

func (b *Bridge) StopConversation(ctx context.Context) error {
	_, err := b.request(ctx, command{Type: cmdStopConversation}, b.cfg.ReplyTimeout)
	return err
}

// WithRecordingSession opens the engine microphone, runs fn and always
// closes it again, also when ctx is already cancelled.
func (b *Bridge) WithRecordingSession(ctx context.Context, fn func(application.RecognitionSession) error) error {
	if !b.recordMu.TryLock() {
		return domain.ErrRecordingBusy
	}
	defer b.recordMu.Unlock()

	if _, err := b.request(ctx, command{Type: cmdRecordStart}, b.cfg.ReplyTimeout); err != nil {
		// Without a reply the engine may still have opened the microphone.
		if !errors.Is(err, errRejected) {
			b.releaseRecording(ctx)
		}
		return fmt.Errorf("opening recording session: %w", err)
	}

	s := &session{bridge: b}
	defer func() {
		s.close()
		b.releaseRecording(ctx)
	}()

	return fn(s)
}

// releaseRecording sends record_stop even when ctx is already cancelled.
func (b *Bridge) releaseRecording(ctx context.Context) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cfg.ReplyTimeout)
	defer cancel()
	if _, err := b.request(releaseCtx, command{Type: cmdRecordStop}, b.cfg.ReplyTimeout); err != nil {
		b.logger.Warn("closing recording session", "error", err)
	}
}

type session struct {
	bridge *Bridge
	mu     sync.Mutex
	closed bool
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

	r, err := s.bridge.request(ctx, command{Type: cmdRecognize}, s.bridge.cfg.RecognizeTimeout)
	if err != nil {
		return application.Recognition{}, err
	}
	return application.Recognition{Text: r.Text}, nil
}
