package engine

import (
	"sync"

	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
)

// eventQueue is an unbounded FIFO. The read loop must never block on the
// dispatcher, which may itself be waiting for a reply from that loop.
type eventQueue struct {
	mu    sync.Mutex
	items []domain.Event
	ready chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev domain.Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pop() (domain.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	ev := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return ev, true
}
