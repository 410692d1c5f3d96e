package main

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"guardian/internal/engine"
)

// eventQueue carries engine events to the program without blocking the
// engine and without dropping any. Events queue up between reads and are
// delivered as one batch.
type eventQueue struct {
	mu      sync.Mutex
	pending []engine.Event
	ready   chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

// push never blocks. A repeat of the last queued event is folded into it.
func (q *eventQueue) push(ev engine.Event) {
	q.mu.Lock()
	if n := len(q.pending); n == 0 || !sameEvent(q.pending[n-1], ev) {
		q.pending = append(q.pending, ev)
	}
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []engine.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

func sameEvent(a, b engine.Event) bool {
	return a.Kind == b.Kind && a.SessionID == b.SessionID && a.Err == nil && b.Err == nil
}

// waitEngineMsg blocks until events are queued. The handler re-arms it.
func waitEngineMsg(q *eventQueue) tea.Cmd {
	if q == nil {
		return nil
	}
	return func() tea.Msg {
		<-q.ready
		return engineEventsMsg{events: q.drain()}
	}
}
