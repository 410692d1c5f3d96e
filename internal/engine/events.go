package engine

import "sync"

// EventKind names what changed in the store.
type EventKind int

const (
	// EventMessages fires whenever the message list or loading flag changes.
	EventMessages EventKind = iota
	EventSessionLoaded
	EventSessionCleared
	EventNewChat
	EventHistory
	EventStatus
	EventFeedback
	EventSendFailed
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventMessages:
		return "messages"
	case EventSessionLoaded:
		return "session-loaded"
	case EventSessionCleared:
		return "session-cleared"
	case EventNewChat:
		return "new-chat"
	case EventHistory:
		return "history"
	case EventStatus:
		return "status"
	case EventFeedback:
		return "feedback"
	case EventSendFailed:
		return "send-failed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a change notification. Subscribers read the new state through
// Snapshot; Err carries non-blocking failures for transient display.
type Event struct {
	Kind      EventKind
	SessionID string
	Err       error
}

type bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

func newBus() *bus {
	return &bus{subs: make(map[int]func(Event))}
}

func (b *bus) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// publish calls subscribers synchronously. It must not be called with the
// store lock held.
func (b *bus) publish(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
