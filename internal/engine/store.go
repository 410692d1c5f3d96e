package engine

import (
	"sync"

	"guardian/internal/chat"
)

// Snapshot is a read-only copy of the engine state for the presentation
// layer. Slices and maps are never shared with the store.
type Snapshot struct {
	SessionID string
	Messages  []chat.Message
	Loading   bool
	// LastError is the most recent non-blocking failure, cleared by the next
	// successful send.
	LastError error
	History   []chat.HistoryEntry

	Status      chat.ServiceStatus
	StatusLabel string
	StatusKnown bool
}

// Message returns the message with id, if present.
func (s Snapshot) Message(id string) (chat.Message, bool) {
	for _, m := range s.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return chat.Message{}, false
}

// store is the single mutable resource. Every write replaces a whole field;
// message lists are rebuilt rather than edited in place.
type store struct {
	mu sync.Mutex

	sessionID string
	messages  []chat.Message
	loading   bool
	lastErr   error
	history   []chat.HistoryEntry
	// historySeq numbers refresh requests; historyApplied is the newest
	// request whose list was stored.
	historySeq     uint64
	historyApplied uint64

	status      chat.ServiceStatus
	statusLabel string
	statusKnown bool

	// epoch advances on every session boundary. Async results captured under
	// an older epoch are stale.
	epoch uint64
	// loadSeq numbers session loads. Only the newest ticket may apply, and
	// every reset invalidates outstanding ones.
	loadSeq uint64
}

func (s *store) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		SessionID:   s.sessionID,
		Messages:    append([]chat.Message(nil), s.messages...),
		Loading:     s.loading,
		LastError:   s.lastErr,
		History:     append([]chat.HistoryEntry(nil), s.history...),
		Status:      copyStatus(s.status),
		StatusLabel: s.statusLabel,
		StatusKnown: s.statusKnown,
	}
}

// resetLocked starts a new boundary: empty conversation, no session, nothing
// in flight.
func (s *store) resetLocked() {
	s.sessionID = ""
	s.messages = nil
	s.loading = false
	s.lastErr = nil
	s.epoch++
	s.loadSeq++
}

func (s *store) nextLoadLocked() uint64 {
	s.loadSeq++
	return s.loadSeq
}

func (s *store) loadCurrent(ticket uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadSeq == ticket
}

func (s *store) nextHistorySeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historySeq++
	return s.historySeq
}

func (s *store) setHistory(seq uint64, entries []chat.HistoryEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.historyApplied {
		return false
	}
	s.historyApplied = seq
	s.history = append([]chat.HistoryEntry(nil), entries...)
	return true
}

func (s *store) setStatus(status chat.ServiceStatus, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = copyStatus(status)
	s.statusLabel = label
	s.statusKnown = true
}

// withMessage returns a copy of list with the message id replaced by fn(m).
func withMessage(list []chat.Message, id string, fn func(chat.Message) chat.Message) ([]chat.Message, bool) {
	out := make([]chat.Message, len(list))
	found := false
	for i, m := range list {
		if m.ID == id {
			m = fn(m)
			found = true
		}
		out[i] = m
	}
	return out, found
}

// withoutMessage returns a copy of list without the message id.
func withoutMessage(list []chat.Message, id string) []chat.Message {
	out := make([]chat.Message, 0, len(list))
	for _, m := range list {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

func copyStatus(status chat.ServiceStatus) chat.ServiceStatus {
	out := chat.ServiceStatus{Connected: status.Connected}
	if status.Services != nil {
		out.Services = make(map[string]bool, len(status.Services))
		for k, v := range status.Services {
			out.Services[k] = v
		}
	}
	return out
}
