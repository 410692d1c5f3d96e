package engine

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"guardian/internal/chat"
)

type createCall struct {
	text      string
	sessionID string
	reply     chan createResult
}

type createResult struct {
	ex  *chat.Exchange
	err error
}

// fakeBackend blocks CreateMessage until the test answers on the call's
// reply channel. Other operations answer from fields.
type fakeBackend struct {
	mu sync.Mutex

	creates chan createCall

	transcripts map[string]*chat.Transcript
	// fetchGates holds FetchSession for an id until the channel is closed.
	fetchGates  map[string]chan struct{}
	fetchErr    error
	history     []chat.HistoryEntry
	listErr     error
	listCalls   int
	feedbackErr error
	feedback    map[string]chat.Feedback
	clearErr    error
	cleared     []string
	deleteErr   error
	deleted     []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		creates:     make(chan createCall, 4),
		transcripts: map[string]*chat.Transcript{},
		fetchGates:  map[string]chan struct{}{},
		feedback:    map[string]chat.Feedback{},
	}
}

func (f *fakeBackend) CreateMessage(ctx context.Context, text, sessionID string) (*chat.Exchange, error) {
	call := createCall{text: text, sessionID: sessionID, reply: make(chan createResult, 1)}
	f.creates <- call
	select {
	case res := <-call.reply:
		return res.ex, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeBackend) FetchSession(ctx context.Context, id string) (*chat.Transcript, error) {
	f.mu.Lock()
	gate := f.fetchGates[id]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	tr, ok := f.transcripts[id]
	if !ok {
		return nil, &chat.BackendError{Op: "fetch session", Status: 404, Message: "Session not found"}
	}
	out := *tr
	out.Messages = append([]chat.Message(nil), tr.Messages...)
	return &out, nil
}

func (f *fakeBackend) ListSessions(context.Context) ([]chat.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]chat.HistoryEntry(nil), f.history...), nil
}

func (f *fakeBackend) PatchFeedback(_ context.Context, id string, verdict chat.Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.feedbackErr != nil {
		return f.feedbackErr
	}
	f.feedback[id] = verdict
	return nil
}

func (f *fakeBackend) ClearSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, id)
	return f.clearErr
}

func (f *fakeBackend) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// nextCreate waits for the engine to call CreateMessage.
func (f *fakeBackend) nextCreate(t *testing.T) createCall {
	t.Helper()
	select {
	case call := <-f.creates:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for CreateMessage")
		return createCall{}
	}
}

var testNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func quietLogger() *log.Logger {
	return log.New(&bytes.Buffer{})
}

func newTestEngine(backend Backend, opts ...Option) *Engine {
	base := []Option{
		WithLogger(quietLogger()),
		WithClock(func() time.Time { return testNow }),
		WithIDSeed("t"),
	}
	return New(backend, append(base, opts...)...)
}

func exchange(sessionID, userID, userText, botID, botText string) *chat.Exchange {
	return &chat.Exchange{
		SessionID: sessionID,
		UserMessage: chat.Message{
			ID: userID, Role: chat.RoleUser, Text: userText,
			CreatedAt: testNow, Feedback: chat.FeedbackNone,
		},
		BotMessage: chat.Message{
			ID: botID, Role: chat.RoleBot, Text: botText,
			CreatedAt: testNow.Add(time.Second), Feedback: chat.FeedbackNone, ShowFeedback: true,
		},
	}
}

// manualScheduler records the job so tests can tick it by hand.
type manualScheduler struct {
	mu       sync.Mutex
	job      func()
	interval time.Duration
	stopped  bool
}

func (s *manualScheduler) Every(interval time.Duration, job func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job = job
	s.interval = interval
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.stopped = true
	}
}

func (s *manualScheduler) tick() {
	s.mu.Lock()
	job, stopped := s.job, s.stopped
	s.mu.Unlock()
	if job != nil && !stopped {
		job()
	}
}

type fakeStatus struct {
	mu      sync.Mutex
	results []statusResult
	calls   int
	// entered and release, when set, hold each call until release is closed
	// or the caller's context ends.
	entered chan struct{}
	release chan struct{}
}

type statusResult struct {
	status chat.ServiceStatus
	err    error
}

func (f *fakeStatus) FetchStatus(ctx context.Context) (chat.ServiceStatus, error) {
	if f.release != nil {
		f.entered <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return chat.ServiceStatus{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		return chat.ServiceStatus{}, chat.ErrNetwork
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r.status, r.err
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}
