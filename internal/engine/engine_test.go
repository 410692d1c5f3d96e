package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardian/internal/chat"
)

func TestStartRefreshesHistoryAndPolls(t *testing.T) {
	fb := newFakeBackend()
	fb.history = []chat.HistoryEntry{{ID: "S2"}, {ID: "S1"}}
	src := &fakeStatus{results: []statusResult{up(map[string]bool{"qdrant": true})}}
	sched := &manualScheduler{}
	p := NewPoller(src, WithScheduler(sched), WithPollLogger(quietLogger()))
	e := newTestEngine(fb, WithPoller(p))

	assert.Equal(t, CheckingLabel, e.Snapshot().StatusLabel)
	require.NoError(t, e.Start(context.Background(), StartOptions{}))

	snap := e.Snapshot()
	assert.Equal(t, []chat.HistoryEntry{{ID: "S2"}, {ID: "S1"}}, snap.History)
	assert.True(t, snap.StatusKnown)
	assert.Equal(t, "Connected to Vector Search", snap.StatusLabel)
	assert.Empty(t, snap.SessionID)

	e.Stop()
	assert.True(t, sched.stopped)
}

func TestStatusEventsMirrorPoller(t *testing.T) {
	src := &fakeStatus{results: []statusResult{
		up(map[string]bool{"qdrant": true}),
		up(map[string]bool{"qdrant": false}),
	}}
	sched := &manualScheduler{}
	e := newTestEngine(newFakeBackend(), WithPoller(NewPoller(src, WithScheduler(sched), WithPollLogger(quietLogger()))))
	rec := &recorder{}
	e.Subscribe(rec.record)

	require.NoError(t, e.Start(context.Background(), StartOptions{}))
	sched.tick()

	snap := e.Snapshot()
	assert.Equal(t, "Vector Search Unreachable", snap.StatusLabel)
	assert.False(t, snap.Status.Services["qdrant"])
	statusEvents := 0
	for _, k := range rec.kinds() {
		if k == EventStatus {
			statusEvents++
		}
	}
	assert.Equal(t, 2, statusEvents)
}

func TestStartResumesLatestSession(t *testing.T) {
	fb := newFakeBackend()
	fb.history = []chat.HistoryEntry{{ID: "S2"}, {ID: "S1"}}
	fb.transcripts["S2"] = &chat.Transcript{ID: "S2", Messages: []chat.Message{
		{ID: "U1", Role: chat.RoleUser, Text: "latest"},
	}}
	e := newTestEngine(fb)

	require.NoError(t, e.Start(context.Background(), StartOptions{ResumeLatest: true}))
	snap := e.Snapshot()
	assert.Equal(t, "S2", snap.SessionID)
	require.Len(t, snap.Messages, 1)
}

func TestStartResumesExplicitSession(t *testing.T) {
	fb := newFakeBackend()
	fb.history = []chat.HistoryEntry{{ID: "S2"}, {ID: "S1"}}
	fb.transcripts["S1"] = &chat.Transcript{ID: "S1"}
	e := newTestEngine(fb)

	require.NoError(t, e.Start(context.Background(), StartOptions{SessionID: "S1", ResumeLatest: true}))
	assert.Equal(t, "S1", e.Snapshot().SessionID)
}

func TestStartReportsFailuresWithoutBlocking(t *testing.T) {
	fb := newFakeBackend()
	fb.listErr = chat.ErrNetwork
	e := newTestEngine(fb)

	err := e.Start(context.Background(), StartOptions{SessionID: "missing"})
	require.Error(t, err)
	assert.ErrorIs(t, err, chat.ErrNetwork)
	assert.True(t, chat.IsNotFound(err))

	// The engine is still usable.
	_, err = e.Begin("hello")
	assert.NoError(t, err)
}

func TestRefreshHistoryFailureKeepsIndex(t *testing.T) {
	fb := newFakeBackend()
	fb.history = []chat.HistoryEntry{{ID: "S1", Title: "kept"}}
	e := newTestEngine(fb)
	require.NoError(t, e.RefreshHistory(context.Background()))

	fb.listErr = chat.ErrNetwork
	assert.ErrorIs(t, e.RefreshHistory(context.Background()), chat.ErrNetwork)
	assert.Equal(t, "kept", e.Snapshot().History[0].Title)
}

func TestOutdatedHistoryListIsDropped(t *testing.T) {
	e := newTestEngine(newFakeBackend())
	older := e.st.nextHistorySeq()
	newer := e.st.nextHistorySeq()

	assert.True(t, e.st.setHistory(newer, []chat.HistoryEntry{{ID: "new"}}))
	assert.False(t, e.st.setHistory(older, []chat.HistoryEntry{{ID: "old"}}))
	assert.Equal(t, "new", e.Snapshot().History[0].ID)
}

func TestUnsubscribe(t *testing.T) {
	e := newTestEngine(newFakeBackend())
	rec := &recorder{}
	unsubscribe := e.Subscribe(rec.record)

	e.StartNewChat()
	unsubscribe()
	unsubscribe()
	e.StartNewChat()
	assert.Equal(t, []EventKind{EventNewChat}, rec.kinds())
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "session-loaded", EventSessionLoaded.String())
	assert.Equal(t, "unknown", EventKind(99).String())
}

func TestStopWhileStartingCancelsPolling(t *testing.T) {
	src := &fakeStatus{
		results: []statusResult{up(map[string]bool{"qdrant": true})},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	sched := &manualScheduler{}
	e := newTestEngine(newFakeBackend(), WithPoller(NewPoller(src, WithScheduler(sched), WithPollLogger(quietLogger()))))

	done := make(chan error, 1)
	go func() { done <- e.Start(context.Background(), StartOptions{}) }()
	select {
	case <-src.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first poll never started")
	}

	e.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}

	sched.mu.Lock()
	defer sched.mu.Unlock()
	assert.Nil(t, sched.job)
	assert.False(t, e.Snapshot().StatusKnown)
}
