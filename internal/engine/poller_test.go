package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardian/internal/chat"
)

func up(services map[string]bool) statusResult {
	connected := true
	for _, v := range services {
		connected = connected && v
	}
	return statusResult{status: chat.ServiceStatus{Connected: connected, Services: services}}
}

func TestPollerPollsImmediatelyAndOnTick(t *testing.T) {
	src := &fakeStatus{results: []statusResult{
		up(map[string]bool{"qdrant": true, "ollama": true}),
		up(map[string]bool{"qdrant": false, "ollama": true}),
	}}
	sched := &manualScheduler{}
	p := NewPoller(src, WithScheduler(sched), WithInterval(5*time.Second), WithPollLogger(quietLogger()))

	assert.Equal(t, CheckingLabel, p.Label())
	p.Start(context.Background())
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 5*time.Second, sched.interval)
	assert.Equal(t, "Connected to Vector Search", p.Label())

	sched.tick()
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, "Vector Search Unreachable", p.Label())
	status, known := p.Status()
	assert.True(t, known)
	assert.False(t, status.Connected)
}

func TestPollerLabelFollowsDesignatedDependencyOnly(t *testing.T) {
	src := &fakeStatus{results: []statusResult{
		up(map[string]bool{"qdrant": true, "ollama": false, "postgresql": true}),
	}}
	p := NewPoller(src, WithScheduler(&manualScheduler{}), WithPollLogger(quietLogger()))
	require.NoError(t, p.Poll(context.Background()))

	status, _ := p.Status()
	assert.False(t, status.Connected)
	assert.Equal(t, "Connected to Vector Search", p.Label())

	custom := NewPoller(src, WithDependency("ollama", "Language Model"), WithScheduler(&manualScheduler{}), WithPollLogger(quietLogger()))
	require.NoError(t, custom.Poll(context.Background()))
	assert.Equal(t, "Language Model Unreachable", custom.Label())
}

func TestPollerFailureKeepsPreviousStatus(t *testing.T) {
	src := &fakeStatus{results: []statusResult{
		up(map[string]bool{"qdrant": true}),
		{err: chat.ErrNetwork},
	}}
	sched := &manualScheduler{}
	p := NewPoller(src, WithScheduler(sched), WithPollLogger(quietLogger()))

	p.Start(context.Background())
	sched.tick()
	sched.tick()
	assert.Equal(t, 3, src.calls)
	status, known := p.Status()
	assert.True(t, known)
	assert.True(t, status.Services["qdrant"])
	assert.Equal(t, "Connected to Vector Search", p.Label())
}

func TestPollerFailureBeforeFirstSuccessKeepsChecking(t *testing.T) {
	p := NewPoller(&fakeStatus{}, WithScheduler(&manualScheduler{}), WithPollLogger(quietLogger()))
	assert.ErrorIs(t, p.Poll(context.Background()), chat.ErrNetwork)
	_, known := p.Status()
	assert.False(t, known)
	assert.Equal(t, CheckingLabel, p.Label())
}

func TestPollerStop(t *testing.T) {
	src := &fakeStatus{results: []statusResult{up(map[string]bool{"qdrant": true})}}
	sched := &manualScheduler{}
	p := NewPoller(src, WithScheduler(sched), WithPollLogger(quietLogger()))

	p.Start(context.Background())
	p.Start(context.Background())
	p.Stop()
	sched.tick()
	assert.Equal(t, 2, src.calls, "ticks after Stop do not poll")
	p.Stop()
}

func TestPollerStatusIsACopy(t *testing.T) {
	services := map[string]bool{"qdrant": true}
	p := NewPoller(&fakeStatus{results: []statusResult{up(services)}}, WithScheduler(&manualScheduler{}), WithPollLogger(quietLogger()))
	require.NoError(t, p.Poll(context.Background()))

	services["qdrant"] = false
	status, _ := p.Status()
	status.Services["ollama"] = true
	again, _ := p.Status()
	assert.True(t, again.Services["qdrant"])
	assert.NotContains(t, again.Services, "ollama")
}

func TestCronSchedulerRunsAndStops(t *testing.T) {
	ran := make(chan struct{}, 4)
	stop := CronScheduler{Logger: quietLogger()}.Every(time.Second, func() {
		ran <- struct{}{}
	})
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("cron job never ran")
	}
	stop()
}

func TestStopDuringFirstPollNeverSchedules(t *testing.T) {
	src := &fakeStatus{
		results: []statusResult{up(map[string]bool{"qdrant": true})},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	sched := &manualScheduler{}
	p := NewPoller(src, WithScheduler(sched), WithPollLogger(quietLogger()))

	started := make(chan struct{})
	go func() {
		defer close(started)
		p.Start(context.Background())
	}()
	select {
	case <-src.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first poll never started")
	}

	p.Stop()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}

	sched.mu.Lock()
	job := sched.job
	sched.mu.Unlock()
	assert.Nil(t, job, "no schedule is installed after Stop")
	assert.Equal(t, CheckingLabel, p.Label())

	p.Start(context.Background())
	assert.Equal(t, 0, src.calls, "a stopped poller stays stopped")
}
