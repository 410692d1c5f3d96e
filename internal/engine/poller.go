package engine

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"guardian/internal/chat"
	"guardian/internal/logger"
)

const (
	DefaultPollInterval     = 30 * time.Second
	DefaultStatusDependency = "qdrant"
	DefaultStatusLabel      = "Vector Search"

	// CheckingLabel is shown until the first poll completes.
	CheckingLabel = "Checking services…"
)

// StatusSource reports backend health.
type StatusSource interface {
	FetchStatus(ctx context.Context) (chat.ServiceStatus, error)
}

// Scheduler runs job every interval until the returned stop func is called.
// stop blocks until a running job has returned.
type Scheduler interface {
	Every(interval time.Duration, job func()) (stop func())
}

// CronScheduler schedules jobs on a robfig/cron runner. Overlapping runs are
// skipped.
type CronScheduler struct {
	Logger *log.Logger
}

func (s CronScheduler) Every(interval time.Duration, job func()) func() {
	l := s.Logger
	if l == nil {
		l = logger.Logger
	}
	cl := logger.CronLogger{L: l}
	c := cron.New(
		cron.WithChain(cron.SkipIfStillRunning(cl)),
		cron.WithLogger(cl),
	)
	c.Schedule(cron.Every(interval), cron.FuncJob(job))
	c.Start()
	return func() {
		<-c.Stop().Done()
	}
}

// Poller keeps the last known service status. It is a Start/Stop lifecycle
// object; the interval is driven by its Scheduler.
type Poller struct {
	source     StatusSource
	interval   time.Duration
	timeout    time.Duration
	scheduler  Scheduler
	dependency string
	depLabel   string
	logger     *log.Logger

	// halted is cancelled by Stop; a halted Poller never schedules again.
	halted context.Context
	halt   context.CancelFunc

	mu       sync.Mutex
	status   chat.ServiceStatus
	known    bool
	stop     func()
	onChange func(chat.ServiceStatus, string)
}

type PollerOption func(*Poller)

func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithPollTimeout bounds each scheduled poll.
func WithPollTimeout(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithScheduler(s Scheduler) PollerOption {
	return func(p *Poller) { p.scheduler = s }
}

// WithDependency selects which backing service drives the connectivity label.
func WithDependency(name, label string) PollerOption {
	return func(p *Poller) {
		if name != "" {
			p.dependency = name
		}
		if label != "" {
			p.depLabel = label
		}
	}
}

func WithPollLogger(l *log.Logger) PollerOption {
	return func(p *Poller) { p.logger = l }
}

func NewPoller(source StatusSource, opts ...PollerOption) *Poller {
	p := &Poller{
		source:     source,
		interval:   DefaultPollInterval,
		timeout:    10 * time.Second,
		dependency: DefaultStatusDependency,
		depLabel:   DefaultStatusLabel,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.NewComponentLogger("poller")
	}
	if p.scheduler == nil {
		p.scheduler = CronScheduler{Logger: p.logger}
	}
	p.halted, p.halt = context.WithCancel(context.Background())
	return p
}

// Start polls once with ctx, then on every interval. Later polls do not use
// ctx; they end when Stop is called. Calling Start twice is a no-op for the
// schedule. Stop cancels a first poll still in flight, and Start never
// schedules after Stop.
func (p *Poller) Start(ctx context.Context) {
	if p.halted.Err() != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	unhook := context.AfterFunc(p.halted, cancel)
	defer unhook()
	_ = p.Poll(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil || p.halted.Err() != nil {
		return
	}
	p.stop = p.scheduler.Every(p.interval, func() {
		ctx, cancel := context.WithTimeout(p.halted, p.timeout)
		defer cancel()
		_ = p.Poll(ctx)
	})
}

// Stop cancels the schedule and waits for a running scheduled poll.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.halt()
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Poll fetches status once. A failure keeps the previous status.
func (p *Poller) Poll(ctx context.Context) error {
	status, err := p.source.FetchStatus(ctx)
	if err != nil {
		p.logger.Warn("status poll failed", "error", err)
		return err
	}

	p.mu.Lock()
	p.status = copyStatus(status)
	p.known = true
	label := p.labelLocked()
	onChange := p.onChange
	p.mu.Unlock()

	p.logger.Debug("status", "connected", status.Connected, "label", label)
	if onChange != nil {
		onChange(copyStatus(status), label)
	}
	return nil
}

// Status returns the last successful poll result and whether there was one.
func (p *Poller) Status() (chat.ServiceStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyStatus(p.status), p.known
}

// Label is the connectivity text derived from the designated dependency.
func (p *Poller) Label() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.labelLocked()
}

func (p *Poller) labelLocked() string {
	if !p.known {
		return CheckingLabel
	}
	if p.status.Services[p.dependency] {
		return "Connected to " + p.depLabel
	}
	return p.depLabel + " Unreachable"
}

func (p *Poller) setOnChange(fn func(chat.ServiceStatus, string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}
