// Package engine owns the client-visible conversation state. It reconciles
// optimistic local edits with backend responses and publishes change events
// for the presentation layer, which reads state only through Snapshot.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"guardian/internal/chat"
	"guardian/internal/logger"
	"guardian/internal/render"
)

// FailureNotice is the text of the synthetic bot message appended when a send
// fails.
const FailureNotice = "Sorry, something went wrong while contacting the support service. Please try again."

// Backend is the subset of the support API the engine drives.
type Backend interface {
	CreateMessage(ctx context.Context, text string, sessionID string) (*chat.Exchange, error)
	FetchSession(ctx context.Context, sessionID string) (*chat.Transcript, error)
	ListSessions(ctx context.Context) ([]chat.HistoryEntry, error)
	PatchFeedback(ctx context.Context, messageID string, verdict chat.Feedback) error
	ClearSession(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

type Engine struct {
	backend  Backend
	poller   *Poller
	st       store
	bus      *bus
	ids      *idFactory
	logger   *log.Logger
	now      func() time.Time
	helpHost string
	idSeed   string
}

type Option func(*Engine)

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock replaces time.Now for provisional and failure message timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithHelpHost sets the help portal host used for link derivation.
func WithHelpHost(host string) Option {
	return func(e *Engine) { e.helpHost = host }
}

// WithPoller attaches a status poller; its results are mirrored into the
// snapshot and published as EventStatus.
func WithPoller(p *Poller) Option {
	return func(e *Engine) { e.poller = p }
}

// WithIDSeed fixes the seed of provisional message ids.
func WithIDSeed(seed string) Option {
	return func(e *Engine) { e.idSeed = seed }
}

func New(backend Backend, opts ...Option) *Engine {
	e := &Engine{
		backend:  backend,
		bus:      newBus(),
		now:      time.Now,
		helpHost: render.DefaultHelpHost,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.NewComponentLogger("engine")
	}
	e.ids = newIDFactory(e.idSeed)
	e.st.statusLabel = CheckingLabel
	if e.poller != nil {
		e.st.statusLabel = e.poller.Label()
		e.poller.setOnChange(func(status chat.ServiceStatus, label string) {
			e.st.setStatus(status, label)
			e.bus.publish(Event{Kind: EventStatus})
		})
	}
	return e
}

// StartOptions selects a session to resume on start.
type StartOptions struct {
	SessionID    string
	ResumeLatest bool
}

// Start refreshes the history index and polls status concurrently, then
// resumes a session if asked. Failures are non-blocking and returned joined.
func (e *Engine) Start(ctx context.Context, opts StartOptions) error {
	var g errgroup.Group
	g.Go(func() error {
		return e.RefreshHistory(ctx)
	})
	if e.poller != nil {
		g.Go(func() error {
			e.poller.Start(ctx)
			return nil
		})
	}
	historyErr := g.Wait()

	target := opts.SessionID
	if target == "" && opts.ResumeLatest {
		if history := e.Snapshot().History; len(history) > 0 {
			target = history[0].ID
		}
	}
	if target == "" {
		return historyErr
	}
	e.logger.Info("resuming session", "session_id", target)
	return errors.Join(historyErr, e.LoadSession(ctx, target))
}

// Stop ends status polling. In-flight sends are not aborted.
func (e *Engine) Stop() {
	if e.poller != nil {
		e.poller.Stop()
	}
}

// Subscribe registers fn for change events. fn runs on the goroutine that
// made the change and must not block. The returned func unsubscribes.
func (e *Engine) Subscribe(fn func(Event)) (unsubscribe func()) {
	return e.bus.subscribe(fn)
}

func (e *Engine) Snapshot() Snapshot {
	return e.st.snapshot()
}

func (e *Engine) publish(ev Event) {
	e.bus.publish(ev)
}

// decorate derives presentation fields the backend does not send.
func (e *Engine) decorate(m chat.Message) chat.Message {
	m.Link = render.HelpLink(m.Text, e.helpHost)
	m.ShowFeedback = m.Role == chat.RoleBot && !m.Failed
	return m
}
