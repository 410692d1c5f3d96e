package engine

import (
	"context"
	"fmt"
	"strings"

	"guardian/internal/chat"
)

// Pending is an accepted send whose network half has not run yet.
type Pending struct {
	e         *Engine
	localID   string
	text      string
	sessionID string
	epoch     uint64
}

// LocalID is the provisional message id.
func (p *Pending) LocalID() string { return p.localID }

// Begin performs the synchronous half of a send: it appends a provisional
// user message and sets the loading flag. It returns ErrEmptyMessage for blank
// text and ErrBusy while another send is in flight, without touching state.
func (e *Engine) Begin(text string) (*Pending, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, chat.ErrEmptyMessage
	}

	e.st.mu.Lock()
	if e.st.loading {
		e.st.mu.Unlock()
		return nil, chat.ErrBusy
	}
	provisional := chat.Message{
		ID:          e.ids.next(),
		Role:        chat.RoleUser,
		Text:        text,
		CreatedAt:   e.now(),
		Feedback:    chat.FeedbackNone,
		Provisional: true,
	}
	e.st.messages = append(append([]chat.Message(nil), e.st.messages...), provisional)
	e.st.loading = true
	p := &Pending{
		e:         e,
		localID:   provisional.ID,
		text:      text,
		sessionID: e.st.sessionID,
		epoch:     e.st.epoch,
	}
	e.st.mu.Unlock()

	e.publish(Event{Kind: EventMessages, SessionID: p.sessionID})
	return p, nil
}

// Send begins a send and runs the network half on its own goroutine.
func (e *Engine) Send(ctx context.Context, text string) (*Pending, error) {
	p, err := e.Begin(text)
	if err != nil {
		return nil, err
	}
	go func() {
		_ = p.Run(ctx)
	}()
	return p, nil
}

// Run calls the backend and reconciles the result. Send failures are already
// recovered into a failure message when Run returns them; ErrStaleResponse
// means the result was dropped because the session changed meanwhile.
func (p *Pending) Run(ctx context.Context) error {
	e := p.e
	ex, err := e.backend.CreateMessage(ctx, p.text, p.sessionID)

	e.st.mu.Lock()
	if e.st.epoch != p.epoch {
		e.st.mu.Unlock()
		e.logger.Debug("dropping stale send result", "session_id", p.sessionID, "local_id", p.localID)
		return chat.ErrStaleResponse
	}

	if err != nil {
		failure := chat.Message{
			ID:        e.ids.next(),
			Role:      chat.RoleBot,
			Text:      FailureNotice,
			CreatedAt: e.now(),
			Feedback:  chat.FeedbackNone,
			Failed:    true,
		}
		e.st.messages = append(append([]chat.Message(nil), e.st.messages...), failure)
		e.st.loading = false
		e.st.lastErr = err
		e.st.mu.Unlock()

		e.logger.Error("send failed", "session_id", p.sessionID, "error", err)
		e.publish(Event{Kind: EventSendFailed, SessionID: p.sessionID, Err: err})
		return fmt.Errorf("send: %w", err)
	}

	if p.sessionID != "" && ex.SessionID != p.sessionID {
		// The backend answered for another session: keep the user's text but
		// stop showing it as pending.
		if messages, found := withMessage(e.st.messages, p.localID, func(m chat.Message) chat.Message {
			m.Provisional = false
			m.Failed = true
			return m
		}); found {
			e.st.messages = messages
		}
		e.st.loading = false
		e.st.mu.Unlock()
		e.logger.Warn("send result for another session", "session_id", p.sessionID, "got", ex.SessionID)
		e.publish(Event{Kind: EventMessages, SessionID: p.sessionID})
		return chat.ErrStaleResponse
	}

	messages := withoutMessage(e.st.messages, p.localID)
	messages = append(messages, e.decorate(ex.UserMessage), e.decorate(ex.BotMessage))
	e.st.messages = messages
	e.st.sessionID = ex.SessionID
	e.st.loading = false
	e.st.lastErr = nil
	e.st.mu.Unlock()

	e.publish(Event{Kind: EventMessages, SessionID: ex.SessionID})
	if err := e.RefreshHistory(ctx); err != nil {
		e.logger.Warn("history refresh after send failed", "error", err)
	}
	return nil
}

// SubmitFeedback rates a bot message. Only the feedback field of that message
// changes, and only after the backend accepted it.
func (e *Engine) SubmitFeedback(ctx context.Context, messageID string, verdict chat.Feedback) error {
	if !verdict.IsVerdict() {
		return chat.ErrInvalidVerdict
	}
	msg, ok := e.Snapshot().Message(messageID)
	if !ok || !msg.Rateable() {
		return chat.ErrNotRateable
	}

	if err := e.backend.PatchFeedback(ctx, messageID, verdict); err != nil {
		e.logger.Warn("feedback failed", "message_id", messageID, "error", err)
		e.publish(Event{Kind: EventError, Err: err})
		return fmt.Errorf("feedback: %w", err)
	}

	e.st.mu.Lock()
	messages, found := withMessage(e.st.messages, messageID, func(m chat.Message) chat.Message {
		m.Feedback = verdict
		return m
	})
	if found {
		e.st.messages = messages
	}
	sessionID := e.st.sessionID
	e.st.mu.Unlock()

	if !found {
		// The conversation moved on while the patch was in flight.
		return nil
	}
	e.publish(Event{Kind: EventFeedback, SessionID: sessionID})
	return nil
}

// ClearSession empties the conversation locally, then clears it remotely if
// a session existed. A remote failure is logged and returned but never undoes
// the local clear.
func (e *Engine) ClearSession(ctx context.Context) error {
	e.st.mu.Lock()
	sessionID := e.st.sessionID
	e.st.resetLocked()
	e.st.mu.Unlock()
	e.publish(Event{Kind: EventSessionCleared, SessionID: sessionID})

	var clearErr error
	if sessionID != "" {
		if err := e.backend.ClearSession(ctx, sessionID); err != nil {
			e.logger.Warn("remote clear failed", "session_id", sessionID, "error", err)
			e.publish(Event{Kind: EventError, SessionID: sessionID, Err: err})
			clearErr = fmt.Errorf("clear session: %w", err)
		}
	}
	if err := e.RefreshHistory(ctx); err != nil {
		e.logger.Warn("history refresh after clear failed", "error", err)
	}
	return clearErr
}

// StartNewChat drops the local conversation. The backend creates the session
// lazily on the next send.
func (e *Engine) StartNewChat() {
	e.st.mu.Lock()
	e.st.resetLocked()
	e.st.mu.Unlock()
	e.publish(Event{Kind: EventNewChat})
}

// LoadSession replaces the conversation with the transcript of sessionID.
// On failure nothing changes. When loads overlap, the last one requested wins.
func (e *Engine) LoadSession(ctx context.Context, sessionID string) error {
	e.st.mu.Lock()
	ticket := e.st.nextLoadLocked()
	e.st.mu.Unlock()

	transcript, err := e.backend.FetchSession(ctx, sessionID)
	if err != nil {
		if !e.st.loadCurrent(ticket) {
			e.logger.Debug("dropping superseded load failure", "session_id", sessionID, "error", err)
			return chat.ErrStaleResponse
		}
		e.logger.Warn("load session failed", "session_id", sessionID, "error", err)
		e.publish(Event{Kind: EventError, SessionID: sessionID, Err: err})
		return fmt.Errorf("load session: %w", err)
	}

	messages := make([]chat.Message, 0, len(transcript.Messages))
	for _, m := range transcript.Messages {
		messages = append(messages, e.decorate(m))
	}

	e.st.mu.Lock()
	if e.st.loadSeq != ticket {
		e.st.mu.Unlock()
		e.logger.Debug("dropping stale transcript", "session_id", sessionID)
		return chat.ErrStaleResponse
	}
	e.st.messages = messages
	e.st.sessionID = transcript.ID
	e.st.loading = false
	e.st.lastErr = nil
	e.st.epoch++
	e.st.mu.Unlock()

	e.publish(Event{Kind: EventSessionLoaded, SessionID: transcript.ID})
	if err := e.RefreshHistory(ctx); err != nil {
		e.logger.Warn("history refresh after load failed", "error", err)
	}
	return nil
}

// DeleteSession removes a session on the backend. Deleting the active session
// also resets the local conversation.
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	if err := e.backend.DeleteSession(ctx, sessionID); err != nil {
		e.logger.Warn("delete session failed", "session_id", sessionID, "error", err)
		e.publish(Event{Kind: EventError, SessionID: sessionID, Err: err})
		return fmt.Errorf("delete session: %w", err)
	}

	e.st.mu.Lock()
	active := e.st.sessionID == sessionID
	if active {
		e.st.resetLocked()
	}
	e.st.mu.Unlock()
	if active {
		e.publish(Event{Kind: EventSessionCleared, SessionID: sessionID})
	}

	if err := e.RefreshHistory(ctx); err != nil {
		e.logger.Warn("history refresh after delete failed", "error", err)
	}
	return nil
}
