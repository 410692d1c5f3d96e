package engine

import (
	"context"
	"fmt"
)

// RefreshHistory replaces the history index with the backend's session list,
// keeping the backend's order. On failure the previous index stays. When
// refreshes overlap, a list requested earlier never overwrites a later one.
func (e *Engine) RefreshHistory(ctx context.Context) error {
	seq := e.st.nextHistorySeq()
	entries, err := e.backend.ListSessions(ctx)
	if err != nil {
		e.publish(Event{Kind: EventError, Err: err})
		return fmt.Errorf("refresh history: %w", err)
	}
	if !e.st.setHistory(seq, entries) {
		e.logger.Debug("dropping outdated history list", "seq", seq)
		return nil
	}
	e.publish(Event{Kind: EventHistory})
	return nil
}
