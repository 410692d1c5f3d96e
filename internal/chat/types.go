// Package chat holds the conversation types shared by the engine, the transport
// adapter and the presentation layer.
package chat

import "time"

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

type Feedback string

const (
	FeedbackNone Feedback = "none"
	FeedbackUp   Feedback = "up"
	FeedbackDown Feedback = "down"
)

// IsVerdict reports whether f is a rating a user can submit.
func (f Feedback) IsVerdict() bool {
	return f == FeedbackUp || f == FeedbackDown
}

// Source is a retrieval citation attached to a bot answer.
type Source struct {
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Message is one entry of a conversation as the client sees it.
//
// Provisional messages carry a client-minted ID until the backend confirms
// the exchange; they are replaced on reconciliation, never edited.
type Message struct {
	ID           string
	Role         Role
	Text         string
	CreatedAt    time.Time
	Feedback     Feedback
	Sources      []Source
	Link         string
	ShowFeedback bool
	Provisional  bool
	Failed       bool
}

// Rateable reports whether feedback controls apply to the message.
func (m Message) Rateable() bool {
	return m.Role == RoleBot && m.ShowFeedback && !m.Provisional && !m.Failed
}

// Exchange is the authoritative result of a create-message call.
type Exchange struct {
	SessionID   string
	UserMessage Message
	BotMessage  Message
}

// Transcript is a full session as returned by fetch-session.
type Transcript struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []Message
}

const DefaultHistoryTitle = "New conversation"

// HistoryEntry is the summary of a session shown in the history pane.
type HistoryEntry struct {
	ID           string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
	Preview      string
}

// ServiceStatus is the backend's view of its dependencies.
type ServiceStatus struct {
	Connected bool
	Services  map[string]bool
}
