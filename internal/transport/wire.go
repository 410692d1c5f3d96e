package transport

import (
	"strings"
	"time"

	"guardian/internal/chat"
)

// Wire shapes of the support API. They are exported so the dev backend
// serves exactly what the client decodes.

type MessageDTO struct {
	ID          string        `json:"id"`
	Session     string        `json:"session"`
	MessageType string        `json:"message_type"`
	Text        string        `json:"text"`
	Timestamp   time.Time     `json:"timestamp"`
	Feedback    string        `json:"feedback"`
	Sources     []chat.Source `json:"sources"`
}

type SendMessageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type SendMessageResponse struct {
	SessionID   string     `json:"session_id"`
	UserMessage MessageDTO `json:"user_message"`
	BotMessage  MessageDTO `json:"bot_message"`
}

type SessionDTO struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Messages    []MessageDTO `json:"messages"`
	LastMessage *MessageDTO  `json:"last_message"`
}

type SessionSummaryDTO struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	MessageCount       int       `json:"message_count"`
	LastMessagePreview *string   `json:"last_message_preview"`
}

type CreateSessionRequest struct {
	Title string `json:"title"`
}

type FeedbackRequest struct {
	Feedback string `json:"feedback"`
}

type StatusDTO struct {
	Connected bool            `json:"connected"`
	Services  map[string]bool `json:"services"`
}

type HealthDTO struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type IngestDTO struct {
	Status            string `json:"status"`
	DocumentsIngested int    `json:"documents_ingested"`
}

// ErrorResponse is the error body returned on non-success statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ToMessage maps a wire message to the client shape. Help links are derived
// by the engine, not here.
func (m MessageDTO) ToMessage() chat.Message {
	role := chat.RoleUser
	if strings.EqualFold(m.MessageType, string(chat.RoleBot)) {
		role = chat.RoleBot
	}
	feedback := chat.Feedback(strings.ToLower(strings.TrimSpace(m.Feedback)))
	if feedback != chat.FeedbackUp && feedback != chat.FeedbackDown {
		feedback = chat.FeedbackNone
	}
	return chat.Message{
		ID:           m.ID,
		Role:         role,
		Text:         m.Text,
		CreatedAt:    m.Timestamp,
		Feedback:     feedback,
		Sources:      m.Sources,
		ShowFeedback: role == chat.RoleBot,
	}
}

// FromMessage is the inverse of ToMessage, used by the dev backend.
func FromMessage(sessionID string, m chat.Message) MessageDTO {
	feedback := m.Feedback
	if feedback == "" {
		feedback = chat.FeedbackNone
	}
	sources := m.Sources
	if sources == nil {
		sources = []chat.Source{}
	}
	return MessageDTO{
		ID:          m.ID,
		Session:     sessionID,
		MessageType: string(m.Role),
		Text:        m.Text,
		Timestamp:   m.CreatedAt,
		Feedback:    string(feedback),
		Sources:     sources,
	}
}

func (s SessionSummaryDTO) ToEntry() chat.HistoryEntry {
	title := strings.TrimSpace(s.Title)
	if title == "" {
		title = chat.DefaultHistoryTitle
	}
	entry := chat.HistoryEntry{
		ID:           s.ID,
		Title:        title,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		MessageCount: s.MessageCount,
	}
	if s.LastMessagePreview != nil {
		entry.Preview = *s.LastMessagePreview
	}
	return entry
}
