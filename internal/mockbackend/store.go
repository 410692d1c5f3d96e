// Package mockbackend is an in-memory implementation of the support API for
// local development and tests.
package mockbackend

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"guardian/internal/chat"
)

const titleLimit = 60

var errNotFound = errors.New("not found")

type timing struct {
	rag time.Duration
	llm time.Duration
}

type session struct {
	id        string
	title     string
	createdAt time.Time
	updatedAt time.Time
	messages  []chat.Message
}

// Store keeps sessions and messages in memory.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
	owners   map[string]string // message id -> session id
	services map[string]bool
	timings  map[string]timing // bot message id -> pipeline timing
	ingested int
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*session),
		owners:   make(map[string]string),
		timings:  make(map[string]timing),
		services: map[string]bool{
			"ollama":     true,
			"qdrant":     true,
			"postgresql": true,
		},
		now: time.Now,
	}
}

// SetService flips the reported health of one dependency.
func (s *Store) SetService(name string, up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[name] = up
}

func (s *Store) Services() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.services))
	for k, v := range s.services {
		out[k] = v
	}
	return out
}

func (s *Store) CreateSession(title string) session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked(s.createLocked(title))
}

func (s *Store) createLocked(title string) *session {
	now := s.now()
	sess := &session{
		id:        uuid.NewString(),
		title:     title,
		createdAt: now,
		updatedAt: now,
	}
	s.sessions[sess.id] = sess
	return sess
}

// List returns copies ordered by most recently updated first.
func (s *Store) List() []session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, s.copyLocked(sess))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].updatedAt.After(out[j].updatedAt)
	})
	return out
}

func (s *Store) Get(id string) (session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return session{}, errNotFound
	}
	return s.copyLocked(sess), nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return errNotFound
	}
	for _, m := range sess.messages {
		delete(s.owners, m.ID)
		delete(s.timings, m.ID)
	}
	delete(s.sessions, id)
	return nil
}

// Clear drops every message but keeps the session.
func (s *Store) Clear(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return errNotFound
	}
	for _, m := range sess.messages {
		delete(s.owners, m.ID)
		delete(s.timings, m.ID)
	}
	sess.messages = nil
	sess.updatedAt = s.now()
	return nil
}

// Exchange stores a user message and the reply for it. An empty sessionID
// opens a new session titled after the question.
func (s *Store) Exchange(sessionID, text string, reply Reply) (string, chat.Message, chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sess *session
	if sessionID != "" {
		var ok bool
		sess, ok = s.sessions[sessionID]
		if !ok {
			return "", chat.Message{}, chat.Message{}, errNotFound
		}
	} else {
		sess = s.createLocked(truncateTitle(text))
	}

	now := s.now()
	user := chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleUser,
		Text:      text,
		CreatedAt: now,
		Feedback:  chat.FeedbackNone,
	}
	bot := chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleBot,
		Text:      reply.Text,
		CreatedAt: now.Add(time.Millisecond),
		Feedback:  chat.FeedbackNone,
		Sources:   reply.Sources,
	}
	sess.messages = append(sess.messages, user, bot)
	s.owners[user.ID] = sess.id
	s.owners[bot.ID] = sess.id
	s.timings[bot.ID] = timing{rag: reply.RAGLatency, llm: reply.LLMLatency}
	if strings.TrimSpace(sess.title) == "" {
		sess.title = truncateTitle(text)
	}
	sess.updatedAt = bot.CreatedAt
	return sess.id, user, bot, nil
}

// SetFeedback records a verdict on a message and returns the updated copy.
func (s *Store) SetFeedback(messageID string, feedback chat.Feedback) (string, chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessionID, ok := s.owners[messageID]
	if !ok {
		return "", chat.Message{}, errNotFound
	}
	sess := s.sessions[sessionID]
	for i := range sess.messages {
		if sess.messages[i].ID == messageID {
			sess.messages[i].Feedback = feedback
			return sessionID, sess.messages[i], nil
		}
	}
	return "", chat.Message{}, errNotFound
}

func (s *Store) MarkIngested(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingested = n
}

func (s *Store) Ingested() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ingested
}

// SetClock replaces the time source. Tests use it to order sessions.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) timingOf(messageID string) (timing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.timings[messageID]
	return t, ok
}

func (s *Store) copyLocked(sess *session) session {
	out := *sess
	out.messages = append([]chat.Message(nil), sess.messages...)
	return out
}

func truncateTitle(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) > titleLimit {
		runes = runes[:titleLimit]
	}
	return string(runes)
}
