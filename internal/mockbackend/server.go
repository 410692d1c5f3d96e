package mockbackend

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"guardian/internal/chat"
	"guardian/internal/transport"
)

const (
	maxMessageLength = 4000
	previewLimit     = 80
)

// Server serves the support API from a Store.
type Server struct {
	store  *Store
	reply  Replier
	delay  time.Duration
	logger *log.Logger
}

type Option func(*Server)

// WithReplier replaces the answer generator.
func WithReplier(r Replier) Option {
	return func(s *Server) { s.reply = r }
}

// WithDelay holds every chat answer for d, to make the loading state visible.
func WithDelay(d time.Duration) Option {
	return func(s *Server) { s.delay = d }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func NewServer(store *Store, opts ...Option) *Server {
	s := &Server{
		store:  store,
		reply:  DefaultReplier(""),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Store() *Store {
	return s.store
}

// Echo builds the HTTP router. All routes live under /api with trailing
// slashes.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	api := e.Group("/api")
	api.GET("/", s.Health)
	api.GET("/status/", s.Status)
	api.GET("/sessions/", s.ListSessions)
	api.POST("/sessions/", s.CreateSession)
	api.GET("/sessions/:id/", s.GetSession)
	api.DELETE("/sessions/:id/", s.DeleteSession)
	api.DELETE("/sessions/:id/clear/", s.ClearSession)
	api.POST("/chat/", s.SendMessage)
	api.PATCH("/messages/:id/feedback/", s.Feedback)
	api.POST("/ingest/", s.Ingest)
	api.GET("/analytics/usage/", s.UsageAnalytics)
	api.GET("/analytics/rag-performance/", s.RAGPerformance)
	return e
}

func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, transport.HealthDTO{
		Message: "PSPD Guardian API is running",
		Status:  "ok",
	})
}

func (s *Server) Status(c echo.Context) error {
	services := s.store.Services()
	connected := true
	for _, up := range services {
		connected = connected && up
	}
	return c.JSON(http.StatusOK, transport.StatusDTO{Connected: connected, Services: services})
}

func (s *Server) ListSessions(c echo.Context) error {
	sessions := s.store.List()
	out := make([]transport.SessionSummaryDTO, 0, len(sessions))
	for _, sess := range sessions {
		summary := transport.SessionSummaryDTO{
			ID:           sess.id,
			Title:        sess.title,
			CreatedAt:    sess.createdAt,
			UpdatedAt:    sess.updatedAt,
			MessageCount: len(sess.messages),
		}
		if n := len(sess.messages); n > 0 {
			preview := truncateRunes(sess.messages[n-1].Text, previewLimit)
			summary.LastMessagePreview = &preview
		}
		out = append(out, summary)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) CreateSession(c echo.Context) error {
	var req transport.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Error: "invalid request body"})
	}
	sess := s.store.CreateSession(truncateTitle(req.Title))
	return c.JSON(http.StatusCreated, sessionDTO(sess))
}

func (s *Server) GetSession(c echo.Context) error {
	sess, err := s.store.Get(c.Param("id"))
	if err != nil {
		return sessionNotFound(c)
	}
	return c.JSON(http.StatusOK, sessionDTO(sess))
}

func (s *Server) DeleteSession(c echo.Context) error {
	if err := s.store.Delete(c.Param("id")); err != nil {
		return sessionNotFound(c)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) ClearSession(c echo.Context) error {
	if err := s.store.Clear(c.Param("id")); err != nil {
		return sessionNotFound(c)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) SendMessage(c echo.Context) error {
	var req transport.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Error: "message is required"})
	}
	if utf8.RuneCountInString(req.Message) > maxMessageLength {
		return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Error: "message is too long"})
	}

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	}

	sessionID, user, bot, err := s.store.Exchange(req.SessionID, req.Message, s.reply(req.Message))
	if err != nil {
		return sessionNotFound(c)
	}
	s.logger.Info("answered", "session_id", sessionID, "sources", len(bot.Sources))
	return c.JSON(http.StatusOK, transport.SendMessageResponse{
		SessionID:   sessionID,
		UserMessage: transport.FromMessage(sessionID, user),
		BotMessage:  transport.FromMessage(sessionID, bot),
	})
}

func (s *Server) Feedback(c echo.Context) error {
	var req transport.FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Error: "invalid request body"})
	}
	feedback := chat.Feedback(req.Feedback)
	if !feedback.IsVerdict() && feedback != chat.FeedbackNone {
		return c.JSON(http.StatusBadRequest, transport.ErrorResponse{Error: "feedback must be one of up, down, none"})
	}
	sessionID, msg, err := s.store.SetFeedback(c.Param("id"), feedback)
	if errors.Is(err, errNotFound) {
		return c.JSON(http.StatusNotFound, transport.ErrorResponse{Error: "Message not found"})
	}
	return c.JSON(http.StatusOK, transport.FromMessage(sessionID, msg))
}

func (s *Server) Ingest(c echo.Context) error {
	s.store.MarkIngested(len(Incidents))
	return c.JSON(http.StatusOK, transport.IngestDTO{
		Status:            "success",
		DocumentsIngested: len(Incidents),
	})
}

func sessionNotFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, transport.ErrorResponse{Error: "Session not found"})
}

func sessionDTO(sess session) transport.SessionDTO {
	out := transport.SessionDTO{
		ID:        sess.id,
		Title:     sess.title,
		CreatedAt: sess.createdAt,
		UpdatedAt: sess.updatedAt,
		Messages:  make([]transport.MessageDTO, 0, len(sess.messages)),
	}
	for _, m := range sess.messages {
		out.Messages = append(out.Messages, transport.FromMessage(sess.id, m))
	}
	if n := len(out.Messages); n > 0 {
		last := out.Messages[n-1]
		out.LastMessage = &last
	}
	return out
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
