// Package transport is the HTTP adapter for the Guardian support API. Every
// call is a single request/response; retries are the caller's business.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"guardian/internal/chat"
)

const DefaultBaseURL = "http://localhost:8001/api"

// Client talks to the support API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client rooted at baseURL (e.g. http://host:8001/api).
func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateMessage calls POST /chat/. An empty sessionID asks the backend to
// open a new session.
func (c *Client) CreateMessage(ctx context.Context, text string, sessionID string) (*chat.Exchange, error) {
	var resp SendMessageResponse
	req := SendMessageRequest{Message: text, SessionID: sessionID}
	if err := c.do(ctx, "create message", http.MethodPost, "/chat/", req, &resp); err != nil {
		return nil, err
	}
	return &chat.Exchange{
		SessionID:   resp.SessionID,
		UserMessage: resp.UserMessage.ToMessage(),
		BotMessage:  resp.BotMessage.ToMessage(),
	}, nil
}

// FetchSession calls GET /sessions/{id}/.
func (c *Client) FetchSession(ctx context.Context, sessionID string) (*chat.Transcript, error) {
	var resp SessionDTO
	if err := c.do(ctx, "fetch session", http.MethodGet, sessionPath(sessionID, ""), nil, &resp); err != nil {
		return nil, err
	}
	transcript := &chat.Transcript{
		ID:        resp.ID,
		Title:     resp.Title,
		CreatedAt: resp.CreatedAt,
		UpdatedAt: resp.UpdatedAt,
		Messages:  make([]chat.Message, 0, len(resp.Messages)),
	}
	for _, m := range resp.Messages {
		transcript.Messages = append(transcript.Messages, m.ToMessage())
	}
	return transcript, nil
}

// ListSessions calls GET /sessions/. Order is the backend's.
func (c *Client) ListSessions(ctx context.Context) ([]chat.HistoryEntry, error) {
	var resp []SessionSummaryDTO
	if err := c.do(ctx, "list sessions", http.MethodGet, "/sessions/", nil, &resp); err != nil {
		return nil, err
	}
	entries := make([]chat.HistoryEntry, 0, len(resp))
	for _, s := range resp {
		entries = append(entries, s.ToEntry())
	}
	return entries, nil
}

// CreateSession calls POST /sessions/ with an explicit title.
func (c *Client) CreateSession(ctx context.Context, title string) (*chat.HistoryEntry, error) {
	var resp SessionDTO
	if err := c.do(ctx, "create session", http.MethodPost, "/sessions/", CreateSessionRequest{Title: title}, &resp); err != nil {
		return nil, err
	}
	entry := SessionSummaryDTO{
		ID:           resp.ID,
		Title:        resp.Title,
		CreatedAt:    resp.CreatedAt,
		UpdatedAt:    resp.UpdatedAt,
		MessageCount: len(resp.Messages),
	}.ToEntry()
	return &entry, nil
}

// PatchFeedback calls PATCH /messages/{id}/feedback/.
func (c *Client) PatchFeedback(ctx context.Context, messageID string, verdict chat.Feedback) error {
	path := "/messages/" + url.PathEscape(messageID) + "/feedback/"
	return c.do(ctx, "patch feedback", http.MethodPatch, path, FeedbackRequest{Feedback: string(verdict)}, nil)
}

// ClearSession calls DELETE /sessions/{id}/clear/. The session survives
// server side with no messages.
func (c *Client) ClearSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, "clear session", http.MethodDelete, sessionPath(sessionID, "clear/"), nil, nil)
}

// DeleteSession calls DELETE /sessions/{id}/.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, "delete session", http.MethodDelete, sessionPath(sessionID, ""), nil, nil)
}

// FetchStatus calls GET /status/.
func (c *Client) FetchStatus(ctx context.Context) (chat.ServiceStatus, error) {
	var resp StatusDTO
	if err := c.do(ctx, "fetch status", http.MethodGet, "/status/", nil, &resp); err != nil {
		return chat.ServiceStatus{}, err
	}
	services := make(map[string]bool, len(resp.Services))
	for name, up := range resp.Services {
		services[name] = up
	}
	return chat.ServiceStatus{Connected: resp.Connected, Services: services}, nil
}

// Health calls GET /.
func (c *Client) Health(ctx context.Context) (*HealthDTO, error) {
	var resp HealthDTO
	if err := c.do(ctx, "health", http.MethodGet, "/", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ingest calls POST /ingest/ to load the incident corpus into the vector store.
func (c *Client) Ingest(ctx context.Context) (*IngestDTO, error) {
	var resp IngestDTO
	if err := c.do(ctx, "ingest", http.MethodPost, "/ingest/", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func sessionPath(sessionID, suffix string) string {
	return "/sessions/" + url.PathEscape(sessionID) + "/" + suffix
}

// do sends one request. Transport failures wrap chat.ErrNetwork; non-2xx
// statuses become *chat.BackendError.
func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, chat.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		be := &chat.BackendError{Op: op, Status: resp.StatusCode}
		var errResp ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			be.Message = errResp.Error
		} else {
			be.Message = compactSingleLine(string(respBody), 240)
		}
		return be
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

func compactSingleLine(text string, limit int) string {
	compact := strings.Join(strings.Fields(text), " ")
	if len(compact) <= limit {
		return compact
	}
	return compact[:limit-3] + "..."
}
