package transport_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardian/internal/chat"
	"guardian/internal/mockbackend"
	"guardian/internal/transport"
)

func newBackend(t *testing.T) (*transport.Client, *mockbackend.Server) {
	t.Helper()
	srv := mockbackend.NewServer(mockbackend.NewStore(), mockbackend.WithLogger(log.New(&bytes.Buffer{})))
	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(ts.Close)
	return transport.NewClient(ts.URL+"/api", 5*time.Second), srv
}

func TestCreateMessageAndFetchSession(t *testing.T) {
	client, _ := newBackend(t)
	ctx := context.Background()

	ex, err := client.CreateMessage(ctx, "How do I reset my password?", "")
	require.NoError(t, err)
	require.NotEmpty(t, ex.SessionID)
	assert.Equal(t, chat.RoleUser, ex.UserMessage.Role)
	assert.Equal(t, "How do I reset my password?", ex.UserMessage.Text)
	assert.False(t, ex.UserMessage.ShowFeedback)
	assert.Equal(t, chat.RoleBot, ex.BotMessage.Role)
	assert.True(t, ex.BotMessage.ShowFeedback)
	assert.Equal(t, chat.FeedbackNone, ex.BotMessage.Feedback)

	tr, err := client.FetchSession(ctx, ex.SessionID)
	require.NoError(t, err)
	assert.Equal(t, ex.SessionID, tr.ID)
	assert.Equal(t, "How do I reset my password?", tr.Title)
	require.Len(t, tr.Messages, 2)
	assert.Equal(t, ex.UserMessage.ID, tr.Messages[0].ID)
	assert.Equal(t, ex.BotMessage.ID, tr.Messages[1].ID)

	again, err := client.CreateMessage(ctx, "Still stuck", ex.SessionID)
	require.NoError(t, err)
	assert.Equal(t, ex.SessionID, again.SessionID)
}

func TestListSessions(t *testing.T) {
	client, _ := newBackend(t)
	ctx := context.Background()

	_, err := client.CreateSession(ctx, "")
	require.NoError(t, err)
	ex, err := client.CreateMessage(ctx, "Certificate expired", "")
	require.NoError(t, err)

	entries, err := client.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ex.SessionID, entries[0].ID)
	assert.Equal(t, 2, entries[0].MessageCount)
	assert.NotEmpty(t, entries[0].Preview)
	assert.Equal(t, chat.DefaultHistoryTitle, entries[1].Title)
	assert.Empty(t, entries[1].Preview)
}

func TestPatchFeedback(t *testing.T) {
	client, _ := newBackend(t)
	ctx := context.Background()

	ex, err := client.CreateMessage(ctx, "hello", "")
	require.NoError(t, err)
	require.NoError(t, client.PatchFeedback(ctx, ex.BotMessage.ID, chat.FeedbackUp))

	tr, err := client.FetchSession(ctx, ex.SessionID)
	require.NoError(t, err)
	assert.Equal(t, chat.FeedbackUp, tr.Messages[1].Feedback)

	err = client.PatchFeedback(ctx, "missing", chat.FeedbackDown)
	require.Error(t, err)
	assert.True(t, chat.IsNotFound(err))
	var be *chat.BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "Message not found", be.Message)
	assert.Equal(t, "patch feedback", be.Op)
}

func TestClearAndDeleteSession(t *testing.T) {
	client, _ := newBackend(t)
	ctx := context.Background()

	ex, err := client.CreateMessage(ctx, "hello", "")
	require.NoError(t, err)
	require.NoError(t, client.ClearSession(ctx, ex.SessionID))

	tr, err := client.FetchSession(ctx, ex.SessionID)
	require.NoError(t, err)
	assert.Empty(t, tr.Messages)

	require.NoError(t, client.DeleteSession(ctx, ex.SessionID))
	_, err = client.FetchSession(ctx, ex.SessionID)
	assert.True(t, chat.IsNotFound(err))
	assert.True(t, chat.IsNotFound(client.ClearSession(ctx, ex.SessionID)))
}

func TestFetchStatus(t *testing.T) {
	client, srv := newBackend(t)
	srv.Store().SetService("qdrant", false)

	status, err := client.FetchStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.False(t, status.Services["qdrant"])
	assert.True(t, status.Services["postgresql"])
}

func TestHealthIngestAndAnalytics(t *testing.T) {
	client, _ := newBackend(t)
	ctx := context.Background()

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)

	ingest, err := client.Ingest(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(mockbackend.Incidents), ingest.DocumentsIngested)

	_, err = client.CreateMessage(ctx, "gateway 503", "")
	require.NoError(t, err)

	usage, err := client.UsageAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Summary.TotalSessions)

	perf, err := client.RAGPerformance(ctx)
	require.NoError(t, err)
	assert.Len(t, perf.RecentResponses, 1)
	assert.Greater(t, perf.Summary.AvgRAGScore, 0.0)
}

func TestNetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	client := transport.NewClient(url+"/api", time.Second)
	_, err := client.CreateMessage(context.Background(), "hello", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, chat.ErrNetwork)
	var be *chat.BackendError
	assert.False(t, errors.As(err, &be))
}

func TestNonJSONErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		http.Error(w, "upstream\n  exploded", http.StatusBadGateway)
	}))
	defer ts.Close()

	client := transport.NewClient(ts.URL, time.Second)
	_, err := client.FetchStatus(context.Background())
	var be *chat.BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, http.StatusBadGateway, be.Status)
	assert.Equal(t, "upstream exploded", be.Message)
	assert.NotErrorIs(t, err, chat.ErrNetwork)
}

func TestContextCancellation(t *testing.T) {
	srv := mockbackend.NewServer(mockbackend.NewStore(),
		mockbackend.WithLogger(log.New(&bytes.Buffer{})),
		mockbackend.WithDelay(time.Second))
	ts := httptest.NewServer(srv.Echo())
	defer ts.Close()

	client := transport.NewClient(ts.URL+"/api", 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.CreateMessage(ctx, "slow", "")
	assert.ErrorIs(t, err, chat.ErrNetwork)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClientDefaults(t *testing.T) {
	assert.Equal(t, transport.DefaultBaseURL, transport.NewClient("  ", 0).BaseURL())
	assert.Equal(t, "http://x/api", transport.NewClient("http://x/api/", 0).BaseURL())
}
