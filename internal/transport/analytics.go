package transport

import (
	"context"
	"net/http"
)

// Analytics payloads are aggregated by the backend and only displayed by the
// client.

type UsageSummary struct {
	TotalSessions         int     `json:"total_sessions"`
	TotalMessages         int     `json:"total_messages"`
	TotalUserMessages     int     `json:"total_user_messages"`
	TotalBotMessages      int     `json:"total_bot_messages"`
	AvgMessagesPerSession float64 `json:"avg_messages_per_session"`
}

type FeedbackDistribution struct {
	Helpful    int `json:"helpful"`
	NotHelpful int `json:"not_helpful"`
	NoFeedback int `json:"no_feedback"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type HourlyCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

type UsageAnalytics struct {
	Summary         UsageSummary         `json:"summary"`
	Feedback        FeedbackDistribution `json:"feedback"`
	MessagesPerDay  []DailyCount         `json:"messages_per_day"`
	SessionsPerDay  []DailyCount         `json:"sessions_per_day"`
	MessagesPerHour []HourlyCount        `json:"messages_per_hour"`
}

type RAGSummary struct {
	AvgRAGLatencyMS   float64 `json:"avg_rag_latency_ms"`
	AvgLLMLatencyMS   float64 `json:"avg_llm_latency_ms"`
	AvgTotalLatencyMS float64 `json:"avg_total_latency_ms"`
	AvgRAGScore       float64 `json:"avg_rag_score"`
	MaxRAGLatencyMS   float64 `json:"max_rag_latency_ms"`
	MaxLLMLatencyMS   float64 `json:"max_llm_latency_ms"`
	MaxTotalLatencyMS float64 `json:"max_total_latency_ms"`
	MinRAGLatencyMS   float64 `json:"min_rag_latency_ms"`
	MinLLMLatencyMS   float64 `json:"min_llm_latency_ms"`
	MinTotalLatencyMS float64 `json:"min_total_latency_ms"`
}

type RangeCount struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

type RecentResponse struct {
	ID             string  `json:"id"`
	Timestamp      string  `json:"timestamp"`
	RAGLatencyMS   float64 `json:"rag_latency_ms"`
	LLMLatencyMS   float64 `json:"llm_latency_ms"`
	TotalLatencyMS float64 `json:"total_latency_ms"`
	TopRAGScore    float64 `json:"top_rag_score"`
}

type DailyPerformance struct {
	Date            string  `json:"date"`
	AvgRAGLatency   float64 `json:"avg_rag_latency"`
	AvgLLMLatency   float64 `json:"avg_llm_latency"`
	AvgTotalLatency float64 `json:"avg_total_latency"`
	AvgRAGScore     float64 `json:"avg_rag_score"`
	Count           int     `json:"count"`
}

type RAGPerformance struct {
	Summary             RAGSummary         `json:"summary"`
	ScoreDistribution   []RangeCount       `json:"score_distribution"`
	LatencyDistribution []RangeCount       `json:"latency_distribution"`
	RecentResponses     []RecentResponse   `json:"recent_responses"`
	PerformancePerDay   []DailyPerformance `json:"performance_per_day"`
}

// UsageAnalytics calls GET /analytics/usage/.
func (c *Client) UsageAnalytics(ctx context.Context) (*UsageAnalytics, error) {
	var resp UsageAnalytics
	if err := c.do(ctx, "usage analytics", http.MethodGet, "/analytics/usage/", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RAGPerformance calls GET /analytics/rag-performance/.
func (c *Client) RAGPerformance(ctx context.Context) (*RAGPerformance, error) {
	var resp RAGPerformance
	if err := c.do(ctx, "rag analytics", http.MethodGet, "/analytics/rag-performance/", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
