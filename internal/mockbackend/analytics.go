package mockbackend

import (
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"guardian/internal/chat"
	"guardian/internal/transport"
)

const recentLimit = 10

var scoreRanges = []struct {
	label string
	max   float64
}{
	{"0.0-0.2", 0.2},
	{"0.2-0.4", 0.4},
	{"0.4-0.6", 0.6},
	{"0.6-0.8", 0.8},
	{"0.8-1.0", math.Inf(1)},
}

var latencyRanges = []struct {
	label string
	max   time.Duration
}{
	{"<500ms", 500 * time.Millisecond},
	{"500ms-1s", time.Second},
	{"1s-2s", 2 * time.Second},
	{"2s-5s", 5 * time.Second},
	{">5s", time.Duration(math.MaxInt64)},
}

func (s *Server) UsageAnalytics(c echo.Context) error {
	sessions := s.store.List()
	var out transport.UsageAnalytics
	messagesPerDay := map[string]int{}
	sessionsPerDay := map[string]int{}
	perHour := make([]int, 24)

	for _, sess := range sessions {
		out.Summary.TotalSessions++
		sessionsPerDay[sess.createdAt.Format(time.DateOnly)]++
		for _, m := range sess.messages {
			out.Summary.TotalMessages++
			messagesPerDay[m.CreatedAt.Format(time.DateOnly)]++
			perHour[m.CreatedAt.Hour()]++
			if m.Role == chat.RoleUser {
				out.Summary.TotalUserMessages++
				continue
			}
			out.Summary.TotalBotMessages++
			switch m.Feedback {
			case chat.FeedbackUp:
				out.Feedback.Helpful++
			case chat.FeedbackDown:
				out.Feedback.NotHelpful++
			default:
				out.Feedback.NoFeedback++
			}
		}
	}
	if out.Summary.TotalSessions > 0 {
		avg := float64(out.Summary.TotalMessages) / float64(out.Summary.TotalSessions)
		out.Summary.AvgMessagesPerSession = round(avg, 2)
	}
	out.MessagesPerDay = dailyCounts(messagesPerDay)
	out.SessionsPerDay = dailyCounts(sessionsPerDay)
	out.MessagesPerHour = make([]transport.HourlyCount, 0, 24)
	for hour, n := range perHour {
		out.MessagesPerHour = append(out.MessagesPerHour, transport.HourlyCount{Hour: hour, Count: n})
	}
	return c.JSON(http.StatusOK, out)
}

type answered struct {
	msg    chat.Message
	timing timing
}

func (s *Server) RAGPerformance(c echo.Context) error {
	var answers []answered
	for _, sess := range s.store.List() {
		for _, m := range sess.messages {
			if m.Role != chat.RoleBot {
				continue
			}
			t, ok := s.store.timingOf(m.ID)
			if !ok {
				continue
			}
			answers = append(answers, answered{msg: m, timing: t})
		}
	}
	sort.SliceStable(answers, func(i, j int) bool {
		return answers[i].msg.CreatedAt.After(answers[j].msg.CreatedAt)
	})

	out := transport.RAGPerformance{
		ScoreDistribution:   make([]transport.RangeCount, len(scoreRanges)),
		LatencyDistribution: make([]transport.RangeCount, len(latencyRanges)),
		RecentResponses:     []transport.RecentResponse{},
		PerformancePerDay:   []transport.DailyPerformance{},
	}
	for i, r := range scoreRanges {
		out.ScoreDistribution[i].Range = r.label
	}
	for i, r := range latencyRanges {
		out.LatencyDistribution[i].Range = r.label
	}

	type dayAgg struct {
		rag, llm, total, score float64
		n                      int
	}
	days := map[string]*dayAgg{}
	var sumRAG, sumLLM, sumTotal, sumScore float64
	for i, a := range answers {
		rag := ms(a.timing.rag)
		llm := ms(a.timing.llm)
		total := rag + llm
		score := topScore(a.msg.Sources)

		if i == 0 {
			out.Summary.MinRAGLatencyMS, out.Summary.MinLLMLatencyMS, out.Summary.MinTotalLatencyMS = rag, llm, total
		}
		out.Summary.MaxRAGLatencyMS = math.Max(out.Summary.MaxRAGLatencyMS, rag)
		out.Summary.MaxLLMLatencyMS = math.Max(out.Summary.MaxLLMLatencyMS, llm)
		out.Summary.MaxTotalLatencyMS = math.Max(out.Summary.MaxTotalLatencyMS, total)
		out.Summary.MinRAGLatencyMS = math.Min(out.Summary.MinRAGLatencyMS, rag)
		out.Summary.MinLLMLatencyMS = math.Min(out.Summary.MinLLMLatencyMS, llm)
		out.Summary.MinTotalLatencyMS = math.Min(out.Summary.MinTotalLatencyMS, total)
		sumRAG += rag
		sumLLM += llm
		sumTotal += total
		sumScore += score

		for j, r := range scoreRanges {
			if score < r.max {
				out.ScoreDistribution[j].Count++
				break
			}
		}
		for j, r := range latencyRanges {
			if a.timing.rag+a.timing.llm < r.max {
				out.LatencyDistribution[j].Count++
				break
			}
		}

		if i < recentLimit {
			out.RecentResponses = append(out.RecentResponses, transport.RecentResponse{
				ID:             a.msg.ID,
				Timestamp:      a.msg.CreatedAt.Format(time.RFC3339),
				RAGLatencyMS:   rag,
				LLMLatencyMS:   llm,
				TotalLatencyMS: total,
				TopRAGScore:    score,
			})
		}

		key := a.msg.CreatedAt.Format(time.DateOnly)
		d, ok := days[key]
		if !ok {
			d = &dayAgg{}
			days[key] = d
		}
		d.rag += rag
		d.llm += llm
		d.total += total
		d.score += score
		d.n++
	}

	if n := float64(len(answers)); n > 0 {
		out.Summary.AvgRAGLatencyMS = round(sumRAG/n, 1)
		out.Summary.AvgLLMLatencyMS = round(sumLLM/n, 1)
		out.Summary.AvgTotalLatencyMS = round(sumTotal/n, 1)
		out.Summary.AvgRAGScore = round(sumScore/n, 3)
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		d := days[k]
		n := float64(d.n)
		out.PerformancePerDay = append(out.PerformancePerDay, transport.DailyPerformance{
			Date:            k,
			AvgRAGLatency:   round(d.rag/n, 1),
			AvgLLMLatency:   round(d.llm/n, 1),
			AvgTotalLatency: round(d.total/n, 1),
			AvgRAGScore:     round(d.score/n, 3),
			Count:           d.n,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func dailyCounts(counts map[string]int) []transport.DailyCount {
	out := make([]transport.DailyCount, 0, len(counts))
	for date, n := range counts {
		out = append(out, transport.DailyCount{Date: date, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func topScore(sources []chat.Source) float64 {
	best := 0.0
	for _, src := range sources {
		best = math.Max(best, src.Score)
	}
	return best
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
