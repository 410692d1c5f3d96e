package mockbackend

import (
	"math"
	"sort"
	"strings"
	"time"

	"guardian/internal/chat"
	"guardian/internal/render"
)

// Reply is what the answering pipeline produced for one question.
type Reply struct {
	Text       string
	Sources    []chat.Source
	RAGLatency time.Duration
	LLMLatency time.Duration
}

// Replier answers a question. Tests swap it for a fixed answer.
type Replier func(question string) Reply

const cannedAnswer = "Thank you for your question. I'm looking into Guardian incidents related to your query. " +
	"Please allow me a moment to search our historical data for the best solution."

// Incidents is the corpus loaded by the ingest endpoint.
var Incidents = []string{
	"Authentication Failure - Service Account Lockout",
	"Database Connection Timeout - Spanner Vector Search",
	"API Gateway 503 Service Unavailable",
	"Certificate Expiration Warning",
	"Memory Leak in Guardian Processor Service",
	"User Guide and Documentation Access",
	"Log Aggregation Pipeline Failure",
	"Role-Based Access Control (RBAC) Permission Denied",
	"Incident Data Sync Delay",
	"Deployment Rollback Procedure",
	"SSL Handshake Failure with Upstream Services",
	"Kubernetes Pod CrashLoopBackOff",
}

const maxSources = 3

// DefaultReplier answers with a canned text and cites incidents whose titles
// share words with the question. Questions about guides mention the help
// host, which the client turns into a link.
func DefaultReplier(helpHost string) Replier {
	if helpHost == "" {
		helpHost = render.DefaultHelpHost
	}
	return func(question string) Reply {
		sources := matchIncidents(question)
		text := cannedAnswer
		if strings.Contains(strings.ToLower(question), "guide") {
			text = "User guides can be found at " + helpHost + ". " + cannedAnswer
		}
		return Reply{
			Text:       text,
			Sources:    sources,
			RAGLatency: time.Duration(40+10*len(sources)) * time.Millisecond,
			LLMLatency: time.Duration(600+3*len(question)) * time.Millisecond,
		}
	}
}

func matchIncidents(question string) []chat.Source {
	words := tokenize(question)
	if len(words) == 0 {
		return nil
	}
	var out []chat.Source
	for _, title := range Incidents {
		titleWords := tokenize(title)
		hits := 0
		for w := range words {
			if _, ok := titleWords[w]; ok {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		score := float64(hits) / float64(len(titleWords))
		out = append(out, chat.Source{Title: title, Score: math.Round(score*1000) / 1000})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > maxSources {
		out = out[:maxSources]
	}
	return out
}

func tokenize(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(w) < 3 {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}
