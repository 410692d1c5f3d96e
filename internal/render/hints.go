// Package render turns message text into presentation hints. It knows nothing
// about sessions or the network.
package render

import (
	"strings"
	"time"
)

// DefaultHelpHost is the help portal whose mention in a message becomes a link.
const DefaultHelpHost = "pspd-guardian-help-dev.cbp.dhs.gov"

const helpLinkLead = "User guides can be found at "

type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentBold
	SegmentBreak
	SegmentLink
)

// Segment is one run of text with a single formatting hint.
type Segment struct {
	Kind SegmentKind
	Text string
	URL  string
}

// HelpLink returns the portal URL when text mentions host, or "".
func HelpLink(text, host string) string {
	host = strings.TrimSpace(host)
	if host == "" || !strings.Contains(strings.ToLower(text), strings.ToLower(host)) {
		return ""
	}
	return "https://" + host
}

// Hints splits text into display segments. When the text mentions the help
// host the raw text is replaced by a lead-in and a link segment.
func Hints(text, host string) []Segment {
	if link := HelpLink(text, host); link != "" {
		return []Segment{
			{Kind: SegmentText, Text: helpLinkLead},
			{Kind: SegmentLink, Text: strings.TrimPrefix(link, "https://"), URL: link},
		}
	}
	return Formatting(text)
}

// Formatting recognises **bold** spans and line breaks. An unterminated "**"
// is kept as literal text.
func Formatting(text string) []Segment {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	out := make([]Segment, 0, len(lines))
	for i, line := range lines {
		if i > 0 {
			out = append(out, Segment{Kind: SegmentBreak})
		}
		out = append(out, boldSpans(line)...)
	}
	return out
}

func boldSpans(line string) []Segment {
	var out []Segment
	rest := line
	for {
		open := strings.Index(rest, "**")
		if open < 0 {
			break
		}
		closing := strings.Index(rest[open+2:], "**")
		if closing < 0 {
			break
		}
		if open > 0 {
			out = append(out, Segment{Kind: SegmentText, Text: rest[:open]})
		}
		if bold := rest[open+2 : open+2+closing]; bold != "" {
			out = append(out, Segment{Kind: SegmentBold, Text: bold})
		}
		rest = rest[open+2+closing+2:]
	}
	if rest != "" {
		out = append(out, Segment{Kind: SegmentText, Text: rest})
	}
	return out
}

// PlainText flattens segments back into a single display string.
func PlainText(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		switch seg.Kind {
		case SegmentBreak:
			b.WriteString("\n")
		default:
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}

// Clock formats an instant the way the transcript shows it, e.g. "09:45 AM".
func Clock(t time.Time) string {
	if t.IsZero() {
		return "--:--"
	}
	return t.Local().Format("03:04 PM")
}

// Date formats an instant for the history pane.
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("Jan 2, 2006")
}
