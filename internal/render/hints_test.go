package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHelpLink(t *testing.T) {
	assert.Equal(t, "https://"+DefaultHelpHost,
		HelpLink("User guides can be found at pspd-guardian-help-dev.cbp.dhs.gov", DefaultHelpHost))
	assert.Equal(t, "https://"+DefaultHelpHost,
		HelpLink("see PSPD-GUARDIAN-HELP-DEV.CBP.DHS.GOV for more", DefaultHelpHost))
	assert.Empty(t, HelpLink("Try the self-service portal.", DefaultHelpHost))
	assert.Empty(t, HelpLink("anything", ""))
}

func TestHintsReplacesTextWithLink(t *testing.T) {
	segs := Hints("Guides live at pspd-guardian-help-dev.cbp.dhs.gov today", DefaultHelpHost)
	if assert.Len(t, segs, 2) {
		assert.Equal(t, SegmentText, segs[0].Kind)
		assert.Equal(t, SegmentLink, segs[1].Kind)
		assert.Equal(t, DefaultHelpHost, segs[1].Text)
		assert.Equal(t, "https://"+DefaultHelpHost, segs[1].URL)
	}
}

func TestFormattingBoldAndBreaks(t *testing.T) {
	segs := Formatting("Step **one** done\nthen **two**")
	assert.Equal(t, []Segment{
		{Kind: SegmentText, Text: "Step "},
		{Kind: SegmentBold, Text: "one"},
		{Kind: SegmentText, Text: " done"},
		{Kind: SegmentBreak},
		{Kind: SegmentText, Text: "then "},
		{Kind: SegmentBold, Text: "two"},
	}, segs)
}

func TestFormattingUnterminatedBoldStaysLiteral(t *testing.T) {
	segs := Formatting("a **b")
	assert.Equal(t, []Segment{{Kind: SegmentText, Text: "a **b"}}, segs)
}

func TestFormattingCRLF(t *testing.T) {
	assert.Equal(t, "x\ny", PlainText(Formatting("x\r\ny")))
}

func TestPlainTextRoundTrip(t *testing.T) {
	text := "**Restart** the pod\nthen check logs"
	assert.Equal(t, "Restart the pod\nthen check logs", PlainText(Hints(text, DefaultHelpHost)))
}

func TestClock(t *testing.T) {
	assert.Equal(t, "--:--", Clock(time.Time{}))
	at := time.Date(2024, 5, 1, 21, 7, 0, 0, time.Local)
	assert.Equal(t, "09:07 PM", Clock(at))
	assert.Equal(t, "May 1, 2024", Date(at))
}
