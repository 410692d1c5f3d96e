package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"guardian/internal/chat"
	"guardian/internal/engine"
	"guardian/internal/render"
	"guardian/internal/transport"
)

const (
	welcomeTitle    = "Welcome to PSPD Guardian"
	welcomeSubtitle = "I can help you find solutions to Guardian incidents based on historical data. " +
		"Ask me about technical issues, error messages, or troubleshooting steps."
	sidebarLogLines = 8
)

func (m model) View() string {
	out := lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		m.renderContent(),
		m.renderInput(),
		m.renderFooter(),
	)
	if m.quitConfirm {
		out = m.renderQuitModal()
	}
	return m.theme.root.Render(out)
}

func (m *model) renderHeader() string {
	tabs := []struct {
		id    tabID
		label string
	}{
		{tabChat, "Chat"},
		{tabHistory, "History"},
		{tabAnalytics, "Analytics"},
		{tabHelp, "Help"},
	}
	segments := make([]string, 0, len(tabs)+2)
	for _, tab := range tabs {
		style := m.theme.tabInactive
		if tab.id == m.activeTab {
			style = m.theme.tabActive
		}
		segments = append(segments, style.Render(tab.label))
	}
	segments = append(segments, " "+m.renderConnectivity())
	session := fmt.Sprintf("  Session: %s", nullCoalesce(shortID(m.snap.SessionID), "new"))
	segments = append(segments, m.theme.helpText.Render(session))
	joined := lipgloss.JoinHorizontal(lipgloss.Left, segments...)
	return m.theme.header.Width(maxInt(20, m.width-4)).Render(joined)
}

func (m *model) renderConnectivity() string {
	label := nullCoalesce(m.snap.StatusLabel, engine.CheckingLabel)
	switch {
	case !m.snap.StatusKnown:
		return m.theme.helpText.Render("○ " + label)
	case m.snap.Status.Services[m.cfg.StatusDependency]:
		return m.theme.connected.Render("● " + label)
	default:
		return m.theme.disconnected.Render("● " + label)
	}
}

func (m *model) renderContent() string {
	contentHeight := maxInt(8, m.height-12)
	contentWidth := maxInt(40, m.width-4)

	switch m.activeTab {
	case tabChat:
		leftWidth, rightWidth := chatPaneWidths(contentWidth)
		left := m.theme.panel.Width(leftWidth).Height(contentHeight).Render(
			m.theme.panelTitle.Render("Conversation") + "\n" + m.transcript.View(),
		)
		right := m.theme.panel.Width(rightWidth).Height(contentHeight).Render(
			m.theme.panelTitle.Render("Sessions") + "\n" + m.sidebar.View(),
		)
		return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	case tabHistory:
		panel := m.theme.panel.Width(contentWidth).Height(contentHeight)
		return panel.Render(m.theme.panelTitle.Render("Chat History") + "\n" + m.renderHistory(contentWidth-4, contentHeight-2))
	case tabAnalytics:
		panel := m.theme.panel.Width(contentWidth).Height(contentHeight)
		return panel.Render(m.theme.panelTitle.Render("Analytics") + "\n" + m.detail.View())
	case tabHelp:
		panel := m.theme.panel.Width(contentWidth).Height(contentHeight)
		return panel.Render(m.theme.panelTitle.Render("Guardian Help") + "\n" + m.renderHelp())
	default:
		return ""
	}
}

func chatPaneWidths(contentWidth int) (left int, right int) {
	left = int(float64(contentWidth) * 0.68)
	right = contentWidth - left - 1
	if right < 26 {
		right = 26
		left = contentWidth - right - 1
	}
	return left, right
}

func (m *model) renderInput() string {
	contentWidth := maxInt(40, m.width-4)
	if m.activeTab != tabChat {
		return m.theme.inputPanel.Width(contentWidth).Render(m.theme.helpText.Render("Input disabled outside Chat tab. Press Tab to return."))
	}
	inputView := m.input.View()
	if m.snap.Loading {
		inputView = m.spinner.View() + " waiting for answer... " + inputView
	}
	return m.theme.inputPanel.Width(contentWidth).Render(inputView)
}

func (m *model) renderFooter() string {
	contentWidth := maxInt(40, m.width-4)
	statusStyle := m.theme.status
	lower := strings.ToLower(m.statusLine)
	if strings.Contains(lower, "failed") || strings.Contains(lower, "error") {
		statusStyle = m.theme.errorStatus
	}
	line := statusStyle.Render(compactSingleLine(m.statusLine, 180))
	var hints string
	switch m.activeTab {
	case tabHistory:
		hints = "Keys: Up/Down select · Enter load · d delete · r refresh · Tab switch view · Ctrl+C quit"
	case tabAnalytics:
		hints = "Keys: r refresh · Up/Down scroll · Tab switch view · Ctrl+C quit"
	default:
		hints = "Keys: Enter send · Ctrl+N new chat · Ctrl+L clear · Ctrl+U/Ctrl+D rate · Ctrl+K/Ctrl+J select answer · Tab switch view · Ctrl+C quit"
	}
	return m.theme.footer.Width(contentWidth).Render(line + "\n" + m.theme.helpText.Render(hints))
}

func (m *model) renderQuitModal() string {
	canvasWidth := maxInt(40, m.width-4)
	canvasHeight := maxInt(12, m.height-4)
	modalWidth := clampInt(int(float64(canvasWidth)*0.5), 32, 64)
	if modalWidth > canvasWidth-2 {
		modalWidth = canvasWidth - 2
	}

	body := strings.Join([]string{
		m.theme.errorStatus.Render("QUIT GUARDIAN?"),
		"",
		m.theme.helpText.Render("Your conversations are kept by the support service."),
		"",
		m.theme.selected.Render("[Y / Enter] Quit") + "    " + m.theme.helpText.Render("[N / Esc] Return"),
	}, "\n")
	panel := m.theme.modalFrame.Width(modalWidth).Render(body)
	return lipgloss.Place(
		canvasWidth,
		canvasHeight,
		lipgloss.Center,
		lipgloss.Center,
		panel,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("#120924")),
	)
}

func (m *model) resize() {
	contentWidth := maxInt(40, m.width-4)
	m.input.Width = maxInt(20, contentWidth-6)
}

// renderPanes refreshes viewport contents, keeping the scroll position unless
// the pane was already at the bottom.
func (m *model) renderPanes() {
	prevTranscriptYOffset := m.transcript.YOffset
	prevTranscriptAtBottom := m.transcript.AtBottom()
	prevDetailYOffset := m.detail.YOffset

	contentHeight := maxInt(8, m.height-12)
	contentWidth := maxInt(40, m.width-4)
	leftWidth, rightWidth := chatPaneWidths(contentWidth)

	m.transcript.Width = maxInt(20, leftWidth-4)
	m.transcript.Height = maxInt(5, contentHeight-3)
	m.sidebar.Width = maxInt(20, rightWidth-4)
	m.sidebar.Height = maxInt(5, contentHeight-3)
	m.detail.Width = maxInt(20, contentWidth-4)
	m.detail.Height = maxInt(5, contentHeight-3)

	m.transcript.SetContent(m.renderTranscript())
	if prevTranscriptAtBottom {
		m.transcript.GotoBottom()
	} else {
		m.transcript.SetYOffset(prevTranscriptYOffset)
	}
	m.sidebar.SetContent(m.renderSidebar())
	m.detail.SetContent(m.renderAnalytics())
	m.detail.SetYOffset(prevDetailYOffset)
}

func (m *model) renderTranscript() string {
	width := maxInt(24, m.transcript.Width-2)
	if len(m.snap.Messages) == 0 {
		if m.showWelcome {
			return m.theme.welcomeTitle.Render(welcomeTitle) + "\n\n" +
				m.theme.helpText.Render(wrapText(welcomeSubtitle, width))
		}
		return m.theme.helpText.Render("No messages in this session yet.")
	}

	var b strings.Builder
	for _, msg := range m.snap.Messages {
		b.WriteString(m.renderMessageHeader(msg))
		b.WriteString("\n")
		b.WriteString(renderSegments(render.Hints(msg.Text, m.cfg.HelpHost), m.theme, width))
		if len(msg.Sources) > 0 {
			b.WriteString("\n")
			b.WriteString(m.renderSources(msg.Sources, width))
		}
		if msg.ShowFeedback {
			if line := m.renderFeedback(msg); line != "" {
				b.WriteString("\n")
				b.WriteString(line)
			}
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *model) renderMessageHeader(msg chat.Message) string {
	label, styleKey := "You", "user"
	if msg.Role == chat.RoleBot {
		label, styleKey = "Guardian", "bot"
	}
	if msg.Failed {
		styleKey = "failed"
	}
	header := fmt.Sprintf("%s %s", render.Clock(msg.CreatedAt), label)
	switch {
	case msg.Provisional:
		header += " · sending"
	case msg.Failed:
		header += " · failed"
	}
	marker := "  "
	if msg.ID == m.selectedID {
		marker = m.theme.selected.Render("▶ ")
	}
	return marker + m.theme.role[styleKey].Render(header)
}

func (m *model) renderSources(sources []chat.Source, width int) string {
	lines := []string{"Sources:"}
	for _, src := range sources {
		lines = append(lines, truncate(fmt.Sprintf("- %s (%.2f)", src.Title, src.Score), width))
	}
	return m.theme.source.Render(strings.Join(lines, "\n"))
}

func (m *model) renderFeedback(msg chat.Message) string {
	switch msg.Feedback {
	case chat.FeedbackUp:
		return m.theme.connected.Render("▲ helpful")
	case chat.FeedbackDown:
		return m.theme.disconnected.Render("▼ not helpful")
	}
	if msg.ID == m.selectedID {
		return m.theme.helpText.Render("Was this helpful? Ctrl+U yes · Ctrl+D no")
	}
	return ""
}

func (m *model) renderSidebar() string {
	width := maxInt(20, m.sidebar.Width-2)
	var b strings.Builder
	b.WriteString(m.renderConnectivity())
	b.WriteString("\n\n")
	if len(m.snap.History) == 0 {
		b.WriteString(m.theme.helpText.Render("No previous conversations."))
	}
	for _, entry := range m.snap.History {
		title := truncate(nullCoalesce(entry.Title, chat.DefaultHistoryTitle), width-2)
		if entry.ID == m.snap.SessionID {
			b.WriteString(m.theme.historyActive.Render("• " + title))
		} else {
			b.WriteString("  " + title)
		}
		b.WriteString("\n")
	}
	if len(m.logs) > 0 {
		b.WriteString("\n")
		b.WriteString(m.theme.panelTitle.Render("Log"))
		start := maxInt(0, len(m.logs)-sidebarLogLines)
		for _, line := range m.logs[start:] {
			b.WriteString("\n")
			b.WriteString(m.theme.helpText.Render(truncate(line, width)))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *model) renderHistory(width int, height int) string {
	if len(m.snap.History) == 0 {
		return m.theme.helpText.Render("No previous conversations. Press r to refresh.")
	}
	rows := make([]string, 0, len(m.snap.History)*2)
	for i, entry := range m.snap.History {
		marker := "  "
		titleStyle := m.theme.metricValue
		if i == m.historyIndex {
			marker = m.theme.selected.Render("▶ ")
			titleStyle = m.theme.selected
		}
		title := nullCoalesce(entry.Title, chat.DefaultHistoryTitle)
		meta := fmt.Sprintf("%s %s · %d messages", render.Date(entry.UpdatedAt), render.Clock(entry.UpdatedAt), entry.MessageCount)
		if entry.ID == m.snap.SessionID {
			meta += " · active"
		}
		rows = append(rows, marker+titleStyle.Render(truncate(title, width-4))+"  "+m.theme.helpText.Render(meta))
		if entry.Preview != "" {
			rows = append(rows, "    "+m.theme.source.Render(compactSingleLine(entry.Preview, width-6)))
		}
	}
	// Keep the cursor row visible.
	visible := maxInt(2, height)
	cursorRow := 0
	for i := 0; i < m.historyIndex && i < len(m.snap.History); i++ {
		cursorRow++
		if m.snap.History[i].Preview != "" {
			cursorRow++
		}
	}
	start := 0
	if cursorRow >= visible {
		start = cursorRow - visible + 2
	}
	end := minInt(len(rows), start+visible)
	return strings.Join(rows[clampInt(start, 0, len(rows)):end], "\n")
}

func (m *model) renderAnalytics() string {
	width := maxInt(30, m.detail.Width-2)
	if m.usage == nil || m.perf == nil {
		switch {
		case m.analyticsLoading:
			return m.theme.helpText.Render("Loading analytics...")
		case m.analyticsErr != nil:
			return m.theme.errorStatus.Render("Analytics unavailable: " + compactSingleLine(m.analyticsErr.Error(), width))
		default:
			return m.theme.helpText.Render("Press r to load analytics.")
		}
	}
	sections := []string{
		m.renderUsage(m.usage, width),
		m.renderPerformance(m.perf, width),
	}
	return strings.Join(sections, "\n\n")
}

func (m *model) metric(key string, value string) string {
	return m.theme.metricKey.Render(fmt.Sprintf("%-26s", key)) + m.theme.metricValue.Render(value)
}

func (m *model) renderUsage(u *transport.UsageAnalytics, width int) string {
	lines := []string{
		m.theme.panelTitle.Render("Usage"),
		m.metric("Sessions", fmt.Sprintf("%d", u.Summary.TotalSessions)),
		m.metric("Messages", fmt.Sprintf("%d (%d user / %d bot)", u.Summary.TotalMessages, u.Summary.TotalUserMessages, u.Summary.TotalBotMessages)),
		m.metric("Messages per session", fmt.Sprintf("%.1f", u.Summary.AvgMessagesPerSession)),
		"",
		m.theme.panelTitle.Render("Feedback"),
		m.theme.bar.Render(histogram(
			[]string{"Helpful", "Not helpful", "No feedback"},
			[]int{u.Feedback.Helpful, u.Feedback.NotHelpful, u.Feedback.NoFeedback},
			width,
		)),
	}
	if len(u.MessagesPerDay) > 0 {
		days := u.MessagesPerDay
		if len(days) > 7 {
			days = days[len(days)-7:]
		}
		labels := make([]string, len(days))
		counts := make([]int, len(days))
		for i, d := range days {
			labels[i], counts[i] = d.Date, d.Count
		}
		lines = append(lines, "", m.theme.panelTitle.Render("Messages per day"), m.theme.bar.Render(histogram(labels, counts, width)))
	}
	return strings.Join(lines, "\n")
}

func (m *model) renderPerformance(p *transport.RAGPerformance, width int) string {
	s := p.Summary
	lines := []string{
		m.theme.panelTitle.Render("Answer performance"),
		m.metric("Retrieval latency", fmt.Sprintf("avg %.0fms · min %.0fms · max %.0fms", s.AvgRAGLatencyMS, s.MinRAGLatencyMS, s.MaxRAGLatencyMS)),
		m.metric("Generation latency", fmt.Sprintf("avg %.0fms · min %.0fms · max %.0fms", s.AvgLLMLatencyMS, s.MinLLMLatencyMS, s.MaxLLMLatencyMS)),
		m.metric("Total latency", fmt.Sprintf("avg %.0fms · min %.0fms · max %.0fms", s.AvgTotalLatencyMS, s.MinTotalLatencyMS, s.MaxTotalLatencyMS)),
		m.metric("Average retrieval score", fmt.Sprintf("%.3f", s.AvgRAGScore)),
	}
	if len(p.ScoreDistribution) > 0 {
		labels, counts := rangeRows(p.ScoreDistribution)
		lines = append(lines, "", m.theme.panelTitle.Render("Score distribution"), m.theme.bar.Render(histogram(labels, counts, width)))
	}
	if len(p.LatencyDistribution) > 0 {
		labels, counts := rangeRows(p.LatencyDistribution)
		lines = append(lines, "", m.theme.panelTitle.Render("Latency distribution"), m.theme.bar.Render(histogram(labels, counts, width)))
	}
	if len(p.RecentResponses) > 0 {
		lines = append(lines, "", m.theme.panelTitle.Render("Recent answers"))
		for _, r := range p.RecentResponses {
			lines = append(lines, truncate(fmt.Sprintf("%s  %6.0fms  score %.3f", r.Timestamp, r.TotalLatencyMS, r.TopRAGScore), width))
		}
	}
	return strings.Join(lines, "\n")
}

func rangeRows(rows []transport.RangeCount) ([]string, []int) {
	labels := make([]string, len(rows))
	counts := make([]int, len(rows))
	for i, r := range rows {
		labels[i], counts[i] = r.Range, r.Count
	}
	return labels, counts
}

func (m *model) renderHelp() string {
	lines := []string{
		"Chat",
		"- Enter: send a question",
		"- Ctrl+N: start a new chat",
		"- Ctrl+L: clear the current conversation",
		"- Ctrl+K / Ctrl+J: select the previous / next answer",
		"- Ctrl+U / Ctrl+D: rate the selected answer helpful / not helpful",
		"- PgUp/PgDn, Up/Down (input empty), Home/End: scroll the conversation",
		"",
		"History",
		"- Up/Down: select a conversation",
		"- Enter: load it · d: delete it · r: refresh the list",
		"",
		"Analytics",
		"- r: reload usage and answer performance",
		"",
		"General",
		"- Tab / Shift+Tab: switch views",
		"- Esc: back to Chat, or quit prompt from Chat",
		"- Ctrl+C: quit",
		"",
		"Links to the user guide portal (" + nullCoalesce(m.cfg.HelpHost, "unset") + ") are shown underlined.",
	}
	return m.theme.helpText.Render(strings.Join(lines, "\n"))
}
