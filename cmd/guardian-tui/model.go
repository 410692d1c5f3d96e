package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"guardian/internal/chat"
	"guardian/internal/config"
	"guardian/internal/engine"
	"guardian/internal/transport"
)

type tabID int

const (
	tabChat tabID = iota
	tabHistory
	tabAnalytics
	tabHelp
)

const (
	tabCount      = 4
	maxInputRunes = 4000
)

type analyticsSource interface {
	UsageAnalytics(ctx context.Context) (*transport.UsageAnalytics, error)
	RAGPerformance(ctx context.Context) (*transport.RAGPerformance, error)
}

type model struct {
	cfg       config.Config
	engine    *engine.Engine
	analytics analyticsSource
	events    *eventQueue

	snap         engine.Snapshot
	showWelcome  bool
	selectedID   string
	followLatest bool
	historyIndex int

	usage            *transport.UsageAnalytics
	perf             *transport.RAGPerformance
	analyticsErr     error
	analyticsLoading bool

	statusLine  string
	logs        []string
	quitConfirm bool
	activeTab   tabID
	width       int
	height      int

	input      textinput.Model
	transcript viewport.Model
	sidebar    viewport.Model
	detail     viewport.Model
	spinner    spinner.Model

	theme uiTheme
}

type initDoneMsg struct {
	err error
}

type engineEventsMsg struct {
	events []engine.Event
}

type sendDoneMsg struct {
	localID string
	err     error
}

type actionDoneMsg struct {
	status string
	err    error
}

type analyticsDoneMsg struct {
	usage *transport.UsageAnalytics
	perf  *transport.RAGPerformance
	err   error
}

func newModel(cfg config.Config, eng *engine.Engine, analytics analyticsSource) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = maxInputRunes
	input.Placeholder = "What Guardian issue can I help with today?"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	transcript := viewport.New(0, 0)
	transcript.MouseWheelEnabled = true
	transcript.MouseWheelDelta = 4
	sidebar := viewport.New(0, 0)
	sidebar.MouseWheelEnabled = true
	sidebar.MouseWheelDelta = 4
	detail := viewport.New(0, 0)
	detail.MouseWheelEnabled = true
	detail.MouseWheelDelta = 4

	events := newEventQueue()
	eng.Subscribe(events.push)

	return model{
		cfg:          cfg,
		engine:       eng,
		analytics:    analytics,
		events:       events,
		snap:         eng.Snapshot(),
		showWelcome:  true,
		followLatest: true,
		statusLine:   "starting...",
		logs:         []string{},
		activeTab:    tabChat,
		input:        input,
		transcript:   transcript,
		sidebar:      sidebar,
		detail:       detail,
		spinner:      sp,
		theme:        newTheme(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.initCmd(),
		waitEngineMsg(m.events),
	)
}

func (m model) initCmd() tea.Cmd {
	eng := m.engine
	opts := engine.StartOptions{
		SessionID:    m.cfg.SessionID,
		ResumeLatest: m.cfg.ResumeLatest,
	}
	timeout := m.cfg.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := opContext(timeout)
		defer cancel()
		return initDoneMsg{err: eng.Start(ctx, opts)}
	}
}

func opContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}

func (m model) sendCmd(p *engine.Pending) tea.Cmd {
	timeout := m.cfg.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := opContext(timeout)
		defer cancel()
		return sendDoneMsg{localID: p.LocalID(), err: p.Run(ctx)}
	}
}

func (m model) feedbackCmd(messageID string, verdict chat.Feedback) tea.Cmd {
	eng := m.engine
	timeout := m.cfg.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := opContext(timeout)
		defer cancel()
		if err := eng.SubmitFeedback(ctx, messageID, verdict); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "feedback recorded: " + string(verdict)}
	}
}

func (m model) clearCmd() tea.Cmd {
	eng := m.engine
	timeout := m.cfg.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := opContext(timeout)
		defer cancel()
		if err := eng.ClearSession(ctx); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "conversation cleared"}
	}
}

func (m model) loadCmd(sessionID string) tea.Cmd {
	eng := m.engine
	timeout := m.cfg.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := opContext(timeout)
		defer cancel()
		if err := eng.LoadSession(ctx, sessionID); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "loaded session " + shortID(sessionID)}
	}
}

func (m model) deleteCmd(sessionID string) tea.Cmd {
	eng := m.engine
	timeout := m.cfg.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := opContext(timeout)
		defer cancel()
		if err := eng.DeleteSession(ctx, sessionID); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "deleted session " + shortID(sessionID)}
	}
}

func (m model) refreshHistoryCmd() tea.Cmd {
	eng := m.engine
	timeout := m.cfg.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := opContext(timeout)
		defer cancel()
		if err := eng.RefreshHistory(ctx); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "history refreshed"}
	}
}

func (m model) analyticsCmd() tea.Cmd {
	src := m.analytics
	if src == nil {
		return nil
	}
	timeout := m.cfg.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := opContext(timeout)
		defer cancel()
		usage, err := src.UsageAnalytics(ctx)
		if err != nil {
			return analyticsDoneMsg{err: err}
		}
		perf, err := src.RAGPerformance(ctx)
		if err != nil {
			return analyticsDoneMsg{err: err}
		}
		return analyticsDoneMsg{usage: usage, perf: perf}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case initDoneMsg:
		m.statusLine = "ready"
		if msg.err != nil {
			// Startup failures are non-blocking; the chat still works.
			m.logError(msg.err)
		}
		m.syncSnapshot()
	case engineEventsMsg:
		for _, ev := range msg.events {
			m.applyEvent(ev)
		}
		m.syncSnapshot()
		cmds = append(cmds, waitEngineMsg(m.events))
	case sendDoneMsg:
		switch {
		case msg.err == nil:
			m.statusLine = "answer received"
		case errors.Is(msg.err, chat.ErrStaleResponse):
			m.appendLog("dropped stale answer for " + msg.localID)
		default:
			m.logError(msg.err)
			m.statusLine = "send failed"
		}
		m.syncSnapshot()
	case actionDoneMsg:
		if errors.Is(msg.err, chat.ErrStaleResponse) {
			m.appendLog("dropped stale result")
		} else if msg.err != nil {
			m.logError(msg.err)
		} else if strings.TrimSpace(msg.status) != "" {
			m.statusLine = msg.status
			m.appendLog(msg.status)
		}
		m.syncSnapshot()
	case analyticsDoneMsg:
		m.analyticsLoading = false
		m.analyticsErr = msg.err
		if msg.err != nil {
			m.logError(msg.err)
		} else {
			m.usage = msg.usage
			m.perf = msg.perf
			m.statusLine = "analytics updated"
		}
		m.renderPanes()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderPanes()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.MouseMsg:
		if m.quitConfirm {
			break
		}
		var cmd tea.Cmd
		switch m.activeTab {
		case tabChat:
			m.transcript, cmd = m.transcript.Update(msg)
		case tabAnalytics:
			m.detail, cmd = m.detail.Update(msg)
		}
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.quitConfirm {
		switch msg.String() {
		case "y", "Y", "enter":
			return m, tea.Quit
		case "n", "N", "esc":
			m.quitConfirm = false
			m.statusLine = "quit canceled"
			m.renderPanes()
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		if m.activeTab == tabChat {
			m.beginQuitConfirm()
			return m, nil
		}
		m.switchTab(tabChat)
		return m, nil
	case "tab":
		return m, m.switchTab((m.activeTab + 1) % tabCount)
	case "shift+tab":
		return m, m.switchTab((m.activeTab + tabCount - 1) % tabCount)
	case "ctrl+n":
		m.engine.StartNewChat()
		m.resetView()
		m.statusLine = "new chat"
		m.syncSnapshot()
		return m, nil
	case "ctrl+l":
		m.resetView()
		m.statusLine = "clearing conversation..."
		return m, m.clearCmd()
	}

	switch m.activeTab {
	case tabChat:
		switch msg.String() {
		case "enter":
			p, err := m.engine.Begin(m.input.Value())
			switch {
			case errors.Is(err, chat.ErrEmptyMessage):
				return m, nil
			case errors.Is(err, chat.ErrBusy):
				m.statusLine = "busy: waiting for the previous answer"
				return m, nil
			case err != nil:
				m.logError(err)
				return m, nil
			}
			m.input.SetValue("")
			m.showWelcome = false
			m.followLatest = true
			m.statusLine = "sending..."
			m.syncSnapshot()
			m.transcript.GotoBottom()
			return m, m.sendCmd(p)
		case "ctrl+u":
			return m, m.rateSelected(chat.FeedbackUp)
		case "ctrl+d":
			return m, m.rateSelected(chat.FeedbackDown)
		case "ctrl+k":
			m.moveSelection(-1)
			return m, nil
		case "ctrl+j":
			m.moveSelection(1)
			return m, nil
		case "pgup", "ctrl+b":
			m.transcript.LineUp(8)
			return m, nil
		case "pgdown", "ctrl+f":
			m.transcript.LineDown(8)
			return m, nil
		case "up":
			if strings.TrimSpace(m.input.Value()) == "" {
				m.transcript.LineUp(4)
				return m, nil
			}
		case "down":
			if strings.TrimSpace(m.input.Value()) == "" {
				m.transcript.LineDown(4)
				return m, nil
			}
		case "home":
			m.transcript.GotoTop()
			return m, nil
		case "end":
			m.transcript.GotoBottom()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	case tabHistory:
		history := m.snap.History
		switch msg.String() {
		case "up", "k":
			m.historyIndex = maxInt(0, m.historyIndex-1)
		case "down", "j":
			m.historyIndex = clampInt(m.historyIndex+1, 0, maxInt(0, len(history)-1))
		case "enter":
			if len(history) == 0 {
				break
			}
			id := history[m.historyIndex].ID
			m.statusLine = "loading session " + shortID(id) + "..."
			m.switchTab(tabChat)
			return m, m.loadCmd(id)
		case "d", "delete":
			if len(history) == 0 {
				break
			}
			id := history[m.historyIndex].ID
			m.statusLine = "deleting session " + shortID(id) + "..."
			return m, m.deleteCmd(id)
		case "r":
			m.statusLine = "refreshing history..."
			return m, m.refreshHistoryCmd()
		}
		m.renderPanes()
	case tabAnalytics:
		switch msg.String() {
		case "r":
			return m, m.startAnalytics()
		case "pgup", "k", "up":
			m.detail.LineUp(4)
		case "pgdown", "j", "down":
			m.detail.LineDown(4)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m *model) switchTab(tab tabID) tea.Cmd {
	m.activeTab = tab
	if tab == tabChat {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
	var cmd tea.Cmd
	if tab == tabAnalytics && m.usage == nil && !m.analyticsLoading {
		cmd = m.startAnalytics()
	}
	m.renderPanes()
	return cmd
}

func (m *model) startAnalytics() tea.Cmd {
	if m.analyticsLoading {
		return nil
	}
	cmd := m.analyticsCmd()
	if cmd == nil {
		return nil
	}
	m.analyticsLoading = true
	m.statusLine = "loading analytics..."
	return cmd
}

func (m *model) rateSelected(verdict chat.Feedback) tea.Cmd {
	if m.selectedID == "" {
		m.statusLine = "no answer selected"
		return nil
	}
	m.statusLine = "sending feedback..."
	return m.feedbackCmd(m.selectedID, verdict)
}

func (m *model) applyEvent(ev engine.Event) {
	switch ev.Kind {
	case engine.EventSessionLoaded:
		m.showWelcome = false
		m.followLatest = true
		m.selectedID = ""
		m.appendLog("session loaded: " + shortID(ev.SessionID))
	case engine.EventNewChat, engine.EventSessionCleared:
		m.resetView()
	case engine.EventSendFailed:
		m.statusLine = "send failed"
		if ev.Err != nil {
			m.appendLog("send failed: " + ev.Err.Error())
		}
	case engine.EventError:
		if ev.Err != nil {
			m.appendLog("error: " + ev.Err.Error())
		}
	}
}

func (m *model) resetView() {
	m.showWelcome = true
	m.followLatest = true
	m.selectedID = ""
}

// syncSnapshot re-reads engine state and re-renders every pane.
func (m *model) syncSnapshot() {
	m.snap = m.engine.Snapshot()
	m.historyIndex = clampInt(m.historyIndex, 0, maxInt(0, len(m.snap.History)-1))
	m.ensureSelection()
	m.renderPanes()
}

func (m *model) rateableIDs() []string {
	ids := make([]string, 0, len(m.snap.Messages))
	for _, msg := range m.snap.Messages {
		if msg.Rateable() {
			ids = append(ids, msg.ID)
		}
	}
	return ids
}

func (m *model) ensureSelection() {
	ids := m.rateableIDs()
	if len(ids) == 0 {
		m.selectedID = ""
		return
	}
	if m.followLatest || indexOf(ids, m.selectedID) < 0 {
		m.selectedID = ids[len(ids)-1]
	}
}

func (m *model) moveSelection(delta int) {
	ids := m.rateableIDs()
	if len(ids) == 0 {
		m.selectedID = ""
		m.statusLine = "no answers to select"
		return
	}
	idx := indexOf(ids, m.selectedID)
	if idx < 0 {
		idx = len(ids) - 1
	}
	idx = clampInt(idx+delta, 0, len(ids)-1)
	m.selectedID = ids[idx]
	m.followLatest = idx == len(ids)-1
	m.statusLine = fmt.Sprintf("answer %d/%d selected", idx+1, len(ids))
	m.renderPanes()
}

func (m *model) beginQuitConfirm() {
	m.quitConfirm = true
	m.statusLine = "quit guardian?"
}

func (m *model) appendLog(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	m.logs = append(m.logs, fmt.Sprintf("%s %s", time.Now().Format("15:04:05"), compactSingleLine(trimmed, 220)))
	if len(m.logs) > 50 {
		m.logs = m.logs[len(m.logs)-50:]
	}
}

func (m *model) logError(err error) {
	if err == nil {
		return
	}
	m.appendLog("error: " + err.Error())
	m.statusLine = "error: " + compactSingleLine(err.Error(), 160)
}

func indexOf(ids []string, id string) int {
	for i, candidate := range ids {
		if candidate == id {
			return i
		}
	}
	return -1
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
