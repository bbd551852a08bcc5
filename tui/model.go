package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zappabad/optionboard/internal/account"
	"github.com/zappabad/optionboard/internal/diag"
	diagview "github.com/zappabad/optionboard/internal/diag/view"
	"github.com/zappabad/optionboard/internal/options"
	"github.com/zappabad/optionboard/internal/options/service"
	"github.com/zappabad/optionboard/tui/panels"
	"github.com/zappabad/optionboard/tui/styles"
)

// Board is the option chain workflow driven by the UI.
type Board interface {
	LoadSymbol(ctx context.Context, symbol string) error
	SetHorizonWeeks(ctx context.Context, weeks int) error
	Reload(ctx context.Context) error
	RefreshAccount(ctx context.Context) error
	Snapshot() []service.Row
	Underlying() options.Underlying
	Account() account.Snapshot
	Status() service.Status
	MarketOpen() bool
}

// DiagFeed supplies diagnostics to the UI.
type DiagFeed interface {
	Latest(n int) []diag.Diagnostic
	Events() <-chan diagview.DiagEvent
}

// Options tunes the model.
type Options struct {
	RefreshInterval time.Duration
	CommandTimeout  time.Duration
	DiagnosticsRows int
	CandlePeriod    time.Duration
}

// PanelFocus represents which panel is currently focused.
type PanelFocus int

const (
	FocusHeader      PanelFocus = 0
	FocusChain       PanelFocus = 1
	FocusChart       PanelFocus = 2
	FocusAccount     PanelFocus = 3
	FocusDiagnostics PanelFocus = 4

	focusCount = 5
)

// Model is the main TUI application model.
type Model struct {
	board Board
	diags DiagFeed
	opts  Options

	// Panels
	headerPanel      *panels.HeaderPanel
	chainPanel       *panels.ChainPanel
	chartPanel       *panels.CandlestickPanel
	accountPanel     *panels.AccountPanel
	diagnosticsPanel *panels.DiagnosticsPanel

	focusedPanel PanelFocus

	width  int
	height int

	statusMsg string
	ready     bool
}

// NewModel creates a new TUI model.
func NewModel(board Board, diags DiagFeed, opts Options) *Model {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 500 * time.Millisecond
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 5 * time.Second
	}
	if opts.DiagnosticsRows <= 0 {
		opts.DiagnosticsRows = 6
	}

	m := &Model{
		board:            board,
		diags:            diags,
		opts:             opts,
		headerPanel:      panels.NewHeaderPanel(),
		chainPanel:       panels.NewChainPanel(),
		chartPanel:       panels.NewCandlestickPanel(opts.CandlePeriod),
		accountPanel:     panels.NewAccountPanel(),
		diagnosticsPanel: panels.NewDiagnosticsPanel(),
	}
	m.setFocus(FocusHeader)
	return m
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.headerPanel.Init(),
		m.chainPanel.Init(),
		m.chartPanel.Init(),
		m.accountPanel.Init(),
		m.diagnosticsPanel.Init(),
		m.listenDiagEvents(),
		m.tickRefresh(),
	)
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.setFocus((m.focusedPanel + 1) % focusCount)
			return m, nil
		case "shift+tab":
			m.setFocus((m.focusedPanel + focusCount - 1) % focusCount)
			return m, nil
		}

		// Single-key commands would otherwise swallow symbol input.
		if m.focusedPanel != FocusHeader {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "r":
				return m, m.command("reload", m.board.Reload)
			case "a":
				return m, m.command("account refresh", m.board.RefreshAccount)
			case "+", "=":
				return m, m.setHorizon(m.board.Status().HorizonWeeks + 1)
			case "-":
				return m, m.setHorizon(m.board.Status().HorizonWeeks - 1)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case panels.SymbolSubmitMsg:
		sym := msg.Symbol
		cmds = append(cmds, m.command("load "+sym, func(ctx context.Context) error {
			return m.board.LoadSymbol(ctx, sym)
		}))

	case panels.DiagnosticMsg:
		m.diagnosticsPanel.AddItem(msg.Item)
		cmds = append(cmds, m.listenDiagEvents())

	case commandResultMsg:
		m.statusMsg = msg.message
		m.refresh(time.Now())

	case tickMsg:
		m.refresh(time.Time(msg))
		cmds = append(cmds, m.tickRefresh())
	}

	m.updateFocusedPanel(msg, &cmds)

	return m, tea.Batch(cmds...)
}

func (m *Model) updateFocusedPanel(msg tea.Msg, cmds *[]tea.Cmd) {
	var cmd tea.Cmd

	switch m.focusedPanel {
	case FocusHeader:
		m.headerPanel, cmd = m.headerPanel.Update(msg)
	case FocusChain:
		m.chainPanel, cmd = m.chainPanel.Update(msg)
	case FocusChart:
		m.chartPanel, cmd = m.chartPanel.Update(msg)
	case FocusAccount:
		m.accountPanel, cmd = m.accountPanel.Update(msg)
	case FocusDiagnostics:
		m.diagnosticsPanel, cmd = m.diagnosticsPanel.Update(msg)
	}

	if cmd != nil {
		*cmds = append(*cmds, cmd)
	}
}

// View renders the UI.
func (m *Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	// Layout:
	// ┌──────────────────────────────────────────────┐
	// │ Symbol input │ underlying summary             │
	// ├──────────────────────────────┬───────────────┤
	// │                              │    Chart      │
	// │        Option chain          ├───────────────┤
	// │                              │   Account     │
	// ├──────────────────────────────┴───────────────┤
	// │                 Diagnostics                   │
	// └──────────────────────────────────────────────┘

	headerHeight := 1
	statusHeight := 1
	diagHeight := m.opts.DiagnosticsRows + 4
	middleHeight := m.height - headerHeight - statusHeight - diagHeight
	if middleHeight < 8 {
		middleHeight = 8
	}

	leftWidth := m.width * 2 / 3
	rightWidth := m.width - leftWidth
	chartHeight := middleHeight / 2
	accountHeight := middleHeight - chartHeight

	m.headerPanel.SetSize(m.width, headerHeight)
	m.chainPanel.SetSize(leftWidth, middleHeight)
	m.chartPanel.SetSize(rightWidth, chartHeight)
	m.accountPanel.SetSize(rightWidth, accountHeight)
	m.diagnosticsPanel.SetSize(m.width, diagHeight)

	right := lipgloss.JoinVertical(lipgloss.Left, m.chartPanel.View(), m.accountPanel.View())
	middle := lipgloss.JoinHorizontal(lipgloss.Top, m.chainPanel.View(), right)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerPanel.View(),
		middle,
		m.diagnosticsPanel.View(),
		m.renderStatusBar(),
	)
}

func (m *Model) renderStatusBar() string {
	help := []string{
		styles.StatusBarKeyStyle.Render("Tab") + styles.StatusBarDescStyle.Render(" panels"),
		styles.StatusBarKeyStyle.Render("Enter") + styles.StatusBarDescStyle.Render(" load"),
		styles.StatusBarKeyStyle.Render("+/-") + styles.StatusBarDescStyle.Render(" horizon"),
		styles.StatusBarKeyStyle.Render("r") + styles.StatusBarDescStyle.Render(" reload"),
		styles.StatusBarKeyStyle.Render("a") + styles.StatusBarDescStyle.Render(" account"),
		styles.StatusBarKeyStyle.Render("s") + styles.StatusBarDescStyle.Render(" sort"),
		styles.StatusBarKeyStyle.Render("q") + styles.StatusBarDescStyle.Render(" quit"),
	}

	helpStr := help[0]
	for _, h := range help[1:] {
		helpStr = lipgloss.JoinHorizontal(lipgloss.Center, helpStr, " │ ", h)
	}

	status := ""
	if m.statusMsg != "" {
		status = " │ " + m.statusMsg
	}

	return styles.StatusBarStyle.Width(m.width).Render(helpStr + status)
}

func (m *Model) setFocus(panel PanelFocus) {
	m.focusedPanel = panel
	m.headerPanel.SetFocus(panel == FocusHeader)
	m.chainPanel.SetFocus(panel == FocusChain)
	m.chartPanel.SetFocus(panel == FocusChart)
	m.accountPanel.SetFocus(panel == FocusAccount)
	m.diagnosticsPanel.SetFocus(panel == FocusDiagnostics)
}

// Focus returns the focused panel.
func (m *Model) Focus() PanelFocus {
	return m.focusedPanel
}

// StatusMessage returns the text shown after the key help.
func (m *Model) StatusMessage() string {
	return m.statusMsg
}

func (m *Model) refresh(now time.Time) {
	st := m.board.Status()
	u := m.board.Underlying()

	m.headerPanel.SetState(st, u, m.board.MarketOpen())
	m.chainPanel.SetRows(st.Symbol, m.board.Snapshot())
	m.chartPanel.SetSymbol(u.Symbol)
	if price, ok := u.Price(); ok {
		m.chartPanel.AddPrice(now, price)
	}
	m.accountPanel.SetSnapshot(m.board.Account())
	if m.diags != nil && len(m.diagnosticsPanel.Items()) == 0 {
		m.diagnosticsPanel.SetItems(m.diags.Latest(200))
	}
}

func (m *Model) setHorizon(weeks int) tea.Cmd {
	if err := options.ValidateHorizon(weeks); err != nil {
		m.statusMsg = "❌ " + err.Error()
		return nil
	}
	return m.command(fmt.Sprintf("horizon %d wk", weeks), func(ctx context.Context) error {
		return m.board.SetHorizonWeeks(ctx, weeks)
	})
}

func (m *Model) command(label string, fn func(context.Context) error) tea.Cmd {
	timeout := m.opts.CommandTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			return commandResultMsg{message: fmt.Sprintf("❌ %s failed: %v", label, err)}
		}
		return commandResultMsg{message: "✓ " + label}
	}
}

func (m *Model) listenDiagEvents() tea.Cmd {
	if m.diags == nil {
		return nil
	}
	return func() tea.Msg {
		events := m.diags.Events()
		ev, ok := <-events
		if !ok {
			return nil
		}
		return panels.DiagnosticMsg{Item: ev.Item}
	}
}

// tickMsg is sent periodically to refresh data.
type tickMsg time.Time

func (m *Model) tickRefresh() tea.Cmd {
	return tea.Tick(m.opts.RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// commandResultMsg is sent after a workflow command returns.
type commandResultMsg struct {
	message string
}
