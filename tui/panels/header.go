package panels

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zappabad/optionboard/internal/options"
	"github.com/zappabad/optionboard/internal/options/service"
	"github.com/zappabad/optionboard/tui/styles"
)

// HeaderPanel holds the symbol input and the underlying summary.
type HeaderPanel struct {
	symbolInput textinput.Model

	status     service.Status
	underlying options.Underlying
	marketOpen bool

	focused bool
	width   int
	height  int
}

// NewHeaderPanel creates a new header panel.
func NewHeaderPanel() *HeaderPanel {
	in := textinput.New()
	in.Placeholder = "Symbol..."
	in.Width = 10
	in.CharLimit = 12
	return &HeaderPanel{symbolInput: in}
}

// Init initializes the panel.
func (p *HeaderPanel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the panel.
func (p *HeaderPanel) Update(msg tea.Msg) (*HeaderPanel, tea.Cmd) {
	if !p.focused {
		return p, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
			sym := strings.ToUpper(strings.TrimSpace(p.symbolInput.Value()))
			if sym == "" {
				return p, nil
			}
			p.symbolInput.SetValue("")
			return p, func() tea.Msg { return SymbolSubmitMsg{Symbol: sym} }
		case key.Matches(msg, key.NewBinding(key.WithKeys("esc"))):
			p.symbolInput.SetValue("")
			return p, nil
		}
	}

	var cmd tea.Cmd
	p.symbolInput, cmd = p.symbolInput.Update(msg)
	return p, cmd
}

// View renders the panel.
func (p *HeaderPanel) View() string {
	inputStyle := styles.InputStyle
	if p.focused {
		inputStyle = styles.FocusedInputStyle
	}
	input := inputStyle.Render(p.symbolInput.View())

	sym := p.underlying.Symbol
	if sym == "" {
		sym = "-"
	}

	market := styles.NegativeStyle.Render("● CLOSED")
	if p.marketOpen {
		market = styles.PositiveStyle.Render("● OPEN")
	}

	fields := []string{
		styles.LabelStyle.Render("Symbol ") + styles.PriceStyle.Render(sym),
		styles.LabelStyle.Render("Last ") + styles.PriceStyle.Render(styles.FormatFloat(p.underlying.LastPrice, 2)),
		styles.LabelStyle.Render("Horizon ") + styles.RowStyle.Render(fmt.Sprintf("%d wk", p.status.HorizonWeeks)),
		styles.LabelStyle.Render("Right ") + styles.RowStyle.Render(p.status.Right.String()),
		styles.LabelStyle.Render("Phase ") + styles.RowStyle.Render(p.status.Phase.String()),
		styles.LabelStyle.Render("Contracts ") + styles.RowStyle.Render(fmt.Sprintf("%d", p.status.Quotes)),
		market,
	}
	summary := strings.Join(fields, "   ")

	line := lipgloss.JoinHorizontal(lipgloss.Center, input, "  ", summary)
	return lipgloss.NewStyle().Width(p.width).Render(line)
}

// SetFocus sets the focus state of the panel.
func (p *HeaderPanel) SetFocus(focused bool) {
	p.focused = focused
	if focused {
		p.symbolInput.Focus()
	} else {
		p.symbolInput.Blur()
	}
}

// SetSize sets the panel dimensions.
func (p *HeaderPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetState updates the displayed workflow state.
func (p *HeaderPanel) SetState(st service.Status, u options.Underlying, marketOpen bool) {
	p.status = st
	p.underlying = u
	p.marketOpen = marketOpen
}

// SymbolSubmitMsg is sent when a symbol is entered.
type SymbolSubmitMsg struct {
	Symbol string
}
