package panels

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zappabad/optionboard/internal/account"
	"github.com/zappabad/optionboard/internal/gateway"
	"github.com/zappabad/optionboard/tui/styles"
)

// AccountPanel shows the account summary, positions and working orders.
type AccountPanel struct {
	snap    account.Snapshot
	focused bool
	width   int
	height  int
}

// NewAccountPanel creates a new account panel.
func NewAccountPanel() *AccountPanel {
	return &AccountPanel{}
}

// Init initializes the panel.
func (p *AccountPanel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the panel.
func (p *AccountPanel) Update(msg tea.Msg) (*AccountPanel, tea.Cmd) {
	return p, nil
}

// View renders the panel.
func (p *AccountPanel) View() string {
	var lines []string

	if len(p.snap.Accounts) == 0 && len(p.snap.Summary) == 0 {
		lines = append(lines, styles.MutedStyle.Render("No account data"))
	} else {
		for _, v := range p.snap.Summary {
			lines = append(lines, fmt.Sprintf("%s %s %s",
				styles.LabelStyle.Render(fmt.Sprintf("%-16s", v.Tag)),
				styles.PriceStyle.Render(fmt.Sprintf("%14s", v.Value)),
				styles.MutedStyle.Render(v.Currency),
			))
		}

		lines = append(lines, "", styles.HeaderStyle.Render(fmt.Sprintf("Positions (%d)", len(p.snap.Positions))))
		for _, pos := range p.snap.Positions {
			qtyStyle := styles.PositiveStyle
			if pos.Quantity < 0 {
				qtyStyle = styles.NegativeStyle
			}
			lines = append(lines, fmt.Sprintf("%-22s %s %s",
				describe(pos.Symbol, pos.SecType, pos.Expiration, pos.Strike, pos.Right),
				qtyStyle.Render(fmt.Sprintf("%6g", pos.Quantity)),
				styles.MutedStyle.Render(fmt.Sprintf("@ %.2f", pos.AvgCost)),
			))
		}

		lines = append(lines, "", styles.HeaderStyle.Render(fmt.Sprintf("Orders (%d)", len(p.snap.Orders))))
		for _, o := range p.snap.Orders {
			price := ""
			if o.OrderType == "LMT" {
				price = fmt.Sprintf(" %.2f", o.LimitPrice)
			}
			lines = append(lines, fmt.Sprintf("#%-5d %-4s %4g %-6s %s%s %s",
				o.OrderID, o.Action, o.Quantity, o.Symbol, o.OrderType, price,
				styles.MutedStyle.Render(o.Status)))
		}
	}

	if limit := p.height - 4; limit > 0 && len(lines) > limit {
		lines = lines[:limit]
	}

	panelStyle := styles.PanelStyle
	if p.focused {
		panelStyle = styles.FocusedPanelStyle
	}

	title := "💼 Account"
	if len(p.snap.Accounts) > 0 {
		title += " " + strings.Join(p.snap.Accounts, ",")
	}
	panel := lipgloss.JoinVertical(lipgloss.Left, styles.RenderTitle(title, p.focused), strings.Join(lines, "\n"))

	return panelStyle.Width(p.width - 2).Height(p.height - 2).Render(panel)
}

func describe(symbol string, sec gateway.SecType, expiration string, strike float64, right gateway.Right) string {
	if sec != gateway.SecTypeOption {
		return symbol
	}
	return fmt.Sprintf("%s %s %g%s", symbol, expiration, strike, right.String()[:1])
}

// SetFocus sets the focus state of the panel.
func (p *AccountPanel) SetFocus(focused bool) {
	p.focused = focused
}

// SetSize sets the panel dimensions.
func (p *AccountPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetSnapshot replaces the account state shown.
func (p *AccountPanel) SetSnapshot(s account.Snapshot) {
	p.snap = s
}

// Snapshot returns the account state shown.
func (p *AccountPanel) Snapshot() account.Snapshot {
	return p.snap
}
