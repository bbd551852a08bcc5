package panels

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zappabad/optionboard/internal/options/service"
	"github.com/zappabad/optionboard/tui/styles"
)

// ChainSort selects the row order of the chain grid.
type ChainSort int

const (
	SortReceived ChainSort = iota
	SortExpiry
	SortROI
)

func (s ChainSort) String() string {
	switch s {
	case SortExpiry:
		return "expiry"
	case SortROI:
		return "roi"
	default:
		return "received"
	}
}

// ChainPanel displays the option chain with derived metrics.
type ChainPanel struct {
	symbol        string
	rows          []service.Row
	sortBy        ChainSort
	selectedIndex int
	scrollOffset  int
	focused       bool
	width         int
	height        int
}

// NewChainPanel creates a new chain panel.
func NewChainPanel() *ChainPanel {
	return &ChainPanel{}
}

// Init initializes the panel.
func (p *ChainPanel) Init() tea.Cmd {
	return nil
}

func (p *ChainPanel) visibleRows() int {
	n := p.height - 5
	if n < 1 {
		n = 1
	}
	return n
}

// Update handles messages for the panel.
func (p *ChainPanel) Update(msg tea.Msg) (*ChainPanel, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok || !p.focused {
		return p, nil
	}

	switch {
	case key.Matches(km, key.NewBinding(key.WithKeys("up", "k"))):
		p.move(-1)
	case key.Matches(km, key.NewBinding(key.WithKeys("down", "j"))):
		p.move(1)
	case key.Matches(km, key.NewBinding(key.WithKeys("pgup"))):
		p.move(-p.visibleRows())
	case key.Matches(km, key.NewBinding(key.WithKeys("pgdown"))):
		p.move(p.visibleRows())
	case key.Matches(km, key.NewBinding(key.WithKeys("s"))):
		p.sortBy = (p.sortBy + 1) % 3
		p.applySort()
	}
	return p, nil
}

func (p *ChainPanel) move(delta int) {
	p.selectedIndex += delta
	if p.selectedIndex >= len(p.rows) {
		p.selectedIndex = len(p.rows) - 1
	}
	if p.selectedIndex < 0 {
		p.selectedIndex = 0
	}
	visible := p.visibleRows()
	if p.selectedIndex < p.scrollOffset {
		p.scrollOffset = p.selectedIndex
	}
	if p.selectedIndex >= p.scrollOffset+visible {
		p.scrollOffset = p.selectedIndex - visible + 1
	}
}

const chainRowFormat = "%-10s %4s %8s %8s %8s %7s %7s %7s %8s %8s"

// View renders the panel.
func (p *ChainPanel) View() string {
	var content strings.Builder

	header := fmt.Sprintf(chainRowFormat, "Expiry", "DTE", "Strike", "Last", "Mark", "IV", "Delta", "Theta", "PPD", "ROI")
	content.WriteString(styles.HeaderStyle.Render(header))
	content.WriteString("\n")

	if len(p.rows) == 0 {
		content.WriteString(styles.MutedStyle.Render("Waiting for contracts..."))
	} else {
		visible := p.visibleRows()
		end := p.scrollOffset + visible
		if end > len(p.rows) {
			end = len(p.rows)
		}

		for i := p.scrollOffset; i < end; i++ {
			r := p.rows[i]
			ppd, roi := "-", "-"
			if r.HasMetrics {
				ppd = fmt.Sprintf("%.2f", r.PPD)
				roi = styles.FormatPercent(r.ROI)
			}
			iv := "-"
			if r.ImpliedVol != nil {
				iv = styles.FormatPercent(*r.ImpliedVol)
			}
			line := fmt.Sprintf(chainRowFormat,
				r.Expiration.Format("2006-01-02"),
				fmt.Sprintf("%d", r.DaysToExpiry),
				fmt.Sprintf("%.2f", r.Strike),
				styles.FormatFloat(r.LastPrice, 2),
				styles.FormatFloat(r.OptionPrice, 2),
				iv,
				styles.FormatFloat(r.Delta, 3),
				styles.FormatFloat(r.Theta, 3),
				ppd,
				roi,
			)

			style := styles.RowStyle
			switch {
			case i == p.selectedIndex && p.focused:
				style = styles.SelectedRowStyle
			case !r.HasMetrics:
				style = styles.PendingRowStyle
			case r.PPD < 0:
				style = styles.NegativeStyle
			}
			content.WriteString(style.Render(line))
			if i < end-1 {
				content.WriteString("\n")
			}
		}

		if len(p.rows) > visible {
			content.WriteString("\n")
			content.WriteString(styles.MutedStyle.Render(fmt.Sprintf(" (%d/%d)", p.selectedIndex+1, len(p.rows))))
		}
	}

	panelStyle := styles.PanelStyle
	if p.focused {
		panelStyle = styles.FocusedPanelStyle
	}

	sym := p.symbol
	if sym == "" {
		sym = "no symbol"
	}
	title := styles.RenderTitle(fmt.Sprintf("⛓ Chain - %s (%d) sort:%s", sym, len(p.rows), p.sortBy), p.focused)
	panel := lipgloss.JoinVertical(lipgloss.Left, title, content.String())

	return panelStyle.Width(p.width - 2).Height(p.height - 2).Render(panel)
}

// SetFocus sets the focus state of the panel.
func (p *ChainPanel) SetFocus(focused bool) {
	p.focused = focused
}

// SetSize sets the panel dimensions.
func (p *ChainPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetRows replaces the displayed chain. A new symbol resets the cursor.
func (p *ChainPanel) SetRows(symbol string, rows []service.Row) {
	if symbol != p.symbol {
		p.symbol = symbol
		p.selectedIndex = 0
		p.scrollOffset = 0
	}
	p.rows = rows
	p.applySort()
	if p.selectedIndex >= len(p.rows) {
		p.selectedIndex = max(len(p.rows)-1, 0)
	}
}

func (p *ChainPanel) applySort() {
	switch p.sortBy {
	case SortExpiry:
		sort.SliceStable(p.rows, func(i, j int) bool {
			a, b := p.rows[i], p.rows[j]
			if !a.Expiration.Equal(b.Expiration) {
				return a.Expiration.Before(b.Expiration)
			}
			return a.Strike < b.Strike
		})
	case SortROI:
		sort.SliceStable(p.rows, func(i, j int) bool {
			a, b := p.rows[i], p.rows[j]
			if a.HasMetrics != b.HasMetrics {
				return a.HasMetrics
			}
			return a.ROI > b.ROI
		})
	}
}

// Rows returns the rows in display order.
func (p *ChainPanel) Rows() []service.Row {
	return p.rows
}

// Selected returns the row under the cursor.
func (p *ChainPanel) Selected() (service.Row, bool) {
	if p.selectedIndex >= 0 && p.selectedIndex < len(p.rows) {
		return p.rows[p.selectedIndex], true
	}
	return service.Row{}, false
}
