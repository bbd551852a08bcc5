package panels

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zappabad/optionboard/internal/diag"
	"github.com/zappabad/optionboard/tui/styles"
)

// DiagnosticsPanel lists recent diagnostics, newest last.
type DiagnosticsPanel struct {
	items        []diag.Diagnostic
	scrollOffset int
	follow       bool
	focused      bool
	width        int
	height       int
	maxItems     int
}

// NewDiagnosticsPanel creates a new diagnostics panel.
func NewDiagnosticsPanel() *DiagnosticsPanel {
	return &DiagnosticsPanel{
		follow:   true,
		maxItems: 200,
	}
}

// Init initializes the panel.
func (p *DiagnosticsPanel) Init() tea.Cmd {
	return nil
}

func (p *DiagnosticsPanel) visibleItems() int {
	n := p.height - 4
	if n < 1 {
		n = 1
	}
	return n
}

// Update handles messages for the panel.
func (p *DiagnosticsPanel) Update(msg tea.Msg) (*DiagnosticsPanel, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok || !p.focused {
		return p, nil
	}
	switch {
	case key.Matches(km, key.NewBinding(key.WithKeys("up", "k"))):
		if p.scrollOffset > 0 {
			p.scrollOffset--
		}
		p.follow = false
	case key.Matches(km, key.NewBinding(key.WithKeys("down", "j"))):
		if p.scrollOffset < p.maxOffset() {
			p.scrollOffset++
		}
		p.follow = p.scrollOffset == p.maxOffset()
	case key.Matches(km, key.NewBinding(key.WithKeys("end", "G"))):
		p.follow = true
		p.scrollOffset = p.maxOffset()
	}
	return p, nil
}

func (p *DiagnosticsPanel) maxOffset() int {
	return max(len(p.items)-p.visibleItems(), 0)
}

// View renders the panel.
func (p *DiagnosticsPanel) View() string {
	var content strings.Builder

	if len(p.items) == 0 {
		content.WriteString(styles.MutedStyle.Render("No diagnostics"))
	} else {
		if p.follow {
			p.scrollOffset = p.maxOffset()
		}
		end := min(p.scrollOffset+p.visibleItems(), len(p.items))
		for i := p.scrollOffset; i < end; i++ {
			content.WriteString(p.renderItem(p.items[i]))
			if i < end-1 {
				content.WriteString("\n")
			}
		}
	}

	panelStyle := styles.PanelStyle
	if p.focused {
		panelStyle = styles.FocusedPanelStyle
	}

	title := styles.RenderTitle(fmt.Sprintf("⚠ Diagnostics (%d)", len(p.items)), p.focused)
	panel := lipgloss.JoinVertical(lipgloss.Left, title, content.String())

	return panelStyle.Width(p.width - 2).Height(p.height - 2).Render(panel)
}

func (p *DiagnosticsPanel) renderItem(d diag.Diagnostic) string {
	sevStyle := styles.InfoStyle
	switch d.Severity {
	case diag.SeverityWarning:
		sevStyle = styles.WarnStyle
	case diag.SeverityError:
		sevStyle = styles.ErrorStyle
	}

	var ref strings.Builder
	ref.WriteString(string(d.Source))
	if d.Code != 0 {
		fmt.Fprintf(&ref, " %d", d.Code)
	}
	if d.RequestID != 0 {
		fmt.Fprintf(&ref, " #%d", d.RequestID)
	}
	if d.Command != "" {
		ref.WriteString(" " + d.Command)
	}

	msg := d.Message
	room := p.width - 40 - ref.Len()
	if room > 3 && len(msg) > room {
		msg = msg[:room-3] + "..."
	}

	return fmt.Sprintf("%s %s %s %s",
		styles.TimeStyle.Render(time.Unix(0, d.Time).Format("15:04:05")),
		sevStyle.Render(fmt.Sprintf("%-5s", d.Severity)),
		styles.MutedStyle.Render("["+ref.String()+"]"),
		styles.RowStyle.Render(msg),
	)
}

// SetFocus sets the focus state of the panel.
func (p *DiagnosticsPanel) SetFocus(focused bool) {
	p.focused = focused
}

// SetSize sets the panel dimensions.
func (p *DiagnosticsPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetItems replaces the diagnostics shown.
func (p *DiagnosticsPanel) SetItems(items []diag.Diagnostic) {
	p.items = items
	if len(p.items) > p.maxItems {
		p.items = p.items[len(p.items)-p.maxItems:]
	}
}

// AddItem appends one diagnostic unless it is already shown.
func (p *DiagnosticsPanel) AddItem(d diag.Diagnostic) {
	if n := len(p.items); n > 0 && p.items[n-1].ID >= d.ID {
		return
	}
	p.items = append(p.items, d)
	if len(p.items) > p.maxItems {
		p.items = p.items[len(p.items)-p.maxItems:]
	}
}

// Items returns the diagnostics shown.
func (p *DiagnosticsPanel) Items() []diag.Diagnostic {
	return p.items
}

// DiagnosticMsg is sent when a diagnostic is published.
type DiagnosticMsg struct {
	Item diag.Diagnostic
}
