package panels

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappabad/optionboard/internal/diag"
	"github.com/zappabad/optionboard/internal/options/service"
)

func day(d int) time.Time {
	return time.Date(2024, 9, d, 0, 0, 0, 0, time.UTC)
}

func TestChainPanelSortCycle(t *testing.T) {
	p := NewChainPanel()
	p.SetSize(120, 30)
	p.SetFocus(true)
	p.SetRows("SPY", []service.Row{
		{Key: 1, Expiration: day(20), Strike: 100, ROI: 0.1, HasMetrics: true},
		{Key: 2, Expiration: day(13), Strike: 105, ROI: 0.3, HasMetrics: true},
		{Key: 3, Expiration: day(13), Strike: 95},
	})

	p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	keys := func() []int64 {
		var out []int64
		for _, r := range p.Rows() {
			out = append(out, int64(r.Key))
		}
		return out
	}
	assert.Equal(t, []int64{3, 2, 1}, keys())

	p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	assert.Equal(t, []int64{2, 1, 3}, keys())
}

func TestChainPanelCursorResetsOnNewSymbol(t *testing.T) {
	p := NewChainPanel()
	p.SetSize(120, 30)
	p.SetFocus(true)
	rows := []service.Row{{Key: 1}, {Key: 2}, {Key: 3}}
	p.SetRows("SPY", rows)

	p.Update(tea.KeyMsg{Type: tea.KeyDown})
	p.Update(tea.KeyMsg{Type: tea.KeyDown})
	sel, ok := p.Selected()
	require.True(t, ok)
	assert.EqualValues(t, 3, sel.Key)

	p.SetRows("SPY", rows[:1])
	sel, _ = p.Selected()
	assert.EqualValues(t, 1, sel.Key)

	p.SetRows("QQQ", rows)
	sel, _ = p.Selected()
	assert.EqualValues(t, 1, sel.Key)
	assert.Contains(t, p.View(), "QQQ")
}

func TestCandlestickAggregates(t *testing.T) {
	p := NewCandlestickPanel(time.Minute)
	p.SetSymbol("SPY")

	base := time.Date(2024, 9, 6, 15, 0, 0, 0, time.UTC)
	p.AddPrice(base, 100)
	p.AddPrice(base.Add(10*time.Second), 103)
	p.AddPrice(base.Add(20*time.Second), 99)
	p.AddPrice(base.Add(30*time.Second), 101)
	p.AddPrice(base.Add(time.Minute), 102)

	c := p.Candles()
	require.Len(t, c, 2)
	assert.Equal(t, Candle{Open: 100, High: 103, Low: 99, Close: 101, Time: base.UnixNano()}, c[0])
	assert.Equal(t, 102.0, c[1].Open)

	p.SetSize(60, 20)
	assert.NotEmpty(t, p.View())

	p.SetSymbol("QQQ")
	assert.Empty(t, p.Candles())
}

func TestDiagnosticsPanelAddItem(t *testing.T) {
	p := NewDiagnosticsPanel()
	p.SetSize(100, 10)

	p.AddItem(diag.Diagnostic{ID: 1, Severity: diag.SeverityError, Source: diag.SourceGateway, Code: 200, Message: "no security definition"})
	p.AddItem(diag.Diagnostic{ID: 1, Message: "duplicate"})
	p.AddItem(diag.Diagnostic{ID: 2, Severity: diag.SeverityWarning, Message: "late"})

	require.Len(t, p.Items(), 2)
	out := p.View()
	assert.Contains(t, out, "gateway 200")
	assert.Contains(t, out, "no security definition")
}

func TestHeaderPanelSubmitsSymbol(t *testing.T) {
	p := NewHeaderPanel()
	p.SetFocus(true)

	p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("spy")})
	_, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, SymbolSubmitMsg{Symbol: "SPY"}, cmd())

	_, cmd = p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}
