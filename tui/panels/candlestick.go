package panels

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zappabad/optionboard/tui/styles"
)

// Candle aggregates underlying prices over one period.
type Candle struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
	Time  int64
}

// CandlestickPanel charts the underlying price.
type CandlestickPanel struct {
	symbol  string
	candles []Candle

	currentCandle *Candle
	candleStart   int64
	candlePeriod  int64

	focused bool
	width   int
	height  int

	maxCandles int
}

// NewCandlestickPanel creates a new candlestick chart panel.
func NewCandlestickPanel(period time.Duration) *CandlestickPanel {
	if period <= 0 {
		period = 5 * time.Second
	}
	return &CandlestickPanel{
		candlePeriod: int64(period),
		maxCandles:   60,
	}
}

// Init initializes the panel.
func (p *CandlestickPanel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the panel.
func (p *CandlestickPanel) Update(msg tea.Msg) (*CandlestickPanel, tea.Cmd) {
	return p, nil
}

// View renders the panel.
func (p *CandlestickPanel) View() string {
	sym := p.symbol
	if sym == "" {
		sym = "no symbol"
	}

	var content strings.Builder
	chartHeight := p.height - 6
	if chartHeight < 3 {
		chartHeight = 3
	}

	all := p.allCandles()
	if len(all) == 0 {
		content.WriteString(styles.MutedStyle.Render("No price yet..."))
	} else {
		content.WriteString(p.renderChart(p.width-6, chartHeight, all))
	}

	panelStyle := styles.PanelStyle
	if p.focused {
		panelStyle = styles.FocusedPanelStyle
	}

	title := styles.RenderTitle(fmt.Sprintf("📉 %s", sym), p.focused)
	panel := lipgloss.JoinVertical(lipgloss.Left, title, content.String())

	return panelStyle.Width(p.width - 2).Height(p.height - 2).Render(panel)
}

func (p *CandlestickPanel) allCandles() []Candle {
	if p.currentCandle == nil {
		return p.candles
	}
	out := make([]Candle, 0, len(p.candles)+1)
	out = append(out, p.candles...)
	return append(out, *p.currentCandle)
}

func (p *CandlestickPanel) renderChart(width, height int, candles []Candle) string {
	// 9 chars of price axis plus separator; each candle takes 2 columns.
	show := (width - 10) / 2
	if show < 1 {
		show = 1
	}
	if len(candles) > show {
		candles = candles[len(candles)-show:]
	}

	lo, hi := candles[0].Low, candles[0].High
	for _, c := range candles {
		lo = min(lo, c.Low)
		hi = max(hi, c.High)
	}
	pad := (hi - lo) * 0.1
	if pad == 0 {
		pad = 0.05
	}
	lo -= pad
	hi += pad

	var b strings.Builder
	for row := 0; row < height; row++ {
		price := yToPrice(row, lo, hi, height)
		b.WriteString(styles.ChartAxisStyle.Render(fmt.Sprintf("%8.2f │", price)))
		for _, c := range candles {
			style := styles.CandleUpStyle
			if c.Close < c.Open {
				style = styles.CandleDownStyle
			}
			b.WriteString(style.Render(string(candleChar(c, row, lo, hi, height))))
			b.WriteString(" ")
		}
		b.WriteString("\n")
	}

	b.WriteString(styles.ChartAxisStyle.Render("─────────┴" + strings.Repeat("──", len(candles))))
	b.WriteString("\n")
	b.WriteString(styles.ChartLabelStyle.Render(fmt.Sprintf("%10s%s", "",
		time.Unix(0, candles[0].Time).Format("15:04:05"))))
	return b.String()
}

func candleChar(c Candle, row int, lo, hi float64, height int) rune {
	price := yToPrice(row, lo, hi, height)
	tol := (hi - lo) / float64(height*2)

	top, bottom := max(c.Open, c.Close), min(c.Open, c.Close)
	switch {
	case price <= top+tol && price >= bottom-tol:
		return '┃'
	case price <= c.High+tol && price > top:
		return '│'
	case price >= c.Low-tol && price < bottom:
		return '│'
	}
	return ' '
}

func yToPrice(y int, lo, hi float64, height int) float64 {
	if height <= 1 {
		return lo
	}
	return hi - float64(y)/float64(height-1)*(hi-lo)
}

// SetFocus sets the focus state of the panel.
func (p *CandlestickPanel) SetFocus(focused bool) {
	p.focused = focused
}

// SetSize sets the panel dimensions.
func (p *CandlestickPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetSymbol starts a new chart when the symbol changes.
func (p *CandlestickPanel) SetSymbol(symbol string) {
	if symbol == p.symbol {
		return
	}
	p.symbol = symbol
	p.candles = nil
	p.currentCandle = nil
}

// AddPrice folds a price observed at t into the current candle.
func (p *CandlestickPanel) AddPrice(t time.Time, price float64) {
	ts := t.UnixNano()
	start := (ts / p.candlePeriod) * p.candlePeriod

	if p.currentCandle == nil || start != p.candleStart {
		if p.currentCandle != nil {
			p.candles = append(p.candles, *p.currentCandle)
			if len(p.candles) > p.maxCandles {
				p.candles = p.candles[len(p.candles)-p.maxCandles:]
			}
		}
		p.currentCandle = &Candle{Open: price, High: price, Low: price, Close: price, Time: start}
		p.candleStart = start
		return
	}

	c := p.currentCandle
	c.High = max(c.High, price)
	c.Low = min(c.Low, price)
	c.Close = price
}

// Candles returns the completed candles followed by the open one.
func (p *CandlestickPanel) Candles() []Candle {
	return p.allCandles()
}
