package styles

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	PrimaryColor   = lipgloss.Color("#7C3AED") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	AccentColor    = lipgloss.Color("#F59E0B") // Amber

	PositiveColor = lipgloss.Color("#10B981")
	NegativeColor = lipgloss.Color("#EF4444")
	NeutralColor  = lipgloss.Color("#6B7280")

	BackgroundColor      = lipgloss.Color("#1F2937")
	PanelBackgroundColor = lipgloss.Color("#111827")
	BorderColor          = lipgloss.Color("#374151")
	FocusBorderColor     = lipgloss.Color("#7C3AED")

	TextColor          = lipgloss.Color("#F9FAFB")
	TextSecondaryColor = lipgloss.Color("#9CA3AF")
	TextMutedColor     = lipgloss.Color("#6B7280")
)

// Panel styles
var (
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	FocusedPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(FocusBorderColor).
				Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextSecondaryColor)

	RowStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	PendingRowStyle = lipgloss.NewStyle().
			Foreground(TextMutedColor)

	SelectedRowStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Background(lipgloss.Color("#374151"))
)

// Text styles
var (
	PositiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PositiveColor)

	NegativeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(NegativeColor)

	PriceStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor)

	MutedStyle = lipgloss.NewStyle().
			Foreground(TextMutedColor)

	TimeStyle = lipgloss.NewStyle().
			Foreground(TextMutedColor)

	InfoStyle = lipgloss.NewStyle().
			Foreground(TextSecondaryColor)

	WarnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(AccentColor)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(NegativeColor)
)

// Input styles
var (
	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	FocusedInputStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder()).
				BorderForeground(FocusBorderColor).
				Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(TextSecondaryColor)

	PlaceholderStyle = lipgloss.NewStyle().
				Foreground(TextMutedColor)
)

// Chart styles
var (
	CandleUpStyle = lipgloss.NewStyle().
			Foreground(PositiveColor)

	CandleDownStyle = lipgloss.NewStyle().
			Foreground(NegativeColor)

	ChartAxisStyle = lipgloss.NewStyle().
			Foreground(TextMutedColor)

	ChartLabelStyle = lipgloss.NewStyle().
			Foreground(TextSecondaryColor)
)

// Status bar styles
var (
	StatusBarStyle = lipgloss.NewStyle().
			Background(BackgroundColor).
			Foreground(TextSecondaryColor).
			Padding(0, 1)

	StatusBarKeyStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor).
				Bold(true)

	StatusBarDescStyle = lipgloss.NewStyle().
				Foreground(TextSecondaryColor)
)

// RenderTitle renders a panel title.
func RenderTitle(title string, focused bool) string {
	style := TitleStyle
	if focused {
		style = style.Foreground(FocusBorderColor)
	}
	return style.Render(title)
}

// FormatFloat formats an optional value, rendering "-" when absent.
func FormatFloat(v *float64, decimals int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.*f", decimals, *v)
}

// FormatPercent formats a ratio as a percentage.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
