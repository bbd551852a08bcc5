package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(t time.Time) Option {
	return WithClock(func() time.Time { return t })
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 9, 6, 23, 0, 0, 0, time.UTC)
	b := time.Date(2024, 9, 20, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 14, DaysBetween(a, b))
	assert.Equal(t, -14, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))
	// spans the November DST change in New York
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	assert.Equal(t, 7, DaysBetween(time.Date(2024, 10, 31, 0, 0, 0, 0, ny), time.Date(2024, 11, 7, 0, 0, 0, 0, ny)))
}

func TestTodayUsesExchangeZone(t *testing.T) {
	// 02:00 UTC on the 7th is still the 6th in New York
	c := New("xnys", fixed(time.Date(2024, 9, 7, 2, 0, 0, 0, time.UTC)))
	today := c.Today()
	assert.Equal(t, 6, today.Day())
	assert.Equal(t, 0, today.Hour())
	assert.Equal(t, 14, c.DaysUntil(time.Date(2024, 9, 20, 0, 0, 0, 0, c.Location())))
}

func TestUnknownMICFallsBack(t *testing.T) {
	c := New("nope")
	assert.Equal(t, DefaultMIC, c.MIC())
	assert.NotNil(t, c.Location())
}

func TestTradingDays(t *testing.T) {
	c := New("xnys", fixed(time.Date(2024, 9, 6, 15, 0, 0, 0, time.UTC)))
	loc := c.Location()

	assert.True(t, c.IsTradingDay(time.Date(2024, 9, 9, 12, 0, 0, 0, loc)))
	assert.False(t, c.IsTradingDay(time.Date(2024, 9, 7, 12, 0, 0, 0, loc)))
	// Friday 6 Sep -> Friday 13 Sep: Mon..Fri
	assert.Equal(t, 5, c.TradingDaysUntil(time.Date(2024, 9, 13, 0, 0, 0, 0, loc)))
}

func TestIsOpen(t *testing.T) {
	c := New("xnys")
	loc := c.Location()
	assert.True(t, c.IsOpen(time.Date(2024, 9, 9, 10, 0, 0, 0, loc)))
	assert.False(t, c.IsOpen(time.Date(2024, 9, 9, 8, 0, 0, 0, loc)))
	assert.False(t, c.IsOpen(time.Date(2024, 9, 8, 12, 0, 0, 0, loc)))
}
