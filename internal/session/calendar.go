// Package session answers date questions in the exchange's time zone:
// what day it is, whether the market is open and how far away an expiry is.
package session

import (
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// DefaultMIC is the exchange calendar used when none is configured.
const DefaultMIC = "xnys"

// Calendar wraps an exchange calendar with an injectable clock.
type Calendar struct {
	mic      string
	cal      *calendar.Calendar
	loc      *time.Location
	fallback bool
	now      func() time.Time
}

// Option configures a Calendar.
type Option func(*Calendar)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Calendar) { c.now = now }
}

// New loads the calendar for mic, falling back to xnys and then to a plain
// Monday to Friday, 09:30 to 16:00 New York schedule.
func New(mic string, opts ...Option) *Calendar {
	mic = strings.ToLower(strings.TrimSpace(mic))
	if mic == "" {
		mic = DefaultMIC
	}
	c := &Calendar{mic: mic, now: time.Now}

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		c.mic = DefaultMIC
		cal = calendar.GetCalendar(DefaultMIC)
	}
	if cal == nil {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
		c.loc = loc
		c.fallback = true
	} else {
		c.cal = cal
		c.loc = cal.Loc
	}
	if c.loc == nil {
		c.loc = time.UTC
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MIC returns the exchange code in use.
func (c *Calendar) MIC() string { return c.mic }

// Fallback reports whether the simple weekday schedule is in use.
func (c *Calendar) Fallback() bool { return c.fallback }

// Location returns the exchange time zone.
func (c *Calendar) Location() *time.Location { return c.loc }

// Now returns the current time in the exchange time zone.
func (c *Calendar) Now() time.Time { return c.now().In(c.loc) }

// Today returns midnight of the current exchange date.
func (c *Calendar) Today() time.Time {
	return truncateDay(c.Now())
}

// IsTradingDay reports whether the exchange trades on t's date.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	t = t.In(c.loc)
	if c.fallback {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return c.cal.IsBusinessDay(t)
}

// IsOpen reports whether the exchange is open at t.
func (c *Calendar) IsOpen(t time.Time) bool {
	t = t.In(c.loc)
	if c.fallback {
		if !c.IsTradingDay(t) {
			return false
		}
		minutes := t.Hour()*60 + t.Minute()
		return minutes >= 9*60+30 && minutes < 16*60
	}
	return c.cal.IsOpen(t)
}

// OpenNow reports whether the exchange is open right now.
func (c *Calendar) OpenNow() bool { return c.IsOpen(c.Now()) }

// DaysUntil returns the number of calendar days from today to the date of
// t. Past dates are negative.
func (c *Calendar) DaysUntil(t time.Time) int {
	return DaysBetween(c.Today(), t.In(c.loc))
}

// TradingDaysUntil counts trading days after today up to and including
// the date of t.
func (c *Calendar) TradingDaysUntil(t time.Time) int {
	today := c.Today()
	end := truncateDay(t.In(c.loc))
	n := 0
	for d := today.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d.Add(12 * time.Hour)) {
			n++
		}
	}
	return n
}

// DaysBetween returns the whole calendar days from the date of a to the
// date of b, each taken in its own location.
func DaysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
