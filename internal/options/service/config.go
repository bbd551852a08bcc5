package service

import (
	"time"

	"github.com/zappabad/optionboard/internal/options/core"
	"github.com/zappabad/optionboard/internal/premium"
)

// Config holds configuration for the option chain service.
type Config struct {
	// CommandBuffer is the size of the user command channel.
	CommandBuffer int
	// PollInterval is how often the inbound event queue is drained.
	PollInterval time.Duration
	// MaxDrain caps the events handled per poll. Zero drains everything present.
	MaxDrain int
	// StatsInterval is how often ledger statistics and overdue requests are logged.
	StatsInterval time.Duration
	// OverdueAfter is the age at which an unanswered one-shot request is reported.
	OverdueAfter time.Duration
	// Annualization selects the ROI multiplier.
	Annualization premium.Mode
	// SortChain sorts snapshots by expiration and strike instead of
	// resolution order.
	SortChain bool
	// Engine configures the workflow engine.
	Engine core.Config
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		CommandBuffer: 64,
		PollInterval:  50 * time.Millisecond,
		StatsInterval: time.Minute,
		OverdueAfter:  30 * time.Second,
		Annualization: premium.ModeWeekly,
		Engine:        core.DefaultConfig(),
	}
}
