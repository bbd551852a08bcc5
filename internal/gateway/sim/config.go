package sim

import "time"

// Config holds configuration for the simulated gateway.
type Config struct {
	// TickInterval is the interval between market data updates.
	TickInterval time.Duration
	// Seed makes a run reproducible.
	Seed int64
	// Expirations is the number of weekly expirations listed per underlying.
	Expirations int
	// StrikeCount is the number of strikes listed around the spot price.
	StrikeCount int
	// StrikeStep is the distance between listed strikes.
	StrikeStep float64
	// BasePrice seeds underlying prices; each symbol is offset from it.
	BasePrice float64
	// Volatility is the annualized volatility of the random walk.
	Volatility float64
	// RiskFree is the rate used for option pricing.
	RiskFree float64
	// Account is the single managed account reported.
	Account string
	// Unlisted symbols fail to resolve.
	Unlisted []string
	// CommandBuffer is the size of the inbound command queue.
	CommandBuffer int
	// EventBuffer is the size of the outbound event channel.
	EventBuffer int
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:  250 * time.Millisecond,
		Seed:          1,
		Expirations:   8,
		StrikeCount:   11,
		StrikeStep:    5,
		BasePrice:     100,
		Volatility:    0.3,
		RiskFree:      0.04,
		Account:       "DU0000001",
		CommandBuffer: 256,
		EventBuffer:   4096,
	}
}
