// Package premium computes premium-per-period and annualized return for
// option quotes.
package premium

import (
	"fmt"

	"github.com/zappabad/optionboard/internal/options"
)

// ContractMultiplier is the number of shares one contract covers.
const ContractMultiplier = 100

// Mode selects how ROI is annualized.
type Mode string

const (
	// ModeWeekly multiplies by 52 regardless of time to expiry.
	ModeWeekly Mode = "weekly"
	// ModeExpiry multiplies by 365 over the calendar days to expiry.
	ModeExpiry Mode = "expiry"
)

// ParseMode validates a mode name. Empty selects ModeWeekly.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeWeekly:
		return ModeWeekly, nil
	case ModeExpiry:
		return ModeExpiry, nil
	}
	return "", fmt.Errorf("premium: unknown annualization mode %q", s)
}

// Factor returns the annualization multiplier for mode. daysToExpiry is
// only used by ModeExpiry and is clamped to at least one day.
func Factor(mode Mode, daysToExpiry int) float64 {
	if mode == ModeExpiry {
		if daysToExpiry < 1 {
			daysToExpiry = 1
		}
		return 365 / float64(daysToExpiry)
	}
	return 52
}

// PPD is the premium captured over the period: the intrinsic gap between
// underlying and strike plus the option price.
func PPD(right options.Right, underlying, strike, optionPrice float64) float64 {
	if right == options.Call {
		return strike - underlying + optionPrice
	}
	return underlying - strike + optionPrice
}

// ROI annualizes ppd against the capital at risk. It is 0 for
// non-positive strikes.
func ROI(ppd, strike, factor float64) float64 {
	if strike <= 0 {
		return 0
	}
	return ppd / (strike * ContractMultiplier) * factor
}

// Metrics are the derived values of one quote.
type Metrics struct {
	PPD float64
	ROI float64
}

// Compute derives the metrics of q. It reports false when the option
// price or the underlying price is not yet known.
func Compute(q options.Quote, underlying *float64, mode Mode, daysToExpiry int) (Metrics, bool) {
	if q.Fields.OptionPrice == nil || underlying == nil {
		return Metrics{}, false
	}
	ppd := PPD(q.Identity.Right, *underlying, q.Identity.Strike, *q.Fields.OptionPrice)
	return Metrics{
		PPD: ppd,
		ROI: ROI(ppd, q.Identity.Strike, Factor(mode, daysToExpiry)),
	}, true
}
