// Package options holds the domain types of an option chain board.
package options

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/zappabad/optionboard/internal/gateway"
)

var (
	ErrEmptySymbol    = errors.New("options: empty symbol")
	ErrInvalidHorizon = errors.New("options: horizon must be between 1 and 10 weeks")
)

const (
	MinHorizonWeeks     = 1
	MaxHorizonWeeks     = 10
	DefaultHorizonWeeks = 4
)

// Right is a put or a call.
type Right = gateway.Right

const (
	Put  = gateway.RightPut
	Call = gateway.RightCall
)

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", ErrEmptySymbol
	}
	return s, nil
}

// ValidateHorizon checks weeks is within the supported range.
func ValidateHorizon(weeks int) error {
	if weeks < MinHorizonWeeks || weeks > MaxHorizonWeeks {
		return fmt.Errorf("%w: %d", ErrInvalidHorizon, weeks)
	}
	return nil
}

// Identity addresses one option contract.
type Identity struct {
	Expiration time.Time
	Strike     float64
	Right      Right
}

func (id Identity) String() string {
	return fmt.Sprintf("%s %g %s", id.Expiration.Format("2006-01-02"), id.Strike, id.Right)
}

// Key is the store key of an option quote. It is the request id of the
// contract resolution that created the quote.
type Key = gateway.RequestID

// Fields are the observed values of an option. Nil means not yet observed.
type Fields struct {
	LastPrice   *float64
	ImpliedVol  *float64
	Delta       *float64
	Gamma       *float64
	Theta       *float64
	Vega        *float64
	OptionPrice *float64
}

// Merge overwrites f with every non-nil field of p. It reports whether
// anything was set.
func (f *Fields) Merge(p Fields) bool {
	changed := false
	set := func(dst **float64, src *float64) {
		if src == nil {
			return
		}
		v := *src
		*dst = &v
		changed = true
	}
	set(&f.LastPrice, p.LastPrice)
	set(&f.ImpliedVol, p.ImpliedVol)
	set(&f.Delta, p.Delta)
	set(&f.Gamma, p.Gamma)
	set(&f.Theta, p.Theta)
	set(&f.Vega, p.Vega)
	set(&f.OptionPrice, p.OptionPrice)
	return changed
}

// Clone returns a deep copy.
func (f Fields) Clone() Fields {
	var out Fields
	out.Merge(f)
	return out
}

// Empty reports whether no field was ever observed.
func (f Fields) Empty() bool {
	return f == Fields{}
}

// Quote is the accumulated state of one option contract.
type Quote struct {
	Key        Key
	Identity   Identity
	ContractID int64
	Fields     Fields
}

// Underlying is the state of the stock whose chain is shown.
type Underlying struct {
	Symbol       string
	ContractID   int64
	LastPrice    *float64
	HorizonWeeks int
}

// Price returns the last price and whether it is known.
func (u Underlying) Price() (float64, bool) {
	if u.LastPrice == nil {
		return 0, false
	}
	return *u.LastPrice, true
}

// Value converts a gateway-supplied number into a field value. NaN,
// infinities and the gateway's 1e100-and-above sentinels mean absent.
func Value(v *float64) *float64 {
	if v == nil {
		return nil
	}
	x := *v
	if math.IsNaN(x) || math.IsInf(x, 0) || math.Abs(x) >= 1e100 {
		return nil
	}
	return &x
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
