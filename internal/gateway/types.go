package gateway

import (
	"strconv"
	"time"
)

// RequestID correlates outbound commands with the events they produce.
type RequestID int64

func (id RequestID) String() string { return strconv.FormatInt(int64(id), 10) }

// SecType is the security type of a contract.
type SecType string

const (
	SecTypeStock  SecType = "STK"
	SecTypeOption SecType = "OPT"
)

// Right distinguishes puts from calls.
type Right string

const (
	RightPut  Right = "P"
	RightCall Right = "C"
)

// Valid reports whether r is a known option right.
func (r Right) Valid() bool { return r == RightPut || r == RightCall }

func (r Right) String() string {
	switch r {
	case RightPut:
		return "PUT"
	case RightCall:
		return "CALL"
	default:
		return "UNKNOWN"
	}
}

// ParseRight accepts "P", "PUT", "C" or "CALL" in any case.
func ParseRight(s string) (Right, bool) {
	switch s {
	case "P", "p", "PUT", "put", "Put":
		return RightPut, true
	case "C", "c", "CALL", "call", "Call":
		return RightCall, true
	}
	return "", false
}

// TickType identifies the field a price tick or option computation refers to.
type TickType int

const (
	TickBid         TickType = 1
	TickAsk         TickType = 2
	TickLast        TickType = 4
	TickHigh        TickType = 6
	TickLow         TickType = 7
	TickClose       TickType = 9
	TickBidOption   TickType = 10
	TickAskOption   TickType = 11
	TickLastOption  TickType = 12
	TickModelOption TickType = 13
	TickDelayedBid  TickType = 66
	TickDelayedAsk  TickType = 67
	TickDelayedLast TickType = 68
)

// IsLast reports whether the tick carries a last trade price.
func (t TickType) IsLast() bool { return t == TickLast || t == TickDelayedLast }

func (t TickType) String() string {
	switch t {
	case TickBid:
		return "BID"
	case TickAsk:
		return "ASK"
	case TickLast:
		return "LAST"
	case TickHigh:
		return "HIGH"
	case TickLow:
		return "LOW"
	case TickClose:
		return "CLOSE"
	case TickBidOption:
		return "BID_OPTION"
	case TickAskOption:
		return "ASK_OPTION"
	case TickLastOption:
		return "LAST_OPTION"
	case TickModelOption:
		return "MODEL_OPTION"
	case TickDelayedBid:
		return "DELAYED_BID"
	case TickDelayedAsk:
		return "DELAYED_ASK"
	case TickDelayedLast:
		return "DELAYED_LAST"
	default:
		return "TICK_" + strconv.Itoa(int(t))
	}
}

// ExpirationLayout is the wire layout of option expirations.
const ExpirationLayout = "20060102"

// ParseExpiration parses a YYYYMMDD expiration as a calendar date in loc.
func ParseExpiration(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(ExpirationLayout, s, loc)
}

// FormatExpiration renders a date in wire layout.
func FormatExpiration(t time.Time) string {
	return t.Format(ExpirationLayout)
}
