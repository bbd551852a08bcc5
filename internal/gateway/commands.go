package gateway

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformed wraps every command validation failure.
var ErrMalformed = errors.New("gateway: malformed command")

// CommandKind enumerates the outbound request kinds.
type CommandKind int

const (
	CmdResolveContract CommandKind = iota
	CmdSubscribeQuote
	CmdCancelQuote
	CmdOptionParams
	CmdAccountSummary
	CmdCancelAccountSummary
	CmdPositions
	CmdOpenOrders
	CmdManagedAccounts
	numCommandKinds
)

var commandNames = [numCommandKinds]string{
	CmdResolveContract:      "resolve_contract",
	CmdSubscribeQuote:       "subscribe_quote",
	CmdCancelQuote:          "cancel_quote",
	CmdOptionParams:         "option_params",
	CmdAccountSummary:       "account_summary",
	CmdCancelAccountSummary: "cancel_account_summary",
	CmdPositions:            "positions",
	CmdOpenOrders:           "open_orders",
	CmdManagedAccounts:      "managed_accounts",
}

func (k CommandKind) String() string {
	if k < 0 || k >= numCommandKinds {
		return fmt.Sprintf("command(%d)", int(k))
	}
	return commandNames[k]
}

// Streaming reports whether the command opens a subscription that stays
// live until cancelled.
func (k CommandKind) Streaming() bool {
	return k == CmdSubscribeQuote || k == CmdAccountSummary
}

// IsCancel reports whether the command cancels an earlier subscription.
func (k CommandKind) IsCancel() bool {
	return k == CmdCancelQuote || k == CmdCancelAccountSummary
}

// CommandKinds lists every command kind in declaration order.
func CommandKinds() []CommandKind {
	out := make([]CommandKind, 0, numCommandKinds)
	for k := CommandKind(0); k < numCommandKinds; k++ {
		out = append(out, k)
	}
	return out
}

// Command is an outbound request payload. The set is closed.
type Command interface {
	Kind() CommandKind
	Validate() error
	isCommand()
}

// CancelFor returns the command that cancels a streaming request of kind k.
func CancelFor(k CommandKind, target RequestID) (Command, bool) {
	switch k {
	case CmdSubscribeQuote:
		return CancelQuote{Target: target}, true
	case CmdAccountSummary:
		return CancelAccountSummary{Target: target}, true
	}
	return nil, false
}

// Outbound is a command paired with the id allocated for it.
type Outbound struct {
	ID      RequestID
	Command Command
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// ResolveContract asks the gateway for full contract details.
type ResolveContract struct {
	SecType    SecType `json:"sec_type"`
	Symbol     string  `json:"symbol"`
	Exchange   string  `json:"exchange,omitempty"`
	Currency   string  `json:"currency,omitempty"`
	ContractID int64   `json:"con_id,omitempty"`
	Expiration string  `json:"expiration,omitempty"`
	Strike     float64 `json:"strike,omitempty"`
	Right      Right   `json:"right,omitempty"`
}

func (ResolveContract) Kind() CommandKind { return CmdResolveContract }
func (ResolveContract) isCommand()        {}

func (c ResolveContract) Validate() error {
	if c.Symbol == "" && c.ContractID <= 0 {
		return malformed("resolve_contract: symbol or contract id required")
	}
	switch c.SecType {
	case SecTypeStock:
	case SecTypeOption:
		if _, err := time.Parse(ExpirationLayout, c.Expiration); err != nil {
			return malformed("resolve_contract: expiration %q", c.Expiration)
		}
		if c.Strike <= 0 {
			return malformed("resolve_contract: strike %v", c.Strike)
		}
		if !c.Right.Valid() {
			return malformed("resolve_contract: right %q", c.Right)
		}
	default:
		return malformed("resolve_contract: sec type %q", c.SecType)
	}
	return nil
}

// SubscribeQuote opens a market data stream for a resolved contract.
type SubscribeQuote struct {
	ContractID   int64   `json:"con_id"`
	SecType      SecType `json:"sec_type"`
	Symbol       string  `json:"symbol,omitempty"`
	Exchange     string  `json:"exchange,omitempty"`
	GenericTicks string  `json:"generic_ticks,omitempty"`
}

func (SubscribeQuote) Kind() CommandKind { return CmdSubscribeQuote }
func (SubscribeQuote) isCommand()        {}

func (c SubscribeQuote) Validate() error {
	if c.ContractID <= 0 {
		return malformed("subscribe_quote: contract id %d", c.ContractID)
	}
	return nil
}

// CancelQuote stops a market data stream.
type CancelQuote struct {
	Target RequestID `json:"target"`
}

func (CancelQuote) Kind() CommandKind { return CmdCancelQuote }
func (CancelQuote) isCommand()        {}

func (c CancelQuote) Validate() error {
	if c.Target <= 0 {
		return malformed("cancel_quote: target %d", c.Target)
	}
	return nil
}

// OptionParams requests the expirations and strikes of an underlying's
// option chain.
type OptionParams struct {
	UnderlyingSymbol     string  `json:"underlying_symbol"`
	UnderlyingSecType    SecType `json:"underlying_sec_type"`
	UnderlyingContractID int64   `json:"underlying_con_id"`
	FutFopExchange       string  `json:"fut_fop_exchange,omitempty"`
}

func (OptionParams) Kind() CommandKind { return CmdOptionParams }
func (OptionParams) isCommand()        {}

func (c OptionParams) Validate() error {
	if c.UnderlyingSymbol == "" {
		return malformed("option_params: underlying symbol required")
	}
	if c.UnderlyingContractID <= 0 {
		return malformed("option_params: underlying contract id %d", c.UnderlyingContractID)
	}
	return nil
}

// AccountSummary subscribes to account summary values.
type AccountSummary struct {
	Group string `json:"group"`
	Tags  string `json:"tags"`
}

func (AccountSummary) Kind() CommandKind { return CmdAccountSummary }
func (AccountSummary) isCommand()        {}

func (c AccountSummary) Validate() error {
	if c.Group == "" || c.Tags == "" {
		return malformed("account_summary: group and tags required")
	}
	return nil
}

// CancelAccountSummary stops an account summary subscription.
type CancelAccountSummary struct {
	Target RequestID `json:"target"`
}

func (CancelAccountSummary) Kind() CommandKind { return CmdCancelAccountSummary }
func (CancelAccountSummary) isCommand()        {}

func (c CancelAccountSummary) Validate() error {
	if c.Target <= 0 {
		return malformed("cancel_account_summary: target %d", c.Target)
	}
	return nil
}

// Positions requests a one-shot position dump.
type Positions struct{}

func (Positions) Kind() CommandKind { return CmdPositions }
func (Positions) isCommand()        {}
func (Positions) Validate() error   { return nil }

// OpenOrders requests a one-shot open order dump.
type OpenOrders struct{}

func (OpenOrders) Kind() CommandKind { return CmdOpenOrders }
func (OpenOrders) isCommand()        {}
func (OpenOrders) Validate() error   { return nil }

// ManagedAccounts requests the list of accounts the session can see.
type ManagedAccounts struct{}

func (ManagedAccounts) Kind() CommandKind { return CmdManagedAccounts }
func (ManagedAccounts) isCommand()        {}
func (ManagedAccounts) Validate() error   { return nil }
