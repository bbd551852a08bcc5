package gateway

import "fmt"

// EventKind enumerates inbound event kinds.
type EventKind int

const (
	EventContractResolved EventKind = iota
	EventContractEnd
	EventPriceTick
	EventOptionComputation
	EventOptionChain
	EventOptionChainEnd
	EventError
	EventAccountValue
	EventAccountSummaryEnd
	EventPosition
	EventPositionEnd
	EventOpenOrder
	EventOpenOrderEnd
	EventAccountList
	// NumEventKinds sizes dispatch tables indexed by EventKind.
	NumEventKinds
)

var eventNames = [NumEventKinds]string{
	EventContractResolved:  "contract",
	EventContractEnd:       "contract_end",
	EventPriceTick:         "tick_price",
	EventOptionComputation: "option_computation",
	EventOptionChain:       "option_params",
	EventOptionChainEnd:    "option_params_end",
	EventError:             "error",
	EventAccountValue:      "account_summary",
	EventAccountSummaryEnd: "account_summary_end",
	EventPosition:          "position",
	EventPositionEnd:       "position_end",
	EventOpenOrder:         "open_order",
	EventOpenOrderEnd:      "open_order_end",
	EventAccountList:       "managed_accounts",
}

func (k EventKind) String() string {
	if k < 0 || k >= NumEventKinds {
		return fmt.Sprintf("event(%d)", int(k))
	}
	return eventNames[k]
}

// Event is an inbound gateway message. The set is closed.
type Event interface {
	Kind() EventKind
	RequestID() RequestID
	isEvent()
}

// Header carries the correlation id shared by all events. A zero id means
// the event is not tied to a request.
type Header struct {
	ReqID RequestID `json:"-"`
}

func (h Header) RequestID() RequestID       { return h.ReqID }
func (Header) isEvent()                     {}
func (h *Header) setRequestID(id RequestID) { h.ReqID = id }

// ContractResolved carries one match for a contract resolution.
type ContractResolved struct {
	Header
	ContractID int64   `json:"con_id"`
	SecType    SecType `json:"sec_type"`
	Symbol     string  `json:"symbol"`
	Exchange   string  `json:"exchange,omitempty"`
	Currency   string  `json:"currency,omitempty"`
	Expiration string  `json:"expiration,omitempty"`
	Strike     float64 `json:"strike,omitempty"`
	Right      Right   `json:"right,omitempty"`
	Multiplier string  `json:"multiplier,omitempty"`
}

func (ContractResolved) Kind() EventKind { return EventContractResolved }

// ContractEnd terminates a contract resolution.
type ContractEnd struct{ Header }

func (ContractEnd) Kind() EventKind { return EventContractEnd }

// PriceTick is a single price field update on a quote stream.
type PriceTick struct {
	Header
	Field TickType `json:"field"`
	Price float64  `json:"price"`
}

func (PriceTick) Kind() EventKind { return EventPriceTick }

// OptionComputation carries option analytics. Nil pointers mean the
// gateway did not supply the value.
type OptionComputation struct {
	Header
	Field           TickType `json:"field"`
	ImpliedVol      *float64 `json:"implied_vol,omitempty"`
	Delta           *float64 `json:"delta,omitempty"`
	OptionPrice     *float64 `json:"option_price,omitempty"`
	Gamma           *float64 `json:"gamma,omitempty"`
	Vega            *float64 `json:"vega,omitempty"`
	Theta           *float64 `json:"theta,omitempty"`
	UnderlyingPrice *float64 `json:"underlying_price,omitempty"`
}

func (OptionComputation) Kind() EventKind { return EventOptionComputation }

// OptionChain carries one exchange's option parameters for an underlying.
type OptionChain struct {
	Header
	Exchange             string    `json:"exchange"`
	UnderlyingContractID int64     `json:"underlying_con_id"`
	TradingClass         string    `json:"trading_class,omitempty"`
	Multiplier           string    `json:"multiplier,omitempty"`
	Expirations          []string  `json:"expirations"`
	Strikes              []float64 `json:"strikes"`
}

func (OptionChain) Kind() EventKind { return EventOptionChain }

// OptionChainEnd terminates an option parameters request.
type OptionChainEnd struct{ Header }

func (OptionChainEnd) Kind() EventKind { return EventOptionChainEnd }

// ErrorNotice reports a gateway error or informational message.
type ErrorNotice struct {
	Header
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (ErrorNotice) Kind() EventKind { return EventError }

// AccountValue is one account summary entry.
type AccountValue struct {
	Header
	Account  string `json:"account"`
	Tag      string `json:"tag"`
	Value    string `json:"value"`
	Currency string `json:"currency,omitempty"`
}

func (AccountValue) Kind() EventKind { return EventAccountValue }

// AccountSummaryEnd marks the end of the initial summary batch.
type AccountSummaryEnd struct{ Header }

func (AccountSummaryEnd) Kind() EventKind { return EventAccountSummaryEnd }

// Position is one held position.
type Position struct {
	Header
	Account    string  `json:"account"`
	ContractID int64   `json:"con_id"`
	Symbol     string  `json:"symbol"`
	SecType    SecType `json:"sec_type"`
	Expiration string  `json:"expiration,omitempty"`
	Strike     float64 `json:"strike,omitempty"`
	Right      Right   `json:"right,omitempty"`
	Quantity   float64 `json:"quantity"`
	AvgCost    float64 `json:"avg_cost"`
}

func (Position) Kind() EventKind { return EventPosition }

// PositionEnd terminates a positions dump.
type PositionEnd struct{ Header }

func (PositionEnd) Kind() EventKind { return EventPositionEnd }

// OpenOrder is one working order.
type OpenOrder struct {
	Header
	OrderID    int64   `json:"order_id"`
	Account    string  `json:"account,omitempty"`
	Symbol     string  `json:"symbol"`
	SecType    SecType `json:"sec_type"`
	Action     string  `json:"action"`
	Quantity   float64 `json:"quantity"`
	OrderType  string  `json:"order_type"`
	LimitPrice float64 `json:"limit_price,omitempty"`
	Status     string  `json:"status"`
}

func (OpenOrder) Kind() EventKind { return EventOpenOrder }

// OpenOrderEnd terminates an open orders dump.
type OpenOrderEnd struct{ Header }

func (OpenOrderEnd) Kind() EventKind { return EventOpenOrderEnd }

// AccountList carries the accounts managed by the session.
type AccountList struct {
	Header
	Accounts []string `json:"accounts"`
}

func (AccountList) Kind() EventKind { return EventAccountList }
