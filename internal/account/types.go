// Package account holds the read-only account state shown next to the
// option chain.
package account

import "github.com/zappabad/optionboard/internal/gateway"

// DefaultTags are the account summary tags requested when none are configured.
const DefaultTags = "NetLiquidation,TotalCashValue,BuyingPower,AvailableFunds,ExcessLiquidity,MaintMarginReq"

// Value is one account summary entry.
type Value struct {
	Account  string
	Tag      string
	Value    string
	Currency string
}

// Position is one held position.
type Position struct {
	Account    string
	ContractID int64
	Symbol     string
	SecType    gateway.SecType
	Expiration string
	Strike     float64
	Right      gateway.Right
	Quantity   float64
	AvgCost    float64
}

// Order is one working order.
type Order struct {
	OrderID    int64
	Account    string
	Symbol     string
	SecType    gateway.SecType
	Action     string
	Quantity   float64
	OrderType  string
	LimitPrice float64
	Status     string
}

// Snapshot is a copy of the account state.
type Snapshot struct {
	Accounts  []string
	Summary   []Value
	Positions []Position
	Orders    []Order
	// Updated is the unix nano time of the last change.
	Updated int64
}

// PositionFrom converts a gateway position event.
func PositionFrom(p gateway.Position) Position {
	return Position{
		Account:    p.Account,
		ContractID: p.ContractID,
		Symbol:     p.Symbol,
		SecType:    p.SecType,
		Expiration: p.Expiration,
		Strike:     p.Strike,
		Right:      p.Right,
		Quantity:   p.Quantity,
		AvgCost:    p.AvgCost,
	}
}

// OrderFrom converts a gateway open order event.
func OrderFrom(o gateway.OpenOrder) Order {
	return Order{
		OrderID:    o.OrderID,
		Account:    o.Account,
		Symbol:     o.Symbol,
		SecType:    o.SecType,
		Action:     o.Action,
		Quantity:   o.Quantity,
		OrderType:  o.OrderType,
		LimitPrice: o.LimitPrice,
		Status:     o.Status,
	}
}
