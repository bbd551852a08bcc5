package view

import (
	"testing"

	"github.com/zappabad/optionboard/internal/account"
)

func TestAccountViewStagesBatches(t *testing.T) {
	v := NewAccountView()
	v.StagePosition(account.Position{Symbol: "AAPL", Quantity: 100})
	v.StagePosition(account.Position{Symbol: "MSFT", Quantity: -1})

	if got := len(v.Snapshot().Positions); got != 0 {
		t.Fatalf("staged positions must not be visible, got %d", got)
	}
	if n := v.CommitPositions(); n != 2 {
		t.Fatalf("expected 2 committed, got %d", n)
	}

	v.StagePosition(account.Position{Symbol: "SPY", Quantity: 5})
	v.CommitPositions()
	snap := v.Snapshot()
	if len(snap.Positions) != 1 || snap.Positions[0].Symbol != "SPY" {
		t.Errorf("second batch should replace the first, got %+v", snap.Positions)
	}

	v.StageOrder(account.Order{OrderID: 9, Symbol: "AAPL"})
	v.CommitOrders()
	if got := v.Snapshot().Orders; len(got) != 1 || got[0].OrderID != 9 {
		t.Errorf("unexpected orders %+v", got)
	}
}

func TestAccountViewSummarySorted(t *testing.T) {
	v := NewAccountView()
	v.SetValue(account.Value{Account: "DU2", Tag: "NetLiquidation", Value: "1"})
	v.SetValue(account.Value{Account: "DU1", Tag: "TotalCashValue", Value: "2"})
	v.SetValue(account.Value{Account: "DU1", Tag: "BuyingPower", Value: "3"})
	v.SetValue(account.Value{Account: "DU1", Tag: "BuyingPower", Value: "4"})
	v.SetAccounts([]string{"DU1", "DU2"})

	snap := v.Snapshot()
	if len(snap.Summary) != 3 {
		t.Fatalf("expected 3 values, got %d", len(snap.Summary))
	}
	if snap.Summary[0].Tag != "BuyingPower" || snap.Summary[0].Value != "4" {
		t.Errorf("unexpected first value %+v", snap.Summary[0])
	}
	if snap.Summary[2].Account != "DU2" {
		t.Errorf("unexpected last value %+v", snap.Summary[2])
	}
	if len(snap.Accounts) != 2 || snap.Updated == 0 {
		t.Errorf("unexpected accounts %+v", snap)
	}
}
