package view

import (
	"sort"
	"sync"
	"time"

	"github.com/zappabad/optionboard/internal/account"
)

type summaryKey struct {
	account string
	tag     string
}

// AccountView maintains the account state. Positions and orders arrive as
// batches: they are staged and only become visible when committed.
type AccountView struct {
	mu        sync.RWMutex
	accounts  []string
	summary   map[summaryKey]account.Value
	positions []account.Position
	orders    []account.Order
	updated   int64

	stagedPositions []account.Position
	stagedOrders    []account.Order
}

// NewAccountView creates an empty AccountView.
func NewAccountView() *AccountView {
	return &AccountView{summary: map[summaryKey]account.Value{}}
}

func (v *AccountView) touch() { v.updated = time.Now().UnixNano() }

// SetAccounts replaces the managed account list.
func (v *AccountView) SetAccounts(accounts []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.accounts = append([]string(nil), accounts...)
	v.touch()
}

// Accounts returns a copy of the managed account list.
func (v *AccountView) Accounts() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]string(nil), v.accounts...)
}

// SetValue upserts one summary value.
func (v *AccountView) SetValue(val account.Value) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.summary[summaryKey{val.Account, val.Tag}] = val
	v.touch()
}

// StagePosition buffers a position until CommitPositions.
func (v *AccountView) StagePosition(p account.Position) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stagedPositions = append(v.stagedPositions, p)
}

// CommitPositions publishes the staged batch, replacing the previous one.
func (v *AccountView) CommitPositions() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.positions = v.stagedPositions
	v.stagedPositions = nil
	v.touch()
	return len(v.positions)
}

// StageOrder buffers an order until CommitOrders.
func (v *AccountView) StageOrder(o account.Order) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stagedOrders = append(v.stagedOrders, o)
}

// CommitOrders publishes the staged batch, replacing the previous one.
func (v *AccountView) CommitOrders() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.orders = v.stagedOrders
	v.stagedOrders = nil
	v.touch()
	return len(v.orders)
}

// Snapshot returns a copy of the state. Summary values are sorted by
// account then tag.
func (v *AccountView) Snapshot() account.Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()

	snap := account.Snapshot{
		Accounts:  append([]string(nil), v.accounts...),
		Summary:   make([]account.Value, 0, len(v.summary)),
		Positions: append([]account.Position(nil), v.positions...),
		Orders:    append([]account.Order(nil), v.orders...),
		Updated:   v.updated,
	}
	for _, val := range v.summary {
		snap.Summary = append(snap.Summary, val)
	}
	sort.Slice(snap.Summary, func(i, j int) bool {
		if snap.Summary[i].Account != snap.Summary[j].Account {
			return snap.Summary[i].Account < snap.Summary[j].Account
		}
		return snap.Summary[i].Tag < snap.Summary[j].Tag
	})
	return snap
}
