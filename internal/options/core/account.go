package core

import (
	"github.com/zappabad/optionboard/internal/account"
	"github.com/zappabad/optionboard/internal/gateway"
	"github.com/zappabad/optionboard/internal/ledger"
)

// RefreshAccount cancels any live account summary and requests the
// managed accounts, a fresh summary, positions and open orders. Account
// requests are session-wide and survive symbol reloads.
func (e *Engine) RefreshAccount() error {
	if _, err := e.ledger.CancelAllStreaming(func(en ledger.Entry) bool {
		return en.Kind() == gateway.CmdAccountSummary
	}); err != nil {
		e.log.Warn().Err(err).Msg("cancelling account summary")
	}

	var firstErr error
	send := func(cmd gateway.Command) {
		if _, err := e.ledger.Issue(0, 0, cmd); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	send(gateway.ManagedAccounts{})
	send(gateway.AccountSummary{Group: e.cfg.AccountGroup, Tags: e.cfg.AccountTags})
	send(gateway.Positions{})
	send(gateway.OpenOrders{})
	return firstErr
}

func (e *Engine) onAccountValue(_ ledger.Entry, ev gateway.Event) {
	v := ev.(gateway.AccountValue)
	e.account.SetValue(account.Value{Account: v.Account, Tag: v.Tag, Value: v.Value, Currency: v.Currency})
}

func (e *Engine) onAccountSummaryEnd(entry ledger.Entry, _ gateway.Event) {
	e.ledger.Complete(entry.ID)
}

func (e *Engine) onPosition(_ ledger.Entry, ev gateway.Event) {
	e.account.StagePosition(account.PositionFrom(ev.(gateway.Position)))
}

func (e *Engine) onPositionEnd(entry ledger.Entry, _ gateway.Event) {
	n := e.account.CommitPositions()
	e.ledger.Complete(entry.ID)
	e.log.Debug().Int("positions", n).Msg("positions updated")
}

func (e *Engine) onOpenOrder(_ ledger.Entry, ev gateway.Event) {
	e.account.StageOrder(account.OrderFrom(ev.(gateway.OpenOrder)))
}

func (e *Engine) onOpenOrderEnd(entry ledger.Entry, _ gateway.Event) {
	n := e.account.CommitOrders()
	e.ledger.Complete(entry.ID)
	e.log.Debug().Int("orders", n).Msg("open orders updated")
}

func (e *Engine) onAccountList(entry ledger.Entry, ev gateway.Event) {
	e.account.SetAccounts(ev.(gateway.AccountList).Accounts)
	e.ledger.Complete(entry.ID)
}
