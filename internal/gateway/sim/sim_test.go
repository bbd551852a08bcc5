package sim

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappabad/optionboard/internal/gateway"
)

func newTestSim(t *testing.T) *Sim {
	t.Helper()
	cfg := DefaultConfig()
	cfg.TickInterval = 10 * time.Millisecond
	cfg.Expirations = 3
	cfg.Unlisted = []string{"NOPE"}
	cfg.Now = func() time.Time { return time.Date(2024, 9, 6, 15, 0, 0, 0, time.UTC) }
	s := New(cfg, zerolog.Nop())
	t.Cleanup(func() { s.Close() })
	return s
}

// await reads events until one for id of the given kind arrives.
func await(t *testing.T, s *Sim, id gateway.RequestID, kind gateway.EventKind) gateway.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			require.True(t, ok, "event channel closed")
			if ev.RequestID() == id && ev.Kind() == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s for request %d", kind, id)
			return nil
		}
	}
}

func resolveStock(t *testing.T, s *Sim, id gateway.RequestID, symbol string) gateway.ContractResolved {
	t.Helper()
	require.NoError(t, s.Send(gateway.Outbound{ID: id, Command: gateway.ResolveContract{SecType: gateway.SecTypeStock, Symbol: symbol}}))
	ev := await(t, s, id, gateway.EventContractResolved).(gateway.ContractResolved)
	await(t, s, id, gateway.EventContractEnd)
	return ev
}

func TestSim_ResolveStock(t *testing.T) {
	s := newTestSim(t)

	c := resolveStock(t, s, 1, "aapl")
	assert.Equal(t, "AAPL", c.Symbol)
	assert.Equal(t, gateway.SecTypeStock, c.SecType)
	assert.Positive(t, c.ContractID)

	again := resolveStock(t, s, 2, "AAPL")
	assert.Equal(t, c.ContractID, again.ContractID)
}

func TestSim_UnlistedSymbol(t *testing.T) {
	s := newTestSim(t)

	require.NoError(t, s.Send(gateway.Outbound{ID: 1, Command: gateway.ResolveContract{SecType: gateway.SecTypeStock, Symbol: "NOPE"}}))
	ev := await(t, s, 1, gateway.EventError).(gateway.ErrorNotice)
	assert.Equal(t, CodeNoSecurityDefinition, ev.Code)
}

func TestSim_OptionChain(t *testing.T) {
	s := newTestSim(t)
	stk := resolveStock(t, s, 1, "MSFT")

	require.NoError(t, s.Send(gateway.Outbound{ID: 2, Command: gateway.OptionParams{
		UnderlyingSymbol:     "MSFT",
		UnderlyingSecType:    gateway.SecTypeStock,
		UnderlyingContractID: stk.ContractID,
	}}))

	first := await(t, s, 2, gateway.EventOptionChain).(gateway.OptionChain)
	second := await(t, s, 2, gateway.EventOptionChain).(gateway.OptionChain)
	await(t, s, 2, gateway.EventOptionChainEnd)

	assert.NotEqual(t, first.Exchange, second.Exchange)
	assert.ElementsMatch(t, []string{"20240913", "20240920", "20240927"}, first.Expirations)
	assert.Len(t, first.Strikes, DefaultConfig().StrikeCount)
	for _, k := range first.Strikes {
		assert.True(t, onGrid(k, DefaultConfig().StrikeStep), "strike %v off grid", k)
	}
}

func TestSim_OptionResolutionAndQuotes(t *testing.T) {
	s := newTestSim(t)
	resolveStock(t, s, 1, "MSFT")

	require.NoError(t, s.Send(gateway.Outbound{ID: 2, Command: gateway.ResolveContract{
		SecType: gateway.SecTypeOption, Symbol: "MSFT", Expiration: "20240920", Strike: 100, Right: gateway.RightPut,
	}}))
	opt := await(t, s, 2, gateway.EventContractResolved).(gateway.ContractResolved)
	assert.Equal(t, gateway.SecTypeOption, opt.SecType)
	assert.Equal(t, "20240920", opt.Expiration)

	require.NoError(t, s.Send(gateway.Outbound{ID: 3, Command: gateway.SubscribeQuote{ContractID: opt.ContractID, SecType: gateway.SecTypeOption}}))
	comp := await(t, s, 3, gateway.EventOptionComputation).(gateway.OptionComputation)
	require.NotNil(t, comp.Delta)
	require.NotNil(t, comp.OptionPrice)
	assert.Less(t, *comp.Delta, 0.0)
	assert.GreaterOrEqual(t, *comp.OptionPrice, 0.0)

	tick := await(t, s, 3, gateway.EventPriceTick).(gateway.PriceTick)
	assert.Equal(t, gateway.TickLast, tick.Field)
}

func TestSim_InvalidOption(t *testing.T) {
	s := newTestSim(t)

	require.NoError(t, s.Send(gateway.Outbound{ID: 1, Command: gateway.ResolveContract{
		SecType: gateway.SecTypeOption, Symbol: "MSFT", Expiration: "20240918", Strike: 100, Right: gateway.RightPut,
	}}))
	ev := await(t, s, 1, gateway.EventError).(gateway.ErrorNotice)
	assert.Equal(t, CodeNoSecurityDefinition, ev.Code)
}

func TestSim_CancelUnknownQuote(t *testing.T) {
	s := newTestSim(t)

	require.NoError(t, s.Send(gateway.Outbound{ID: 5, Command: gateway.CancelQuote{Target: 42}}))
	ev := await(t, s, 42, gateway.EventError).(gateway.ErrorNotice)
	assert.Equal(t, CodeUnknownTicker, ev.Code)
}

func TestSim_Account(t *testing.T) {
	s := newTestSim(t)

	require.NoError(t, s.Send(gateway.Outbound{ID: 1, Command: gateway.ManagedAccounts{}}))
	list := await(t, s, 1, gateway.EventAccountList).(gateway.AccountList)
	assert.Equal(t, []string{"DU0000001"}, list.Accounts)

	require.NoError(t, s.Send(gateway.Outbound{ID: 2, Command: gateway.AccountSummary{Group: "All", Tags: "NetLiquidation"}}))
	v := await(t, s, 2, gateway.EventAccountValue).(gateway.AccountValue)
	assert.Equal(t, "NetLiquidation", v.Tag)
	await(t, s, 2, gateway.EventAccountSummaryEnd)

	require.NoError(t, s.Send(gateway.Outbound{ID: 3, Command: gateway.AccountSummary{Group: "bW", Tags: "NetLiquidation"}}))
	e := await(t, s, 3, gateway.EventError).(gateway.ErrorNotice)
	assert.Equal(t, CodeInvalidAccount, e.Code)

	require.NoError(t, s.Send(gateway.Outbound{ID: 4, Command: gateway.Positions{}}))
	await(t, s, 4, gateway.EventPosition)
	await(t, s, 4, gateway.EventPositionEnd)
}

func TestSim_SendAfterClose(t *testing.T) {
	s := newTestSim(t)
	require.NoError(t, s.Close())

	err := s.Send(gateway.Outbound{ID: 1, Command: gateway.Positions{}})
	assert.ErrorIs(t, err, gateway.ErrClosed)

	for range s.Events() {
	}
}

func TestBlackScholes(t *testing.T) {
	put := blackScholes(false, 100, 100, 0.25, 0.2, 0)
	call := blackScholes(true, 100, 100, 0.25, 0.2, 0)

	// Put-call parity at zero rate.
	assert.InDelta(t, call.price-put.price, 0, 1e-9)
	assert.InDelta(t, 3.987, call.price, 0.01)
	assert.InDelta(t, 1, call.delta-put.delta, 1e-9)
	assert.Less(t, put.theta, 0.0)
}
