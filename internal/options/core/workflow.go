package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/zappabad/optionboard/internal/diag"
	"github.com/zappabad/optionboard/internal/gateway"
	"github.com/zappabad/optionboard/internal/ledger"
	"github.com/zappabad/optionboard/internal/options"
	"github.com/zappabad/optionboard/internal/session"
)

// LoadSymbol starts a new cycle for symbol. Loading the symbol that is
// already current is a no-op.
func (e *Engine) LoadSymbol(symbol string) error {
	sym, err := options.NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	if sym == e.symbol {
		return nil
	}
	return e.reload(sym)
}

// SetHorizonWeeks changes the horizon and reloads the current symbol.
func (e *Engine) SetHorizonWeeks(weeks int) error {
	if err := options.ValidateHorizon(weeks); err != nil {
		return err
	}
	e.horizon = weeks
	if e.symbol == "" {
		return nil
	}
	return e.reload(e.symbol)
}

// Reload restarts the current symbol's cycle.
func (e *Engine) Reload() error {
	if e.symbol == "" {
		return options.ErrEmptySymbol
	}
	return e.reload(e.symbol)
}

// reload tears down every quote stream of the previous cycle before the
// store is cleared, so no stale stream can touch the new cycle's quotes.
func (e *Engine) reload(sym string) error {
	cancelled, err := e.ledger.CancelAllStreaming(func(en ledger.Entry) bool {
		return en.Kind() == gateway.CmdSubscribeQuote
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("cancelling quote streams")
	}
	e.quotes.ClearAll()
	retired := 0
	if e.cycle != 0 {
		retired = e.ledger.RetireScope(e.cycle)
	}

	prev := e.symbol
	e.cycle++
	e.stats.Cycles++
	e.symbol = sym
	e.cs = newCycleState()
	e.underlying.Reset(sym, e.horizon)

	e.log.Info().Str("symbol", sym).Str("previous", prev).Int("horizon_weeks", e.horizon).
		Uint64("cycle", uint64(e.cycle)).Int("cancelled", len(cancelled)).Int("retired", retired).
		Msg("reload")

	id, ok := e.issue(e.cycle, 0, gateway.ResolveContract{
		SecType:  gateway.SecTypeStock,
		Symbol:   sym,
		Exchange: e.cfg.Exchange,
		Currency: e.cfg.Currency,
	})
	if !ok {
		return fmt.Errorf("resolve %s: request not sent", sym)
	}
	e.cs.stockReq = id
	return nil
}

func (e *Engine) onContractResolved(entry ledger.Entry, ev gateway.Event) {
	cd := ev.(gateway.ContractResolved)
	cmd, ok := entry.Command.(gateway.ResolveContract)
	if !ok {
		e.mismatch(entry, ev)
		return
	}
	switch cmd.SecType {
	case gateway.SecTypeStock:
		e.onStockResolved(entry, cd)
	case gateway.SecTypeOption:
		e.onOptionResolved(entry, cmd, cd)
	}
}

func (e *Engine) onStockResolved(entry ledger.Entry, cd gateway.ContractResolved) {
	if entry.ID != e.cs.stockReq {
		return
	}
	if e.cs.stockConID != 0 {
		e.log.Debug().Int64("con_id", cd.ContractID).Msg("ignoring duplicate stock resolution")
		return
	}
	if cd.ContractID <= 0 {
		e.report(diag.Diagnostic{
			Source:    diag.SourceWorkflow,
			Severity:  diag.SeverityError,
			RequestID: entry.ID,
			Command:   entry.Kind().String(),
			Message:   fmt.Sprintf("stock %s resolved without a contract id", e.symbol),
		})
		return
	}

	e.cs.stockConID = cd.ContractID
	e.underlying.SetContract(cd.ContractID)

	if id, ok := e.issue(e.cycle, entry.ID, gateway.SubscribeQuote{
		ContractID: cd.ContractID,
		SecType:    gateway.SecTypeStock,
		Symbol:     e.symbol,
		Exchange:   e.cfg.Exchange,
	}); ok {
		e.cs.priceReq = id
	}
	if id, ok := e.issue(e.cycle, entry.ID, gateway.OptionParams{
		UnderlyingSymbol:     e.symbol,
		UnderlyingSecType:    gateway.SecTypeStock,
		UnderlyingContractID: cd.ContractID,
	}); ok {
		e.cs.paramsReq = id
	}
}

func (e *Engine) onOptionResolved(entry ledger.Entry, cmd gateway.ResolveContract, cd gateway.ContractResolved) {
	exp := cd.Expiration
	if exp == "" {
		exp = cmd.Expiration
	}
	expiry, err := gateway.ParseExpiration(exp, e.location())
	if err != nil {
		e.mismatch(entry, cd)
		return
	}
	strike := cd.Strike
	if strike == 0 {
		strike = cmd.Strike
	}
	right := cd.Right
	if !right.Valid() {
		right = cmd.Right
	}
	id := options.Identity{Expiration: expiry, Strike: strike, Right: right}

	if _, done := e.cs.subscribed[cd.ContractID]; done {
		return
	}
	if e.quotes.Contains(id) {
		e.log.Debug().Stringer("identity", id).Int64("con_id", cd.ContractID).Msg("ignoring duplicate option resolution")
		return
	}
	e.quotes.UpsertIdentity(entry.ID, id, cd.ContractID)

	subID, ok := e.issue(e.cycle, entry.ID, gateway.SubscribeQuote{
		ContractID:   cd.ContractID,
		SecType:      gateway.SecTypeOption,
		Symbol:       e.symbol,
		Exchange:     e.cfg.Exchange,
		GenericTicks: e.cfg.GenericTicks,
	})
	if !ok {
		return
	}
	e.cs.subscribed[cd.ContractID] = subID
	e.quotes.Alias(subID, entry.ID)
}

func (e *Engine) onContractEnd(entry ledger.Entry, _ gateway.Event) {
	e.ledger.Complete(entry.ID)
	delete(e.cs.resolving, entry.ID)
	if entry.ID == e.cs.stockReq && e.cs.stockConID == 0 {
		e.report(diag.Diagnostic{
			Source:    diag.SourceWorkflow,
			Severity:  diag.SeverityWarning,
			RequestID: entry.ID,
			Command:   entry.Kind().String(),
			Message:   fmt.Sprintf("no stock contract found for %s", e.symbol),
		})
	}
}

func (e *Engine) onPriceTick(entry ledger.Entry, ev gateway.Event) {
	tick := ev.(gateway.PriceTick)
	if _, ok := entry.Command.(gateway.SubscribeQuote); !ok {
		e.mismatch(entry, ev)
		return
	}
	price := options.Value(&tick.Price)
	if price == nil {
		return
	}

	if entry.ID == e.cs.priceReq {
		_, known := e.underlying.Snapshot().Price()
		if tick.Field.IsLast() || (tick.Field == gateway.TickClose && !known) {
			e.underlying.SetPrice(*price)
		}
		return
	}
	if tick.Field.IsLast() {
		e.quotes.UpdateFields(entry.ID, options.Fields{LastPrice: price})
	}
}

func (e *Engine) onOptionComputation(entry ledger.Entry, ev gateway.Event) {
	oc := ev.(gateway.OptionComputation)
	if entry.ID == e.cs.priceReq {
		return
	}
	fields := options.Fields{
		ImpliedVol:  options.Value(oc.ImpliedVol),
		Delta:       options.Value(oc.Delta),
		Gamma:       options.Value(oc.Gamma),
		Theta:       options.Value(oc.Theta),
		Vega:        options.Value(oc.Vega),
		OptionPrice: options.Value(oc.OptionPrice),
	}
	if fields.Empty() {
		return
	}
	if !e.quotes.UpdateFields(entry.ID, fields) {
		e.log.Debug().Int64("req_id", int64(entry.ID)).Msg("computation for unknown quote")
	}
}

// onOptionChain fans out one contract resolution per filtered expiration
// and strike. Once the cycle has expirations or strikes, further chain
// responses are ignored.
func (e *Engine) onOptionChain(entry ledger.Entry, ev gateway.Event) {
	chain := ev.(gateway.OptionChain)
	if entry.ID != e.cs.paramsReq {
		return
	}
	if len(e.cs.expirations) > 0 || len(e.cs.strikes) > 0 {
		return
	}

	today := e.today()
	maxDays := e.horizon * 7
	var exps []time.Time
	for _, s := range chain.Expirations {
		exp, err := gateway.ParseExpiration(s, e.location())
		if err != nil {
			e.log.Warn().Str("expiration", s).Msg("skipping unparseable expiration")
			continue
		}
		days := session.DaysBetween(today, exp)
		if days > 0 && days <= maxDays {
			exps = append(exps, exp)
		}
	}
	sort.Slice(exps, func(i, j int) bool { return exps[i].Before(exps[j]) })
	exps = dedupeTimes(exps)

	strikes := make([]float64, 0, len(chain.Strikes))
	for _, k := range chain.Strikes {
		if k > 0 {
			strikes = append(strikes, k)
		}
	}
	sort.Float64s(strikes)
	strikes = dedupeFloats(strikes)

	e.cs.expirations = exps
	e.cs.strikes = strikes

	e.log.Info().Str("symbol", e.symbol).Str("exchange", chain.Exchange).
		Int("expirations", len(exps)).Int("strikes", len(strikes)).Msg("option chain")

	issued := 0
	for _, exp := range exps {
		for _, k := range strikes {
			if e.cfg.MaxContracts > 0 && issued >= e.cfg.MaxContracts {
				e.report(diag.Diagnostic{
					Source:    diag.SourceWorkflow,
					Severity:  diag.SeverityWarning,
					RequestID: entry.ID,
					Command:   entry.Kind().String(),
					Message:   fmt.Sprintf("option chain truncated at %d contracts", e.cfg.MaxContracts),
				})
				return
			}
			id, ok := e.issue(e.cycle, entry.ID, gateway.ResolveContract{
				SecType:    gateway.SecTypeOption,
				Symbol:     e.symbol,
				Exchange:   e.cfg.Exchange,
				Currency:   e.cfg.Currency,
				Expiration: gateway.FormatExpiration(exp),
				Strike:     k,
				Right:      e.cfg.Right,
			})
			if !ok {
				continue
			}
			e.cs.resolving[id] = struct{}{}
			issued++
		}
	}
}

func (e *Engine) onOptionChainEnd(entry ledger.Entry, _ gateway.Event) {
	e.ledger.Complete(entry.ID)
	if entry.ID != e.cs.paramsReq {
		return
	}
	e.cs.paramsDone = true
	if len(e.cs.strikes) == 0 {
		e.report(diag.Diagnostic{
			Source:    diag.SourceWorkflow,
			Severity:  diag.SeverityWarning,
			RequestID: entry.ID,
			Command:   entry.Kind().String(),
			Message:   fmt.Sprintf("no option chain for %s", e.symbol),
		})
	}
}

func (e *Engine) mismatch(entry ledger.Entry, ev gateway.Event) {
	e.report(diag.Diagnostic{
		Source:    diag.SourceCorrelation,
		Severity:  diag.SeverityWarning,
		RequestID: entry.ID,
		Command:   entry.Kind().String(),
		Message:   fmt.Sprintf("unexpected %s for %s request", ev.Kind(), entry.Kind()),
	})
}

func (e *Engine) location() *time.Location {
	if e.clock == nil {
		return time.UTC
	}
	return e.clock.Location()
}

func (e *Engine) today() time.Time {
	if e.clock == nil {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	return e.clock.Today()
}

func dedupeTimes(ts []time.Time) []time.Time {
	out := ts[:0]
	for _, t := range ts {
		if len(out) > 0 && t.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func dedupeFloats(fs []float64) []float64 {
	out := fs[:0]
	for _, f := range fs {
		if len(out) > 0 && f == out[len(out)-1] {
			continue
		}
		out = append(out, f)
	}
	return out
}
