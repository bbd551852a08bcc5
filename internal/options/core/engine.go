// Package core routes gateway events to the option chain workflow. The
// engine is not safe for concurrent use: one goroutine feeds it events and
// user commands.
package core

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	accountview "github.com/zappabad/optionboard/internal/account/view"
	"github.com/zappabad/optionboard/internal/diag"
	"github.com/zappabad/optionboard/internal/gateway"
	"github.com/zappabad/optionboard/internal/ledger"
	"github.com/zappabad/optionboard/internal/options"
	"github.com/zappabad/optionboard/internal/options/view"
)

// Clock supplies the exchange date used to filter expirations.
type Clock interface {
	Today() time.Time
	Location() *time.Location
}

// Config holds engine configuration.
type Config struct {
	HorizonWeeks int
	Right        options.Right
	Exchange     string
	Currency     string
	GenericTicks string
	BenignCodes  map[int]struct{}
	// MaxContracts caps option resolutions per cycle. Zero means no cap.
	MaxContracts int
	AccountGroup string
	AccountTags  string
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		HorizonWeeks: options.DefaultHorizonWeeks,
		Right:        options.Put,
		Exchange:     "SMART",
		Currency:     "USD",
		GenericTicks: "100,101,106",
		BenignCodes: map[int]struct{}{
			2100: {}, 2104: {}, 2106: {}, 2107: {}, 2108: {}, 2119: {}, 2150: {}, 2158: {}, 10167: {},
		},
		AccountGroup: "All",
		AccountTags:  "NetLiquidation,TotalCashValue,BuyingPower",
	}
}

// Deps are the collaborators the engine drives.
type Deps struct {
	Ledger     *ledger.Ledger
	Quotes     *view.QuoteStore
	Underlying *view.UnderlyingView
	Account    *accountview.AccountView
	Sink       diag.Sink
	Clock      Clock
	Log        zerolog.Logger
}

// Phase summarizes how far the current cycle has progressed.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseResolvingSymbol
	PhaseEnumerating
	PhaseResolvingOptions
	PhaseStreaming
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseResolvingSymbol:
		return "resolving symbol"
	case PhaseEnumerating:
		return "enumerating chain"
	case PhaseResolvingOptions:
		return "resolving options"
	case PhaseStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Stats counts what the engine did with the events it saw.
type Stats struct {
	Handled      uint64
	Uncorrelated uint64
	Stale        uint64
	Benign       uint64
	Errors       uint64
	Panics       uint64
	Cycles       uint64
}

type handler func(e *Engine, entry ledger.Entry, ev gateway.Event)

// Engine is the event router and option chain workflow.
type Engine struct {
	cfg        Config
	log        zerolog.Logger
	ledger     *ledger.Ledger
	quotes     *view.QuoteStore
	underlying *view.UnderlyingView
	account    *accountview.AccountView
	sink       diag.Sink
	clock      Clock

	handlers [gateway.NumEventKinds]handler
	stats    Stats
	horizon  int

	cycle  ledger.Scope
	symbol string
	cs     cycleState
}

// cycleState is the working state of one reload cycle.
type cycleState struct {
	stockReq    gateway.RequestID
	stockConID  int64
	priceReq    gateway.RequestID
	paramsReq   gateway.RequestID
	paramsDone  bool
	expirations []time.Time
	strikes     []float64
	resolving   map[gateway.RequestID]struct{}
	subscribed  map[int64]gateway.RequestID
	reported    map[gateway.RequestID]struct{}
}

func newCycleState() cycleState {
	return cycleState{
		resolving:  map[gateway.RequestID]struct{}{},
		subscribed: map[int64]gateway.RequestID{},
		reported:   map[gateway.RequestID]struct{}{},
	}
}

// New creates an Engine.
func New(cfg Config, deps Deps) *Engine {
	if err := options.ValidateHorizon(cfg.HorizonWeeks); err != nil {
		cfg.HorizonWeeks = options.DefaultHorizonWeeks
	}
	if !cfg.Right.Valid() {
		cfg.Right = options.Put
	}
	if cfg.BenignCodes == nil {
		cfg.BenignCodes = DefaultConfig().BenignCodes
	}
	if deps.Sink == nil {
		deps.Sink = diag.Discard
	}
	if deps.Quotes == nil {
		deps.Quotes = view.NewQuoteStore()
	}
	if deps.Underlying == nil {
		deps.Underlying = view.NewUnderlyingView(cfg.HorizonWeeks)
	}
	if deps.Account == nil {
		deps.Account = accountview.NewAccountView()
	}

	e := &Engine{
		cfg:        cfg,
		log:        deps.Log.With().Str("component", "engine").Logger(),
		ledger:     deps.Ledger,
		quotes:     deps.Quotes,
		underlying: deps.Underlying,
		account:    deps.Account,
		sink:       deps.Sink,
		clock:      deps.Clock,
		horizon:    cfg.HorizonWeeks,
		cs:         newCycleState(),
	}
	e.handlers = [gateway.NumEventKinds]handler{
		gateway.EventContractResolved:  (*Engine).onContractResolved,
		gateway.EventContractEnd:       (*Engine).onContractEnd,
		gateway.EventPriceTick:         (*Engine).onPriceTick,
		gateway.EventOptionComputation: (*Engine).onOptionComputation,
		gateway.EventOptionChain:       (*Engine).onOptionChain,
		gateway.EventOptionChainEnd:    (*Engine).onOptionChainEnd,
		gateway.EventError:             (*Engine).onError,
		gateway.EventAccountValue:      (*Engine).onAccountValue,
		gateway.EventAccountSummaryEnd: (*Engine).onAccountSummaryEnd,
		gateway.EventPosition:          (*Engine).onPosition,
		gateway.EventPositionEnd:       (*Engine).onPositionEnd,
		gateway.EventOpenOrder:         (*Engine).onOpenOrder,
		gateway.EventOpenOrderEnd:      (*Engine).onOpenOrderEnd,
		gateway.EventAccountList:       (*Engine).onAccountList,
	}
	return e
}

// Handle processes one inbound event to completion. It never panics.
func (e *Engine) Handle(ev gateway.Event) {
	if ev == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.stats.Panics++
			e.log.Error().Interface("panic", r).Str("event", ev.Kind().String()).
				Bytes("stack", debug.Stack()).Msg("event handler panicked")
			e.report(diag.Diagnostic{
				Source:    diag.SourceWorkflow,
				Severity:  diag.SeverityError,
				RequestID: ev.RequestID(),
				Message:   fmt.Sprintf("handler for %s failed: %v", ev.Kind(), r),
			})
		}
	}()

	kind := ev.Kind()
	if kind < 0 || kind >= gateway.NumEventKinds || e.handlers[kind] == nil {
		e.log.Warn().Int("kind", int(kind)).Msg("no handler for event kind")
		return
	}

	entry, ok := e.ledger.Lookup(ev.RequestID())
	if !ok && kind != gateway.EventError {
		e.uncorrelated(ev)
		return
	}
	if ok && entry.Scope != 0 && entry.Scope != e.cycle {
		e.stats.Stale++
		e.log.Debug().Int64("req_id", int64(entry.ID)).Uint64("scope", uint64(entry.Scope)).
			Str("event", kind.String()).Msg("ignoring event from previous cycle")
		return
	}

	e.stats.Handled++
	e.handlers[kind](e, entry, ev)
}

func (e *Engine) uncorrelated(ev gateway.Event) {
	e.stats.Uncorrelated++
	id := ev.RequestID()
	e.log.Debug().Int64("req_id", int64(id)).Str("event", ev.Kind().String()).Msg("dropping uncorrelated event")
	if _, seen := e.cs.reported[id]; seen {
		return
	}
	e.cs.reported[id] = struct{}{}
	e.report(diag.Diagnostic{
		Source:    diag.SourceCorrelation,
		Severity:  diag.SeverityInfo,
		RequestID: id,
		Message:   fmt.Sprintf("dropped %s for unknown request", ev.Kind()),
	})
}

func (e *Engine) report(d diag.Diagnostic) {
	e.sink.Report(d)
}

// issue sends cmd in the current cycle. Failures abort only the calling
// step and are surfaced as diagnostics.
func (e *Engine) issue(scope ledger.Scope, parent gateway.RequestID, cmd gateway.Command) (gateway.RequestID, bool) {
	id, err := e.ledger.Issue(scope, parent, cmd)
	if err != nil {
		e.stats.Errors++
		e.report(diag.Diagnostic{
			Source:    diag.SourceWorkflow,
			Severity:  diag.SeverityError,
			RequestID: parent,
			Command:   cmd.Kind().String(),
			Message:   err.Error(),
		})
		return 0, false
	}
	return id, true
}

// Stats returns a copy of the engine counters.
func (e *Engine) Stats() Stats { return e.stats }

// Symbol returns the symbol of the current cycle.
func (e *Engine) Symbol() string { return e.symbol }

// HorizonWeeks returns the chosen horizon.
func (e *Engine) HorizonWeeks() int { return e.horizon }

// Cycle returns the current reload cycle number.
func (e *Engine) Cycle() ledger.Scope { return e.cycle }

// Right returns the option right enumerated by the workflow.
func (e *Engine) Right() options.Right { return e.cfg.Right }

// Phase reports the progress of the current cycle.
func (e *Engine) Phase() Phase {
	switch {
	case e.symbol == "":
		return PhaseIdle
	case e.cs.stockConID == 0:
		return PhaseResolvingSymbol
	case !e.cs.paramsDone && len(e.cs.strikes) == 0:
		return PhaseEnumerating
	case len(e.cs.resolving) > 0:
		return PhaseResolvingOptions
	default:
		return PhaseStreaming
	}
}

// Expirations returns the filtered expirations of the current cycle.
func (e *Engine) Expirations() []time.Time {
	return append([]time.Time(nil), e.cs.expirations...)
}

// Strikes returns the strikes of the current cycle.
func (e *Engine) Strikes() []float64 {
	return append([]float64(nil), e.cs.strikes...)
}
