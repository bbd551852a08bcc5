package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/zappabad/optionboard/internal/account"
	accountview "github.com/zappabad/optionboard/internal/account/view"
	"github.com/zappabad/optionboard/internal/diag"
	"github.com/zappabad/optionboard/internal/gateway"
	"github.com/zappabad/optionboard/internal/ledger"
	"github.com/zappabad/optionboard/internal/options"
	"github.com/zappabad/optionboard/internal/options/core"
	"github.com/zappabad/optionboard/internal/options/view"
	"github.com/zappabad/optionboard/internal/premium"
	"github.com/zappabad/optionboard/internal/session"
)

// ErrClosed is returned by commands issued after Close.
var ErrClosed = errors.New("options service closed")

type cmdType int

const (
	cmdLoadSymbol cmdType = iota
	cmdSetHorizon
	cmdReload
	cmdRefreshAccount
)

type command struct {
	typ    cmdType
	symbol string
	weeks  int
	respCh chan<- error
}

// Status is a point-in-time summary of the workflow.
type Status struct {
	Symbol       string
	HorizonWeeks int
	Right        options.Right
	Cycle        uint64
	Phase        core.Phase
	Quotes       int
	Engine       core.Stats
	Ledger       ledger.Counts
	Polled       time.Time
}

// Row is one option of the chain with its derived metrics.
type Row struct {
	Key          options.Key   `json:"key"`
	ContractID   int64         `json:"con_id"`
	Expiration   time.Time     `json:"expiration"`
	Strike       float64       `json:"strike"`
	Right        options.Right `json:"right"`
	DaysToExpiry int           `json:"days_to_expiry"`
	LastPrice    *float64      `json:"last_price,omitempty"`
	OptionPrice  *float64      `json:"option_price,omitempty"`
	ImpliedVol   *float64      `json:"implied_vol,omitempty"`
	Delta        *float64      `json:"delta,omitempty"`
	Gamma        *float64      `json:"gamma,omitempty"`
	Theta        *float64      `json:"theta,omitempty"`
	Vega         *float64      `json:"vega,omitempty"`
	PPD          float64       `json:"ppd"`
	ROI          float64       `json:"roi"`
	HasMetrics   bool          `json:"has_metrics"`
}

// Service owns the workflow engine and the request ledger. A single
// goroutine drains the transport's events on a fixed cadence and executes
// user commands between drains, so the engine needs no locking.
type Service struct {
	cfg       Config
	log       zerolog.Logger
	transport gateway.Transport
	cal       *session.Calendar

	ledger     *ledger.Ledger
	engine     *core.Engine
	quotes     *view.QuoteStore
	underlying *view.UnderlyingView
	account    *accountview.AccountView

	cmdCh  chan command
	status atomic.Pointer[Status]

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewService creates a Service reading from and writing to t.
func NewService(cfg Config, t gateway.Transport, cal *session.Calendar, sink diag.Sink, log zerolog.Logger) *Service {
	def := DefaultConfig()
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = def.CommandBuffer
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = def.StatsInterval
	}
	if cfg.OverdueAfter <= 0 {
		cfg.OverdueAfter = def.OverdueAfter
	}
	if cfg.Annualization == "" {
		cfg.Annualization = def.Annualization
	}
	if cal == nil {
		cal = session.New(session.DefaultMIC)
	}
	if sink == nil {
		sink = diag.Discard
	}

	s := &Service{
		cfg:        cfg,
		log:        log.With().Str("component", "options").Logger(),
		transport:  t,
		cal:        cal,
		quotes:     view.NewQuoteStore(),
		underlying: view.NewUnderlyingView(cfg.Engine.HorizonWeeks),
		account:    accountview.NewAccountView(),
		cmdCh:      make(chan command, cfg.CommandBuffer),
		closed:     make(chan struct{}),
	}
	s.ledger = ledger.New(t)
	s.engine = core.New(cfg.Engine, core.Deps{
		Ledger:     s.ledger,
		Quotes:     s.quotes,
		Underlying: s.underlying,
		Account:    s.account,
		Sink:       sink,
		Clock:      cal,
		Log:        log,
	})
	s.publishStatus()

	s.wg.Add(1)
	go s.run()

	return s
}

func (s *Service) run() {
	defer s.wg.Done()

	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()
	stats := time.NewTicker(s.cfg.StatsInterval)
	defer stats.Stop()

	events := s.transport.Events()
	for {
		select {
		case <-s.closed:
			return
		case cmd := <-s.cmdCh:
			s.processCommand(cmd)
			s.publishStatus()
		case <-poll.C:
			if events == nil {
				continue
			}
			if !s.drain(events) {
				s.log.Warn().Msg("transport event channel closed")
				events = nil
			}
			s.publishStatus()
		case <-stats.C:
			s.logStats()
		}
	}
}

// drain handles the events already queued without waiting for more. It
// returns false once the channel is closed.
func (s *Service) drain(events <-chan gateway.Event) bool {
	for n := 0; s.cfg.MaxDrain <= 0 || n < s.cfg.MaxDrain; n++ {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			s.engine.Handle(ev)
		default:
			return true
		}
	}
	return true
}

func (s *Service) processCommand(cmd command) {
	var err error
	switch cmd.typ {
	case cmdLoadSymbol:
		err = s.engine.LoadSymbol(cmd.symbol)
	case cmdSetHorizon:
		err = s.engine.SetHorizonWeeks(cmd.weeks)
	case cmdReload:
		err = s.engine.Reload()
	case cmdRefreshAccount:
		err = s.engine.RefreshAccount()
	}
	if err != nil {
		s.log.Warn().Err(err).Int("cmd", int(cmd.typ)).Msg("command failed")
	}
	if cmd.respCh != nil {
		cmd.respCh <- err
	}
}

func (s *Service) publishStatus() {
	st := Status{
		Symbol:       s.engine.Symbol(),
		HorizonWeeks: s.engine.HorizonWeeks(),
		Right:        s.engine.Right(),
		Cycle:        uint64(s.engine.Cycle()),
		Phase:        s.engine.Phase(),
		Quotes:       s.quotes.Len(),
		Engine:       s.engine.Stats(),
		Ledger:       s.ledger.Counts(),
		Polled:       time.Now(),
	}
	s.status.Store(&st)
}

func (s *Service) logStats() {
	counts := s.ledger.Counts()
	ev := s.log.Info().
		Int("live", counts.Live).
		Int("streaming", counts.Streaming).
		Uint64("completed", counts.Completed).
		Uint64("cancelled", counts.Cancelled).
		Int64("last_id", int64(counts.LastID))
	for kind, n := range counts.Issued {
		ev = ev.Uint64("issued_"+kind.String(), n)
	}
	ev.Msg("ledger stats")

	for _, e := range s.ledger.Overdue(s.cfg.OverdueAfter, time.Now()) {
		s.log.Warn().Int64("req_id", int64(e.ID)).Str("command", e.Kind().String()).
			Dur("age", time.Since(e.Issued)).Msg("request still unanswered")
	}
}

func (s *Service) send(ctx context.Context, cmd command) error {
	respCh := make(chan error, 1)
	cmd.respCh = respCh

	select {
	case <-s.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.cmdCh <- cmd:
	}

	select {
	case <-s.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case err := <-respCh:
		return err
	}
}

// LoadSymbol switches the board to symbol. Loading the current symbol is
// a no-op.
func (s *Service) LoadSymbol(ctx context.Context, symbol string) error {
	return s.send(ctx, command{typ: cmdLoadSymbol, symbol: symbol})
}

// SetHorizonWeeks changes the expiration horizon and reloads.
func (s *Service) SetHorizonWeeks(ctx context.Context, weeks int) error {
	return s.send(ctx, command{typ: cmdSetHorizon, weeks: weeks})
}

// Reload restarts the current symbol.
func (s *Service) Reload(ctx context.Context) error {
	return s.send(ctx, command{typ: cmdReload})
}

// RefreshAccount re-requests account data.
func (s *Service) RefreshAccount(ctx context.Context) error {
	return s.send(ctx, command{typ: cmdRefreshAccount})
}

// Snapshot returns the chain with derived metrics.
func (s *Service) Snapshot() []Row {
	quotes := s.quotes.Snapshot()
	und := s.underlying.Snapshot()

	rows := make([]Row, 0, len(quotes))
	for _, q := range quotes {
		days := s.cal.DaysUntil(q.Identity.Expiration)
		row := Row{
			Key:          q.Key,
			ContractID:   q.ContractID,
			Expiration:   q.Identity.Expiration,
			Strike:       q.Identity.Strike,
			Right:        q.Identity.Right,
			DaysToExpiry: days,
			LastPrice:    q.Fields.LastPrice,
			OptionPrice:  q.Fields.OptionPrice,
			ImpliedVol:   q.Fields.ImpliedVol,
			Delta:        q.Fields.Delta,
			Gamma:        q.Fields.Gamma,
			Theta:        q.Fields.Theta,
			Vega:         q.Fields.Vega,
		}
		if m, ok := premium.Compute(q, und.LastPrice, s.cfg.Annualization, days); ok {
			row.PPD, row.ROI, row.HasMetrics = m.PPD, m.ROI, true
		}
		rows = append(rows, row)
	}

	if s.cfg.SortChain {
		sort.SliceStable(rows, func(i, j int) bool {
			if !rows[i].Expiration.Equal(rows[j].Expiration) {
				return rows[i].Expiration.Before(rows[j].Expiration)
			}
			return rows[i].Strike < rows[j].Strike
		})
	}
	return rows
}

// UnderlyingPrice returns the last underlying price, if known.
func (s *Service) UnderlyingPrice() (float64, bool) {
	return s.underlying.Snapshot().Price()
}

// Underlying returns the underlying state.
func (s *Service) Underlying() options.Underlying {
	return s.underlying.Snapshot()
}

// Account returns the account state.
func (s *Service) Account() account.Snapshot {
	return s.account.Snapshot()
}

// Outstanding returns the requests still recorded in the ledger.
func (s *Service) Outstanding() []ledger.Entry {
	return s.ledger.Outstanding()
}

// Status returns the last published workflow status.
func (s *Service) Status() Status {
	return *s.status.Load()
}

// MarketOpen reports whether the exchange is open now.
func (s *Service) MarketOpen() bool {
	return s.cal.OpenNow()
}

// Close stops the service and waits for its goroutine to exit. The
// transport is left to the caller.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	s.wg.Wait()
}
