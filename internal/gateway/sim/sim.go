// Package sim is an in-process gateway that resolves contracts, lists
// option chains and streams random-walk quotes. It backs local runs and
// tests when no real gateway is reachable.
package sim

import (
	"fmt"
	"hash/fnv"
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zappabad/optionboard/internal/gateway"
)

// Error codes the simulator raises, matching the real gateway's.
const (
	CodeNoSecurityDefinition = 200
	CodeUnknownTicker        = 300
	CodeInvalidAccount       = 321
)

const secondsPerTradingYear = 252 * 6.5 * 3600

type stock struct {
	symbol    string
	conID     int64
	price     float64
	prevClose float64
}

type option struct {
	conID      int64
	underlying *stock
	expiration time.Time
	strike     float64
	right      gateway.Right
}

// Sim implements gateway.Transport. A single goroutine owns all market
// state; Send only enqueues.
type Sim struct {
	cfg      Config
	log      zerolog.Logger
	rng      *rand.Rand
	loc      *time.Location
	unlisted map[string]struct{}

	cmdCh  chan gateway.Outbound
	events chan gateway.Event

	stocks    map[string]*stock
	byConID   map[int64]*stock
	options   map[int64]*option
	quotes    map[gateway.RequestID]int64
	summaries map[gateway.RequestID]gateway.AccountSummary
	ticks     uint64

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New starts a simulator.
func New(cfg Config, log zerolog.Logger) *Sim {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.Expirations <= 0 {
		cfg.Expirations = def.Expirations
	}
	if cfg.StrikeCount <= 0 {
		cfg.StrikeCount = def.StrikeCount
	}
	if cfg.StrikeStep <= 0 {
		cfg.StrikeStep = def.StrikeStep
	}
	if cfg.BasePrice <= 0 {
		cfg.BasePrice = def.BasePrice
	}
	if cfg.Volatility <= 0 {
		cfg.Volatility = def.Volatility
	}
	if cfg.Account == "" {
		cfg.Account = def.Account
	}
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = def.CommandBuffer
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*3600)
	}

	s := &Sim{
		cfg:       cfg,
		log:       log.With().Str("component", "sim").Logger(),
		rng:       rand.New(rand.NewPCG(uint64(cfg.Seed), 0x9e3779b97f4a7c15)),
		loc:       loc,
		unlisted:  map[string]struct{}{},
		cmdCh:     make(chan gateway.Outbound, cfg.CommandBuffer),
		events:    make(chan gateway.Event, cfg.EventBuffer),
		stocks:    map[string]*stock{},
		byConID:   map[int64]*stock{},
		options:   map[int64]*option{},
		quotes:    map[gateway.RequestID]int64{},
		summaries: map[gateway.RequestID]gateway.AccountSummary{},
		closed:    make(chan struct{}),
	}
	for _, sym := range cfg.Unlisted {
		s.unlisted[strings.ToUpper(sym)] = struct{}{}
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// Send enqueues a command.
func (s *Sim) Send(out gateway.Outbound) error {
	select {
	case <-s.closed:
		return gateway.ErrClosed
	default:
	}
	select {
	case s.cmdCh <- out:
		return nil
	default:
		return gateway.ErrBackpressure
	}
}

// Events returns the event channel. It is closed after Close.
func (s *Sim) Events() <-chan gateway.Event { return s.events }

// Close stops the simulator.
func (s *Sim) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	s.wg.Wait()
	return nil
}

func (s *Sim) run() {
	defer s.wg.Done()
	defer close(s.events)

	s.emit(gateway.ErrorNotice{Code: 2104, Message: "Market data farm connection is OK:usfarm"})
	s.emit(gateway.ErrorNotice{Code: 2106, Message: "HMDS data farm connection is OK:ushmds"})

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case out := <-s.cmdCh:
			s.handle(out)
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Sim) emit(ev gateway.Event) {
	select {
	case s.events <- ev:
	case <-s.closed:
	}
}

func (s *Sim) fail(id gateway.RequestID, code int, format string, args ...any) {
	s.emit(gateway.ErrorNotice{Header: gateway.Header{ReqID: id}, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (s *Sim) handle(out gateway.Outbound) {
	s.log.Debug().Int64("req_id", int64(out.ID)).Str("command", out.Command.Kind().String()).Msg("command")

	switch c := out.Command.(type) {
	case gateway.ResolveContract:
		s.resolve(out.ID, c)
	case gateway.SubscribeQuote:
		s.subscribe(out.ID, c)
	case gateway.CancelQuote:
		if _, ok := s.quotes[c.Target]; !ok {
			s.fail(c.Target, CodeUnknownTicker, "Can't find EId with tickerId:%d", c.Target)
			return
		}
		delete(s.quotes, c.Target)
	case gateway.OptionParams:
		s.optionParams(out.ID, c)
	case gateway.AccountSummary:
		s.accountSummary(out.ID, c)
	case gateway.CancelAccountSummary:
		delete(s.summaries, c.Target)
	case gateway.Positions:
		s.positions(out.ID)
	case gateway.OpenOrders:
		s.openOrders(out.ID)
	case gateway.ManagedAccounts:
		s.emit(gateway.AccountList{Header: gateway.Header{ReqID: out.ID}, Accounts: []string{s.cfg.Account}})
	default:
		s.fail(out.ID, 10000, "unsupported command %s", out.Command.Kind())
	}
}

func hashConID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64()&(1<<31-1)) + 1
}

// lookupStock lists symbol on first use with a deterministic price.
func (s *Sim) lookupStock(symbol string) (*stock, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if st, ok := s.stocks[symbol]; ok {
		return st, true
	}
	if _, ok := s.unlisted[symbol]; ok || !listable(symbol) {
		return nil, false
	}
	id := hashConID("STK|" + symbol)
	price := cents(s.cfg.BasePrice * (0.5 + float64(id%1000)/1000))
	st := &stock{symbol: symbol, conID: id, price: price, prevClose: price}
	s.stocks[symbol] = st
	s.byConID[id] = st
	return st, true
}

func listable(symbol string) bool {
	if symbol == "" || len(symbol) > 5 {
		return false
	}
	for _, r := range symbol {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// expirations lists the next weekly Fridays after today.
func (s *Sim) expirations() []time.Time {
	now := s.cfg.Now().In(s.loc)
	d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc).AddDate(0, 0, 1)
	for d.Weekday() != time.Friday {
		d = d.AddDate(0, 0, 1)
	}
	out := make([]time.Time, 0, s.cfg.Expirations)
	for i := 0; i < s.cfg.Expirations; i++ {
		out = append(out, d.AddDate(0, 0, 7*i))
	}
	return out
}

func (s *Sim) strikes(spot float64) []float64 {
	step := s.cfg.StrikeStep
	center := roundTo(spot, step)
	first := center - step*float64(s.cfg.StrikeCount/2)
	out := make([]float64, 0, s.cfg.StrikeCount)
	for i := 0; i < s.cfg.StrikeCount; i++ {
		if k := first + step*float64(i); k > 0 {
			out = append(out, k)
		}
	}
	return out
}

func (s *Sim) resolve(id gateway.RequestID, c gateway.ResolveContract) {
	st, ok := s.lookupStock(c.Symbol)
	if !ok {
		s.fail(id, CodeNoSecurityDefinition, "No security definition has been found for the request")
		return
	}

	if c.SecType != gateway.SecTypeOption {
		s.emit(gateway.ContractResolved{
			Header:     gateway.Header{ReqID: id},
			ContractID: st.conID,
			SecType:    gateway.SecTypeStock,
			Symbol:     st.symbol,
			Exchange:   "SMART",
			Currency:   "USD",
		})
		s.emit(gateway.ContractEnd{Header: gateway.Header{ReqID: id}})
		return
	}

	exp, err := gateway.ParseExpiration(c.Expiration, s.loc)
	if err != nil || !slices.ContainsFunc(s.expirations(), exp.Equal) || !onGrid(c.Strike, s.cfg.StrikeStep) {
		s.fail(id, CodeNoSecurityDefinition, "No security definition has been found for the request")
		return
	}

	key := fmt.Sprintf("OPT|%s|%s|%g|%s", st.symbol, c.Expiration, c.Strike, c.Right)
	conID := hashConID(key)
	if _, ok := s.options[conID]; !ok {
		s.options[conID] = &option{conID: conID, underlying: st, expiration: exp, strike: c.Strike, right: c.Right}
	}
	s.emit(gateway.ContractResolved{
		Header:     gateway.Header{ReqID: id},
		ContractID: conID,
		SecType:    gateway.SecTypeOption,
		Symbol:     st.symbol,
		Exchange:   "SMART",
		Currency:   "USD",
		Expiration: c.Expiration,
		Strike:     c.Strike,
		Right:      c.Right,
		Multiplier: "100",
	})
	s.emit(gateway.ContractEnd{Header: gateway.Header{ReqID: id}})
}

func onGrid(strike, step float64) bool {
	if strike <= 0 {
		return false
	}
	r := math.Mod(strike, step)
	return r < 1e-9 || step-r < 1e-9
}

func (s *Sim) optionParams(id gateway.RequestID, c gateway.OptionParams) {
	st, ok := s.byConID[c.UnderlyingContractID]
	if !ok || !strings.EqualFold(st.symbol, c.UnderlyingSymbol) {
		s.fail(id, CodeNoSecurityDefinition, "No security definition has been found for the request")
		return
	}

	exps := s.expirations()
	expStrs := make([]string, len(exps))
	for i, e := range exps {
		expStrs[i] = gateway.FormatExpiration(e)
	}
	// The real gateway lists expirations unordered; so do we.
	s.rng.Shuffle(len(expStrs), func(i, j int) { expStrs[i], expStrs[j] = expStrs[j], expStrs[i] })
	strikes := s.strikes(st.price)

	for _, exch := range []string{"SMART", "CBOE"} {
		s.emit(gateway.OptionChain{
			Header:               gateway.Header{ReqID: id},
			Exchange:             exch,
			UnderlyingContractID: st.conID,
			TradingClass:         st.symbol,
			Multiplier:           "100",
			Expirations:          slices.Clone(expStrs),
			Strikes:              slices.Clone(strikes),
		})
	}
	s.emit(gateway.OptionChainEnd{Header: gateway.Header{ReqID: id}})
}

func (s *Sim) subscribe(id gateway.RequestID, c gateway.SubscribeQuote) {
	if st, ok := s.byConID[c.ContractID]; ok {
		s.quotes[id] = c.ContractID
		s.emit(gateway.PriceTick{Header: gateway.Header{ReqID: id}, Field: gateway.TickClose, Price: st.prevClose})
		s.emit(gateway.PriceTick{Header: gateway.Header{ReqID: id}, Field: gateway.TickLast, Price: st.price})
		return
	}
	if opt, ok := s.options[c.ContractID]; ok {
		s.quotes[id] = c.ContractID
		s.quoteOption(id, opt, true)
		return
	}
	s.fail(id, CodeNoSecurityDefinition, "No security definition has been found for the request")
}

func (s *Sim) quoteOption(id gateway.RequestID, opt *option, full bool) {
	spot := opt.underlying.price
	years := opt.expiration.Sub(s.cfg.Now()).Hours() / 24 / 365
	vol := smile(s.cfg.Volatility, spot, opt.strike)
	g := blackScholes(opt.right == gateway.RightCall, spot, opt.strike, years, vol, s.cfg.RiskFree)

	comp := gateway.OptionComputation{
		Header:          gateway.Header{ReqID: id},
		Field:           gateway.TickModelOption,
		ImpliedVol:      &vol,
		OptionPrice:     ptr(cents(g.price)),
		UnderlyingPrice: ptr(spot),
	}
	// Partial updates happen on the real feed too.
	if full || s.rng.Float64() > 0.2 {
		comp.Delta = ptr(g.delta)
		comp.Gamma = ptr(g.gamma)
		comp.Vega = ptr(g.vega)
		comp.Theta = ptr(g.theta)
	}
	s.emit(comp)

	if full || s.rng.Float64() < 0.3 {
		last := math.Max(0.01, cents(g.price*(1+0.02*s.rng.NormFloat64())))
		s.emit(gateway.PriceTick{Header: gateway.Header{ReqID: id}, Field: gateway.TickLast, Price: last})
	}
}

func ptr(v float64) *float64 { return &v }

func (s *Sim) tick() {
	s.ticks++

	step := s.cfg.Volatility * math.Sqrt(s.cfg.TickInterval.Seconds()/secondsPerTradingYear)
	for _, st := range s.stocks {
		st.price = cents(st.price * math.Exp(step*s.rng.NormFloat64()))
	}

	for _, id := range slices.Sorted(maps.Keys(s.quotes)) {
		conID := s.quotes[id]
		if st, ok := s.byConID[conID]; ok {
			s.emit(gateway.PriceTick{Header: gateway.Header{ReqID: id}, Field: gateway.TickLast, Price: st.price})
			continue
		}
		if opt, ok := s.options[conID]; ok {
			s.quoteOption(id, opt, false)
		}
	}

	if s.ticks%40 == 0 {
		for _, id := range slices.Sorted(maps.Keys(s.summaries)) {
			s.sendSummary(id, s.summaries[id])
		}
	}
}
