package view

import (
	"sync"

	"github.com/zappabad/optionboard/internal/options"
)

// UnderlyingView holds the state of the current underlying.
type UnderlyingView struct {
	mu    sync.RWMutex
	state options.Underlying
}

// NewUnderlyingView creates a view with the given starting horizon.
func NewUnderlyingView(horizonWeeks int) *UnderlyingView {
	return &UnderlyingView{state: options.Underlying{HorizonWeeks: horizonWeeks}}
}

// Reset replaces the state wholesale for a new reload cycle.
func (v *UnderlyingView) Reset(symbol string, horizonWeeks int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = options.Underlying{Symbol: symbol, HorizonWeeks: horizonWeeks}
}

// SetContract records the resolved contract id.
func (v *UnderlyingView) SetContract(id int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.ContractID = id
}

// SetPrice records the last trade price.
func (v *UnderlyingView) SetPrice(p float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.LastPrice = &p
}

// Snapshot returns a copy of the state.
func (v *UnderlyingView) Snapshot() options.Underlying {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := v.state
	if v.state.LastPrice != nil {
		p := *v.state.LastPrice
		out.LastPrice = &p
	}
	return out
}
