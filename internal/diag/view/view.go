package view

import (
	"sync"

	"github.com/zappabad/optionboard/internal/diag"
)

// DiagEvent is published for every diagnostic applied to the view.
type DiagEvent struct {
	Item diag.Diagnostic
}

// DiagView maintains a bounded ring buffer of diagnostics.
type DiagView struct {
	mu    sync.RWMutex
	buf   []diag.Diagnostic
	size  int
	start int
	count int
	total int64
}

// NewDiagView creates a new DiagView with the given capacity.
func NewDiagView(capacity int) *DiagView {
	if capacity <= 0 {
		capacity = 100
	}
	return &DiagView{
		buf:  make([]diag.Diagnostic, capacity),
		size: capacity,
	}
}

// Apply adds a diagnostic to the view.
func (v *DiagView) Apply(ev DiagEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.total++
	if v.count < v.size {
		v.buf[(v.start+v.count)%v.size] = ev.Item
		v.count++
		return
	}
	// overwrite oldest
	v.buf[v.start] = ev.Item
	v.start = (v.start + 1) % v.size
}

// Latest returns the last n diagnostics, oldest first.
func (v *DiagView) Latest(n int) []diag.Diagnostic {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if n <= 0 || v.count == 0 {
		return nil
	}
	if n > v.count {
		n = v.count
	}

	out := make([]diag.Diagnostic, n)
	first := (v.start + (v.count - n)) % v.size
	for i := 0; i < n; i++ {
		out[i] = v.buf[(first+i)%v.size]
	}
	return out
}

// Count returns the number of diagnostics held.
func (v *DiagView) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.count
}

// Total returns the number of diagnostics ever applied.
func (v *DiagView) Total() int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.total
}
