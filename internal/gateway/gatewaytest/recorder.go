// Package gatewaytest provides an in-memory Transport for tests.
package gatewaytest

import (
	"sync"

	"github.com/zappabad/optionboard/internal/gateway"
)

// Recorder records sent commands and lets tests inject events.
type Recorder struct {
	mu     sync.Mutex
	sent   []gateway.Outbound
	events chan gateway.Event
	fail   error
}

// NewRecorder returns a Recorder whose event channel holds size events.
func NewRecorder(size int) *Recorder {
	return &Recorder{events: make(chan gateway.Event, size)}
}

// Send records out, or returns the error set by FailWith.
func (r *Recorder) Send(out gateway.Outbound) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.sent = append(r.sent, out)
	return nil
}

// Events returns the injected event channel.
func (r *Recorder) Events() <-chan gateway.Event { return r.events }

// Close is a no-op.
func (r *Recorder) Close() error { return nil }

// Push queues an event for delivery.
func (r *Recorder) Push(ev gateway.Event) { r.events <- ev }

// FailWith makes subsequent sends fail with err. Nil restores success.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

// Sent returns a copy of everything sent so far.
func (r *Recorder) Sent() []gateway.Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gateway.Outbound(nil), r.sent...)
}

// Take returns and clears everything sent so far.
func (r *Recorder) Take() []gateway.Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sent
	r.sent = nil
	return out
}

// OfKind filters sent commands by kind.
func (r *Recorder) OfKind(kind gateway.CommandKind) []gateway.Outbound {
	var out []gateway.Outbound
	for _, o := range r.Sent() {
		if o.Command.Kind() == kind {
			out = append(out, o)
		}
	}
	return out
}
