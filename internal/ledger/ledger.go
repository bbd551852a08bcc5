// Package ledger allocates request ids and tracks the commands that are
// still outstanding against the gateway.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zappabad/optionboard/internal/gateway"
)

// ErrMalformedCommand is returned by Issue when the command fails validation.
var ErrMalformedCommand = gateway.ErrMalformed

// Scope groups requests belonging to one reload cycle. Zero is session-wide.
type Scope uint64

// Sender enqueues an outbound command without blocking.
type Sender interface {
	Send(gateway.Outbound) error
}

// Entry is an outstanding request.
type Entry struct {
	ID      gateway.RequestID
	Command gateway.Command
	Scope   Scope
	Parent  gateway.RequestID
	Issued  time.Time
	// Done is set on streaming entries once their initial batch finished.
	Done bool
}

// Kind returns the command kind of the entry.
func (e Entry) Kind() gateway.CommandKind { return e.Command.Kind() }

// Streaming reports whether the entry stays live until cancelled.
func (e Entry) Streaming() bool { return e.Command.Kind().Streaming() }

// Counts is a point-in-time snapshot of ledger statistics.
type Counts struct {
	Issued    map[gateway.CommandKind]uint64
	Live      int
	Streaming int
	Completed uint64
	Cancelled uint64
	Retired   uint64
	LastID    gateway.RequestID
}

// Ledger is driven by one goroutine; the mutex only lets diagnostics
// readers take consistent snapshots.
type Ledger struct {
	mu      sync.RWMutex
	sender  Sender
	now     func() time.Time
	lastID  gateway.RequestID
	entries map[gateway.RequestID]*Entry
	issued  map[gateway.CommandKind]uint64

	completed uint64
	cancelled uint64
	retired   uint64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the clock used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New returns a ledger whose first id is 1.
func New(sender Sender, opts ...Option) *Ledger {
	l := &Ledger{
		sender:  sender,
		now:     time.Now,
		entries: make(map[gateway.RequestID]*Entry),
		issued:  make(map[gateway.CommandKind]uint64),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Issue validates cmd, allocates the next id, records the request and
// hands it to the sender. Cancel commands consume an id but are not
// recorded. A malformed command or a failed send consumes no id.
func (l *Ledger) Issue(scope Scope, parent gateway.RequestID, cmd gateway.Command) (gateway.RequestID, error) {
	if cmd == nil {
		return 0, fmt.Errorf("%w: nil command", ErrMalformedCommand)
	}
	if err := cmd.Validate(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	l.lastID++
	id := l.lastID
	kind := cmd.Kind()
	l.issued[kind]++
	if !kind.IsCancel() {
		l.entries[id] = &Entry{ID: id, Command: cmd, Scope: scope, Parent: parent, Issued: l.now()}
	}
	l.mu.Unlock()

	if err := l.sender.Send(gateway.Outbound{ID: id, Command: cmd}); err != nil {
		// The id never reached the wire, so it is released for the next issue.
		l.mu.Lock()
		delete(l.entries, id)
		l.issued[kind]--
		if l.lastID == id {
			l.lastID--
		}
		l.mu.Unlock()
		return 0, fmt.Errorf("send %s #%d: %w", kind, id, err)
	}
	return id, nil
}

// Lookup returns the entry recorded under id.
func (l *Ledger) Lookup(id gateway.RequestID) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Pending reports whether id is recorded and still awaiting its terminal
// response.
func (l *Ledger) Pending(id gateway.RequestID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[id]
	return ok && !e.Done
}

// Complete records the terminal response for id. One-shot entries are
// evicted; streaming entries stay live and are marked Done.
func (l *Ledger) Complete(id gateway.RequestID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		return false
	}
	if e.Command.Kind().Streaming() {
		e.Done = true
		return true
	}
	delete(l.entries, id)
	l.completed++
	return true
}

// CancelAllStreaming issues the cancel command for every streaming entry
// matching pred and removes it. Entries are cancelled in id order. It
// returns the ids of the cancelled requests.
func (l *Ledger) CancelAllStreaming(pred func(Entry) bool) ([]gateway.RequestID, error) {
	l.mu.Lock()
	var targets []Entry
	for _, e := range l.entries {
		if e.Command.Kind().Streaming() && (pred == nil || pred(*e)) {
			targets = append(targets, *e)
		}
	}
	for _, e := range targets {
		delete(l.entries, e.ID)
	}
	l.cancelled += uint64(len(targets))
	l.mu.Unlock()

	sort.Slice(targets, func(i, j int) bool { return targets[i].ID < targets[j].ID })

	var firstErr error
	ids := make([]gateway.RequestID, 0, len(targets))
	for _, e := range targets {
		ids = append(ids, e.ID)
		cancel, _ := gateway.CancelFor(e.Command.Kind(), e.ID)
		if _, err := l.Issue(e.Scope, e.ID, cancel); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return ids, firstErr
}

// RetireScope drops the remaining one-shot entries of scope so late
// responses no longer correlate. It returns the number retired.
func (l *Ledger) RetireScope(scope Scope) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, e := range l.entries {
		if e.Scope == scope && !e.Command.Kind().Streaming() {
			delete(l.entries, id)
			n++
		}
	}
	l.retired += uint64(n)
	return n
}

// Outstanding returns all recorded entries ordered by id.
func (l *Ledger) Outstanding() []Entry {
	l.mu.RLock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, *e)
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Overdue returns one-shot entries issued before now-age that never
// received a terminal response.
func (l *Ledger) Overdue(age time.Duration, now time.Time) []Entry {
	cutoff := now.Add(-age)
	var out []Entry
	for _, e := range l.Outstanding() {
		if !e.Streaming() && e.Issued.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of recorded entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Counts returns a snapshot of the ledger statistics.
func (l *Ledger) Counts() Counts {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c := Counts{
		Issued:    make(map[gateway.CommandKind]uint64, len(l.issued)),
		Live:      len(l.entries),
		Completed: l.completed,
		Cancelled: l.cancelled,
		Retired:   l.retired,
		LastID:    l.lastID,
	}
	for k, v := range l.issued {
		c.Issued[k] = v
	}
	for _, e := range l.entries {
		if e.Command.Kind().Streaming() {
			c.Streaming++
		}
	}
	return c
}
