package view

import (
	"sync"

	"github.com/zappabad/optionboard/internal/gateway"
	"github.com/zappabad/optionboard/internal/options"
)

type identityKey struct {
	exp    int64
	strike float64
	right  options.Right
}

func keyOf(id options.Identity) identityKey {
	return identityKey{exp: id.Expiration.Unix(), strike: id.Strike, right: id.Right}
}

// QuoteStore holds every known option quote of the current underlying.
// Quotes are keyed by the request id of their contract resolution; the
// request ids of their quote streams are aliases of that key.
// It is safe for concurrent use and returns copies.
type QuoteStore struct {
	mu         sync.RWMutex
	quotes     map[options.Key]*options.Quote
	order      []options.Key
	aliases    map[gateway.RequestID]options.Key
	byIdentity map[identityKey]options.Key
}

// NewQuoteStore creates an empty store.
func NewQuoteStore() *QuoteStore {
	return &QuoteStore{
		quotes:     map[options.Key]*options.Quote{},
		aliases:    map[gateway.RequestID]options.Key{},
		byIdentity: map[identityKey]options.Key{},
	}
}

// UpsertIdentity records the identity resolved for key. It returns false
// without changing anything when another key already holds the identity.
func (s *QuoteStore) UpsertIdentity(key options.Key, id options.Identity, contractID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ik := keyOf(id)
	if owner, ok := s.byIdentity[ik]; ok && owner != key {
		return false
	}

	q, ok := s.quotes[key]
	if !ok {
		q = &options.Quote{Key: key}
		s.quotes[key] = q
		s.order = append(s.order, key)
	} else if q.Identity != id {
		delete(s.byIdentity, keyOf(q.Identity))
	}
	q.Identity = id
	q.ContractID = contractID
	s.byIdentity[ik] = key
	return true
}

// Alias routes future updates addressed to id onto the quote under key.
func (s *QuoteStore) Alias(id gateway.RequestID, key options.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quotes[key]; !ok {
		return false
	}
	s.aliases[id] = key
	return true
}

// UpdateFields merges the non-nil fields of partial into the quote
// addressed by id. It reports whether a quote was found.
func (s *QuoteStore) UpdateFields(id gateway.RequestID, partial options.Fields) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.resolve(id)
	if q == nil {
		return false
	}
	q.Fields.Merge(partial)
	return true
}

func (s *QuoteStore) resolve(id gateway.RequestID) *options.Quote {
	if q, ok := s.quotes[id]; ok {
		return q
	}
	if key, ok := s.aliases[id]; ok {
		return s.quotes[key]
	}
	return nil
}

// Lookup returns a copy of the quote addressed by id.
func (s *QuoteStore) Lookup(id gateway.RequestID) (options.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := s.resolve(id)
	if q == nil {
		return options.Quote{}, false
	}
	return copyQuote(q), true
}

// Contains reports whether a quote with identity id is present.
func (s *QuoteStore) Contains(id options.Identity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byIdentity[keyOf(id)]
	return ok
}

// ClearAll drops every quote and alias.
func (s *QuoteStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes = map[options.Key]*options.Quote{}
	s.order = nil
	s.aliases = map[gateway.RequestID]options.Key{}
	s.byIdentity = map[identityKey]options.Key{}
}

// Snapshot returns copies of all quotes in the order their contracts
// were resolved.
func (s *QuoteStore) Snapshot() []options.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]options.Quote, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, copyQuote(s.quotes[key]))
	}
	return out
}

// Len returns the number of quotes.
func (s *QuoteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func copyQuote(q *options.Quote) options.Quote {
	out := *q
	out.Fields = q.Fields.Clone()
	return out
}
