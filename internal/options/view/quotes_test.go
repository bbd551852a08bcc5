package view

import (
	"sync"
	"testing"
	"time"

	"github.com/zappabad/optionboard/internal/options"
)

func ident(day int, strike float64) options.Identity {
	return options.Identity{
		Expiration: time.Date(2024, 9, day, 0, 0, 0, 0, time.UTC),
		Strike:     strike,
		Right:      options.Put,
	}
}

func TestQuoteStoreSnapshotInsertionOrder(t *testing.T) {
	s := NewQuoteStore()
	s.UpsertIdentity(7, ident(27, 105), 70)
	s.UpsertIdentity(3, ident(20, 100), 30)
	s.UpsertIdentity(5, ident(20, 95), 50)

	snap := s.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 quotes, got %d", len(snap))
	}
	want := []options.Key{7, 3, 5}
	for i, q := range snap {
		if q.Key != want[i] {
			t.Errorf("position %d: expected key %d, got %d", i, want[i], q.Key)
		}
	}
}

func TestQuoteStoreAliasRoutesUpdates(t *testing.T) {
	s := NewQuoteStore()
	s.UpsertIdentity(3, ident(20, 100), 30)
	if !s.Alias(11, 3) {
		t.Fatal("alias to known key should succeed")
	}
	if s.Alias(12, 99) {
		t.Error("alias to unknown key should fail")
	}

	if !s.UpdateFields(11, options.Fields{Delta: options.Float(-0.4), Gamma: options.Float(0.02)}) {
		t.Fatal("update via alias should find the quote")
	}
	s.UpdateFields(11, options.Fields{Delta: options.Float(0.45)})

	q, ok := s.Lookup(3)
	if !ok {
		t.Fatal("quote not found")
	}
	if *q.Fields.Delta != 0.45 {
		t.Errorf("expected delta 0.45, got %v", *q.Fields.Delta)
	}
	if q.Fields.Gamma == nil || *q.Fields.Gamma != 0.02 {
		t.Errorf("gamma should be unchanged, got %v", q.Fields.Gamma)
	}
	if s.UpdateFields(42, options.Fields{Delta: options.Float(1)}) {
		t.Error("unknown id should not update")
	}
}

func TestQuoteStoreDuplicateIdentity(t *testing.T) {
	s := NewQuoteStore()
	if !s.UpsertIdentity(3, ident(20, 100), 30) {
		t.Fatal("first upsert should succeed")
	}
	if s.UpsertIdentity(4, ident(20, 100), 30) {
		t.Error("second key for the same identity should be rejected")
	}
	if !s.UpsertIdentity(3, ident(20, 100), 31) {
		t.Error("re-upsert under the owning key should succeed")
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 quote, got %d", s.Len())
	}
	if !s.Contains(ident(20, 100)) {
		t.Error("identity should be present")
	}
}

func TestQuoteStoreClearAll(t *testing.T) {
	s := NewQuoteStore()
	s.UpsertIdentity(3, ident(20, 100), 30)
	s.Alias(11, 3)
	s.ClearAll()

	if s.Len() != 0 || len(s.Snapshot()) != 0 {
		t.Fatal("store should be empty")
	}
	if s.UpdateFields(11, options.Fields{Delta: options.Float(1)}) {
		t.Error("aliases should be cleared")
	}
	if s.Contains(ident(20, 100)) {
		t.Error("identities should be cleared")
	}
}

func TestQuoteStoreSnapshotIsCopy(t *testing.T) {
	s := NewQuoteStore()
	s.UpsertIdentity(3, ident(20, 100), 30)
	s.UpdateFields(3, options.Fields{OptionPrice: options.Float(2)})

	snap := s.Snapshot()
	*snap[0].Fields.OptionPrice = 99

	q, _ := s.Lookup(3)
	if *q.Fields.OptionPrice != 2 {
		t.Errorf("snapshot mutation leaked into store: %v", *q.Fields.OptionPrice)
	}
}

func TestQuoteStoreConcurrentReaders(t *testing.T) {
	s := NewQuoteStore()
	for i := 1; i <= 20; i++ {
		s.UpsertIdentity(options.Key(i), ident(20, float64(i)), int64(i))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.UpdateFields(options.Key(i%20+1), options.Fields{LastPrice: options.Float(float64(i))})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = s.Snapshot()
		}
	}()
	wg.Wait()
}

func TestUnderlyingView(t *testing.T) {
	v := NewUnderlyingView(4)
	v.Reset("AAPL", 2)
	v.SetContract(265598)
	if _, ok := v.Snapshot().Price(); ok {
		t.Error("price should be unknown after reset")
	}
	v.SetPrice(101.5)
	u := v.Snapshot()
	if u.Symbol != "AAPL" || u.ContractID != 265598 || u.HorizonWeeks != 2 {
		t.Errorf("unexpected state %+v", u)
	}
	if p, ok := u.Price(); !ok || p != 101.5 {
		t.Errorf("expected 101.5, got %v %v", p, ok)
	}
}
