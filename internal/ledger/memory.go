package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore is a map-backed ledger used in tests and as a stand-in for
// the document store in single-process deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	payments map[string]Payment // keyed by row id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payments: make(map[string]Payment)}
}

func (s *MemoryStore) AddBatch(_ context.Context, payments []Payment) error {
	if len(payments) == 0 {
		return ErrEmptyBatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range payments {
		s.payments[p.ID] = p
	}
	return nil
}

func (s *MemoryStore) Fingerprints(_ context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.payments))
	for _, p := range s.payments {
		out[p.Fingerprint] = struct{}{}
	}
	return out, nil
}

func (s *MemoryStore) All(_ context.Context) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p)
	}
	return out, nil
}

func (s *MemoryStore) DeleteBatch(_ context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, id := range ids {
		if _, ok := s.payments[id]; ok {
			delete(s.payments, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) WindowTotal(_ context.Context, source Source, cutoff time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, p := range s.payments {
		if p.Source == source && p.Date.After(cutoff) {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

func (s *MemoryStore) CustomerAggregates(_ context.Context, cutoff time.Time) (map[string]CustomerAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]CustomerAggregate)
	for _, p := range s.payments {
		if !p.Date.After(cutoff) {
			continue
		}
		agg := out[p.CustomerID]
		if p.Source.IsCash() {
			agg.CashTotal = agg.CashTotal.Add(p.Amount)
			agg.CashCount++
			if p.Date.After(agg.LastCashDate) {
				agg.LastCashDate = p.Date
			}
		} else {
			agg.BankTotal = agg.BankTotal.Add(p.Amount)
			agg.BankCount++
			if p.Date.After(agg.LastBankDate) {
				agg.LastBankDate = p.Date
			}
		}
		out[p.CustomerID] = agg
	}
	return out, nil
}

func (s *MemoryStore) LastPaymentDates(_ context.Context) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time)
	for _, p := range s.payments {
		if p.Date.After(out[p.CustomerID]) {
			out[p.CustomerID] = p.Date
		}
	}
	return out, nil
}
