package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/enermatch/settlement-engine/internal/model"
)

// MemoryStore implements Store with in-memory slices and maps. Used for
// testing and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	offers    []model.Record
	orders    []model.Record
	rounds    map[string]*model.Round
	transfers []model.Transfer
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rounds: make(map[string]*model.Round),
	}
}

func (s *MemoryStore) SubmitOffer(_ context.Context, r model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.walletListed(r.Wallet) {
		return fmt.Errorf("%w: %s", ErrDuplicateWallet, r.Wallet)
	}
	s.offers = append(s.offers, r)
	return nil
}

func (s *MemoryStore) SubmitOrder(_ context.Context, r model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.walletListed(r.Wallet) {
		return fmt.Errorf("%w: %s", ErrDuplicateWallet, r.Wallet)
	}
	s.orders = append(s.orders, r)
	return nil
}

// walletListed reports whether the wallet holds a listing in either book.
// Callers must hold the lock.
func (s *MemoryStore) walletListed(wallet string) bool {
	for _, r := range s.offers {
		if r.Wallet == wallet {
			return true
		}
	}
	for _, r := range s.orders {
		if r.Wallet == wallet {
			return true
		}
	}
	return false
}

func (s *MemoryStore) ListOffers(_ context.Context) ([]model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Record, len(s.offers))
	copy(out, s.offers)
	return out, nil
}

func (s *MemoryStore) ListOrders(_ context.Context) ([]model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Record, len(s.orders))
	copy(out, s.orders)
	return out, nil
}

func (s *MemoryStore) ClearBooks(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.offers = nil
	s.orders = nil
	return nil
}

func (s *MemoryStore) InsertRound(_ context.Context, round *model.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rounds[round.ID]; ok {
		return fmt.Errorf("round %s already exists", round.ID)
	}
	copy := *round
	s.rounds[round.ID] = &copy
	return nil
}

func (s *MemoryStore) GetRound(_ context.Context, id string) (*model.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	round, ok := s.rounds[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoundNotFound, id)
	}
	copy := *round
	return &copy, nil
}

func (s *MemoryStore) InsertTransfers(_ context.Context, transfers []model.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transfers = append(s.transfers, transfers...)
	return nil
}

func (s *MemoryStore) ListTransfersByRound(_ context.Context, roundID string) ([]model.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Transfer
	for _, t := range s.transfers {
		if t.RoundID == roundID {
			out = append(out, t)
		}
	}
	return out, nil
}
