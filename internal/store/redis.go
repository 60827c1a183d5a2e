package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/enermatch/settlement-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary. Rounds and transfer
// lists are immutable once written, so they cache indefinitely within TTL.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Writes (write to primary, invalidate cache) ---

func (s *CachedStore) SubmitOffer(ctx context.Context, r model.Record) error {
	if err := s.primary.SubmitOffer(ctx, r); err != nil {
		return err
	}
	s.rdb.Del(ctx, bookKey("offers"))
	return nil
}

func (s *CachedStore) SubmitOrder(ctx context.Context, r model.Record) error {
	if err := s.primary.SubmitOrder(ctx, r); err != nil {
		return err
	}
	s.rdb.Del(ctx, bookKey("orders"))
	return nil
}

func (s *CachedStore) ClearBooks(ctx context.Context) error {
	if err := s.primary.ClearBooks(ctx); err != nil {
		return err
	}
	s.rdb.Del(ctx, bookKey("offers"), bookKey("orders"))
	return nil
}

func (s *CachedStore) InsertRound(ctx context.Context, round *model.Round) error {
	if err := s.primary.InsertRound(ctx, round); err != nil {
		return err
	}
	s.cacheJSON(ctx, roundKey(round.ID), round)
	return nil
}

func (s *CachedStore) InsertTransfers(ctx context.Context, transfers []model.Transfer) error {
	if err := s.primary.InsertTransfers(ctx, transfers); err != nil {
		return err
	}
	if len(transfers) > 0 {
		s.rdb.Del(ctx, transfersKey(transfers[0].RoundID))
	}
	return nil
}

// --- Reads (check cache first) ---

func (s *CachedStore) ListOffers(ctx context.Context) ([]model.Record, error) {
	return s.listBook(ctx, "offers", s.primary.ListOffers)
}

func (s *CachedStore) ListOrders(ctx context.Context) ([]model.Record, error) {
	return s.listBook(ctx, "orders", s.primary.ListOrders)
}

func (s *CachedStore) listBook(ctx context.Context, side string, fallback func(context.Context) ([]model.Record, error)) ([]model.Record, error) {
	data, err := s.rdb.Get(ctx, bookKey(side)).Bytes()
	if err == nil {
		var book []model.Record
		if json.Unmarshal(data, &book) == nil {
			return book, nil
		}
	}

	book, err := fallback(ctx)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, bookKey(side), book)
	return book, nil
}

func (s *CachedStore) GetRound(ctx context.Context, id string) (*model.Round, error) {
	data, err := s.rdb.Get(ctx, roundKey(id)).Bytes()
	if err == nil {
		var round model.Round
		if json.Unmarshal(data, &round) == nil {
			return &round, nil
		}
	}

	round, err := s.primary.GetRound(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, roundKey(id), round)
	return round, nil
}

func (s *CachedStore) ListTransfersByRound(ctx context.Context, roundID string) ([]model.Transfer, error) {
	data, err := s.rdb.Get(ctx, transfersKey(roundID)).Bytes()
	if err == nil {
		var transfers []model.Transfer
		if json.Unmarshal(data, &transfers) == nil {
			return transfers, nil
		}
	}

	transfers, err := s.primary.ListTransfersByRound(ctx, roundID)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, transfersKey(roundID), transfers)
	return transfers, nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheJSON(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func bookKey(side string) string    { return fmt.Sprintf("book:%s", side) }
func roundKey(id string) string     { return fmt.Sprintf("round:%s", id) }
func transfersKey(id string) string { return fmt.Sprintf("transfers:%s", id) }
