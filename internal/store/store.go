// Package store defines the persistence interface for the settlement engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/enermatch/settlement-engine/internal/model"
)

// ErrDuplicateWallet is returned when a wallet already appears in either
// book. A participant holds at most one listing and one role per round.
var ErrDuplicateWallet = errors.New("store: wallet already listed this round")

// ErrRoundNotFound is returned when a round ID is unknown.
var ErrRoundNotFound = errors.New("store: round not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. Book listing order is insertion
// order — the ranking tie-break depends on it.
type Store interface {
	// --- Order books ---

	// SubmitOffer appends a producer listing to the offer book.
	SubmitOffer(ctx context.Context, r model.Record) error

	// SubmitOrder appends a consumer listing to the order book.
	SubmitOrder(ctx context.Context, r model.Record) error

	// ListOffers returns the offer book snapshot in submission order.
	ListOffers(ctx context.Context) ([]model.Record, error)

	// ListOrders returns the order book snapshot in submission order.
	ListOrders(ctx context.Context) ([]model.Record, error)

	// ClearBooks empties both books after a round consumes them.
	ClearBooks(ctx context.Context) error

	// --- Rounds and transfer ledger ---

	// InsertRound persists a completed round.
	InsertRound(ctx context.Context, round *model.Round) error

	// GetRound retrieves a round by ID.
	GetRound(ctx context.Context, id string) (*model.Round, error)

	// InsertTransfers appends immutable transfer records.
	InsertTransfers(ctx context.Context, transfers []model.Transfer) error

	// ListTransfersByRound returns all transfers emitted by one round.
	ListTransfersByRound(ctx context.Context, roundID string) ([]model.Transfer, error)
}
