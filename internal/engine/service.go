// Package engine provides the HTTP handlers and business logic for
// collecting offers and orders, executing settlement rounds, and querying
// rounds and transfer ledgers.
//
// All monetary values use shopspring/decimal — never float64 for money.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/enermatch/settlement-engine/internal/fx"
	"github.com/enermatch/settlement-engine/internal/matching"
	"github.com/enermatch/settlement-engine/internal/metrics"
	"github.com/enermatch/settlement-engine/internal/model"
	"github.com/enermatch/settlement-engine/internal/ranking"
	"github.com/enermatch/settlement-engine/internal/settlement"
	"github.com/enermatch/settlement-engine/internal/store"
)

// Service handles book ingestion and round execution. Uses a mutex for
// serialized round execution (single-instance). For horizontal scaling,
// replace with distributed locking around the pooled balance.
type Service struct {
	store store.Store
	rates fx.RateTable
	mu    sync.Mutex
	wsHub *WSHub // optional WebSocket hub for round broadcasts
}

// NewService creates a new settlement service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, rates fx.RateTable, hub *WSHub) *Service {
	return &Service{
		store: st,
		rates: rates,
		wsHub: hub,
	}
}

// --- Request/Response types ---

// RunRoundRequest is the JSON body for POST /rounds. PoolBalances holds the
// opening pooled funds per native currency; all entries are converted to
// reference units before settlement. Empty means a zero opening balance.
type RunRoundRequest struct {
	PoolBalances map[string]decimal.Decimal `json:"pool_balances"`
}

// RoundResponse is the JSON body returned from POST /rounds.
type RoundResponse struct {
	Round     model.Round      `json:"round"`
	Matches   []model.Match    `json:"matches"`
	Transfers []model.Transfer `json:"transfers"`
}

// --- HTTP Handlers ---

// SubmitOffer handles POST /api/v1/offers
func (s *Service) SubmitOffer(w http.ResponseWriter, r *http.Request) {
	s.submitListing(w, r, "offers", s.store.SubmitOffer)
}

// SubmitOrder handles POST /api/v1/orders
func (s *Service) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	s.submitListing(w, r, "orders", s.store.SubmitOrder)
}

func (s *Service) submitListing(w http.ResponseWriter, r *http.Request, side string, submit func(context.Context, model.Record) error) {
	var rec model.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// A malformed record fails alone; it never reaches a book.
	if err := rec.Validate(); err != nil {
		metrics.IngestRejections.WithLabelValues(side, "malformed").Inc()
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.rates.Known(rec.Currency) {
		metrics.IngestRejections.WithLabelValues(side, "unknown_currency").Inc()
		writeError(w, fx.ErrUnknownCurrency.Error()+": "+rec.Currency, http.StatusBadRequest)
		return
	}

	if err := submit(r.Context(), rec); err != nil {
		if errors.Is(err, store.ErrDuplicateWallet) {
			metrics.IngestRejections.WithLabelValues(side, "duplicate_wallet").Inc()
			writeError(w, err.Error(), http.StatusConflict)
			return
		}
		writeError(w, "failed to store listing", http.StatusInternalServerError)
		return
	}

	metrics.BookSize.WithLabelValues(side).Inc()

	slog.Info("listing accepted",
		"side", side,
		"wallet", rec.Wallet,
		"amount", rec.Amount.String(),
		"price", rec.Price.String(),
		"grade", rec.Grade,
		"currency", rec.Currency,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(rec)
}

// ListOffers handles GET /api/v1/offers
func (s *Service) ListOffers(w http.ResponseWriter, r *http.Request) {
	s.listBook(w, r, s.store.ListOffers)
}

// ListOrders handles GET /api/v1/orders
func (s *Service) ListOrders(w http.ResponseWriter, r *http.Request) {
	s.listBook(w, r, s.store.ListOrders)
}

func (s *Service) listBook(w http.ResponseWriter, r *http.Request, list func(context.Context) ([]model.Record, error)) {
	book, err := list(r.Context())
	if err != nil {
		writeError(w, "failed to list book", http.StatusInternalServerError)
		return
	}
	if book == nil {
		book = []model.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(book)
}

// GetRates handles GET /api/v1/rates
func (s *Service) GetRates(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.rates)
}

// RunRound handles POST /api/v1/rounds
// Snapshots both books, runs normalize → rank → match → settle, persists the
// round and its transfers, clears the consumed books, and returns the report.
func (s *Service) RunRound(w http.ResponseWriter, r *http.Request) {
	var req RunRoundRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()

	// Serialize round execution.
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()

	// Opening pooled balance in reference units.
	openingBalance := decimal.Zero
	for currency, amount := range req.PoolBalances {
		ref, err := s.rates.ToReference(amount, currency)
		if err != nil {
			writeError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		openingBalance = openingBalance.Add(ref)
	}

	offers, err := s.store.ListOffers(ctx)
	if err != nil {
		writeError(w, "failed to snapshot offer book", http.StatusInternalServerError)
		return
	}
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		writeError(w, "failed to snapshot order book", http.StatusInternalServerError)
		return
	}

	// Normalize. Fatal on unknown currency: downstream math is meaningless
	// without a rate. Ingestion checks make this unreachable in practice.
	stdOffers, err := s.rates.Normalize(offers)
	if err != nil {
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	stdOrders, err := s.rates.Normalize(orders)
	if err != nil {
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	// Rank, match, settle.
	rankings := ranking.Build(stdOffers, stdOrders)
	matches := matching.Match(rankings)
	result := settlement.Settle(matches, offers, orders, s.rates, openingBalance)

	round := &model.Round{
		ID:             uuid.New().String(),
		Offers:         len(offers),
		Orders:         len(orders),
		Matches:        len(matches),
		Transfers:      len(result.Transfers),
		OpeningBalance: openingBalance,
		FinalBalance:   result.FinalBalance,
		CreatedAt:      time.Now().UTC(),
	}

	transfers := make([]model.Transfer, len(result.Transfers))
	for i, t := range result.Transfers {
		t.ID = uuid.New().String()
		t.RoundID = round.ID
		t.CreatedAt = round.CreatedAt
		transfers[i] = t
	}

	if err := s.store.InsertRound(ctx, round); err != nil {
		writeError(w, "failed to record round", http.StatusInternalServerError)
		return
	}
	if err := s.store.InsertTransfers(ctx, transfers); err != nil {
		writeError(w, "failed to record transfers", http.StatusInternalServerError)
		return
	}
	if err := s.store.ClearBooks(ctx); err != nil {
		writeError(w, "failed to clear books", http.StatusInternalServerError)
		return
	}

	metrics.RoundsTotal.Inc()
	metrics.RoundDuration.Observe(time.Since(start).Seconds())
	metrics.MatchesTotal.Add(float64(len(matches)))
	for _, t := range transfers {
		metrics.TransfersTotal.WithLabelValues(t.Direction).Inc()
	}
	metrics.SettlementSkips.Add(float64(result.Skipped))
	metrics.BookSize.WithLabelValues("offers").Set(0)
	metrics.BookSize.WithLabelValues("orders").Set(0)

	slog.Info("round settled",
		"round_id", round.ID,
		"offers", round.Offers,
		"orders", round.Orders,
		"matches", round.Matches,
		"transfers", round.Transfers,
		"skipped", result.Skipped,
		"opening_balance", openingBalance.String(),
		"final_balance", round.FinalBalance.String(),
	)

	// Broadcast the settled round via WebSocket.
	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:         "round_settled",
			RoundID:      round.ID,
			Matches:      round.Matches,
			Transfers:    round.Transfers,
			FinalBalance: round.FinalBalance.String(),
		})
	}

	if matches == nil {
		matches = []model.Match{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(RoundResponse{
		Round:     *round,
		Matches:   matches,
		Transfers: transfers,
	})
}

// GetRound handles GET /api/v1/rounds/{roundID}
func (s *Service) GetRound(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "roundID")

	round, err := s.store.GetRound(r.Context(), roundID)
	if err != nil {
		writeError(w, "round not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(round)
}

// ListRoundTransfers handles GET /api/v1/rounds/{roundID}/transfers
func (s *Service) ListRoundTransfers(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "roundID")

	if _, err := s.store.GetRound(r.Context(), roundID); err != nil {
		writeError(w, "round not found", http.StatusNotFound)
		return
	}

	transfers, err := s.store.ListTransfersByRound(r.Context(), roundID)
	if err != nil {
		writeError(w, "failed to list transfers", http.StatusInternalServerError)
		return
	}
	if transfers == nil {
		transfers = []model.Transfer{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transfers)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
