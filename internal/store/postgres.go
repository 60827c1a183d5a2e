package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/enermatch/settlement-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
// Books keep submission order through a BIGSERIAL sequence column.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) SubmitOffer(ctx context.Context, r model.Record) error {
	return s.submit(ctx, "offers", r)
}

func (s *PostgresStore) SubmitOrder(ctx context.Context, r model.Record) error {
	return s.submit(ctx, "orders", r)
}

func (s *PostgresStore) submit(ctx context.Context, table string, r model.Record) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM offers WHERE wallet = $1)
		     OR EXISTS (SELECT 1 FROM orders WHERE wallet = $1)`, r.Wallet).
		Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateWallet, r.Wallet)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+table+` (wallet, amount, price, lat, long, grade, currency)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4, $5, $6, $7)`,
		r.Wallet, r.Amount.String(), r.Price.String(),
		r.Lat, r.Long, r.Grade, r.Currency,
	)
	return err
}

func (s *PostgresStore) ListOffers(ctx context.Context) ([]model.Record, error) {
	return s.listBook(ctx, "offers")
}

func (s *PostgresStore) ListOrders(ctx context.Context) ([]model.Record, error) {
	return s.listBook(ctx, "orders")
}

func (s *PostgresStore) listBook(ctx context.Context, table string) ([]model.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT wallet, amount::TEXT, price::TEXT, lat, long, grade, currency
		 FROM `+table+` ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var book []model.Record
	for rows.Next() {
		var r model.Record
		var amount, price string
		if err := rows.Scan(&r.Wallet, &amount, &price, &r.Lat, &r.Long, &r.Grade, &r.Currency); err != nil {
			return nil, err
		}
		r.Amount, _ = decimal.NewFromString(amount)
		r.Price, _ = decimal.NewFromString(price)
		book = append(book, r)
	}
	return book, rows.Err()
}

func (s *PostgresStore) ClearBooks(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM offers`); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM orders`)
	return err
}

func (s *PostgresStore) InsertRound(ctx context.Context, round *model.Round) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rounds (id, offers, orders, matches, transfers, opening_balance, final_balance, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8)`,
		round.ID, round.Offers, round.Orders, round.Matches, round.Transfers,
		round.OpeningBalance.String(), round.FinalBalance.String(), round.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetRound(ctx context.Context, id string) (*model.Round, error) {
	var round model.Round
	var opening, final string

	err := s.pool.QueryRow(ctx,
		`SELECT id, offers, orders, matches, transfers,
		        opening_balance::TEXT, final_balance::TEXT, created_at
		 FROM rounds WHERE id = $1`, id).
		Scan(&round.ID, &round.Offers, &round.Orders, &round.Matches, &round.Transfers,
			&opening, &final, &round.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRoundNotFound, id)
		}
		return nil, fmt.Errorf("get round %s: %w", id, err)
	}

	round.OpeningBalance, _ = decimal.NewFromString(opening)
	round.FinalBalance, _ = decimal.NewFromString(final)
	return &round, nil
}

func (s *PostgresStore) InsertTransfers(ctx context.Context, transfers []model.Transfer) error {
	for _, t := range transfers {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO transfers (id, round_id, wallet, amount, currency, direction, created_at)
			 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6, $7)`,
			t.ID, t.RoundID, t.Wallet, t.Amount.String(), t.Currency, t.Direction, t.CreatedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) ListTransfersByRound(ctx context.Context, roundID string) ([]model.Transfer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, round_id, wallet, amount::TEXT, currency, direction, created_at
		 FROM transfers WHERE round_id = $1 ORDER BY created_at ASC, id ASC`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []model.Transfer
	for rows.Next() {
		var t model.Transfer
		var amount string
		if err := rows.Scan(&t.ID, &t.RoundID, &t.Wallet, &amount, &t.Currency, &t.Direction, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Amount, _ = decimal.NewFromString(amount)
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}
