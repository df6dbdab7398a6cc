package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/currexhq/exchange-core/internal/match"
)

const (
	queryGetBalance = `
		SELECT amount
		FROM account_balances
		WHERE user_id = $1 AND currency = $2`

	queryUpdateBalance = `
		UPDATE account_balances
		SET amount = amount + $1
		WHERE user_id = $2 AND currency = $3`

	queryReserveAmount = `
		UPDATE account_balances
		SET reserved = reserved + $1
		WHERE user_id = $2 AND currency = $3`

	queryRecordTrade = `
		INSERT INTO trades (
			id, buy_order_id, sell_order_id, buyer_id, seller_id,
			base_currency, quote_currency, amount, price, fee,
			status, settlement_status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Connect opens a connection pool for the DSN, pings it, and returns the
// store.
func Connect(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Begin acquires a dedicated connection and opens a transaction on it.
func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: acquire connection: %w", err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("ledger: begin transaction: %w", err)
	}

	return &postgresTx{conn: conn, tx: tx}, nil
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// postgresTx holds one pooled connection and one transaction. A single
// Postgres connection cannot multiplex queries, so the mutex serializes the
// settlement service's concurrent leg fan-out at the wire boundary.
type postgresTx struct {
	mu       sync.Mutex
	conn     *pgxpool.Conn
	tx       pgx.Tx
	released bool
}

func (t *postgresTx) GetBalance(ctx context.Context, account, currency string) (decimal.Decimal, error) {
	if err := validateCurrency(currency); err != nil {
		return decimal.Zero, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var amount decimal.Decimal
	err := t.tx.QueryRow(ctx, queryGetBalance, account, currency).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger: get balance for %s/%s: %w", account, currency, err)
	}
	return amount, nil
}

func (t *postgresTx) Reserve(ctx context.Context, account, currency string, amount decimal.Decimal) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := validateCurrency(currency); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.tx.Exec(ctx, queryReserveAmount, amount, account, currency); err != nil {
		return fmt.Errorf("ledger: reserve %s %s for %s: %w", amount, currency, account, err)
	}
	return nil
}

func (t *postgresTx) ApplyBalanceChange(ctx context.Context, account, currency string, amount decimal.Decimal, dir Direction) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := validateCurrency(currency); err != nil {
		return err
	}

	delta := amount
	if dir == Decrease {
		delta = amount.Neg()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.tx.Exec(ctx, queryUpdateBalance, delta, account, currency); err != nil {
		return fmt.Errorf("ledger: apply %s %s %s for %s: %w", dir, amount, currency, account, err)
	}
	return nil
}

func (t *postgresTx) RecordTrade(ctx context.Context, trade *match.Trade, tradeID string) error {
	if err := validateAmount(trade.Amount); err != nil {
		return err
	}
	if err := validateCurrency(trade.Base); err != nil {
		return err
	}
	if err := validateCurrency(trade.Quote); err != nil {
		return err
	}

	fee := trade.Amount.Mul(FeeRate)

	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := t.tx.Exec(ctx, queryRecordTrade,
		tradeID, trade.BuyOrderID, trade.SellOrderID, trade.BuyerID, trade.SellerID,
		trade.Base, trade.Quote, trade.Amount, trade.Price, fee,
		"EXECUTED", "PENDING", time.Unix(0, trade.Timestamp).UTC(),
	)
	if err != nil {
		return fmt.Errorf("ledger: record trade %s: %w", tradeID, err)
	}
	return nil
}

func (t *postgresTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("ledger: commit: %w", err)
	}
	return nil
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("ledger: rollback: %w", err)
	}
	return nil
}

func (t *postgresTx) Release(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.released {
		return nil
	}
	t.released = true
	t.conn.Release()
	return nil
}
