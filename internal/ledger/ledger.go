// Package ledger defines the account ledger consumed by trade settlement:
// balance reads, reservations and mutations under an explicit transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/currexhq/exchange-core/internal/match"
)

// Direction selects whether a balance change credits or debits the account.
type Direction string

const (
	Increase Direction = "increase"
	Decrease Direction = "decrease"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrDuplicateTrade  = errors.New("duplicate trade id")
	ErrTxClosed        = errors.New("transaction already closed")
)

// FeeRate is the flat trade fee recorded with every settled trade.
var FeeRate = decimal.RequireFromString("0.001")

// Store hands out ledger transactions. Each settlement attempt runs on its
// own transaction; isolation between accounts is the store's concern
// (row-level locking in Postgres), not the caller's.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Close()
}

// Tx is a single ledger transaction. Nothing is durable until Commit; any
// failure must be followed by Rollback. Release returns the underlying
// connection and must always be called, after Commit or Rollback.
//
// Implementations must tolerate concurrent calls to the balance operations:
// the settlement service issues the two legs of each step concurrently.
type Tx interface {
	GetBalance(ctx context.Context, account, currency string) (decimal.Decimal, error)
	Reserve(ctx context.Context, account, currency string, amount decimal.Decimal) error
	ApplyBalanceChange(ctx context.Context, account, currency string, amount decimal.Decimal, dir Direction) error
	RecordTrade(ctx context.Context, trade *match.Trade, tradeID string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Release(ctx context.Context) error
}

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

func validateCurrency(currency string) error {
	if !currencyRe.MatchString(currency) {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return nil
}
