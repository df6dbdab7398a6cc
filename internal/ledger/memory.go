package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/currexhq/exchange-core/internal/match"
)

// MemoryStore is an in-memory ledger with overlay transaction semantics:
// mutations accumulate in the transaction and only touch the shared state on
// Commit. It backs the settlement tests; the Fail* hooks inject failures at
// specific steps.
type MemoryStore struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	reserved map[string]decimal.Decimal
	trades   map[string]*match.Trade

	FailGetBalance error
	FailReserve    error
	FailRecord     error
	FailApply      error
	FailCommit     error
	FailRelease    error
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[string]decimal.Decimal),
		reserved: make(map[string]decimal.Decimal),
		trades:   make(map[string]*match.Trade),
	}
}

func balanceKey(account, currency string) string {
	return account + "|" + currency
}

// SetBalance seeds an account balance.
func (s *MemoryStore) SetBalance(account, currency string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[balanceKey(account, currency)] = amount
}

// Balance returns the committed available balance.
func (s *MemoryStore) Balance(account, currency string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[balanceKey(account, currency)]
}

// Reserved returns the committed reserved balance.
func (s *MemoryStore) Reserved(account, currency string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reserved[balanceKey(account, currency)]
}

// TradeCount returns the number of committed trade rows.
func (s *MemoryStore) TradeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}

// Trade returns the committed trade row for the id, or nil.
func (s *MemoryStore) Trade(tradeID string) *match.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trades[tradeID]
}

// Begin opens an overlay transaction.
func (s *MemoryStore) Begin(_ context.Context) (Tx, error) {
	return &memoryTx{
		store:    s,
		balances: make(map[string]decimal.Decimal),
		reserved: make(map[string]decimal.Decimal),
		trades:   make(map[string]*match.Trade),
	}, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}

type memoryTx struct {
	mu       sync.Mutex
	store    *MemoryStore
	balances map[string]decimal.Decimal // pending deltas
	reserved map[string]decimal.Decimal
	trades   map[string]*match.Trade
	closed   bool
}

func (t *memoryTx) GetBalance(_ context.Context, account, currency string) (decimal.Decimal, error) {
	if err := validateCurrency(currency); err != nil {
		return decimal.Zero, err
	}
	if t.store.FailGetBalance != nil {
		return decimal.Zero, t.store.FailGetBalance
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return decimal.Zero, ErrTxClosed
	}

	committed := t.store.Balance(account, currency)
	return committed.Add(t.balances[balanceKey(account, currency)]), nil
}

func (t *memoryTx) Reserve(_ context.Context, account, currency string, amount decimal.Decimal) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := validateCurrency(currency); err != nil {
		return err
	}
	if t.store.FailReserve != nil {
		return t.store.FailReserve
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTxClosed
	}

	key := balanceKey(account, currency)
	t.reserved[key] = t.reserved[key].Add(amount)
	return nil
}

func (t *memoryTx) ApplyBalanceChange(_ context.Context, account, currency string, amount decimal.Decimal, dir Direction) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := validateCurrency(currency); err != nil {
		return err
	}
	if t.store.FailApply != nil {
		return t.store.FailApply
	}

	delta := amount
	if dir == Decrease {
		delta = amount.Neg()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTxClosed
	}

	key := balanceKey(account, currency)
	t.balances[key] = t.balances[key].Add(delta)
	return nil
}

func (t *memoryTx) RecordTrade(_ context.Context, trade *match.Trade, tradeID string) error {
	if err := validateAmount(trade.Amount); err != nil {
		return err
	}
	if t.store.FailRecord != nil {
		return t.store.FailRecord
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTxClosed
	}

	t.store.mu.Lock()
	_, committed := t.store.trades[tradeID]
	t.store.mu.Unlock()
	if _, pending := t.trades[tradeID]; pending || committed {
		return fmt.Errorf("%w: %s", ErrDuplicateTrade, tradeID)
	}

	t.trades[tradeID] = trade
	return nil
}

func (t *memoryTx) Commit(_ context.Context) error {
	if t.store.FailCommit != nil {
		return t.store.FailCommit
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTxClosed
	}
	t.closed = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for key, delta := range t.balances {
		t.store.balances[key] = t.store.balances[key].Add(delta)
	}
	for key, delta := range t.reserved {
		t.store.reserved[key] = t.store.reserved[key].Add(delta)
	}
	for id, trade := range t.trades {
		t.store.trades[id] = trade
	}
	return nil
}

func (t *memoryTx) Rollback(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	t.balances = nil
	t.reserved = nil
	t.trades = nil
	return nil
}

func (t *memoryTx) Release(_ context.Context) error {
	if t.store.FailRelease != nil {
		return t.store.FailRelease
	}
	return nil
}
