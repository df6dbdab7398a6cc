package settle

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/currexhq/exchange-core/internal/ledger"
	"github.com/currexhq/exchange-core/internal/match"
	"github.com/currexhq/exchange-core/internal/stream"
)

func testTrade() *match.Trade {
	return &match.Trade{
		ID:          "m-1",
		BuyOrderID:  "buy-1",
		SellOrderID: "sell-1",
		BuyerID:     "buyer",
		SellerID:    "seller",
		Price:       decimal.NewFromInt(95),
		Amount:      decimal.NewFromInt(10),
		Base:        "EUR",
		Quote:       "USD",
	}
}

func seededStore() *ledger.MemoryStore {
	store := ledger.NewMemoryStore()
	store.SetBalance("seller", "USD", decimal.NewFromInt(100))
	store.SetBalance("buyer", "EUR", decimal.NewFromInt(100))
	return store
}

func TestExecuteTradeHappyPath(t *testing.T) {
	store := seededStore()
	events := stream.NewMemoryEventPublisher()
	svc := NewService(store, events)

	tradeID, err := svc.ExecuteTrade(context.Background(), testTrade())
	require.NoError(t, err)
	require.NotEmpty(t, tradeID)

	// Both legs applied: seller gave 10 USD and got 10 EUR, buyer mirrored.
	assert.Equal(t, "90", store.Balance("seller", "USD").String())
	assert.Equal(t, "10", store.Balance("seller", "EUR").String())
	assert.Equal(t, "90", store.Balance("buyer", "EUR").String())
	assert.Equal(t, "10", store.Balance("buyer", "USD").String())

	assert.Equal(t, "10", store.Reserved("seller", "USD").String())
	assert.Equal(t, "10", store.Reserved("buyer", "EUR").String())

	assert.Equal(t, 1, store.TradeCount())
	assert.NotNil(t, store.Trade(tradeID))

	require.Equal(t, 1, events.Count())
	event := events.Get(0)
	assert.Equal(t, stream.StatusExecuted, event.Status)
	assert.Equal(t, tradeID, event.TradeID)
	assert.Empty(t, event.ErrorMessage)
	require.NotNil(t, event.Trade)
	assert.Equal(t, "buy-1", event.Trade.BuyOrderID)
}

func TestExecuteTradeInsufficientSellerBalance(t *testing.T) {
	store := ledger.NewMemoryStore()
	store.SetBalance("seller", "USD", decimal.NewFromInt(5)) // < 10
	store.SetBalance("buyer", "EUR", decimal.NewFromInt(100))
	events := stream.NewMemoryEventPublisher()
	svc := NewService(store, events)

	_, err := svc.ExecuteTrade(context.Background(), testTrade())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTradeExecutionFailed)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "seller")

	// Nothing committed.
	assert.Equal(t, "5", store.Balance("seller", "USD").String())
	assert.Equal(t, "100", store.Balance("buyer", "EUR").String())
	assert.Equal(t, "0", store.Reserved("seller", "USD").String())
	assert.Equal(t, 0, store.TradeCount())

	require.Equal(t, 1, events.Count())
	event := events.Get(0)
	assert.Equal(t, stream.StatusFailed, event.Status)
	assert.Contains(t, event.ErrorMessage, "insufficient seller balance")
}

func TestExecuteTradeInsufficientBuyerBalance(t *testing.T) {
	store := ledger.NewMemoryStore()
	store.SetBalance("seller", "USD", decimal.NewFromInt(100))
	store.SetBalance("buyer", "EUR", decimal.NewFromInt(3))
	events := stream.NewMemoryEventPublisher()
	svc := NewService(store, events)

	_, err := svc.ExecuteTrade(context.Background(), testTrade())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "buyer")
	assert.Equal(t, stream.StatusFailed, events.Last().Status)
}

func TestExecuteTradeStepFailuresRollBack(t *testing.T) {
	cases := []struct {
		name   string
		inject func(store *ledger.MemoryStore, cause error)
	}{
		{"get balance", func(s *ledger.MemoryStore, c error) { s.FailGetBalance = c }},
		{"reserve", func(s *ledger.MemoryStore, c error) { s.FailReserve = c }},
		{"record", func(s *ledger.MemoryStore, c error) { s.FailRecord = c }},
		{"apply", func(s *ledger.MemoryStore, c error) { s.FailApply = c }},
		{"commit", func(s *ledger.MemoryStore, c error) { s.FailCommit = c }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cause := errors.New("ledger down")
			store := seededStore()
			tc.inject(store, cause)
			events := stream.NewMemoryEventPublisher()
			svc := NewService(store, events)

			_, err := svc.ExecuteTrade(context.Background(), testTrade())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTradeExecutionFailed)
			assert.ErrorIs(t, err, cause)

			// Committed state is untouched whichever step failed.
			assert.Equal(t, "100", store.Balance("seller", "USD").String())
			assert.Equal(t, "100", store.Balance("buyer", "EUR").String())
			assert.Equal(t, "0", store.Reserved("seller", "USD").String())
			assert.Equal(t, "0", store.Reserved("buyer", "EUR").String())
			assert.Equal(t, 0, store.TradeCount())

			require.Equal(t, 1, events.Count())
			assert.Equal(t, stream.StatusFailed, events.Get(0).Status)
			assert.NotEmpty(t, events.Get(0).ErrorMessage)
		})
	}
}

func TestExecuteTradePublishFailureAfterCommit(t *testing.T) {
	store := seededStore()
	events := stream.NewMemoryEventPublisher()
	events.Err = errors.New("broker unavailable")
	svc := NewService(store, events)

	_, err := svc.ExecuteTrade(context.Background(), testTrade())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTradeExecutionFailed)

	// The ledger commit stands even though the event never went out.
	assert.Equal(t, "90", store.Balance("seller", "USD").String())
	assert.Equal(t, 1, store.TradeCount())
	assert.Equal(t, 0, events.Count())
}

func TestExecuteTradeReleaseFailure(t *testing.T) {
	store := seededStore()
	store.FailRelease = errors.New("pool broken")
	events := stream.NewMemoryEventPublisher()
	svc := NewService(store, events)

	_, err := svc.ExecuteTrade(context.Background(), testTrade())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTradeExecutionFailed)
	assert.Equal(t, stream.StatusFailed, events.Last().Status)
}

func TestExecuteTradeNotifierBestEffort(t *testing.T) {
	store := seededStore()
	events := stream.NewMemoryEventPublisher()
	notifier := &recordingNotifier{err: errors.New("redis down")}
	svc := NewService(store, events, WithNotifier(notifier))

	tradeID, err := svc.ExecuteTrade(context.Background(), testTrade())
	require.NoError(t, err) // notifier failure does not fail the settlement
	assert.Equal(t, tradeID, notifier.tradeID)
}

type recordingNotifier struct {
	tradeID string
	err     error
}

func (n *recordingNotifier) NotifySettled(_ context.Context, tradeID string, _ *match.Trade) error {
	n.tradeID = tradeID
	return n.err
}

func TestCancelTrade(t *testing.T) {
	store := seededStore()
	events := stream.NewMemoryEventPublisher()
	svc := NewService(store, events)

	require.NoError(t, svc.CancelTrade(context.Background(), testTrade()))

	require.Equal(t, 1, events.Count())
	event := events.Get(0)
	assert.Equal(t, stream.StatusCancelled, event.Status)
	assert.Equal(t, "buy-1", event.TradeID) // keyed by the buy order id

	// No balances moved.
	assert.Equal(t, "100", store.Balance("seller", "USD").String())
	assert.Equal(t, 0, store.TradeCount())
}

func TestCancelTradePublishFailure(t *testing.T) {
	store := seededStore()
	events := stream.NewMemoryEventPublisher()
	events.Err = errors.New("broker unavailable")
	svc := NewService(store, events)

	err := svc.CancelTrade(context.Background(), testTrade())
	require.Error(t, err)
	assert.ErrorIs(t, err, events.Err)
}
