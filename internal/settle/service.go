package settle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/currexhq/exchange-core/internal/ledger"
	"github.com/currexhq/exchange-core/internal/match"
	"github.com/currexhq/exchange-core/internal/stream"
)

// Notifier receives a best-effort notification after a trade has been
// committed and its EXECUTED event published. Failures are logged and never
// affect the settlement outcome.
type Notifier interface {
	NotifySettled(ctx context.Context, tradeID string, trade *match.Trade) error
}

// Service settles matched trades against the ledger: reserve, record, apply
// both legs, commit or roll back as a whole, and publish the outcome.
//
// The service is request-concurrent; every ExecuteTrade call runs on its own
// ledger transaction. It never retries; failed settlements surface as a
// terminal error plus a FAILED event, and retry policy belongs to an
// external orchestrator.
type Service struct {
	ledger   ledger.Store
	events   stream.EventPublisher
	ids      IDGenerator
	notifier Notifier
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithIDGenerator overrides the trade id generator.
func WithIDGenerator(gen IDGenerator) ServiceOption {
	return func(s *Service) {
		s.ids = gen
	}
}

// WithNotifier sets the post-commit settlement notifier.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		s.notifier = n
	}
}

// NewService creates a settlement service.
func NewService(store ledger.Store, events stream.EventPublisher, opts ...ServiceOption) *Service {
	s := &Service{
		ledger: store,
		events: events,
		ids:    NewTradeIDGenerator(),
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExecuteTrade settles one trade and returns its generated trade id.
//
// The ledger work (check, reserve, record, apply, commit) is all-or-nothing:
// any failure rolls the transaction back, publishes a FAILED event, and
// returns the cause wrapped in ErrTradeExecutionFailed. A failure while
// releasing the connection or publishing the EXECUTED event is also reported
// as execution failure, even though the commit already stands.
func (s *Service) ExecuteTrade(ctx context.Context, trade *match.Trade) (string, error) {
	tradeID := s.ids.Generate()

	if err := s.runTransaction(ctx, trade, tradeID); err != nil {
		if perr := s.publishOutcome(context.WithoutCancel(ctx), tradeID, trade, stream.StatusFailed, err); perr != nil {
			err = errors.Join(err, perr)
		}
		logger.Error("trade settlement failed", "trade_id", tradeID, "error", err)
		return "", fmt.Errorf("%w: %w", ErrTradeExecutionFailed, err)
	}

	if err := s.publishOutcome(ctx, tradeID, trade, stream.StatusExecuted, nil); err != nil {
		// The commit already stands; downstream consumers are expected to be
		// idempotent on trade id, so a replayed event is harmless.
		logger.Error("executed event publish failed", "trade_id", tradeID, "error", err)
		return "", fmt.Errorf("%w: %w", ErrTradeExecutionFailed, err)
	}

	logger.Info("trade settled",
		"trade_id", tradeID,
		"buy_order_id", trade.BuyOrderID,
		"sell_order_id", trade.SellOrderID,
		"amount", trade.Amount,
		"price", trade.Price,
	)

	s.notifySettlement(ctx, tradeID, trade)
	return tradeID, nil
}

// runTransaction performs the ledger half of a settlement on a single
// transaction. Rollback and release run even when ctx is already cancelled.
func (s *Service) runTransaction(ctx context.Context, trade *match.Trade, tradeID string) (err error) {
	tx, err := s.ledger.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin settlement transaction: %w", err)
	}

	cleanupCtx := context.WithoutCancel(ctx)
	committed := false

	defer func() {
		if rerr := tx.Release(cleanupCtx); rerr != nil && err == nil {
			err = fmt.Errorf("release ledger connection: %w", rerr)
		}
	}()
	defer func() {
		if committed {
			return
		}
		if rberr := tx.Rollback(cleanupCtx); rberr != nil {
			logger.Error("settlement rollback failed", "trade_id", tradeID, "error", rberr)
		}
	}()

	if err = s.checkAndReserveBalances(ctx, tx, trade); err != nil {
		return err
	}

	if err = tx.RecordTrade(ctx, trade, tradeID); err != nil {
		return fmt.Errorf("record trade: %w", err)
	}

	if err = s.applyBalances(ctx, tx, trade); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit settlement: %w", err)
	}
	committed = true
	return nil
}

// checkAndReserveBalances fetches both parties' funding balances
// concurrently, fails fast when either cannot cover the trade, then
// reserves both amounts concurrently. Both legs of each step complete
// before the next step begins.
func (s *Service) checkAndReserveBalances(ctx context.Context, tx ledger.Tx, trade *match.Trade) error {
	var sellerBalance, buyerBalance decimal.Decimal

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := tx.GetBalance(gctx, trade.SellerID, trade.Quote)
		sellerBalance = b
		return err
	})
	g.Go(func() error {
		b, err := tx.GetBalance(gctx, trade.BuyerID, trade.Base)
		buyerBalance = b
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fetch balances: %w", err)
	}

	if sellerBalance.LessThan(trade.Amount) {
		return fmt.Errorf("insufficient seller balance (account %s, %s): %w",
			trade.SellerID, trade.Quote, ErrInsufficientBalance)
	}
	if buyerBalance.LessThan(trade.Amount) {
		return fmt.Errorf("insufficient buyer balance (account %s, %s): %w",
			trade.BuyerID, trade.Base, ErrInsufficientBalance)
	}

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		return tx.Reserve(gctx, trade.SellerID, trade.Quote, trade.Amount)
	})
	g.Go(func() error {
		return tx.Reserve(gctx, trade.BuyerID, trade.Base, trade.Amount)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("reserve balances: %w", err)
	}
	return nil
}

// applyBalances moves both legs: the seller gives quote currency and
// receives base, the buyer gives base and receives quote. All four
// mutations are issued concurrently and fenced before commit.
func (s *Service) applyBalances(ctx context.Context, tx ledger.Tx, trade *match.Trade) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tx.ApplyBalanceChange(gctx, trade.SellerID, trade.Quote, trade.Amount, ledger.Decrease)
	})
	g.Go(func() error {
		return tx.ApplyBalanceChange(gctx, trade.BuyerID, trade.Base, trade.Amount, ledger.Decrease)
	})
	g.Go(func() error {
		return tx.ApplyBalanceChange(gctx, trade.SellerID, trade.Base, trade.Amount, ledger.Increase)
	})
	g.Go(func() error {
		return tx.ApplyBalanceChange(gctx, trade.BuyerID, trade.Quote, trade.Amount, ledger.Increase)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("apply balance changes: %w", err)
	}
	return nil
}

// CancelTrade records a cancellation outcome for a trade that will not be
// settled: it publishes a CANCELLED event keyed by the original buy order
// id under a short ledger transaction. The connection is always released.
func (s *Service) CancelTrade(ctx context.Context, trade *match.Trade) (err error) {
	tx, err := s.ledger.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cancel trade: %w", err)
	}

	cleanupCtx := context.WithoutCancel(ctx)
	defer func() {
		if rerr := tx.Release(cleanupCtx); rerr != nil && err == nil {
			err = fmt.Errorf("release ledger connection: %w", rerr)
		}
	}()
	defer func() {
		if rberr := tx.Rollback(cleanupCtx); rberr != nil {
			logger.Error("cancel rollback failed", "buy_order_id", trade.BuyOrderID, "error", rberr)
		}
	}()

	if perr := s.publishOutcome(ctx, trade.BuyOrderID, trade, stream.StatusCancelled, nil); perr != nil {
		return fmt.Errorf("cancel trade: %w", perr)
	}

	logger.Info("trade cancelled", "buy_order_id", trade.BuyOrderID)
	return nil
}

func (s *Service) publishOutcome(ctx context.Context, tradeID string, trade *match.Trade, status stream.Status, cause error) error {
	event := &stream.TradeEvent{
		TradeID:   tradeID,
		Status:    status,
		Trade:     trade,
		Timestamp: time.Now().UnixNano(),
	}
	if cause != nil {
		event.ErrorMessage = cause.Error()
	}

	if err := s.events.PublishTradeEvent(ctx, event); err != nil {
		return fmt.Errorf("publish %s event: %w", status, err)
	}
	return nil
}

// notifySettlement is the best-effort post-commit hook; a failure here is
// logged and does not roll back the already-committed trade.
func (s *Service) notifySettlement(ctx context.Context, tradeID string, trade *match.Trade) {
	logger.Info("initiating settlement notification", "trade_id", tradeID)

	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifySettled(ctx, tradeID, trade); err != nil {
		logger.Warn("settlement notification failed", "trade_id", tradeID, "error", err)
	}
}
