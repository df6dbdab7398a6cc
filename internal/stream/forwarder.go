package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/currexhq/exchange-core/internal/match"
)

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger allows setting a custom logger
func SetLogger(l *slog.Logger) {
	logger = l
}

// TradeForwarder bridges the matching engine to the command channel: every
// trade the engine emits becomes an EXECUTE_TRADE command keyed by the buy
// order id. It implements match.TradeHandler.
//
// Publish failures are logged, not propagated: the book has already moved on
// and an external orchestrator owns any replay.
type TradeForwarder struct {
	producer *Producer
	timeout  time.Duration
}

// NewTradeForwarder creates a forwarder writing to the given producer.
func NewTradeForwarder(producer *Producer) *TradeForwarder {
	return &TradeForwarder{
		producer: producer,
		timeout:  5 * time.Second,
	}
}

// HandleTrades publishes one EXECUTE_TRADE command per trade.
func (f *TradeForwarder) HandleTrades(trades ...*match.Trade) {
	for _, trade := range trades {
		cmd := &TradeCommand{
			Type:  CommandExecuteTrade,
			Trade: trade,
		}
		value, err := json.Marshal(cmd)
		if err != nil {
			logger.Error("failed to marshal trade command", "trade_id", trade.ID, "error", err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		if err := f.producer.Send(ctx, []byte(trade.BuyOrderID), value); err != nil {
			logger.Error("failed to forward trade command", "trade_id", trade.ID, "error", err)
		}
		cancel()
	}
}
