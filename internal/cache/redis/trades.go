// Package redis implements the settlement notifier and a recent-trade
// cache on go-redis/v9.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/currexhq/exchange-core/internal/match"
)

const (
	recentTradesKey   = "trades:recent"
	tradeKeyPrefix    = "trade:"
	defaultRecentSize = 200
)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
}

// TradeCache records settled trades in Redis: a hash per trade id plus a
// capped newest-first list for recent-trade reads. It implements
// settle.Notifier.
type TradeCache struct {
	rdb        *redis.Client
	recentSize int64
}

// New creates a TradeCache, pinging Redis to verify connectivity.
func New(ctx context.Context, cfg ClientConfig) (*TradeCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &TradeCache{rdb: rdb, recentSize: defaultRecentSize}, nil
}

// Close closes the underlying client.
func (c *TradeCache) Close() error {
	return c.rdb.Close()
}

// NotifySettled records the settlement status for the trade id and pushes
// the trade onto the recent list.
func (c *TradeCache) NotifySettled(ctx context.Context, tradeID string, trade *match.Trade) error {
	payload, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("redis: marshal trade %s: %w", tradeID, err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, tradeKeyPrefix+tradeID,
		"status", "EXECUTED",
		"settlement_status", "PENDING",
		"payload", payload,
	)
	pipe.LPush(ctx, recentTradesKey, payload)
	pipe.LTrim(ctx, recentTradesKey, 0, c.recentSize-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: record settlement %s: %w", tradeID, err)
	}
	return nil
}

// RecentTrades returns up to limit of the most recently settled trades,
// newest first.
func (c *TradeCache) RecentTrades(ctx context.Context, limit int) ([]*match.Trade, error) {
	if limit <= 0 {
		limit = int(c.recentSize)
	}

	raw, err := c.rdb.LRange(ctx, recentTradesKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: recent trades: %w", err)
	}

	trades := make([]*match.Trade, 0, len(raw))
	for _, item := range raw {
		var trade match.Trade
		if err := json.Unmarshal([]byte(item), &trade); err != nil {
			return nil, fmt.Errorf("redis: decode recent trade: %w", err)
		}
		trades = append(trades, &trade)
	}
	return trades, nil
}

// SettlementStatus returns the cached status fields for a trade id.
func (c *TradeCache) SettlementStatus(ctx context.Context, tradeID string) (map[string]string, error) {
	fields, err := c.rdb.HGetAll(ctx, tradeKeyPrefix+tradeID).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: settlement status %s: %w", tradeID, err)
	}
	return fields, nil
}
