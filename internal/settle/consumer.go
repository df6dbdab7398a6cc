package settle

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/currexhq/exchange-core/internal/stream"
)

// Consumer drives the settlement service from the inbound command channel.
// Per-message failures (malformed payloads, unknown command types, failed
// settlements) are logged and never stop the loop.
type Consumer struct {
	source stream.MessageSource
	svc    *Service
}

// NewConsumer creates a consumer reading commands from the source.
func NewConsumer(source stream.MessageSource, svc *Service) *Consumer {
	return &Consumer{
		source: source,
		svc:    svc,
	}
}

// Run consumes commands until the context is cancelled or the source is
// closed.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		key, value, err := c.source.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		c.handleMessage(ctx, key, value)
	}
}

func (c *Consumer) handleMessage(ctx context.Context, key, value []byte) {
	var cmd stream.TradeCommand
	if err := json.Unmarshal(value, &cmd); err != nil {
		logger.Error("failed to decode trade command", "key", string(key), "error", err)
		return
	}
	if cmd.Trade == nil {
		logger.Error("trade command without trade payload", "key", string(key), "type", cmd.Type)
		return
	}

	switch cmd.Type {
	case stream.CommandExecuteTrade:
		if _, err := c.svc.ExecuteTrade(ctx, cmd.Trade); err != nil {
			logger.Error("execute trade command failed", "key", string(key), "error", err)
		}
	case stream.CommandCancelTrade:
		if err := c.svc.CancelTrade(ctx, cmd.Trade); err != nil {
			logger.Error("cancel trade command failed", "key", string(key), "error", err)
		}
	default:
		logger.Warn("unknown trade command type, ignoring", "key", string(key), "type", cmd.Type)
	}
}
