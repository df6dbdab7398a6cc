// Package stream carries the trading core's message traffic: trade outcome
// events published downstream and trade commands consumed by settlement.
package stream

import (
	"context"

	"github.com/currexhq/exchange-core/internal/match"
)

// TradeTopic is the topic trade outcome events are published to.
const TradeTopic = "trades"

// CommandTopic is the topic trade commands are consumed from.
const CommandTopic = "trade-commands"

// Status is the outcome of a settlement attempt.
type Status string

const (
	StatusExecuted  Status = "EXECUTED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// TradeEvent is the JSON envelope published per settlement outcome, keyed by
// trade id. Delivery is at-least-once; consumers must be idempotent on
// TradeID.
type TradeEvent struct {
	TradeID      string       `json:"trade_id"`
	Status       Status       `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Trade        *match.Trade `json:"trade"`
	Timestamp    int64        `json:"timestamp"`
}

// CommandType identifies an inbound trade command.
type CommandType string

const (
	CommandExecuteTrade CommandType = "EXECUTE_TRADE"
	CommandCancelTrade  CommandType = "CANCEL_TRADE"
)

// TradeCommand is the inbound command envelope.
type TradeCommand struct {
	Type  CommandType  `json:"type"`
	Trade *match.Trade `json:"trade"`
}

// EventPublisher publishes settlement outcome events.
type EventPublisher interface {
	PublishTradeEvent(ctx context.Context, event *TradeEvent) error
}

// MessageSource yields raw key/value messages for the command consumer loop.
type MessageSource interface {
	ReadMessage(ctx context.Context) (key, value []byte, err error)
}
