package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer writes keyed messages to a single Kafka topic.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a producer for the topic with full-acknowledgement
// writes.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Send writes one message.
func (p *Producer) Send(ctx context.Context, key []byte, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// KafkaEventPublisher publishes trade events to Kafka, keyed by trade id.
type KafkaEventPublisher struct {
	producer *Producer
}

// NewKafkaEventPublisher wraps a producer as an EventPublisher.
func NewKafkaEventPublisher(producer *Producer) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer}
}

// PublishTradeEvent marshals and sends the event.
func (p *KafkaEventPublisher) PublishTradeEvent(ctx context.Context, event *TradeEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("stream: marshal trade event %s: %w", event.TradeID, err)
	}
	if err := p.producer.Send(ctx, []byte(event.TradeID), value); err != nil {
		return fmt.Errorf("stream: publish trade event %s: %w", event.TradeID, err)
	}
	return nil
}

// Consumer reads messages from a Kafka topic as part of a consumer group.
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a group consumer for the topic.
func NewConsumer(brokers []string, groupID, topic string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
	}
}

// ReadMessage blocks for the next message and commits its offset.
func (c *Consumer) ReadMessage(ctx context.Context) ([]byte, []byte, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, nil, err
	}
	return msg.Key, msg.Value, nil
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
