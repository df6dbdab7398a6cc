package stream

import (
	"context"
	"sync"
)

// MemoryEventPublisher stores published events in memory, useful for
// testing. Err, when set, is returned by every publish (and the event is
// not stored).
type MemoryEventPublisher struct {
	mu     sync.RWMutex
	events []*TradeEvent

	Err error
}

// NewMemoryEventPublisher creates a new MemoryEventPublisher.
func NewMemoryEventPublisher() *MemoryEventPublisher {
	return &MemoryEventPublisher{
		events: make([]*TradeEvent, 0),
	}
}

// PublishTradeEvent appends the event to the in-memory slice.
func (m *MemoryEventPublisher) PublishTradeEvent(_ context.Context, event *TradeEvent) error {
	if m.Err != nil {
		return m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Count returns the number of events stored.
func (m *MemoryEventPublisher) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// Get returns the event at the specified index.
func (m *MemoryEventPublisher) Get(index int) *TradeEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.events[index]
}

// Last returns the most recently published event, or nil.
func (m *MemoryEventPublisher) Last() *TradeEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

type memoryMessage struct {
	key   []byte
	value []byte
}

// MemorySource is a channel-fed MessageSource for tests.
type MemorySource struct {
	ch chan memoryMessage
}

// NewMemorySource creates a source with the given buffer.
func NewMemorySource(buffer int) *MemorySource {
	return &MemorySource{
		ch: make(chan memoryMessage, buffer),
	}
}

// Push enqueues one message.
func (s *MemorySource) Push(key, value []byte) {
	s.ch <- memoryMessage{key: key, value: value}
}

// Close ends the stream; ReadMessage returns context.Canceled afterwards.
func (s *MemorySource) Close() {
	close(s.ch)
}

// ReadMessage blocks for the next message.
func (s *MemorySource) ReadMessage(ctx context.Context) ([]byte, []byte, error) {
	select {
	case msg, ok := <-s.ch:
		if !ok {
			return nil, nil, context.Canceled
		}
		return msg.key, msg.value, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}
