package match

import "sync"

// MemoryTradeHandler stores trades in memory, useful for testing.
type MemoryTradeHandler struct {
	mu     sync.RWMutex
	trades []*Trade
}

// NewMemoryTradeHandler creates a new MemoryTradeHandler.
func NewMemoryTradeHandler() *MemoryTradeHandler {
	return &MemoryTradeHandler{
		trades: make([]*Trade, 0),
	}
}

// HandleTrades appends trades to the in-memory slice.
func (m *MemoryTradeHandler) HandleTrades(trades ...*Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, trades...)
}

// Count returns the number of trades stored.
func (m *MemoryTradeHandler) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trades)
}

// Get returns the trade at the specified index.
func (m *MemoryTradeHandler) Get(index int) *Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.trades[index]
}

// Trades returns a copy of all trades stored.
func (m *MemoryTradeHandler) Trades() []*Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trades := make([]*Trade, len(m.trades))
	copy(trades, m.trades)
	return trades
}

// DiscardTradeHandler drops all trades, useful for benchmarking.
type DiscardTradeHandler struct {
}

// NewDiscardTradeHandler creates a new DiscardTradeHandler.
func NewDiscardTradeHandler() *DiscardTradeHandler {
	return &DiscardTradeHandler{}
}

// HandleTrades does nothing.
func (p *DiscardTradeHandler) HandleTrades(trades ...*Trade) {

}
