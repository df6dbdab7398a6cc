package match

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/shopspring/decimal"
)

// TradeHandler receives the trades produced by a submission, synchronously,
// while the engine goroutine is still inside the submit call. Slow handlers
// stall matching; hand off to a queue if latency matters.
type TradeHandler interface {
	HandleTrades(trades ...*Trade)
}

type commandType int

const (
	cmdSubmit commandType = iota
	cmdCancel
	cmdSummary
	cmdFull
	cmdRecent
	cmdStats
)

type command struct {
	typ     commandType
	payload any
	resp    chan any
}

type depthRequest struct {
	depth int
}

type submitResult struct {
	order *Order
}

const defaultRecentTradeCap = 256

// Engine is the matching engine for a single currency pair.
//
// It runs as a single-goroutine actor: all book mutations and reads go
// through one command channel, so the book is never touched by two
// concurrent submissions and every view is a consistent snapshot. The book
// is fully up to date the moment SubmitOrder returns.
type Engine struct {
	base         string
	quote        string
	isShutdown   atomic.Bool
	bidQueue     *queue
	askQueue     *queue
	recentTrades []*Trade
	recentCap    int
	handler      TradeHandler
	cmdChan      chan command
	done         chan struct{}
	shutdownDone chan struct{}
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRecentTradeCap bounds the in-memory recent trade ring.
func WithRecentTradeCap(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.recentCap = n
		}
	}
}

// NewEngine creates a matching engine for the base/quote pair. The handler
// may be nil, in which case trades are only retained in the recent ring.
func NewEngine(base, quote string, handler TradeHandler, opts ...EngineOption) *Engine {
	e := &Engine{
		base:         base,
		quote:        quote,
		bidQueue:     NewBuyerQueue(),
		askQueue:     NewSellerQueue(),
		recentCap:    defaultRecentTradeCap,
		handler:      handler,
		cmdChan:      make(chan command, 4096),
		done:         make(chan struct{}),
		shutdownDone: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.recentTrades = make([]*Trade, 0, e.recentCap)
	return e
}

// Pair returns the "BASE/QUOTE" identifier of the engine.
func (e *Engine) Pair() string {
	return e.base + "/" + e.quote
}

// SubmitOrder validates and submits an order, blocking until the matching
// pass completes. The returned order is a detached copy carrying the
// remaining amount and final status. Validation failures never reach the
// book and return ErrInvalidOrder.
func (e *Engine) SubmitOrder(ctx context.Context, order *Order) (*Order, error) {
	if e.isShutdown.Load() {
		return nil, ErrShutdown
	}
	if order == nil {
		return nil, ErrInvalidParam
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}
	if order.Base != e.base || order.Quote != e.quote {
		return nil, ErrNotFound
	}

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	order.Timestamp = time.Now().UnixNano()
	order.Status = StatusReceived

	respChan := make(chan any, 1)
	select {
	case e.cmdChan <- command{typ: cmdSubmit, payload: order, resp: respChan}:
	case <-ctx.Done():
		return nil, ErrTimeout
	case <-e.done:
		return nil, ErrShutdown
	}

	select {
	case res := <-respChan:
		result, _ := res.(*submitResult)
		if result == nil {
			return nil, ErrInternal
		}
		return result.order, nil
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}

// CancelOrder removes a resting order by id. Other orders keep their
// positions. Returns ErrNotFound if the order is not resting in the book.
func (e *Engine) CancelOrder(ctx context.Context, id string) error {
	if e.isShutdown.Load() {
		return ErrShutdown
	}
	if id == "" {
		return ErrInvalidParam
	}

	respChan := make(chan any, 1)
	select {
	case e.cmdChan <- command{typ: cmdCancel, payload: id, resp: respChan}:
	case <-ctx.Done():
		return ErrTimeout
	case <-e.done:
		return ErrShutdown
	}

	select {
	case res := <-respChan:
		if found, _ := res.(bool); !found {
			return ErrNotFound
		}
		return nil
	case <-ctx.Done():
		return ErrTimeout
	}
}

// DepthSummary returns the aggregated book view truncated to depth price
// levels per side. depth <= 0 returns every level.
func (e *Engine) DepthSummary(depth int) (*BookSummary, error) {
	res, err := e.query(cmdSummary, depthRequest{depth: depth})
	if err != nil {
		return nil, err
	}
	summary, _ := res.(*BookSummary)
	return summary, nil
}

// DepthFull returns the full book view (individual resting amounts per
// level) truncated to depth price levels per side.
func (e *Engine) DepthFull(depth int) (*BookFull, error) {
	res, err := e.query(cmdFull, depthRequest{depth: depth})
	if err != nil {
		return nil, err
	}
	full, _ := res.(*BookFull)
	return full, nil
}

// RecentTrades returns up to limit of the most recent trades, newest first.
func (e *Engine) RecentTrades(limit int) ([]*Trade, error) {
	res, err := e.query(cmdRecent, limit)
	if err != nil {
		return nil, err
	}
	trades, _ := res.([]*Trade)
	return trades, nil
}

// Stats returns usage statistics for the order book.
func (e *Engine) Stats() (*BookStats, error) {
	res, err := e.query(cmdStats, nil)
	if err != nil {
		return nil, err
	}
	stats, _ := res.(*BookStats)
	return stats, nil
}

func (e *Engine) query(typ commandType, payload any) (any, error) {
	respChan := make(chan any, 1)

	select {
	case e.cmdChan <- command{typ: typ, payload: payload, resp: respChan}:
	case <-time.After(time.Second):
		return nil, ErrTimeout
	}

	select {
	case res := <-respChan:
		return res, nil
	case <-time.After(time.Second):
		return nil, ErrTimeout
	}
}

// Start runs the engine loop. It returns nil once Shutdown drains the
// pending commands.
func (e *Engine) Start() error {
	for {
		select {
		case <-e.done:
			return e.drain()
		case cmd := <-e.cmdChan:
			e.handleCommand(cmd)
		}
	}
}

// Shutdown stops the engine and waits until pending commands are drained or
// the context expires.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.isShutdown.CompareAndSwap(false, true) {
		close(e.done)
	}

	select {
	case <-e.shutdownDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) drain() error {
	defer close(e.shutdownDone)

	for {
		select {
		case cmd := <-e.cmdChan:
			e.handleCommand(cmd)
		default:
			return nil
		}
	}
}

func (e *Engine) handleCommand(cmd command) {
	switch cmd.typ {
	case cmdSubmit:
		order, ok := cmd.payload.(*Order)
		if !ok {
			break
		}
		trades := e.processOrder(order)
		e.keepRecent(trades)
		if e.handler != nil && len(trades) > 0 {
			e.handler.HandleTrades(trades...)
		}
		e.respond(cmd, &submitResult{order: order.clone()})
	case cmdCancel:
		id, _ := cmd.payload.(string)
		e.respond(cmd, e.cancelOrder(id))
	case cmdSummary:
		req, _ := cmd.payload.(depthRequest)
		e.respond(cmd, depthSummary(e.bidQueue, e.askQueue, req.depth, e.quote))
	case cmdFull:
		req, _ := cmd.payload.(depthRequest)
		e.respond(cmd, depthFull(e.bidQueue, e.askQueue, req.depth, e.quote))
	case cmdRecent:
		limit, _ := cmd.payload.(int)
		e.respond(cmd, e.recent(limit))
	case cmdStats:
		e.respond(cmd, &BookStats{
			AskDepthCount: e.askQueue.depthCount(),
			AskOrderCount: e.askQueue.orderCount(),
			BidDepthCount: e.bidQueue.depthCount(),
			BidOrderCount: e.bidQueue.orderCount(),
		})
	}
}

func (e *Engine) respond(cmd command, payload any) {
	if cmd.resp == nil {
		return
	}
	select {
	case cmd.resp <- payload:
	default:
	}
}

// processOrder runs the continuous double auction pass for one incoming
// order: match while prices cross, then rest any remainder.
func (e *Engine) processOrder(order *Order) []*Trade {
	var myQueue, targetQueue *queue
	if order.Side == Buy {
		myQueue = e.bidQueue
		targetQueue = e.askQueue
	} else {
		myQueue = e.askQueue
		targetQueue = e.bidQueue
	}

	order.Status = StatusMatching
	trades := make([]*Trade, 0, 4)

	for order.Amount.IsPositive() {
		tOrd := targetQueue.peekHeadOrder()
		if tOrd == nil {
			break
		}

		// The queue is price ordered, so the first non-crossing head ends
		// the pass.
		if order.Side == Buy && order.Price.LessThan(tOrd.Price) ||
			order.Side == Sell && order.Price.GreaterThan(tOrd.Price) {
			break
		}

		tOrd = targetQueue.popHeadOrder()
		matchAmount := decimal.Min(order.Amount, tOrd.Amount)

		trade := &Trade{
			ID:        xid.New().String(),
			Price:     tOrd.Price, // resting side sets the execution price
			Amount:    matchAmount,
			Base:      e.base,
			Quote:     e.quote,
			Timestamp: time.Now().UnixNano(),
		}
		if order.Side == Buy {
			trade.BuyOrderID = order.ID
			trade.BuyerID = order.UserID
			trade.SellOrderID = tOrd.ID
			trade.SellerID = tOrd.UserID
		} else {
			trade.SellOrderID = order.ID
			trade.SellerID = order.UserID
			trade.BuyOrderID = tOrd.ID
			trade.BuyerID = tOrd.UserID
		}
		trades = append(trades, trade)

		order.Amount = order.Amount.Sub(matchAmount)
		tOrd.Amount = tOrd.Amount.Sub(matchAmount)

		if tOrd.Amount.IsPositive() {
			// Front insert keeps the maker's original time priority.
			tOrd.Status = StatusPartiallyFilled
			targetQueue.insertOrder(tOrd, true)
		} else {
			tOrd.Status = StatusFilled
		}
	}

	if order.Amount.IsPositive() {
		if len(trades) > 0 {
			order.Status = StatusPartiallyFilled
		} else {
			order.Status = StatusResting
		}
		myQueue.insertOrder(order, false)
	} else {
		order.Status = StatusFilled
	}

	return trades
}

func (e *Engine) cancelOrder(id string) bool {
	if order := e.bidQueue.order(id); order != nil {
		e.bidQueue.removeOrder(id)
		order.Status = StatusCancelled
		return true
	}
	if order := e.askQueue.order(id); order != nil {
		e.askQueue.removeOrder(id)
		order.Status = StatusCancelled
		return true
	}
	logger.Debug("cancel ignored, order not resting", "order_id", id, "pair", e.Pair())
	return false
}

func (e *Engine) keepRecent(trades []*Trade) {
	for _, trade := range trades {
		e.recentTrades = append(e.recentTrades, trade)
	}
	if overflow := len(e.recentTrades) - e.recentCap; overflow > 0 {
		e.recentTrades = append(e.recentTrades[:0], e.recentTrades[overflow:]...)
	}
}

func (e *Engine) recent(limit int) []*Trade {
	n := len(e.recentTrades)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]*Trade, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, e.recentTrades[i])
	}
	return out
}
