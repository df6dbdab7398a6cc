package match

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Registry manages the matching engines for multiple currency pairs. Each
// pair gets its own serialized engine; the registry only routes.
type Registry struct {
	isShutdown atomic.Bool
	engines    sync.Map
	handler    TradeHandler
	opts       []EngineOption
}

// NewRegistry creates a registry; every engine it creates publishes trades
// to the given handler.
func NewRegistry(handler TradeHandler, opts ...EngineOption) *Registry {
	return &Registry{
		handler: handler,
		opts:    opts,
	}
}

// CreatePair creates and starts an engine for the pair. Creating an existing
// pair returns the running engine unchanged.
func (r *Registry) CreatePair(base, quote string) (*Engine, error) {
	if r.isShutdown.Load() {
		return nil, ErrShutdown
	}
	if !currencyRe.MatchString(base) || !currencyRe.MatchString(quote) {
		return nil, ErrInvalidParam
	}

	newEngine := NewEngine(base, quote, r.handler, r.opts...)
	actual, loaded := r.engines.LoadOrStore(newEngine.Pair(), newEngine)
	if loaded {
		logger.Warn("pair already exists", "pair", newEngine.Pair())
		return actual.(*Engine), nil
	}

	go func() {
		_ = newEngine.Start()
	}()
	return newEngine, nil
}

// Engine retrieves the engine for a pair, or nil if the pair does not exist.
func (r *Registry) Engine(base, quote string) *Engine {
	e, found := r.engines.Load(base + "/" + quote)
	if !found {
		return nil
	}

	engine, _ := e.(*Engine)
	return engine
}

// SubmitOrder routes the order to its pair's engine.
// Returns ErrNotFound if the pair is not served.
func (r *Registry) SubmitOrder(ctx context.Context, order *Order) (*Order, error) {
	if r.isShutdown.Load() {
		return nil, ErrShutdown
	}
	if order == nil {
		return nil, ErrInvalidParam
	}

	engine := r.Engine(order.Base, order.Quote)
	if engine == nil {
		return nil, ErrNotFound
	}
	return engine.SubmitOrder(ctx, order)
}

// CancelOrder routes a cancellation to the pair's engine.
func (r *Registry) CancelOrder(ctx context.Context, base, quote, orderID string) error {
	engine := r.Engine(base, quote)
	if engine == nil {
		return ErrNotFound
	}
	return engine.CancelOrder(ctx, orderID)
}

// Shutdown gracefully shuts down every engine in parallel and waits for all
// of them or the context. Returns the aggregated errors, if any.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.isShutdown.Store(true)

	var wg sync.WaitGroup
	var errs []error
	var errMu sync.Mutex

	r.engines.Range(func(_, value any) bool {
		wg.Add(1)
		go func(engine *Engine) {
			defer wg.Done()
			if err := engine.Shutdown(ctx); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(value.(*Engine))
		return true
	})

	wg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
