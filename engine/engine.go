package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gridbot/exchange"
	"gridbot/grid"
	"gridbot/logger"
	"gridbot/metrics"
	"gridbot/notify"
)

const (
	failStreakLimit = 3
	backoffCap      = 5 * time.Minute
)

// Gateway is the slice of the exchange client the engine needs. The concrete
// implementation lives in the exchange package; tests supply a fake.
type Gateway interface {
	GetMarket(ctx context.Context, symbol string) (*exchange.Market, error)
	GetPosition(ctx context.Context, symbol string) (*exchange.Position, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error)
	GetOrder(ctx context.Context, symbol, orderID string) (*exchange.Order, error)
	GetBalance(ctx context.Context, asset string) (float64, error)
	GetFundingRate(ctx context.Context, symbol string) (*exchange.FundingRate, error)
	PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	CancelAll(ctx context.Context, symbol string) error
}

// Options tune the reconciliation cadence.
type Options struct {
	CheckInterval  time.Duration
	ResyncInterval time.Duration
	// ShutdownMode is "flatten" or "pause".
	ShutdownMode string
}

func (o *Options) setDefaults() {
	if o.CheckInterval <= 0 {
		o.CheckInterval = 10 * time.Second
	}
	if o.ResyncInterval <= 0 {
		o.ResyncInterval = 30 * time.Second
	}
	if o.ShutdownMode == "" {
		o.ShutdownMode = "flatten"
	}
}

// Engine runs the reconciliation loop for every configured symbol. Price
// updates from the feed trigger rate-limited cycles; a background ticker
// forces periodic full resyncs regardless of feed activity.
type Engine struct {
	gateway  Gateway
	notifier notify.Notifier
	opts     Options

	states map[string]*symbolState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(gateway Gateway, notifier notify.Notifier, configs []grid.Config, opts Options) *Engine {
	opts.setDefaults()
	if notifier == nil {
		notifier = notify.Noop{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	states := make(map[string]*symbolState, len(configs))
	for _, cfg := range configs {
		states[cfg.Symbol] = newSymbolState(cfg)
	}
	return &Engine{
		gateway:  gateway,
		notifier: notifier,
		opts:     opts,
		states:   states,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Symbols returns the configured symbols in stable order.
func (e *Engine) Symbols() []string {
	out := make([]string, 0, len(e.states))
	for sym := range e.states {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Start launches the resync ticker. Price-driven cycles arrive via OnPrice.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.resyncLoop()
	e.notifier.NotifyStart(e.Symbols())
	logger.Infof("[Engine] started, %d symbols, check=%s resync=%s",
		len(e.states), e.opts.CheckInterval, e.opts.ResyncInterval)
}

// OnPrice is the feed listener. It rate-limits reconciliation to one cycle
// per check interval per symbol and drops updates while a cycle is running
// or while the symbol is backing off after repeated failures.
func (e *Engine) OnPrice(symbol string, price float64) {
	s, ok := e.states[symbol]
	if !ok {
		return
	}
	metrics.LastPrice.WithLabelValues(symbol).Set(price)

	if !s.mu.TryLock() {
		return
	}
	defer s.mu.Unlock()

	now := time.Now()
	s.lastPrice = price
	if s.paused {
		return
	}
	if now.Before(s.backoffUntil) {
		metrics.ReconcileCycles.WithLabelValues(symbol, "skipped").Inc()
		return
	}
	if now.Sub(s.lastCheck) < e.opts.CheckInterval {
		return
	}
	s.lastCheck = now

	full := now.Sub(s.lastResync) >= e.opts.ResyncInterval
	e.reconcile(s, price, full)
}

func (e *Engine) resyncLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.opts.ResyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			for _, sym := range e.Symbols() {
				s := e.states[sym]
				s.mu.Lock()
				if !s.paused && s.lastPrice > 0 && !time.Now().Before(s.backoffUntil) &&
					time.Since(s.lastResync) >= e.opts.ResyncInterval {
					e.reconcile(s, s.lastPrice, true)
				}
				s.mu.Unlock()
			}
		}
	}
}

// Pause suspends reconciliation for a symbol. Resting orders stay on the book.
func (e *Engine) Pause(symbol string) error {
	s, ok := e.states[symbol]
	if !ok {
		return fmt.Errorf("unknown symbol %s", symbol)
	}
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	logger.Infof("[Engine] %s paused", symbol)
	return nil
}

// Resume re-enables reconciliation for a symbol.
func (e *Engine) Resume(symbol string) error {
	s, ok := e.states[symbol]
	if !ok {
		return fmt.Errorf("unknown symbol %s", symbol)
	}
	s.mu.Lock()
	s.paused = false
	s.failStreak = 0
	s.backoffUntil = time.Time{}
	s.mu.Unlock()
	logger.Infof("[Engine] %s resumed", symbol)
	return nil
}

// Status reports a snapshot of every symbol.
func (e *Engine) Status() []SymbolStatus {
	out := make([]SymbolStatus, 0, len(e.states))
	for _, sym := range e.Symbols() {
		out = append(out, e.states[sym].status())
	}
	return out
}

// Stop shuts the engine down. In flatten mode it cancels all resting orders
// and closes every open position with reduce-only market orders; in pause
// mode it leaves exchange state untouched.
func (e *Engine) Stop(ctx context.Context) {
	e.cancel()
	e.wg.Wait()

	if e.opts.ShutdownMode == "flatten" {
		for _, sym := range e.Symbols() {
			s := e.states[sym]
			s.mu.Lock()
			e.flatten(ctx, s)
			s.mu.Unlock()
		}
	}
	e.notifier.NotifyStop(fmt.Sprintf("shutdown (%s)", e.opts.ShutdownMode))
	logger.Infof("[Engine] stopped (%s)", e.opts.ShutdownMode)
}

func (e *Engine) flatten(ctx context.Context, s *symbolState) {
	sym := s.cfg.Symbol
	if err := e.gateway.CancelAll(ctx, sym); err != nil {
		logger.Errorf("[Engine] %s shutdown cancel failed: %v", sym, err)
	}
	pos, err := e.gateway.GetPosition(ctx, sym)
	if err != nil {
		logger.Errorf("[Engine] %s shutdown position query failed: %v", sym, err)
		return
	}
	if pos.Flat() {
		return
	}
	if err := e.closePosition(ctx, sym, pos); err != nil {
		logger.Errorf("[Engine] %s shutdown close failed: %v", sym, err)
		return
	}
	metrics.CloseAlls.WithLabelValues(sym, "shutdown").Inc()
	logger.Infof("[Engine] %s flattened %.6f on shutdown", sym, pos.Quantity)
}
