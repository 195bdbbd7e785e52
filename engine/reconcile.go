package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"gridbot/exchange"
	"gridbot/grid"
	"gridbot/logger"
	"gridbot/metrics"
	"gridbot/notify"
)

// reconcile runs one cycle for a symbol: refresh exchange state, plan, and
// execute. The caller holds s.mu. full selects a deep resync that also
// resolves unknown orders individually.
func (e *Engine) reconcile(s *symbolState, price float64, full bool) {
	ctx := e.ctx
	sym := s.cfg.Symbol
	now := time.Now()

	if !e.ensureInstrument(ctx, s) {
		return
	}
	if !s.boundsSet {
		s.cfg.LowerPrice = grid.RoundPrice(price*0.9, s.instrument.PriceDecimals)
		s.cfg.UpperPrice = grid.RoundPrice(price*1.1, s.instrument.PriceDecimals)
		s.boundsSet = true
		logger.Infof("[Engine] %s grid bounds defaulted to [%.6f, %.6f]",
			sym, s.cfg.LowerPrice, s.cfg.UpperPrice)
	}

	if full {
		e.resolveUnknowns(ctx, s)
		if fr, err := e.gateway.GetFundingRate(ctx, sym); err == nil {
			s.fundingRate = fr.Rate
		} else {
			logger.Debugf("[Engine] %s funding rate query failed: %v", sym, err)
		}
		s.lastResync = now
	}
	if !e.refresh(ctx, s, full) {
		metrics.ReconcileCycles.WithLabelValues(sym, "failed").Inc()
		return
	}

	if s.cooldown != nil && !s.cooldown.Active(now) {
		logger.Infof("[Engine] %s cooldown expired", sym)
		s.cooldown = nil
	}

	in := grid.Input{
		Now:        now,
		Price:      price,
		Config:     s.cfg,
		Instrument: s.instrument,
		Orders:     s.trackedOrders(),
		Position:   s.position,
		Cooldown:   s.cooldown,
	}

	if s.cfg.Mode == grid.ModePosition && s.position.Flat() {
		available, err := e.gateway.GetBalance(ctx, s.quoteAsset)
		if err != nil {
			if exchange.IsTransport(err) {
				e.failure(s, err)
				metrics.ReconcileCycles.WithLabelValues(sym, "failed").Inc()
				return
			}
			logger.Warnf("[Engine] %s balance query rejected: %v", sym, err)
		} else {
			in.AvailableBalance = available
			metrics.Equity.Set(available)
			if available <= 0 {
				if !s.balanceWarned {
					s.balanceWarned = true
					e.notifier.NotifyError(sym, fmt.Sprintf("no available %s balance, entry suppressed", s.quoteAsset))
					logger.Warnf("[Engine] %s no available %s balance, entry suppressed", sym, s.quoteAsset)
				}
			} else {
				s.balanceWarned = false
			}
		}
	}

	var actions []grid.Action
	if s.cfg.Mode == grid.ModePosition {
		actions = grid.PlanPosition(in)
	} else {
		actions = grid.Plan(in)
	}

	e.execute(ctx, s, actions)

	e.recovered(s)
	metrics.ReconcileCycles.WithLabelValues(sym, "ok").Inc()
	metrics.UnknownOrders.WithLabelValues(sym).Set(float64(s.unknownCount()))
	if s.position != nil {
		metrics.UnrealizedPnL.WithLabelValues(sym).Set(s.position.UnrealizedPnL)
	} else {
		metrics.UnrealizedPnL.WithLabelValues(sym).Set(0)
	}
}

// ensureInstrument fetches precision and sizing rules once per symbol.
func (e *Engine) ensureInstrument(ctx context.Context, s *symbolState) bool {
	if s.instrumentOK {
		return true
	}
	m, err := e.gateway.GetMarket(ctx, s.cfg.Symbol)
	if err != nil {
		// A definitive rejection means the symbol is misconfigured; park it
		// instead of hammering the exchange. Resume clears the pause once the
		// configuration is corrected.
		if be, ok := exchange.AsBusiness(err); ok {
			s.paused = true
			e.notifier.NotifyError(s.cfg.Symbol, fmt.Sprintf("symbol disabled: %v", be))
			logger.Errorf("[Engine] %s disabled: %v", s.cfg.Symbol, be)
			return false
		}
		e.failure(s, err)
		return false
	}
	s.instrument = grid.Instrument{
		PriceDecimals:    m.PriceDecimals,
		QuantityDecimals: m.QuantityDecimals,
		MinQuantity:      m.MinQuantity,
	}
	s.quoteAsset = m.QuoteAsset
	s.instrumentOK = true
	logger.Infof("[Engine] %s instrument: price %dd, qty %dd, min %.6f",
		s.cfg.Symbol, m.PriceDecimals, m.QuantityDecimals, m.MinQuantity)
	return true
}

// resolveUnknowns queries each unknown order individually. Confirmed-gone
// orders leave the mirror; orders that still cannot be confirmed stay
// unknown and keep blocking their level.
func (e *Engine) resolveUnknowns(ctx context.Context, s *symbolState) {
	for key, o := range s.orders {
		if o.State != grid.StateUnknown || o.OrderID == "" {
			continue
		}
		got, err := e.gateway.GetOrder(ctx, o.Symbol, o.OrderID)
		if err != nil {
			if be, ok := exchange.AsBusiness(err); ok && be.OrderGone() {
				delete(s.orders, key)
			}
			continue
		}
		if got.Closed() {
			if got.Filled() {
				logger.Infof("[Engine] %s order %s filled while unconfirmed: %s %.6f @ %.6f",
					o.Symbol, o.OrderID, o.Side, o.Quantity, o.Price)
			}
			delete(s.orders, key)
		} else {
			o.State = grid.StateOpen
		}
	}
}

// refresh replaces the local order mirror and position with exchange truth.
// A successful open-orders listing is authoritative for orders that have an
// ID: tracked orders absent from it are gone. Placeholders from failed
// placements have no ID yet; they are matched back by client ID, and ones
// that stay unmatched keep blocking their level until a full resync confirms
// the order never landed.
func (e *Engine) refresh(ctx context.Context, s *symbolState, full bool) bool {
	sym := s.cfg.Symbol

	pos, err := e.gateway.GetPosition(ctx, sym)
	if err != nil {
		e.failure(s, err)
		return false
	}
	open, err := e.gateway.GetOpenOrders(ctx, sym)
	if err != nil {
		e.failure(s, err)
		return false
	}
	s.position = pos

	byClient := make(map[string]*grid.TrackedOrder, len(s.orders))
	for _, o := range s.orders {
		if o.ClientID != "" {
			byClient[o.ClientID] = o
		}
	}

	fresh := make(map[string]*grid.TrackedOrder, len(open))
	matched := make(map[string]bool)
	for i := range open {
		w := &open[i]
		fresh[w.OrderID] = &grid.TrackedOrder{
			OrderID:  w.OrderID,
			ClientID: w.ClientID,
			Symbol:   w.Symbol,
			Side:     w.Side,
			Price:    w.Price,
			Quantity: w.Quantity,
			State:    grid.StateOpen,
		}
		if prev, ok := byClient[w.ClientID]; ok {
			matched[w.ClientID] = true
			if prev.State == grid.StateUnknown {
				logger.Infof("[Engine] %s unknown order resolved via listing: %s", sym, w.OrderID)
			}
		}
	}

	for key, o := range s.orders {
		if o.State != grid.StateUnknown || o.OrderID != "" || matched[o.ClientID] {
			continue
		}
		if full {
			logger.Infof("[Engine] %s placement %s confirmed absent, unblocking level %.6f",
				sym, o.ClientID, o.Price)
			continue
		}
		fresh[key] = o
	}

	dropped := len(s.orders) - len(fresh)
	if dropped > 0 {
		logger.Debugf("[Engine] %s refresh dropped %d stale orders", sym, dropped)
	}
	s.orders = fresh
	return true
}

// execute applies planner actions in order. The planner emits cancels before
// places, and execution preserves that ordering.
func (e *Engine) execute(ctx context.Context, s *symbolState, actions []grid.Action) {
	for _, a := range actions {
		switch a.Type {
		case grid.ActionCancel:
			e.execCancel(ctx, s, a)
		case grid.ActionPlace:
			e.execPlace(ctx, s, a)
		case grid.ActionCloseAll:
			e.execCloseAll(ctx, s, a)
		}
	}
}

func (e *Engine) execCancel(ctx context.Context, s *symbolState, a grid.Action) {
	sym := s.cfg.Symbol
	err := e.gateway.CancelOrder(ctx, sym, a.OrderID)
	if err == nil {
		delete(s.orders, a.OrderID)
		metrics.OrdersCancelled.WithLabelValues(sym).Inc()
		logger.Infof("[Engine] %s cancelled order %s @ %.6f", sym, a.OrderID, a.Price)
		return
	}
	if be, ok := exchange.AsBusiness(err); ok {
		if be.OrderGone() {
			delete(s.orders, a.OrderID)
			logger.Debugf("[Engine] %s cancel %s: already gone", sym, a.OrderID)
		} else {
			logger.Warnf("[Engine] %s cancel %s rejected: %v", sym, a.OrderID, be)
			metrics.Failures.WithLabelValues(sym, "business").Inc()
		}
		return
	}
	if o, ok := s.orders[a.OrderID]; ok {
		o.State = grid.StateUnknown
	}
	metrics.Failures.WithLabelValues(sym, "transport").Inc()
	logger.Warnf("[Engine] %s cancel %s failed, marked unknown: %v", sym, a.OrderID, err)
}

func (e *Engine) execPlace(ctx context.Context, s *symbolState, a grid.Action) {
	sym := s.cfg.Symbol
	clientID := uuid.NewString()
	req := exchange.OrderRequest{
		Symbol:     sym,
		Side:       a.Side,
		Type:       exchange.OrderTypeLimit,
		Quantity:   a.Quantity,
		Price:      a.Price,
		PostOnly:   a.PostOnly,
		ReduceOnly: a.ReduceOnly,
		ClientID:   clientID,
	}
	if a.Market {
		req.Type = exchange.OrderTypeMarket
		req.Price = 0
	}

	order, err := e.gateway.PlaceOrder(ctx, req)
	if err == nil {
		if !a.Market && order.OrderID != "" {
			s.orders[order.OrderID] = &grid.TrackedOrder{
				OrderID:  order.OrderID,
				ClientID: clientID,
				Symbol:   sym,
				Side:     a.Side,
				Price:    a.Price,
				Quantity: a.Quantity,
				State:    grid.StateOpen,
			}
		}
		metrics.OrdersPlaced.WithLabelValues(sym, string(a.Side)).Inc()
		// Market entries are rare enough to announce; grid quotes churn too
		// often for that.
		if a.Market && !a.ReduceOnly {
			e.notifier.NotifyTrade(notify.Event{
				Symbol:   sym,
				Action:   "place",
				Side:     string(a.Side),
				Price:    s.lastPrice,
				Quantity: a.Quantity,
			})
		}
		logger.Infof("[Engine] %s placed %s %.6f @ %.6f (%s)",
			sym, a.Side, a.Quantity, a.Price, order.OrderID)
		return
	}
	if be, ok := exchange.AsBusiness(err); ok {
		metrics.Failures.WithLabelValues(sym, "business").Inc()
		logger.Warnf("[Engine] %s place %s @ %.6f rejected: %v", sym, a.Side, a.Price, be)
		return
	}
	// Outcome unknown: the order may or may not be live. Track a placeholder
	// keyed by client ID so the level stays blocked until a resync decides.
	s.orders[clientID] = &grid.TrackedOrder{
		ClientID: clientID,
		Symbol:   sym,
		Side:     a.Side,
		Price:    a.Price,
		Quantity: a.Quantity,
		State:    grid.StateUnknown,
	}
	metrics.Failures.WithLabelValues(sym, "transport").Inc()
	logger.Warnf("[Engine] %s place %s @ %.6f failed, outcome unknown: %v", sym, a.Side, a.Price, err)
}

func (e *Engine) execCloseAll(ctx context.Context, s *symbolState, a grid.Action) {
	sym := s.cfg.Symbol

	if err := e.gateway.CancelAll(ctx, sym); err != nil {
		e.failure(s, err)
		logger.Errorf("[Engine] %s close-all cancel failed: %v", sym, err)
		return
	}
	s.orders = make(map[string]*grid.TrackedOrder)

	pos := s.position
	if !s.position.Flat() {
		if err := e.closePosition(ctx, sym, s.position); err != nil {
			e.failure(s, err)
			logger.Errorf("[Engine] %s close-all failed: %v", sym, err)
			return
		}
		s.position = nil
	}

	if a.Cooldown {
		until := time.Now().Add(time.Duration(s.cfg.CooldownMinutes) * time.Minute)
		s.cooldown = &grid.Cooldown{Symbol: sym, Until: until}
		logger.Warnf("[Engine] %s cooldown until %s", sym, until.Format(time.RFC3339))
	}

	metrics.CloseAlls.WithLabelValues(sym, a.Reason).Inc()
	ev := notify.Event{Symbol: sym, Action: "close_all", Reason: a.Reason}
	if !pos.Flat() {
		ev.Side = string(pos.Side().Opposite())
		ev.Price = s.lastPrice
		ev.Quantity = math.Abs(pos.Quantity)
		ev.PnL = pos.UnrealizedPnL
	}
	e.notifier.NotifyTrade(ev)
	logger.Warnf("[Engine] %s closed all (%s)", sym, a.Reason)
}

// closePosition flattens a position with a reduce-only market order.
func (e *Engine) closePosition(ctx context.Context, sym string, pos *exchange.Position) error {
	_, err := e.gateway.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:     sym,
		Side:       pos.Side().Opposite(),
		Type:       exchange.OrderTypeMarket,
		Quantity:   math.Abs(pos.Quantity),
		ReduceOnly: true,
		ClientID:   uuid.NewString(),
	})
	return err
}

// failure records a failed exchange interaction. Three consecutive failures
// widen the checking backoff and produce one aggregated notification.
func (e *Engine) failure(s *symbolState, err error) {
	sym := s.cfg.Symbol
	kind := "business"
	if exchange.IsTransport(err) {
		kind = "transport"
	}
	metrics.Failures.WithLabelValues(sym, kind).Inc()

	s.failStreak++
	s.pendingErrs = append(s.pendingErrs, err.Error())
	logger.Warnf("[Engine] %s cycle failed (%d/%d): %v", sym, s.failStreak, failStreakLimit, err)

	if s.failStreak == failStreakLimit {
		backoff := 2 * e.opts.CheckInterval
		if backoff > backoffCap {
			backoff = backoffCap
		}
		s.backoffUntil = time.Now().Add(backoff)
		msg := fmt.Sprintf("%d consecutive failures, backing off %s:\n%s",
			s.failStreak, backoff, strings.Join(s.pendingErrs, "\n"))
		e.notifier.NotifyError(sym, msg)
		s.pendingErrs = nil
		logger.Errorf("[Engine] %s backing off %s after %d failures", sym, backoff, failStreakLimit)
	}
}

// recovered clears the failure streak after a clean cycle.
func (e *Engine) recovered(s *symbolState) {
	if s.failStreak > 0 {
		logger.Infof("[Engine] %s recovered after %d failures", s.cfg.Symbol, s.failStreak)
	}
	s.failStreak = 0
	s.backoffUntil = time.Time{}
	s.pendingErrs = nil
}
