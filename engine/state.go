package engine

import (
	"sync"
	"time"

	"gridbot/exchange"
	"gridbot/grid"
)

// symbolState holds everything the engine tracks for one symbol. The mutex
// serializes reconciliation: at most one cycle runs per symbol at a time.
type symbolState struct {
	mu sync.Mutex

	cfg        grid.Config
	instrument grid.Instrument
	quoteAsset string

	// orders is the local mirror of exchange state, keyed by order ID.
	// Orders placed during a transport error have no ID yet and are keyed
	// by client ID until a resync resolves them.
	orders   map[string]*grid.TrackedOrder
	position *exchange.Position
	cooldown *grid.Cooldown

	lastPrice     float64
	lastCheck     time.Time
	lastResync    time.Time
	fundingRate   float64
	boundsSet     bool
	instrumentOK  bool
	balanceWarned bool

	paused       bool
	failStreak   int
	backoffUntil time.Time
	pendingErrs  []string
}

func newSymbolState(cfg grid.Config) *symbolState {
	return &symbolState{
		cfg:       cfg,
		orders:    make(map[string]*grid.TrackedOrder),
		boundsSet: cfg.LowerPrice > 0 && cfg.UpperPrice > 0,
	}
}

// trackedOrders returns the current order mirror as a slice for planning.
func (s *symbolState) trackedOrders() []grid.TrackedOrder {
	out := make([]grid.TrackedOrder, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	return out
}

func (s *symbolState) unknownCount() int {
	n := 0
	for _, o := range s.orders {
		if o.State == grid.StateUnknown {
			n++
		}
	}
	return n
}

// SymbolStatus is the externally visible snapshot of one symbol, served by
// the control API.
type SymbolStatus struct {
	Symbol        string    `json:"symbol"`
	Mode          grid.Mode `json:"mode"`
	Paused        bool      `json:"paused"`
	LastPrice     float64   `json:"last_price"`
	PositionQty   float64   `json:"position_qty"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	OpenOrders    int       `json:"open_orders"`
	UnknownOrders int       `json:"unknown_orders"`
	FundingRate   float64   `json:"funding_rate"`
	CooldownUntil time.Time `json:"cooldown_until,omitempty"`
	FailStreak    int       `json:"fail_streak"`
}

func (s *symbolState) status() SymbolStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SymbolStatus{
		Symbol:        s.cfg.Symbol,
		Mode:          s.cfg.Mode,
		Paused:        s.paused,
		LastPrice:     s.lastPrice,
		UnknownOrders: s.unknownCount(),
		FundingRate:   s.fundingRate,
		FailStreak:    s.failStreak,
	}
	if s.position != nil {
		st.PositionQty = s.position.Quantity
		st.UnrealizedPnL = s.position.UnrealizedPnL
	}
	for _, o := range s.orders {
		if o.State == grid.StateOpen || o.State == grid.StatePending {
			st.OpenOrders++
		}
	}
	if s.cooldown.Active(time.Now()) {
		st.CooldownUntil = s.cooldown.Until
	}
	return st
}
