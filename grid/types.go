package grid

import (
	"fmt"
	"time"

	"gridbot/exchange"
)

// Mode selects the strategy driving a symbol.
type Mode string

const (
	// ModeGrid maintains a ladder of resting post-only limit orders.
	ModeGrid Mode = "grid"
	// ModePosition maintains a single directional position with fixed
	// take-profit/stop-loss thresholds.
	ModePosition Mode = "position"
)

// OrderState is the engine-side lifecycle state of a tracked order.
type OrderState string

const (
	StatePending   OrderState = "PENDING"
	StateOpen      OrderState = "OPEN"
	StateFilled    OrderState = "FILLED"
	StateCancelled OrderState = "CANCELLED"
	// StateUnknown marks an order whose last cancel/query failed at the
	// transport level. Unknown orders block new placements at their price
	// level until a fresh query resolves them.
	StateUnknown OrderState = "UNKNOWN"
)

// TrackedOrder is the engine's record of an order it placed.
type TrackedOrder struct {
	OrderID  string
	ClientID string
	Symbol   string
	Side     exchange.Side
	Price    float64
	Quantity float64
	State    OrderState
}

// Live reports whether the order may still rest on the book.
func (o TrackedOrder) Live() bool {
	switch o.State {
	case StatePending, StateOpen, StateUnknown:
		return true
	}
	return false
}

// Cooldown suspends new entries for a symbol after a stop-loss close.
type Cooldown struct {
	Symbol string
	Until  time.Time
}

// Active reports whether the cooldown still blocks new entries.
func (c *Cooldown) Active(now time.Time) bool {
	return c != nil && now.Before(c.Until)
}

// Config is the per-symbol strategy configuration, read-only after startup.
// Changing it requires a full grid rebuild.
type Config struct {
	Symbol          string  `json:"symbol"`
	Mode            Mode    `json:"mode"`
	LevelCount      int     `json:"grid_num"`
	UpperPrice      float64 `json:"upper_price"`
	LowerPrice      float64 `json:"lower_price"`
	TotalInvestment float64 `json:"total_investment"`
	Spread          float64 `json:"grid_spread"`
	StopLossPct     float64 `json:"stop_loss_pct"`
	TakeProfitPct   float64 `json:"take_profit_pct"`
	MaxLeverage     int     `json:"max_leverage"`
	CooldownMinutes int     `json:"cooldown_minutes"`
}

// SetDefaults fills unset fields with the stock parameters.
func (c *Config) SetDefaults() {
	if c.Mode == "" {
		c.Mode = ModeGrid
	}
	if c.LevelCount == 0 {
		c.LevelCount = 10
	}
	if c.TotalInvestment == 0 {
		c.TotalInvestment = 1000
	}
	if c.Spread == 0 {
		c.Spread = 0.02
	}
	if c.StopLossPct == 0 {
		c.StopLossPct = 0.1
	}
	if c.TakeProfitPct == 0 {
		c.TakeProfitPct = 0.2
	}
	if c.MaxLeverage == 0 {
		c.MaxLeverage = 3
	}
	if c.CooldownMinutes == 0 {
		c.CooldownMinutes = 30
	}
}

// Validate rejects configurations the planner cannot operate on.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if c.Mode != ModeGrid && c.Mode != ModePosition {
		return fmt.Errorf("%s: unknown mode %q", c.Symbol, c.Mode)
	}
	if c.Mode == ModeGrid && c.LevelCount < 2 {
		return fmt.Errorf("%s: grid_num must be at least 2, got %d", c.Symbol, c.LevelCount)
	}
	if c.TotalInvestment <= 0 {
		return fmt.Errorf("%s: total_investment must be positive", c.Symbol)
	}
	if c.Spread <= 0 || c.Spread >= 1 {
		return fmt.Errorf("%s: grid_spread must be in (0, 1), got %v", c.Symbol, c.Spread)
	}
	if c.StopLossPct <= 0 || c.TakeProfitPct <= 0 {
		return fmt.Errorf("%s: stop_loss_pct and take_profit_pct must be positive", c.Symbol)
	}
	if c.UpperPrice != 0 && c.LowerPrice != 0 && c.UpperPrice <= c.LowerPrice {
		return fmt.Errorf("%s: upper_price must exceed lower_price", c.Symbol)
	}
	if c.MaxLeverage < 1 {
		return fmt.Errorf("%s: max_leverage must be at least 1", c.Symbol)
	}
	return nil
}

// Instrument carries the precision constraints planner outputs are rounded to.
type Instrument struct {
	PriceDecimals    int
	QuantityDecimals int
	MinQuantity      float64
}

// ActionType identifies a planned operation.
type ActionType string

const (
	ActionPlace    ActionType = "place"
	ActionCancel   ActionType = "cancel"
	ActionCloseAll ActionType = "close_all"
)

// Close reasons carried on ActionCloseAll.
const (
	ReasonStopLoss   = "stop_loss"
	ReasonTakeProfit = "take_profit"
)

// Action is one planned operation. The planner emits actions already ordered
// for safe execution: a CloseAll is always alone, and cancels precede places.
type Action struct {
	Type       ActionType
	Symbol     string
	Side       exchange.Side
	Price      float64
	Quantity   float64
	OrderID    string // cancel only
	Reason     string // close_all only
	Cooldown   bool   // close_all only: start a cooldown window after closing
	PostOnly   bool
	ReduceOnly bool
	Market     bool // market order instead of limit
}

// Input is everything a single planning pass consumes. Position and order
// state must come from a fresh exchange query, never from a stale cache.
type Input struct {
	Now        time.Time
	Price      float64
	Config     Config
	Instrument Instrument
	Orders     []TrackedOrder
	Position   *exchange.Position
	Cooldown   *Cooldown
	// Available quote balance; used by ModePosition entry sizing.
	AvailableBalance float64
}
