package grid

import (
	"math"
	"sort"

	"gridbot/exchange"
)

// Plan derives the target action list for one grid symbol from current price
// and account state. It is a pure function: no I/O, no retained state, and
// identical inputs yield the identical action list, which is what makes the
// reconciliation loop safe to re-run from scratch on every tick.
//
// Ordering contract: a CloseAll is terminal and alone; otherwise cancels come
// before places so transient over-exposure cannot occur mid-execution.
func Plan(in Input) []Action {
	cfg := in.Config

	// Risk thresholds dominate everything else.
	if !in.Position.Flat() {
		if in.Position.UnrealizedPnL < -cfg.TotalInvestment*cfg.StopLossPct {
			return []Action{{
				Type:     ActionCloseAll,
				Symbol:   cfg.Symbol,
				Reason:   ReasonStopLoss,
				Cooldown: true,
			}}
		}
		if in.Position.UnrealizedPnL > cfg.TotalInvestment*cfg.TakeProfitPct {
			return []Action{{
				Type:   ActionCloseAll,
				Symbol: cfg.Symbol,
				Reason: ReasonTakeProfit,
			}}
		}
	}

	levels := Levels(cfg.LowerPrice, cfg.UpperPrice, cfg.LevelCount)

	var actions []Action

	// Cancel orders that drifted too far from the market. Unknown orders are
	// never cancelled here: their true state must be resolved by a query
	// first, and issuing a second cancel would not resolve anything.
	var cancels []Action
	for _, o := range in.Orders {
		if o.State != StatePending && o.State != StateOpen {
			continue
		}
		if relDev(o.Price, in.Price) > 2*cfg.Spread {
			cancels = append(cancels, Action{
				Type:    ActionCancel,
				Symbol:  cfg.Symbol,
				OrderID: o.OrderID,
				Price:   o.Price,
			})
		}
	}
	sort.Slice(cancels, func(i, j int) bool { return cancels[i].OrderID < cancels[j].OrderID })
	actions = append(actions, cancels...)

	// New entries are blocked during a cooldown window and once existing
	// exposure already implies maximum leverage.
	if in.Cooldown.Active(in.Now) {
		return actions
	}
	maxNotional := cfg.TotalInvestment * float64(cfg.MaxLeverage)
	exposure := 0.0
	if !in.Position.Flat() {
		exposure = math.Abs(in.Position.Quantity) * in.Price
	}
	if exposure >= maxNotional {
		return actions
	}

	tick := decimalStep(in.Instrument.PriceDecimals)
	var places []Action
	for _, level := range levels {
		dev := relDev(level, in.Price)
		// Inside the deadzone a post-only order would cross; beyond twice the
		// spread the level is not worth quoting yet.
		if dev < cfg.Spread || dev > 2*cfg.Spread {
			continue
		}

		price := RoundPrice(level, in.Instrument.PriceDecimals)
		if hasLiveOrderAt(in.Orders, price, tick) {
			continue
		}

		quantity := RoundQuantity(cfg.TotalInvestment/float64(cfg.LevelCount)/price, in.Instrument.QuantityDecimals)
		if quantity <= 0 || quantity < in.Instrument.MinQuantity {
			continue
		}
		// Each new order's notional counts toward the leverage cap alongside
		// the open position.
		if exposure+quantity*price > maxNotional {
			continue
		}
		exposure += quantity * price

		side := exchange.SideBuy
		if level > in.Price {
			side = exchange.SideSell
		}
		places = append(places, Action{
			Type:     ActionPlace,
			Symbol:   cfg.Symbol,
			Side:     side,
			Price:    price,
			Quantity: quantity,
			PostOnly: true,
		})
	}
	sort.Slice(places, func(i, j int) bool { return places[i].Price < places[j].Price })
	return append(actions, places...)
}

// Levels interpolates count prices uniformly between lower and upper bounds,
// inclusive on both ends.
func Levels(lower, upper float64, count int) []float64 {
	if count < 2 {
		return []float64{lower}
	}
	step := (upper - lower) / float64(count-1)
	levels := make([]float64, count)
	for i := range levels {
		levels[i] = lower + step*float64(i)
	}
	return levels
}

// RoundPrice rounds to the instrument's price precision.
func RoundPrice(price float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(price*p) / p
}

// RoundQuantity rounds down to the instrument's quantity precision; rounding
// down keeps total notional within the configured investment.
func RoundQuantity(quantity float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Floor(quantity*p) / p
}

// relDev is the relative deviation of a level from the reference price.
func relDev(level, price float64) float64 {
	return math.Abs(level-price) / price
}

// decimalStep is the smallest representable increment at the given precision.
func decimalStep(decimals int) float64 {
	return math.Pow10(-decimals)
}

// hasLiveOrderAt reports whether any pending, open, or unknown order already
// occupies the price level. Unknown orders count: placing on top of one could
// double exposure if the earlier order turns out to still be live.
func hasLiveOrderAt(orders []TrackedOrder, price, tick float64) bool {
	for _, o := range orders {
		if o.Live() && math.Abs(o.Price-price) <= tick/2 {
			return true
		}
	}
	return false
}
