package grid

import (
	"gridbot/exchange"
)

// PlanPosition derives the action list for a directional symbol: keep a single
// long position open, close it on take-profit or stop-loss relative to entry,
// and re-enter once flat. Pure, like Plan.
func PlanPosition(in Input) []Action {
	cfg := in.Config

	if in.Position.Flat() {
		if in.Cooldown.Active(in.Now) {
			return nil
		}
		// Entry sized from available quote balance at configured leverage.
		if in.AvailableBalance <= 0 || in.Price <= 0 {
			return nil
		}
		quantity := RoundQuantity(in.AvailableBalance*float64(cfg.MaxLeverage)/in.Price, in.Instrument.QuantityDecimals)
		if quantity <= 0 || quantity < in.Instrument.MinQuantity {
			return nil
		}
		return []Action{{
			Type:     ActionPlace,
			Symbol:   cfg.Symbol,
			Side:     exchange.SideBuy,
			Quantity: quantity,
			Market:   true,
		}}
	}

	entry := in.Position.EntryPrice
	if entry <= 0 {
		return nil
	}
	change := (in.Price - entry) / entry

	if change >= cfg.TakeProfitPct {
		return []Action{{
			Type:   ActionCloseAll,
			Symbol: cfg.Symbol,
			Reason: ReasonTakeProfit,
		}}
	}
	if change <= -cfg.StopLossPct {
		return []Action{{
			Type:     ActionCloseAll,
			Symbol:   cfg.Symbol,
			Reason:   ReasonStopLoss,
			Cooldown: true,
		}}
	}
	return nil
}
