package grid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gridbot/exchange"
)

func positionInput(price float64) Input {
	cfg := testConfig()
	cfg.Mode = ModePosition
	return Input{
		Now:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Price:      price,
		Config:     cfg,
		Instrument: testInstrument(),
	}
}

func TestPlanPositionEntry(t *testing.T) {
	in := positionInput(100)
	in.AvailableBalance = 500

	actions := PlanPosition(in)
	require.Len(t, actions, 1)
	a := actions[0]
	require.Equal(t, ActionPlace, a.Type)
	require.Equal(t, exchange.SideBuy, a.Side)
	require.True(t, a.Market)
	// 500 * 3x / 100, floored to 2 decimals.
	require.Equal(t, 15.0, a.Quantity)
}

func TestPlanPositionEntryBlockedByCooldown(t *testing.T) {
	in := positionInput(100)
	in.AvailableBalance = 500
	in.Cooldown = &Cooldown{Symbol: in.Config.Symbol, Until: in.Now.Add(time.Minute)}
	require.Empty(t, PlanPosition(in))
}

func TestPlanPositionNoBalanceNoEntry(t *testing.T) {
	in := positionInput(100)
	require.Empty(t, PlanPosition(in))
}

func TestPlanPositionTakeProfit(t *testing.T) {
	in := positionInput(120)
	in.Position = &exchange.Position{Symbol: in.Config.Symbol, Quantity: 10, EntryPrice: 100}

	actions := PlanPosition(in)
	require.Len(t, actions, 1)
	require.Equal(t, ActionCloseAll, actions[0].Type)
	require.Equal(t, ReasonTakeProfit, actions[0].Reason)
	require.False(t, actions[0].Cooldown)
}

func TestPlanPositionStopLoss(t *testing.T) {
	in := positionInput(89)
	in.Position = &exchange.Position{Symbol: in.Config.Symbol, Quantity: 10, EntryPrice: 100}

	actions := PlanPosition(in)
	require.Len(t, actions, 1)
	require.Equal(t, ActionCloseAll, actions[0].Type)
	require.Equal(t, ReasonStopLoss, actions[0].Reason)
	require.True(t, actions[0].Cooldown)
}

func TestPlanPositionHoldBetweenThresholds(t *testing.T) {
	in := positionInput(105)
	in.Position = &exchange.Position{Symbol: in.Config.Symbol, Quantity: 10, EntryPrice: 100}
	require.Empty(t, PlanPosition(in))
}
