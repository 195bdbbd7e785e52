package notify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatTradePlace(t *testing.T) {
	msg := FormatTrade(Event{
		Symbol: "BTC_USDC_PERP", Action: "place", Side: "BUY",
		Price: 61250.5, Quantity: 0.015,
	})
	require.Contains(t, msg, "🟢 BUY BTC_USDC_PERP")
	require.Contains(t, msg, "61250.5")
	require.Contains(t, msg, "0.015")

	sell := FormatTrade(Event{Symbol: "BTC_USDC_PERP", Action: "place", Side: "SELL", Price: 62000, Quantity: 0.01})
	require.Contains(t, sell, "🔴 SELL")
}

func TestFormatTradeCloseAll(t *testing.T) {
	msg := FormatTrade(Event{Symbol: "SOL_USDC_PERP", Action: "close_all", Reason: "stop_loss"})
	require.Contains(t, msg, "SOL_USDC_PERP")
	require.Contains(t, msg, "stop_loss")

	bare := FormatTrade(Event{Symbol: "SOL_USDC_PERP", Action: "close_all"})
	require.NotContains(t, bare, "Reason")
	require.NotContains(t, bare, "PnL")
}

func TestFormatTradeCloseAllWithPosition(t *testing.T) {
	msg := FormatTrade(Event{
		Symbol: "SOL_USDC_PERP", Action: "close_all", Side: "SELL",
		Price: 141.2, Quantity: 7.1, PnL: -103.4, Reason: "stop_loss",
	})
	require.Contains(t, msg, "SELL 7.1 @ 141.2")
	require.Contains(t, msg, "PnL: -103.40")
	require.Contains(t, msg, "Reason: stop_loss")
}

func TestFormatTradeCancel(t *testing.T) {
	msg := FormatTrade(Event{Symbol: "ETH_USDC_PERP", Action: "cancel", Side: "SELL", Price: 3200})
	require.Contains(t, msg, "Cancelled SELL ETH_USDC_PERP")
	require.Contains(t, msg, "3200")
}
