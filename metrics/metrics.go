// Package metrics exposes Prometheus counters and gauges updated by the
// reconciliation engine and served at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ReconcileCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_reconcile_cycles_total",
			Help: "Reconciliation cycles run, by symbol and outcome (ok|failed|skipped)",
		},
		[]string{"symbol", "outcome"},
	)

	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_orders_placed_total",
			Help: "Grid orders placed, by symbol and side",
		},
		[]string{"symbol", "side"},
	)

	OrdersCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_orders_cancelled_total",
			Help: "Grid orders cancelled, by symbol",
		},
		[]string{"symbol"},
	)

	CloseAlls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_close_all_total",
			Help: "Full position closes, by symbol and reason (stop_loss|take_profit|shutdown)",
		},
		[]string{"symbol", "reason"},
	)

	Failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_failures_total",
			Help: "Exchange call failures, by symbol and kind (transport|business)",
		},
		[]string{"symbol", "kind"},
	)

	UnknownOrders = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "grid_unknown_orders",
			Help: "Orders currently in unknown state, by symbol",
		},
		[]string{"symbol"},
	)

	LastPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "grid_last_price",
			Help: "Latest observed price, by symbol",
		},
		[]string{"symbol"},
	)

	UnrealizedPnL = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "grid_unrealized_pnl",
			Help: "Unrealized PnL of the open position, by symbol",
		},
		[]string{"symbol"},
	)

	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_equity_usd",
			Help: "Available quote balance",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ReconcileCycles,
		OrdersPlaced,
		OrdersCancelled,
		CloseAlls,
		Failures,
		UnknownOrders,
		LastPrice,
		UnrealizedPnL,
		Equity,
	)
}
