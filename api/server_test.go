package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"gridbot/engine"
	"gridbot/exchange"
	"gridbot/grid"
)

// stubGateway satisfies engine.Gateway; the API tests never reach the
// exchange, they only exercise routing and status plumbing.
type stubGateway struct{}

func (stubGateway) GetMarket(context.Context, string) (*exchange.Market, error) {
	return &exchange.Market{PriceDecimals: 2, QuantityDecimals: 2}, nil
}
func (stubGateway) GetPosition(context.Context, string) (*exchange.Position, error) {
	return nil, nil
}
func (stubGateway) GetOpenOrders(context.Context, string) ([]exchange.Order, error) {
	return nil, nil
}
func (stubGateway) GetOrder(context.Context, string, string) (*exchange.Order, error) {
	return nil, nil
}
func (stubGateway) GetBalance(context.Context, string) (float64, error) { return 0, nil }
func (stubGateway) GetFundingRate(context.Context, string) (*exchange.FundingRate, error) {
	return &exchange.FundingRate{}, nil
}
func (stubGateway) PlaceOrder(context.Context, exchange.OrderRequest) (*exchange.Order, error) {
	return &exchange.Order{OrderID: "1"}, nil
}
func (stubGateway) CancelOrder(context.Context, string, string) error { return nil }
func (stubGateway) CancelAll(context.Context, string) error           { return nil }

// stubFeed is a canned PriceFeed.
type stubFeed struct {
	up     bool
	prices map[string]float64
}

func (f stubFeed) Connected() bool              { return f.up }
func (f stubFeed) Snapshot() map[string]float64 { return f.prices }

func newTestServer() *Server {
	return newTestServerWithFeed(stubFeed{})
}

func newTestServerWithFeed(feed PriceFeed) *Server {
	eng := engine.New(stubGateway{}, nil, []grid.Config{{
		Symbol: "BTC_USDC_PERP", Mode: grid.ModeGrid, LevelCount: 10,
		LowerPrice: 90, UpperPrice: 110, TotalInvestment: 1000,
		Spread: 0.02, StopLossPct: 0.1, TakeProfitPct: 0.2, MaxLeverage: 3,
	}}, engine.Options{})
	return NewServer(eng, feed, 0)
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	w := doRequest(newTestServer(), http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status        string `json:"status"`
		FeedConnected bool   `json:"feed_connected"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
	require.False(t, body.FeedConnected)

	w = doRequest(newTestServerWithFeed(stubFeed{up: true}), http.MethodGet, "/healthz")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.True(t, body.FeedConnected)
}

func TestPricesEndpoint(t *testing.T) {
	feed := stubFeed{prices: map[string]float64{"BTC_USDC_PERP": 61250.5}}
	w := doRequest(newTestServerWithFeed(feed), http.MethodGet, "/api/prices")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Prices map[string]float64 `json:"prices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 61250.5, body.Prices["BTC_USDC_PERP"])
}

func TestStatusEndpoint(t *testing.T) {
	w := doRequest(newTestServer(), http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Symbols []engine.SymbolStatus `json:"symbols"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Symbols, 1)
	require.Equal(t, "BTC_USDC_PERP", body.Symbols[0].Symbol)
}

func TestPauseResume(t *testing.T) {
	s := newTestServer()

	w := doRequest(s, http.MethodPost, "/api/pause/BTC_USDC_PERP")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodGet, "/api/status")
	var body struct {
		Symbols []engine.SymbolStatus `json:"symbols"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.True(t, body.Symbols[0].Paused)

	w = doRequest(s, http.MethodPost, "/api/resume/BTC_USDC_PERP")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodPost, "/api/pause/UNKNOWN")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	w := doRequest(newTestServer(), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "grid_")
}
