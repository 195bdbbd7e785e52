package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.Handler) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGateway("key", "secret", srv.URL)
}

func TestGetPrice(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/ticker/price", r.URL.Path)
		require.Equal(t, "SOL_USDC_PERP", r.URL.Query().Get("symbol"))
		json.NewEncoder(w).Encode(map[string]string{"symbol": "SOL_USDC_PERP", "price": "142.55"})
	}))

	price, err := g.GetPrice(context.Background(), "SOL_USDC_PERP")
	require.NoError(t, err)
	require.Equal(t, 142.55, price)
}

func TestGetMarketCaches(t *testing.T) {
	var calls int32
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode([]map[string]interface{}{{
			"symbol":            "BTC_USDC_PERP",
			"baseAsset":         "BTC",
			"quoteAsset":        "USDC",
			"pricePrecision":    1,
			"quantityPrecision": 5,
			"minQuantity":       "0.00001",
		}})
	}))

	m, err := g.GetMarket(context.Background(), "BTC_USDC_PERP")
	require.NoError(t, err)
	require.Equal(t, 1, m.PriceDecimals)
	require.Equal(t, 5, m.QuantityDecimals)
	require.Equal(t, 0.00001, m.MinQuantity)
	require.Equal(t, "USDC", m.QuoteAsset)

	_, err = g.GetMarket(context.Background(), "BTC_USDC_PERP")
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetPositionFlat(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{{
			"symbol":        "ETH_USDC_PERP",
			"quantity":      "0",
			"entryPrice":    "0",
			"markPrice":     "0",
			"unrealizedPnl": "0",
		}})
	}))

	pos, err := g.GetPosition(context.Background(), "ETH_USDC_PERP")
	require.NoError(t, err)
	require.Nil(t, pos)
	require.True(t, pos.Flat())
}

func TestGetPositionOpen(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{{
			"symbol":        "ETH_USDC_PERP",
			"quantity":      "-2.5",
			"entryPrice":    "3000",
			"markPrice":     "3100",
			"unrealizedPnl": "-250",
		}})
	}))

	pos, err := g.GetPosition(context.Background(), "ETH_USDC_PERP")
	require.NoError(t, err)
	require.NotNil(t, pos)
	require.Equal(t, -2.5, pos.Quantity)
	require.Equal(t, 3000.0, pos.EntryPrice)
	require.Equal(t, -250.0, pos.UnrealizedPnL)
	require.False(t, pos.Flat())
}

func TestPlaceOrderWireFormat(t *testing.T) {
	var body map[string]interface{}
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/order", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(map[string]string{
			"id":     "12345",
			"status": "New",
		})
	}))

	order, err := g.PlaceOrder(context.Background(), OrderRequest{
		Symbol:   "BTC_USDC_PERP",
		Side:     SideBuy,
		Type:     OrderTypeLimit,
		Quantity: 0.015,
		Price:    61250.5,
		PostOnly: true,
	})
	require.NoError(t, err)
	require.Equal(t, "12345", order.OrderID)

	// Quantity and price travel as strings.
	require.Equal(t, "0.015", body["quantity"])
	require.Equal(t, "61250.5", body["price"])
	require.Equal(t, "BUY", body["side"])
	require.Equal(t, "LIMIT", body["type"])
	require.Equal(t, true, body["postOnly"])
	require.NotEmpty(t, body["clientId"], "client id must be generated when absent")
	require.Len(t, order.ClientID, 36)
}

func TestCancelAllScopesSymbol(t *testing.T) {
	var body map[string]interface{}
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/api/v1/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`[]`))
	}))

	require.NoError(t, g.CancelAll(context.Background(), "BTC_USDC_PERP"))
	require.Equal(t, "BTC_USDC_PERP", body["symbol"])
}

func TestGetFundingRate(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/funding/current-rate", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"symbol": "BTC_USDC_PERP", "fundingRate": "0.0001"})
	}))

	fr, err := g.GetFundingRate(context.Background(), "BTC_USDC_PERP")
	require.NoError(t, err)
	require.Equal(t, 0.0001, fr.Rate)
}

func TestGetBalance(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/capital", r.URL.Path)
		json.NewEncoder(w).Encode([]map[string]string{
			{"asset": "USDC", "available": "1523.75", "locked": "100"},
			{"asset": "SOL", "available": "10", "locked": "0"},
		})
	}))

	available, err := g.GetBalance(context.Background(), "USDC")
	require.NoError(t, err)
	require.Equal(t, 1523.75, available)

	missing, err := g.GetBalance(context.Background(), "BTC")
	require.NoError(t, err)
	require.Zero(t, missing)
}
