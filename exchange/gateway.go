package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"gridbot/logger"
)

// Gateway is the typed wrapper over the exchange REST API. Every call
// classifies the response into a typed result, a *BusinessError value, or a
// *TransportError (see errors.go); callers branch on that distinction to know
// whether exchange state is definitive or unknown.
type Gateway struct {
	client *Client

	marketsMu sync.RWMutex
	markets   map[string]*Market
}

// NewGateway creates a gateway for the given credentials and base URL.
func NewGateway(apiKey, apiSecret, baseURL string) *Gateway {
	return &Gateway{
		client:  NewClient(apiKey, apiSecret, baseURL),
		markets: make(map[string]*Market),
	}
}

// ---------- market data ----------

// GetPrice returns the last traded price for a symbol.
func (g *Gateway) GetPrice(ctx context.Context, symbol string) (float64, error) {
	var out struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	q := url.Values{"symbol": {symbol}}
	if err := g.client.do(ctx, http.MethodGet, "/api/v1/ticker/price", q, nil, &out); err != nil {
		return 0, err
	}
	price, _ := strconv.ParseFloat(out.Price, 64)
	if price <= 0 {
		return 0, &BusinessError{Status: http.StatusOK, Code: "INVALID_PRICE", Message: fmt.Sprintf("no price for %s", symbol)}
	}
	return price, nil
}

// GetFundingRate returns the current funding rate for a perpetual symbol.
func (g *Gateway) GetFundingRate(ctx context.Context, symbol string) (*FundingRate, error) {
	var out struct {
		Symbol      string `json:"symbol"`
		FundingRate string `json:"fundingRate"`
	}
	q := url.Values{"symbol": {symbol}}
	if err := g.client.do(ctx, http.MethodGet, "/api/v1/funding/current-rate", q, nil, &out); err != nil {
		return nil, err
	}
	rate, _ := strconv.ParseFloat(out.FundingRate, 64)
	return &FundingRate{Symbol: symbol, Rate: rate}, nil
}

// GetMarket returns precision constraints for a symbol, cached after the
// first successful fetch.
func (g *Gateway) GetMarket(ctx context.Context, symbol string) (*Market, error) {
	g.marketsMu.RLock()
	if m, ok := g.markets[symbol]; ok {
		g.marketsMu.RUnlock()
		return m, nil
	}
	g.marketsMu.RUnlock()

	var out []struct {
		Symbol            string `json:"symbol"`
		BaseAsset         string `json:"baseAsset"`
		QuoteAsset        string `json:"quoteAsset"`
		PricePrecision    int    `json:"pricePrecision"`
		QuantityPrecision int    `json:"quantityPrecision"`
		MinQuantity       string `json:"minQuantity"`
	}
	if err := g.client.do(ctx, http.MethodGet, "/api/v1/markets", nil, nil, &out); err != nil {
		return nil, err
	}

	g.marketsMu.Lock()
	for _, m := range out {
		minQty, _ := strconv.ParseFloat(m.MinQuantity, 64)
		g.markets[m.Symbol] = &Market{
			Symbol:           m.Symbol,
			BaseAsset:        m.BaseAsset,
			QuoteAsset:       m.QuoteAsset,
			PriceDecimals:    m.PricePrecision,
			QuantityDecimals: m.QuantityPrecision,
			MinQuantity:      minQty,
		}
	}
	market, ok := g.markets[symbol]
	g.marketsMu.Unlock()

	if !ok {
		return nil, &BusinessError{Status: http.StatusOK, Code: "MARKET_NOT_FOUND", Message: fmt.Sprintf("unknown market %s", symbol)}
	}
	return market, nil
}

// ---------- account ----------

// GetBalances returns all asset balances.
func (g *Gateway) GetBalances(ctx context.Context) ([]Balance, error) {
	var out []struct {
		Asset     string `json:"asset"`
		Available string `json:"available"`
		Locked    string `json:"locked"`
	}
	if err := g.client.do(ctx, http.MethodGet, "/api/v1/capital", nil, nil, &out); err != nil {
		return nil, err
	}
	balances := make([]Balance, 0, len(out))
	for _, b := range out {
		available, _ := strconv.ParseFloat(b.Available, 64)
		locked, _ := strconv.ParseFloat(b.Locked, 64)
		balances = append(balances, Balance{Asset: b.Asset, Available: available, Locked: locked})
	}
	return balances, nil
}

// GetBalance returns the available balance for one asset, zero when the asset
// is not held.
func (g *Gateway) GetBalance(ctx context.Context, asset string) (float64, error) {
	balances, err := g.GetBalances(ctx)
	if err != nil {
		return 0, err
	}
	for _, b := range balances {
		if b.Asset == asset {
			return b.Available, nil
		}
	}
	return 0, nil
}

// GetPositions returns all non-flat positions.
func (g *Gateway) GetPositions(ctx context.Context) ([]Position, error) {
	var out []wirePosition
	if err := g.client.do(ctx, http.MethodGet, "/api/v1/positions", nil, nil, &out); err != nil {
		return nil, err
	}
	positions := make([]Position, 0, len(out))
	for _, p := range out {
		pos := p.toPosition()
		if pos.Quantity == 0 {
			continue
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// GetPosition returns the position for one symbol, nil when flat. The caller
// must treat the result as a point-in-time snapshot; risk decisions require a
// fresh call.
func (g *Gateway) GetPosition(ctx context.Context, symbol string) (*Position, error) {
	positions, err := g.GetPositions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range positions {
		if positions[i].Symbol == symbol {
			return &positions[i], nil
		}
	}
	return nil, nil
}

// ---------- orders ----------

// PlaceOrder submits a new order. A client ID is generated when the request
// does not carry one, so retries after transport errors stay correlatable.
func (g *Gateway) PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if req.ClientID == "" {
		req.ClientID = uuid.NewString()
	}

	body := map[string]interface{}{
		"symbol":   req.Symbol,
		"side":     string(req.Side),
		"type":     string(req.Type),
		"quantity": strconv.FormatFloat(req.Quantity, 'f', -1, 64),
		"clientId": req.ClientID,
	}
	if req.Type == OrderTypeLimit {
		body["price"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
	}
	if req.PostOnly {
		body["postOnly"] = true
	}
	if req.ReduceOnly {
		body["reduceOnly"] = true
	}

	var out wireOrder
	if err := g.client.do(ctx, http.MethodPost, "/api/v1/order", nil, body, &out); err != nil {
		return nil, err
	}
	order := out.toOrder()
	if order.ClientID == "" {
		order.ClientID = req.ClientID
	}
	logger.Infof("[Gateway] order placed: %s %s %s qty=%s price=%s id=%s",
		req.Symbol, req.Side, req.Type,
		strconv.FormatFloat(req.Quantity, 'f', -1, 64),
		strconv.FormatFloat(req.Price, 'f', -1, 64), order.OrderID)
	return &order, nil
}

// CancelOrder cancels one order. A *BusinessError with OrderGone() true means
// the order was already filled or cancelled and can be treated as gone; a
// transport error means its state is unknown.
func (g *Gateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	body := map[string]interface{}{
		"symbol":  symbol,
		"orderId": orderID,
	}
	return g.client.do(ctx, http.MethodDelete, "/api/v1/order", nil, body, nil)
}

// CancelAll cancels every resting order, optionally scoped to one symbol.
func (g *Gateway) CancelAll(ctx context.Context, symbol string) error {
	body := map[string]interface{}{}
	if symbol != "" {
		body["symbol"] = symbol
	}
	return g.client.do(ctx, http.MethodDelete, "/api/v1/orders", nil, body, nil)
}

// GetOrder queries one order's current state.
func (g *Gateway) GetOrder(ctx context.Context, symbol, orderID string) (*Order, error) {
	q := url.Values{"symbol": {symbol}, "orderId": {orderID}}
	var out wireOrder
	if err := g.client.do(ctx, http.MethodGet, "/api/v1/order", q, nil, &out); err != nil {
		return nil, err
	}
	order := out.toOrder()
	return &order, nil
}

// GetOpenOrders returns all resting orders, optionally scoped to one symbol.
func (g *Gateway) GetOpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	q := url.Values{}
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	var out []wireOrder
	if err := g.client.do(ctx, http.MethodGet, "/api/v1/open-orders", q, nil, &out); err != nil {
		return nil, err
	}
	orders := make([]Order, 0, len(out))
	for _, o := range out {
		orders = append(orders, o.toOrder())
	}
	return orders, nil
}

// ---------- wire shapes ----------

type wireOrder struct {
	OrderID  string `json:"orderId"`
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Type     string `json:"type"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
	Status   string `json:"status"`
}

func (w wireOrder) toOrder() Order {
	id := w.OrderID
	if id == "" {
		id = w.ID
	}
	price, _ := strconv.ParseFloat(w.Price, 64)
	quantity, _ := strconv.ParseFloat(w.Quantity, 64)
	return Order{
		OrderID:  id,
		ClientID: w.ClientID,
		Symbol:   w.Symbol,
		Side:     Side(w.Side),
		Type:     OrderType(w.Type),
		Price:    price,
		Quantity: quantity,
		Status:   w.Status,
	}
}

type wirePosition struct {
	Symbol        string `json:"symbol"`
	Quantity      string `json:"quantity"`
	EntryPrice    string `json:"entryPrice"`
	MarkPrice     string `json:"markPrice"`
	UnrealizedPnL string `json:"unrealizedPnl"`
	Leverage      string `json:"leverage"`
}

func (w wirePosition) toPosition() Position {
	quantity, _ := strconv.ParseFloat(w.Quantity, 64)
	entry, _ := strconv.ParseFloat(w.EntryPrice, 64)
	mark, _ := strconv.ParseFloat(w.MarkPrice, 64)
	pnl, _ := strconv.ParseFloat(w.UnrealizedPnL, 64)
	leverage, _ := strconv.ParseFloat(w.Leverage, 64)
	return Position{
		Symbol:        w.Symbol,
		Quantity:      quantity,
		EntryPrice:    entry,
		MarkPrice:     mark,
		UnrealizedPnL: pnl,
		Leverage:      int(leverage),
	}
}
