package exchange

// Side is the order direction on the wire.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing direction for a position opened on this side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType is the order execution type on the wire.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderRequest is a new-order submission.
// Quantity and price are serialized as strings by the client, the way the
// exchange expects them.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Type       OrderType
	Quantity   float64
	Price      float64 // limit orders only
	PostOnly   bool
	ReduceOnly bool
	ClientID   string
}

// Order is an order as reported by the exchange.
type Order struct {
	OrderID  string
	ClientID string
	Symbol   string
	Side     Side
	Type     OrderType
	Price    float64
	Quantity float64
	Status   string // NEW, PARTIALLY_FILLED, FILLED, CANCELED, EXPIRED
}

// Filled reports whether the exchange considers this order done.
func (o *Order) Filled() bool {
	return o.Status == "FILLED"
}

// Closed reports whether the order can no longer execute.
func (o *Order) Closed() bool {
	switch o.Status {
	case "FILLED", "CANCELED", "EXPIRED":
		return true
	}
	return false
}

// Position is a perpetual position snapshot. Quantity is signed:
// positive long, negative short, zero flat.
type Position struct {
	Symbol        string
	Quantity      float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnL float64
	Leverage      int
}

// Flat reports whether there is no exposure.
func (p *Position) Flat() bool {
	return p == nil || p.Quantity == 0
}

// Side is the direction the position was opened on.
func (p *Position) Side() Side {
	if p != nil && p.Quantity < 0 {
		return SideSell
	}
	return SideBuy
}

// Balance is a single asset balance.
type Balance struct {
	Asset     string
	Available float64
	Locked    float64
}

// Market describes an instrument's precision constraints.
type Market struct {
	Symbol           string
	PriceDecimals    int
	QuantityDecimals int
	MinQuantity      float64
	BaseAsset        string
	QuoteAsset       string
}

// FundingRate is the current funding rate for a perpetual.
type FundingRate struct {
	Symbol string
	Rate   float64
}
