package domain

import "github.com/shopspring/decimal"

// Side of a trade intent.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Kind of a trade intent.
type Kind string

const (
	KindMarket Kind = "MARKET"
	KindLimit  Kind = "LIMIT"
)

// TradeIntent is a user-entered order before validation and scaling.
// Price and Quantity are raw input strings; the submission pipeline owns
// parsing them. Consumed exactly once per submission attempt.
type TradeIntent struct {
	Side     Side
	Kind     Kind
	Price    string // required for limit, ignored for market
	Quantity string
}

// OrderTypeFlag is the venue wire encoding of (side, kind).
type OrderTypeFlag int32

const (
	OrderTypeBuyLimit   OrderTypeFlag = 1
	OrderTypeSellLimit  OrderTypeFlag = 2
	OrderTypeBuyMarket  OrderTypeFlag = 3
	OrderTypeSellMarket OrderTypeFlag = 4
)

// OrderTypeFor maps a trade intent's side and kind onto the wire flag.
func OrderTypeFor(side Side, kind Kind) OrderTypeFlag {
	if kind == KindMarket {
		if side == SideSell {
			return OrderTypeSellMarket
		}
		return OrderTypeBuyMarket
	}
	if side == SideSell {
		return OrderTypeSellLimit
	}
	return OrderTypeBuyLimit
}

// ChainOrderMessage is the fully scaled, venue-ready order. Price and
// Quantity are integer-valued decimals in chain fixed-point units.
// Immutable once constructed.
type ChainOrderMessage struct {
	SubaccountID string          `json:"subaccount_id"`
	MarketID     string          `json:"market_id"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	OrderType    OrderTypeFlag   `json:"order_type"`
	FeeRecipient string          `json:"fee_recipient"`
	Cid          string          `json:"cid"` // client order id
}
