// Package domain holds the core data model of the matching engine: orders,
// trades, candles, book views, and the interfaces the engine consumes
// (durable stores, the pub/sub bus, caches). Types here are plain data with
// no dependencies on the infrastructure packages that implement them.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side indicates whether an order buys or sells.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderKind selects the execution style. A market order matches at any
// price and never rests on the book.
type OrderKind string

const (
	KindLimit  OrderKind = "LIMIT"
	KindMarket OrderKind = "MARKET"
)

// Order is a buy or sell order for one symbol. Quantities and prices are
// arbitrary-precision decimals so repeated partial fills never drift.
//
// After submission an order is mutated only by Fill; everything else is
// fixed for its lifetime. The account reference is optional: matching does
// not need account data, only an id for downstream settlement.
type Order struct {
	ID                string
	Symbol            string
	Side              Side
	Kind              OrderKind
	TotalQuantity     decimal.Decimal
	RemainingQuantity decimal.Decimal
	Price             decimal.Decimal // zero for market orders
	AccountID         *int64
	Timestamp         time.Time // arrival time, used only for ordering
}

// Fill decrements the remaining quantity by the matched amount.
func (o *Order) Fill(quantity decimal.Decimal) {
	o.RemainingQuantity = o.RemainingQuantity.Sub(quantity)
}

// Filled reports whether the order has no remaining quantity.
func (o *Order) Filled() bool {
	return o.RemainingQuantity.IsZero()
}

// OrderRequest is the placement request handed to the registry by the
// transport layer.
type OrderRequest struct {
	Symbol    string
	Side      Side
	Kind      OrderKind
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	AccountID *int64
}
