package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an immutable execution record. The price is always the resting
// (maker) order's price; the incoming order never sets it. Exactly one
// trade is created per match step and it is never mutated afterwards.
type Trade struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	BuyOrderID  string          `json:"buy_order_id"`
	SellOrderID string          `json:"sell_order_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	ExecutedAt  time.Time       `json:"executed_at"`
}
