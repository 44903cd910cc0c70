package domain

import "github.com/shopspring/decimal"

// DepthLevel aggregates all resting orders at one price: total remaining
// quantity and how many orders hold it.
type DepthLevel struct {
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	OrderCount int             `json:"order_count"`
}

// DepthView is the aggregated top-of-book view published on the depth
// topic after every book mutation. Sell levels are ordered by descending
// price (nearest to market last in reading order from the top), buy levels
// by descending price, each capped at the configured depth.
type DepthView struct {
	Symbol     string       `json:"symbol"`
	SellLevels []DepthLevel `json:"sell_levels"`
	BuyLevels  []DepthLevel `json:"buy_levels"`
}

// SnapshotLevel is one price level of a full book snapshot with its resting
// orders in queue (arrival) order.
type SnapshotLevel struct {
	Price  decimal.Decimal `json:"price"`
	Orders []Order         `json:"orders"`
}

// BookSnapshot is the complete resting state of one symbol's book. Sell
// levels are ordered ascending (best ask first), buy levels descending
// (best bid first).
type BookSnapshot struct {
	Symbol     string          `json:"symbol"`
	SellOrders []SnapshotLevel `json:"sell_orders"`
	BuyOrders  []SnapshotLevel `json:"buy_orders"`
}

// BookSummary counts resting orders per side.
type BookSummary struct {
	Symbol    string `json:"symbol"`
	SellCount int    `json:"sell_count"`
	BuyCount  int    `json:"buy_count"`
}
