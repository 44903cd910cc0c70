// Package engine implements the per-symbol order book, the price-time
// priority matching algorithm, and the registry that routes incoming
// orders to the right book and republishes depth after every mutation.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/krxlab/stockcore/internal/domain"
)

// TradeRecorder receives every trade the moment it executes. Implementations
// must not block on I/O: they are called from inside the matching path.
type TradeRecorder interface {
	RecordTrade(ctx context.Context, trade domain.Trade)
}

// OrderBook holds the resting orders of one symbol and matches incoming
// orders against them. All mutations and the depth reads used for
// broadcast are serialized by one mutex, so two orders for the same symbol
// can never interleave inside the matching loop. Books for different
// symbols share nothing and match in parallel.
type OrderBook struct {
	symbol   string
	recorder TradeRecorder
	logger   *slog.Logger

	mu    sync.Mutex
	sells *bookSide // ascending: best ask first
	buys  *bookSide // descending: best bid first
}

// NewOrderBook creates an empty book for symbol.
func NewOrderBook(symbol string, recorder TradeRecorder, logger *slog.Logger) *OrderBook {
	return &OrderBook{
		symbol:   symbol,
		recorder: recorder,
		logger:   logger.With(slog.String("component", "orderbook"), slog.String("symbol", symbol)),
		sells:    newBookSide(false),
		buys:     newBookSide(true),
	}
}

// Receive matches the incoming order against resting liquidity. Limit
// remainders rest on the book; a market order that exhausts the opposite
// side fails with NoLiquidityError and its remainder is dropped. Trades
// emitted before such a failure are final.
func (b *OrderBook) Receive(ctx context.Context, order *domain.Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.receive(ctx, order)
}

// ReceiveWithDepth runs Receive and reads the post-match depth view under
// the same lock acquisition, so the published view is exactly the state
// this order left behind.
func (b *OrderBook) ReceiveWithDepth(ctx context.Context, order *domain.Order, levels int) (domain.DepthView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.receive(ctx, order); err != nil {
		return domain.DepthView{}, err
	}
	return b.depthLocked(levels), nil
}

func (b *OrderBook) receive(ctx context.Context, order *domain.Order) error {
	if order.Kind == domain.KindMarket {
		return b.matchMarket(ctx, order)
	}
	b.matchLimit(ctx, order)
	return nil
}

// matchLimit fills the incoming limit order against the opposite side while
// the best opposite price crosses it, then rests any remainder at the
// order's own price.
func (b *OrderBook) matchLimit(ctx context.Context, order *domain.Order) {
	opposite := b.oppositeSide(order.Side)
	for !order.Filled() {
		best := opposite.best()
		if best == nil || !crosses(order, best.price) {
			b.rest(order)
			return
		}
		b.fill(ctx, best, order)
		if best.empty() {
			opposite.removeBest()
		}
	}
}

// matchMarket fills the incoming market order against the best opposite
// level regardless of price. The unmatched remainder never rests.
func (b *OrderBook) matchMarket(ctx context.Context, order *domain.Order) error {
	opposite := b.oppositeSide(order.Side)
	for !order.Filled() {
		best := opposite.best()
		if best == nil {
			return &domain.NoLiquidityError{Remaining: order.RemainingQuantity}
		}
		b.fill(ctx, best, order)
		if best.empty() {
			opposite.removeBest()
		}
	}
	return nil
}

// fill consumes the level head-first. Each match step emits one trade at
// the resting (maker) order's price and decrements both orders; a drained
// resting order is popped from the queue head.
func (b *OrderBook) fill(ctx context.Context, lvl *priceLevel, incoming *domain.Order) {
	for !lvl.empty() && !incoming.Filled() {
		resting := lvl.head()
		matched := decimal.Min(incoming.RemainingQuantity, resting.RemainingQuantity)

		trade := domain.Trade{
			ID:         uuid.NewString(),
			Symbol:     b.symbol,
			Quantity:   matched,
			Price:      resting.Price,
			ExecutedAt: time.Now(),
		}
		if incoming.Side == domain.SideBuy {
			trade.BuyOrderID = incoming.ID
			trade.SellOrderID = resting.ID
		} else {
			trade.BuyOrderID = resting.ID
			trade.SellOrderID = incoming.ID
		}
		b.recorder.RecordTrade(ctx, trade)

		incoming.Fill(matched)
		resting.Fill(matched)

		if resting.Filled() {
			lvl.popHead()
		}
	}
}

// rest inserts the order's remainder at its limit price, creating the
// level on demand. A non-positive price can never rest; that path is a
// guarded no-op kept from the original behavior, not an error.
func (b *OrderBook) rest(order *domain.Order) {
	if order.Price.Sign() <= 0 {
		b.logger.Warn("refusing to rest order without a positive price",
			slog.String("order_id", order.ID),
			slog.String("price", order.Price.String()),
		)
		return
	}
	b.sameSide(order.Side).getOrCreate(order.Price).enqueue(order)
}

func (b *OrderBook) sameSide(side domain.Side) *bookSide {
	if side == domain.SideBuy {
		return b.buys
	}
	return b.sells
}

func (b *OrderBook) oppositeSide(side domain.Side) *bookSide {
	if side == domain.SideBuy {
		return b.sells
	}
	return b.buys
}

// crosses reports whether the best opposite price is executable against
// the incoming limit order.
func crosses(order *domain.Order, oppositeBest decimal.Decimal) bool {
	if order.Side == domain.SideBuy {
		return oppositeBest.LessThanOrEqual(order.Price)
	}
	return oppositeBest.GreaterThanOrEqual(order.Price)
}

// Depth returns the aggregated top-of-book view, at most levels price
// levels per side.
func (b *OrderBook) Depth(levels int) domain.DepthView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.depthLocked(levels)
}

// depthLocked builds the depth view. The best sell levels are reported in
// descending price order, so the level nearest the market comes last and
// sits visually adjacent to the best bid; buy levels keep their natural
// descending order.
func (b *OrderBook) depthLocked(levels int) domain.DepthView {
	view := domain.DepthView{Symbol: b.symbol}

	n := min(levels, len(b.sells.levels))
	view.SellLevels = make([]domain.DepthLevel, 0, n)
	for i := n - 1; i >= 0; i-- {
		view.SellLevels = append(view.SellLevels, depthLevel(b.sells.levels[i]))
	}

	n = min(levels, len(b.buys.levels))
	view.BuyLevels = make([]domain.DepthLevel, 0, n)
	for i := 0; i < n; i++ {
		view.BuyLevels = append(view.BuyLevels, depthLevel(b.buys.levels[i]))
	}
	return view
}

func depthLevel(lvl *priceLevel) domain.DepthLevel {
	return domain.DepthLevel{
		Price:      lvl.price,
		Quantity:   lvl.totalQuantity(),
		OrderCount: len(lvl.orders),
	}
}

// Snapshot returns the full resting state of the book: every level on both
// sides with its orders in queue order. Orders are copied by value so the
// caller can hold the snapshot without observing later matching.
func (b *OrderBook) Snapshot() domain.BookSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := domain.BookSnapshot{
		Symbol:     b.symbol,
		SellOrders: snapshotSide(b.sells),
		BuyOrders:  snapshotSide(b.buys),
	}
	return snap
}

func snapshotSide(side *bookSide) []domain.SnapshotLevel {
	out := make([]domain.SnapshotLevel, 0, len(side.levels))
	for _, lvl := range side.levels {
		sl := domain.SnapshotLevel{Price: lvl.price, Orders: make([]domain.Order, 0, len(lvl.orders))}
		for _, o := range lvl.orders {
			sl.Orders = append(sl.Orders, *o)
		}
		out = append(out, sl)
	}
	return out
}

// Summary counts resting orders per side.
func (b *OrderBook) Summary() domain.BookSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return domain.BookSummary{
		Symbol:    b.symbol,
		SellCount: b.sells.orderCount(),
		BuyCount:  b.buys.orderCount(),
	}
}
