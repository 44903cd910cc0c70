package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krxlab/stockcore/internal/domain"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tradeSink collects every trade the book emits.
type tradeSink struct {
	mu     sync.Mutex
	trades []domain.Trade
}

func (s *tradeSink) RecordTrade(_ context.Context, trade domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, trade)
}

func (s *tradeSink) all() []domain.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Trade(nil), s.trades...)
}

func limitOrder(id string, side domain.Side, qty, price string) *domain.Order {
	return &domain.Order{
		ID:                id,
		Symbol:            "005930",
		Side:              side,
		Kind:              domain.KindLimit,
		TotalQuantity:     d(qty),
		RemainingQuantity: d(qty),
		Price:             d(price),
	}
}

func marketOrder(id string, side domain.Side, qty string) *domain.Order {
	return &domain.Order{
		ID:                id,
		Symbol:            "005930",
		Side:              side,
		Kind:              domain.KindMarket,
		TotalQuantity:     d(qty),
		RemainingQuantity: d(qty),
	}
}

func newTestBook() (*OrderBook, *tradeSink) {
	sink := &tradeSink{}
	return NewOrderBook("005930", sink, testLogger()), sink
}

func TestLimitOrderRestsWhenBookEmpty(t *testing.T) {
	book, sink := newTestBook()

	require.NoError(t, book.Receive(context.Background(), limitOrder("b1", domain.SideBuy, "50", "70000")))

	assert.Empty(t, sink.all())
	summary := book.Summary()
	assert.Equal(t, 1, summary.BuyCount)
	assert.Equal(t, 0, summary.SellCount)
}

func TestPartialFillLeavesRemainderResting(t *testing.T) {
	book, sink := newTestBook()
	ctx := context.Background()

	require.NoError(t, book.Receive(ctx, limitOrder("b1", domain.SideBuy, "50", "70000")))
	require.NoError(t, book.Receive(ctx, limitOrder("s1", domain.SideSell, "30", "70000")))

	trades := sink.all()
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Quantity.Equal(d("30")))
	assert.True(t, trades[0].Price.Equal(d("70000")))
	assert.Equal(t, "b1", trades[0].BuyOrderID)
	assert.Equal(t, "s1", trades[0].SellOrderID)

	snap := book.Snapshot()
	require.Len(t, snap.BuyOrders, 1)
	require.Len(t, snap.BuyOrders[0].Orders, 1)
	assert.True(t, snap.BuyOrders[0].Orders[0].RemainingQuantity.Equal(d("20")))
	assert.Empty(t, snap.SellOrders)
}

func TestExecutionAtRestingPrice(t *testing.T) {
	book, sink := newTestBook()
	ctx := context.Background()

	require.NoError(t, book.Receive(ctx, limitOrder("s1", domain.SideSell, "10", "70000")))
	require.NoError(t, book.Receive(ctx, limitOrder("b1", domain.SideBuy, "10", "70500")))

	trades := sink.all()
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Price.Equal(d("70000")), "trade must execute at the resting price")
}

func TestBestPriceMatchedFirst(t *testing.T) {
	book, sink := newTestBook()
	ctx := context.Background()

	require.NoError(t, book.Receive(ctx, limitOrder("s1", domain.SideSell, "10", "70100")))
	require.NoError(t, book.Receive(ctx, limitOrder("s2", domain.SideSell, "10", "70000")))
	require.NoError(t, book.Receive(ctx, limitOrder("b1", domain.SideBuy, "15", "70100")))

	trades := sink.all()
	require.Len(t, trades, 2)
	assert.Equal(t, "s2", trades[0].SellOrderID, "lowest ask fills first")
	assert.True(t, trades[0].Price.Equal(d("70000")))
	assert.Equal(t, "s1", trades[1].SellOrderID)
	assert.True(t, trades[1].Price.Equal(d("70100")))
	assert.True(t, trades[1].Quantity.Equal(d("5")))
}

func TestFIFOWithinPriceLevel(t *testing.T) {
	book, sink := newTestBook()
	ctx := context.Background()

	require.NoError(t, book.Receive(ctx, limitOrder("s1", domain.SideSell, "10", "70000")))
	require.NoError(t, book.Receive(ctx, limitOrder("s2", domain.SideSell, "10", "70000")))
	require.NoError(t, book.Receive(ctx, limitOrder("b1", domain.SideBuy, "15", "70000")))

	trades := sink.all()
	require.Len(t, trades, 2)
	assert.Equal(t, "s1", trades[0].SellOrderID, "earlier order at the level fills first")
	assert.True(t, trades[0].Quantity.Equal(d("10")))
	assert.Equal(t, "s2", trades[1].SellOrderID)
	assert.True(t, trades[1].Quantity.Equal(d("5")))
}

func TestMarketOrderFailsOnEmptyBook(t *testing.T) {
	book, sink := newTestBook()

	err := book.Receive(context.Background(), marketOrder("m1", domain.SideBuy, "10"))
	require.Error(t, err)
	require.True(t, domain.IsNoLiquidity(err))

	var noLiq *domain.NoLiquidityError
	require.ErrorAs(t, err, &noLiq)
	assert.True(t, noLiq.Remaining.Equal(d("10")))
	assert.Empty(t, sink.all())
}

func TestMarketOrderPartialFillThenNoLiquidity(t *testing.T) {
	book, sink := newTestBook()
	ctx := context.Background()

	require.NoError(t, book.Receive(ctx, limitOrder("s1", domain.SideSell, "100", "70100")))

	err := book.Receive(ctx, marketOrder("m1", domain.SideBuy, "150"))
	require.Error(t, err)

	var noLiq *domain.NoLiquidityError
	require.ErrorAs(t, err, &noLiq)
	assert.True(t, noLiq.Remaining.Equal(d("50")))

	trades := sink.all()
	require.Len(t, trades, 1, "the executed portion stands")
	assert.True(t, trades[0].Quantity.Equal(d("100")))
	assert.True(t, trades[0].Price.Equal(d("70100")))

	summary := book.Summary()
	assert.Equal(t, 0, summary.SellCount, "remainder never rests")
	assert.Equal(t, 0, summary.BuyCount)
}

func TestMarketOrderSweepsMultipleLevels(t *testing.T) {
	book, sink := newTestBook()
	ctx := context.Background()

	require.NoError(t, book.Receive(ctx, limitOrder("b1", domain.SideBuy, "10", "70000")))
	require.NoError(t, book.Receive(ctx, limitOrder("b2", domain.SideBuy, "10", "69900")))

	require.NoError(t, book.Receive(ctx, marketOrder("m1", domain.SideSell, "15")))

	trades := sink.all()
	require.Len(t, trades, 2)
	assert.True(t, trades[0].Price.Equal(d("70000")), "highest bid fills first")
	assert.True(t, trades[1].Price.Equal(d("69900")))
	assert.True(t, trades[1].Quantity.Equal(d("5")))
}

func TestQuantityConservation(t *testing.T) {
	book, sink := newTestBook()
	ctx := context.Background()

	require.NoError(t, book.Receive(ctx, limitOrder("s1", domain.SideSell, "40", "70000")))
	require.NoError(t, book.Receive(ctx, limitOrder("s2", domain.SideSell, "25", "70100")))

	incoming := limitOrder("b1", domain.SideBuy, "50", "70100")
	require.NoError(t, book.Receive(ctx, incoming))

	executed := decimal.Zero
	for _, trade := range sink.all() {
		executed = executed.Add(trade.Quantity)
	}
	assert.True(t, executed.Add(incoming.RemainingQuantity).Equal(d("50")),
		"executed + remaining must equal the original quantity")
	assert.True(t, incoming.Filled())
}

func TestBookNeverCrossed(t *testing.T) {
	book, _ := newTestBook()
	ctx := context.Background()

	require.NoError(t, book.Receive(ctx, limitOrder("s1", domain.SideSell, "10", "70000")))
	require.NoError(t, book.Receive(ctx, limitOrder("b1", domain.SideBuy, "5", "70500")))
	require.NoError(t, book.Receive(ctx, limitOrder("b2", domain.SideBuy, "10", "69000")))

	snap := book.Snapshot()
	for _, sell := range snap.SellOrders {
		for _, buy := range snap.BuyOrders {
			assert.True(t, sell.Price.GreaterThan(buy.Price),
				"resting ask %s must exceed resting bid %s", sell.Price, buy.Price)
		}
	}
}

func TestNonPositivePriceNeverRests(t *testing.T) {
	book, sink := newTestBook()

	zero := limitOrder("b1", domain.SideBuy, "10", "0")
	require.NoError(t, book.Receive(context.Background(), zero))

	assert.Empty(t, sink.all())
	summary := book.Summary()
	assert.Equal(t, 0, summary.BuyCount)
	assert.Equal(t, 0, summary.SellCount)
}

func TestDepthAggregatesLevels(t *testing.T) {
	book, _ := newTestBook()
	ctx := context.Background()

	require.NoError(t, book.Receive(ctx, limitOrder("s1", domain.SideSell, "10", "70200")))
	require.NoError(t, book.Receive(ctx, limitOrder("s2", domain.SideSell, "5", "70100")))
	require.NoError(t, book.Receive(ctx, limitOrder("s3", domain.SideSell, "5", "70100")))
	require.NoError(t, book.Receive(ctx, limitOrder("b1", domain.SideBuy, "20", "70000")))
	require.NoError(t, book.Receive(ctx, limitOrder("b2", domain.SideBuy, "10", "69900")))

	view := book.Depth(10)

	require.Len(t, view.SellLevels, 2)
	// Sell levels are reported farthest first, best ask last.
	assert.True(t, view.SellLevels[0].Price.Equal(d("70200")))
	assert.True(t, view.SellLevels[1].Price.Equal(d("70100")))
	assert.True(t, view.SellLevels[1].Quantity.Equal(d("10")))
	assert.Equal(t, 2, view.SellLevels[1].OrderCount)

	require.Len(t, view.BuyLevels, 2)
	assert.True(t, view.BuyLevels[0].Price.Equal(d("70000")), "best bid first")
	assert.True(t, view.BuyLevels[1].Price.Equal(d("69900")))
}

func TestDepthRespectsLevelCap(t *testing.T) {
	book, _ := newTestBook()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		price := decimal.NewFromInt(70000 + int64(i)*100)
		order := limitOrder("s", domain.SideSell, "1", price.String())
		order.ID = order.ID + price.String()
		require.NoError(t, book.Receive(ctx, order))
	}

	view := book.Depth(3)
	require.Len(t, view.SellLevels, 3)
	// The three best asks, farthest of them first.
	assert.True(t, view.SellLevels[0].Price.Equal(d("70200")))
	assert.True(t, view.SellLevels[2].Price.Equal(d("70000")))
}

func TestReceiveWithDepthReflectsPostMatchState(t *testing.T) {
	book, _ := newTestBook()
	ctx := context.Background()

	require.NoError(t, book.Receive(ctx, limitOrder("s1", domain.SideSell, "30", "70000")))

	view, err := book.ReceiveWithDepth(ctx, limitOrder("b1", domain.SideBuy, "30", "70000"), 10)
	require.NoError(t, err)
	assert.Empty(t, view.SellLevels, "the ask was fully consumed by this order")
	assert.Empty(t, view.BuyLevels)
}

func TestSnapshotIsACopy(t *testing.T) {
	book, _ := newTestBook()
	ctx := context.Background()

	require.NoError(t, book.Receive(ctx, limitOrder("b1", domain.SideBuy, "50", "70000")))

	snap := book.Snapshot()
	snap.BuyOrders[0].Orders[0].RemainingQuantity = d("1")

	again := book.Snapshot()
	assert.True(t, again.BuyOrders[0].Orders[0].RemainingQuantity.Equal(d("50")))
}
