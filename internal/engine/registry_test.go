package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krxlab/stockcore/internal/domain"
)

// captureBus records every published payload per topic.
type captureBus struct {
	mu   sync.Mutex
	msgs map[string][][]byte
}

func newCaptureBus() *captureBus {
	return &captureBus{msgs: make(map[string][][]byte)}
}

func (b *captureBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs[topic] = append(b.msgs[topic], payload)
	return nil
}

func (b *captureBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *captureBus) published(topic string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.msgs[topic]...)
}

func newTestRegistry() (*Registry, *tradeSink, *captureBus) {
	sink := &tradeSink{}
	bus := newCaptureBus()
	return NewRegistry(sink, bus, 10, testLogger()), sink, bus
}

func limitRequest(symbol string, side domain.Side, qty, price string) domain.OrderRequest {
	return domain.OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Kind:     domain.KindLimit,
		Quantity: d(qty),
		Price:    d(price),
	}
}

func TestPlaceOrderMatchesAndPublishesDepth(t *testing.T) {
	reg, sink, bus := newTestRegistry()
	ctx := context.Background()

	require.NoError(t, reg.PlaceOrder(ctx, limitRequest("005930", domain.SideBuy, "50", "70000")))
	require.NoError(t, reg.PlaceOrder(ctx, limitRequest("005930", domain.SideSell, "30", "70000")))

	trades := sink.all()
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Quantity.Equal(d("30")))
	assert.True(t, trades[0].Price.Equal(d("70000")))
	assert.NotEmpty(t, trades[0].BuyOrderID)
	assert.NotEmpty(t, trades[0].SellOrderID)
	assert.NotEqual(t, trades[0].BuyOrderID, trades[0].SellOrderID)

	msgs := bus.published(domain.DepthTopic("005930"))
	require.Len(t, msgs, 2, "one depth view per placement")

	var view domain.DepthView
	require.NoError(t, json.Unmarshal(msgs[1], &view))
	assert.Equal(t, "005930", view.Symbol)
	require.Len(t, view.BuyLevels, 1)
	assert.True(t, view.BuyLevels[0].Quantity.Equal(d("20")))
}

func TestPlaceOrderRejectsMisalignedPrice(t *testing.T) {
	reg, sink, bus := newTestRegistry()

	err := reg.PlaceOrder(context.Background(), limitRequest("005930", domain.SideBuy, "10", "70001"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidPrice))

	assert.Empty(t, sink.all())
	assert.Empty(t, bus.published(domain.DepthTopic("005930")), "rejected orders publish nothing")
	assert.Equal(t, 0, reg.GetSummary("005930").BuyCount)
}

func TestPlaceMarketOrderNoLiquidity(t *testing.T) {
	reg, sink, bus := newTestRegistry()
	ctx := context.Background()

	require.NoError(t, reg.PlaceOrder(ctx, limitRequest("005930", domain.SideSell, "100", "70100")))

	err := reg.PlaceOrder(ctx, domain.OrderRequest{
		Symbol:   "005930",
		Side:     domain.SideBuy,
		Kind:     domain.KindMarket,
		Quantity: d("150"),
	})
	require.Error(t, err)
	require.True(t, domain.IsNoLiquidity(err))

	var noLiq *domain.NoLiquidityError
	require.ErrorAs(t, err, &noLiq)
	assert.True(t, noLiq.Remaining.Equal(d("50")))

	trades := sink.all()
	require.Len(t, trades, 1, "the executed portion stands")
	assert.True(t, trades[0].Quantity.Equal(d("100")))

	summary := reg.GetSummary("005930")
	assert.Equal(t, 0, summary.SellCount)
	assert.Equal(t, 0, summary.BuyCount)

	msgs := bus.published(domain.DepthTopic("005930"))
	assert.Len(t, msgs, 1, "failed placements do not publish depth")
}

func TestBooksAreIndependentPerSymbol(t *testing.T) {
	reg, sink, _ := newTestRegistry()
	ctx := context.Background()

	require.NoError(t, reg.PlaceOrder(ctx, limitRequest("005930", domain.SideBuy, "10", "70000")))
	require.NoError(t, reg.PlaceOrder(ctx, limitRequest("000660", domain.SideSell, "10", "70000")))

	assert.Empty(t, sink.all(), "orders on different symbols never match each other")
	assert.Equal(t, 1, reg.GetSummary("005930").BuyCount)
	assert.Equal(t, 1, reg.GetSummary("000660").SellCount)
}

func TestConcurrentBookCreationYieldsOneBook(t *testing.T) {
	reg, _, _ := newTestRegistry()

	const goroutines = 32
	books := make([]*OrderBook, goroutines)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			books[i] = reg.Book("005930")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, books[0], books[i])
	}
}

func TestGetBookAndSnapshotViews(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()

	require.NoError(t, reg.PlaceOrder(ctx, limitRequest("005930", domain.SideSell, "10", "70100")))
	require.NoError(t, reg.PlaceOrder(ctx, limitRequest("005930", domain.SideBuy, "5", "70000")))

	view := reg.GetBook("005930")
	require.Len(t, view.SellLevels, 1)
	require.Len(t, view.BuyLevels, 1)

	snap := reg.GetSnapshot("005930")
	require.Len(t, snap.SellOrders, 1)
	require.Len(t, snap.BuyOrders, 1)
	assert.True(t, snap.SellOrders[0].Orders[0].RemainingQuantity.Equal(d("10")))
}
