package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/krxlab/stockcore/internal/domain"
	"github.com/krxlab/stockcore/internal/tick"
)

// Registry routes orders to per-symbol books. Books are created lazily on
// first touch and live for the rest of the process; creation is atomic, so
// concurrent first requests for an unseen symbol all end up on one book.
type Registry struct {
	recorder    TradeRecorder
	bus         domain.SignalBus
	depthLevels int
	logger      *slog.Logger

	mu    sync.RWMutex
	books map[string]*OrderBook
}

// NewRegistry creates a registry publishing depth views capped at
// depthLevels per side.
func NewRegistry(recorder TradeRecorder, bus domain.SignalBus, depthLevels int, logger *slog.Logger) *Registry {
	return &Registry{
		recorder:    recorder,
		bus:         bus,
		depthLevels: depthLevels,
		logger:      logger.With(slog.String("component", "registry")),
		books:       make(map[string]*OrderBook),
	}
}

// PlaceOrder validates the quoted price, builds the internal order, hands
// it to the symbol's book, and on success publishes the updated depth view
// to the symbol's depth topic. Matching errors propagate to the caller;
// publish failures are logged and do not fail the placement.
func (r *Registry) PlaceOrder(ctx context.Context, req domain.OrderRequest) error {
	if err := tick.Validate(req.Price); err != nil {
		return fmt.Errorf("engine: place order: %w", err)
	}

	order := &domain.Order{
		ID:                uuid.NewString(),
		Symbol:            req.Symbol,
		Side:              req.Side,
		Kind:              req.Kind,
		TotalQuantity:     req.Quantity,
		RemainingQuantity: req.Quantity,
		Price:             req.Price,
		AccountID:         req.AccountID,
		Timestamp:         time.Now(),
	}

	book := r.Book(req.Symbol)
	view, err := book.ReceiveWithDepth(ctx, order, r.depthLevels)
	if err != nil {
		return fmt.Errorf("engine: place order: %w", err)
	}

	r.publishDepth(ctx, view)
	return nil
}

// Book returns the symbol's order book, creating it on first access.
func (r *Registry) Book(symbol string) *OrderBook {
	r.mu.RLock()
	book, ok := r.books[symbol]
	r.mu.RUnlock()
	if ok {
		return book
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if book, ok = r.books[symbol]; ok {
		return book
	}
	book = NewOrderBook(symbol, r.recorder, r.logger)
	r.books[symbol] = book
	return book
}

// GetBook returns the aggregated depth view for a symbol.
func (r *Registry) GetBook(symbol string) domain.DepthView {
	return r.Book(symbol).Depth(r.depthLevels)
}

// GetSnapshot returns the full resting book for a symbol.
func (r *Registry) GetSnapshot(symbol string) domain.BookSnapshot {
	return r.Book(symbol).Snapshot()
}

// GetSummary returns resting-order counts per side for a symbol.
func (r *Registry) GetSummary(symbol string) domain.BookSummary {
	return r.Book(symbol).Summary()
}

func (r *Registry) publishDepth(ctx context.Context, view domain.DepthView) {
	payload, err := json.Marshal(view)
	if err != nil {
		r.logger.Error("marshal depth view", slog.String("symbol", view.Symbol), slog.String("error", err.Error()))
		return
	}
	if err := r.bus.Publish(ctx, domain.DepthTopic(view.Symbol), payload); err != nil {
		r.logger.Warn("publish depth view",
			slog.String("symbol", view.Symbol),
			slog.String("error", err.Error()),
		)
	}
}
