// Package history records executed trades and derives per-symbol market
// data from them: a bounded recent-trade ring, a bounded series of
// fixed-interval OHLC candles, and the incremental chart updates pushed to
// subscribers. Durable persistence and bus publishes run on a dedicated
// writer goroutine so the matching path never blocks on I/O while trade
// order per symbol is preserved.
package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/krxlab/stockcore/internal/domain"
)

// Config bounds the in-memory market data kept per symbol.
type Config struct {
	// CandleIntervalSeconds is the fixed candle bucket width.
	CandleIntervalSeconds int64
	// CandleKeep is the maximum number of candles retained per symbol.
	CandleKeep int
	// TradeRingSize is the maximum number of recent trades retained per
	// symbol.
	TradeRingSize int
	// DefaultPrice seeds a candle series when no trade has ever been seen
	// for the symbol.
	DefaultPrice float64
	// JournalBuffer sizes the queue between the matching path and the
	// persistence/publish writer.
	JournalBuffer int
}

// symbolState is all mutable market data for one symbol. Its mutex makes
// trade-driven updates and ticker-driven rolls mutually exclusive, which
// is what keeps the current-candle slot consistent.
type symbolState struct {
	mu      sync.Mutex
	trades  []domain.Trade
	candles []domain.Candle
}

// journalEntry is one unit of deferred I/O: persist the trade, refresh the
// last-price cache, push the chart update.
type journalEntry struct {
	trade  domain.Trade
	update domain.ChartUpdate
}

// Recorder implements the trade-history and candle-aggregation core.
type Recorder struct {
	store  domain.TradeStore
	bus    domain.SignalBus
	prices domain.LastPriceCache // optional
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	symbols map[string]*symbolState

	journal chan journalEntry
}

// NewRecorder creates a Recorder. prices may be nil when no last-price
// cache is configured.
func NewRecorder(store domain.TradeStore, bus domain.SignalBus, prices domain.LastPriceCache, cfg Config, logger *slog.Logger) *Recorder {
	if cfg.JournalBuffer <= 0 {
		cfg.JournalBuffer = 4096
	}
	return &Recorder{
		store:   store,
		bus:     bus,
		prices:  prices,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "history")),
		symbols: make(map[string]*symbolState),
		journal: make(chan journalEntry, cfg.JournalBuffer),
	}
}

// Track registers a symbol so its candle series is seeded and rolled even
// before the first order arrives.
func (r *Recorder) Track(symbol string) {
	r.state(symbol)
}

// Symbols returns every symbol the recorder has seen, in no particular
// order.
func (r *Recorder) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.symbols))
	for s := range r.symbols {
		out = append(out, s)
	}
	return out
}

func (r *Recorder) state(symbol string) *symbolState {
	r.mu.RLock()
	st, ok := r.symbols[symbol]
	r.mu.RUnlock()
	if ok {
		return st
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok = r.symbols[symbol]; ok {
		return st
	}
	st = &symbolState{}
	r.symbols[symbol] = st
	return st
}

// RecordTrade ingests one executed trade: it is appended to the symbol's
// recent-trade ring (oldest evicted past the bound), folded into the
// current candle, and journaled for persistence and chart publishing. The
// in-memory work is synchronous; all I/O is deferred to the writer
// goroutine in arrival order.
func (r *Recorder) RecordTrade(ctx context.Context, trade domain.Trade) {
	st := r.state(trade.Symbol)

	st.mu.Lock()
	st.trades = append(st.trades, trade)
	for len(st.trades) > r.cfg.TradeRingSize {
		st.trades[0] = domain.Trade{}
		st.trades = st.trades[1:]
	}
	r.foldTradeLocked(st, trade)
	st.mu.Unlock()

	entry := journalEntry{
		trade: trade,
		update: domain.ChartUpdate{
			Symbol: trade.Symbol,
			Price:  trade.Price.InexactFloat64(),
			Volume: trade.Quantity.InexactFloat64(),
		},
	}

	select {
	case r.journal <- entry:
	case <-ctx.Done():
		r.logger.Warn("dropping trade journal entry, context cancelled",
			slog.String("trade_id", trade.ID),
		)
	}
}

// foldTradeLocked replaces the current candle with a fresh value carrying
// the trade: open unchanged, high/low widened to include the price, close
// set to it, volume incremented. No-op while the symbol has no candle
// series yet; the next roll seeds it from the trade ring.
func (r *Recorder) foldTradeLocked(st *symbolState, trade domain.Trade) {
	if len(st.candles) == 0 {
		return
	}
	price := trade.Price.InexactFloat64()
	current := st.candles[len(st.candles)-1]
	updated := domain.Candle{
		Time:   current.Time,
		Open:   current.Open,
		High:   max(current.High, price),
		Low:    min(current.Low, price),
		Close:  price,
		Volume: current.Volume + trade.Quantity.InexactFloat64(),
	}
	st.candles[len(st.candles)-1] = updated
}

// RollCandle opens the time bucket containing now for one symbol. An empty
// series is seeded with a flat zero-volume candle at the last known price;
// otherwise a carry-forward bar opens at the previous close. The series is
// trimmed to the configured bound, oldest first.
func (r *Recorder) RollCandle(ctx context.Context, symbol string, nowEpoch int64) {
	st := r.state(symbol)
	bucket := nowEpoch - nowEpoch%r.cfg.CandleIntervalSeconds

	st.mu.Lock()
	if len(st.candles) > 0 {
		prev := st.candles[len(st.candles)-1]
		st.candles = append(st.candles, flatCandle(bucket, prev.Close))
		if excess := len(st.candles) - r.cfg.CandleKeep; excess > 0 {
			st.candles = append([]domain.Candle(nil), st.candles[excess:]...)
		}
		st.mu.Unlock()
		return
	}
	seed, ok := lastTradePriceLocked(st)
	st.mu.Unlock()

	if !ok {
		seed = r.cachedPrice(ctx, symbol)
	}

	st.mu.Lock()
	if len(st.candles) == 0 {
		st.candles = append(st.candles, flatCandle(bucket, seed))
	}
	st.mu.Unlock()
}

// RollAll rolls every tracked symbol for the bucket containing now.
func (r *Recorder) RollAll(ctx context.Context, nowEpoch int64) {
	for _, symbol := range r.Symbols() {
		r.RollCandle(ctx, symbol, nowEpoch)
	}
}

// cachedPrice consults the last-price cache, falling back to the
// configured default. Called without holding any symbol lock because the
// cache lookup is I/O.
func (r *Recorder) cachedPrice(ctx context.Context, symbol string) float64 {
	if r.prices == nil {
		return r.cfg.DefaultPrice
	}
	price, _, err := r.prices.GetPrice(ctx, symbol)
	if err != nil {
		return r.cfg.DefaultPrice
	}
	return price
}

func lastTradePriceLocked(st *symbolState) (float64, bool) {
	if len(st.trades) == 0 {
		return 0, false
	}
	return st.trades[len(st.trades)-1].Price.InexactFloat64(), true
}

func flatCandle(bucket int64, price float64) domain.Candle {
	return domain.Candle{
		Time:   bucket,
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
		Volume: 0,
	}
}

// ChartHistory returns a defensive copy of the symbol's candle series,
// oldest to newest.
func (r *Recorder) ChartHistory(symbol string) domain.ChartHistory {
	st := r.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()
	return domain.ChartHistory{
		Symbol:  symbol,
		Candles: append([]domain.Candle(nil), st.candles...),
	}
}

// LastTrade returns the most recent trade for the symbol, if any.
func (r *Recorder) LastTrade(symbol string) (domain.Trade, bool) {
	st := r.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.trades) == 0 {
		return domain.Trade{}, false
	}
	return st.trades[len(st.trades)-1], true
}

// RecentTrades returns a copy of the symbol's recent-trade ring, oldest to
// newest.
func (r *Recorder) RecentTrades(symbol string) []domain.Trade {
	st := r.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]domain.Trade(nil), st.trades...)
}

// TradeHistory returns every persisted trade from the durable store.
func (r *Recorder) TradeHistory(ctx context.Context) ([]domain.Trade, error) {
	return r.store.FindAll(ctx)
}

// PublishChartHistory pushes the full candle series for a symbol to its
// candle topic.
func (r *Recorder) PublishChartHistory(ctx context.Context, symbol string) {
	history := r.ChartHistory(symbol)
	payload, err := json.Marshal(history)
	if err != nil {
		r.logger.Error("marshal chart history", slog.String("symbol", symbol), slog.String("error", err.Error()))
		return
	}
	if err := r.bus.Publish(ctx, domain.CandleTopic(symbol), payload); err != nil {
		r.logger.Warn("publish chart history",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
}

// Run drains the journal until ctx is cancelled: each entry is persisted,
// reflected in the last-price cache, and pushed to the chart topic. A
// single consumer keeps trades visible in execution order; failures are
// logged and never undo the match.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-r.journal:
			r.flush(ctx, entry)
		}
	}
}

func (r *Recorder) flush(ctx context.Context, entry journalEntry) {
	if err := r.store.Insert(ctx, entry.trade); err != nil {
		r.logger.Error("persist trade",
			slog.String("trade_id", entry.trade.ID),
			slog.String("symbol", entry.trade.Symbol),
			slog.String("error", err.Error()),
		)
	}

	if r.prices != nil {
		if err := r.prices.SetPrice(ctx, entry.trade.Symbol, entry.update.Price, entry.trade.ExecutedAt); err != nil {
			r.logger.Warn("update last price cache",
				slog.String("symbol", entry.trade.Symbol),
				slog.String("error", err.Error()),
			)
		}
	}

	payload, err := json.Marshal(entry.update)
	if err != nil {
		r.logger.Error("marshal chart update", slog.String("symbol", entry.trade.Symbol), slog.String("error", err.Error()))
		return
	}
	if err := r.bus.Publish(ctx, domain.ChartTopic(entry.trade.Symbol), payload); err != nil {
		r.logger.Warn("publish chart update",
			slog.String("symbol", entry.trade.Symbol),
			slog.String("error", err.Error()),
		)
	}
}
