// Package pipeline runs the background jobs around the matching core: the
// fixed-cadence candle roll/broadcast loop and the cold-storage archive
// cron.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/krxlab/stockcore/internal/history"
)

// CandleTicker opens a new candle bucket for every tracked symbol on a
// fixed cadence and pushes each symbol's full candle series to its candle
// topic. It runs independently of trade arrival, so chart consumers see
// carry-forward bars during quiet periods.
type CandleTicker struct {
	recorder *history.Recorder
	interval time.Duration
	logger   *slog.Logger
}

// NewCandleTicker creates a CandleTicker rolling at the given interval.
func NewCandleTicker(recorder *history.Recorder, interval time.Duration, logger *slog.Logger) *CandleTicker {
	return &CandleTicker{
		recorder: recorder,
		interval: interval,
		logger:   logger.With(slog.String("component", "candle_ticker")),
	}
}

// Run rolls candles until ctx is cancelled. The first roll happens
// immediately so freshly tracked symbols get a series without waiting a
// full interval.
func (t *CandleTicker) Run(ctx context.Context) error {
	t.logger.Info("candle ticker started", slog.Duration("interval", t.interval))

	t.tick(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("candle ticker stopped")
			return ctx.Err()
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *CandleTicker) tick(ctx context.Context) {
	now := time.Now().Unix()
	t.recorder.RollAll(ctx, now)
	for _, symbol := range t.recorder.Symbols() {
		t.recorder.PublishChartHistory(ctx, symbol)
	}
}
