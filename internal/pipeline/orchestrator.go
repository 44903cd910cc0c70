package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/krxlab/stockcore/internal/history"
)

// Orchestrator manages the background goroutines around the matching
// core: the trade journal writer, the candle ticker, and the archive cron.
type Orchestrator struct {
	recorder     *history.Recorder
	candleTicker *CandleTicker
	archiver     *Archiver // nil when cold storage is not configured
	archiveCron  string
	logger       *slog.Logger
}

// NewOrchestrator creates a new Orchestrator. archiver may be nil, in
// which case the archive cron is not started.
func NewOrchestrator(
	recorder *history.Recorder,
	candleTicker *CandleTicker,
	archiver *Archiver,
	archiveCron string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		recorder:     recorder,
		candleTicker: candleTicker,
		archiver:     archiver,
		archiveCron:  archiveCron,
		logger:       logger.With(slog.String("component", "orchestrator")),
	}
}

// Run starts all background loops as concurrent goroutines using an
// errgroup. Each goroutine respects ctx cancellation. If any goroutine
// returns a non-context error, the errgroup cancels the shared context and
// Run returns that error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		o.logger.Info("starting trade journal writer")
		err := o.recorder.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("trade journal writer: %w", err)
	})

	g.Go(func() error {
		o.logger.Info("starting candle ticker")
		err := o.candleTicker.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("candle ticker: %w", err)
	})

	if o.archiver != nil {
		g.Go(func() error {
			o.logger.Info("starting archiver cron")
			err := o.archiver.RunCron(ctx, o.archiveCron)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	err := g.Wait()
	if err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
