package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// RunFunc runs the crawl session of one assignment.
type RunFunc func(ctx context.Context, a Assignment) (model.SessionOutcome, error)

// BatchProcessor runs many crawl sessions concurrently.
type BatchProcessor struct {
	run RunFunc

	// concurrency is the maximum number of concurrent sessions; -1 means no limit.
	concurrency int

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency limits how many sessions run at once.
// Non-positive values keep the default of no limit.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor that calls run for each assignment.
func NewBatchProcessor(run RunFunc, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		run:         run,
		concurrency: -1,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// Process runs every assignment and waits for all of them. Outcomes are
// returned in assignment order. A failed session is logged and recorded in
// its outcome but does not stop the others. onDone, if not nil, is called
// from the session's goroutine as each session ends.
func (bp *BatchProcessor) Process(ctx context.Context, assignments []Assignment, onDone func(model.SessionOutcome, error)) []model.SessionOutcome {
	bp.logger.Info("starting crawl sessions",
		"sessions", len(assignments),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	// Each goroutine writes only its own slot.
	outcomes := make([]model.SessionOutcome, len(assignments))

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, a := range assignments {
		g.Go(func() error {
			outcome, err := bp.run(ctx, a)
			outcomes[i] = outcome

			if err != nil {
				bp.logger.Warn("session failed",
					"target", a.Target.ID,
					"proxy", a.Proxy.ID,
					"error", err,
				)
			}
			if onDone != nil {
				onDone(outcome, err)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // sessions never return errors to the group

	bp.logger.Info("crawl sessions complete",
		"sessions", len(assignments),
		"elapsed", time.Since(startTime),
	)
	return outcomes
}
