package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/docscrape/internal/model"
)

// DefaultBatchConcurrency is the number of seeds processed at the same time
// unless WithConcurrency says otherwise.
const DefaultBatchConcurrency = 4

// PipelineFactory builds the pipeline for one seed, so that per-site
// settings can differ between seeds.
type PipelineFactory func(seed string) *Pipeline

// BatchProcessor runs the pipeline for several seeds concurrently.
type BatchProcessor struct {
	pipelineFactory PipelineFactory

	// concurrency is the maximum number of seeds processed at once.
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

// WithConcurrency sets the maximum number of seeds processed at once.
// Values below 1 are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor that calls factory once per seed.
func NewBatchProcessor(factory PipelineFactory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: factory,
		concurrency:     DefaultBatchConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs every seed and returns the runs in input order.
//
// A failing seed does not stop the others; its error is recorded on its run.
// Seeds not started before ctx is cancelled have a nil run, and the
// context error is returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []string) ([]*model.CrawlRun, error) {
	bp.logger.Info("starting batch processing",
		"seeds", len(seeds),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	// Each goroutine writes only its own index.
	results := make([]*model.CrawlRun, len(seeds))

	err := bp.run(ctx, seeds, func(run *model.CrawlRun, index int) {
		results[index] = run
	})

	bp.logger.Info("batch processing complete",
		"seeds", len(seeds),
		"elapsed", time.Since(startTime),
	)

	return results, err
}

// ProcessBatchWithCallback runs every seed and calls callback with each
// finished run and the seed's index. callback is called from the
// goroutine that processed the seed and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	seeds []string,
	callback func(run *model.CrawlRun, index int),
) error {
	bp.logger.Info("starting batch processing with callback",
		"seeds", len(seeds),
		"concurrency", bp.concurrency,
	)

	return bp.run(ctx, seeds, callback)
}

func (bp *BatchProcessor) run(ctx context.Context, seeds []string, done func(*model.CrawlRun, int)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			bp.logger.Info("processing seed",
				"seed", seed,
				"index", i+1,
				"total", len(seeds),
			)

			run := model.NewCrawlRun(seed, 0, false)
			if err := bp.pipelineFactory(seed).Execute(ctx, run); err != nil {
				bp.logger.Warn("pipeline failed", "seed", seed, "error", err)
			} else if run.Failed() {
				bp.logger.Warn("run finished with error", "seed", seed, "error", run.ErrorMessage)
			} else {
				bp.logger.Info("run completed", "seed", seed, "pages", run.PageCount())
			}

			done(run, i)

			// The error stays on the run so the other seeds keep going.
			return nil
		})
	}

	return g.Wait()
}
