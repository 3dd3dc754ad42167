package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/iconscan/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchProcessor checks several targets, each in its own pipeline.
// It uses errgroup to manage goroutines and respect the concurrency limit.
//
// Design decision: Concurrency lives here and never inside a pipeline.
// A single run stays sequential; only independent targets overlap.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each target.
	pipelineFactory func(target string) *Pipeline

	// concurrency is the maximum number of targets checked at once.
	concurrency int

	// logger is used for batch-level logging.
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

// WithConcurrency sets the maximum number of concurrent runs.
// Default is 1, which checks targets one after another.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each target so that no
// state leaks between runs. It receives the target so per-site settings
// such as headers and cookies can be applied.
func NewBatchProcessor(pipelineFactory func(target string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     1,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatchWithCallback checks every target and calls callback as each
// run completes, so callers can persist or print a report without waiting
// for the whole batch. The callback runs on the goroutine that finished the
// run and must be safe for concurrent use when concurrency is above 1.
//
// A failed run does not stop the others; its error is recorded in its
// report. The returned error is non-nil only when ctx was cancelled before
// every run started; the callback is never called for unstarted targets.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(report *model.IconScanReport, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("checking target",
				"target", target,
				"index", i+1,
				"total", len(targets),
			)

			report := model.NewIconScanReport(target)
			if err := bp.pipelineFactory(target).Execute(ctx, report); err != nil {
				// Run errors stay in the report; other targets continue.
				bp.logger.Warn("check failed",
					"target", target,
					"error", err,
				)
			} else {
				bp.logger.Info("check completed",
					"target", target,
					"findings", len(report.Findings),
				)
			}

			callback(report, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)
	return err
}
