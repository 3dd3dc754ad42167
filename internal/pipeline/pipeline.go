package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/iconscan/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the accumulated
// report from previous steps.
type Step interface {
	// Do executes the pipeline step.
	// Recoverable problems are recorded as findings and Do returns nil.
	// A returned error aborts the run.
	Do(ctx context.Context, report *model.IconScanReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order until one fails or the run reaches a
// terminal branch.
//
// On success the report ends in StateDone with Branch recording which
// branch was taken. On failure the report ends in StateFailed and the
// step's error is returned unchanged so callers can inspect it with
// errors.Is and errors.As.
func (p *Pipeline) Execute(ctx context.Context, report *model.IconScanReport) error {
	start := time.Now()
	defer func() {
		report.Duration = time.Since(start)
	}()

	p.logger.Debug("starting pipeline",
		"target", report.Target,
		"step_count", p.StepCount(),
		"steps", p.StepNames(),
	)

	for _, step := range p.steps {
		// Check for cancellation before starting each step
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			report.Fail(ctx.Err())
			return ctx.Err()
		default:
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"target", report.Target,
		)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"target", report.Target,
				"error", err,
			)
			report.PerformedSteps = append(report.PerformedSteps, step.Name())
			report.Fail(err)
			return err
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"target", report.Target,
			"state", report.State,
		)
		report.PerformedSteps = append(report.PerformedSteps, step.Name())

		if report.State.Terminal() {
			p.logger.Debug("run reached terminal branch",
				"target", report.Target,
				"branch", report.State,
			)
			break
		}
	}

	report.Advance(model.StateDone)
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
