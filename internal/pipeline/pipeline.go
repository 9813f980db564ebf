package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/docscrape/internal/model"
)

// Step is one stage of a crawl run.
type Step interface {
	// Do executes the step on run. A returned error is recorded on the run.
	Do(ctx context.Context, run *model.CrawlRun) error

	// Name returns the step's name for logging and run history.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps executing steps after one fails.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// after a step fails. The error is still recorded on the run.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
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
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence and sets run.FinishedAt when done.
//
// Cancellation is checked between steps. Without WithContinueOnError the
// first step error is returned; otherwise errors are only recorded on the
// run and Execute returns nil.
func (p *Pipeline) Execute(ctx context.Context, run *model.CrawlRun) error {
	defer func() {
		if run.FinishedAt.IsZero() {
			run.FinishedAt = time.Now()
		}
	}()

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", err,
			)
			run.SetError(err)
			return err
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"seed", run.SeedURL,
		)

		run.PerformedSteps = append(run.PerformedSteps, step.Name())

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"seed", run.SeedURL,
				"error", err,
			)
			run.SetError(err)

			if !p.continueOnError {
				return err
			}
			continue
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"seed", run.SeedURL,
		)
	}

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
