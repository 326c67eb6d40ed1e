package pipeline

import (
	"context"
	"log/slog"
)

// Step is one stage of a crawl session.
type Step interface {
	// Do executes the step. An error stops the pipeline.
	Do(ctx context.Context, report *SessionReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
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

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order and stops at the first error.
// Cancellation is checked before each step; steps handle it themselves
// while running.
func (p *Pipeline) Execute(ctx context.Context, report *SessionReport) error {
	p.logger.Debug("starting pipeline",
		"target", report.Target.ID,
		"steps", p.StepNames(),
	)
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", err,
			)
			return err
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"target", report.Target.ID,
		)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Debug("step failed",
				"step", step.Name(),
				"target", report.Target.ID,
				"error", err,
			)
			return err
		}

		report.Steps = append(report.Steps, step.Name())
	}
	return nil
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
