package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/catalogcrawler/internal/config"
	"github.com/nao1215/catalogcrawler/internal/inventory"
	"github.com/nao1215/catalogcrawler/internal/model"
)

// Ledger records finished sessions.
type Ledger interface {
	RecordSession(ctx context.Context, outcome model.SessionOutcome) error
}

// Orchestrator pairs targets with proxies and runs their sessions.
type Orchestrator struct {
	targets     []model.CatalogTarget
	deps        Deps
	runID       string
	concurrency int
	ledger      Ledger
	logger      *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRunID sets the id recorded with every outcome.
func WithRunID(id string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.runID = id
	}
}

// WithParallelism limits concurrent sessions. 0 means no limit.
func WithParallelism(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.concurrency = n
	}
}

// WithLedger records each outcome as its session ends.
func WithLedger(l Ledger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.ledger = l
	}
}

// NewOrchestrator creates an Orchestrator over the targets and deps.Pool.
func NewOrchestrator(targets []model.CatalogTarget, deps Deps, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		targets: targets,
		deps:    deps,
		logger:  deps.logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunAll crawls every target with the proxy at the same table position.
// It returns an error only for configuration problems detected before any
// session starts; session failures are reported in the outcomes.
func (o *Orchestrator) RunAll(ctx context.Context) ([]model.SessionOutcome, error) {
	proxies := o.deps.Pool.Endpoints()
	if len(proxies) < len(o.targets) {
		return nil, config.Errorf("%w: %d proxies for %d targets",
			ErrProxyPoolTooSmall, len(proxies), len(o.targets))
	}

	assignments := make([]Assignment, 0, len(o.targets))
	for i, t := range o.targets {
		p, err := o.deps.Pool.Acquire(proxies[i].ID)
		if err != nil {
			for _, a := range assignments {
				o.deps.Pool.Release(a.Proxy.ID)
			}
			return nil, config.Errorf("%w", err)
		}
		assignments = append(assignments, Assignment{Target: t, Proxy: p})
	}

	bp := NewBatchProcessor(o.runSession,
		WithConcurrency(o.concurrency),
		WithBatchLogger(o.logger),
	)
	return bp.Process(ctx, assignments, func(outcome model.SessionOutcome, _ error) {
		o.record(ctx, outcome)
	}), nil
}

// RunOne crawls a single target with a single proxy and returns the
// session error.
func (o *Orchestrator) RunOne(ctx context.Context, targetID, proxyID string) (model.SessionOutcome, error) {
	target, ok := inventory.FindTarget(o.targets, targetID)
	if !ok {
		return model.SessionOutcome{}, config.Errorf("%w: %s", ErrTargetNotFound, targetID)
	}
	if _, ok := o.deps.Pool.Get(proxyID); !ok {
		return model.SessionOutcome{}, config.Errorf("%w: %s", ErrProxyNotFound, proxyID)
	}
	proxy, err := o.deps.Pool.Acquire(proxyID)
	if err != nil {
		return model.SessionOutcome{}, config.Errorf("%w", err)
	}

	outcome, err := o.runSession(ctx, Assignment{Target: target, Proxy: proxy})
	o.record(ctx, outcome)
	return outcome, err
}

func (o *Orchestrator) runSession(ctx context.Context, a Assignment) (model.SessionOutcome, error) {
	return NewCrawlSession(o.runID, a, o.deps).Run(ctx)
}

func (o *Orchestrator) record(ctx context.Context, outcome model.SessionOutcome) {
	if o.ledger == nil {
		return
	}
	if err := o.ledger.RecordSession(context.WithoutCancel(ctx), outcome); err != nil {
		o.logger.Warn("failed to record session", "target", outcome.TargetID, "error", err)
	}
}
