package pipeline

import (
	"time"

	"github.com/nao1215/catalogcrawler/internal/crawler"
	"github.com/nao1215/catalogcrawler/internal/export"
	"github.com/nao1215/catalogcrawler/internal/model"
)

// SessionReport carries the state of one crawl session through its steps.
type SessionReport struct {
	RunID  string
	Target model.CatalogTarget
	Proxy  model.ProxyEndpoint

	// State is nil until the checkpoint has been loaded.
	State *model.CrawlState

	// Resumed is true when the checkpoint held links or records.
	Resumed bool

	Stats crawler.Stats
	Files export.Files

	// FinalProxyID is the proxy the session ended with.
	FinalProxyID string
	Exchanges    int

	// Steps lists the steps that completed.
	Steps []string

	StartedAt time.Time
}

// NewSessionReport creates a report for a session starting at startedAt.
func NewSessionReport(runID string, a Assignment, startedAt time.Time) *SessionReport {
	return &SessionReport{
		RunID:        runID,
		Target:       a.Target,
		Proxy:        a.Proxy,
		FinalProxyID: a.Proxy.ID,
		Steps:        make([]string, 0),
		StartedAt:    startedAt,
	}
}

// Outcome summarizes the report for the run ledger.
func (r *SessionReport) Outcome(err error, finishedAt time.Time) model.SessionOutcome {
	o := model.SessionOutcome{
		RunID:        r.RunID,
		TargetID:     r.Target.ID,
		TargetURL:    r.Target.URL,
		ProxyID:      r.Proxy.ID,
		FinalProxyID: r.FinalProxyID,
		Exchanges:    r.Exchanges,
		Resumed:      r.Resumed,
		Visited:      r.Stats.Visited,
		Skipped:      r.Stats.Skipped,
		Ignored:      r.Stats.Ignored,
		StartedAt:    r.StartedAt,
		FinishedAt:   finishedAt,
		Status:       model.StatusSucceeded,
	}
	if r.State != nil {
		o.Links = len(r.State.Links)
		o.Tires = len(r.State.Tires)
		o.Disks = len(r.State.Disks)
	}
	if r.Files.Tires != "" {
		o.OutputFiles = r.Files.Paths()
	}
	if err != nil {
		o.Status = model.StatusFailed
		o.Error = err.Error()
	}
	return o
}
