package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/catalogcrawler/internal/checkpoint"
	"github.com/nao1215/catalogcrawler/internal/crawler"
	"github.com/nao1215/catalogcrawler/internal/export"
	"github.com/nao1215/catalogcrawler/internal/model"
	"github.com/nao1215/catalogcrawler/internal/notify"
	"github.com/nao1215/catalogcrawler/internal/session"
	"github.com/nao1215/catalogcrawler/internal/transport"
)

// Assignment pairs a catalog target with the proxy that crawls it.
type Assignment struct {
	Target model.CatalogTarget
	Proxy  model.ProxyEndpoint
}

// Exporter writes the records of a finished target.
type Exporter interface {
	Write(id string, tires []model.TireRecord, disks []model.DiskRecord) (export.Files, error)
}

// Deps are the collaborators shared by every crawl session of a run.
type Deps struct {
	Pool      *transport.ProxyPool
	Factory   transport.ClientFactory
	Store     checkpoint.Store
	Exporter  Exporter
	Notifier  notify.Notifier
	Extractor crawler.Extractor

	// SessionOptions configure each HTTP session, e.g. the solver.
	SessionOptions []session.Option

	// CrawlerOptions configure the paginator and the item crawler.
	CrawlerOptions []crawler.Option

	Logger *slog.Logger
	Now    func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// CrawlSession crawls one target through one proxy from start to release.
type CrawlSession struct {
	runID  string
	a      Assignment
	deps   Deps
	logger *slog.Logger
}

// NewCrawlSession creates a session. The proxy must already be held in deps.Pool;
// the session returns it when it ends.
func NewCrawlSession(runID string, a Assignment, deps Deps) *CrawlSession {
	return &CrawlSession{
		runID:  runID,
		a:      a,
		deps:   deps,
		logger: deps.logger().With("target", a.Target.ID, "proxy", a.Proxy.ID),
	}
}

// Run executes the session and returns its outcome. The returned error
// wraps ErrCrawlFault.
func (s *CrawlSession) Run(ctx context.Context) (model.SessionOutcome, error) {
	report := NewSessionReport(s.runID, s.a, s.deps.now())
	s.logger.Info("crawl session started", "url", s.a.Target.URL)

	err := s.run(ctx, report)
	return report.Outcome(err, s.deps.now()), err
}

func (s *CrawlSession) run(ctx context.Context, report *SessionReport) (err error) {
	opts := append([]session.Option{}, s.deps.SessionOptions...)
	opts = append(opts, session.WithLogger(s.logger))

	hs, err := session.New(s.deps.Pool, s.a.Proxy, s.deps.Factory, opts...)
	if err != nil {
		s.deps.Pool.Release(s.a.Proxy.ID)
		return s.fail(fmt.Errorf("create http session: %w", err))
	}
	defer func() {
		err = s.release(ctx, hs, report, err)
	}()

	return s.pipeline(hs).Execute(ctx, report)
}

func (s *CrawlSession) pipeline(hs *session.Session) *Pipeline {
	copts := append([]crawler.Option{}, s.deps.CrawlerOptions...)
	copts = append(copts, crawler.WithLogger(s.logger))
	url := s.a.Target.URL

	p := New(WithLogger(s.logger))
	p.AddSteps(
		NewLoadCheckpointStep(s.deps.Store, hs, s.logger),
		NewHarvestStep(crawler.NewPaginator(hs, url, copts...), s.deps.Store, hs, s.logger),
		NewCrawlItemsStep(crawler.NewItemCrawler(hs, s.deps.Extractor, url, copts...)),
	)
	return p
}

// release persists what the session produced and closes it.
// runErr is the result of the steps; the result of the session is returned.
func (s *CrawlSession) release(ctx context.Context, hs *session.Session, report *SessionReport, runErr error) error {
	defer hs.Close()

	report.FinalProxyID = hs.Proxy().ID
	report.Exchanges = hs.Exchanges()

	state := report.State
	if state == nil {
		// The checkpoint could not be read; leave it untouched.
		return s.fail(runErr)
	}

	id := report.Target.ID
	state.Cookies = hs.Cookies()
	if err := s.deps.Store.SaveCookies(id, state.Cookies); err != nil {
		s.logger.Warn("failed to save cookies", "error", err)
	}

	if runErr == nil {
		runErr = s.deliver(ctx, report)
	}
	if runErr != nil {
		if err := s.deps.Store.SaveRecords(id, state.Tires, state.Disks); err != nil {
			s.logger.Error("failed to save records", "error", err)
		}
		if err := s.deps.Store.SaveProgress(id, state.Position, state.LastLink); err != nil {
			s.logger.Error("failed to save progress", "error", err)
		}
		return s.fail(runErr)
	}

	if err := s.deps.Store.Clear(id); err != nil {
		s.logger.Warn("failed to clear checkpoint", "error", err)
	}
	s.logger.Info("crawl session finished",
		"tires", len(state.Tires),
		"disks", len(state.Disks),
		"visited", report.Stats.Visited,
		"skipped", report.Stats.Skipped,
		"exchanges", report.Exchanges,
	)
	return nil
}

// deliver exports the records and sends the notification.
func (s *CrawlSession) deliver(ctx context.Context, report *SessionReport) error {
	files, err := s.deps.Exporter.Write(report.Target.ID, report.State.Tires, report.State.Disks)
	if err != nil {
		return fmt.Errorf("export records: %w", err)
	}
	report.Files = files

	if err := s.deps.Notifier.Notify(ctx, report.Target.URL, files.Paths()); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

func (s *CrawlSession) fail(err error) error {
	if !errors.Is(err, ErrCrawlFault) {
		err = fmt.Errorf("%w: %s: %w", ErrCrawlFault, s.a.Target.ID, err)
	}
	s.logger.Error("crawl session failed", "error", err)
	return err
}
