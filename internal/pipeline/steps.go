package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/catalogcrawler/internal/checkpoint"
	"github.com/nao1215/catalogcrawler/internal/crawler"
	"github.com/nao1215/catalogcrawler/internal/model"
)

// CookieJar is the part of the HTTP session the steps persist.
type CookieJar interface {
	Cookies() []model.Cookie
	SetCookies(cookies []model.Cookie)
}

// Harvester collects catalog links into the state.
type Harvester interface {
	Harvest(ctx context.Context, state *model.CrawlState) error
}

// ItemVisitor crawls harvested links.
type ItemVisitor interface {
	Crawl(ctx context.Context, state *model.CrawlState, resumeFrom string) (crawler.Stats, error)
}

// LoadCheckpointStep restores the state of an interrupted session.
type LoadCheckpointStep struct {
	store  checkpoint.Store
	jar    CookieJar
	logger *slog.Logger
}

// NewLoadCheckpointStep creates a LoadCheckpointStep.
func NewLoadCheckpointStep(store checkpoint.Store, jar CookieJar, logger *slog.Logger) *LoadCheckpointStep {
	return &LoadCheckpointStep{store: store, jar: jar, logger: logger}
}

// Name returns the step name.
func (s *LoadCheckpointStep) Name() string {
	return "load_checkpoint"
}

// Do loads the checkpoint and imports its cookies into the session.
func (s *LoadCheckpointStep) Do(_ context.Context, report *SessionReport) error {
	state, err := s.store.Load(report.Target.ID)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	report.State = state
	report.Resumed = state.HasLinks() || state.RecordCount() > 0

	if len(state.Cookies) > 0 {
		s.jar.SetCookies(state.Cookies)
	}
	if report.Resumed {
		s.logger.Info("resuming from checkpoint",
			"links", len(state.Links),
			"tires", len(state.Tires),
			"disks", len(state.Disks),
			"position", state.Position,
		)
	}
	return nil
}

// HarvestStep collects catalog links unless the checkpoint already had them.
type HarvestStep struct {
	harvester Harvester
	store     checkpoint.Store
	jar       CookieJar
	logger    *slog.Logger
}

// NewHarvestStep creates a HarvestStep.
func NewHarvestStep(harvester Harvester, store checkpoint.Store, jar CookieJar, logger *slog.Logger) *HarvestStep {
	return &HarvestStep{harvester: harvester, store: store, jar: jar, logger: logger}
}

// Name returns the step name.
func (s *HarvestStep) Name() string {
	return "harvest_links"
}

// Do harvests links and saves them together with the cookies.
func (s *HarvestStep) Do(ctx context.Context, report *SessionReport) error {
	state := report.State
	if state.HasLinks() {
		s.logger.Debug("links restored from checkpoint", "links", len(state.Links))
		return nil
	}

	if err := s.harvester.Harvest(ctx, state); err != nil {
		return fmt.Errorf("harvest catalog: %w", err)
	}
	s.logger.Info("catalog harvested", "links", len(state.Links))

	id := report.Target.ID
	if err := s.store.SaveLinks(id, state.Links); err != nil {
		return err
	}
	state.Cookies = s.jar.Cookies()
	return s.store.SaveCookies(id, state.Cookies)
}

// CrawlItemsStep visits every harvested link.
type CrawlItemsStep struct {
	visitor ItemVisitor
}

// NewCrawlItemsStep creates a CrawlItemsStep.
func NewCrawlItemsStep(visitor ItemVisitor) *CrawlItemsStep {
	return &CrawlItemsStep{visitor: visitor}
}

// Name returns the step name.
func (s *CrawlItemsStep) Name() string {
	return "crawl_items"
}

// Do crawls the items, starting at the configured resume link if any.
func (s *CrawlItemsStep) Do(ctx context.Context, report *SessionReport) error {
	stats, err := s.visitor.Crawl(ctx, report.State, report.Target.ResumeFromLink)
	report.Stats = stats
	return err
}
