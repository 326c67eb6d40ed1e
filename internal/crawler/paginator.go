package crawler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nao1215/catalogcrawler/internal/model"
	"github.com/nao1215/catalogcrawler/internal/transport"
)

// Pause bounds, in whole seconds, between catalog pages.
const (
	pageScrollMin = 15
	pageScrollMax = 20
)

// Paginator collects item links from every page of one catalog.
type Paginator struct {
	options
	fetcher    Fetcher
	catalogURL string
	telemetry  *Telemetry
}

// NewPaginator creates a Paginator for the catalog at catalogURL.
func NewPaginator(fetcher Fetcher, catalogURL string, opts ...Option) *Paginator {
	o := newOptions(opts)
	return &Paginator{
		options:    o,
		fetcher:    fetcher,
		catalogURL: catalogURL,
		telemetry:  NewTelemetry(fetcher, o.origin, o.now, o.logger),
	}
}

// Harvest appends the links of every catalog page to state.Links.
// Links are kept in page order and are not deduplicated.
func (p *Paginator) Harvest(ctx context.Context, state *model.CrawlState) error {
	first, err := p.fetcher.Fetch(ctx, p.catalogURL, transport.Navigation, transport.RequestContext{})
	if err != nil {
		return fmt.Errorf("fetch catalog: %w", err)
	}

	count, err := ParseItemCount(first.Body)
	if err != nil {
		return err
	}
	pages := PageCount(count)

	links, err := ParseLinks(first.Body)
	if err != nil {
		return err
	}
	state.AppendLinks(links...)
	p.logger.Info("catalog counted", "items", count, "pages", pages, "page_links", len(links))

	if err := p.pacer.WaitSeconds(ctx, pageScrollMin, pageScrollMax); err != nil {
		return err
	}

	bg := transport.RequestContext{}
	for i := 2; i <= pages; i++ {
		target := withQuery(p.catalogURL, "_lightweight=1&ajax=1&async=1&city=0&page="+itoa(i)+"&status=actual")
		page, err := p.fetcher.Fetch(ctx, target, transport.Background, bg)
		if err != nil {
			return fmt.Errorf("fetch catalog page %d: %w", i, err)
		}
		links, err := ParseFeed(page.Body)
		if err != nil {
			return fmt.Errorf("catalog page %d: %w", i, err)
		}
		state.AppendLinks(links...)
		p.logger.Debug("catalog page harvested", "page", i, "page_links", len(links), "total_links", len(state.Links))

		ts := p.telemetry.Now()
		if err := p.telemetry.Send(ctx, Values("viewdir_ppc_good_show__in_0", ts, "keyName", "0__rel_0"), bg); err != nil {
			return err
		}
		if err := p.pacer.Wait(ctx, second); err != nil {
			return err
		}
		if err := p.telemetry.Send(ctx, Values("page_clicked", ts+millisPerSecond, "keyName", itoa(i)), bg); err != nil {
			return err
		}

		bg = bg.WithReferer(pageReferer(p.catalogURL, i))

		if err := p.pacer.WaitSeconds(ctx, pageScrollMin, pageScrollMax); err != nil {
			return err
		}
	}
	return nil
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
