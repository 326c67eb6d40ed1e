package crawler

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/catalogcrawler/internal/model"
	"github.com/nao1215/catalogcrawler/internal/transport"
)

// Pause bounds, in whole seconds, while an item page is open.
const (
	itemReadMin = 1
	itemReadMax = 10
)

// Extractor turns item pages into records.
type Extractor interface {
	Tire(body []byte) (model.TireRecord, error)
	Disk(body []byte) (model.DiskRecord, error)
}

// Stats counts what one Crawl call did.
type Stats struct {
	// Visited is the number of item pages fetched.
	Visited int
	// Skipped is the number of stale links.
	Skipped int
	Tires   int
	Disks   int
	// Ignored is the number of items that are neither tires nor disks.
	Ignored int
}

// ItemCrawler visits harvested links and accumulates records.
type ItemCrawler struct {
	options
	fetcher    Fetcher
	extractor  Extractor
	catalogURL string
	telemetry  *Telemetry
}

// NewItemCrawler creates an ItemCrawler for links harvested from catalogURL.
func NewItemCrawler(fetcher Fetcher, extractor Extractor, catalogURL string, opts ...Option) *ItemCrawler {
	o := newOptions(opts)
	return &ItemCrawler{
		options:    o,
		fetcher:    fetcher,
		extractor:  extractor,
		catalogURL: catalogURL,
		telemetry:  NewTelemetry(fetcher, o.origin, o.now, o.logger),
	}
}

// StartIndex returns the index of the first link to visit.
// A non-empty resumeFrom must be one of the harvested links. Links before
// state.Position were already processed and are never visited again, even
// when resumeFrom points before them.
func StartIndex(state *model.CrawlState, resumeFrom string) (int, error) {
	start := min(max(state.Position, 0), len(state.Links))
	if resumeFrom == "" {
		return start, nil
	}
	for i, link := range state.Links {
		if link == resumeFrom {
			return max(i, start), nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrResumeLinkNotFound, resumeFrom)
}

// Crawl visits every link from the start index on and appends tire and
// disk records to state. Stale links are skipped; any other failure stops
// the crawl and is returned with the records gathered so far kept in state.
func (c *ItemCrawler) Crawl(ctx context.Context, state *model.CrawlState, resumeFrom string) (Stats, error) {
	var stats Stats

	start, err := StartIndex(state, resumeFrom)
	if err != nil {
		return stats, err
	}
	if start > 0 {
		c.logger.Info("resuming item crawl", "index", start, "total", len(state.Links))
	}

	total := len(state.Links)
	for i := start; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		link := state.Links[i]

		err := c.visit(ctx, state, i, link, &stats)
		if errors.Is(err, ErrStaleLink) {
			c.logger.Warn("skipping stale link", "link", link, "position", i+1)
			stats.Skipped++
			state.Advance(i, link)
			continue
		}
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (c *ItemCrawler) visit(ctx context.Context, state *model.CrawlState, i int, link string, stats *Stats) error {
	pos := i + 1
	itemURL := resolveLink(c.origin, link)
	nav := transport.RequestContext{Referer: pageReferer(c.catalogURL, PageOf(pos))}
	bg := transport.RequestContext{Referer: itemURL}

	c.logger.Debug("visiting item", "position", pos, "total", len(state.Links), "link", link)
	page, err := c.fetcher.Fetch(ctx, itemURL, transport.Navigation, nav)
	if err != nil {
		return fmt.Errorf("fetch item %s: %w", link, err)
	}
	stats.Visited++

	ts := c.telemetry.Now()
	kind := Classify(page.Body)
	params, err := PageParams(page.Body)
	if err != nil {
		return err
	}

	click := Values("viewdir_item_click", ts,
		"briefType", "inline",
		"searchPos", itoa(pos),
		"accuracy", "exact",
		"bullId", ItemID(link))
	if err := c.telemetry.Send(ctx, Merge(click, params), bg); err != nil {
		return err
	}
	if err := c.pacer.Wait(ctx, second); err != nil {
		return err
	}
	if err := c.telemetry.Send(ctx, Values("viewbull_similar_block_bottom__exists", ts+millisPerSecond, "keyName", "not_show"), bg); err != nil {
		return err
	}
	if err := c.pacer.Wait(ctx, second); err != nil {
		return err
	}
	if err := c.telemetry.Send(ctx, Values("viewbull_ask_button_is_visible", ts+2*millisPerSecond), bg); err != nil {
		return err
	}

	if err := c.store(state, kind, page.Body, link, stats); err != nil {
		return err
	}
	state.Advance(i, link)

	if c.pacer.Coin() {
		if err := c.pacer.WaitSeconds(ctx, itemReadMin, itemReadMax); err != nil {
			return err
		}
		if err := c.telemetry.Send(ctx, Values("viewbull_similar_block_bottom__show", c.telemetry.Now(), "keyName", "not_show"), bg); err != nil {
			return err
		}
	}
	return c.pacer.WaitSeconds(ctx, itemReadMin, itemReadMax)
}

func (c *ItemCrawler) store(state *model.CrawlState, kind model.ItemKind, body []byte, link string, stats *Stats) error {
	switch kind {
	case model.KindTire:
		rec, err := c.extractor.Tire(body)
		if err != nil {
			return fmt.Errorf("%w: tire %s: %w", ErrExtract, link, err)
		}
		state.AddRecord(model.TireResult(rec))
		stats.Tires++
	case model.KindDisk:
		rec, err := c.extractor.Disk(body)
		if err != nil {
			return fmt.Errorf("%w: disk %s: %w", ErrExtract, link, err)
		}
		state.AddRecord(model.DiskResult(rec))
		stats.Disks++
	default:
		c.logger.Debug("item is neither a tire nor a disk", "link", link)
		stats.Ignored++
	}
	return nil
}
