// Package crawler walks a farpost catalog the way a mobile visitor would.
//
// # Components
//
//   - Paginator: reads the item count from the catalog page, then loads
//     every further page through the lightweight feed endpoint and
//     collects item links in discovery order.
//   - ItemCrawler: visits each harvested link, classifies the item from
//     its breadcrumbs and hands tire and disk pages to the extractor.
//   - Telemetry: the background mmy.txt calls the site's own scripts
//     issue while a page is open.
//
// Both crawlers issue requests strictly one after another, separated by
// randomized pauses drawn by a Pacer. All requests go through a Fetcher,
// normally a *session.Session, so challenge handling is invisible here.
//
// # Usage
//
//	p := crawler.NewPaginator(sess, target.URL)
//	if err := p.Harvest(ctx, state); err != nil { ... }
//	c := crawler.NewItemCrawler(sess, extract.New(), target.URL)
//	stats, err := c.Crawl(ctx, state, target.ResumeFromLink)
package crawler
