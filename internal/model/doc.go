// Package model defines the data structures shared across the crawler.
//
// This package contains the following main types:
//   - CatalogTarget and ProxyEndpoint: one unit of work and its outbound proxy
//   - CrawlState: the links, records and cookies owned by one crawl session
//   - TireRecord and DiskRecord: extracted listings, tagged by ItemKind
//   - SessionOutcome and RunSummary: what the ledger and reports consume
//
// Models carry json tags for checkpoints and reports, and xml tags where
// they appear in the exported product documents.
package model
