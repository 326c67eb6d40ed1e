// Package database provides the SQLite run ledger of the crawler.
//
// The ledger stores one row per finished crawl session and one row per
// proxy exchange, so operators can see which targets failed, how many
// records each run produced and which proxies were burned.
//
// SQLite (via modernc.org/sqlite) keeps the ledger in a single CGO-free
// file under the XDG data directory.
package database
