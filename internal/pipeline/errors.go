package pipeline

import "errors"

var (
	// ErrProxyPoolTooSmall is returned when there are fewer proxies than targets.
	ErrProxyPoolTooSmall = errors.New("not enough proxies for all targets")

	// ErrTargetNotFound is returned when a requested target id is not in the table.
	ErrTargetNotFound = errors.New("target not found")

	// ErrProxyNotFound is returned when a requested proxy id is not in the table.
	ErrProxyNotFound = errors.New("proxy not found")

	// ErrCrawlFault wraps every error that ends a crawl session.
	ErrCrawlFault = errors.New("crawl session failed")
)
