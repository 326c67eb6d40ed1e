package crawler

import "errors"

var (
	// ErrStaleLink is returned for an item page without item parameters,
	// which happens when the listing was removed after harvesting.
	ErrStaleLink = errors.New("stale item link")

	// ErrResumeLinkNotFound is returned when the configured resume link is
	// not among the harvested links.
	ErrResumeLinkNotFound = errors.New("resume link not found among harvested links")

	// ErrCatalogLayout is returned when a catalog page lacks the expected markup.
	ErrCatalogLayout = errors.New("unexpected catalog layout")

	// ErrExtract is returned when a tire or disk page cannot be extracted.
	ErrExtract = errors.New("record extraction failed")
)
