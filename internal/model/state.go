package model

import "time"

// Cookie is the persisted form of one cookie from the session jar.
// URL is the origin the cookie was obtained for.
type Cookie struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
}

// CrawlState is the mutable state of one crawl session.
// It is owned by exactly one session and is never shared.
type CrawlState struct {
	// Links are catalog item paths in discovery order. Duplicates are kept.
	// The slice only grows while harvesting and is read-only afterwards.
	Links []string `json:"links"`

	// Tires accumulated so far, including those restored from a checkpoint.
	Tires []TireRecord `json:"tires"`

	// Disks accumulated so far, including those restored from a checkpoint.
	Disks []DiskRecord `json:"disks"`

	// Cookies is the exported session jar.
	Cookies []Cookie `json:"cookies"`

	// Position is the number of links whose processing finished. A resumed
	// crawl without an explicit resume link continues from here.
	Position int `json:"position"`

	// LastLink is the last link whose processing finished.
	LastLink string `json:"last_link,omitempty"`
}

// Advance records that the link at index i has been processed.
func (s *CrawlState) Advance(i int, link string) {
	s.Position = i + 1
	s.LastLink = link
}

// NewCrawlState returns an empty state.
func NewCrawlState() *CrawlState {
	return &CrawlState{
		Links:   make([]string, 0),
		Tires:   make([]TireRecord, 0),
		Disks:   make([]DiskRecord, 0),
		Cookies: make([]Cookie, 0),
	}
}

// HasLinks reports whether links have already been harvested.
func (s *CrawlState) HasLinks() bool {
	return len(s.Links) > 0
}

// AppendLinks adds harvested links in order.
func (s *CrawlState) AppendLinks(links ...string) {
	s.Links = append(s.Links, links...)
}

// AddRecord appends the record to the matching accumulator.
// KindNone records are ignored. It reports whether a record was stored.
func (s *CrawlState) AddRecord(r Record) bool {
	switch r.Kind {
	case KindTire:
		if r.Tire == nil {
			return false
		}
		s.Tires = append(s.Tires, *r.Tire)
		return true
	case KindDisk:
		if r.Disk == nil {
			return false
		}
		s.Disks = append(s.Disks, *r.Disk)
		return true
	default:
		return false
	}
}

// RecordCount returns the number of accumulated records of both kinds.
func (s *CrawlState) RecordCount() int {
	return len(s.Tires) + len(s.Disks)
}
