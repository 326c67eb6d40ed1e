package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/catalogcrawler/internal/session"
	"github.com/nao1215/catalogcrawler/internal/transport"
)

// DefaultOrigin is the site item links are relative to.
const DefaultOrigin = "https://www.farpost.ru"

const (
	second          = time.Second
	millisPerSecond = int64(time.Second / time.Millisecond)
)

// Fetcher performs challenge-free requests. *session.Session implements it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, profile transport.Profile, rc transport.RequestContext) (*session.Page, error)
}

// options are shared by the paginator and the item crawler.
type options struct {
	origin string
	pacer  *Pacer
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Paginator or an ItemCrawler.
type Option func(*options)

// WithOrigin sets the scheme://host item links and telemetry are resolved against.
func WithOrigin(origin string) Option {
	return func(o *options) {
		o.origin = strings.TrimRight(origin, "/")
	}
}

// WithPacer sets the pacer used between requests.
func WithPacer(p *Pacer) Option {
	return func(o *options) {
		o.pacer = p
	}
}

// WithClock sets the clock used for telemetry timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) options {
	o := options{
		origin: DefaultOrigin,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pacer == nil {
		o.pacer = NewPacer()
	}
	return o
}

// withQuery appends a raw query to base, keeping any query base already has.
func withQuery(base, query string) string {
	if strings.Contains(base, "?") {
		return base + "&" + query
	}
	return base + "?" + query
}

// pageReferer is the catalog URL of the given page, as a browser would have it.
func pageReferer(base string, page int) string {
	return withQuery(base, "page="+itoa(page))
}

// resolveLink returns the absolute URL of a harvested link.
func resolveLink(origin, link string) string {
	if u, err := url.Parse(link); err == nil && u.IsAbs() {
		return link
	}
	if !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	return origin + link
}
