package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/catalogcrawler/internal/captcha"
	"github.com/nao1215/catalogcrawler/internal/model"
	"github.com/nao1215/catalogcrawler/internal/transport"
)

const (
	defaultRetryDelay  = 5 * time.Second
	defaultMaxBodySize = 10 * 1024 * 1024
)

// Page is a fetched response with its body fully read.
type Page struct {
	// URL is the final URL after redirects.
	URL        string
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Session is a browsing session bound to one proxy at a time.
// It is used by a single goroutine.
type Session struct {
	pool    *transport.ProxyPool
	proxy   model.ProxyEndpoint
	factory transport.ClientFactory
	client  *http.Client
	solver  captcha.Solver

	userAgent      string
	defaultReferer string
	retryDelay     time.Duration
	maxBodySize    int64
	sleep          func(ctx context.Context, d time.Duration) error
	logger         *slog.Logger

	origins   []string
	exchanges int
	closed    bool
}

// Option configures a Session.
type Option func(*Session)

// WithSolver sets the challenge solver. Without one every challenge is unresolved.
func WithSolver(solver captcha.Solver) Option {
	return func(s *Session) {
		s.solver = solver
	}
}

// WithUserAgent fixes the user agent instead of picking a random mobile one.
func WithUserAgent(ua string) Option {
	return func(s *Session) {
		s.userAgent = ua
	}
}

// WithDefaultReferer sets the referer of navigation requests that carry none,
// normally the catalog URL.
func WithDefaultReferer(referer string) Option {
	return func(s *Session) {
		s.defaultReferer = referer
	}
}

// WithRetryDelay sets the pause before the single timeout retry.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Session) {
		s.retryDelay = d
	}
}

// WithMaxBodySize bounds the number of body bytes read per response.
func WithMaxBodySize(n int64) Option {
	return func(s *Session) {
		s.maxBodySize = n
	}
}

// WithSleep replaces the context-aware sleep used between retries.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Session) {
		s.sleep = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// New creates a session on proxy, which the caller must already hold in pool.
// Close returns the proxy the session ends up with to the pool.
func New(pool *transport.ProxyPool, proxy model.ProxyEndpoint, factory transport.ClientFactory, opts ...Option) (*Session, error) {
	s := &Session{
		pool:        pool,
		proxy:       proxy,
		factory:     factory,
		retryDelay:  defaultRetryDelay,
		maxBodySize: defaultMaxBodySize,
		sleep:       Sleep,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.userAgent == "" {
		s.userAgent = transport.RandomUserAgent(nil)
	}

	client, err := factory(proxy, transport.NewJar())
	if err != nil {
		return nil, err
	}
	s.client = client
	return s, nil
}

// Proxy returns the proxy the session currently uses.
func (s *Session) Proxy() model.ProxyEndpoint {
	return s.proxy
}

// Exchanges returns how many times the session replaced its proxy.
func (s *Session) Exchanges() int {
	return s.exchanges
}

// UserAgent returns the user agent sent with every request.
func (s *Session) UserAgent() string {
	return s.userAgent
}

// Cookies exports the jar for every origin the session has talked to.
func (s *Session) Cookies() []model.Cookie {
	return transport.ExportCookies(s.client.Jar, s.origins)
}

// SetCookies restores persisted cookies into the jar.
func (s *Session) SetCookies(cookies []model.Cookie) {
	for _, c := range cookies {
		s.remember(c.URL)
	}
	transport.ImportCookies(s.client.Jar, cookies)
}

// Close drops idle connections and returns the proxy to the pool.
// Calling Close more than once is a no-op.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.client.CloseIdleConnections()
	s.pool.Release(s.proxy.ID)
}

func (s *Session) remember(rawURL string) {
	origin := transport.Origin(rawURL)
	if origin == "" {
		return
	}
	for _, o := range s.origins {
		if o == origin {
			return
		}
	}
	s.origins = append(s.origins, origin)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
