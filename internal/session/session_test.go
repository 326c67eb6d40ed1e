package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/catalogcrawler/internal/captcha"
	"github.com/nao1215/catalogcrawler/internal/model"
	"github.com/nao1215/catalogcrawler/internal/transport"
)

const recaptchaBody = `<html><body><form method="post">
<input type="hidden" name="s" value="S"><input type="hidden" name="t" value="T">
<div class="g-recaptcha" data-sitekey="KEY"></div></form></body></html>`

const imageBody = `<html><body><form method="post">
<input type="hidden" name="s" value="S2"><input type="hidden" name="t" value="T2">
<img src="/img.png"><input type="text" name="code"></form></body></html>`

const itemBody = `<html><body><div id="breadcrumbs">Шины</div></body></html>`

// counter tallies requests by method and path.
type counter struct {
	mu   sync.Mutex
	hits map[string]int
}

func newCounter() *counter {
	return &counter{hits: make(map[string]int)}
}

func (c *counter) add(r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits[r.Method+" "+r.URL.RequestURI()]++
}

func (c *counter) get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits[key]
}

func testPool(ids ...string) *transport.ProxyPool {
	proxies := make([]model.ProxyEndpoint, 0, len(ids))
	for _, id := range ids {
		proxies = append(proxies, model.ProxyEndpoint{ID: id, Host: "127.0.0.1", SOCKSPort: "1080"})
	}
	return transport.NewProxyPool(proxies)
}

// countingFactory wraps the direct factory and counts client builds.
func countingFactory(timeout time.Duration, builds *atomic.Int32) transport.ClientFactory {
	direct := transport.DirectClientFactory(timeout)
	return func(e model.ProxyEndpoint, jar http.CookieJar) (*http.Client, error) {
		builds.Add(1)
		return direct(e, jar)
	}
}

func newTestSession(t *testing.T, pool *transport.ProxyPool, proxyID string, factory transport.ClientFactory, opts ...Option) *Session {
	t.Helper()

	proxy, err := pool.Acquire(proxyID)
	if err != nil {
		t.Fatalf("Acquire(%s) error = %v", proxyID, err)
	}
	base := []Option{
		WithUserAgent("test-agent"),
		WithRetryDelay(0),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	s, err := New(pool, proxy, factory, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// tokenSolver answers every challenge and records the kinds it saw.
type tokenSolver struct {
	mu     sync.Mutex
	kinds  []captcha.Kind
	images [][]byte
	answer string
	err    error
}

func (ts *tokenSolver) Solve(_ context.Context, c *captcha.Challenge) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.kinds = append(ts.kinds, c.Kind)
	ts.images = append(ts.images, c.Image)
	if ts.err != nil {
		return "", ts.err
	}
	return ts.answer, nil
}

func (ts *tokenSolver) calls() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.kinds)
}

// TestFetchWithoutChallenge tests a plain fetch and the header profiles.
func TestFetchWithoutChallenge(t *testing.T) {
	t.Parallel()

	var navHeader, bgHeader atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bg" {
			bgHeader.Store(r.Header.Clone())
		} else {
			navHeader.Store(r.Header.Clone())
		}
		_, _ = w.Write([]byte(itemBody))
	}))
	defer srv.Close()

	var builds atomic.Int32
	s := newTestSession(t, testPool("1"), "1", countingFactory(time.Second, &builds),
		WithDefaultReferer("https://catalog.example/"), WithSolver(&tokenSolver{}))

	page, err := s.Fetch(context.Background(), srv.URL+"/item", transport.Navigation, transport.RequestContext{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(page.Body) != itemBody || page.StatusCode != http.StatusOK {
		t.Errorf("unexpected page %d %q", page.StatusCode, page.Body)
	}
	if _, err := s.Fetch(context.Background(), srv.URL+"/bg", transport.Background, transport.RequestContext{Referer: "https://item.example/"}); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	gotNav := navHeader.Load().(http.Header)
	gotBg := bgHeader.Load().(http.Header)
	if gotNav.Get("Referer") != "https://catalog.example/" {
		t.Errorf("navigation referer = %q", gotNav.Get("Referer"))
	}
	if gotNav.Get("User-Agent") != "test-agent" || gotNav.Get("Sec-Fetch-Mode") != "navigate" {
		t.Errorf("unexpected navigation headers %v", gotNav)
	}
	if gotBg.Get("X-Requested-With") != "XMLHttpRequest" || gotBg.Get("Referer") != "https://item.example/" {
		t.Errorf("unexpected background headers %v", gotBg)
	}
	if builds.Load() != 1 {
		t.Errorf("client builds = %d, expected 1", builds.Load())
	}
}

// TestFetchSolvesChallengeOnFirstAttempt tests that a challenge answered
// correctly needs no refresh.
func TestFetchSolvesChallengeOnFirstAttempt(t *testing.T) {
	t.Parallel()

	hits := newCounter()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.add(r)
		if r.Method == http.MethodPost {
			if err := r.ParseForm(); err != nil {
				t.Errorf("ParseForm: %v", err)
			}
			if r.PostForm.Get("s") != "S" || r.PostForm.Get("t") != "T" || r.PostForm.Get(captcha.RecaptchaField) != "TOKEN" {
				t.Errorf("unexpected answer form %v", r.PostForm)
			}
			if r.Header.Get("Referer") != srvURL(r)+"/item" {
				t.Errorf("answer referer = %q", r.Header.Get("Referer"))
			}
			_, _ = w.Write([]byte(itemBody))
			return
		}
		_, _ = w.Write([]byte(recaptchaBody))
	}))
	defer srv.Close()

	var builds atomic.Int32
	solver := &tokenSolver{answer: "TOKEN"}
	pool := testPool("1", "2")
	s := newTestSession(t, pool, "1", countingFactory(time.Second, &builds), WithSolver(solver))

	page, err := s.Fetch(context.Background(), srv.URL+"/item", transport.Navigation, transport.RequestContext{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(page.Body) != itemBody {
		t.Errorf("challenge page returned: %q", page.Body)
	}
	if solver.calls() != 1 {
		t.Errorf("solver calls = %d, expected 1", solver.calls())
	}
	if s.Exchanges() != 0 || s.Proxy().ID != "1" || builds.Load() != 1 {
		t.Errorf("unexpected refresh: exchanges=%d proxy=%s builds=%d", s.Exchanges(), s.Proxy().ID, builds.Load())
	}
	if hits.get("GET /item") != 1 || hits.get("POST /item") != 1 {
		t.Errorf("unexpected hits: get=%d post=%d", hits.get("GET /item"), hits.get("POST /item"))
	}
}

func srvURL(r *http.Request) string {
	return "http://" + r.Host
}

// TestFetchPersistingChallenge tests the refresh and the single replay.
func TestFetchPersistingChallenge(t *testing.T) {
	t.Parallel()

	t.Run("unresolved after one replay on a new proxy", func(t *testing.T) {
		t.Parallel()

		hits := newCounter()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.add(r)
			_, _ = w.Write([]byte(recaptchaBody))
		}))
		defer srv.Close()

		var builds atomic.Int32
		solver := &tokenSolver{answer: "TOKEN"}
		pool := testPool("1", "2")
		s := newTestSession(t, pool, "1", countingFactory(time.Second, &builds), WithSolver(solver))

		_, err := s.Fetch(context.Background(), srv.URL+"/item", transport.Navigation, transport.RequestContext{})
		if !errors.Is(err, ErrChallengeUnresolved) {
			t.Fatalf("expected ErrChallengeUnresolved, got %v", err)
		}
		if s.Proxy().ID != "2" || s.Exchanges() != 1 {
			t.Errorf("proxy = %s, exchanges = %d", s.Proxy().ID, s.Exchanges())
		}
		if pool.InUse("1") || !pool.InUse("2") {
			t.Error("burned proxy should be released and the new one held")
		}
		if hits.get("GET /item") != 2 {
			t.Errorf("top-level GETs = %d, expected 2", hits.get("GET /item"))
		}
		if solver.calls() != 4 || hits.get("POST /item") != 4 {
			t.Errorf("solver calls = %d, posts = %d", solver.calls(), hits.get("POST /item"))
		}
		if builds.Load() != 2 {
			t.Errorf("client builds = %d, expected 2", builds.Load())
		}
	})

	t.Run("replay succeeds with a fresh jar", func(t *testing.T) {
		t.Parallel()

		var served atomic.Int32
		var replayCookie atomic.Value
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := served.Add(1)
			if n <= 3 {
				http.SetCookie(w, &http.Cookie{Name: "sid", Value: fmt.Sprint(n), Path: "/"})
				_, _ = w.Write([]byte(recaptchaBody))
				return
			}
			replayCookie.Store(r.Header.Get("Cookie"))
			_, _ = w.Write([]byte(itemBody))
		}))
		defer srv.Close()

		var builds atomic.Int32
		s := newTestSession(t, testPool("1", "2"), "1", countingFactory(time.Second, &builds), WithSolver(&tokenSolver{answer: "x"}))

		page, err := s.Fetch(context.Background(), srv.URL+"/item", transport.Navigation, transport.RequestContext{})
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if string(page.Body) != itemBody {
			t.Errorf("unexpected body %q", page.Body)
		}
		if got := replayCookie.Load().(string); got != "" {
			t.Errorf("replay carried old cookies %q", got)
		}
		if s.Exchanges() != 1 {
			t.Errorf("exchanges = %d", s.Exchanges())
		}
	})

	t.Run("no spare proxy keeps the current one", func(t *testing.T) {
		t.Parallel()

		hits := newCounter()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.add(r)
			_, _ = w.Write([]byte(recaptchaBody))
		}))
		defer srv.Close()

		var builds atomic.Int32
		pool := testPool("1")
		s := newTestSession(t, pool, "1", countingFactory(time.Second, &builds), WithSolver(&tokenSolver{answer: "x"}))

		_, err := s.Fetch(context.Background(), srv.URL+"/item", transport.Navigation, transport.RequestContext{})
		if !errors.Is(err, ErrChallengeUnresolved) {
			t.Fatalf("expected ErrChallengeUnresolved, got %v", err)
		}
		if s.Proxy().ID != "1" || s.Exchanges() != 0 || !pool.InUse("1") {
			t.Errorf("proxy = %s, exchanges = %d", s.Proxy().ID, s.Exchanges())
		}
		if builds.Load() != 2 {
			t.Errorf("jar was not refreshed: builds = %d", builds.Load())
		}
		if hits.get("GET /item") != 2 {
			t.Errorf("top-level GETs = %d, expected 2", hits.get("GET /item"))
		}
	})

	t.Run("solver failures are not retried in a loop", func(t *testing.T) {
		t.Parallel()

		hits := newCounter()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.add(r)
			_, _ = w.Write([]byte(recaptchaBody))
		}))
		defer srv.Close()

		var builds atomic.Int32
		solver := &tokenSolver{err: captcha.ErrSolverFailed}
		s := newTestSession(t, testPool("1", "2"), "1", countingFactory(time.Second, &builds), WithSolver(solver))

		_, err := s.Fetch(context.Background(), srv.URL+"/item", transport.Navigation, transport.RequestContext{})
		if !errors.Is(err, ErrChallengeUnresolved) {
			t.Fatalf("expected ErrChallengeUnresolved, got %v", err)
		}
		if solver.calls() != 4 {
			t.Errorf("solver calls = %d, expected 4", solver.calls())
		}
		if hits.get("POST /item") != 0 {
			t.Errorf("nothing should be posted without an answer")
		}
	})

	t.Run("no solver", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(recaptchaBody))
		}))
		defer srv.Close()

		s := newTestSession(t, testPool("1"), "1", transport.DirectClientFactory(time.Second))
		if _, err := s.Fetch(context.Background(), srv.URL+"/item", transport.Navigation, transport.RequestContext{}); !errors.Is(err, ErrChallengeUnresolved) {
			t.Fatalf("expected ErrChallengeUnresolved, got %v", err)
		}
	})
}

// TestFetchImageFallback tests the f=1 refetch when a Recaptcha challenge
// turns into an image challenge.
func TestFetchImageFallback(t *testing.T) {
	t.Parallel()

	hits := newCounter()
	var answer atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.add(r)
		switch {
		case r.URL.Path == "/img.png":
			_, _ = w.Write([]byte("PNGDATA"))
		case r.Method == http.MethodPost && r.URL.Query().Get("f") == "1":
			_ = r.ParseForm()
			answer.Store(r.PostForm.Get("code"))
			_, _ = w.Write([]byte(itemBody))
		case r.Method == http.MethodPost:
			_, _ = w.Write([]byte(imageBody))
		case r.URL.Query().Get("f") == "1":
			_, _ = w.Write([]byte(imageBody))
		default:
			_, _ = w.Write([]byte(recaptchaBody))
		}
	}))
	defer srv.Close()

	solver := &tokenSolver{answer: "42"}
	var builds atomic.Int32
	s := newTestSession(t, testPool("1"), "1", countingFactory(time.Second, &builds), WithSolver(solver))

	page, err := s.Fetch(context.Background(), srv.URL+"/item", transport.Navigation, transport.RequestContext{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(page.Body) != itemBody {
		t.Errorf("unexpected body %q", page.Body)
	}
	if hits.get("GET /item?f=1") != 1 {
		t.Error("fallback fetch not issued")
	}
	if got, _ := answer.Load().(string); got != "42" {
		t.Errorf("image answer = %q", got)
	}
	if len(solver.kinds) != 2 || solver.kinds[0] != captcha.KindRecaptcha || solver.kinds[1] != captcha.KindNormal {
		t.Errorf("solver kinds = %v", solver.kinds)
	}
	if string(solver.images[1]) != "PNGDATA" {
		t.Errorf("image bytes = %q", solver.images[1])
	}
	if builds.Load() != 1 {
		t.Errorf("no refresh expected, builds = %d", builds.Load())
	}
}

// TestFetchTimeoutRetry tests the single retry after a timeout.
func TestFetchTimeoutRetry(t *testing.T) {
	t.Parallel()

	slowHandler := func(slowCalls int32, served *atomic.Int32) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if served.Add(1) <= slowCalls {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
				return
			}
			_, _ = w.Write([]byte("late but fine"))
		}
	}

	t.Run("second attempt result is returned", func(t *testing.T) {
		t.Parallel()

		var served atomic.Int32
		srv := httptest.NewServer(slowHandler(1, &served))
		defer srv.Close()

		var slept []time.Duration
		s := newTestSession(t, testPool("1"), "1", transport.DirectClientFactory(100*time.Millisecond),
			WithRetryDelay(5*time.Second),
			WithSleep(func(_ context.Context, d time.Duration) error {
				slept = append(slept, d)
				return nil
			}))

		page, err := s.Fetch(context.Background(), srv.URL+"/", transport.Navigation, transport.RequestContext{})
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if string(page.Body) != "late but fine" {
			t.Errorf("unexpected body %q", page.Body)
		}
		if served.Load() != 2 {
			t.Errorf("attempts = %d, expected 2", served.Load())
		}
		if len(slept) != 1 || slept[0] != 5*time.Second {
			t.Errorf("retry delays = %v", slept)
		}
	})

	t.Run("second timeout is a network error", func(t *testing.T) {
		t.Parallel()

		var served atomic.Int32
		srv := httptest.NewServer(slowHandler(10, &served))
		defer srv.Close()

		s := newTestSession(t, testPool("1"), "1", transport.DirectClientFactory(100*time.Millisecond))
		_, err := s.Fetch(context.Background(), srv.URL+"/", transport.Navigation, transport.RequestContext{})
		if !errors.Is(err, ErrNetwork) {
			t.Fatalf("expected ErrNetwork, got %v", err)
		}
		if served.Load() != 2 {
			t.Errorf("attempts = %d, expected 2", served.Load())
		}
	})

	t.Run("parent deadline is not retried", func(t *testing.T) {
		t.Parallel()

		var served atomic.Int32
		srv := httptest.NewServer(slowHandler(10, &served))
		defer srv.Close()

		calls := 0
		s := newTestSession(t, testPool("1"), "1", transport.DirectClientFactory(5*time.Second),
			WithSleep(func(context.Context, time.Duration) error {
				calls++
				return nil
			}))
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		_, err := s.Fetch(ctx, srv.URL+"/", transport.Navigation, transport.RequestContext{})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected context.DeadlineExceeded, got %v", err)
		}
		if calls != 0 || served.Load() != 1 {
			t.Errorf("retry delays = %d, attempts = %d, expected no retry", calls, served.Load())
		}
	})

	t.Run("refused connection is not retried", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		calls := 0
		s := newTestSession(t, testPool("1"), "1", transport.DirectClientFactory(time.Second),
			WithSleep(func(context.Context, time.Duration) error {
				calls++
				return nil
			}))
		_, err := s.Fetch(context.Background(), addr+"/", transport.Navigation, transport.RequestContext{})
		if !errors.Is(err, ErrNetwork) {
			t.Fatalf("expected ErrNetwork, got %v", err)
		}
		if calls != 0 {
			t.Errorf("unexpected retry")
		}
	})
}

// TestSessionCookies tests cookie export and import.
func TestSessionCookies(t *testing.T) {
	t.Parallel()

	var seen atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/set" {
			http.SetCookie(w, &http.Cookie{Name: "ring", Value: "abc", Path: "/"})
		}
		seen.Store(r.Header.Get("Cookie"))
	}))
	defer srv.Close()

	pool := testPool("1", "2")
	first := newTestSession(t, pool, "1", transport.DirectClientFactory(time.Second))
	if _, err := first.Fetch(context.Background(), srv.URL+"/set", transport.Navigation, transport.RequestContext{}); err != nil {
		t.Fatal(err)
	}
	cookies := first.Cookies()
	if len(cookies) != 1 || cookies[0].Name != "ring" || cookies[0].Value != "abc" {
		t.Fatalf("Cookies() = %+v", cookies)
	}

	second := newTestSession(t, pool, "2", transport.DirectClientFactory(time.Second))
	second.SetCookies(cookies)
	if _, err := second.Fetch(context.Background(), srv.URL+"/check", transport.Navigation, transport.RequestContext{}); err != nil {
		t.Fatal(err)
	}
	if got := seen.Load().(string); got != "ring=abc" {
		t.Errorf("restored cookie header = %q", got)
	}
}

// TestSessionClose tests that Close returns the proxy to the pool once.
func TestSessionClose(t *testing.T) {
	t.Parallel()

	pool := testPool("1")
	proxy, _ := pool.Acquire("1")
	s, err := New(pool, proxy, func(model.ProxyEndpoint, http.CookieJar) (*http.Client, error) {
		jar, _ := cookiejar.New(nil)
		return &http.Client{Jar: jar}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.UserAgent() == "" {
		t.Error("a random user agent should be chosen")
	}

	s.Close()
	if pool.InUse("1") {
		t.Error("proxy should be released")
	}
	if _, err := pool.Acquire("1"); err != nil {
		t.Fatal(err)
	}
	s.Close()
	if !pool.InUse("1") {
		t.Error("second Close must not release a proxy held by someone else")
	}
}

// TestNewFactoryError tests that client build errors surface.
func TestNewFactoryError(t *testing.T) {
	t.Parallel()

	pool := testPool("1")
	_, err := New(pool, model.ProxyEndpoint{ID: "1", Host: "h", SOCKSPort: "bad"}, transport.SOCKS5ClientFactory(time.Second))
	if !errors.Is(err, transport.ErrInvalidProxyAddress) {
		t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
	}
}

// TestWithFallbackFlag tests the f=1 suffix.
// TestIsTimeout tests which errors count as a retryable request timeout.
func TestIsTimeout(t *testing.T) {
	t.Parallel()

	expired, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want bool
	}{
		{name: "request deadline", ctx: context.Background(), err: fmt.Errorf("get: %w", context.DeadlineExceeded), want: true},
		{name: "parent deadline", ctx: expired, err: fmt.Errorf("get: %w", context.DeadlineExceeded), want: false},
		{name: "other error", ctx: context.Background(), err: errors.New("connection refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isTimeout(tt.ctx, tt.err); got != tt.want {
				t.Errorf("isTimeout() = %v, expected %v", got, tt.want)
			}
		})
	}
}

func TestWithFallbackFlag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://x/item.html", "https://x/item.html?f=1"},
		{"https://x/list?page=2", "https://x/list?page=2&f=1"},
	}
	for _, tt := range tests {
		if got := withFallbackFlag(tt.in); got != tt.want {
			t.Errorf("withFallbackFlag(%q) = %q, expected %q", tt.in, got, tt.want)
		}
	}
}

// TestSleep tests the context-aware sleep.
func TestSleep(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}
