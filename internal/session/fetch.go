package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/nao1215/catalogcrawler/internal/transport"
)

// maxTries is the first attempt plus the single timeout retry.
const maxTries = 2

// Fetch GETs rawURL with the given header profile and returns a page that
// is not a challenge. Challenges are answered inline; a challenge that
// persists burns the session, which is refreshed and replays the request
// once before ErrChallengeUnresolved is returned.
func (s *Session) Fetch(ctx context.Context, rawURL string, profile transport.Profile, rc transport.RequestContext) (*Page, error) {
	page, err := s.fetchResolved(ctx, rawURL, profile, rc)
	if err != nil || page != nil {
		return page, err
	}

	s.logger.Warn("challenge persists, refreshing session", "url", rawURL, "proxy_id", s.proxy.ID)
	if err := s.refresh(); err != nil {
		return nil, err
	}

	page, err = s.fetchResolved(ctx, rawURL, profile, rc)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("%w: %s", ErrChallengeUnresolved, rawURL)
	}
	return page, nil
}

// fetchResolved runs one GET and the challenge protocol on its response.
// A nil page with a nil error means the challenge could not be resolved.
func (s *Session) fetchResolved(ctx context.Context, rawURL string, profile transport.Profile, rc transport.RequestContext) (*Page, error) {
	page, err := s.do(ctx, http.MethodGet, rawURL, nil, profile, rc)
	if err != nil {
		return nil, err
	}
	ch, challenged := detect(page)
	if !challenged {
		return page, nil
	}
	return s.resolve(ctx, rawURL, profile, rc, ch)
}

// refresh replaces the client with one that has an empty jar and, when
// the pool has a spare proxy, dials through a different proxy.
func (s *Session) refresh() error {
	s.client.CloseIdleConnections()

	next, err := s.pool.Exchange(s.proxy)
	switch {
	case errors.Is(err, transport.ErrNoSpareProxy):
		s.logger.Warn("no spare proxy, keeping current proxy with a fresh jar", "proxy_id", s.proxy.ID)
	case err != nil:
		return err
	default:
		s.logger.Info("proxy exchanged", "from", s.proxy.ID, "to", next.ID)
		s.proxy = next
		s.exchanges++
	}

	client, err := s.factory(s.proxy, transport.NewJar())
	if err != nil {
		return fmt.Errorf("%w: rebuild client: %w", ErrNetwork, err)
	}
	s.client = client
	return nil
}

// do performs one request. A timeout is retried once after the retry
// delay and the outcome of the second attempt is returned as is.
func (s *Session) do(ctx context.Context, method, rawURL string, form url.Values, profile transport.Profile, rc transport.RequestContext) (*Page, error) {
	if profile == transport.Navigation && rc.Referer == "" {
		rc = rc.WithReferer(s.defaultReferer)
	}
	s.remember(rawURL)

	var lastErr error
	for try := 1; try <= maxTries; try++ {
		page, err := s.roundTrip(ctx, method, rawURL, form, profile, rc)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !isTimeout(ctx, err) || try == maxTries {
			break
		}

		s.logger.Warn("request timed out, retrying", "url", rawURL, "delay", s.retryDelay.String())
		if err := s.sleep(ctx, s.retryDelay); err != nil {
			lastErr = err
			break
		}
	}
	return nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, rawURL, lastErr)
}

func (s *Session) roundTrip(ctx context.Context, method, rawURL string, form url.Values, profile transport.Profile, rc transport.RequestContext) (*Page, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header = transport.Headers(profile, s.userAgent, rc)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	s.logger.Debug("request", "method", method, "url", rawURL, "profile", profile.String())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, err
	}

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return &Page{
		URL:        final,
		StatusCode: resp.StatusCode,
		Body:       data,
		Header:     resp.Header,
	}, nil
}

// isTimeout reports whether err is a per-request timeout, such as the
// client timeout or a dial deadline. A deadline or cancellation of ctx
// itself is never a timeout worth retrying.
func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
