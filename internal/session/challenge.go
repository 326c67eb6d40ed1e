package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nao1215/catalogcrawler/internal/captcha"
	"github.com/nao1215/catalogcrawler/internal/transport"
)

var errNoImage = errors.New("challenge has no image")

func detect(p *Page) (*captcha.Challenge, bool) {
	return captcha.Detect(p.Body, p.URL)
}

// resolve answers ch in at most two solve attempts.
// The kind seen on the first attempt is kept for the whole call: when a
// Recaptcha challenge turns into an image challenge, the page is fetched
// again with f=1 before the second attempt. A nil page with a nil error
// means the page is still challenged.
func (s *Session) resolve(ctx context.Context, rawURL string, profile transport.Profile, rc transport.RequestContext, ch *captcha.Challenge) (*Page, error) {
	first := ch.Kind
	s.logger.Debug("challenge detected", "url", rawURL, "kind", first.String())

	page, err := s.attempt(ctx, ch)
	if err != nil {
		return nil, err
	}
	if page != nil {
		next, challenged := detect(page)
		if !challenged {
			return page, nil
		}
		ch = next
	}

	if first == captcha.KindRecaptcha && ch.Kind == captcha.KindNormal {
		fallback := withFallbackFlag(rawURL)
		s.logger.Debug("recaptcha fell back to image challenge", "url", fallback)

		page, err = s.do(ctx, http.MethodGet, fallback, nil, profile, rc)
		if err != nil {
			return nil, err
		}
		next, challenged := detect(page)
		if !challenged {
			return page, nil
		}
		ch = next
	}

	page, err = s.attempt(ctx, ch)
	if err != nil || page == nil {
		return nil, err
	}
	if _, challenged := detect(page); challenged {
		return nil, nil
	}
	return page, nil
}

// attempt solves ch once and posts the answer back to the challenged URL.
// Solver failures are logged and reported as a nil page.
func (s *Session) attempt(ctx context.Context, ch *captcha.Challenge) (*Page, error) {
	if s.solver == nil {
		s.logger.Warn("challenge detected but no solver is configured", "url", ch.PageURL)
		return nil, nil
	}

	if ch.Kind == captcha.KindNormal {
		img, err := s.downloadImage(ctx, ch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("failed to load captcha image", "url", ch.ImageURL, "error", err)
			return nil, nil
		}
		ch.Image = img
	}

	answer, err := s.solver.Solve(ctx, ch)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("captcha solve failed", "kind", ch.Kind.String(), "error", err)
		return nil, nil
	}

	rc := transport.RequestContext{Referer: ch.PageURL}
	return s.do(ctx, http.MethodPost, ch.PageURL, ch.Form(answer), transport.Navigation, rc)
}

// downloadImage loads the challenge picture through the session client so
// the cookies match the ones the challenge was issued for.
func (s *Session) downloadImage(ctx context.Context, ch *captcha.Challenge) ([]byte, error) {
	if ch.ImageURL == "" {
		return nil, errNoImage
	}
	page, err := s.do(ctx, http.MethodGet, ch.ImageURL, nil, transport.Navigation, transport.RequestContext{Referer: ch.PageURL})
	if err != nil {
		return nil, err
	}
	if page.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("captcha image: status %d", page.StatusCode)
	}
	return page.Body, nil
}

// withFallbackFlag appends f=1 to the query of rawURL.
func withFallbackFlag(rawURL string) string {
	if strings.Contains(rawURL, "?") {
		return rawURL + "&f=1"
	}
	return rawURL + "?f=1"
}
