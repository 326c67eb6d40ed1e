package captcha

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// notReady is the poll answer while a worker is still solving.
	notReady = "CAPCHA_NOT_READY"

	defaultPollInterval = 5 * time.Second
	defaultSolveTimeout = 3 * time.Minute
	maxResponseSize     = 64 * 1024
)

// RuCaptcha solves challenges through the rucaptcha.com HTTP API.
// The same protocol is served by 2captcha.com.
type RuCaptcha struct {
	apiKey       string
	siteKey      string
	endpoint     string
	client       *http.Client
	pollInterval time.Duration
	timeout      time.Duration
	logger       *slog.Logger
}

// RuCaptchaOption configures a RuCaptcha solver.
type RuCaptchaOption func(*RuCaptcha)

// WithSiteKey sets the reCAPTCHA site key used when a page does not expose one.
func WithSiteKey(key string) RuCaptchaOption {
	return func(r *RuCaptcha) {
		r.siteKey = key
	}
}

// WithHTTPClient sets the client used to talk to the service.
func WithHTTPClient(c *http.Client) RuCaptchaOption {
	return func(r *RuCaptcha) {
		r.client = c
	}
}

// WithPollInterval sets the delay between result polls.
func WithPollInterval(d time.Duration) RuCaptchaOption {
	return func(r *RuCaptcha) {
		r.pollInterval = d
	}
}

// WithTimeout bounds a whole solve, submission and polling included.
func WithTimeout(d time.Duration) RuCaptchaOption {
	return func(r *RuCaptcha) {
		r.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RuCaptchaOption {
	return func(r *RuCaptcha) {
		r.logger = logger
	}
}

// NewRuCaptcha creates a solver for the service at endpoint,
// e.g. https://rucaptcha.com.
func NewRuCaptcha(apiKey, endpoint string, opts ...RuCaptchaOption) *RuCaptcha {
	r := &RuCaptcha{
		apiKey:       apiKey,
		endpoint:     strings.TrimRight(endpoint, "/"),
		client:       &http.Client{Timeout: 30 * time.Second},
		pollInterval: defaultPollInterval,
		timeout:      defaultSolveTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// apiResponse is the json=1 envelope of both in.php and res.php.
type apiResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// Solve submits the challenge and polls until a worker answers it,
// the service reports an error, or the solve timeout expires.
func (r *RuCaptcha) Solve(ctx context.Context, c *Challenge) (string, error) {
	if r.apiKey == "" {
		return "", fmt.Errorf("%w: %w", ErrSolverFailed, ErrNoAPIKey)
	}

	form, err := r.submitForm(c)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSolverFailed, err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	sub, err := r.call(ctx, http.MethodPost, r.endpoint+"/in.php", form)
	if err != nil {
		return "", fmt.Errorf("%w: submit: %w", ErrSolverFailed, err)
	}
	if sub.Status != 1 {
		return "", fmt.Errorf("%w: submit: %s", ErrSolverFailed, sub.Request)
	}
	id := sub.Request
	r.logger.Debug("captcha submitted", "kind", c.Kind.String(), "captcha_id", id)

	query := url.Values{
		"key":    {r.apiKey},
		"action": {"get"},
		"id":     {id},
		"json":   {"1"},
	}
	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: captcha %s: %w", ErrSolverFailed, id, ctx.Err())
		case <-timer.C:
		}

		res, err := r.call(ctx, http.MethodGet, r.endpoint+"/res.php?"+query.Encode(), nil)
		if err != nil {
			return "", fmt.Errorf("%w: poll: %w", ErrSolverFailed, err)
		}
		if res.Status == 1 {
			r.logger.Debug("captcha solved", "kind", c.Kind.String(), "captcha_id", id)
			return res.Request, nil
		}
		if res.Request != notReady {
			return "", fmt.Errorf("%w: captcha %s: %s", ErrSolverFailed, id, res.Request)
		}
		timer.Reset(r.pollInterval)
	}
}

func (r *RuCaptcha) submitForm(c *Challenge) (url.Values, error) {
	form := url.Values{
		"key":  {r.apiKey},
		"json": {"1"},
	}
	switch c.Kind {
	case KindRecaptcha:
		siteKey := c.SiteKey
		if siteKey == "" {
			siteKey = r.siteKey
		}
		if siteKey == "" {
			return nil, ErrNoSiteKey
		}
		form.Set("method", "userrecaptcha")
		form.Set("googlekey", siteKey)
		form.Set("pageurl", c.PageURL)
	case KindNormal:
		if len(c.Image) == 0 {
			return nil, ErrNoImage
		}
		form.Set("method", "base64")
		form.Set("body", base64.StdEncoding.EncodeToString(c.Image))
	default:
		return nil, fmt.Errorf("unsupported challenge kind %d", int(c.Kind))
	}
	return form, nil
}

func (r *RuCaptcha) call(ctx context.Context, method, target string, form url.Values) (*apiResponse, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out apiResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
