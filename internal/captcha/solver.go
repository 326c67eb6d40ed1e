package captcha

import (
	"context"
	"errors"
)

// Solver errors.
var (
	// ErrSolverFailed is returned when the recognition service cannot
	// produce an answer. Callers treat it as a still-challenged page.
	ErrSolverFailed = errors.New("captcha solver failed")

	// ErrNoAPIKey is returned when the solver has no account key.
	ErrNoAPIKey = errors.New("captcha solver API key is not set")

	// ErrNoSiteKey is returned for a Recaptcha challenge without a site key.
	ErrNoSiteKey = errors.New("recaptcha site key is not set")

	// ErrNoImage is returned for a Normal challenge whose image was not loaded.
	ErrNoImage = errors.New("captcha image is empty")
)

// Solver turns a challenge into the answer to post back.
type Solver interface {
	Solve(ctx context.Context, c *Challenge) (string, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, c *Challenge) (string, error)

// Solve calls f.
func (f SolverFunc) Solve(ctx context.Context, c *Challenge) (string, error) {
	return f(ctx, c)
}
