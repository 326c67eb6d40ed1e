package config

import (
	"errors"
	"fmt"
)

// ErrConfig marks every fatal configuration problem. Callers detect the
// whole class with errors.Is(err, ErrConfig) and abort before crawling.
var ErrConfig = errors.New("configuration error")

// Errorf formats an error that matches both ErrConfig and any %w operands.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %w", ErrConfig, fmt.Errorf(format, args...))
}

// Configuration validation errors returned by Config.Validate.
var (
	// ErrIncompletePair is returned when only one of --target-id and --proxy-id is given.
	ErrIncompletePair = errors.New("either specify both --target-id and --proxy-id or neither")

	// ErrNoTargetsFile is returned when the target table path is empty.
	ErrNoTargetsFile = errors.New("no targets file specified")

	// ErrNoProxiesFile is returned when the proxy table path is empty.
	ErrNoProxiesFile = errors.New("no proxies file specified")

	// ErrNoWorkDir is returned when the output or checkpoint directory is empty.
	ErrNoWorkDir = errors.New("output and checkpoint directories must be set")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRetryDelay is returned when the retry delay is negative.
	ErrInvalidRetryDelay = errors.New("invalid retry delay: must be non-negative")

	// ErrInvalidConcurrency is returned when the concurrency limit is negative.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidLogFormat is returned for a log format other than text or json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrInvalidSolverTiming is returned when solver timeout or poll interval is not positive.
	ErrInvalidSolverTiming = errors.New("invalid solver timing: timeout and poll interval must be positive")

	// ErrInvalidSMTPPort is returned when the SMTP port is out of range.
	ErrInvalidSMTPPort = errors.New("invalid SMTP port")

	// ErrNoRecipients is returned when e-mail is enabled without recipients.
	ErrNoRecipients = errors.New("SMTP host is set but EMAIL_RECIPIENTS is empty")
)
