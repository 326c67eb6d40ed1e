package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// Pacing-related values mirror what the target site tolerates from a
// human visitor; shortening them raises the CAPTCHA rate sharply.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "catalogcrawler"

	// DefaultTargetsFile is the semicolon-delimited catalog target table.
	DefaultTargetsFile = "input/links.csv"

	// DefaultProxiesFile is the semicolon-delimited proxy table.
	DefaultProxiesFile = "input/proxies.csv"

	// DefaultOutputDir receives the XML documents and run summaries.
	DefaultOutputDir = "output"

	// DefaultCheckpointDir holds one subdirectory per in-progress target.
	DefaultCheckpointDir = "tmp"

	// DefaultSiteOrigin is prefixed to harvested item paths.
	DefaultSiteOrigin = "https://www.farpost.ru"

	// DefaultTimeout bounds a single HTTP request through a proxy.
	DefaultTimeout = 30 * time.Second

	// DefaultRetryDelay is the wait before repeating a timed-out request.
	DefaultRetryDelay = 5 * time.Second

	// DefaultSolverTimeout bounds one CAPTCHA solve including polling.
	DefaultSolverTimeout = 3 * time.Minute

	// DefaultSolverPollInterval is the wait between solver result polls.
	DefaultSolverPollInterval = 5 * time.Second

	// DefaultSolverEndpoint is the rucaptcha-compatible API root.
	DefaultSolverEndpoint = "https://rucaptcha.com"

	// DefaultSMTPPort is the implicit-TLS submission port.
	DefaultSMTPPort = 465

	// DefaultConcurrency of 0 runs every target/proxy pair at once.
	DefaultConcurrency = 0

	// DefaultMaxBodySize limits how much of a response is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// Config holds all configuration options for a crawl run.
// It is assembled from defaults, the YAML file, the environment and CLI
// flags, in increasing order of precedence.
type Config struct {
	// TargetsFile is the path of the catalog target table.
	TargetsFile string

	// ProxiesFile is the path of the proxy table.
	ProxiesFile string

	// OutputDir receives <id>_tires.xml, <id>_disks.xml and run summaries.
	OutputDir string

	// CheckpointDir is the root of per-target checkpoint directories.
	CheckpointDir string

	// SiteOrigin is the scheme and host prefixed to item paths.
	SiteOrigin string

	// TimestampOutput appends a generation timestamp to output file names.
	TimestampOutput bool

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// RetryDelay is the pause before the single retry of a timed-out request.
	RetryDelay time.Duration

	// MaxBodySize is the maximum number of response bytes read.
	MaxBodySize int64

	// Concurrency limits how many sessions run at once. 0 means no limit.
	Concurrency int

	// Verbose enables debug logging.
	Verbose bool

	// LogFormat is "text" or "json".
	LogFormat string

	// ConfigFilePath is the explicit YAML file path, if any.
	ConfigFilePath string

	// EnvFilePath is the dotenv file loaded before reading the environment.
	EnvFilePath string

	// DBDir is the directory of the run ledger database.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB records session outcomes in the run ledger.
	SaveToDB bool

	// Solver holds CAPTCHA gateway settings.
	Solver SolverConfig

	// Mail holds notification settings.
	Mail MailConfig

	// TargetID and ProxyID select single-pair mode when both are set.
	TargetID string
	ProxyID  string
}

// SolverConfig configures the CAPTCHA solving gateway.
type SolverConfig struct {
	// APIKey is the rucaptcha account key (RUCAPTCHA_API_KEY).
	APIKey string

	// SiteKey is the reCAPTCHA site key of the target site (GOOGLE_SITE_KEY).
	SiteKey string

	// Endpoint is the API root, e.g. https://rucaptcha.com.
	Endpoint string

	// Timeout bounds one solve.
	Timeout time.Duration

	// PollInterval is the wait between result polls.
	PollInterval time.Duration
}

// MailConfig configures the success notification.
// An empty Host disables e-mail.
type MailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Recipients []string
}

// Enabled reports whether notifications should be sent.
func (m MailConfig) Enabled() bool {
	return m.Host != ""
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		TargetsFile:     DefaultTargetsFile,
		ProxiesFile:     DefaultProxiesFile,
		OutputDir:       DefaultOutputDir,
		CheckpointDir:   DefaultCheckpointDir,
		SiteOrigin:      DefaultSiteOrigin,
		TimestampOutput: true,
		Timeout:         DefaultTimeout,
		RetryDelay:      DefaultRetryDelay,
		MaxBodySize:     DefaultMaxBodySize,
		Concurrency:     DefaultConcurrency,
		LogFormat:       "text",
		SaveToDB:        true,
		DBDir:           XDGDataDir(),
		Solver: SolverConfig{
			Endpoint:     DefaultSolverEndpoint,
			Timeout:      DefaultSolverTimeout,
			PollInterval: DefaultSolverPollInterval,
		},
		Mail: MailConfig{
			Port: DefaultSMTPPort,
		},
	}
}

// XDGDataDir returns the XDG data directory for the crawler.
// On Linux: ~/.local/share/catalogcrawler
// On macOS: ~/Library/Application Support/catalogcrawler
// On Windows: %LOCALAPPDATA%\catalogcrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// SinglePair reports whether the run targets exactly one (target, proxy) pair.
func (c *Config) SinglePair() bool {
	return c.TargetID != "" && c.ProxyID != ""
}

// Validate checks if the configuration is valid.
// It returns the first problem found, wrapped in ErrConfig.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return Errorf("%w", err)
	}
	return nil
}

func (c *Config) validate() error {
	if (c.TargetID == "") != (c.ProxyID == "") {
		return ErrIncompletePair
	}
	if c.TargetsFile == "" {
		return ErrNoTargetsFile
	}
	if c.ProxiesFile == "" {
		return ErrNoProxiesFile
	}
	if c.OutputDir == "" || c.CheckpointDir == "" {
		return ErrNoWorkDir
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RetryDelay < 0 {
		return ErrInvalidRetryDelay
	}
	if c.Concurrency < 0 {
		return ErrInvalidConcurrency
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return ErrInvalidLogFormat
	}
	if c.Solver.Timeout <= 0 || c.Solver.PollInterval <= 0 {
		return ErrInvalidSolverTiming
	}
	if c.Mail.Enabled() {
		if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
			return ErrInvalidSMTPPort
		}
		if len(c.Mail.Recipients) == 0 {
			return ErrNoRecipients
		}
	}
	return nil
}
