package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/catalogcrawler/internal/captcha"
	"github.com/nao1215/catalogcrawler/internal/checkpoint"
	"github.com/nao1215/catalogcrawler/internal/config"
	"github.com/nao1215/catalogcrawler/internal/crawler"
	"github.com/nao1215/catalogcrawler/internal/database"
	"github.com/nao1215/catalogcrawler/internal/export"
	"github.com/nao1215/catalogcrawler/internal/extract"
	"github.com/nao1215/catalogcrawler/internal/inventory"
	"github.com/nao1215/catalogcrawler/internal/model"
	"github.com/nao1215/catalogcrawler/internal/notify"
	"github.com/nao1215/catalogcrawler/internal/pipeline"
	"github.com/nao1215/catalogcrawler/internal/report"
	"github.com/nao1215/catalogcrawler/internal/session"
	"github.com/nao1215/catalogcrawler/internal/transport"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl catalog targets",
		Long: `Run crawls every catalog target through the proxy on the same row of
the proxy table, or a single target/proxy pair when both ids are given.

Targets whose crawl fails keep their checkpoint under the checkpoint
directory and resume on the next run.

Examples:
  # Crawl every target in input/links.csv
  catalogcrawler run

  # Crawl one target through one proxy
  catalogcrawler run --target-id tires-vl --proxy-id p1

  # Use other tables and keep output file names stable
  catalogcrawler run --targets my/links.csv --proxies my/proxies.csv --no-timestamp

Secrets are read from the environment or a .env file:
  RUCAPTCHA_API_KEY, GOOGLE_SITE_KEY,
  SMTP_EMAIL_HOST, SMTP_EMAIL_PORT, SMTP_EMAIL_USER, SMTP_EMAIL_PASSWORD,
  EMAIL_RECIPIENTS`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	// Single pair flags
	cmd.Flags().String("target-id", "", "Crawl only this target (requires --proxy-id)")
	cmd.Flags().String("proxy-id", "", "Proxy for --target-id (requires --target-id)")

	// Input and output flags
	cmd.Flags().String("targets", config.DefaultTargetsFile, "Catalog target table")
	cmd.Flags().String("proxies", config.DefaultProxiesFile, "Proxy table")
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir, "Directory for XML documents and run summaries")
	cmd.Flags().String("checkpoint-dir", config.DefaultCheckpointDir, "Directory for per-target checkpoints")
	cmd.Flags().Bool("no-timestamp", false, "Do not append a timestamp to XML file names")

	// Crawl behavior flags
	cmd.Flags().String("origin", config.DefaultSiteOrigin, "Site origin prefixed to item links")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request")
	cmd.Flags().Duration("retry-delay", config.DefaultRetryDelay, "Wait before retrying a timed-out request")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency, "Maximum concurrent sessions (0 = all at once)")

	// Ledger flags
	cmd.Flags().Bool("no-db", false, "Do not record sessions in the run ledger")

	// Configuration sources
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .catalogcrawler.yaml in current or home directory)")
	cmd.Flags().String("env-file", "", "dotenv file with secrets (default: .env if present)")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd, os.LookupEnv)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogFormat)

	// Cancel on interrupt so sessions release proxies and save checkpoints
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, crawlEnv{
		factory: transport.SOCKS5ClientFactory(cfg.Timeout),
		out:     cmd.OutOrStdout(),
		logger:  logger,
	})
}

// buildConfig assembles a Config from defaults, the config file, the
// environment and command flags, in increasing order of precedence.
func buildConfig(cmd *cobra.Command, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.LogFormat = getLogFormat(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.EnvFilePath, err = flags.GetString("env-file"); err != nil {
		return nil, err
	}

	// An explicit config path must exist; otherwise a missing file is fine.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, config.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	case cfg.ConfigFilePath != "":
		return nil, openConfigError(cfg.ConfigFilePath)
	}

	if err := config.LoadEnvFile(cfg.EnvFilePath, cfg.EnvFilePath != ""); err != nil {
		return nil, config.Errorf("%w", err)
	}
	if err := config.ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags copies every flag the user set onto cfg.
// Unset flags leave file and environment values in place.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	stringFlags := []struct {
		name string
		dst  *string
	}{
		{"target-id", &cfg.TargetID},
		{"proxy-id", &cfg.ProxyID},
		{"targets", &cfg.TargetsFile},
		{"proxies", &cfg.ProxiesFile},
		{"output", &cfg.OutputDir},
		{"checkpoint-dir", &cfg.CheckpointDir},
		{"origin", &cfg.SiteOrigin},
	}
	for _, f := range stringFlags {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetString(f.name)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"timeout", &cfg.Timeout},
		{"retry-delay", &cfg.RetryDelay},
	}
	for _, f := range durations {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetDuration(f.name)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	if flags.Changed("concurrency") {
		n, err := flags.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = n
	}
	if flags.Changed("no-timestamp") {
		noTimestamp, err := flags.GetBool("no-timestamp")
		if err != nil {
			return err
		}
		cfg.TimestampOutput = !noTimestamp
	}
	if flags.Changed("no-db") {
		noDB, err := flags.GetBool("no-db")
		if err != nil {
			return err
		}
		cfg.SaveToDB = !noDB
	}
	return nil
}

// crawlEnv holds what runCrawl needs from the process.
type crawlEnv struct {
	factory transport.ClientFactory
	out     io.Writer
	logger  *slog.Logger
}

// runCrawl loads the tables, runs the sessions and writes the run summary.
// Only configuration problems and cancellation are returned; failed
// sessions are reported in the summary and keep their checkpoints.
func runCrawl(ctx context.Context, cfg *config.Config, env crawlEnv) error {
	logger := env.logger
	if logger == nil {
		logger = slog.Default()
	}

	targets, err := inventory.LoadTargets(cfg.TargetsFile)
	if err != nil {
		return err
	}
	proxies, err := inventory.LoadProxies(cfg.ProxiesFile)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger = logger.With("run", runID)

	var ledger *database.Ledger
	if cfg.SaveToDB {
		ledger, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open run ledger: %w", err)
		}
		defer ledger.Close()
		logger.Debug("run ledger opened", "path", ledger.Path())
	}

	pool := transport.NewProxyPool(proxies, transport.WithSwapHook(func(from, to model.ProxyEndpoint) {
		logger.Info("proxy exchanged", "from", from.ID, "to", to.ID)
		if ledger == nil {
			return
		}
		if err := ledger.RecordExchange(context.WithoutCancel(ctx), runID, from.ID, to.ID); err != nil {
			logger.Warn("failed to record proxy exchange", "error", err)
		}
	}))

	deps := pipeline.Deps{
		Pool:           pool,
		Factory:        env.factory,
		Store:          checkpoint.NewFileStore(cfg.CheckpointDir),
		Exporter:       export.NewWriter(cfg.OutputDir, export.WithTimestamp(cfg.TimestampOutput)),
		Notifier:       notify.New(cfg.Mail, logger),
		Extractor:      extract.New(),
		SessionOptions: sessionOptions(cfg, logger),
		CrawlerOptions: []crawler.Option{
			crawler.WithOrigin(cfg.SiteOrigin),
			crawler.WithLogger(logger),
		},
		Logger: logger,
	}

	opts := []pipeline.OrchestratorOption{
		pipeline.WithRunID(runID),
		pipeline.WithParallelism(cfg.Concurrency),
	}
	if ledger != nil {
		opts = append(opts, pipeline.WithLedger(ledger))
	}
	orch := pipeline.NewOrchestrator(targets, deps, opts...)

	summary := model.NewRunSummary(runID, time.Now())
	if cfg.SinglePair() {
		outcome, err := orch.RunOne(ctx, cfg.TargetID, cfg.ProxyID)
		if errors.Is(err, config.ErrConfig) {
			return err
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	} else {
		outcomes, err := orch.RunAll(ctx)
		if err != nil {
			return err
		}
		summary.Outcomes = outcomes
	}
	summary.FinishedAt = time.Now()

	if _, err := report.NewSimpleWriter(env.out, report.WithVerbose(cfg.Verbose)).Write(summary); err != nil {
		logger.Warn("failed to print summary", "error", err)
	}
	paths, err := report.SaveRunFiles(cfg.OutputDir, summary, getVersion())
	if err != nil {
		logger.Warn("failed to save run summary", "error", err)
	} else {
		logger.Info("run summary saved", "files", paths)
	}

	return ctx.Err()
}

// sessionOptions builds the per-session HTTP options from cfg.
func sessionOptions(cfg *config.Config, logger *slog.Logger) []session.Option {
	opts := []session.Option{
		session.WithRetryDelay(cfg.RetryDelay),
		session.WithMaxBodySize(cfg.MaxBodySize),
		session.WithDefaultReferer(cfg.SiteOrigin + "/"),
		session.WithLogger(logger),
	}
	if cfg.Solver.APIKey == "" {
		logger.Warn("RUCAPTCHA_API_KEY is not set; CAPTCHA pages will fail their session")
		return opts
	}
	solver := captcha.NewRuCaptcha(cfg.Solver.APIKey, cfg.Solver.Endpoint,
		captcha.WithSiteKey(cfg.Solver.SiteKey),
		captcha.WithTimeout(cfg.Solver.Timeout),
		captcha.WithPollInterval(cfg.Solver.PollInterval),
		captcha.WithLogger(logger),
	)
	return append(opts, session.WithSolver(solver))
}
