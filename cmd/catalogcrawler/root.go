package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/catalogcrawler/internal/config"
	"github.com/nao1215/catalogcrawler/internal/log"
)

// NewRootCmd creates the root command for catalogcrawler.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalogcrawler",
		Short: "Catalog crawler for farpost.ru tire and disk listings",
		Long: `catalogcrawler walks farpost.ru catalog pages, visits every item and
exports tires and disks as XML documents.

Each catalog target is crawled through its own SOCKS5 proxy. Progress is
checkpointed, so an interrupted target resumes where it stopped on the
next run.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-format", "text", "Log format: text or json")

	// Add subcommands
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getLogFormat retrieves the log format flag from the command or its parent.
func getLogFormat(cmd *cobra.Command) string {
	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		format, err = cmd.Root().PersistentFlags().GetString("log-format")
		if err != nil {
			return "text"
		}
	}
	return format
}

// setupLogger creates the process logger and installs it as the default.
func setupLogger(w io.Writer, verbose bool, format string) *slog.Logger {
	logger := log.New(w, verbose, format)
	slog.SetDefault(logger)
	return logger
}

// openConfigError reports a missing explicit config file as a ConfigError.
func openConfigError(path string) error {
	return config.Errorf("%w: %s", config.ErrConfigNotFound, path)
}
