package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/catalogcrawler/internal/config"
)

// configHeader is written above the generated YAML.
const configHeader = `# catalogcrawler configuration
#
# Values here override the built-in defaults; command flags override them.
# Secrets are never read from this file. Put them in the environment or .env:
#   RUCAPTCHA_API_KEY, GOOGLE_SITE_KEY
#   SMTP_EMAIL_HOST, SMTP_EMAIL_PORT, SMTP_EMAIL_USER, SMTP_EMAIL_PASSWORD
#   EMAIL_RECIPIENTS (comma separated)
#
# Durations use Go syntax, e.g. 30s, 3m.

`

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new catalogcrawler configuration file",
		Long: `Initialize creates a new .catalogcrawler.yaml configuration file in the
current directory, filled with the built-in defaults.

Examples:
  # Create .catalogcrawler.yaml in current directory
  catalogcrawler init

  # Create config file at a specific path
  catalogcrawler init -o deploy/crawler.yaml

  # Force overwrite existing file
  catalogcrawler init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	// Check if file already exists
	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	body, err := config.DefaultFile().Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode default configuration: %w", err)
	}

	// Create parent directories if needed
	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	content := append([]byte(configHeader), body...)
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure settings such as:")
	fmt.Fprintln(out, "  - Target and proxy table paths")
	fmt.Fprintln(out, "  - Request timeouts and session concurrency")
	fmt.Fprintln(out, "  - CAPTCHA gateway endpoint and polling")

	return nil
}
