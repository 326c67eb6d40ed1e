package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names, shared with the existing deployment's .env files.
const (
	EnvSolverAPIKey    = "RUCAPTCHA_API_KEY"
	EnvSolverSiteKey   = "GOOGLE_SITE_KEY"
	EnvSMTPHost        = "SMTP_EMAIL_HOST"
	EnvSMTPPort        = "SMTP_EMAIL_PORT"
	EnvSMTPUser        = "SMTP_EMAIL_USER"
	EnvSMTPPassword    = "SMTP_EMAIL_PASSWORD"
	EnvEmailRecipients = "EMAIL_RECIPIENTS"
)

// DefaultEnvFile is loaded when present and no other file was requested.
const DefaultEnvFile = ".env"

// LoadEnvFile loads a dotenv file into the process environment.
// Variables that are already set win over the file.
// A missing file is ignored unless it was requested explicitly.
func LoadEnvFile(path string, explicit bool) error {
	if path == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays secrets and mail settings from the environment.
// lookup is usually os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup(EnvSolverAPIKey); ok {
		cfg.Solver.APIKey = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvSolverSiteKey); ok {
		cfg.Solver.SiteKey = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvSMTPHost); ok {
		cfg.Mail.Host = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvSMTPPort); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Errorf("%s=%q: %w", EnvSMTPPort, v, ErrInvalidSMTPPort)
		}
		cfg.Mail.Port = port
	}
	if v, ok := lookup(EnvSMTPUser); ok {
		cfg.Mail.Username = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvSMTPPassword); ok {
		cfg.Mail.Password = v
	}
	if v, ok := lookup(EnvEmailRecipients); ok {
		cfg.Mail.Recipients = splitList(v)
	}
	return nil
}

// splitList splits a comma separated list and drops empty items.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
