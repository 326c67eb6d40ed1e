package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".catalogcrawler.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the YAML configuration file.
// Zero values leave the corresponding Config field untouched.
// Secrets are not read from the file; they come from the environment.
type File struct {
	TargetsFile     string        `yaml:"targets_file,omitempty"`
	ProxiesFile     string        `yaml:"proxies_file,omitempty"`
	OutputDir       string        `yaml:"output_dir,omitempty"`
	CheckpointDir   string        `yaml:"checkpoint_dir,omitempty"`
	SiteOrigin      string        `yaml:"site_origin,omitempty"`
	TimestampOutput *bool         `yaml:"timestamp_output,omitempty"`
	Timeout         time.Duration `yaml:"timeout,omitempty"`
	RetryDelay      time.Duration `yaml:"retry_delay,omitempty"`
	Concurrency     int           `yaml:"concurrency,omitempty"`
	DBDir           string        `yaml:"db_dir,omitempty"`
	Solver          SolverFile    `yaml:"solver,omitempty"`
	Mail            MailFile      `yaml:"mail,omitempty"`
}

// SolverFile is the solver section of the configuration file.
type SolverFile struct {
	Endpoint     string        `yaml:"endpoint,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
}

// MailFile is the mail section of the configuration file.
type MailFile struct {
	Host       string   `yaml:"host,omitempty"`
	Port       int      `yaml:"port,omitempty"`
	Recipients []string `yaml:"recipients,omitempty"`
}

// LoadConfigFile loads a configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// Apply copies every non-zero value of the file onto cfg.
func (f *File) Apply(cfg *Config) {
	setString(&cfg.TargetsFile, f.TargetsFile)
	setString(&cfg.ProxiesFile, f.ProxiesFile)
	setString(&cfg.OutputDir, f.OutputDir)
	setString(&cfg.CheckpointDir, f.CheckpointDir)
	setString(&cfg.SiteOrigin, f.SiteOrigin)
	setString(&cfg.DBDir, f.DBDir)
	setString(&cfg.Solver.Endpoint, f.Solver.Endpoint)
	setString(&cfg.Mail.Host, f.Mail.Host)

	if f.TimestampOutput != nil {
		cfg.TimestampOutput = *f.TimestampOutput
	}
	if f.Timeout > 0 {
		cfg.Timeout = f.Timeout
	}
	if f.RetryDelay > 0 {
		cfg.RetryDelay = f.RetryDelay
	}
	if f.Concurrency > 0 {
		cfg.Concurrency = f.Concurrency
	}
	if f.Solver.Timeout > 0 {
		cfg.Solver.Timeout = f.Solver.Timeout
	}
	if f.Solver.PollInterval > 0 {
		cfg.Solver.PollInterval = f.Solver.PollInterval
	}
	if f.Mail.Port > 0 {
		cfg.Mail.Port = f.Mail.Port
	}
	if len(f.Mail.Recipients) > 0 {
		cfg.Mail.Recipients = f.Mail.Recipients
	}
}

// DefaultFile returns a File populated with the built-in defaults.
// The init command writes it as a starting point.
func DefaultFile() *File {
	timestamp := true
	return &File{
		TargetsFile:     DefaultTargetsFile,
		ProxiesFile:     DefaultProxiesFile,
		OutputDir:       DefaultOutputDir,
		CheckpointDir:   DefaultCheckpointDir,
		SiteOrigin:      DefaultSiteOrigin,
		TimestampOutput: &timestamp,
		Timeout:         DefaultTimeout,
		RetryDelay:      DefaultRetryDelay,
		Solver: SolverFile{
			Endpoint:     DefaultSolverEndpoint,
			Timeout:      DefaultSolverTimeout,
			PollInterval: DefaultSolverPollInterval,
		},
		Mail: MailFile{
			Port: DefaultSMTPPort,
		},
	}
}

// durationKeys are the File keys holding time.Duration values.
var durationKeys = map[string]bool{
	"timeout":       true,
	"retry_delay":   true,
	"poll_interval": true,
}

// Marshal encodes the file as YAML. Durations are written in Go syntax
// (30s, 3m0s) rather than as nanosecond integers.
func (f *File) Marshal() ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(f); err != nil {
		return nil, err
	}
	formatDurations(&node)
	return yaml.Marshal(&node)
}

func formatDurations(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if durationKeys[key.Value] && val.Kind == yaml.ScalarNode {
				if ns, err := strconv.ParseInt(val.Value, 10, 64); err == nil {
					val.SetString(time.Duration(ns).String())
				}
			}
		}
	}
	for _, c := range n.Content {
		formatDurations(c)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .catalogcrawler.yaml in the current directory
// 3. Look for .catalogcrawler.yaml in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
