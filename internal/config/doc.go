// Package config provides the run configuration of the crawler: file and
// directory locations, request and pacing timeouts, CAPTCHA gateway and
// mail settings. Values come from built-in defaults, a YAML file, the
// environment (optionally seeded from a .env file) and CLI flags.
package config
