// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers file and environment on top.
// - Errors returned from Load wrap ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ViewPrefix and ViewSuffix locate a view template: prefix + token + suffix.
	ViewPrefix string `koanf:"view_prefix"`
	ViewSuffix string `koanf:"view_suffix"`

	// TemplateDir points at an on-disk template root. Empty uses the embedded templates.
	TemplateDir string `koanf:"template_dir"`

	// DevMode enables template watching and browser live reload.
	DevMode bool `koanf:"dev_mode"`

	// MinifyHTML minifies rendered pages before they are written.
	MinifyHTML bool `koanf:"minify_html"`

	// ShutdownTimeoutMS bounds graceful shutdown.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":8080",
		ViewPrefix:        "views/",
		ViewSuffix:        ".html",
		TemplateDir:       "",
		DevMode:           false,
		MinifyHTML:        true,
		ShutdownTimeoutMS: 30_000,
	}
}

// ShutdownTimeout returns ShutdownTimeoutMS as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

// Validate checks the invariants the server relies on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.ViewSuffix) == "":
		return fmt.Errorf("%w: view_suffix must not be empty", ErrInvalidConfig)
	case c.ShutdownTimeoutMS <= 0:
		return fmt.Errorf("%w: shutdown_timeout_ms must be positive", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
