// Package config loads the client configuration from defaults, an optional
// YAML file and CAJERO_* environment variables, in that order, and validates
// the result against an embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Config is the client configuration.
type Config struct {
	ServerURL   string `yaml:"server_url" env:"CAJERO_SERVER_URL"`
	APIBaseURL  string `yaml:"api_base_url" env:"CAJERO_API_BASE_URL"`
	Origin      string `yaml:"origin" env:"CAJERO_ORIGIN"`
	JournalPath string `yaml:"journal_path" env:"CAJERO_JOURNAL_PATH"`
	StatusAddr  string `yaml:"status_addr" env:"CAJERO_STATUS_ADDR"`
	LogLevel    string `yaml:"log_level" env:"CAJERO_LOG_LEVEL"`

	AuthRetryAttempts int           `yaml:"auth_retry_attempts" env:"CAJERO_AUTH_RETRY_ATTEMPTS"`
	AuthRetryDelay    time.Duration `yaml:"auth_retry_delay" env:"CAJERO_AUTH_RETRY_DELAY"`
	AdjustAckGuard    time.Duration `yaml:"adjust_ack_guard" env:"CAJERO_ADJUST_ACK_GUARD"`
	LogoutAckTimeout  time.Duration `yaml:"logout_ack_timeout" env:"CAJERO_LOGOUT_ACK_TIMEOUT"`
	OperationTimeout  time.Duration `yaml:"operation_timeout" env:"CAJERO_OPERATION_TIMEOUT"`
	DialTimeout       time.Duration `yaml:"dial_timeout" env:"CAJERO_DIAL_TIMEOUT"`
	HTTPTimeout       time.Duration `yaml:"http_timeout" env:"CAJERO_HTTP_TIMEOUT"`

	// DefaultMinimumDeposit is in display units (Bs).
	DefaultMinimumDeposit float64 `yaml:"default_minimum_deposit" env:"CAJERO_DEFAULT_MINIMUM_DEPOSIT"`
	MaxEvidenceBytes      int64   `yaml:"max_evidence_bytes" env:"CAJERO_MAX_EVIDENCE_BYTES"`
}

// Default returns the production configuration.
func Default() Config {
	return Config{
		ServerURL:             "wss://elpatio-backend.fly.dev/ws",
		APIBaseURL:            "https://elpatio-backend.fly.dev",
		Origin:                "https://elpatio-cajeros.app",
		JournalPath:           "cajero-journal.db",
		StatusAddr:            "127.0.0.1:8089",
		LogLevel:              "info",
		AuthRetryAttempts:     10,
		AuthRetryDelay:        2 * time.Second,
		AdjustAckGuard:        10 * time.Second,
		LogoutAckTimeout:      500 * time.Millisecond,
		OperationTimeout:      30 * time.Second,
		DialTimeout:           10 * time.Second,
		HTTPTimeout:           15 * time.Second,
		DefaultMinimumDeposit: 10,
		MaxEvidenceBytes:      5 << 20,
	}
}

// Load returns Default overlaid with the YAML file at path (when path is not
// empty) and then with the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

// Validate checks c against the schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(c.fields()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// fields is the schema view of c; durations as nanoseconds.
func (c Config) fields() map[string]any {
	return map[string]any{
		"server_url":              c.ServerURL,
		"api_base_url":            c.APIBaseURL,
		"origin":                  c.Origin,
		"journal_path":            c.JournalPath,
		"status_addr":             c.StatusAddr,
		"log_level":               strings.ToLower(c.LogLevel),
		"auth_retry_attempts":     c.AuthRetryAttempts,
		"auth_retry_delay":        int64(c.AuthRetryDelay),
		"adjust_ack_guard":        int64(c.AdjustAckGuard),
		"logout_ack_timeout":      int64(c.LogoutAckTimeout),
		"operation_timeout":       int64(c.OperationTimeout),
		"dial_timeout":            int64(c.DialTimeout),
		"http_timeout":            int64(c.HTTPTimeout),
		"default_minimum_deposit": c.DefaultMinimumDeposit,
		"max_evidence_bytes":      c.MaxEvidenceBytes,
	}
}

// SlogLevel maps LogLevel to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
