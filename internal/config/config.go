// Package config loads the daemon's configuration: a YAML file, then
// MWS_-prefixed environment overrides, then defaults-aware validation
// against an embedded CUE schema.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/minewebstore/mwsync/internal/host"
	"github.com/minewebstore/mwsync/internal/store"
)

// EnvPrefix prefixes every environment override, e.g.
// MWS_WORDPRESS_SECRET_KEY.
const EnvPrefix = "MWS_"

// Placeholder values shipped in the sample configuration. Validation
// rejects them so a daemon never starts against the sample storefront.
const (
	PlaceholderBaseURL   = "https://yourdomain.com"
	PlaceholderSecretKey = "your-secret-key-here"
)

// Config is the full daemon configuration.
type Config struct {
	WordPress WordPress `yaml:"wordpress" json:"wordpress" envPrefix:"WORDPRESS_"`
	Server    Server    `yaml:"server" json:"server" envPrefix:"SERVER_"`
	Host      Host      `yaml:"host" json:"host" envPrefix:"HOST_"`
	Storage   Storage   `yaml:"storage" json:"storage" envPrefix:"STORAGE_"`
	Reporter  Reporter  `yaml:"reporter" json:"reporter" envPrefix:"REPORTER_"`
	Debug     Debug     `yaml:"debug" json:"debug" envPrefix:"DEBUG_"`
}

// WordPress locates the storefront.
type WordPress struct {
	BaseURL        string `yaml:"base_url" json:"base_url" env:"BASE_URL"`
	SecretKey      string `yaml:"secret_key" json:"secret_key" env:"SECRET_KEY"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds" env:"TIMEOUT_SECONDS"`
}

// Server identifies this game server to the storefront and paces polling.
type Server struct {
	Name              string `yaml:"name" json:"name" env:"NAME"`
	PollInterval      int    `yaml:"poll_interval" json:"poll_interval" env:"POLL_INTERVAL"`
	FetchLimit        int    `yaml:"fetch_limit" json:"fetch_limit" env:"FETCH_LIMIT"`
	RegistrationRetry int    `yaml:"registration_retry" json:"registration_retry" env:"REGISTRATION_RETRY"`
}

// Host reaches the game server over RCON.
type Host struct {
	RCONAddress           string   `yaml:"rcon_address" json:"rcon_address" env:"RCON_ADDRESS"`
	RCONPassword          string   `yaml:"rcon_password" json:"rcon_password" env:"RCON_PASSWORD"`
	RosterInterval        int      `yaml:"roster_interval" json:"roster_interval" env:"ROSTER_INTERVAL"`
	CommandTimeoutSeconds int      `yaml:"command_timeout_seconds" json:"command_timeout_seconds" env:"COMMAND_TIMEOUT_SECONDS"`
	FailurePatterns       []string `yaml:"failure_patterns" json:"failure_patterns" env:"FAILURE_PATTERNS" envSeparator:";"`
}

// Storage selects where snapshots live.
type Storage struct {
	Backend string `yaml:"backend" json:"backend" env:"BACKEND"`
	DataDir string `yaml:"data_dir" json:"data_dir" env:"DATA_DIR"`
}

// Reporter sizes the status-report worker pool.
type Reporter struct {
	Workers int `yaml:"workers" json:"workers" env:"WORKERS"`
}

// Debug toggles verbose logging.
type Debug struct {
	Enabled bool `yaml:"enabled" json:"enabled" env:"ENABLED"`
}

// Defaults returns a configuration with every optional field filled in.
func Defaults() *Config {
	return &Config{
		WordPress: WordPress{TimeoutSeconds: 10},
		Server: Server{
			PollInterval:      10,
			FetchLimit:        50,
			RegistrationRetry: 30,
		},
		Host: Host{
			RCONAddress:           "127.0.0.1:25575",
			RosterInterval:        2,
			CommandTimeoutSeconds: 10,
			FailurePatterns:       append([]string(nil), host.DefaultFailurePatterns...),
		},
		Storage:  Storage{Backend: store.BackendFile, DataDir: "./data"},
		Reporter: Reporter{Workers: 2},
	}
}

// Load reads path, applies environment overrides, and validates.
//
// A validation failure returns the partially loaded config together with
// an *InvalidError listing every problem.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	return LoadReader(f, path)
}

// LoadReader is Load for an already-open file. name is used in errors.
func LoadReader(r io.Reader, name string) (*Config, error) {
	cfg := Defaults()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", name, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", name, err)
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if errs := Validate(cfg); len(errs) > 0 {
		return cfg, &InvalidError{Source: name, Errors: errs}
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from MWS_* environment variables. Unset
// variables leave fields untouched.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	return nil
}

// PollInterval returns server.poll_interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Server.PollInterval) * time.Second
}

// RegistrationRetry returns server.registration_retry as a duration.
func (c *Config) RegistrationRetry() time.Duration {
	return time.Duration(c.Server.RegistrationRetry) * time.Second
}

// HTTPTimeout returns wordpress.timeout_seconds as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.WordPress.TimeoutSeconds) * time.Second
}

// RosterInterval returns host.roster_interval as a duration.
func (c *Config) RosterInterval() time.Duration {
	return time.Duration(c.Host.RosterInterval) * time.Second
}

// CommandTimeout returns host.command_timeout_seconds as a duration.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Host.CommandTimeoutSeconds) * time.Second
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Host.FailurePatterns = append([]string(nil), c.Host.FailurePatterns...)
	if out.WordPress.SecretKey != "" {
		out.WordPress.SecretKey = "********"
	}
	if out.Host.RCONPassword != "" {
		out.Host.RCONPassword = "********"
	}
	return &out
}
