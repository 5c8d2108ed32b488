package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewebstore/mwsync/internal/host"
)

func fields(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Field
	}
	return out
}

func validConfig() *Config {
	cfg := Defaults()
	cfg.WordPress.BaseURL = "https://shop.example.org"
	cfg.WordPress.SecretKey = "s3cr3t"
	cfg.Server.Name = "survival"
	return cfg
}

func TestLoad_FileWithDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "valid.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.org", cfg.WordPress.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, "survival-1", cfg.Server.Name)
	assert.Equal(t, 15*time.Second, cfg.PollInterval())
	assert.Equal(t, 50, cfg.Server.FetchLimit, "default")
	assert.Equal(t, 30*time.Second, cfg.RegistrationRetry(), "default")
	assert.Equal(t, 2*time.Second, cfg.RosterInterval(), "default")
	assert.Equal(t, 10*time.Second, cfg.CommandTimeout(), "default")
	assert.Equal(t, host.DefaultFailurePatterns, cfg.Host.FailurePatterns)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 2, cfg.Reporter.Workers)
	assert.True(t, cfg.Debug.Enabled)
}

func TestLoad_SampleIsRejected(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "sample.yaml"))
	require.Error(t, err)
	require.NotNil(t, cfg)

	var invalid *InvalidError
	require.ErrorAs(t, err, &invalid)
	got := fields(invalid.Errors)
	assert.Contains(t, got, "wordpress.base_url")
	assert.Contains(t, got, "wordpress.secret_key")
}

func TestLoad_UnknownKey(t *testing.T) {
	_, err := LoadReader(strings.NewReader("wordpress:\n  base_uri: x\n"), "inline")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_uri")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MWS_WORDPRESS_SECRET_KEY", "from-env")
	t.Setenv("MWS_SERVER_POLL_INTERVAL", "3")
	t.Setenv("MWS_HOST_FAILURE_PATTERNS", "^Error;denied")
	t.Setenv("MWS_DEBUG_ENABLED", "false")

	cfg, err := Load(filepath.Join("testdata", "valid.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.WordPress.SecretKey)
	assert.Equal(t, 3*time.Second, cfg.PollInterval())
	assert.Equal(t, []string{"^Error", "denied"}, cfg.Host.FailurePatterns)
	assert.False(t, cfg.Debug.Enabled)
	assert.Equal(t, "survival-1", cfg.Server.Name, "unset variables leave the file value")
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("MWS_SERVER_FETCH_LIMIT", "lots")
	_, err := Load(filepath.Join("testdata", "valid.yaml"))
	assert.Error(t, err)
}

func TestValidate_Valid(t *testing.T) {
	assert.Empty(t, Validate(validConfig()))
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
		code   string
	}{
		{"base url scheme", func(c *Config) { c.WordPress.BaseURL = "shop.example.org" }, "wordpress.base_url", ErrCodeSchema},
		{"base url placeholder", func(c *Config) { c.WordPress.BaseURL = PlaceholderBaseURL }, "wordpress.base_url", ErrCodeSchema},
		{"secret empty", func(c *Config) { c.WordPress.SecretKey = "" }, "wordpress.secret_key", ErrCodeSchema},
		{"secret placeholder", func(c *Config) { c.WordPress.SecretKey = PlaceholderSecretKey }, "wordpress.secret_key", ErrCodeSchema},
		{"server name empty", func(c *Config) { c.Server.Name = "" }, "server.name", ErrCodeSchema},
		{"server name too long", func(c *Config) { c.Server.Name = strings.Repeat("x", 51) }, "server.name", ErrCodeSchema},
		{"poll interval", func(c *Config) { c.Server.PollInterval = 0 }, "server.poll_interval", ErrCodeSchema},
		{"fetch limit", func(c *Config) { c.Server.FetchLimit = -1 }, "server.fetch_limit", ErrCodeSchema},
		{"backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend", ErrCodeSchema},
		{"workers", func(c *Config) { c.Reporter.Workers = 0 }, "reporter.workers", ErrCodeSchema},
		{"pattern", func(c *Config) { c.Host.FailurePatterns = []string{"ok", "("} }, "host.failure_patterns.1", ErrCodeInvalidPattern},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			errs := Validate(cfg)
			require.NotEmpty(t, errs)
			assert.Contains(t, fields(errs), tt.field)
			for _, e := range errs {
				if e.Field == tt.field {
					assert.Equal(t, tt.code, e.Code)
				}
			}
		})
	}
}

func TestValidate_ServerNameCountsRunes(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Name = strings.Repeat("é", 50)
	assert.Empty(t, Validate(cfg))
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	errs := Validate(cfg)

	got := fields(errs)
	assert.Contains(t, got, "wordpress.base_url")
	assert.Contains(t, got, "wordpress.secret_key")
	assert.Contains(t, got, "server.name")
}

func TestValidate_NilPatternsAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.Host.FailurePatterns = nil
	assert.Empty(t, Validate(cfg))
}

func TestInvalidError_Message(t *testing.T) {
	err := error(&InvalidError{Source: "mwsync.yaml", Errors: []ValidationError{
		{Field: "server.name", Message: "too long", Code: ErrCodeSchema},
	}})
	assert.Equal(t, "invalid configuration mwsync.yaml:\n  [C100] server.name: too long", err.Error())

	var invalid *InvalidError
	assert.True(t, errors.As(err, &invalid))
}

func TestRedacted(t *testing.T) {
	cfg := validConfig()
	cfg.Host.RCONPassword = "pw"

	r := cfg.Redacted()
	assert.Equal(t, "********", r.WordPress.SecretKey)
	assert.Equal(t, "********", r.Host.RCONPassword)
	assert.Equal(t, "s3cr3t", cfg.WordPress.SecretKey, "original untouched")
}
