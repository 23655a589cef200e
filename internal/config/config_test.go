package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeEnvKey(t *testing.T) {
	existing := map[string]any{
		"postgres": map[string]any{
			"sslmode":        "disable",
			"max_open_conns": 20,
		},
		"geocode_cache": "postgres",
		"scopes": map[string]any{
			"groups": map[string]any{
				"min_dims_medium": 500,
			},
		},
	}

	tests := []struct {
		envKey string
		want   string
	}{
		{envKey: "POSTGRES_SSLMODE", want: "postgres.sslmode"},
		{envKey: "POSTGRES_MAX_OPEN_CONNS", want: "postgres.max_open_conns"},
		{envKey: "GEOCODE_CACHE", want: "geocode_cache"},
		{envKey: "SCOPES_GROUPS_MIN_DIMS_MEDIUM", want: "scopes.groups.min_dims_medium"},
		{envKey: "NEW_FEATURE_FLAG", want: "new.feature.flag"},
	}

	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			assert.Equal(t, tt.want, canonicalizeEnvKey(tt.envKey, existing))
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
postgres:
  host: db
  port: 15432
  max_open_conns: 5
geocode_cache: redis
geocodio:
  api_timeout: 5m
scopes:
  groups:
    min_dims_medium: 100
`), 0o600))

	environ := func() []string {
		return []string{
			"RAINGER_POSTGRES_MAX_OPEN_CONNS=7",
			"RAINGER_GEOCODIO_API_TIMEOUT=90s",
			"RAINGER_SCOPES_GROUPS_MIN_DIMS_MEDIUM=250",
			"UNRELATED_POSTGRES_HOST=elsewhere",
		}
	}

	cfg, err := load(path, environ)
	require.NoError(t, err)

	assert.Equal(t, "db", cfg.Postgres.Host)
	assert.Equal(t, 15432, cfg.Postgres.Port)
	assert.Equal(t, 7, cfg.Postgres.MaxOpenConns)
	assert.Equal(t, "redis", cfg.GeocodeCache)
	assert.Equal(t, 90*time.Second, cfg.Geocodio.APITimeout)
	assert.Equal(t, int64(250), cfg.Scopes.Groups.MinDimsMedium)

	// untouched keys keep their defaults
	assert.Equal(t, "cim", cfg.Postgres.DBName)
	assert.Equal(t, "sales_order", cfg.Schemas.SalesOrder)
	assert.Equal(t, int64(5000), cfg.Scopes.Groups.MaxDimsMedium)
	assert.Equal(t, 8080, cfg.HTTP.Port)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := load("", func() []string { return nil })
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown cache", mutate: func(c *Config) { c.GeocodeCache = "memcached" }, wantErr: true},
		{name: "missing host", mutate: func(c *Config) { c.Postgres.Host = "" }, wantErr: true},
		{name: "bad sslmode", mutate: func(c *Config) { c.Postgres.SSLMode = "sometimes" }, wantErr: true},
		{name: "threshold above one", mutate: func(c *Config) { c.Curate.GeocodeAccuracyThreshold = 1.5 }, wantErr: true},
		{name: "bad log format", mutate: func(c *Config) { c.Env.Log.Format = "xml" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(`
# comment
RAINGER_DOTENV_NEW="from file"
export RAINGER_DOTENV_SET=from-file
not a pair
`), 0o600))

	t.Setenv("RAINGER_DOTENV_SET", "from-env")
	t.Setenv("RAINGER_DOTENV_NEW", "")
	require.NoError(t, os.Unsetenv("RAINGER_DOTENV_NEW"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from file", os.Getenv("RAINGER_DOTENV_NEW"))
	assert.Equal(t, "from-env", os.Getenv("RAINGER_DOTENV_SET"))
}
