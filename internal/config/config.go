// Package config loads the pipeline configuration from config.yaml with
// environment overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"

	"github.com/m25mathews/rainger-poc/internal/db"
	"github.com/m25mathews/rainger-poc/internal/geocode"
	"github.com/m25mathews/rainger-poc/internal/match"
	"github.com/m25mathews/rainger-poc/internal/residential"
	"github.com/m25mathews/rainger-poc/internal/resilience"
	"github.com/m25mathews/rainger-poc/internal/scope"
	"github.com/m25mathews/rainger-poc/internal/store"
)

// EnvPrefix marks the environment variables that override the file.
const EnvPrefix = "RAINGER_"

// Geocode cache backends.
const (
	CachePostgres = "postgres"
	CacheRedis    = "redis"
	CacheNone     = "none"
)

type Config struct {
	Env struct {
		Name  string `koanf:"name"`
		RunID string `koanf:"run_id"`
		Log   Log    `koanf:"log"`
	} `koanf:"env"`

	Postgres db.Config     `koanf:"postgres"`
	Schemas  store.Schemas `koanf:"schemas"`

	Redis        geocode.RedisConfig `koanf:"redis"`
	Geocodio     geocode.Config      `koanf:"geocodio"`
	GeocodeCache string              `koanf:"geocode_cache" validate:"oneof=postgres redis none"`

	Residential residential.Config `koanf:"residential"`
	Matching    match.Options      `koanf:"matching" validate:"-"`
	Curate      CurateConfig       `koanf:"curate"`
	Scopes      ScopesConfig       `koanf:"scopes"`
	HTTP        HTTPConfig         `koanf:"http"`
}

type Log struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `koanf:"format" validate:"omitempty,oneof=text json"`
}

// CurateConfig tunes canonicalization.
type CurateConfig struct {
	GeocodeAccuracyThreshold float64       `koanf:"geocode_accuracy_threshold" validate:"gte=0,lte=1"`
	GeocodeTimeout           time.Duration `koanf:"geocode_timeout"`
	// BatchSize caps the records uploaded per staging round trip.
	BatchSize int `koanf:"batch_size" validate:"gte=0"`
}

// ScopesConfig locates scope files and sizes the worker pool.
type ScopesConfig struct {
	Dir     string            `koanf:"dir" validate:"required"`
	Workers int               `koanf:"workers" validate:"gte=0"`
	Groups  scope.GroupConfig `koanf:"groups"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=0,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	APIKey          string        `koanf:"api_key"`
	// StatsSchedule is a cron expression; empty disables scheduled stats.
	StatsSchedule string `koanf:"stats_schedule"`
}

// Default returns the settings used for keys absent from every source.
func Default() *Config {
	cfg := &Config{
		Postgres: db.Config{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			DBName:  "cim",
			SSLMode: "disable",
		},
		Schemas: store.DefaultSchemas(),
		Redis: geocode.RedisConfig{
			Addr: "localhost:6379",
			TTL:  30 * 24 * time.Hour,
		},
		Geocodio: geocode.Config{
			URL:         "https://api.geocod.io/v1.7/geocode",
			ChunkSize:   geocode.DefaultChunkSize,
			HTTPTimeout: 10 * time.Minute,
			Retry:       resilience.DefaultRetryConfig(),
		},
		GeocodeCache: CachePostgres,
		Residential: residential.Config{
			BatchSize: 100,
			Timeout:   10 * time.Minute,
			Retry:     resilience.DefaultRetryConfig(),
		},
		Matching: match.DefaultOptions(),
		Curate: CurateConfig{
			GeocodeAccuracyThreshold: 0.8,
			GeocodeTimeout:           30 * time.Minute,
			BatchSize:                50000,
		},
		Scopes: ScopesConfig{
			Dir:    "scopes",
			Groups: scope.DefaultGroupConfig(),
		},
		HTTP: HTTPConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
	}
	cfg.Env.Name = "local"
	cfg.Env.Log = Log{Level: "info", Format: "text"}
	return cfg
}

// Load reads config.yaml from the first search path that has one, then
// applies RAINGER_* environment variables. A missing file leaves the
// defaults in place.
func Load(searchPaths ...string) (*Config, error) {
	if len(searchPaths) == 0 {
		searchPaths = []string{".", "config", "../config", "../../config"}
	}
	var configFile string
	for _, path := range searchPaths {
		candidate := path
		if filepath.Ext(candidate) != ".yaml" {
			candidate = filepath.Join(path, "config.yaml")
		}
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			break
		}
	}
	return load(configFile, os.Environ)
}

func load(configFile string, environ func() []string) (*Config, error) {
	k := koanf.New(".")
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read %s", configFile)
		}
	}

	existing := k.Raw()
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:      EnvPrefix,
		EnvironFunc: environ,
		TransformFunc: func(key, value string) (string, any) {
			// RAINGER_POSTGRES_MAX_OPEN_CONNS -> postgres.max_open_conns
			return canonicalizeEnvKey(strings.TrimPrefix(key, EnvPrefix), existing), value
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables")
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags of every section.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// canonicalizeEnvKey maps an environment key onto the keys already present
// in the file. Consecutive segments are joined when they name one snake_case
// key: POSTGRES_MAX_OPEN_CONNS -> postgres.max_open_conns. Unknown segments
// become their own level.
func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for i := 0; i < len(segments); {
		if segments[i] == "" {
			i++
			continue
		}
		matched, next, width := findExistingSegment(current, segments[i:])
		if width == 0 {
			canonical = append(canonical, segments[i])
			current = nil
			i++
			continue
		}
		canonical = append(canonical, matched)
		current = next
		i += width
	}

	return strings.Join(canonical, ".")
}

// findExistingSegment tries the longest run of segments first.
func findExistingSegment(current map[string]any, segments []string) (matched string, next map[string]any, width int) {
	if len(current) == 0 {
		return "", nil, 0
	}
	for n := len(segments); n > 0; n-- {
		needle := normalizeToken(strings.Join(segments[:n], ""))
		for key, value := range current {
			if normalizeToken(key) != needle {
				continue
			}
			child, _ := value.(map[string]any)
			return key, child, n
		}
	}
	return "", nil, 0
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}
