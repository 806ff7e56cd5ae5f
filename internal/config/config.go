// Package config loads viewer settings from defaults, an optional YAML file,
// RESERVEMAP_* environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. RESERVEMAP_HTTP_PORT.
const EnvPrefix = "RESERVEMAP"

// Config is the resolved viewer configuration.
type Config struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`

	HTTP    HTTPConfig    `mapstructure:"http"`
	Backend BackendConfig `mapstructure:"backend"`
	Session SessionConfig `mapstructure:"session"`
	Search  SearchConfig  `mapstructure:"search"`
	OTel    OTelConfig    `mapstructure:"otel"`
}

// HTTPConfig configures the viewer's HTTP server.
type HTTPConfig struct {
	Port      string `mapstructure:"port"`
	RateLimit int    `mapstructure:"rate_limit"`
}

// BackendConfig locates the reserves REST API and its tile source.
type BackendConfig struct {
	URL      string        `mapstructure:"url"`
	TileURL  string        `mapstructure:"tile_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// SessionConfig configures viewer sessions.
type SessionConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	IdleTTL    time.Duration `mapstructure:"idle_ttl"`
}

// SearchConfig configures the search pipeline.
type SearchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// OTelConfig configures OpenTelemetry export.
type OTelConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// Options control where Load looks for settings.
type Options struct {
	// File is an optional YAML config file. A missing file is an error.
	File string

	// DotEnv files are loaded into the environment when present.
	DotEnv []string

	// Flags are bound to keys by name, with dashes mapped to dots
	// (e.g. --backend-url sets backend.url).
	Flags *pflag.FlagSet
}

// New returns a viper instance carrying the defaults.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.rate_limit", 600)

	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("backend.tile_url", "")
	v.SetDefault("backend.timeout", "10s")
	v.SetDefault("backend.cache_ttl", "10m")

	v.SetDefault("session.signing_key", "")
	v.SetDefault("session.token_ttl", "12h")
	v.SetDefault("session.idle_ttl", "30m")

	v.SetDefault("search.debounce", "300ms")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "localhost:4317")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load resolves the configuration.
func Load(opts Options) (*Config, error) {
	for _, f := range opts.DotEnv {
		_ = godotenv.Load(f)
	}

	v := New()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if opts.Flags != nil {
		var bindErr error
		opts.Flags.VisitAll(func(f *pflag.Flag) {
			if f.Name == "config" {
				return
			}
			key := strings.ReplaceAll(f.Name, "-", ".")
			if err := v.BindPFlag(key, f); err != nil {
				bindErr = errors.Join(bindErr, err)
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("binding flags: %w", bindErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings the viewer cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Backend.URL == "" {
		errs = append(errs, errors.New("backend.url is required"))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, errors.New("backend.timeout must be positive"))
	}
	if c.Search.Debounce < 0 {
		errs = append(errs, errors.New("search.debounce must not be negative"))
	}
	if c.Session.IdleTTL <= 0 {
		errs = append(errs, errors.New("session.idle_ttl must be positive"))
	}
	if c.Env == "production" && c.Session.SigningKey == "" {
		errs = append(errs, errors.New("session.signing_key is required in production"))
	}
	return errors.Join(errs...)
}
