// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Events  EventsConfig  `mapstructure:"events"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Host                  string `mapstructure:"host"`
	Port                  int    `mapstructure:"port"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN           string `mapstructure:"dsn"`
	MaxConns      int32  `mapstructure:"max_conns"`
	MinConns      int32  `mapstructure:"min_conns"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`
	// SchemaStrict aborts startup when the table bootstrap fails.
	SchemaStrict bool `mapstructure:"schema_strict"`
}

// ScraperConfig configures quote fetching.
type ScraperConfig struct {
	UserAgent           string        `mapstructure:"user_agent"`
	TimeoutSeconds      int           `mapstructure:"timeout_seconds"`
	Selector            string        `mapstructure:"selector"`
	Headless            bool          `mapstructure:"headless"`
	HeadlessMaxParallel int           `mapstructure:"headless_max_parallel"`
	// RateLimitRPS throttles fetches per host; 0 disables throttling.
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	Sources        SourcesConfig `mapstructure:"sources"`
}

// SourcesConfig holds the page URL of each quoted instrument.
type SourcesConfig struct {
	Gasoil     string `mapstructure:"gasoil"`
	Gasolina   string `mapstructure:"gasolina"`
	TipoCambio string `mapstructure:"tipo_cambio"`
}

// ArchiveConfig selects where raw scraped pages are kept, if anywhere.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
	// SkipUnchanged avoids storing a page identical to the previous one.
	SkipUnchanged bool `mapstructure:"skip_unchanged"`
	// MemoryMaxPages bounds the development-only memory backend.
	MemoryMaxPages int `mapstructure:"memory_max_pages"`
}

// EventsConfig selects where record-created events are published.
type EventsConfig struct {
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
	// MemoryLimit bounds the development-only memory backend.
	MemoryLimit int `mapstructure:"memory_limit"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from an optional dotenv file, an optional config file and the environment.
func Load(path, envFile string) (Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("QUOTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadEnvFile exports the dotenv file into the process environment without
// overriding variables that are already set. A missing file is fine.
func loadEnvFile(envFile string) error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", envFile, err)
	}
	return nil
}

// bindLegacyEnv keeps the plain PORT and DATABASE_URL variables working.
func bindLegacyEnv(v *viper.Viper) error {
	if err := v.BindEnv("server.port", "QUOTES_SERVER_PORT", "PORT"); err != nil {
		return fmt.Errorf("bind server.port: %w", err)
	}
	if err := v.BindEnv("db.dsn", "QUOTES_DB_DSN", "DATABASE_URL"); err != nil {
		return fmt.Errorf("bind db.dsn: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.tls_skip_verify", true)
	v.SetDefault("db.schema_strict", false)
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	v.SetDefault("scraper.timeout_seconds", 15)
	v.SetDefault("scraper.selector", `[data-test="instrument-price-last"]`)
	v.SetDefault("scraper.headless", false)
	v.SetDefault("scraper.headless_max_parallel", 1)
	v.SetDefault("scraper.rate_limit_rps", 0)
	v.SetDefault("scraper.rate_limit_burst", 1)
	v.SetDefault("scraper.sources.gasoil", "https://es.investing.com/commodities/london-gas-oil")
	v.SetDefault("scraper.sources.gasolina", "https://es.investing.com/commodities/gasoline-rbob")
	v.SetDefault("scraper.sources.tipo_cambio", "https://es.investing.com/currencies/eur-usd")
	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.base_dir", "")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("archive.skip_unchanged", true)
	v.SetDefault("archive.memory_max_pages", 500)
	v.SetDefault("events.backend", "none")
	v.SetDefault("events.project_id", "")
	v.SetDefault("events.topic", "records")
	v.SetDefault("events.memory_limit", 1000)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.DB.MaxConns < 0 || c.DB.MinConns < 0 {
		return fmt.Errorf("db.max_conns and db.min_conns must be >= 0")
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	if strings.TrimSpace(c.Scraper.Selector) == "" {
		return fmt.Errorf("scraper.selector is required")
	}
	if c.Scraper.Headless && c.Scraper.HeadlessMaxParallel <= 0 {
		return fmt.Errorf("scraper.headless_max_parallel must be > 0 when headless is enabled")
	}
	if c.Scraper.RateLimitRPS < 0 {
		return fmt.Errorf("scraper.rate_limit_rps must be >= 0")
	}
	switch c.Archive.Backend {
	case "", "none", "memory":
	case "local":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set for the local backend")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend %q is not supported", c.Archive.Backend)
	}
	switch c.Events.Backend {
	case "", "none", "memory":
	case "pubsub":
		if c.Events.ProjectID == "" || c.Events.Topic == "" {
			return fmt.Errorf("events.project_id and events.topic must be set for the pubsub backend")
		}
	default:
		return fmt.Errorf("events.backend %q is not supported", c.Events.Backend)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// RequestTimeout returns the per-request handler budget.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ScrapeTimeout returns the outbound fetch timeout.
func (c Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}
