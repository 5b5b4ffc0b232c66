package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Auth    AuthConfig    `yaml:"auth" mapstructure:"auth"`
	Query   QueryConfig   `yaml:"query" mapstructure:"query"`
	Similar SimilarConfig `yaml:"similar" mapstructure:"similar"`
	Mapview MapviewConfig `yaml:"mapview" mapstructure:"mapview"`
	Client  ClientConfig  `yaml:"client" mapstructure:"client"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the listing storage backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeout int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// AuthConfig configures bearer token validation for authenticated endpoints.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	Issuer    string `yaml:"issuer" mapstructure:"issuer"`
}

// QueryConfig configures the bounds query path.
type QueryConfig struct {
	CacheTTLSecs      int   `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	CacheMaxFeatures  int64 `yaml:"cache_max_features" mapstructure:"cache_max_features"`
	ClientTimeoutSecs int   `yaml:"client_timeout_secs" mapstructure:"client_timeout_secs"`
}

// CacheTTL returns the bounds cache TTL. Zero disables the cache.
func (q QueryConfig) CacheTTL() time.Duration {
	return time.Duration(q.CacheTTLSecs) * time.Second
}

// ClientTimeout returns the per-query timeout used by the viewport controller.
func (q QueryConfig) ClientTimeout() time.Duration {
	return time.Duration(q.ClientTimeoutSecs) * time.Second
}

// SimilarConfig configures the similar-properties recommender.
type SimilarConfig struct {
	Limit     int     `yaml:"limit" mapstructure:"limit"`
	PriceBand float64 `yaml:"price_band" mapstructure:"price_band"`
}

// MapviewConfig configures the client-side map components.
type MapviewConfig struct {
	PageSize      int     `yaml:"page_size" mapstructure:"page_size"`
	FlyZoom       float64 `yaml:"fly_zoom" mapstructure:"fly_zoom"`
	SettleDelayMS int     `yaml:"settle_delay_ms" mapstructure:"settle_delay_ms"`
	StatePath     string  `yaml:"state_path" mapstructure:"state_path"`
}

// ClientConfig configures the listing API client.
type ClientConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Token       string  `yaml:"token" mapstructure:"token"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. A .env file in the
// working directory is loaded first; variables already set win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !isNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROPMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "propmap.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 30)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("query.cache_ttl_secs", 30)
	v.SetDefault("query.cache_max_features", 100_000)
	v.SetDefault("query.client_timeout_secs", 8)
	v.SetDefault("similar.limit", 5)
	v.SetDefault("similar.price_band", 0.2)
	v.SetDefault("mapview.page_size", 12)
	v.SetDefault("mapview.fly_zoom", 15)
	v.SetDefault("mapview.settle_delay_ms", 250)
	v.SetDefault("mapview.state_path", "mapview-state.yaml")
	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.token", "")
	v.SetDefault("client.rate_limit", 10)
	v.SetDefault("client.max_attempts", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields a command needs. mode is "serve", "migrate"
// or "client".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		errs = append(errs, c.validateStore()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Similar.Limit <= 0 {
			errs = append(errs, "similar.limit must be > 0")
		}
		if c.Similar.PriceBand <= 0 || c.Similar.PriceBand >= 1 {
			errs = append(errs, "similar.price_band must be between 0 and 1")
		}
		if c.Query.CacheTTLSecs < 0 {
			errs = append(errs, "query.cache_ttl_secs must be >= 0")
		}
	case "migrate":
		errs = append(errs, c.validateStore()...)
	case "client":
		if c.Client.BaseURL == "" {
			errs = append(errs, "client.base_url is required")
		}
		if c.Client.RateLimit <= 0 {
			errs = append(errs, "client.rate_limit must be > 0")
		}
		if c.Client.MaxAttempts < 1 {
			errs = append(errs, "client.max_attempts must be >= 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required for the sqlite driver")
		}
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
