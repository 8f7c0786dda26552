// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTAccessSecret signs access tokens. Required by the server.
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	// JWTRefreshSecret signs refresh tokens; must differ from JWTAccessSecret. Required by the server.
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTAccessTTL is the access token lifetime (e.g. "10m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "480h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 10.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// AdminUsername and AdminPassword guard AdminService. An empty password disables it.
	AdminUsername string `mapstructure:"ADMIN_USERNAME"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is json or text. Empty picks text in development and json otherwise.
	LogFormat string `mapstructure:"LOG_FORMAT"`
	// OTLPEndpoint is the OTLP gRPC collector (host:port or URL). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure disables TLS to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
	// SweepInterval is how often the worker deletes expired sessions and revocations (e.g. "1h").
	SweepInterval string `mapstructure:"SWEEP_INTERVAL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI); an unreadable one is an error. Env vars override .env.
// Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read .env: %w", err)
		}
	}

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", "10m")
	v.SetDefault("JWT_REFRESH_TTL", "480h") // 20d
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "blog-sessions")
	v.SetDefault("SWEEP_INTERVAL", "1h")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 10
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("config: LOG_LEVEL %q must be one of debug, info, warn, error", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "", "json", "text":
	default:
		return nil, fmt.Errorf("config: LOG_FORMAT %q must be json or text", cfg.LogFormat)
	}

	return &cfg, nil
}

// ValidateServer checks the settings only the gRPC server needs.
func (c *Config) ValidateServer() error {
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL must be set")
	}
	if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
		return errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set")
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.AccessTTL() >= c.RefreshTTL() {
		return errors.New("config: JWT_ACCESS_TTL must be shorter than JWT_REFRESH_TTL")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Format returns LogFormat, defaulting to json in production and text elsewhere.
func (c *Config) Format() string {
	if c.LogFormat != "" {
		return c.LogFormat
	}
	if c.IsProduction() {
		return "json"
	}
	return "text"
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 10*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 480h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.JWTRefreshTTL, 480*time.Hour)
}

// SweepEvery parses SweepInterval as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) SweepEvery() time.Duration {
	return parseDuration(c.SweepInterval, time.Hour)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
