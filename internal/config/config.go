package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Togather-Foundation/listsync/internal/validation"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Storage     StorageConfig   `yaml:"storage"`
	Auth        AuthConfig      `yaml:"auth"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	CORS        CORSConfig      `yaml:"cors"`
	Logging     LoggingConfig   `yaml:"logging"`
	Tracing     TracingConfig   `yaml:"tracing"`
	Realtime    RealtimeConfig  `yaml:"realtime"`
	Environment string          `yaml:"environment"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MaxConnections int    `yaml:"max_connections"`
	MaxIdle        int    `yaml:"max_idle"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// StorageConfig selects the repository backend.
type StorageConfig struct {
	Driver string `yaml:"driver"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	JWTExpiry  time.Duration `yaml:"jwt_expiry"`
	Issuer     string        `yaml:"issuer"`
	BcryptCost int           `yaml:"bcrypt_cost"`
	// Policy names the list ownership policy: allow_all or owner_only.
	Policy string `yaml:"policy"`
}

// RateLimitConfig limits requests per client IP. Zero disables a tier.
type RateLimitConfig struct {
	PerMinute         int      `yaml:"per_minute"`
	Burst             int      `yaml:"burst"`
	LoginPer15Minutes int      `yaml:"login_per_15_minutes"`
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs"`
}

type CORSConfig struct {
	AllowedOrigins  []string `yaml:"allowed_origins"`
	AllowAllOrigins bool     `yaml:"allow_all_origins"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

type RealtimeConfig struct {
	// QueueSize bounds each connection's outbound queue.
	QueueSize int `yaml:"queue_size"`
	// RedisURL enables cross-process fan-out when set.
	RedisURL      string `yaml:"redis_url"`
	ChannelPrefix string `yaml:"channel_prefix"`
	// AllowedOrigins for the websocket handshake. Empty inherits CORS.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Defaults returns the configuration used when neither a file nor the
// environment sets a value.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Database: DatabaseConfig{
			MaxConnections: 25,
			MaxIdle:        5,
		},
		Storage: StorageConfig{Driver: StoragePostgres},
		Auth: AuthConfig{
			JWTExpiry:  24 * time.Hour,
			Issuer:     "listsync",
			BcryptCost: 12,
			Policy:     "allow_all",
		},
		RateLimit: RateLimitConfig{PerMinute: 300, Burst: 60, LoginPer15Minutes: 10},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
		Tracing: TracingConfig{
			Exporter:    "none",
			ServiceName: "listsync",
			SampleRate:  1.0,
		},
		Realtime: RealtimeConfig{
			QueueSize:     64,
			ChannelPrefix: "listsync:broadcast:",
		},
		Environment: "development",
	}
}

// Load reads configuration from the environment on top of the defaults.
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile applies, in order, the defaults, the YAML file at path (if path
// is not empty) and the environment, then validates the result.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.MaxBodyBytes = int64(getEnvInt("SERVER_MAX_BODY_BYTES", int(cfg.Server.MaxBodyBytes)))

	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxConnections = getEnvInt("DATABASE_MAX_CONNECTIONS", cfg.Database.MaxConnections)
	cfg.Database.MaxIdle = getEnvInt("DATABASE_MAX_IDLE_CONNECTIONS", cfg.Database.MaxIdle)
	cfg.Database.MigrateOnStart = getEnvBool("DATABASE_MIGRATE_ON_START", cfg.Database.MigrateOnStart)

	cfg.Storage.Driver = getEnv("STORAGE_DRIVER", cfg.Storage.Driver)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	if hours := getEnvInt("JWT_EXPIRY_HOURS", 0); hours > 0 {
		cfg.Auth.JWTExpiry = time.Duration(hours) * time.Hour
	}
	cfg.Auth.Issuer = getEnv("JWT_ISSUER", cfg.Auth.Issuer)
	cfg.Auth.BcryptCost = getEnvInt("BCRYPT_COST", cfg.Auth.BcryptCost)
	cfg.Auth.Policy = getEnv("LIST_POLICY", cfg.Auth.Policy)

	cfg.RateLimit.PerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimit.PerMinute)
	cfg.RateLimit.Burst = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst)
	cfg.RateLimit.LoginPer15Minutes = getEnvInt("RATE_LIMIT_LOGIN", cfg.RateLimit.LoginPer15Minutes)
	cfg.RateLimit.TrustedProxyCIDRs = getEnvList("TRUSTED_PROXY_CIDRS", cfg.RateLimit.TrustedProxyCIDRs)

	cfg.CORS.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", cfg.CORS.AllowedOrigins)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.Tracing.Enabled = getEnvBool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = getEnv("TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.ServiceName = getEnv("TRACING_SERVICE_NAME", cfg.Tracing.ServiceName)
	cfg.Tracing.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.OTLPEndpoint)
	cfg.Tracing.SampleRate = getEnvFloat("TRACING_SAMPLE_RATE", cfg.Tracing.SampleRate)

	cfg.Realtime.QueueSize = getEnvInt("REALTIME_QUEUE_SIZE", cfg.Realtime.QueueSize)
	cfg.Realtime.RedisURL = getEnv("REDIS_URL", cfg.Realtime.RedisURL)
	cfg.Realtime.ChannelPrefix = getEnv("REALTIME_CHANNEL_PREFIX", cfg.Realtime.ChannelPrefix)
	cfg.Realtime.AllowedOrigins = getEnvList("WS_ALLOWED_ORIGINS", cfg.Realtime.AllowedOrigins)

	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
}

func (c *Config) normalize() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))

	// Outside production any origin may connect.
	if c.Environment != "production" {
		c.CORS.AllowAllOrigins = true
	}
	if len(c.Realtime.AllowedOrigins) == 0 {
		if c.CORS.AllowAllOrigins {
			c.Realtime.AllowedOrigins = []string{"*"}
		} else {
			c.Realtime.AllowedOrigins = c.CORS.AllowedOrigins
		}
	}
}

// IsProduction reports whether the service runs with production defaults.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate checks cross-field constraints. It returns the first problem
// found.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL is required")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageMemory, StoragePostgres, c.Storage.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.IsProduction() && len(c.Auth.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters in production")
	}
	if c.Auth.JWTExpiry <= 0 {
		return errors.New("JWT expiry must be positive")
	}

	if c.IsProduction() {
		if len(c.CORS.AllowedOrigins) == 0 {
			return errors.New("CORS_ALLOWED_ORIGINS is required in production")
		}
		if err := validation.Origins(c.CORS.AllowedOrigins, "CORS_ALLOWED_ORIGINS"); err != nil {
			return err
		}
	}
	if err := validation.Origins(c.Realtime.AllowedOrigins, "WS_ALLOWED_ORIGINS"); err != nil {
		return err
	}

	if c.Realtime.QueueSize <= 0 {
		return errors.New("REALTIME_QUEUE_SIZE must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", c.Server.Port)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATE must be between 0 and 1, got %v", c.Tracing.SampleRate)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvList splits a comma-separated variable, dropping blank entries.
func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
