// Package config loads service configuration from environment variables and
// an optional YAML file through viper. Environment variable names match the
// deployment convention (EXA_API_KEY, MAX_CANDIDATE_COUNT, ...); file keys
// use the dotted form (exa.api_key, search.max_count, ...).
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Search providers.
const (
	ProviderExa       = "exa"
	ProviderSimulated = "simulated"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is the full service configuration.
type Config struct {
	Server   Server
	Exa      Exa
	Search   Search
	Storage  Storage
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Log      Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Host            string
	Port            int
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

// Addr is the listen address.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Exa configures the search provider. Provider "simulated" serves generated
// results and needs no APIKey. CallTimeout bounds a single attempt of a
// provider call.
type Exa struct {
	Provider      string
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    int
	CheckInterval time.Duration
	CallTimeout   time.Duration
}

// Search holds lifecycle limits.
type Search struct {
	DefaultCount      int
	MaxCount          int
	PollerConcurrency int
}

type Storage struct {
	Backend string
}

// RedisConfig configures the go-redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the database/sql pool.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig enables lifecycle event publishing when Brokers is set.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type Log struct {
	Format string
	Level  string
}

// env maps config keys to their environment variables.
var env = map[string]string{
	"server.host":               "HOST",
	"server.port":               "PORT",
	"server.cors_origins":       "BACKEND_CORS_ORIGINS",
	"server.shutdown_timeout":   "SHUTDOWN_TIMEOUT",
	"exa.provider":              "SEARCH_PROVIDER",
	"exa.api_key":               "EXA_API_KEY",
	"exa.base_url":              "EXA_BASE_URL",
	"exa.timeout":               "EXA_TIMEOUT",
	"exa.max_retries":           "EXA_MAX_RETRIES",
	"exa.check_interval":        "EXA_CHECK_INTERVAL",
	"exa.call_timeout":          "EXA_CALL_TIMEOUT",
	"search.default_count":      "DEFAULT_CANDIDATE_COUNT",
	"search.max_count":          "MAX_CANDIDATE_COUNT",
	"search.poller_concurrency": "POLLER_CONCURRENCY",
	"storage.backend":           "STORAGE_BACKEND",
	"redis.url":                 "REDIS_URL",
	"redis.pool_size":           "REDIS_POOL_SIZE",
	"postgres.url":              "DATABASE_URL",
	"postgres.max_open_conns":   "DATABASE_MAX_OPEN_CONNS",
	"kafka.brokers":             "KAFKA_BROKERS",
	"kafka.topic":               "KAFKA_TOPIC",
	"log.format":                "LOG_FORMAT",
	"log.level":                 "LOG_LEVEL",
}

// SetDefaults registers default values and environment bindings on v.
func SetDefaults(v *viper.Viper) error {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", "http://localhost:3000,http://localhost:5173,http://127.0.0.1:3000,http://127.0.0.1:5173")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("exa.provider", ProviderExa)
	v.SetDefault("exa.base_url", "https://api.exa.ai")
	v.SetDefault("exa.timeout", 3600)
	v.SetDefault("exa.max_retries", 3)
	v.SetDefault("exa.check_interval", 10)
	v.SetDefault("exa.call_timeout", "30s")
	v.SetDefault("search.default_count", 10)
	v.SetDefault("search.max_count", 100)
	v.SetDefault("search.poller_concurrency", 4)
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("kafka.topic", "scout.search.events")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.level", "info")

	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return fmt.Errorf("bind %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the configuration from v and validates it. SetDefaults must
// have been called on v.
func Load(v *viper.Viper) (Config, error) {
	var errs []error
	duration := func(key string) time.Duration {
		d, err := parseSeconds(v.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}

	cfg := Config{
		Server: Server{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			CORSOrigins:     splitList(v.Get("server.cors_origins")),
			ShutdownTimeout: duration("server.shutdown_timeout"),
		},
		Exa: Exa{
			Provider:      strings.ToLower(strings.TrimSpace(v.GetString("exa.provider"))),
			APIKey:        strings.TrimSpace(v.GetString("exa.api_key")),
			BaseURL:       v.GetString("exa.base_url"),
			Timeout:       duration("exa.timeout"),
			MaxRetries:    v.GetInt("exa.max_retries"),
			CheckInterval: duration("exa.check_interval"),
			CallTimeout:   duration("exa.call_timeout"),
		},
		Search: Search{
			DefaultCount:      v.GetInt("search.default_count"),
			MaxCount:          v.GetInt("search.max_count"),
			PollerConcurrency: v.GetInt("search.poller_concurrency"),
		},
		Storage: Storage{Backend: strings.ToLower(strings.TrimSpace(v.GetString("storage.backend")))},
		Redis: RedisConfig{
			URL:          v.GetString("redis.url"),
			PoolSize:     v.GetInt("redis.pool_size"),
			MinIdleConns: v.GetInt("redis.min_idle_conns"),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Postgres: PostgresConfig{
			URL:             v.GetString("postgres.url"),
			MaxOpenConns:    v.GetInt("postgres.max_open_conns"),
			MaxIdleConns:    v.GetInt("postgres.max_open_conns"),
			ConnMaxLifetime: 30 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.Get("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		Log: Log{
			Format: strings.ToLower(v.GetString("log.format")),
			Level:  strings.ToLower(v.GetString("log.level")),
		},
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port))
	}
	switch c.Exa.Provider {
	case ProviderExa:
		if c.Exa.APIKey == "" {
			errs = append(errs, errors.New("EXA_API_KEY is required for the exa provider (set SEARCH_PROVIDER=simulated for generated results)"))
		}
	case ProviderSimulated:
	default:
		errs = append(errs, fmt.Errorf("SEARCH_PROVIDER must be exa or simulated, got %q", c.Exa.Provider))
	}
	if c.Exa.Timeout <= 0 {
		errs = append(errs, errors.New("EXA_TIMEOUT must be positive"))
	}
	if c.Exa.CheckInterval <= 0 {
		errs = append(errs, errors.New("EXA_CHECK_INTERVAL must be positive"))
	}
	if c.Exa.CallTimeout <= 0 {
		errs = append(errs, errors.New("EXA_CALL_TIMEOUT must be positive"))
	}
	if c.Exa.MaxRetries < 1 {
		errs = append(errs, errors.New("EXA_MAX_RETRIES must be at least 1"))
	}
	if c.Search.MaxCount < 1 {
		errs = append(errs, errors.New("MAX_CANDIDATE_COUNT must be at least 1"))
	}
	if c.Search.DefaultCount < 1 || c.Search.DefaultCount > c.Search.MaxCount {
		errs = append(errs, fmt.Errorf("DEFAULT_CANDIDATE_COUNT must be between 1 and %d", c.Search.MaxCount))
	}
	if c.Search.PollerConcurrency < 1 {
		errs = append(errs, errors.New("POLLER_CONCURRENCY must be at least 1"))
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis backend"))
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be memory, redis or postgres, got %q", c.Storage.Backend))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// parseSeconds accepts a bare number of seconds ("3600") or a Go duration
// ("1h").
func parseSeconds(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(raw)
}

// splitList reads a comma-separated string or a YAML list.
func splitList(raw any) []string {
	var items []string
	switch x := raw.(type) {
	case nil:
		return nil
	case []string:
		items = x
	case []any:
		for _, el := range x {
			items = append(items, fmt.Sprint(el))
		}
	default:
		items = strings.Split(fmt.Sprint(x), ",")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
