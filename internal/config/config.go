// Package config loads service settings from an optional YAML file and
// PLAZA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "PLAZA"

// Cache backends for durable session state.
const (
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
	CacheMemory = "memory"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	PostgresDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CacheBackend string
	CachePath    string
	CacheTTL     time.Duration

	JWTSecret string
	JWTIssuer string

	LogLevel  string
	LogFormat string

	RatePerSecond float64
	RateBurst     int
	MaxBodyBytes  int64
	CORSOrigins   []string

	BanDuration time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("grpc_addr", ":9090")
	v.SetDefault("redis_db", 0)
	v.SetDefault("cache_backend", CacheSQLite)
	v.SetDefault("cache_path", "plaza-session.db")
	v.SetDefault("cache_ttl", "10m")
	v.SetDefault("jwt_issuer", "plaza")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("rate_per_second", 20)
	v.SetDefault("rate_burst", 40)
	v.SetDefault("max_body_bytes", 1<<20)
	v.SetDefault("ban_duration", "168h")
}

// Load reads path (when non-empty) and applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about.
	for _, key := range []string{"pg_dsn", "redis_addr", "redis_password", "jwt_secret", "cors_origins"} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		HTTPAddr:      v.GetString("http_addr"),
		GRPCAddr:      v.GetString("grpc_addr"),
		PostgresDSN:   v.GetString("pg_dsn"),
		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),
		CacheBackend:  strings.ToLower(v.GetString("cache_backend")),
		CachePath:     v.GetString("cache_path"),
		CacheTTL:      v.GetDuration("cache_ttl"),
		JWTSecret:     v.GetString("jwt_secret"),
		JWTIssuer:     v.GetString("jwt_issuer"),
		LogLevel:      v.GetString("log_level"),
		LogFormat:     v.GetString("log_format"),
		RatePerSecond: v.GetFloat64("rate_per_second"),
		RateBurst:     v.GetInt("rate_burst"),
		MaxBodyBytes:  v.GetInt64("max_body_bytes"),
		CORSOrigins:   splitList(v.GetStringSlice("cors_origins")),
		BanDuration:   v.GetDuration("ban_duration"),
	}
	return cfg, nil
}

// splitList accepts both YAML lists and a comma separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache_ttl must be positive, got %s", c.CacheTTL))
	}
	switch c.CacheBackend {
	case CacheSQLite:
		if c.CachePath == "" {
			errs = append(errs, errors.New("cache_path is required for the sqlite cache"))
		}
	case CacheRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis_addr is required for the redis cache"))
		}
	case CacheMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown cache_backend %q (valid: sqlite, redis, memory)", c.CacheBackend))
	}
	if c.RatePerSecond < 0 || c.RateBurst < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max_body_bytes must be positive"))
	}
	if c.BanDuration < 0 {
		errs = append(errs, errors.New("ban_duration must not be negative"))
	}
	return errors.Join(errs...)
}
