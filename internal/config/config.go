package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/pushconsole/pkg/models"
)

// Config holds all configuration for the pushconsole server and console.
type Config struct {
	Server    ServerConfig
	OneSignal OneSignalConfig
	SDK       SDKConfig
	Tenants   []models.Tenant
	Database  DatabaseConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Port               int
	Env                string
	RateLimitPerMinute int
}

// OneSignalConfig is the server-side provider configuration. APIKey is never
// sent to clients.
type OneSignalConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// SDKConfig is what the client-side SDK bootstrap consumes.
type SDKConfig struct {
	DefaultAppID       string
	SafariWebID        string
	ServiceWorkerPath  string
	ServiceWorkerScope string
	SettleInterval     time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Enabled reports whether a database was configured.
func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

type RedisConfig struct {
	URL string
}

// Enabled reports whether a Redis instance was configured.
func (r RedisConfig) Enabled() bool { return r.URL != "" }

type TelemetryConfig struct {
	TracingEnabled bool
	ServiceName    string
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any value is invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               envInt("PUSHCONSOLE_PORT", 8080),
			Env:                envString("PUSHCONSOLE_ENV", "development"),
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
		OneSignal: OneSignalConfig{
			APIKey:  os.Getenv("ONESIGNAL_API_KEY"),
			BaseURL: strings.TrimRight(envString("ONESIGNAL_API_URL", "https://api.onesignal.com"), "/"),
			Timeout: envDuration("ONESIGNAL_TIMEOUT", 30*time.Second),
		},
		SDK: SDKConfig{
			DefaultAppID:       os.Getenv("ONESIGNAL_DEFAULT_APP_ID"),
			SafariWebID:        os.Getenv("ONESIGNAL_SAFARI_WEB_ID"),
			ServiceWorkerPath:  envString("ONESIGNAL_SW_PATH", "/OneSignalSDKWorker.js"),
			ServiceWorkerScope: envString("ONESIGNAL_SW_SCOPE", "/"),
			SettleInterval:     envDuration("ONESIGNAL_SETTLE_INTERVAL", time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Telemetry: TelemetryConfig{
			TracingEnabled: envBool("TRACING_ENABLED", false),
			ServiceName:    envString("OTEL_SERVICE_NAME", "pushconsole"),
		},
	}

	tenants, err := loadTenants()
	if err != nil {
		return nil, err
	}
	cfg.Tenants = tenants

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Tenant looks up a configured tenant by name.
func (c *Config) Tenant(name string) (models.Tenant, bool) {
	for _, t := range c.Tenants {
		if t.Name == name {
			return t, true
		}
	}
	return models.Tenant{}, false
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PUSHCONSOLE_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if !strings.HasPrefix(c.OneSignal.BaseURL, "http://") && !strings.HasPrefix(c.OneSignal.BaseURL, "https://") {
		return fmt.Errorf("ONESIGNAL_API_URL must start with http:// or https://, got %q", c.OneSignal.BaseURL)
	}

	if c.Redis.Enabled() && !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}

	if len(c.Tenants) == 0 {
		return fmt.Errorf("at least one tenant must be configured")
	}
	names := make(map[string]bool, len(c.Tenants))
	for i, t := range c.Tenants {
		if t.Name == "" {
			return fmt.Errorf("tenant %d: name is required", i)
		}
		if t.ExternalAppID == "" {
			return fmt.Errorf("tenant %q: app id is required", t.Name)
		}
		if names[t.Name] {
			return fmt.Errorf("tenant %q is configured more than once", t.Name)
		}
		names[t.Name] = true
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}
