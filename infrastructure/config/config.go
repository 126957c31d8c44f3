package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Token store backends.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	Environment string
	ServerHost  string
	ServerPort  string

	APIURL            string
	HTTPClientTimeout time.Duration

	DemoMode            bool
	DemoJWTSecret       string
	DemoAccessTokenTTL  time.Duration
	DemoRefreshTokenTTL time.Duration

	TokenExpiryBuffer    time.Duration
	SessionCheckInterval time.Duration

	TokenStore string
	TokenFile  string
	RedisURL   string

	RateLimitEnabled       bool
	RateLimitLoginAttempts int
	RateLimitLoginWindow   time.Duration
	RateLimitBlockDuration time.Duration

	LogLevel  string
	LogFormat string
}

var (
	ErrInvalidAPIURL     = errors.New("API_URL must be an absolute http(s) URL")
	ErrMissingDemoSecret = errors.New("DEMO_JWT_SECRET is required in production when DEMO_MODE is enabled")
	ErrInvalidTokenTTL   = errors.New("invalid token TTL format")
	ErrInvalidTokenStore = errors.New("TOKEN_STORE must be one of file, redis, memory")
	ErrInvalidRateLimit  = errors.New("RATE_LIMIT_LOGIN_ATTEMPTS must be positive")
)

// devDemoSecret signs demo tokens outside production when no secret is set.
const devDemoSecret = "hiprotech-demo-secret"

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Environment:      getEnvOrDefault("ENV", "development"),
		ServerHost:       getEnvOrDefault("SERVER_HOST", "localhost"),
		ServerPort:       getEnvOrDefault("SERVER_PORT", "3000"),
		APIURL:           strings.TrimSuffix(getEnvOrDefault("API_URL", "http://localhost:8000/api"), "/"),
		DemoMode:         getEnvOrDefaultBool("DEMO_MODE", false),
		DemoJWTSecret:    os.Getenv("DEMO_JWT_SECRET"),
		TokenStore:       strings.ToLower(getEnvOrDefault("TOKEN_STORE", StoreFile)),
		TokenFile:        getEnvOrDefault("TOKEN_FILE", defaultTokenFile()),
		RedisURL:         getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		RateLimitEnabled: getEnvOrDefaultBool("RATE_LIMIT_ENABLED", false),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        getEnvOrDefault("LOG_FORMAT", "json"),
	}

	if u, err := url.Parse(cfg.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidAPIURL
	}

	switch cfg.TokenStore {
	case StoreFile, StoreRedis, StoreMemory:
	default:
		return nil, ErrInvalidTokenStore
	}

	if cfg.DemoMode && cfg.DemoJWTSecret == "" {
		if cfg.IsProduction() {
			return nil, ErrMissingDemoSecret
		}
		cfg.DemoJWTSecret = devDemoSecret
	}

	var err error
	if cfg.DemoAccessTokenTTL, err = parseTokenTTL(getEnvOrDefault("DEMO_ACCESS_TOKEN_TTL", "900")); err != nil {
		return nil, ErrInvalidTokenTTL
	}
	if cfg.DemoRefreshTokenTTL, err = parseTokenTTL(getEnvOrDefault("DEMO_REFRESH_TOKEN_TTL", "604800")); err != nil {
		return nil, ErrInvalidTokenTTL
	}
	if cfg.TokenExpiryBuffer, err = parseTokenTTL(getEnvOrDefault("TOKEN_EXPIRY_BUFFER", "300")); err != nil {
		return nil, ErrInvalidTokenTTL
	}

	cfg.SessionCheckInterval = getEnvOrDefaultDuration("SESSION_CHECK_INTERVAL", 30*time.Second)
	cfg.HTTPClientTimeout = getEnvOrDefaultDuration("HTTP_CLIENT_TIMEOUT", 15*time.Second)

	// Parse rate limiting config
	cfg.RateLimitLoginAttempts = getEnvOrDefaultInt("RATE_LIMIT_LOGIN_ATTEMPTS", 10)
	if cfg.RateLimitEnabled && cfg.RateLimitLoginAttempts <= 0 {
		return nil, ErrInvalidRateLimit
	}
	cfg.RateLimitLoginWindow = getEnvOrDefaultDuration("RATE_LIMIT_LOGIN_WINDOW", 15*time.Minute)
	cfg.RateLimitBlockDuration = getEnvOrDefaultDuration("RATE_LIMIT_BLOCK_DURATION", 30*time.Minute)

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// CookieSecure reports whether session cookies get the Secure attribute.
func (c *Config) CookieSecure() bool {
	return c.IsProduction()
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.ServerHost, c.ServerPort)
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "hiprotech", "tokens.json")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func parseTokenTTL(value string) (time.Duration, error) {
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0, ErrInvalidTokenTTL
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnvOrDefaultDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		// interpret as seconds if numeric, else parse like Go duration
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * time.Second
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return defaultValue
		}
		return d
	}
	return defaultValue
}
