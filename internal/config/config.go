package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"anything-world/internal/model"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	RateLimitBackendRedis  = "redis"
	RateLimitBackendMemory = "memory"
)

type Config struct {
	AppEnv                  string
	LogLevel                string
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	SiteURL                 string
	SignInPath              string
	CORSOrigins             []string

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	RedisURL          string
	RedisPassword     string
	RateLimitBackend  string
	GeneralRateLimit  int
	GeneralRateWindow time.Duration
	StrictRateLimit   int
	StrictRateWindow  time.Duration

	SessionSecret     string
	SessionTTL        time.Duration
	SessionCookieName string
	OneTimeCodeTTL    time.Duration

	AdminIPWhitelist []string
	AdminEmail       string

	EmailFrom          string
	ResendAPIKey       string
	EmailRatePerSecond float64

	NewsletterUnsubscribeSecret string

	Region    string
	CommitSHA string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:                  strings.ToLower(getEnv("APP_ENV", EnvDevelopment)),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		SiteURL:                 strings.TrimRight(getEnv("SITE_URL", "http://localhost:8080"), "/"),
		SignInPath:              getEnv("SIGN_IN_PATH", "/signin"),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "")),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 1)),

		RedisURL:          strings.TrimSpace(os.Getenv("REDIS_URL")),
		RedisPassword:     strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
		RateLimitBackend:  strings.ToLower(getEnv("RATE_LIMIT_BACKEND", RateLimitBackendRedis)),
		GeneralRateLimit:  getInt("GENERAL_RATE_LIMIT", 60),
		GeneralRateWindow: getDuration("GENERAL_RATE_WINDOW", time.Minute),
		StrictRateLimit:   getInt("STRICT_RATE_LIMIT", 5),
		StrictRateWindow:  getDuration("STRICT_RATE_WINDOW", time.Minute),

		SessionSecret:     strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		SessionTTL:        getDuration("SESSION_TTL", time.Hour),
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "aw_session"),
		OneTimeCodeTTL:    getDuration("ONE_TIME_CODE_TTL", time.Hour),

		AdminIPWhitelist: splitCSV(os.Getenv("ADMIN_IP_WHITELIST")),
		AdminEmail:       strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),

		EmailFrom:          getEnv("EMAIL_FROM", "Anything World <no-reply@anything.world>"),
		ResendAPIKey:       strings.TrimSpace(os.Getenv("RESEND_API_KEY")),
		EmailRatePerSecond: getFloat("EMAIL_RATE_PER_SECOND", 2),

		NewsletterUnsubscribeSecret: strings.TrimSpace(os.Getenv("NEWSLETTER_UNSUBSCRIBE_SECRET")),

		Region:    strings.TrimSpace(os.Getenv("REGION")),
		CommitSHA: strings.TrimSpace(os.Getenv("COMMIT_SHA")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabase reads only the settings operator tools need.
func LoadDatabase() (databaseURL string, adminEmail string, err error) {
	_ = godotenv.Load()

	databaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		return "", "", model.NewConfigurationError("DATABASE_URL", "is required", nil)
	}

	return databaseURL, strings.TrimSpace(os.Getenv("ADMIN_EMAIL")), nil
}

// Validate rejects only settings that would leave required infrastructure
// unusable. Optional features with empty settings degrade instead.
func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return model.NewConfigurationError("SERVER_PORT", "cannot be empty", nil)
	}

	if c.DatabaseURL == "" {
		return model.NewConfigurationError("DATABASE_URL", "is required", nil)
	}

	switch c.RateLimitBackend {
	case RateLimitBackendRedis:
		if c.RedisURL == "" {
			return model.NewConfigurationError("REDIS_URL", "is required when RATE_LIMIT_BACKEND=redis", nil)
		}
	case RateLimitBackendMemory:
	default:
		return model.NewConfigurationError("RATE_LIMIT_BACKEND", "must be redis or memory", nil)
	}

	if c.GeneralRateLimit <= 0 || c.StrictRateLimit <= 0 {
		return model.NewConfigurationError("GENERAL_RATE_LIMIT/STRICT_RATE_LIMIT", "must be positive", nil)
	}

	if c.GeneralRateWindow < time.Millisecond {
		return model.NewConfigurationError("GENERAL_RATE_WINDOW", "must be at least 1ms", nil)
	}

	if c.StrictRateWindow < time.Millisecond {
		return model.NewConfigurationError("STRICT_RATE_WINDOW", "must be at least 1ms", nil)
	}

	if c.SessionTTL <= 0 {
		return model.NewConfigurationError("SESSION_TTL", "must be positive", nil)
	}

	if c.RequestTimeout <= 0 {
		return model.NewConfigurationError("REQUEST_TIMEOUT", "must be positive", nil)
	}

	if !strings.HasPrefix(c.SignInPath, "/") {
		return model.NewConfigurationError("SIGN_IN_PATH", "must be an absolute path", nil)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

func (c *Config) SessionsEnabled() bool {
	return c.SessionSecret != ""
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
