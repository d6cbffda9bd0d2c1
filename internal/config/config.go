package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minSecretLength = 32

type Config struct {
	ServerPort string

	DBDriver    string
	DatabaseURL string

	MultiUser     bool
	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	LoginRateLimit  int
	LoginRateWindow time.Duration

	AllowedOrigins []string
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	LogLevel  string
	LogFormat string
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		ServerPort:      GetEnvAsString("SERVER_PORT", "8080"),
		DBDriver:        GetEnvAsString("DB_DRIVER", "sqlite3"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		MultiUser:       GetEnvAsBool("MULTI_USER", false),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		SessionTTL:      GetEnvAsDuration("SESSION_TTL", 24*time.Hour),
		CookieSecure:    GetEnvAsBool("COOKIE_SECURE", false),
		LoginRateLimit:  GetEnvAsInt("LOGIN_RATE_LIMIT", 5),
		LoginRateWindow: GetEnvAsDuration("LOGIN_RATE_WINDOW", 15*time.Minute),
		AllowedOrigins:  splitList(os.Getenv("ALLOWED_ORIGINS")),
		TrustProxy:      GetEnvAsBool("TRUST_PROXY", false),
		LogLevel:        GetEnvAsString("LOG_LEVEL", "info"),
		LogFormat:       GetEnvAsString("LOG_FORMAT", "json"),
	}

	if cfg.DatabaseURL == "" {
		dsn, err := defaultDSN(cfg.DBDriver)
		if err != nil {
			return nil, err
		}
		cfg.DatabaseURL = dsn
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite3 or postgres, got %q", c.DBDriver)
	}
	if c.ServerPort == "" {
		return errors.New("SERVER_PORT must be set")
	}
	if c.MultiUser && len(c.SessionSecret) < minSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters", minSecretLength)
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.LoginRateLimit <= 0 || c.LoginRateWindow <= 0 {
		return errors.New("LOGIN_RATE_LIMIT and LOGIN_RATE_WINDOW must be positive")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}

func defaultDSN(driver string) (string, error) {
	if driver != "postgres" {
		return "file:todo.db?_foreign_keys=on", nil
	}

	requiredEnvVars := []string{
		"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB",
		"POSTGRES_HOST", "POSTGRES_PORT",
	}
	for _, env := range requiredEnvVars {
		if os.Getenv(env) == "" {
			return "", fmt.Errorf("environment variable %s must be set when DATABASE_URL is empty", env)
		}
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("POSTGRES_HOST"), os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("POSTGRES_DB"), os.Getenv("POSTGRES_PORT")), nil
}

// GetEnvAsInt gets environment variable as int with default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsBool gets environment variable as bool with default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvAsDuration gets environment variable as duration with default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvAsString gets environment variable as string with default value
func GetEnvAsString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
