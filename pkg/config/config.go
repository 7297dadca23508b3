package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Telegram      TelegramConfig
	Airtable      AirtableConfig
	RateLimit     RateLimitConfig
	State         StateConfig
	TypeMenu      TypeMenuConfig
	Observability ObservabilityConfig
}

type TelegramConfig struct {
	BotToken        string
	DispatchWorkers int
	PollTimeout     int
	RequestTimeout  time.Duration
}

type AirtableConfig struct {
	Backend           string
	APIURL            string
	Token             string
	BaseID            string
	AccountsTable     string
	ReportsTable      string
	TypesTable        string
	TypesNameField    string
	RequestsPerSecond int
	Timeout           time.Duration
	MaxRetries        int
	RetryBaseDelay    time.Duration
}

type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

type StateConfig struct {
	MaxUsers      int
	MaxHistory    int
	MaxAge        time.Duration
	SweepInterval time.Duration
}

type TypeMenuConfig struct {
	CatalogTTL time.Duration
	PageSize   int
}

type ObservabilityConfig struct {
	LogLevel       slog.Level
	MetricsEnabled bool
	MetricsPort    int
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Telegram: TelegramConfig{
			BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
			DispatchWorkers: getEnvAsInt("DISPATCH_WORKERS", 8),
			PollTimeout:     getEnvAsInt("TELEGRAM_POLL_TIMEOUT", 60),
			RequestTimeout:  getEnvAsDuration("TELEGRAM_REQUEST_TIMEOUT", 10*time.Second),
		},
		Airtable: AirtableConfig{
			Backend:           getEnv("STORE_BACKEND", "airtable"),
			APIURL:            getEnv("AIRTABLE_API_URL", "https://api.airtable.com/v0"),
			Token:             getEnv("AIRTABLE_PERSONAL_ACCESS_TOKEN", ""),
			BaseID:            getEnv("AIRTABLE_BASE_ID", ""),
			AccountsTable:     getEnv("AIRTABLE_TABLE_ACCOUNTS", "ВСИЧКИ АКАУНТИ"),
			ReportsTable:      getEnv("AIRTABLE_TABLE_REPORTS", "Отчет Телеграм"),
			TypesTable:        getEnv("AIRTABLE_TABLE_TYPES", "ВИДОВЕ"),
			TypesNameField:    getEnv("AIRTABLE_TYPES_NAME_FIELD", "Name"),
			RequestsPerSecond: getEnvAsInt("AIRTABLE_REQUESTS_PER_SECOND", 5),
			Timeout:           getEnvAsDuration("STORE_TIMEOUT", 10*time.Second),
			MaxRetries:        getEnvAsInt("STORE_MAX_RETRIES", 3),
			RetryBaseDelay:    getEnvAsDuration("STORE_RETRY_BASE_DELAY", 250*time.Millisecond),
		},
		RateLimit: RateLimitConfig{
			MaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 30),
			Window:      getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		State: StateConfig{
			MaxUsers:      getEnvAsInt("STATE_MAX_USERS", 100),
			MaxHistory:    getEnvAsInt("STATE_MAX_HISTORY", 10),
			MaxAge:        getEnvAsDuration("STATE_MAX_AGE", 30*time.Minute),
			SweepInterval: getEnvAsDuration("STATE_SWEEP_INTERVAL", 5*time.Minute),
		},
		TypeMenu: TypeMenuConfig{
			CatalogTTL: getEnvAsDuration("TYPE_CATALOG_TTL", 300*time.Second),
			PageSize:   getEnvAsInt("TYPE_MENU_PAGE_SIZE", 20),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", false),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.Telegram.BotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if c.Airtable.Token == "" {
		missing = append(missing, "AIRTABLE_PERSONAL_ACCESS_TOKEN")
	}
	if c.Airtable.BaseID == "" {
		missing = append(missing, "AIRTABLE_BASE_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.RateLimit.MaxRequests <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit must allow at least one request in a positive window")
	}
	if c.State.MaxUsers <= 0 {
		return errors.New("STATE_MAX_USERS must be positive")
	}
	if c.TypeMenu.PageSize <= 0 {
		return errors.New("TYPE_MENU_PAGE_SIZE must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv(key))); err == nil {
		return level
	}
	return defaultValue
}
