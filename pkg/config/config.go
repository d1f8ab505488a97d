package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds engine configuration
type Config struct {
	API      APIConfig
	Queue    QueueConfig
	Session  SessionConfig
	Notify   NotifyConfig
	Telemed  TelemedConfig
	Draft    DraftConfig
}

// APIConfig holds clinic backend configuration
type APIConfig struct {
	BaseURL        string
	BearerToken    string
	RequestTimeout time.Duration
}

// QueueConfig holds queue coordinator configuration
type QueueConfig struct {
	PollInterval time.Duration
	AutoAdvance  bool
	SettleDelay  time.Duration
}

// SessionConfig holds consultation session configuration
type SessionConfig struct {
	AutosaveInterval time.Duration
}

// NotifyConfig holds notification channel configuration
type NotifyConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ChannelPrefix string
	WebhookAddr   string
	WebhookSecret string
}

// TelemedConfig holds telemedicine bridge configuration
type TelemedConfig struct {
	DefaultDuration time.Duration
}

// DraftConfig holds local draft journal configuration
type DraftConfig struct {
	Path string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	config := &Config{
		API: APIConfig{
			BaseURL:        getEnv("CLINIC_API_BASE_URL", "http://localhost:8080/api"),
			BearerToken:    getEnv("CLINIC_API_TOKEN", ""),
			RequestTimeout: getEnvAsDuration("CLINIC_API_TIMEOUT", "30s"),
		},
		Queue: QueueConfig{
			PollInterval: getEnvAsDuration("QUEUE_POLL_INTERVAL", "10s"),
			AutoAdvance:  getEnvAsBool("QUEUE_AUTO_ADVANCE", true),
			SettleDelay:  getEnvAsDuration("QUEUE_SETTLE_DELAY", "500ms"),
		},
		Session: SessionConfig{
			AutosaveInterval: getEnvAsDuration("SESSION_AUTOSAVE_INTERVAL", "15s"),
		},
		Notify: NotifyConfig{
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			ChannelPrefix: getEnv("NOTIFY_CHANNEL_PREFIX", "consulta"),
			WebhookAddr:   getEnv("NOTIFY_WEBHOOK_ADDR", ""),
			WebhookSecret: getEnv("NOTIFY_WEBHOOK_SECRET", ""),
		},
		Telemed: TelemedConfig{
			DefaultDuration: getEnvAsDuration("TELEMED_DEFAULT_DURATION", "30m"),
		},
		Draft: DraftConfig{
			Path: getEnv("DRAFT_JOURNAL_PATH", "consulta-drafts.db"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("CLINIC_API_BASE_URL is required")
	}
	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("QUEUE_POLL_INTERVAL must be positive")
	}
	if c.Session.AutosaveInterval <= 0 {
		return fmt.Errorf("SESSION_AUTOSAVE_INTERVAL must be positive")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}
