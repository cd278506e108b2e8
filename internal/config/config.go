package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	DBUrl     string
	JWTSecret string
	AppEnv    string

	// BusinessTimezone anchors all slot and window arithmetic; the database
	// stores business-local wall times.
	BusinessTimezone string

	SchedulerEnabled bool
	ExpiryCron       string
	CompletionCron   string
	Reminder24Cron   string
	Reminder1Cron    string
	EnrollmentCron   string

	ZoomAccountID    string
	ZoomClientID     string
	ZoomClientSecret string

	MailAPIURL string
	MailAPIKey string
	MailFrom   string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		DBUrl:            getEnv("DB_URL", ""),
		JWTSecret:        jwtSecret,
		AppEnv:           normalizeEnv(getEnv("APP_ENV", "production")),
		BusinessTimezone: getEnv("BUSINESS_TIMEZONE", "Asia/Colombo"),
		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),
		ExpiryCron:       getEnv("EXPIRY_CRON", "*/5 * * * *"),
		CompletionCron:   getEnv("COMPLETION_CRON", "*/5 * * * *"),
		Reminder24Cron:   getEnv("REMINDER_24H_CRON", "*/10 * * * *"),
		Reminder1Cron:    getEnv("REMINDER_1H_CRON", "*/10 * * * *"),
		EnrollmentCron:   getEnv("ENROLLMENT_CRON", "15 2 * * *"),
		ZoomAccountID:    getEnv("ZOOM_ACCOUNT_ID", ""),
		ZoomClientID:     getEnv("ZOOM_CLIENT_ID", ""),
		ZoomClientSecret: getEnv("ZOOM_CLIENT_SECRET", ""),
		MailAPIURL:       getEnv("MAIL_API_URL", ""),
		MailAPIKey:       getEnv("MAIL_API_KEY", ""),
		MailFrom:         getEnv("MAIL_FROM", "no-reply@tutoring.local"),
	}

	if _, err := time.LoadLocation(cfg.BusinessTimezone); err != nil {
		return nil, fmt.Errorf("invalid BUSINESS_TIMEZONE %q: %w", cfg.BusinessTimezone, err)
	}

	return cfg, nil
}

// Location resolves the configured business timezone. LoadConfig has already
// validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}
