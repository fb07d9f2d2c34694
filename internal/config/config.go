package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// External optimizer
	OptimizerURL string

	// Escalation policy
	LightReminderOffsetMinutes int
	SnoozeIncrementMinutes     int
	MaxSnoozeCount             int
	UnresponsiveGraceMinutes   int
	OverdueRepeatMinutes       int

	// Reschedule diff
	SignificantShiftMinutes int
	ReorderBlockThreshold   int

	// Worker pool
	RecoveryWorkers int

	// SMTP
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:         getEnvOrDefault("PORT", "8080"),
		Env:          getEnvOrDefault("ENV", "development"),
		DatabaseURL:  mustGetEnv("DATABASE_URL"),
		RedisURL:     mustGetEnv("REDIS_URL"),
		JWTSecret:    mustGetEnv("JWT_SECRET"),
		OptimizerURL: mustGetEnv("OPTIMIZER_URL"),

		LightReminderOffsetMinutes: getEnvAsIntOrDefault("LIGHT_REMINDER_OFFSET_MINUTES", 5),
		SnoozeIncrementMinutes:     getEnvAsIntOrDefault("SNOOZE_INCREMENT_MINUTES", 5),
		MaxSnoozeCount:             getEnvAsIntOrDefault("MAX_SNOOZE_COUNT", 2),
		UnresponsiveGraceMinutes:   getEnvAsIntOrDefault("UNRESPONSIVE_GRACE_MINUTES", 10),
		OverdueRepeatMinutes:       getEnvAsIntOrDefault("OVERDUE_REPEAT_MINUTES", 5),

		SignificantShiftMinutes: getEnvAsIntOrDefault("SIGNIFICANT_SHIFT_MINUTES", 5),
		ReorderBlockThreshold:   getEnvAsIntOrDefault("REORDER_BLOCK_THRESHOLD", 1),

		RecoveryWorkers: getEnvAsIntOrDefault("RECOVERY_WORKERS", 3),

		SMTPHost: getEnvOrDefault("SMTP_HOST", ""),
		SMTPPort: getEnvOrDefault("SMTP_PORT", "587"),
		SMTPUser: getEnvOrDefault("SMTP_USER", ""),
		SMTPPass: getEnvOrDefault("SMTP_PASS", ""),
		SMTPFrom: getEnvOrDefault("SMTP_FROM", "noreply@focustrack.app"),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
