package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Port     string
	MongoURI string
	DBName   string

	SMTPHost     string
	SMTPPort     string
	SMTPSender   string
	SMTPPassword string

	AlertRecipient   string
	AlertCronSpec    string
	AlertConcurrency int
	AlertSendTimeout time.Duration
}

// LoadConfig reads configuration from a .env file (if present) and the
// environment, with sane defaults for everything but credentials.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, reading configuration from environment")
	}

	return &Config{
		Port:     getEnv("PORT", "8080"),
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:   getEnv("DB_NAME", "importrack"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPSender:   os.Getenv("SMTP_SENDER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),

		AlertRecipient:   os.Getenv("ALERT_RECIPIENT"),
		AlertCronSpec:    getEnv("ALERT_CRON", "@hourly"),
		AlertConcurrency: getEnvInt("ALERT_CONCURRENCY", 4),
		AlertSendTimeout: getEnvDuration("ALERT_SEND_TIMEOUT", 15*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		logrus.Warnf("Invalid integer for %s, using default %d", key, fallback)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		logrus.Warnf("Invalid duration for %s, using default %s", key, fallback)
	}
	return fallback
}
