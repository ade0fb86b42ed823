package config

import (
	"os"
	"strconv"
	"time"
)

const envDevelopment = "development"

// Config holds application level configuration loaded from environment variables.
type Config struct {
	Env        string
	ServerPort string
	LogLevel   string

	DBDriver   string
	MySQLDSN   string
	SQLitePath string

	RedisAddr string
	RedisDB   int
	RedisPass string

	JWTSecret     string
	ClientURL     string
	OTPTTL        time.Duration
	AuthRateLimit float64

	AIServerURL   string
	AITimeout     time.Duration
	UploadDir     string
	PublicBaseURL string

	SMTP SMTPConfig

	SwaggerHost string
}

// SMTPConfig holds outgoing mail settings. An empty Host disables SMTP delivery.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Load builds Config from environment with sensible defaults.
func Load() *Config {
	return &Config{
		Env:        getEnv("APP_ENV", envDevelopment),
		ServerPort: getEnv("SERVER_PORT", "3500"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		DBDriver:   getEnv("DB_DRIVER", "mysql"),
		MySQLDSN:   getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/pdfqa?charset=utf8mb4&parseTime=True&loc=Local"),
		SQLitePath: getEnv("SQLITE_PATH", "pdfqa.db"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getEnvInt("REDIS_DB", 0),
		RedisPass: os.Getenv("REDIS_PASSWORD"),

		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		ClientURL:     getEnv("CLIENT_URL", "http://localhost:5173"),
		OTPTTL:        getEnvDuration("OTP_TTL", 5*time.Minute),
		AuthRateLimit: getEnvFloat("AUTH_RATE_LIMIT", 5),

		AIServerURL:   getEnv("AI_SERVER_URL", "http://localhost:5000"),
		AITimeout:     getEnvDuration("AI_TIMEOUT", 2*time.Minute),
		UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
		PublicBaseURL: os.Getenv("PUBLIC_BASE_URL"),

		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
			FromName: getEnv("SMTP_FROM_NAME", "PDF Q&A"),
		},

		SwaggerHost: os.Getenv("SWAGGER_HOST"),
	}
}

// IsDevelopment reports whether internal error details may be shown to clients.
func (c *Config) IsDevelopment() bool {
	return c.Env == envDevelopment
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
