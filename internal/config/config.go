package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App struct {
		ENV string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	HTTP struct {
		Host string
		Port string
	}

	S3 struct {
		Bucket    string
		Region    string
		Endpoint  string
		AccessKey string
		SecretKey string
		CDNBase   string
	}

	// Amor holds product tunables. Defaults mirror the mobile client:
	// skipped profiles re-enter the queue after 48h, the free chest
	// recharges every 72h, and a typing pulse stays visible for 3s.
	Amor struct {
		SkipWindow      time.Duration
		ChestCooldown   time.Duration
		TypingExpiry    time.Duration
		DailySwipeLimit int
		QueueLimit      int
		NotifyMatches   int
		NotifyMessages  int
		MaxUploadBytes  int64
	}
}

// New builds a Config from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func New() *Config {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.App.ENV = getEnvDefault("APP_ENV", "development")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "amor_core")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "amor")

		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// HTTP
	cfg.HTTP.Host = getEnvDefault("HTTP_HOST", "0.0.0.0")
	cfg.HTTP.Port = getEnvDefault("HTTP_PORT", "8080")

	// Media storage
	cfg.S3.Bucket = getEnvDefault("S3_BUCKET", "amor-media")
	cfg.S3.Region = getEnvDefault("S3_REGION", "auto")
	cfg.S3.Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.S3.AccessKey = os.Getenv("S3_ACCESS_KEY_ID")
	cfg.S3.SecretKey = os.Getenv("S3_SECRET_ACCESS_KEY")
	cfg.S3.CDNBase = os.Getenv("CDN_BASE_URL")

	// Product tunables
	cfg.Amor.SkipWindow = getEnvDuration("AMOR_SKIP_WINDOW", 48*time.Hour)
	cfg.Amor.ChestCooldown = getEnvDuration("AMOR_CHEST_COOLDOWN", 72*time.Hour)
	cfg.Amor.TypingExpiry = getEnvDuration("AMOR_TYPING_EXPIRY", 3*time.Second)
	cfg.Amor.DailySwipeLimit = getEnvInt("AMOR_DAILY_SWIPE_LIMIT", 50)
	cfg.Amor.QueueLimit = getEnvInt("AMOR_QUEUE_LIMIT", 100)
	cfg.Amor.NotifyMatches = getEnvInt("AMOR_NOTIFY_MATCHES", 20)
	cfg.Amor.NotifyMessages = getEnvInt("AMOR_NOTIFY_MESSAGES", 50)
	cfg.Amor.MaxUploadBytes = int64(getEnvInt("AMOR_MAX_UPLOAD_BYTES", 10<<20))

	return cfg
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
