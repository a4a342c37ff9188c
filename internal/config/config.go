package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds process-level configuration loaded from environment. The
// reloadable schedule/notification settings live in the settings file
// (see Store), not here.
type Config struct {
	DB struct {
		DSN string
	}
	Kafka struct {
		Broker       string
		IntelTopic   string
		RequestTopic string
		GroupID      string
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		From       string
		TimeoutSec int
	}
	Telegram struct {
		BotToken string
		ChatID   int64
		RatePerS int
	}
	API struct {
		Port     string
		BasePath string
	}
	Paths struct {
		Settings  string
		JobEvents string
		Reports   string
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	cfg.DB.DSN = os.Getenv("DB_DSN")

	// Kafka settings (optional: ingestion is disabled without a broker)
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.IntelTopic = os.Getenv("KAFKA_INTEL_TOPIC")
	cfg.Kafka.RequestTopic = os.Getenv("KAFKA_FETCH_REQUEST_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// Email settings
	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	if p, err := strconv.Atoi(os.Getenv("EMAIL_SMTP_PORT")); err == nil {
		cfg.Email.SMTPPort = p
	}
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.From = os.Getenv("EMAIL_FROM_ADDRESS")
	if t, err := strconv.Atoi(os.Getenv("EMAIL_TIMEOUT_SECONDS")); err == nil {
		cfg.Email.TimeoutSec = t
	}

	// Telegram urgent channel (optional)
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if id, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64); err == nil {
		cfg.Telegram.ChatID = id
	}
	if r, err := strconv.Atoi(os.Getenv("TELEGRAM_RATE_PER_SECOND")); err == nil {
		cfg.Telegram.RatePerS = r
	}

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// File locations
	cfg.Paths.Settings = os.Getenv("SETTINGS_PATH")
	cfg.Paths.JobEvents = os.Getenv("JOB_EVENTS_DIR")
	cfg.Paths.Reports = os.Getenv("REPORTS_DIR")

	// Logging
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.Kafka.IntelTopic == "" {
		cfg.Kafka.IntelTopic = "raw_intel"
	}
	if cfg.Kafka.RequestTopic == "" {
		cfg.Kafka.RequestTopic = "fetch_requests"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "intel-correlation-service"
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 587
	}
	if cfg.Email.TimeoutSec == 0 {
		cfg.Email.TimeoutSec = 30
	}
	if cfg.Telegram.RatePerS == 0 {
		cfg.Telegram.RatePerS = 1
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Paths.Settings == "" {
		cfg.Paths.Settings = "settings.json"
	}
	if cfg.Paths.JobEvents == "" {
		cfg.Paths.JobEvents = "data/job_events"
	}
	if cfg.Paths.Reports == "" {
		cfg.Paths.Reports = "data/reports"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}
