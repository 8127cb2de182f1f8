package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // scratch images ship without zoneinfo

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Docker secret, checked before the environment.
var tokenSecretPath = "/run/secrets/telegram_bot_token"

type Config struct {
	DatabaseURL   string
	TelegramToken string
	Location      *time.Location

	Log      LogConfig
	DB       DBConfig
	Reminder ReminderConfig

	MetricsAddr string
	PollTimeout int // seconds
}

type LogConfig struct {
	Level  string
	Format string
	Dir    string
}

type DBConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

type ReminderConfig struct {
	Cron         string
	Interval     time.Duration
	Concurrency  int
	SendInterval time.Duration
}

// ConfigurationError reports a required setting that is missing or unusable.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("config: %s is not set", e.Key)
	}
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("TIMEZONE", "Europe/Moscow")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_DIR", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	v.SetDefault("DB_QUERY_TIMEOUT", 60*time.Second)
	v.SetDefault("REMINDER_CRON", "0 20 * * *")
	v.SetDefault("REMINDER_INTERVAL", time.Duration(0))
	v.SetDefault("REMINDER_CONCURRENCY", 1)
	v.SetDefault("REMINDER_SEND_INTERVAL", 50*time.Millisecond)
	v.SetDefault("METRICS_ADDR", "")
	v.SetDefault("POLL_TIMEOUT", 60)
}

// Load reads .env, the environment and, when path is not empty, a YAML file.
// Environment variables win over the file.
func Load(path string) (Config, error) {
	_ = godotenv.Load() // optional .env next to the binary

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	_ = v.BindEnv("TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN", "BOT_TOKEN")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := Config{
		DatabaseURL:   strings.TrimSpace(v.GetString("DATABASE_URL")),
		TelegramToken: botToken(v),
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			Dir:    v.GetString("LOG_DIR"),
		},
		DB: DBConfig{
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			QueryTimeout:    v.GetDuration("DB_QUERY_TIMEOUT"),
		},
		Reminder: ReminderConfig{
			Cron:         strings.TrimSpace(v.GetString("REMINDER_CRON")),
			Interval:     v.GetDuration("REMINDER_INTERVAL"),
			Concurrency:  v.GetInt("REMINDER_CONCURRENCY"),
			SendInterval: v.GetDuration("REMINDER_SEND_INTERVAL"),
		},
		MetricsAddr: v.GetString("METRICS_ADDR"),
		PollTimeout: v.GetInt("POLL_TIMEOUT"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, &ConfigurationError{Key: "DATABASE_URL"}
	}
	if cfg.TelegramToken == "" {
		return Config{}, &ConfigurationError{Key: "TELEGRAM_BOT_TOKEN", Reason: "neither the docker secret nor the environment variable is set"}
	}

	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return Config{}, &ConfigurationError{Key: "TIMEZONE", Reason: err.Error()}
	}
	cfg.Location = loc

	if cfg.Reminder.Cron == "" && cfg.Reminder.Interval <= 0 {
		return Config{}, &ConfigurationError{Key: "REMINDER_CRON", Reason: "empty and REMINDER_INTERVAL is not set"}
	}
	return cfg, nil
}

func botToken(v *viper.Viper) string {
	if data, err := os.ReadFile(tokenSecretPath); err == nil {
		token := strings.TrimSpace(string(data))
		if token != "" {
			return token
		}
	}
	return strings.TrimSpace(v.GetString("TELEGRAM_BOT_TOKEN"))
}
