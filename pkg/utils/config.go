package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Inventory InventoryConfig
	Redis     RedisConfig
	Events    EventsConfig
	Reference ReferenceConfig
	Metrics   MetricsConfig
}

type AppConfig struct {
	Name    string `validate:"required"`
	Port    string `validate:"required,numeric"`
	Debug   bool
	LogPath string
	Log     LogConfig
}

// LogConfig controls the level and the rotation of the log file.
type LogConfig struct {
	Level      string `validate:"omitempty,oneof=debug info warn error"`
	MaxSizeMB  int    `validate:"gte=1"`
	MaxBackups int    `validate:"gte=0"`
	MaxAgeDays int    `validate:"gte=0"`
}

type StorageConfig struct {
	Driver string `validate:"oneof=postgres memory"`
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32 `validate:"gte=1"`
	Migrate  bool
}

type InventoryConfig struct {
	LockTimeout time.Duration `validate:"gt=0"`
	LockBackend string        `validate:"oneof=native redis"`
}

type RedisConfig struct {
	URL     string
	LockTTL time.Duration `validate:"gt=0"`
}

type EventsConfig struct {
	RabbitMQURL string
	Exchange    string `validate:"required"`
	Queues      []string
	Buffer      int `validate:"gte=1"`
	Workers     int `validate:"gte=1"`
}

type ReferenceConfig struct {
	BookingSuffix     int `validate:"gte=8"`
	TransactionSuffix int `validate:"gte=8"`
}

type MetricsConfig struct {
	Enabled bool
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "event-booking")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("LOG_MAX_SIZE_MB", 10)
	viper.SetDefault("LOG_MAX_BACKUPS", 7)
	viper.SetDefault("LOG_MAX_AGE_DAYS", 28)
	viper.SetDefault("STORAGE_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("DB_MIGRATE", true)
	viper.SetDefault("INVENTORY_LOCK_TIMEOUT", "3s")
	viper.SetDefault("LOCK_BACKEND", "native")
	viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	viper.SetDefault("REDIS_LOCK_TTL", "10s")
	viper.SetDefault("EVENTS_EXCHANGE", "booking.events")
	viper.SetDefault("EVENTS_QUEUES", "notifications,audit")
	viper.SetDefault("EVENTS_BUFFER", 1024)
	viper.SetDefault("EVENTS_WORKERS", 4)
	viper.SetDefault("REFERENCE_BOOKING_SUFFIX", 8)
	viper.SetDefault("REFERENCE_TRANSACTION_SUFFIX", 8)
	viper.SetDefault("METRICS_ENABLED", true)

	// .env is optional, the environment alone is enough in containers
	if err := viper.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:    viper.GetString("APP_NAME"),
			Port:    viper.GetString("PORT"),
			Debug:   viper.GetBool("DEBUG"),
			LogPath: viper.GetString("LOG_PATH"),
			Log: LogConfig{
				Level:      strings.ToLower(viper.GetString("LOG_LEVEL")),
				MaxSizeMB:  viper.GetInt("LOG_MAX_SIZE_MB"),
				MaxBackups: viper.GetInt("LOG_MAX_BACKUPS"),
				MaxAgeDays: viper.GetInt("LOG_MAX_AGE_DAYS"),
			},
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(viper.GetString("STORAGE_DRIVER")),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
			Migrate:  viper.GetBool("DB_MIGRATE"),
		},
		Inventory: InventoryConfig{
			LockTimeout: viper.GetDuration("INVENTORY_LOCK_TIMEOUT"),
			LockBackend: strings.ToLower(viper.GetString("LOCK_BACKEND")),
		},
		Redis: RedisConfig{
			URL:     viper.GetString("REDIS_URL"),
			LockTTL: viper.GetDuration("REDIS_LOCK_TTL"),
		},
		Events: EventsConfig{
			RabbitMQURL: viper.GetString("RABBITMQ_URL"),
			Exchange:    viper.GetString("EVENTS_EXCHANGE"),
			Queues:      splitList(viper.GetString("EVENTS_QUEUES")),
			Buffer:      viper.GetInt("EVENTS_BUFFER"),
			Workers:     viper.GetInt("EVENTS_WORKERS"),
		},
		Reference: ReferenceConfig{
			BookingSuffix:     viper.GetInt("REFERENCE_BOOKING_SUFFIX"),
			TransactionSuffix: viper.GetInt("REFERENCE_TRANSACTION_SUFFIX"),
		},
		Metrics: MetricsConfig{
			Enabled: viper.GetBool("METRICS_ENABLED"),
		},
	}

	if errs := ValidateStruct(config); errs != nil {
		return nil, fmt.Errorf("invalid config: %s", FormatValidationErrors(errs))
	}
	if config.Storage.Driver == "postgres" && config.Database.Name == "" {
		return nil, fmt.Errorf("invalid config: DB_NAME is required for the postgres storage driver")
	}

	return config, nil
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
