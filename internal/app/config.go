package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/northwind/internal/messaging/kafka"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска сервиса заказов.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	// GRPCAddr слушает gRPC health service для проб оркестратора.
	GRPCAddr string `yaml:"grpc_addr"`

	StorageDriver       string `yaml:"storage_driver"`
	PostgresDSN         string `yaml:"postgres_dsn"`
	PostgresAutoMigrate bool   `yaml:"postgres_auto_migrate"`

	// Без KafkaBrokers публикация outbox отключена.
	KafkaBrokers  []string `yaml:"kafka_brokers"`
	KafkaTopic    string   `yaml:"kafka_topic"`
	KafkaDLQTopic string   `yaml:"kafka_dlq_topic"`

	OutboxPollInterval time.Duration `yaml:"outbox_poll_interval"`
	OutboxBatchSize    int           `yaml:"outbox_batch_size"`
	OutboxMaxAttempts  int           `yaml:"outbox_max_attempts"`
	OutboxRetryDelay   time.Duration `yaml:"outbox_retry_delay"`
	// OutboxMaxLag — возраст самого старого pending-события, после которого
	// readiness переходит в degraded. Ноль отключает проверку.
	OutboxMaxLag time.Duration `yaml:"outbox_max_lag"`

	IdempotencyTTL              time.Duration `yaml:"idempotency_ttl"`
	IdempotencyCleanupInterval  time.Duration `yaml:"idempotency_cleanup_interval"`
	IdempotencyCleanupBatchSize int           `yaml:"idempotency_cleanup_batch_size"`

	LogLevel string `yaml:"log_level"`
}

// DefaultConfig возвращает настройки для локального запуска на in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		GRPCAddr:                    ":50051",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		KafkaTopic:                  kafka.TopicOrderEvents,
		KafkaDLQTopic:               kafka.TopicDeadLetterQueue,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		OutboxMaxLag:                5 * time.Minute,
		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
		LogLevel:                    "info",
	}
}

// LoadConfig читает YAML поверх DefaultConfig. Пустой путь и отсутствующий
// файл дают настройки по умолчанию.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("postgres_dsn is required for postgres storage driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver: %q", c.StorageDriver)
	}

	if c.HTTPAddr == "" {
		return errors.New("http_addr is required")
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("outbox_batch_size must be > 0, got %d", c.OutboxBatchSize)
	}
	if c.OutboxMaxAttempts <= 0 {
		return fmt.Errorf("outbox_max_attempts must be > 0, got %d", c.OutboxMaxAttempts)
	}
	if c.OutboxPollInterval <= 0 {
		return fmt.Errorf("outbox_poll_interval must be > 0, got %s", c.OutboxPollInterval)
	}
	if c.IdempotencyTTL <= 0 {
		return fmt.Errorf("idempotency_ttl must be > 0, got %s", c.IdempotencyTTL)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("kafka_topic is required when kafka_brokers are set")
	}
	return nil
}
