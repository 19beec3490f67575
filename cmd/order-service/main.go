package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/northwind/internal/app"
)

const (
	envConfigPath                  = "NORTHWIND_CONFIG"
	envHTTPAddr                    = "NORTHWIND_HTTP_ADDR"
	envMetricsAddr                 = "NORTHWIND_METRICS_ADDR"
	envGRPCAddr                    = "NORTHWIND_GRPC_ADDR"
	envStorageDriver               = "NORTHWIND_STORAGE_DRIVER"
	envPostgresDSN                 = "NORTHWIND_POSTGRES_DSN"
	envPostgresAutoMigrate         = "NORTHWIND_POSTGRES_AUTO_MIGRATE"
	envKafkaBrokers                = "NORTHWIND_KAFKA_BROKERS"
	envKafkaTopic                  = "NORTHWIND_KAFKA_TOPIC"
	envOutboxPollInterval          = "NORTHWIND_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize             = "NORTHWIND_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts           = "NORTHWIND_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay            = "NORTHWIND_OUTBOX_RETRY_DELAY"
	envIdempotencyTTL              = "NORTHWIND_IDEMPOTENCY_TTL"
	envIdempotencyCleanupInterval  = "NORTHWIND_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "NORTHWIND_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
	envLogLevel                    = "NORTHWIND_LOG_LEVEL"
)

type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	parsed, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		log.WithField("level", level).Warn("unknown log level, using info")
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
}

// readConfigFromEnv накладывает переменные окружения на cfg. Некорректные
// значения игнорируются и возвращаются как предупреждения.
func readConfigFromEnv(cfg app.Config, lookup envLookup) (app.Config, []string) {
	var warnings []string
	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, value, err))
	}

	stringVars := map[string]*string{
		envHTTPAddr:    &cfg.HTTPAddr,
		envMetricsAddr: &cfg.MetricsAddr,
		envGRPCAddr:    &cfg.GRPCAddr,
		envPostgresDSN: &cfg.PostgresDSN,
		envKafkaTopic:  &cfg.KafkaTopic,
		envLogLevel:    &cfg.LogLevel,
	}
	for key, target := range stringVars {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*target = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup(envStorageDriver); ok && strings.TrimSpace(v) != "" {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(envKafkaBrokers); ok {
		cfg.KafkaBrokers = splitList(v)
	}
	if v, ok := lookup(envPostgresAutoMigrate); ok {
		if parsed, err := parseBool(v); err != nil {
			warn(envPostgresAutoMigrate, v, err)
		} else {
			cfg.PostgresAutoMigrate = parsed
		}
	}

	positive := func(v int) bool { return v > 0 }
	intVars := []struct {
		key    string
		target *int
	}{
		{key: envOutboxBatchSize, target: &cfg.OutboxBatchSize},
		{key: envOutboxMaxAttempts, target: &cfg.OutboxMaxAttempts},
		{key: envIdempotencyCleanupBatchSize, target: &cfg.IdempotencyCleanupBatchSize},
	}
	for _, iv := range intVars {
		v, ok := lookup(iv.key)
		if !ok {
			continue
		}
		parsed, err := parseInt(v, positive, "must be > 0")
		if err != nil {
			warn(iv.key, v, err)
			continue
		}
		*iv.target = parsed
	}

	durationVars := []struct {
		key    string
		target *time.Duration
		valid  func(time.Duration) bool
		rule   string
	}{
		{key: envOutboxPollInterval, target: &cfg.OutboxPollInterval, valid: positiveDuration, rule: "must be > 0"},
		{key: envOutboxRetryDelay, target: &cfg.OutboxRetryDelay, valid: nonNegativeDuration, rule: "must be >= 0"},
		{key: envIdempotencyTTL, target: &cfg.IdempotencyTTL, valid: positiveDuration, rule: "must be > 0"},
		{key: envIdempotencyCleanupInterval, target: &cfg.IdempotencyCleanupInterval, valid: positiveDuration, rule: "must be > 0"},
	}
	for _, dv := range durationVars {
		v, ok := lookup(dv.key)
		if !ok {
			continue
		}
		parsed, err := parseDuration(v, dv.valid, dv.rule)
		if err != nil {
			warn(dv.key, v, err)
			continue
		}
		*dv.target = parsed
	}

	return cfg, warnings
}

func positiveDuration(v time.Duration) bool    { return v > 0 }
func nonNegativeDuration(v time.Duration) bool { return v >= 0 }

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, fmt.Errorf("value %d %s", value, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, fmt.Errorf("value %s %s", value, rule)
	}
	return value, nil
}

// loadConfig читает YAML (флаг -config или NORTHWIND_CONFIG) и накладывает окружение.
func loadConfig(path string, lookup envLookup) (app.Config, []string, error) {
	if path == "" {
		path, _ = lookup(envConfigPath)
	}
	cfg, err := app.LoadConfig(path)
	if err != nil {
		return app.Config{}, nil, err
	}
	cfg, warnings := readConfigFromEnv(cfg, lookup)
	return cfg, warnings, nil
}

func main() {
	configPath := flag.String("config", "", "path to YAML config (fallback: NORTHWIND_CONFIG)")
	flag.Parse()

	cfg, warnings, err := loadConfig(*configPath, os.LookupEnv)
	if err != nil {
		log.WithError(err).Fatal("не удалось загрузить конфигурацию")
	}
	setupLogger(cfg.LogLevel)
	for _, w := range warnings {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"storage_driver": cfg.StorageDriver,
	}).Info("запускаем Northwind order service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("Northwind order service остановлен")
}
