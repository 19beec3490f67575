package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
	"github.com/vladislavdragonenkov/northwind/internal/storage"
	"github.com/vladislavdragonenkov/northwind/internal/storage/memory"
	"github.com/vladislavdragonenkov/northwind/internal/storage/postgres"
)

type runtimeDependencies struct {
	store           storage.Store
	outboxRepo      domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository
	timelineRepo    domain.TimelineRepository
}

func (d runtimeDependencies) close(logger *log.Entry) {
	if d.store == nil {
		return
	}
	if err := d.store.Close(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}

// initRuntimeDependencies открывает хранилище выбранного драйвера и
// репозитории, работающие поверх него.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		store := memory.NewStore()
		logger.Info("using in-memory storage")
		return runtimeDependencies{
			store:           store,
			outboxRepo:      memory.NewOutboxRepository(store),
			idempotencyRepo: memory.NewIdempotencyRepository(),
			timelineRepo:    memory.NewTimelineRepository(store),
		}, nil
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return runtimeDependencies{}, errors.New("postgres dsn is required")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return runtimeDependencies{}, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("apply postgres migrations: %w", err)
			}
			status, err := store.MigrationStatus(ctx)
			if err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("postgres migration status: %w", err)
			}
			logger.WithFields(log.Fields{
				"version": status.Version,
				"applied": status.Applied,
			}).Info("postgres migrations applied")
		}
		logger.Info("using postgres storage")
		return runtimeDependencies{
			store:           store,
			outboxRepo:      postgres.NewOutboxRepository(store),
			idempotencyRepo: postgres.NewIdempotencyRepository(store),
			timelineRepo:    postgres.NewTimelineRepository(store),
		}, nil
	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver: %q", cfg.StorageDriver)
	}
}
