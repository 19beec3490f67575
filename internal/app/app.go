// Package app собирает сервис заказов: хранилище, HTTP API, health и
// метрики, gRPC health service и фоновые воркеры.
package app

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/northwind/internal/health"
	"github.com/vladislavdragonenkov/northwind/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/northwind/internal/metrics"
	httpsvc "github.com/vladislavdragonenkov/northwind/internal/service/http"
	"github.com/vladislavdragonenkov/northwind/internal/service/idempotency"
	"github.com/vladislavdragonenkov/northwind/internal/service/orders"
	"github.com/vladislavdragonenkov/northwind/internal/service/outbox"
	"github.com/vladislavdragonenkov/northwind/internal/version"
)

// Run запускает сервис и блокируется до отмены ctx. Возвращает ctx.Err()
// после штатной остановки.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	orderRepo := orders.NewRepository(deps.store,
		orders.WithLogger(log.WithField("component", "orders")),
		orders.WithMetrics(metrics.NewOrderMetrics()),
	)
	api := httpsvc.NewAPI(orderRepo,
		httpsvc.WithLogger(log.WithField("component", "http-api")),
		httpsvc.WithIdempotency(deps.idempotencyRepo, cfg.IdempotencyTTL),
		httpsvc.WithTimeline(deps.timelineRepo),
	)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", healthcheck.NewPingChecker("storage", deps.store))
	if cfg.OutboxMaxLag > 0 {
		healthHandler.RegisterChecker("outbox", healthcheck.NewOutboxBacklogChecker(deps.outboxRepo, cfg.OutboxMaxLag))
	}

	producer := initKafkaProducer(cfg, logger)
	defer closeKafka(producer, logger)

	workersCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	if producer != nil {
		worker := outbox.NewWorker(deps.outboxRepo, kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
			outbox.WithLogger(log.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		runWorker(workersCtx, &workers, worker.Run)
	}

	cleanup := idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithLogger(log.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	runWorker(workersCtx, &workers, cleanup.Run)

	adminSrv, _, err := startHTTPServer(cfg.MetricsAddr, newAdminMux(healthHandler), logger.WithField("server", "admin"))
	if err != nil {
		return err
	}
	defer shutdownHTTP(adminSrv, logger)

	grpcHealthSrv, err := startGRPCHealth(cfg.GRPCAddr, logger)
	if err != nil {
		return err
	}
	defer grpcHealthSrv.stop(logger)

	apiSrv, _, err := startHTTPServer(cfg.HTTPAddr, httpsvc.NewRouter(api), logger.WithField("server", "api"))
	if err != nil {
		return err
	}
	defer shutdownHTTP(apiSrv, logger)

	grpcHealthSrv.setServing(true)
	logger.WithField("version", version.String()).Info("order service started")

	<-ctx.Done()
	logger.Info("получен сигнал остановки, останавливаем сервис")
	grpcHealthSrv.setServing(false)
	return ctx.Err()
}

func runWorker(ctx context.Context, wg *sync.WaitGroup, run func(context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		run(ctx)
	}()
}
