package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/northwind/internal/messaging/kafka"
)

// initKafkaProducer создаёт producer, если заданы брокеры. Ошибка подключения
// не останавливает сервис: события копятся в outbox до следующего запуска.
func initKafkaProducer(cfg Config, logger *log.Entry) *kafka.Producer {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("kafka brokers are not configured, outbox publishing disabled")
		return nil
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.KafkaBrokers})
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil
	}

	logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
	return producer
}

// closeKafka закрывает producer, если он был создан.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
