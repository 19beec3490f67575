package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Операции репозитория заказов, используемые как значения label `operation`.
const (
	OpGet    = "get"
	OpList   = "list"
	OpAdd    = "add"
	OpRemove = "remove"
	OpUpdate = "update"
)

// Действия сверки позиций для label `action`.
const (
	LineInserted = "insert"
	LineUpdated  = "update"
	LineDeleted  = "delete"
)

// OrderMetrics содержит метрики движка агрегата заказа.
type OrderMetrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	linesReconciled   *prometheus.CounterVec
	referencesCreated *prometheus.CounterVec
	outboxEnqueued    prometheus.Counter
}

// NewOrderMetrics создаёт метрики в DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer создаёт метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "northwind_order_operations_total",
			Help: "Total number of order repository operations grouped by result",
		}, []string{"operation", "result"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "northwind_order_operation_duration_seconds",
			Help:    "Duration of order repository operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		linesReconciled: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "northwind_order_lines_reconciled_total",
			Help: "Total number of order line writes produced by reconciliation",
		}, []string{"action"}),
		referencesCreated: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "northwind_reference_entities_created_total",
			Help: "Total number of referenced entities created lazily by kind",
		}, []string{"kind"}),
		outboxEnqueued: registerCounter(registerer, prometheus.CounterOpts{
			Name: "northwind_outbox_enqueued_total",
			Help: "Total number of order events written to the outbox",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// ObserveOperation фиксирует результат и длительность операции репозитория.
// Метод безопасен для nil-получателя.
func (m *OrderMetrics) ObserveOperation(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, Result(err)).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// RecordLines добавляет число записанных позиций для действия сверки.
func (m *OrderMetrics) RecordLines(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.linesReconciled.WithLabelValues(action).Add(float64(n))
}

// RecordReferenceCreated увеличивает счётчик лениво созданных справочных записей.
func (m *OrderMetrics) RecordReferenceCreated(kind string) {
	if m == nil {
		return
	}
	m.referencesCreated.WithLabelValues(kind).Inc()
}

// RecordOutboxEnqueued увеличивает счётчик событий, записанных в outbox.
func (m *OrderMetrics) RecordOutboxEnqueued() {
	if m == nil {
		return
	}
	m.outboxEnqueued.Inc()
}
