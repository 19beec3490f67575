package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func TestNewOrderMetricsWithRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(reg)

	if m.operations == nil || m.operationDuration == nil || m.linesReconciled == nil ||
		m.referencesCreated == nil || m.outboxEnqueued == nil {
		t.Fatal("all collectors must be initialized")
	}

	// Повторная регистрация не должна паниковать и возвращает те же коллекторы.
	again := NewOrderMetricsWithRegisterer(reg)
	if again.operations != m.operations {
		t.Error("expected existing counter vec to be reused")
	}
	if again.outboxEnqueued != m.outboxEnqueued {
		t.Error("expected existing counter to be reused")
	}
}

func TestObserveOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(reg)

	started := time.Now().Add(-10 * time.Millisecond)
	m.ObserveOperation(OpAdd, started, nil)
	m.ObserveOperation(OpAdd, started, nil)
	m.ObserveOperation(OpGet, started, fmt.Errorf("get: %w", domain.ErrOrderNotFound))

	if got := counterValue(t, m.operations.WithLabelValues(OpAdd, "ok")); got != 2 {
		t.Errorf("expected 2 successful adds, got %v", got)
	}
	if got := counterValue(t, m.operations.WithLabelValues(OpGet, "not_found")); got != 1 {
		t.Errorf("expected 1 not_found get, got %v", got)
	}

	metric := &dto.Metric{}
	observer := m.operationDuration.WithLabelValues(OpAdd)
	if err := observer.(prometheus.Histogram).Write(metric); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 2 {
		t.Errorf("expected 2 samples, got %d", metric.Histogram.GetSampleCount())
	}
}

func TestRecordLinesAndReferences(t *testing.T) {
	m := NewOrderMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordLines(LineInserted, 3)
	m.RecordLines(LineDeleted, 0)
	m.RecordReferenceCreated("customer")
	m.RecordOutboxEnqueued()

	if got := counterValue(t, m.linesReconciled.WithLabelValues(LineInserted)); got != 3 {
		t.Errorf("expected 3 inserted lines, got %v", got)
	}
	if got := counterValue(t, m.linesReconciled.WithLabelValues(LineDeleted)); got != 0 {
		t.Errorf("expected no deleted lines, got %v", got)
	}
	if got := counterValue(t, m.referencesCreated.WithLabelValues("customer")); got != 1 {
		t.Errorf("expected 1 created customer, got %v", got)
	}
	if got := counterValue(t, m.outboxEnqueued); got != 1 {
		t.Errorf("expected 1 outbox event, got %v", got)
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *OrderMetrics
	m.ObserveOperation(OpList, time.Now(), nil)
	m.RecordLines(LineUpdated, 1)
	m.RecordReferenceCreated("shipper")
	m.RecordOutboxEnqueued()
}

func TestResult(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: "ok"},
		{name: "not found", err: domain.ErrOrderNotFound, want: "not_found"},
		{name: "validation", err: &domain.ValidationError{Reason: "Ship name is required."}, want: "invalid"},
		{name: "invalid argument", err: fmt.Errorf("%w: skip", domain.ErrInvalidArgument), want: "invalid"},
		{name: "conflict", err: domain.ErrOrderVersionConflict, want: "conflict"},
		{name: "storage", err: errors.New("connection reset"), want: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Result(tt.err); got != tt.want {
				t.Errorf("Result() = %q, want %q", got, tt.want)
			}
		})
	}
}
