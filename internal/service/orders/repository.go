// Package orders реализует движок агрегата заказа: валидацию, разрешение
// справочных ссылок, сборку агрегата и сверку позиций при обновлении.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
	"github.com/vladislavdragonenkov/northwind/internal/metrics"
	"github.com/vladislavdragonenkov/northwind/internal/storage"
)

// Repository реализует domain.OrderRepository поверх storage.Store.
// Каждый вызов работает в собственной транзакции; состояние между вызовами
// не кэшируется.
type Repository struct {
	store   storage.Store
	logger  *log.Entry
	metrics *metrics.OrderMetrics
	now     func() time.Time
}

// Option настраивает Repository.
type Option func(*Repository)

// WithLogger задаёт logger репозитория.
func WithLogger(logger *log.Entry) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// WithMetrics задаёт метрики репозитория.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(r *Repository) {
		r.metrics = m
	}
}

// WithClock подменяет источник времени для событий outbox.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// NewRepository создаёт репозиторий заказов.
func NewRepository(store storage.Store, opts ...Option) *Repository {
	r := &Repository{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.WithField("component", "orders")
	}
	return r
}

// Get возвращает полностью собранный заказ.
func (r *Repository) Get(ctx context.Context, id int64) (order domain.Order, err error) {
	defer r.observe(metrics.OpGet, time.Now(), &err)

	err = r.store.WithinTx(ctx, func(ctx context.Context, s storage.Session) error {
		g, err := s.LoadOrder(ctx, id)
		if err != nil {
			return notFound(err, id)
		}
		order = toDomain(g)
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// List возвращает страницу заказов по возрастанию идентификатора.
func (r *Repository) List(ctx context.Context, skip, count int) (result []domain.Order, err error) {
	defer r.observe(metrics.OpList, time.Now(), &err)

	if skip < 0 {
		return nil, fmt.Errorf("%w: Skip must be greater or equal to 0! Skip: %d", domain.ErrInvalidArgument, skip)
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: Count must be greater than 0! Count: %d", domain.ErrInvalidArgument, count)
	}

	err = r.store.WithinTx(ctx, func(ctx context.Context, s storage.Session) error {
		graphs, err := s.ListOrders(ctx, skip, count)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		result = make([]domain.Order, 0, len(graphs))
		for _, g := range graphs {
			result = append(result, toDomain(g))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Add валидирует агрегат, создаёт недостающие справочные записи и
// сохраняет заказ с позициями одной транзакцией.
func (r *Repository) Add(ctx context.Context, order domain.Order) (id int64, err error) {
	defer r.observe(metrics.OpAdd, time.Now(), &err)

	if err := domain.ValidateOrder(&order); err != nil {
		return 0, err
	}

	var created []string
	err = r.store.WithinTx(ctx, func(ctx context.Context, s storage.Session) error {
		res, err := newResolver(ctx, s, r.metrics, &order, order.Lines)
		if err != nil {
			return err
		}
		refs, err := res.header(ctx, &order)
		if err != nil {
			return err
		}

		id, err = s.InsertOrder(ctx, toOrderRow(0, &order, refs, 1))
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, line := range order.Lines {
			product, err := res.product(ctx, line.Product)
			if err != nil {
				return err
			}
			if err := s.InsertLine(ctx, toLineRow(id, line, product)); err != nil {
				return fmt.Errorf("insert order %d line for product %d: %w", id, product.ID, err)
			}
		}

		created = res.created
		return r.record(ctx, s, domain.EventOrderCreated, domain.OrderEvent{
			OrderID:      id,
			CustomerCode: refs.customer.Code,
			LineCount:    len(order.Lines),
			Version:      1,
			Inserted:     len(order.Lines),
		})
	})
	if err != nil {
		return 0, err
	}

	r.metrics.RecordLines(metrics.LineInserted, len(order.Lines))
	r.logger.WithFields(log.Fields{
		"order_id": id,
		"lines":    len(order.Lines),
		"created":  created,
	}).Info("order added")
	return id, nil
}

// Remove удаляет заказ и его позиции. Справочные записи не затрагиваются.
func (r *Repository) Remove(ctx context.Context, id int64) (err error) {
	defer r.observe(metrics.OpRemove, time.Now(), &err)

	err = r.store.WithinTx(ctx, func(ctx context.Context, s storage.Session) error {
		if err := s.LockOrder(ctx, id); err != nil {
			return notFound(err, id)
		}
		g, err := s.LoadOrder(ctx, id)
		if err != nil {
			return notFound(err, id)
		}
		if err := s.DeleteOrder(ctx, id); err != nil {
			return notFound(err, id)
		}
		return r.record(ctx, s, domain.EventOrderRemoved, domain.OrderEvent{
			OrderID:      id,
			CustomerCode: g.Order.CustomerCode,
			Version:      g.Order.Version,
			Deleted:      len(g.Lines),
		})
	})
	if err != nil {
		return err
	}

	r.logger.WithField("order_id", id).Info("order removed")
	return nil
}

// Update перезаписывает заголовок заказа и сверяет позиции: новые
// добавляются, изменённые обновляются, отсутствующие удаляются.
func (r *Repository) Update(ctx context.Context, id int64, order domain.Order) (err error) {
	defer r.observe(metrics.OpUpdate, time.Now(), &err)

	var plan LinePlan
	err = r.store.WithinTx(ctx, func(ctx context.Context, s storage.Session) error {
		if err := s.LockOrder(ctx, id); err != nil {
			return notFound(err, id)
		}
		g, err := s.LoadOrder(ctx, id)
		if err != nil {
			return notFound(err, id)
		}
		if err := domain.ValidateOrder(&order); err != nil {
			return err
		}
		if order.Version > 0 && order.Version != g.Order.Version {
			return fmt.Errorf("order %d: stored version %d, got %d: %w",
				id, g.Order.Version, order.Version, domain.ErrOrderVersionConflict)
		}

		plan = Reconcile(lineRows(g), order.Lines)

		res, err := newResolver(ctx, s, r.metrics, &order, plan.Insert)
		if err != nil {
			return err
		}
		refs, err := res.header(ctx, &order)
		if err != nil {
			return err
		}

		version := g.Order.Version + 1
		if err := s.UpdateOrder(ctx, toOrderRow(id, &order, refs, version)); err != nil {
			return fmt.Errorf("update order %d: %w", id, err)
		}

		for _, row := range plan.Delete {
			if err := s.DeleteLine(ctx, id, row.ProductID); err != nil {
				return fmt.Errorf("delete order %d line for product %d: %w", id, row.ProductID, err)
			}
		}
		for _, line := range plan.Insert {
			product, err := res.product(ctx, line.Product)
			if err != nil {
				return err
			}
			if err := s.InsertLine(ctx, toLineRow(id, line, product)); err != nil {
				return fmt.Errorf("insert order %d line for product %d: %w", id, product.ID, err)
			}
		}
		for _, row := range plan.Update {
			if err := s.UpdateLine(ctx, row); err != nil {
				return fmt.Errorf("update order %d line for product %d: %w", id, row.ProductID, err)
			}
		}

		return r.record(ctx, s, domain.EventOrderUpdated, domain.OrderEvent{
			OrderID:      id,
			CustomerCode: refs.customer.Code,
			LineCount:    len(g.Lines) - len(plan.Delete) + len(plan.Insert),
			Version:      version,
			Inserted:     len(plan.Insert),
			Updated:      len(plan.Update),
			Deleted:      len(plan.Delete),
		})
	})
	if err != nil {
		return err
	}

	r.metrics.RecordLines(metrics.LineInserted, len(plan.Insert))
	r.metrics.RecordLines(metrics.LineUpdated, len(plan.Update))
	r.metrics.RecordLines(metrics.LineDeleted, len(plan.Delete))
	r.logger.WithFields(log.Fields{
		"order_id": id,
		"inserted": len(plan.Insert),
		"updated":  len(plan.Update),
		"deleted":  len(plan.Delete),
	}).Info("order updated")
	return nil
}

// record пишет событие в outbox и в журнал заказа в той же транзакции.
func (r *Repository) record(ctx context.Context, s storage.Session, eventType string, event domain.OrderEvent) error {
	event.OccurredAt = r.now()
	msg, err := domain.NewOrderOutboxMessage(eventType, event)
	if err != nil {
		return err
	}
	if err := s.EnqueueOutbox(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s: %w", eventType, err)
	}
	if err := s.AppendTimeline(ctx, timelineEvent(eventType, event)); err != nil {
		return fmt.Errorf("append timeline for order %d: %w", event.OrderID, err)
	}
	r.metrics.RecordOutboxEnqueued()
	return nil
}

func timelineEvent(eventType string, event domain.OrderEvent) domain.TimelineEvent {
	te := domain.TimelineEvent{
		OrderID:  event.OrderID,
		Version:  event.Version,
		Occurred: event.OccurredAt,
	}
	switch eventType {
	case domain.EventOrderCreated:
		te.Type = domain.TimelineCreated
		te.Reason = fmt.Sprintf("lines=%d", event.LineCount)
	case domain.EventOrderUpdated:
		te.Type = domain.TimelineUpdated
		te.Reason = fmt.Sprintf("inserted=%d updated=%d deleted=%d", event.Inserted, event.Updated, event.Deleted)
	case domain.EventOrderRemoved:
		te.Type = domain.TimelineRemoved
		te.Reason = fmt.Sprintf("lines=%d", event.Deleted)
	}
	return te
}

// observe пишет метрики операции и логирует сбои хранилища. Ошибки
// бизнес-уровня возвращаются вызывающему без записи в лог.
func (r *Repository) observe(op string, started time.Time, errp *error) {
	err := *errp
	r.metrics.ObserveOperation(op, started, err)
	if err != nil && metrics.Result(err) == "error" {
		r.logger.WithError(err).WithField("operation", op).Error("order repository operation failed")
	}
}

func notFound(err error, id int64) error {
	if errors.Is(err, storage.ErrRowNotFound) {
		return fmt.Errorf("order %d: %w", id, domain.ErrOrderNotFound)
	}
	return fmt.Errorf("load order %d: %w", id, err)
}

var _ domain.OrderRepository = (*Repository)(nil)
