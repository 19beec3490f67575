package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
)

// outboxRepositoryInMemory — представление outbox-таблицы Store для воркера публикации.
type outboxRepositoryInMemory struct {
	store *Store
}

// NewOutboxRepository создаёт in-memory реализацию outbox поверх Store.
func NewOutboxRepository(store *Store) domain.OutboxRepository {
	return &outboxRepositoryInMemory{store: store}
}

// PullPending возвращает до limit сообщений со статусом `pending` в порядке создания.
func (r *outboxRepositoryInMemory) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	result := r.pending()
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Stats возвращает размер backlog и время самого старого pending-сообщения.
func (r *outboxRepositoryInMemory) Stats(context.Context) (domain.OutboxStats, error) {
	pending := r.pending()
	stats := domain.OutboxStats{PendingCount: len(pending)}
	if len(pending) > 0 {
		stats.OldestPendingAt = pending[0].CreatedAt
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *outboxRepositoryInMemory) MarkSent(_ context.Context, id string) error {
	return r.markStatus(id, outboxSent)
}

// MarkFailed фиксирует ошибку публикации.
func (r *outboxRepositoryInMemory) MarkFailed(_ context.Context, id string) error {
	return r.markStatus(id, outboxFailed)
}

func (r *outboxRepositoryInMemory) markStatus(id string, status outboxStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	record, ok := r.store.data.outbox[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	record.status = status
	record.attemptCnt++
	record.updatedAt = time.Now().UTC()
	r.store.data.outbox[id] = record
	return nil
}

func (r *outboxRepositoryInMemory) pending() []domain.OutboxMessage {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result := make([]domain.OutboxMessage, 0, len(r.store.data.outbox))
	for _, rec := range r.store.data.outbox {
		if rec.status == outboxPending {
			result = append(result, rec.msg)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

var _ domain.OutboxRepository = (*outboxRepositoryInMemory)(nil)
