package memory

import (
	"context"
	"slices"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
)

// timelineRepositoryInMemory читает журнал заказов из зафиксированного состояния Store.
type timelineRepositoryInMemory struct {
	store *Store
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepositoryInMemory{store: store}
}

// List возвращает копию журнала заказа в порядке добавления.
func (r *timelineRepositoryInMemory) List(_ context.Context, orderID int64) ([]domain.TimelineEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	events := slices.Clone(r.store.data.timeline[orderID])
	if events == nil {
		events = []domain.TimelineEvent{}
	}
	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
