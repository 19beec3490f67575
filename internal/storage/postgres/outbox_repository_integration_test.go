package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
	"github.com/vladislavdragonenkov/northwind/internal/storage"
)

func TestOutboxRepository_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	base := time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)
	err := store.WithinTx(ctx, func(ctx context.Context, s storage.Session) error {
		if err := s.EnqueueOutbox(ctx, domain.OutboxMessage{
			AggregateType: domain.AggregateTypeOrder,
			AggregateID:   "1",
			EventType:     domain.EventOrderCreated,
			Payload:       []byte(`{"order_id":1}`),
			CreatedAt:     base,
		}); err != nil {
			return err
		}
		return s.EnqueueOutbox(ctx, domain.OutboxMessage{
			ID:            "outbox-fixed-id",
			AggregateType: domain.AggregateTypeOrder,
			AggregateID:   "1",
			EventType:     domain.EventOrderUpdated,
			Payload:       []byte(`{"order_id":1}`),
			CreatedAt:     base.Add(time.Second),
		})
	})
	require.NoError(t, err)

	pending, err := repo.PullPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.NotEmpty(t, pending[0].ID)
	assert.Equal(t, domain.EventOrderCreated, pending[0].EventType)
	assert.Equal(t, "outbox-fixed-id", pending[1].ID)
	assert.JSONEq(t, `{"order_id":1}`, string(pending[1].Payload))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PendingCount)
	assert.True(t, stats.OldestPendingAt.Equal(base), "oldest %s, want %s", stats.OldestPendingAt, base)

	require.NoError(t, repo.MarkSent(ctx, pending[0].ID))
	require.NoError(t, repo.MarkFailed(ctx, pending[1].ID))

	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount)
	assert.True(t, stats.OldestPendingAt.IsZero())

	pending, err = repo.PullPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.ErrorIs(t, repo.MarkSent(ctx, "missing"), domain.ErrOutboxPublish)
}

func TestOutboxRepository_PostgresEnqueueRollsBackWithOrder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := store.WithinTx(ctx, func(ctx context.Context, s storage.Session) error {
		require.NoError(t, s.EnqueueOutbox(ctx, domain.OutboxMessage{
			AggregateType: domain.AggregateTypeOrder,
			AggregateID:   "7",
			EventType:     domain.EventOrderRemoved,
			Payload:       []byte(`{}`),
		}))
		return errRollback
	})
	require.ErrorIs(t, err, errRollback)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount)
}
