package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
	"github.com/vladislavdragonenkov/northwind/internal/storage/memory"
)

var _ domain.IdempotencyRepository = (*stubCleanupRepo)(nil)

func TestCleanupWorker_DeleteExpired(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		batchSize   int
		results     []int
		errs        []error
		wantDeleted int
		wantCalls   int
		wantErr     bool
	}{
		{name: "batches until short page", batchSize: 2, results: []int{2, 2, 1}, wantDeleted: 5, wantCalls: 3},
		{name: "single empty run", batchSize: 10, results: []int{0}, wantDeleted: 0, wantCalls: 1},
		{name: "error on first batch", batchSize: 10, errs: []error{errors.New("boom")}, wantCalls: 1, wantErr: true},
		{name: "error keeps partial total", batchSize: 2, results: []int{2}, errs: []error{nil, errors.New("boom")}, wantDeleted: 2, wantCalls: 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := &stubCleanupRepo{deleteResults: tt.results, deleteErrors: tt.errs}
			worker := NewCleanupWorker(repo, WithBatchSize(tt.batchSize))

			deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantDeleted, deleted)
			assert.Equal(t, tt.wantCalls, repo.calls())
		})
	}
}

func TestCleanupWorker_DeleteExpired_MemoryRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()
	repo := memory.NewIdempotencyRepository()

	for _, key := range []string{"a", "b", "c"} {
		_, err := repo.CreateProcessing(ctx, key, "hash", now.Add(-time.Minute))
		require.NoError(t, err)
	}
	_, err := repo.CreateProcessing(ctx, "live", "hash", now.Add(time.Hour))
	require.NoError(t, err)

	worker := NewCleanupWorker(repo, WithBatchSize(2), WithClock(func() time.Time { return now }))
	deleted, err := worker.DeleteExpired(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	_, err = repo.Get(ctx, "live")
	require.NoError(t, err)
}

func TestCleanupWorker_DeleteExpired_CanceledContext(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{}
	worker := NewCleanupWorker(repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := worker.DeleteExpired(ctx, time.Now())
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, repo.calls())
}

func TestCleanupWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{}
	worker := NewCleanupWorker(repo, WithInterval(5*time.Millisecond), WithBatchSize(10))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
	assert.Positive(t, repo.calls())
}

type stubCleanupRepo struct {
	mu sync.Mutex

	deleteResults []int
	deleteErrors  []error
	callCount     int
}

func (s *stubCleanupRepo) CreateProcessing(context.Context, string, string, time.Time) (domain.IdempotencyRecord, error) {
	panic("not implemented")
}

func (s *stubCleanupRepo) Get(context.Context, string) (domain.IdempotencyRecord, error) {
	panic("not implemented")
}

func (s *stubCleanupRepo) MarkDone(context.Context, string, []byte, int) error {
	panic("not implemented")
}

func (s *stubCleanupRepo) MarkFailed(context.Context, string, []byte, int) error {
	panic("not implemented")
}

func (s *stubCleanupRepo) DeleteExpired(context.Context, time.Time, int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	if len(s.deleteErrors) > 0 {
		err := s.deleteErrors[0]
		s.deleteErrors = s.deleteErrors[1:]
		if err != nil {
			return 0, err
		}
	}

	if len(s.deleteResults) == 0 {
		return 0, nil
	}
	result := s.deleteResults[0]
	s.deleteResults = s.deleteResults[1:]
	return result, nil
}

func (s *stubCleanupRepo) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}
