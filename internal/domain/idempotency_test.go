package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
)

func TestParseIdempotencyStatus(t *testing.T) {
	tests := []struct {
		raw      string
		want     domain.IdempotencyStatus
		terminal bool
		wantErr  bool
	}{
		{raw: "processing", want: domain.IdempotencyStatusProcessing},
		{raw: "done", want: domain.IdempotencyStatusDone, terminal: true},
		{raw: "failed", want: domain.IdempotencyStatusFailed, terminal: true},
		{raw: "DONE", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := domain.ParseIdempotencyStatus(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.terminal, got.Terminal())
		})
	}
}

func TestIdempotencyRecord_ExpiredAndSameRequest(t *testing.T) {
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	record := domain.IdempotencyRecord{Key: "order-1", RequestHash: "abc", TTLAt: now}

	assert.True(t, record.Expired(now))
	assert.True(t, record.Expired(now.Add(time.Second)))
	assert.False(t, record.Expired(now.Add(-time.Second)))

	assert.True(t, record.SameRequest("abc"))
	assert.False(t, record.SameRequest("abd"))
}
