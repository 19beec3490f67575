package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/northwind/internal/storage/postgres"
)

type fakeMigrator struct {
	upSteps   []int
	downSteps []int
	status    postgres.MigrationStatus
	err       error
	closed    bool
}

func (m *fakeMigrator) MigrateUp(_ context.Context, steps int) error {
	m.upSteps = append(m.upSteps, steps)
	return m.err
}

func (m *fakeMigrator) MigrateDown(_ context.Context, steps int) error {
	m.downSteps = append(m.downSteps, steps)
	return m.err
}

func (m *fakeMigrator) MigrationStatus(context.Context) (postgres.MigrationStatus, error) {
	return m.status, nil
}

func (m *fakeMigrator) Close() error {
	m.closed = true
	return nil
}

func execute(t *testing.T, m *fakeMigrator, env map[string]string, args ...string) (string, string, error) {
	t.Helper()

	var gotDSN string
	open := func(_ context.Context, dsn string) (migrator, error) {
		gotDSN = dsn
		return m, nil
	}
	getenv := func(key string) string { return env[key] }

	cmd := newRootCmd(open, getenv)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), gotDSN, err
}

func TestMigrateCommands(t *testing.T) {
	status := postgres.MigrationStatus{Version: 3, Applied: 3, Pending: []string{"0004_idempotency_keys"}}

	tests := []struct {
		name      string
		args      []string
		wantUp    []int
		wantDown  []int
		wantPrint string
	}{
		{name: "up all", args: []string{"up", "--dsn", "postgres://flag"}, wantUp: []int{0}, wantPrint: "migrate up ok: version=3 applied=3 pending=1"},
		{name: "up steps", args: []string{"up", "--steps", "2", "--dsn", "postgres://flag"}, wantUp: []int{2}, wantPrint: "migrate up ok"},
		{name: "down default", args: []string{"down", "--dsn", "postgres://flag"}, wantDown: []int{1}, wantPrint: "migrate down ok"},
		{name: "down steps", args: []string{"down", "--steps=3", "--dsn", "postgres://flag"}, wantDown: []int{3}, wantPrint: "migrate down ok"},
		{name: "status", args: []string{"status", "--dsn", "postgres://flag"}, wantPrint: "pending 0004_idempotency_keys"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMigrator{status: status}
			out, dsn, err := execute(t, m, nil, tt.args...)

			require.NoError(t, err)
			assert.Equal(t, "postgres://flag", dsn)
			assert.Equal(t, tt.wantUp, m.upSteps)
			assert.Equal(t, tt.wantDown, m.downSteps)
			assert.Contains(t, out, tt.wantPrint)
			assert.True(t, m.closed)
		})
	}
}

func TestMigrate_DSNFromEnvironment(t *testing.T) {
	m := &fakeMigrator{}
	_, dsn, err := execute(t, m, map[string]string{envPostgresDSN: " postgres://env "}, "status")

	require.NoError(t, err)
	assert.Equal(t, "postgres://env", dsn)
}

func TestMigrate_Errors(t *testing.T) {
	t.Run("missing dsn", func(t *testing.T) {
		_, _, err := execute(t, &fakeMigrator{}, nil, "up")
		require.Error(t, err)
		assert.Contains(t, err.Error(), envPostgresDSN)
	})

	t.Run("migration failure", func(t *testing.T) {
		m := &fakeMigrator{err: errors.New("boom")}
		_, _, err := execute(t, m, nil, "up", "--dsn", "postgres://flag")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "migrate up failed")
		assert.True(t, m.closed)
	})

	t.Run("open failure", func(t *testing.T) {
		cmd := newRootCmd(func(context.Context, string) (migrator, error) {
			return nil, errors.New("connection refused")
		}, func(string) string { return "" })
		cmd.SetArgs([]string{"status", "--dsn", "postgres://flag"})

		err := cmd.ExecuteContext(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "open postgres store")
	})

	t.Run("unexpected args", func(t *testing.T) {
		_, _, err := execute(t, &fakeMigrator{}, nil, "status", "extra", "--dsn", "postgres://flag")
		assert.Error(t, err)
	})
}
