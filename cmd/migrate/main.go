package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/northwind/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "NORTHWIND_POSTGRES_DSN"
)

// migrator покрывает методы postgres.Store, нужные командам.
type migrator interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (postgres.MigrationStatus, error)
	Close() error
}

type openFunc func(ctx context.Context, dsn string) (migrator, error)

func openPostgres(ctx context.Context, dsn string) (migrator, error) {
	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return store, nil
}

type options struct {
	dsn     string
	timeout time.Duration
	open    openFunc
	getenv  func(string) string
}

func newRootCmd(open openFunc, getenv func(string) string) *cobra.Command {
	opts := &options{open: open, getenv: getenv}

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply or roll back Northwind schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", defaultTimeout, "overall command timeout")

	cmd.AddCommand(newUpCmd(opts))
	cmd.AddCommand(newDownCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	return cmd
}

func newUpCmd(opts *options) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStore(cmd, func(ctx context.Context, m migrator) error {
				if err := m.MigrateUp(ctx, steps); err != nil {
					return fmt.Errorf("migrate up failed: %w", err)
				}
				return printStatus(ctx, cmd.OutOrStdout(), m, "migrate up ok")
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to apply (0 = all)")
	return cmd
}

func newDownCmd(opts *options) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStore(cmd, func(ctx context.Context, m migrator) error {
				if err := m.MigrateDown(ctx, steps); err != nil {
					return fmt.Errorf("migrate down failed: %w", err)
				}
				return printStatus(ctx, cmd.OutOrStdout(), m, "migrate down ok")
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStore(cmd, func(ctx context.Context, m migrator) error {
				return printStatus(ctx, cmd.OutOrStdout(), m, "migration status")
			})
		},
	}
}

func (o *options) resolveDSN() (string, error) {
	dsn := strings.TrimSpace(o.dsn)
	if dsn == "" {
		dsn = strings.TrimSpace(o.getenv(envPostgresDSN))
	}
	if dsn == "" {
		return "", errors.New(envPostgresDSN + " (or --dsn) is required")
	}
	return dsn, nil
}

func (o *options) withStore(cmd *cobra.Command, fn func(ctx context.Context, m migrator) error) error {
	dsn, err := o.resolveDSN()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	m, err := o.open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer m.Close()

	return fn(ctx, m)
}

func printStatus(ctx context.Context, w io.Writer, m migrator, prefix string) error {
	status, err := m.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	fmt.Fprintf(w, "%s: version=%d applied=%d pending=%d\n", prefix, status.Version, status.Applied, len(status.Pending))
	for _, name := range status.Pending {
		fmt.Fprintf(w, "  pending %s\n", name)
	}
	return nil
}

func main() {
	cmd := newRootCmd(openPostgres, os.Getenv)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
