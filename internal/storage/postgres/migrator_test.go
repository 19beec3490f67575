package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func migrationFile(body string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(body)}
}

func TestLoadMigrationsFromFS_SortsByVersion(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0010_orders.up.sql":     migrationFile("CREATE TABLE orders (id INT);"),
		"sql/migrations/0010_orders.down.sql":   migrationFile("DROP TABLE orders;"),
		"sql/migrations/0002_products.up.sql":   migrationFile("CREATE TABLE products (id INT);"),
		"sql/migrations/0002_products.down.sql": migrationFile("DROP TABLE products;"),
	}

	migrations, err := loadMigrationsFromFS(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, int64(2), migrations[0].Version)
	assert.Equal(t, "products", migrations[0].Name)
	assert.Equal(t, "0002_products", migrations[0].fullName())
	assert.Equal(t, "DROP TABLE products;", migrations[0].DownSQL)
	assert.Equal(t, int64(10), migrations[1].Version)
	assert.Equal(t, "CREATE TABLE orders (id INT);", migrations[1].UpSQL)
}

func TestLoadMigrationsFromFS_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr string
	}{
		{
			name:    "no files",
			fsys:    fstest.MapFS{},
			wantErr: "no migration files found",
		},
		{
			name: "missing down",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql": migrationFile("CREATE TABLE a (id INT);"),
			},
			wantErr: "both up and down",
		},
		{
			name: "invalid file name",
			fsys: fstest.MapFS{
				"sql/migrations/not_a_migration.sql": migrationFile("SELECT 1;"),
			},
			wantErr: "invalid migration file name",
		},
		{
			name: "empty body",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":   migrationFile("   \n"),
				"sql/migrations/0001_init.down.sql": migrationFile("DROP TABLE a;"),
			},
			wantErr: "migration file is empty",
		},
		{
			name: "name mismatch",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":    migrationFile("CREATE TABLE a (id INT);"),
				"sql/migrations/0001_other.down.sql": migrationFile("DROP TABLE a;"),
			},
			wantErr: "name mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := loadMigrationsFromFS(tt.fsys)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMigrationsFromFS_Embedded(t *testing.T) {
	t.Parallel()

	migrations, err := loadMigrationsFromFS(migrationsFS)
	require.NoError(t, err)
	require.Len(t, migrations, 5)

	names := make([]string, 0, len(migrations))
	for _, m := range migrations {
		names = append(names, m.fullName())
	}
	assert.Equal(t, []string{
		"0001_reference_tables",
		"0002_orders",
		"0003_outbox_messages",
		"0004_idempotency_keys",
		"0005_order_timeline",
	}, names)
}
