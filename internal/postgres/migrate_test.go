package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	got, err := migrateURL("postgres://app:secret@db:5432/orders?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://app:secret@db:5432/orders?sslmode=disable&x-migrations-table=orders_schema_migrations", got)

	_, err = migrateURL("mysql://root@db/orders")
	assert.Error(t, err)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_init.up.sql")
	assert.Contains(t, names, "000001_init.down.sql")
}
