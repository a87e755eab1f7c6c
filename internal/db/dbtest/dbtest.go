// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/ferhatb/linkstats/internal/db"
	"github.com/stretchr/testify/require"
)

// Open returns a migrated database backed by a file in a per-test temp dir,
// closed when the test finishes.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "linkstats.db")
	dbInstance, err := db.Open(context.Background(), path)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = dbInstance.Close()
	})

	return dbInstance
}
