package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDBConnection_ForeignKeysEnabled(t *testing.T) {
	for _, driver := range []string{DriverCGO, DriverPure} {
		t.Run(driver, func(t *testing.T) {
			conn := openTestDB(t, driver)

			// Every pooled connection must enforce foreign keys, not only the first one.
			conn.SetMaxOpenConns(4)
			for i := 0; i < 4; i++ {
				var fk int
				require.NoError(t, conn.Get(&fk, "PRAGMA foreign_keys"))
				assert.Equal(t, 1, fk)
			}

			var mode string
			require.NoError(t, conn.Get(&mode, "PRAGMA journal_mode"))
			assert.Equal(t, "wal", mode)
		})
	}
}

func TestOpenDBConnection_InMemory(t *testing.T) {
	conn, err := OpenDBConnection(":memory:", Options{Driver: DriverCGO})
	require.NoError(t, err)
	defer conn.Close()

	_, err = UpgradeComponent(context.Background(), conn, CoreComponent, CoreSchemaV1, CoreSchemaVersion)
	require.NoError(t, err)
	checkTableExists(t, conn, "items")
}

func TestOpenDBConnection_InvalidOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keep.db")

	_, err := OpenDBConnection(path, Options{Sync: "SOMETIMES"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sync pragma")

	_, err = OpenDBConnection(path, Options{Driver: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported sqlite driver")
}

func TestClose_CheckpointsWAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keep.db")
	conn, err := OpenDBConnection(path, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, InstallComponent(context.Background(), conn, CoreComponent, CoreSchemaV1, CoreSchemaVersion))
	require.NoError(t, Close(conn, nil))

	conn, err = OpenDBConnection(path, DefaultOptions())
	require.NoError(t, err)
	defer conn.Close()
	version, err := GetComponentSchemaVersion(context.Background(), conn, CoreComponent)
	require.NoError(t, err)
	assert.Equal(t, int64(CoreSchemaVersion), version)

	assert.NoError(t, Close(nil, nil))
}
