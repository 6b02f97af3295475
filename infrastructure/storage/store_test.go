package storage

import (
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := Open("", logs.GetLoggerFromLevel(slog.LevelError), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
