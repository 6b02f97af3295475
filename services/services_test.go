package services

import (
	"log/slog"
	"testing"
	"time"

	"society-live/domain"
	"society-live/infrastructure/storage"
	"society-live/observability"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var (
	now      = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	clock    = func() time.Time { return now }
	log      = logs.GetLoggerFromLevel(slog.LevelError)
	resident = domain.Identity{UserID: "U1", SocietyID: "S1", Role: domain.RoleResident}
	neighbor = domain.Identity{UserID: "U2", SocietyID: "S1", Role: domain.RoleResident}
	manager  = domain.Identity{UserID: "M1", SocietyID: "S1", Role: domain.RoleCommittee}
	outsider = domain.Identity{UserID: "X1", SocietyID: "S2", Role: domain.RoleResident}
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := storage.Open("", log, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}
