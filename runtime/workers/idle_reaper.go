package workers

import (
	"context"
	"log/slog"
	"time"

	"society-live/domain"
)

type IdleSessions interface {
	IdleSince(cutoff time.Time) []domain.ConnectionID
	Disconnect(connID domain.ConnectionID) bool
}

// IdleReaperWorker disconnects connections silent for longer than idleTimeout.
// A client proves activity with any inbound frame, pings included.
type IdleReaperWorker struct {
	log         *slog.Logger
	sessions    IdleSessions
	idleTimeout time.Duration
	interval    time.Duration
	now         func() time.Time
}

func NewIdleReaperWorker(log *slog.Logger, sessions IdleSessions, idleTimeout, interval time.Duration) *IdleReaperWorker {
	return &IdleReaperWorker{
		log:         log,
		sessions:    sessions,
		idleTimeout: idleTimeout,
		interval:    interval,
		now:         time.Now,
	}
}

func (w *IdleReaperWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.reap()
		}
	}
}

func (w *IdleReaperWorker) reap() int {
	reaped := 0
	for _, connID := range w.sessions.IdleSince(w.now().Add(-w.idleTimeout)) {
		if w.sessions.Disconnect(connID) {
			reaped++
		}
	}
	if reaped > 0 {
		w.log.Info("Idle connections reaped", "count", reaped)
	}
	return reaped
}
