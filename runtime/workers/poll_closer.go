package workers

import (
	"context"
	"log/slog"
	"time"
)

type EndedPolls interface {
	AnnounceEnded(ctx context.Context) (int, error)
}

// PollCloserWorker announces polls whose voting window is over.
// Activity itself never depends on it: a poll stops accepting votes at its
// end date whether or not the announcement went out.
type PollCloserWorker struct {
	log      *slog.Logger
	polls    EndedPolls
	interval time.Duration
}

func NewPollCloserWorker(log *slog.Logger, polls EndedPolls, interval time.Duration) *PollCloserWorker {
	return &PollCloserWorker{log: log, polls: polls, interval: interval}
}

func (w *PollCloserWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.polls.AnnounceEnded(ctx); err != nil {
				w.log.Error("Poll end announcements failed", "error", err)
			}
		}
	}
}
