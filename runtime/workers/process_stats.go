package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"society-live/observability"

	"github.com/shirou/gopsutil/process"
)

// ProcessStatsWorker samples the broadcaster's own memory and CPU into the
// process gauges, along with the session and room gauges.
type ProcessStatsWorker struct {
	log      *slog.Logger
	metrics  *observability.Metrics
	counts   Counts
	interval time.Duration
}

// Counts exposes live sizes of the runtime.
type Counts interface {
	Count() int
	RoomCount() int
}

func NewProcessStatsWorker(log *slog.Logger, metrics *observability.Metrics, counts Counts, interval time.Duration) *ProcessStatsWorker {
	return &ProcessStatsWorker{log: log, metrics: metrics, counts: counts, interval: interval}
}

func (w *ProcessStatsWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.sample(p); err != nil {
				w.log.Error("Failed to collect self stats", "error", err)
			}
		}
	}
}

func (w *ProcessStatsWorker) sample(p *process.Process) error {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return err
	}
	w.metrics.ProcessRSS.Set(float64(memInfo.RSS))
	w.metrics.ProcessCPU.Set(cpuPercent)
	if w.counts != nil {
		w.metrics.SessionsActive.Set(float64(w.counts.Count()))
		w.metrics.Rooms.Set(float64(w.counts.RoomCount()))
	}
	return nil
}
