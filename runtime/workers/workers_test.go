package workers

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"society-live/domain"
	"society-live/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shirou/gopsutil/process"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	mu           sync.Mutex
	lastActivity map[domain.ConnectionID]time.Time
	disconnected []domain.ConnectionID
}

func (f *fakeSessions) IdleSince(cutoff time.Time) []domain.ConnectionID {
	f.mu.Lock()
	defer f.mu.Unlock()
	var idle []domain.ConnectionID
	for id, at := range f.lastActivity {
		if at.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	return idle
}

func (f *fakeSessions) Disconnect(connID domain.ConnectionID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lastActivity[connID]; !ok {
		return false
	}
	delete(f.lastActivity, connID)
	f.disconnected = append(f.disconnected, connID)
	return true
}

func (f *fakeSessions) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lastActivity)
}

func (f *fakeSessions) RoomCount() int { return 7 }

func TestIdleReaperWorker_Reaps_Only_Idle(t *testing.T) {
	req := require.New(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	sessions := &fakeSessions{lastActivity: map[domain.ConnectionID]time.Time{
		"quiet": now.Add(-10 * time.Minute),
		"busy":  now.Add(-10 * time.Second),
	}}
	worker := NewIdleReaperWorker(testLog, sessions, time.Minute, time.Hour)
	worker.now = func() time.Time { return now }

	req.Equal(1, worker.reap())
	req.Equal([]domain.ConnectionID{"quiet"}, sessions.disconnected)
	req.Zero(worker.reap())
}

func TestIdleReaperWorker_Run_Stops_On_Cancel(t *testing.T) {
	req := require.New(t)
	sessions := &fakeSessions{lastActivity: map[domain.ConnectionID]time.Time{"old": time.Unix(0, 0)}}
	worker := NewIdleReaperWorker(testLog, sessions, time.Minute, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()
	req.Eventually(func() bool { return sessions.Count() == 0 }, time.Second, 5*time.Millisecond)
	cancel()

	req.ErrorIs(<-done, context.Canceled)
}

type countingReminder struct {
	mu    sync.Mutex
	calls int
	lead  time.Duration
}

func (c *countingReminder) SendReminders(_ context.Context, lead time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.lead = lead
	return 1, nil
}

func (c *countingReminder) snapshot() (int, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls, c.lead
}

func TestBookingReminderWorker_Ticks(t *testing.T) {
	req := require.New(t)
	reminder := &countingReminder{}
	worker := NewBookingReminderWorker(testLog, reminder, 30*time.Minute, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = worker.Run(ctx) }()

	req.Eventually(func() bool {
		calls, lead := reminder.snapshot()
		return calls >= 2 && lead == 30*time.Minute
	}, time.Second, 5*time.Millisecond)
}

type countingPolls struct {
	mu    sync.Mutex
	calls int
}

func (c *countingPolls) AnnounceEnded(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 0, nil
}

func TestPollCloserWorker_Ticks(t *testing.T) {
	req := require.New(t)
	polls := &countingPolls{}
	worker := NewPollCloserWorker(testLog, polls, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = worker.Run(ctx) }()

	req.Eventually(func() bool {
		polls.mu.Lock()
		defer polls.mu.Unlock()
		return polls.calls >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestProcessStatsWorker_Sample(t *testing.T) {
	req := require.New(t)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	sessions := &fakeSessions{lastActivity: map[domain.ConnectionID]time.Time{"a": time.Now(), "b": time.Now()}}
	worker := NewProcessStatsWorker(testLog, metrics, sessions, time.Hour)
	p, err := process.NewProcess(int32(os.Getpid()))
	req.NoError(err)

	req.NoError(worker.sample(p))

	req.Greater(testutil.ToFloat64(metrics.ProcessRSS), 0.0)
	req.Equal(2.0, testutil.ToFloat64(metrics.SessionsActive))
	req.Equal(7.0, testutil.ToFloat64(metrics.Rooms))
}
