package runtime

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"society-live/domain"
	"society-live/observability"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var testLog = logs.GetLoggerFromLevel(slog.LevelError)

// fakeTransport records what the writer goroutine sends. When stuck is set,
// Write blocks until its deadline.
type fakeTransport struct {
	mu       sync.Mutex
	received []domain.Envelope
	stuck    bool
	closed   bool
	writes   chan domain.Envelope
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{writes: make(chan domain.Envelope, 256)}
}

func (f *fakeTransport) Write(ctx context.Context, env domain.Envelope) error {
	f.mu.Lock()
	stuck := f.stuck
	f.mu.Unlock()
	if stuck {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	f.received = append(f.received, env)
	f.mu.Unlock()
	f.writes <- env
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.received))
	for i, env := range f.received {
		out[i] = env.Event
	}
	return out
}

// next waits for the next written envelope.
func (f *fakeTransport) next(t *testing.T) domain.Envelope {
	t.Helper()
	select {
	case env := <-f.writes:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope written")
		return domain.Envelope{}
	}
}

// nothing asserts no envelope arrives for a short while.
func (f *fakeTransport) nothing(t *testing.T) {
	t.Helper()
	select {
	case env := <-f.writes:
		t.Fatalf("unexpected envelope %s", env.Event)
	case <-time.After(50 * time.Millisecond):
	}
}

type allowAll struct{}

func (allowAll) Authorize(context.Context, domain.Identity, domain.RoomID) error { return nil }

type fixture struct {
	registry *Registry
	manager  *SessionManager
	router   *Router
	metrics  *observability.Metrics
}

func newFixture(t *testing.T, queueSize int, sendTimeout time.Duration) fixture {
	t.Helper()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	registry := NewRegistry()
	manager := NewSessionManager(testLog, registry, nil, allowAll{}, metrics, queueSize, sendTimeout)
	router := NewRouter(testLog, registry, manager, NewLocalBackbone(), metrics)
	require.NoError(t, router.Start())
	t.Cleanup(manager.CloseAll)
	return fixture{registry: registry, manager: manager, router: router, metrics: metrics}
}
