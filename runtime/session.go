package runtime

import (
	"sync"
	"sync/atomic"
	"time"

	"society-live/contract"
	"society-live/domain"
)

// Session is one connected client. The outbound queue is drained by a single
// writer goroutine, which keeps per-connection delivery in enqueue order.
// outbound is never closed so concurrent broadcasters can't panic on it.
type Session struct {
	ID          domain.ConnectionID
	Identity    domain.Identity
	ConnectedAt time.Time

	transport    contract.Transport
	outbound     chan domain.Envelope
	done         chan struct{}
	closeOnce    sync.Once
	lastActivity atomic.Int64
}

func newSession(id domain.ConnectionID, identity domain.Identity,
	transport contract.Transport, queueSize int, now time.Time) *Session {
	if queueSize <= 0 {
		queueSize = 64
	}
	s := &Session{
		ID:          id,
		Identity:    identity,
		ConnectedAt: now,
		transport:   transport,
		outbound:    make(chan domain.Envelope, queueSize),
		done:        make(chan struct{}),
	}
	s.lastActivity.Store(now.UnixNano())
	return s
}

type enqueueResult int

const (
	enqueued enqueueResult = iota
	closing
	full
)

// enqueue never blocks: a full queue means the client is not keeping up.
func (s *Session) enqueue(env domain.Envelope) enqueueResult {
	select {
	case <-s.done:
		return closing
	default:
	}
	select {
	case s.outbound <- env:
		return enqueued
	default:
		return full
	}
}

func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Touch(now time.Time) { s.lastActivity.Store(now.UnixNano()) }

func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// close is idempotent.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.transport.Close()
	})
}
