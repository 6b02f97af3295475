package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"society-live/contract"
	"society-live/domain"
	"society-live/errors"
	"society-live/observability"

	"github.com/google/uuid"
)

const defaultSendTimeout = 5 * time.Second

// RoomAuthorizer decides whether an identity may join a room.
type RoomAuthorizer interface {
	Authorize(ctx context.Context, identity domain.Identity, roomID domain.RoomID) error
}

// SessionManager owns the lifecycle of client connections: authentication,
// room membership, outbound delivery and disconnect cleanup.
type SessionManager struct {
	mu            sync.RWMutex
	sessions      map[domain.ConnectionID]*Session
	log           *slog.Logger
	registry      contract.IRegistry
	authenticator contract.IAuthenticator
	authorizer    RoomAuthorizer
	metrics       *observability.Metrics
	queueSize     int
	sendTimeout   time.Duration
	now           func() time.Time
}

func NewSessionManager(log *slog.Logger, registry contract.IRegistry,
	authenticator contract.IAuthenticator, authorizer RoomAuthorizer,
	metrics *observability.Metrics, queueSize int, sendTimeout time.Duration) *SessionManager {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &SessionManager{
		sessions:      make(map[domain.ConnectionID]*Session),
		log:           log,
		registry:      registry,
		authenticator: authenticator,
		authorizer:    authorizer,
		metrics:       metrics,
		queueSize:     queueSize,
		sendTimeout:   sendTimeout,
		now:           time.Now,
	}
}

// Authenticate resolves a credential before any connection state exists.
func (m *SessionManager) Authenticate(credential string) (domain.Identity, error) {
	identity, err := m.authenticator.Authenticate(credential)
	if err != nil {
		m.metrics.AuthFailures.Inc()
		return domain.Identity{}, err
	}
	return identity, nil
}

// Open authenticates the credential then attaches the transport.
// A refused credential leaves no trace in the registry.
func (m *SessionManager) Open(credential string, transport contract.Transport) (*Session, error) {
	identity, err := m.Authenticate(credential)
	if err != nil {
		return nil, err
	}
	return m.Attach(identity, transport), nil
}

// Attach registers an already authenticated connection, joins its society
// and user rooms and starts its writer.
func (m *SessionManager) Attach(identity domain.Identity, transport contract.Transport) *Session {
	s := newSession(domain.ConnectionID(uuid.NewString()), identity, transport, m.queueSize, m.now())

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.registry.Join(s.ID, domain.SocietyRoom(identity.SocietyID))
	m.registry.Join(s.ID, domain.UserRoom(identity.UserID))
	m.mu.Unlock()

	m.metrics.SessionsActive.Inc()
	m.metrics.Rooms.Set(float64(m.registry.RoomCount()))
	m.log.Info("Connection opened", "conn_id", s.ID, "user_id", identity.UserID, "society_id", identity.SocietyID)

	go m.writeLoop(s)
	return s
}

// Join checks the room policy then adds the connection to the room. Idempotent.
func (m *SessionManager) Join(ctx context.Context, connID domain.ConnectionID, roomID domain.RoomID) error {
	s, ok := m.Session(connID)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrUnknownSession, connID)
	}
	if err := m.authorizer.Authorize(ctx, s.Identity, roomID); err != nil {
		return err
	}

	// Holding the read lock keeps a concurrent Disconnect from interleaving
	// and leaving an orphan membership behind.
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[connID]; !ok {
		return fmt.Errorf("%w: %s", errors.ErrUnknownSession, connID)
	}
	if m.registry.Join(connID, roomID) {
		m.metrics.Rooms.Set(float64(m.registry.RoomCount()))
		m.log.Debug("Room joined", "conn_id", connID, "room", roomID)
	}
	return nil
}

// Leave is idempotent.
func (m *SessionManager) Leave(connID domain.ConnectionID, roomID domain.RoomID) bool {
	left := m.registry.Leave(connID, roomID)
	if left {
		m.metrics.Rooms.Set(float64(m.registry.RoomCount()))
		m.log.Debug("Room left", "conn_id", connID, "room", roomID)
	}
	return left
}

// Disconnect removes the connection from every room and frees it.
// Only the first call for a connection does anything; later calls return false.
func (m *SessionManager) Disconnect(connID domain.ConnectionID) bool {
	m.mu.Lock()
	s, ok := m.sessions[connID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.sessions, connID)
	rooms := m.registry.RemoveConnection(connID)
	m.mu.Unlock()

	s.close()
	m.metrics.SessionsActive.Dec()
	m.metrics.Rooms.Set(float64(m.registry.RoomCount()))
	m.log.Info("Connection closed", "conn_id", connID, "user_id", s.Identity.UserID, "rooms", len(rooms))
	return true
}

// Send is best-effort and never reports failure to the caller.
func (m *SessionManager) Send(connID domain.ConnectionID, event string, payload any) {
	m.Deliver(connID, domain.Envelope{Event: event, Payload: payload})
}

// Deliver enqueues env without blocking. A connection that cannot take it is
// dropped asynchronously.
func (m *SessionManager) Deliver(connID domain.ConnectionID, env domain.Envelope) bool {
	s, ok := m.Session(connID)
	if !ok {
		m.metrics.Deliveries.WithLabelValues("gone").Inc()
		return false
	}
	switch s.enqueue(env) {
	case enqueued:
		m.metrics.Deliveries.WithLabelValues("queued").Inc()
		return true
	case closing:
		m.metrics.Deliveries.WithLabelValues("gone").Inc()
		return false
	default:
		m.metrics.Deliveries.WithLabelValues("overflow").Inc()
		m.log.Warn("Send queue full, dropping connection",
			"conn_id", connID, "event", env.Event, "error", errors.ErrDeliveryFailure)
		go m.Disconnect(connID)
		return false
	}
}

func (m *SessionManager) writeLoop(s *Session) {
	for {
		select {
		case <-s.done:
			return
		case env := <-s.outbound:
			ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
			err := s.transport.Write(ctx, env)
			cancel()
			if err != nil {
				m.metrics.Deliveries.WithLabelValues("failed").Inc()
				m.log.Warn("Delivery failed, dropping connection",
					"conn_id", s.ID, "event", env.Event, "error", fmt.Errorf("%w: %v", errors.ErrDeliveryFailure, err))
				m.Disconnect(s.ID)
				return
			}
			m.metrics.Deliveries.WithLabelValues("delivered").Inc()
		}
	}
}

func (m *SessionManager) Session(connID domain.ConnectionID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[connID]
	return s, ok
}

// Touch records client activity on the connection.
func (m *SessionManager) Touch(connID domain.ConnectionID) {
	if s, ok := m.Session(connID); ok {
		s.Touch(m.now())
	}
}

// IdleSince lists connections whose last activity is before cutoff.
func (m *SessionManager) IdleSince(cutoff time.Time) []domain.ConnectionID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var idle []domain.ConnectionID
	for id, s := range m.sessions {
		if s.LastActivity().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	return idle
}

func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *SessionManager) RoomCount() int { return m.registry.RoomCount() }

// CloseAll disconnects every session, used on shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.RLock()
	ids := make([]domain.ConnectionID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		m.Disconnect(id)
	}
}
