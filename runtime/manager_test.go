package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"society-live/domain"
	"society-live/errors"
	"society-live/mocks"
	"society-live/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var u1 = domain.Identity{UserID: "U1", SocietyID: "S1", Role: domain.RoleResident}

func TestSessionManager_Open_Refused_Credential_Leaves_No_State(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	authenticator := mocks.NewMockIAuthenticator(ctrl)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	registry := NewRegistry()
	manager := NewSessionManager(testLog, registry, authenticator, allowAll{}, metrics, 8, time.Second)
	transport := newFakeTransport()

	authenticator.EXPECT().Authenticate("expired").Return(domain.Identity{}, errors.ErrAuth).Times(1)

	// When connecting with a bad credential
	session, err := manager.Open("expired", transport)

	// Then the connection is refused and nothing was registered
	req.ErrorIs(err, errors.ErrAuth)
	req.Nil(session)
	req.Zero(manager.Count())
	req.Zero(registry.RoomCount())
	req.Equal(1.0, testutil.ToFloat64(metrics.AuthFailures))
}

func TestSessionManager_Open_Joins_Own_Rooms(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	authenticator := mocks.NewMockIAuthenticator(ctrl)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	registry := NewRegistry()
	manager := NewSessionManager(testLog, registry, authenticator, allowAll{}, metrics, 8, time.Second)
	defer manager.CloseAll()

	authenticator.EXPECT().Authenticate("token").Return(u1, nil).Times(1)

	session, err := manager.Open("token", newFakeTransport())

	req.NoError(err)
	req.Equal(u1, session.Identity)
	req.ElementsMatch([]domain.RoomID{domain.SocietyRoom("S1"), domain.UserRoom("U1")}, registry.RoomsOf(session.ID))
	req.Equal(1.0, testutil.ToFloat64(metrics.SessionsActive))
}

func TestSessionManager_Join_Applies_Policy(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	participants := mocks.NewMockParticipantChecker(ctrl)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	registry := NewRegistry()
	policy := NewRoomPolicy(nil, nil, participants)
	manager := NewSessionManager(testLog, registry, nil, policy, metrics, 8, time.Second)
	defer manager.CloseAll()
	session := manager.Attach(u1, newFakeTransport())

	participants.EXPECT().IsParticipant(gomock.Any(), u1, domain.DisputeRoom("D1")).Return(false, nil).Times(1)

	// When joining another user's room or a dispute U1 is not part of
	req.ErrorIs(manager.Join(context.Background(), session.ID, domain.UserRoom("U2")), errors.ErrForbidden)
	req.ErrorIs(manager.Join(context.Background(), session.ID, domain.DisputeRoom("D1")), errors.ErrForbidden)
	req.ErrorIs(manager.Join(context.Background(), session.ID, "garbage"), errors.ErrInvalidInput)

	// Then membership is unchanged
	req.Len(registry.RoomsOf(session.ID), 2)

	// And an unknown connection cannot join
	req.ErrorIs(manager.Join(context.Background(), "nope", domain.SocietyRoom("S1")), errors.ErrUnknownSession)
}

func TestSessionManager_Disconnect_Runs_Once(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 8, time.Second)
	transport := newFakeTransport()
	session := f.manager.Attach(u1, transport)
	req.NoError(f.manager.Join(context.Background(), session.ID, domain.PollRoom("P1")))

	// When disconnect signals arrive concurrently
	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.manager.Disconnect(session.ID) {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Then exactly one performed the cleanup
	req.Equal(1, firsts)
	req.Zero(f.registry.RoomCount())
	req.Empty(f.registry.RoomsOf(session.ID))
	req.True(transport.isClosed())
	req.Zero(testutil.ToFloat64(f.metrics.SessionsActive))
}

func TestSessionManager_Send_Delivers_In_Order(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 64, time.Second)
	transport := newFakeTransport()
	session := f.manager.Attach(u1, transport)

	for _, event := range []string{"a", "b", "c"} {
		f.manager.Send(session.ID, event, nil)
	}

	req.Equal("a", transport.next(t).Event)
	req.Equal("b", transport.next(t).Event)
	req.Equal("c", transport.next(t).Event)
}

func TestSessionManager_Send_To_Gone_Connection_Is_Silent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 8, time.Second)

	req.NotPanics(func() { f.manager.Send("ghost", "poll-updated", nil) })
	req.Equal(1.0, testutil.ToFloat64(f.metrics.Deliveries.WithLabelValues("gone")))
}

func TestSessionManager_Send_To_Closing_Session_Is_Not_An_Overflow(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 8, time.Second)
	session := f.manager.Attach(u1, newFakeTransport())

	// Given a session already closing but not yet removed from the manager
	session.close()

	// When an event is sent to it
	delivered := f.manager.Deliver(session.ID, domain.Envelope{Event: "poll-updated"})

	// Then it counts as gone, not as a full queue
	req.False(delivered)
	req.Equal(1.0, testutil.ToFloat64(f.metrics.Deliveries.WithLabelValues("gone")))
	req.Zero(testutil.ToFloat64(f.metrics.Deliveries.WithLabelValues("overflow")))
}

func TestSession_Enqueue_Results(t *testing.T) {
	req := require.New(t)
	s := newSession("C1", u1, newFakeTransport(), 1, time.Now())

	req.Equal(enqueued, s.enqueue(domain.Envelope{Event: "a"}))
	req.Equal(full, s.enqueue(domain.Envelope{Event: "b"}))
	s.close()
	req.Equal(closing, s.enqueue(domain.Envelope{Event: "c"}))
}

func TestSessionManager_Stuck_Client_Is_Dropped(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 1, 20*time.Millisecond)
	transport := newFakeTransport()
	transport.stuck = true
	session := f.manager.Attach(u1, transport)

	// When events keep coming to a client that never accepts a write
	for i := 0; i < 5; i++ {
		f.manager.Send(session.ID, "poll-updated", i)
	}

	// Then the connection is eventually disconnected and removed from its rooms
	req.Eventually(func() bool {
		_, alive := f.manager.Session(session.ID)
		return !alive && transport.isClosed()
	}, 2*time.Second, 10*time.Millisecond)
	req.Empty(f.registry.RoomsOf(session.ID))
}

func TestSessionManager_IdleSince(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 8, time.Second)
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	f.manager.now = func() time.Time { return start }
	quiet := f.manager.Attach(u1, newFakeTransport())
	busy := f.manager.Attach(domain.Identity{UserID: "U2", SocietyID: "S1"}, newFakeTransport())

	f.manager.now = func() time.Time { return start.Add(10 * time.Minute) }
	f.manager.Touch(busy.ID)

	idle := f.manager.IdleSince(start.Add(5 * time.Minute))

	req.Equal([]domain.ConnectionID{quiet.ID}, idle)
}
