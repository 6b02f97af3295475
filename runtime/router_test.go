package runtime

import (
	"context"
	"testing"
	"time"

	"society-live/domain"

	"github.com/stretchr/testify/require"
)

func TestRouter_Broadcast_Stops_After_Disconnect(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 16, time.Second)
	ctx := context.Background()
	transport := newFakeTransport()

	// Given C1 joined poll:P1 and society:S1
	c1 := f.manager.Attach(u1, transport)
	req.NoError(f.manager.Join(ctx, c1.ID, domain.PollRoom("P1")))

	// When a vote is broadcast to poll:P1
	f.router.Broadcast(ctx, domain.PollRoom("P1"), domain.EventPollUpdated, map[string]int{"A": 1})

	// Then C1 receives it
	env := transport.next(t)
	req.Equal(domain.EventPollUpdated, env.Event)
	req.Equal(domain.PollRoom("P1"), env.Room)

	// When C1 disconnects and another vote is broadcast
	req.True(f.manager.Disconnect(c1.ID))
	f.router.Broadcast(ctx, domain.PollRoom("P1"), domain.EventPollUpdated, map[string]int{"A": 2})

	// Then nothing more reaches C1
	transport.nothing(t)
	req.Nil(f.registry.Members(domain.PollRoom("P1")))
}

func TestRouter_Broadcast_Reaches_Only_Room_Members(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 16, time.Second)
	ctx := context.Background()
	inRoom := newFakeTransport()
	outOfRoom := newFakeTransport()
	member := f.manager.Attach(u1, inRoom)
	f.manager.Attach(domain.Identity{UserID: "U2", SocietyID: "S2"}, outOfRoom)
	req.NoError(f.manager.Join(ctx, member.ID, domain.BookingResourceRoom("R1")))

	f.router.Broadcast(ctx, domain.BookingResourceRoom("R1"), domain.EventNewBooking, nil)

	req.Equal(domain.EventNewBooking, inRoom.next(t).Event)
	outOfRoom.nothing(t)
}

func TestRouter_Stuck_Client_Does_Not_Delay_Others(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 8, 500*time.Millisecond)
	ctx := context.Background()
	stuck := newFakeTransport()
	stuck.stuck = true
	healthy := newFakeTransport()
	f.manager.Attach(domain.Identity{UserID: "U9", SocietyID: "S1"}, stuck)
	f.manager.Attach(u1, healthy)

	// When several events are broadcast to the society
	start := time.Now()
	for _, event := range []string{"e1", "e2", "e3", "e4"} {
		f.router.Broadcast(ctx, domain.SocietyRoom("S1"), event, nil)
	}

	// Then broadcasting never waited on the stuck client
	req.Less(time.Since(start), 250*time.Millisecond)

	// And the healthy client got every event in order
	for _, event := range []string{"e1", "e2", "e3", "e4"} {
		req.Equal(event, healthy.next(t).Event)
	}
}

func TestRouter_Arbitrary_Event_Names(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 16, time.Second)
	transport := newFakeTransport()
	c1 := f.manager.Attach(u1, transport)
	req.NoError(f.manager.Join(context.Background(), c1.ID, domain.DocumentRoom("DOC1")))

	f.router.Broadcast(context.Background(), domain.DocumentRoom("DOC1"), "custom-event-from-crud", nil)
	f.router.Broadcast(context.Background(), domain.DocumentRoom("DOC1"), "", nil)

	req.Equal("custom-event-from-crud", transport.next(t).Event)
	transport.nothing(t)
}
