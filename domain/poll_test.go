package domain

import (
	"testing"
	"time"

	"society-live/errors"

	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newPoll(allowMultiple bool) Poll {
	return Poll{
		ID:                 "P1",
		SocietyID:          "S1",
		Question:           "Paint the lobby?",
		Options:            []Option{{Text: "A"}, {Text: "B"}},
		StartDate:          now.Add(-time.Hour),
		EndDate:            now.Add(time.Hour),
		AllowMultipleVotes: allowMultiple,
	}
}

func TestPoll_IsActive(t *testing.T) {
	req := require.New(t)
	poll := newPoll(false)

	req.True(poll.IsActive(now))
	req.True(poll.IsActive(poll.StartDate))
	req.True(poll.IsActive(poll.EndDate))
	req.False(poll.IsActive(poll.StartDate.Add(-time.Second)))
	req.False(poll.IsActive(poll.EndDate.Add(time.Second)))

	// When the poll is deactivated manually
	req.True(poll.Deactivate())
	req.False(poll.Deactivate())

	// Then it is inactive even inside its window
	req.False(poll.IsActive(now))
}

func TestPoll_RecordVote_SingleVote(t *testing.T) {
	req := require.New(t)
	poll := newPoll(false)
	u1 := Identity{UserID: "U1", SocietyID: "S1"}

	// Given U1 votes option 0
	req.NoError(poll.RecordVote(u1, 0, now))
	req.Equal(1, poll.Options[0].Votes())
	req.Equal(0, poll.Options[1].Votes())

	// When U1 votes again on option 1
	err := poll.RecordVote(u1, 1, now)

	// Then the vote is rejected and the tally is unchanged
	req.ErrorIs(err, errors.ErrDuplicateVote)
	req.Equal(1, poll.Options[0].Votes())
	req.Equal(0, poll.Options[1].Votes())
	req.Equal(1, poll.TotalVotes())
	req.Equal(uint64(1), poll.Version)
}

func TestPoll_RecordVote_MultipleVotes(t *testing.T) {
	req := require.New(t)
	poll := newPoll(true)
	u1 := Identity{UserID: "U1", SocietyID: "S1"}

	req.NoError(poll.RecordVote(u1, 0, now))
	req.NoError(poll.RecordVote(u1, 1, now))

	// Same option twice is still a duplicate: voter sets are sets
	req.ErrorIs(poll.RecordVote(u1, 1, now), errors.ErrDuplicateVote)
	req.Equal(2, poll.TotalVotes())
}

func TestPoll_RecordVote_PreconditionOrder(t *testing.T) {
	outsider := Identity{UserID: "U9", SocietyID: "S2"}
	member := Identity{UserID: "U1", SocietyID: "S1"}

	tests := []struct {
		name  string
		voter Identity
		index int
		at    time.Time
		want  error
	}{
		{"inactive wins over everything", outsider, 7, now.Add(2 * time.Hour), errors.ErrInactive},
		{"society checked before bounds", outsider, 7, now, errors.ErrForbidden},
		{"bounds", member, 7, now, errors.ErrInvalidInput},
		{"negative index", member, -1, now, errors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			poll := newPoll(false)
			req.ErrorIs(poll.RecordVote(tt.voter, tt.index, tt.at), tt.want)
			req.Zero(poll.TotalVotes())
		})
	}
}

func TestPoll_View(t *testing.T) {
	req := require.New(t)
	poll := newPoll(false)
	req.NoError(poll.RecordVote(Identity{UserID: "U1", SocietyID: "S1"}, 1, now))

	view := poll.View(now)

	req.True(view.Active)
	req.Equal(1, view.TotalVotes)
	req.Equal([]OptionView{{Index: 0, Text: "A", Votes: 0}, {Index: 1, Text: "B", Votes: 1}}, view.Options)
}

func TestPoll_Ended_Announced_Once(t *testing.T) {
	req := require.New(t)
	poll := newPoll(false)
	after := poll.EndDate.Add(time.Minute)

	req.False(poll.Ended(now))
	req.True(poll.Ended(after))

	req.True(poll.AnnounceClosed())
	req.False(poll.AnnounceClosed())
	req.False(poll.Ended(after))
}

func TestPoll_Deactivate_Counts_As_Announced(t *testing.T) {
	req := require.New(t)
	poll := newPoll(false)

	req.True(poll.Deactivate())

	req.False(poll.Ended(poll.EndDate.Add(time.Minute)))
}
