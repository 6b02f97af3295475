package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"society-live/domain"
	"society-live/errors"

	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newPoll(id string, multiple bool) domain.Poll {
	return domain.Poll{
		ID:                 id,
		SocietyID:          "S1",
		Question:           "Paint the gate?",
		Options:            []domain.Option{{Text: "Blue"}, {Text: "Green"}},
		StartDate:          now.Add(-time.Hour),
		EndDate:            now.Add(time.Hour),
		AllowMultipleVotes: multiple,
	}
}

func Test_PollRepository_Create_And_Get(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewPollRepository(openTestDB(t))

	// Given a stored poll
	req.NoError(repo.CreatePoll(ctx, newPoll("P1", false)))

	// When reading it back
	poll, err := repo.GetPoll(ctx, "P1")

	// Then it is the same poll
	req.NoError(err)
	req.Equal("Paint the gate?", poll.Question)
	req.Len(poll.Options, 2)

	// And creating it twice is rejected
	req.ErrorIs(repo.CreatePoll(ctx, newPoll("P1", false)), errors.ErrInvalidInput)
}

func Test_PollRepository_Get_Unknown(t *testing.T) {
	req := require.New(t)
	repo := NewPollRepository(openTestDB(t))

	_, err := repo.GetPoll(context.Background(), "missing")

	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_PollRepository_Update_Rejected_Mutation_Writes_Nothing(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewPollRepository(openTestDB(t))
	req.NoError(repo.CreatePoll(ctx, newPoll("P1", false)))
	voter := domain.Identity{UserID: "U1", SocietyID: "S1", Role: domain.RoleResident}

	// Given a first vote
	_, err := repo.Update(ctx, "P1", func(p *domain.Poll) error { return p.RecordVote(voter, 0, now) })
	req.NoError(err)

	// When the same voter votes again
	_, err = repo.Update(ctx, "P1", func(p *domain.Poll) error { return p.RecordVote(voter, 1, now) })

	// Then the second vote is refused and the stored tally is unchanged
	req.ErrorIs(err, errors.ErrDuplicateVote)
	poll, err := repo.GetPoll(ctx, "P1")
	req.NoError(err)
	req.Equal(1, poll.Options[0].Votes())
	req.Equal(0, poll.Options[1].Votes())
}

func Test_PollRepository_Concurrent_Same_Voter_Only_One_Succeeds(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewPollRepository(openTestDB(t))
	req.NoError(repo.CreatePoll(ctx, newPoll("P1", false)))
	voter := domain.Identity{UserID: "U1", SocietyID: "S1", Role: domain.RoleResident}

	// Given many concurrent votes from the same voter
	const attempts = 20
	var wg sync.WaitGroup
	var successes, duplicates atomic.Int32
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(option int) {
			defer wg.Done()
			_, err := repo.Update(ctx, "P1", func(p *domain.Poll) error { return p.RecordVote(voter, option, now) })
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, errors.ErrDuplicateVote):
				duplicates.Add(1)
			}
		}(i % 2)
	}
	wg.Wait()

	// Then exactly one is recorded
	req.Equal(int32(1), successes.Load())
	req.Equal(int32(attempts-1), duplicates.Load())
	poll, err := repo.GetPoll(ctx, "P1")
	req.NoError(err)
	req.Equal(1, poll.TotalVotes())
}

func Test_PollRepository_Concurrent_Distinct_Voters_All_Counted(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewPollRepository(openTestDB(t))
	req.NoError(repo.CreatePoll(ctx, newPoll("P1", false)))

	const voters = 30
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			voter := domain.Identity{UserID: string(rune('a' + i)), SocietyID: "S1"}
			if _, err := repo.Update(ctx, "P1", func(p *domain.Poll) error { return p.RecordVote(voter, 0, now) }); err != nil {
				failures.Add(1)
			}
		}(i)
	}
	wg.Wait()
	req.Zero(failures.Load())

	poll, err := repo.GetPoll(ctx, "P1")
	req.NoError(err)
	req.Equal(voters, poll.Options[0].Votes())
}

func Test_PollRepository_ListPolls(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewPollRepository(openTestDB(t))
	req.NoError(repo.CreatePoll(ctx, newPoll("P1", false)))
	req.NoError(repo.CreatePoll(ctx, newPoll("P2", true)))

	polls, err := repo.ListPolls(ctx)

	req.NoError(err)
	req.Len(polls, 2)
}
