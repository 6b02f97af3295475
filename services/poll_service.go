package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"society-live/auth"
	"society-live/contract"
	"society-live/domain"
	"society-live/errors"
	"society-live/ids"
	"society-live/infrastructure/storage"
	"society-live/observability"
	"society-live/runtime"

	"github.com/samber/lo"
)

type IPollService interface {
	CreatePoll(ctx context.Context, cmd CreatePollCommand) (domain.PollView, error)
	CastVote(ctx context.Context, cmd CastVoteCommand) (domain.PollView, error)
	GetPoll(ctx context.Context, pollID string, requester domain.Identity) (domain.PollView, error)
	ClosePoll(ctx context.Context, pollID string, requester domain.Identity) (domain.PollView, error)
}

type CreatePollCommand struct {
	Creator            domain.Identity `validate:"required"`
	Question           string          `json:"question" validate:"required,max=500"`
	Options            []string        `json:"options" validate:"min=2,max=20,dive,required,max=200"`
	StartDate          time.Time       `json:"startDate" validate:"required"`
	EndDate            time.Time       `json:"endDate" validate:"required,gtfield=StartDate"`
	AllowMultipleVotes bool            `json:"allowMultipleVotes"`
}

// CastVoteCommand carries no validate tags on OptionIndex: bounds are checked
// by the poll itself, after existence, activity and membership.
type CastVoteCommand struct {
	PollID      string          `validate:"required"`
	Voter       domain.Identity `validate:"required"`
	OptionIndex int             `json:"optionIndex"`
}

type PollService struct {
	log       *slog.Logger
	repo      storage.IPollRepository
	router    contract.IRouter
	sequencer *runtime.Sequencer
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewPollService(log *slog.Logger, repo storage.IPollRepository, router contract.IRouter,
	sequencer *runtime.Sequencer, metrics *observability.Metrics, now func() time.Time) *PollService {
	if now == nil {
		now = time.Now
	}
	return &PollService{
		log:       log,
		repo:      repo,
		router:    router,
		sequencer: sequencer,
		metrics:   metrics,
		now:       now,
	}
}

func (s *PollService) CreatePoll(ctx context.Context, cmd CreatePollCommand) (domain.PollView, error) {
	if err := auth.ValidateStruct(cmd); err != nil {
		return domain.PollView{}, err
	}
	if !cmd.Creator.IsManager() {
		return domain.PollView{}, fmt.Errorf("%w: only committee members create polls", errors.ErrForbidden)
	}
	now := s.now()
	poll := domain.Poll{
		ID:        ids.New(),
		SocietyID: cmd.Creator.SocietyID,
		Question:  cmd.Question,
		Options: lo.Map(cmd.Options, func(text string, _ int) domain.Option {
			return domain.Option{Text: text, Voters: []string{}}
		}),
		StartDate:          cmd.StartDate.UTC(),
		EndDate:            cmd.EndDate.UTC(),
		AllowMultipleVotes: cmd.AllowMultipleVotes,
		CreatedBy:          cmd.Creator.UserID,
		CreatedAt:          now,
	}
	if err := s.repo.CreatePoll(ctx, poll); err != nil {
		return domain.PollView{}, err
	}
	s.log.Info("Poll created", "poll_id", poll.ID, "society_id", poll.SocietyID)
	return poll.View(now), nil
}

// CastVote records the vote and broadcasts the refreshed tally. The
// has-voted check and the write run inside one store transaction, so two
// concurrent votes of the same voter never both succeed. The stripe of the
// poll is held until the broadcast is enqueued: subscribers see tallies in
// commit order.
func (s *PollService) CastVote(ctx context.Context, cmd CastVoteCommand) (domain.PollView, error) {
	if err := auth.ValidateStruct(cmd); err != nil {
		s.metrics.Votes.WithLabelValues(observability.Result(err)).Inc()
		return domain.PollView{}, err
	}
	unlock := s.sequencer.Lock(string(domain.PollRoom(cmd.PollID)))
	defer unlock()

	now := s.now()
	poll, err := s.repo.Update(ctx, cmd.PollID, func(p *domain.Poll) error {
		return p.RecordVote(cmd.Voter, cmd.OptionIndex, now)
	})
	s.metrics.Votes.WithLabelValues(observability.Result(err)).Inc()
	if err != nil {
		s.log.Debug("Vote refused", "poll_id", cmd.PollID, "user_id", cmd.Voter.UserID, "error", err)
		return domain.PollView{}, err
	}

	view := poll.View(now)
	s.publish(ctx, poll, domain.EventPollUpdated, view)
	return view, nil
}

func (s *PollService) GetPoll(ctx context.Context, pollID string, requester domain.Identity) (domain.PollView, error) {
	poll, err := s.repo.GetPoll(ctx, pollID)
	if err != nil {
		return domain.PollView{}, err
	}
	if poll.SocietyID != requester.SocietyID {
		return domain.PollView{}, fmt.Errorf("%w: poll %s belongs to another society", errors.ErrForbidden, pollID)
	}
	return poll.View(s.now()), nil
}

// ClosePoll deactivates the poll before its end date. Closing twice is a no-op
// and broadcasts nothing the second time.
func (s *PollService) ClosePoll(ctx context.Context, pollID string, requester domain.Identity) (domain.PollView, error) {
	unlock := s.sequencer.Lock(string(domain.PollRoom(pollID)))
	defer unlock()

	changed := false
	poll, err := s.repo.Update(ctx, pollID, func(p *domain.Poll) error {
		if p.SocietyID != requester.SocietyID || !requester.IsManager() {
			return fmt.Errorf("%w: %s cannot close poll %s", errors.ErrForbidden, requester.UserID, pollID)
		}
		changed = p.Deactivate()
		return nil
	})
	if err != nil {
		return domain.PollView{}, err
	}
	view := poll.View(s.now())
	if changed {
		s.log.Info("Poll closed", "poll_id", pollID, "by", requester.UserID)
		s.publish(ctx, poll, domain.EventPollClosed, view)
	}
	return view, nil
}

// publish fans the view out to the poll room and the society room. The
// mutation is already committed: cancellation of the caller must not stop it.
func (s *PollService) publish(ctx context.Context, poll domain.Poll, event string, view domain.PollView) {
	ctx = context.WithoutCancel(ctx)
	s.router.Broadcast(ctx, domain.PollRoom(poll.ID), event, view)
	s.router.Broadcast(ctx, domain.SocietyRoom(poll.SocietyID), event, view)
}

// AnnounceEnded broadcasts poll-closed for every poll whose window passed
// since the last call. Each poll is announced once per store: the flag is
// flipped in the same transaction that decides to announce.
func (s *PollService) AnnounceEnded(ctx context.Context) (int, error) {
	polls, err := s.repo.ListPolls(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	announced := 0
	for _, candidate := range polls {
		if !candidate.Ended(now) {
			continue
		}
		ok, err := s.announceEnded(ctx, candidate.ID, now)
		if err != nil {
			s.log.Warn("Poll end announcement failed", "poll_id", candidate.ID, "error", err)
			continue
		}
		if ok {
			announced++
		}
	}
	return announced, nil
}

func (s *PollService) announceEnded(ctx context.Context, pollID string, now time.Time) (bool, error) {
	unlock := s.sequencer.Lock(string(domain.PollRoom(pollID)))
	defer unlock()

	changed := false
	poll, err := s.repo.Update(ctx, pollID, func(p *domain.Poll) error {
		changed = p.Ended(now) && p.AnnounceClosed()
		return nil
	})
	if err != nil || !changed {
		return false, err
	}
	s.log.Info("Poll ended", "poll_id", pollID)
	s.publish(ctx, poll, domain.EventPollClosed, poll.View(now))
	return true, nil
}
