package domain

import (
	"fmt"
	"slices"
	"time"

	"society-live/errors"
)

// Option is one answer of a Poll. Its vote count is the size of its voter set.
type Option struct {
	Text   string   `json:"text"`
	Voters []string `json:"voters"`
}

func (o Option) Votes() int { return len(o.Voters) }

func (o Option) HasVoter(userID string) bool {
	return slices.Contains(o.Voters, userID)
}

// Poll is the aggregate guarded by the vote path.
// Mutated only through RecordVote, Deactivate and AnnounceClosed.
type Poll struct {
	ID                 string    `json:"id"`
	SocietyID          string    `json:"societyId"`
	Question           string    `json:"question"`
	Options            []Option  `json:"options"`
	StartDate          time.Time `json:"startDate"`
	EndDate            time.Time `json:"endDate"`
	Deactivated        bool      `json:"deactivated"`
	AllowMultipleVotes bool      `json:"allowMultipleVotes"`
	CreatedBy          string    `json:"createdBy"`
	CreatedAt          time.Time `json:"createdAt"`
	Version            uint64    `json:"version"`
	// ClosedAnnounced is set once poll-closed has been broadcast.
	ClosedAnnounced bool `json:"closedAnnounced,omitempty"`
}

// IsActive is a pure function of the clock: no stored flag can go stale.
func (p Poll) IsActive(now time.Time) bool {
	return !p.Deactivated && !now.Before(p.StartDate) && !now.After(p.EndDate)
}

func (p Poll) HasVoted(userID string) bool {
	for _, o := range p.Options {
		if o.HasVoter(userID) {
			return true
		}
	}
	return false
}

func (p Poll) TotalVotes() int {
	total := 0
	for _, o := range p.Options {
		total += o.Votes()
	}
	return total
}

// RecordVote checks the vote preconditions in order and records the vote.
// The caller must run it inside an atomic update of the aggregate.
func (p *Poll) RecordVote(voter Identity, optionIndex int, now time.Time) error {
	if !p.IsActive(now) {
		return fmt.Errorf("%w: poll %s", errors.ErrInactive, p.ID)
	}
	if voter.SocietyID != p.SocietyID {
		return fmt.Errorf("%w: voter %s is not a member of society %s", errors.ErrForbidden, voter.UserID, p.SocietyID)
	}
	if optionIndex < 0 || optionIndex >= len(p.Options) {
		return fmt.Errorf("%w: option %d out of range [0,%d)", errors.ErrInvalidInput, optionIndex, len(p.Options))
	}
	target := &p.Options[optionIndex]
	if target.HasVoter(voter.UserID) || (!p.AllowMultipleVotes && p.HasVoted(voter.UserID)) {
		return fmt.Errorf("%w: voter %s on poll %s", errors.ErrDuplicateVote, voter.UserID, p.ID)
	}
	target.Voters = append(target.Voters, voter.UserID)
	p.Version++
	return nil
}

// Deactivate closes the poll manually. Returns false when it was already closed.
func (p *Poll) Deactivate() bool {
	if p.Deactivated {
		return false
	}
	p.Deactivated = true
	p.ClosedAnnounced = true
	p.Version++
	return true
}

// Ended reports whether the voting window is over and no close was announced yet.
func (p Poll) Ended(now time.Time) bool {
	return now.After(p.EndDate) && !p.ClosedAnnounced
}

// AnnounceClosed flags the end of the poll as broadcast.
// Returns false when it already was.
func (p *Poll) AnnounceClosed() bool {
	if p.ClosedAnnounced {
		return false
	}
	p.ClosedAnnounced = true
	return true
}

type OptionView struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// PollView is the tally pushed to clients. Voter identities are not exposed.
type PollView struct {
	ID                 string       `json:"id"`
	SocietyID          string       `json:"societyId"`
	Question           string       `json:"question"`
	Options            []OptionView `json:"options"`
	TotalVotes         int          `json:"totalVotes"`
	Active             bool         `json:"active"`
	AllowMultipleVotes bool         `json:"allowMultipleVotes"`
	StartDate          time.Time    `json:"startDate"`
	EndDate            time.Time    `json:"endDate"`
	Version            uint64       `json:"version"`
}

func (p Poll) View(now time.Time) PollView {
	options := make([]OptionView, len(p.Options))
	for i, o := range p.Options {
		options[i] = OptionView{Index: i, Text: o.Text, Votes: o.Votes()}
	}
	return PollView{
		ID:                 p.ID,
		SocietyID:          p.SocietyID,
		Question:           p.Question,
		Options:            options,
		TotalVotes:         p.TotalVotes(),
		Active:             p.IsActive(now),
		AllowMultipleVotes: p.AllowMultipleVotes,
		StartDate:          p.StartDate,
		EndDate:            p.EndDate,
		Version:            p.Version,
	}
}
