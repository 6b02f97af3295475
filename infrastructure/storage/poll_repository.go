package storage

import (
	"context"
	"fmt"

	"society-live/domain"
	"society-live/errors"

	"github.com/dgraph-io/badger/v4"
)

const pollPrefix = "poll:"

type IPollRepository interface {
	CreatePoll(ctx context.Context, poll domain.Poll) error
	GetPoll(ctx context.Context, pollID string) (domain.Poll, error)
	Update(ctx context.Context, pollID string, mutate func(poll *domain.Poll) error) (domain.Poll, error)
	ListPolls(ctx context.Context) ([]domain.Poll, error)
}

type PollRepository struct {
	db *badger.DB
}

func NewPollRepository(db *badger.DB) *PollRepository {
	return &PollRepository{db: db}
}

func pollKey(pollID string) string { return pollPrefix + pollID }

func (r *PollRepository) CreatePoll(ctx context.Context, poll domain.Poll) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return update(r.db, func(txn *badger.Txn) error {
		found, err := exists(txn, pollKey(poll.ID))
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: poll %s already exists", errors.ErrInvalidInput, poll.ID)
		}
		return setJSON(txn, pollKey(poll.ID), poll)
	})
}

func (r *PollRepository) GetPoll(ctx context.Context, pollID string) (domain.Poll, error) {
	if err := ctx.Err(); err != nil {
		return domain.Poll{}, err
	}
	var poll domain.Poll
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, pollKey(pollID), &poll)
	})
	return poll, err
}

// Update applies mutate to the current poll and writes the result in the same
// transaction. When mutate returns an error nothing is written. A concurrent
// commit on the same poll makes the transaction start over, so mutate always
// decides on the latest committed state.
func (r *PollRepository) Update(ctx context.Context, pollID string,
	mutate func(poll *domain.Poll) error) (domain.Poll, error) {
	if err := ctx.Err(); err != nil {
		return domain.Poll{}, err
	}
	var result domain.Poll
	err := update(r.db, func(txn *badger.Txn) error {
		var poll domain.Poll
		if err := getJSON(txn, pollKey(pollID), &poll); err != nil {
			return err
		}
		if err := mutate(&poll); err != nil {
			return err
		}
		result = poll
		return setJSON(txn, pollKey(pollID), poll)
	})
	if err != nil {
		return domain.Poll{}, err
	}
	return result, nil
}

func (r *PollRepository) ListPolls(ctx context.Context) ([]domain.Poll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var polls []domain.Poll
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		polls, err = scanJSON[domain.Poll](txn, pollPrefix, nil)
		return err
	})
	return polls, err
}
