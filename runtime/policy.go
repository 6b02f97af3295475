package runtime

import (
	"context"
	"fmt"

	"society-live/contract"
	"society-live/domain"
	"society-live/errors"
)

type PollLookup interface {
	GetPoll(ctx context.Context, pollID string) (domain.Poll, error)
}

type ResourceLookup interface {
	GetResource(ctx context.Context, resourceID string) (domain.Resource, error)
}

// RoomPolicy grants joins to the identity's own society and user rooms and to
// rooms of entities it participates in.
type RoomPolicy struct {
	polls        PollLookup
	resources    ResourceLookup
	participants contract.ParticipantChecker
}

func NewRoomPolicy(polls PollLookup, resources ResourceLookup, participants contract.ParticipantChecker) RoomPolicy {
	return RoomPolicy{polls: polls, resources: resources, participants: participants}
}

func (p RoomPolicy) Authorize(ctx context.Context, identity domain.Identity, roomID domain.RoomID) error {
	kind, id, err := domain.ParseRoomID(string(roomID))
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}

	var allowed bool
	switch kind {
	case domain.SocietyKind, domain.PollKind, domain.BookingResourceKind:
		owner, err := p.owner(ctx, kind, id)
		if err != nil {
			return err
		}
		allowed = owner == identity.SocietyID
	case domain.UserKind:
		allowed = id == identity.UserID
	default:
		allowed, err = p.participants.IsParticipant(ctx, identity, roomID)
		if err != nil {
			return err
		}
	}

	if !allowed {
		return fmt.Errorf("%w: %s may not join %s", errors.ErrForbidden, identity.UserID, roomID)
	}
	return nil
}

// AuthorizeBroadcast decides whether a manager may push an arbitrary event to
// a room. The room must belong to the manager's society. User rooms are
// refused: their owning society is unknown here, per-user pushes go through
// notifications.
func (p RoomPolicy) AuthorizeBroadcast(ctx context.Context, identity domain.Identity, roomID domain.RoomID) error {
	if !identity.IsManager() {
		return fmt.Errorf("%w: only managers broadcast", errors.ErrForbidden)
	}
	kind, id, err := domain.ParseRoomID(string(roomID))
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}

	var allowed bool
	switch kind {
	case domain.SocietyKind, domain.PollKind, domain.BookingResourceKind:
		owner, err := p.owner(ctx, kind, id)
		if err != nil {
			return err
		}
		allowed = owner == identity.SocietyID
	case domain.UserKind:
		allowed = false
	default:
		allowed, err = p.participants.IsParticipant(ctx, identity, roomID)
		if err != nil {
			return err
		}
	}

	if !allowed {
		return fmt.Errorf("%w: %s may not broadcast to %s", errors.ErrForbidden, identity.UserID, roomID)
	}
	return nil
}

// owner resolves the society a society, poll or booking-resource room belongs to.
func (p RoomPolicy) owner(ctx context.Context, kind domain.RoomKind, id string) (string, error) {
	switch kind {
	case domain.PollKind:
		poll, err := p.polls.GetPoll(ctx, id)
		if err != nil {
			return "", err
		}
		return poll.SocietyID, nil
	case domain.BookingResourceKind:
		resource, err := p.resources.GetResource(ctx, id)
		if err != nil {
			return "", err
		}
		return resource.SocietyID, nil
	default:
		return id, nil
	}
}

// ManagersOnly lets society managers into dispute and document rooms until an
// external participant service is plugged in.
type ManagersOnly struct{}

func (ManagersOnly) IsParticipant(_ context.Context, identity domain.Identity, _ domain.RoomID) (bool, error) {
	return identity.IsManager(), nil
}
