package runtime

import (
	"context"
	"testing"

	"society-live/domain"
	"society-live/errors"
	"society-live/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type polls map[string]domain.Poll

func (p polls) GetPoll(_ context.Context, id string) (domain.Poll, error) {
	poll, ok := p[id]
	if !ok {
		return domain.Poll{}, errors.ErrNotFound
	}
	return poll, nil
}

type resources map[string]domain.Resource

func (r resources) GetResource(_ context.Context, id string) (domain.Resource, error) {
	resource, ok := r[id]
	if !ok {
		return domain.Resource{}, errors.ErrNotFound
	}
	return resource, nil
}

func TestRoomPolicy_Authorize(t *testing.T) {
	ctx := context.Background()
	admin := domain.Identity{UserID: "A1", SocietyID: "S1", Role: domain.RoleAdmin}
	policy := NewRoomPolicy(
		polls{"P1": {ID: "P1", SocietyID: "S1"}, "P2": {ID: "P2", SocietyID: "S2"}},
		resources{"R1": {ID: "R1", SocietyID: "S1"}},
		ManagersOnly{},
	)

	cases := []struct {
		name     string
		identity domain.Identity
		room     domain.RoomID
		want     error
	}{
		{"own society", u1, domain.SocietyRoom("S1"), nil},
		{"other society", u1, domain.SocietyRoom("S2"), errors.ErrForbidden},
		{"own user room", u1, domain.UserRoom("U1"), nil},
		{"other user room", u1, domain.UserRoom("U2"), errors.ErrForbidden},
		{"poll of own society", u1, domain.PollRoom("P1"), nil},
		{"poll of other society", u1, domain.PollRoom("P2"), errors.ErrForbidden},
		{"unknown poll", u1, domain.PollRoom("P9"), errors.ErrNotFound},
		{"resource of own society", u1, domain.BookingResourceRoom("R1"), nil},
		{"dispute as resident", u1, domain.DisputeRoom("D1"), errors.ErrForbidden},
		{"dispute as admin", admin, domain.DisputeRoom("D1"), nil},
		{"document as admin", admin, domain.DocumentRoom("DOC1"), nil},
		{"malformed room", u1, "lobby", errors.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Authorize(ctx, tc.identity, tc.room)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRoomPolicy_Delegates_To_Participant_Checker(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	checker := mocks.NewMockParticipantChecker(ctrl)
	policy := NewRoomPolicy(polls{}, resources{}, checker)

	checker.EXPECT().IsParticipant(gomock.Any(), u1, domain.DisputeRoom("D7")).Return(true, nil).Times(1)

	req.NoError(policy.Authorize(context.Background(), u1, domain.DisputeRoom("D7")))
}

func TestRoomPolicy_AuthorizeBroadcast(t *testing.T) {
	ctx := context.Background()
	admin := domain.Identity{UserID: "A1", SocietyID: "S1", Role: domain.RoleAdmin}
	policy := NewRoomPolicy(
		polls{"P1": {ID: "P1", SocietyID: "S1"}, "P2": {ID: "P2", SocietyID: "S2"}},
		resources{"R1": {ID: "R1", SocietyID: "S1"}, "R2": {ID: "R2", SocietyID: "S2"}},
		ManagersOnly{},
	)

	cases := []struct {
		name     string
		identity domain.Identity
		room     domain.RoomID
		want     error
	}{
		{"resident", u1, domain.SocietyRoom("S1"), errors.ErrForbidden},
		{"own society", admin, domain.SocietyRoom("S1"), nil},
		{"other society", admin, domain.SocietyRoom("S2"), errors.ErrForbidden},
		{"poll of own society", admin, domain.PollRoom("P1"), nil},
		{"poll of other society", admin, domain.PollRoom("P2"), errors.ErrForbidden},
		{"resource of own society", admin, domain.BookingResourceRoom("R1"), nil},
		{"resource of other society", admin, domain.BookingResourceRoom("R2"), errors.ErrForbidden},
		{"unknown resource", admin, domain.BookingResourceRoom("R9"), errors.ErrNotFound},
		{"user room", admin, domain.UserRoom("U7"), errors.ErrForbidden},
		{"dispute", admin, domain.DisputeRoom("D1"), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.AuthorizeBroadcast(ctx, tc.identity, tc.room)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}
