package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomID_Constructors(t *testing.T) {
	req := require.New(t)

	req.Equal(RoomID("society:S1"), SocietyRoom("S1"))
	req.Equal(RoomID("user:U1"), UserRoom("U1"))
	req.Equal(RoomID("poll:P1"), PollRoom("P1"))
	req.Equal(RoomID("booking-resource:R1"), BookingResourceRoom("R1"))
	req.Equal(RoomID("dispute:D1"), DisputeRoom("D1"))
	req.Equal(RoomID("document:DOC1"), DocumentRoom("DOC1"))

	req.Equal(BookingResourceKind, BookingResourceRoom("R1").Kind())
	req.Equal("R1", BookingResourceRoom("R1").EntityID())
}

func TestParseRoomID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		kind    RoomKind
		id      string
		wantErr bool
	}{
		{"society", "society:S1", SocietyKind, "S1", false},
		{"id containing colon", "document:a:b", DocumentKind, "a:b", false},
		{"unknown kind", "lobby:1", "", "", true},
		{"missing id", "poll:", "", "", true},
		{"no separator", "poll", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			kind, id, err := ParseRoomID(tt.raw)
			if tt.wantErr {
				req.Error(err)
				return
			}
			req.NoError(err)
			req.Equal(tt.kind, kind)
			req.Equal(tt.id, id)
		})
	}
}
