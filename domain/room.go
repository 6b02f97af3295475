// Package domain contains core concepts of the society broadcaster.
// This file defines Room topics and their key format.
package domain

import (
	"fmt"
	"strings"
)

// RoomID is a broadcast topic key of the form "<kind>:<id>".
type RoomID string

type RoomKind string

const (
	SocietyKind         RoomKind = "society"
	UserKind            RoomKind = "user"
	PollKind            RoomKind = "poll"
	BookingResourceKind RoomKind = "booking-resource"
	DisputeKind         RoomKind = "dispute"
	DocumentKind        RoomKind = "document"
)

var roomKinds = map[RoomKind]struct{}{
	SocietyKind:         {},
	UserKind:            {},
	PollKind:            {},
	BookingResourceKind: {},
	DisputeKind:         {},
	DocumentKind:        {},
}

func NewRoomID(kind RoomKind, id string) RoomID {
	return RoomID(string(kind) + ":" + id)
}

func SocietyRoom(societyID string) RoomID { return NewRoomID(SocietyKind, societyID) }

func UserRoom(userID string) RoomID { return NewRoomID(UserKind, userID) }

func PollRoom(pollID string) RoomID { return NewRoomID(PollKind, pollID) }

func BookingResourceRoom(resourceID string) RoomID {
	return NewRoomID(BookingResourceKind, resourceID)
}

func DisputeRoom(disputeID string) RoomID { return NewRoomID(DisputeKind, disputeID) }

func DocumentRoom(documentID string) RoomID { return NewRoomID(DocumentKind, documentID) }

// ParseRoomID splits a raw room key and rejects unknown kinds or empty ids.
func ParseRoomID(raw string) (RoomKind, string, error) {
	kind, id, ok := strings.Cut(raw, ":")
	if !ok || id == "" {
		return "", "", fmt.Errorf("malformed room %q", raw)
	}
	if _, known := roomKinds[RoomKind(kind)]; !known {
		return "", "", fmt.Errorf("unknown room kind %q", kind)
	}
	return RoomKind(kind), id, nil
}

func (r RoomID) Kind() RoomKind {
	kind, _, _ := strings.Cut(string(r), ":")
	return RoomKind(kind)
}

func (r RoomID) EntityID() string {
	_, id, _ := strings.Cut(string(r), ":")
	return id
}

func (r RoomID) String() string { return string(r) }
