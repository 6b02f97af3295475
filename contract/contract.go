//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"society-live/domain"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Transport is the message-oriented duplex channel of one client.
// Write must honour the deadline carried by ctx.
type Transport interface {
	Write(ctx context.Context, env domain.Envelope) error
	Close() error
}

// IRegistry maps rooms to the connections currently joined to them.
type IRegistry interface {
	Join(connID domain.ConnectionID, roomID domain.RoomID) bool
	Leave(connID domain.ConnectionID, roomID domain.RoomID) bool
	RemoveConnection(connID domain.ConnectionID) []domain.RoomID
	Members(roomID domain.RoomID) []domain.ConnectionID
	RoomsOf(connID domain.ConnectionID) []domain.RoomID
	RoomCount() int
}

type IAuthenticator interface {
	Authenticate(credential string) (domain.Identity, error)
}

// IRouter delivers an event to every connection of a room without blocking the caller.
type IRouter interface {
	Broadcast(ctx context.Context, roomID domain.RoomID, event string, payload any)
}

// Backbone carries room envelopes between broadcaster nodes.
type Backbone interface {
	Publish(ctx context.Context, env domain.Envelope) error
	Subscribe(handler func(env domain.Envelope)) error
	Close() error
}

// ParticipantChecker resolves membership of entities owned by external CRUD services
// (disputes, documents).
type ParticipantChecker interface {
	IsParticipant(ctx context.Context, identity domain.Identity, roomID domain.RoomID) (bool, error)
}
