package runtime

import (
	"context"
	"log/slog"

	"society-live/contract"
	"society-live/domain"
	"society-live/observability"
)

var _ contract.IRouter = (*Router)(nil)

// Deliverer pushes an envelope to one local connection without blocking.
type Deliverer interface {
	Deliver(connID domain.ConnectionID, env domain.Envelope) bool
}

// Router fans room events out to the connections joined to the room.
//
// Broadcast publishes on the backbone; every node (the local one included)
// receives the envelope through DeliverLocal. Delivery to one connection is a
// non-blocking enqueue, so one stuck client never delays the others nor the
// mutation that triggered the broadcast.
type Router struct {
	log       *slog.Logger
	registry  contract.IRegistry
	deliverer Deliverer
	backbone  contract.Backbone
	metrics   *observability.Metrics
}

func NewRouter(log *slog.Logger, registry contract.IRegistry, deliverer Deliverer,
	backbone contract.Backbone, metrics *observability.Metrics) *Router {
	return &Router{
		log:       log,
		registry:  registry,
		deliverer: deliverer,
		backbone:  backbone,
		metrics:   metrics,
	}
}

// Start subscribes the local node to the backbone.
func (r *Router) Start() error {
	return r.backbone.Subscribe(func(env domain.Envelope) {
		r.DeliverLocal(env)
	})
}

func (r *Router) Broadcast(ctx context.Context, roomID domain.RoomID, event string, payload any) {
	if event == "" {
		r.log.Warn("Broadcast without event name ignored", "room", roomID)
		return
	}
	r.metrics.Broadcasts.WithLabelValues(event).Inc()
	env := domain.Envelope{Event: event, Room: roomID, Payload: payload}
	if err := r.backbone.Publish(ctx, env); err != nil {
		r.log.Error("Backbone publish failed", "room", roomID, "event", event, "error", err)
	}
}

// DeliverLocal enqueues env for every local member of env.Room and returns
// how many connections accepted it.
func (r *Router) DeliverLocal(env domain.Envelope) int {
	delivered := 0
	for _, connID := range r.registry.Members(env.Room) {
		if r.deliverer.Deliver(connID, env) {
			delivered++
		}
	}
	r.log.Debug("Event fanned out", "room", env.Room, "event", env.Event, "delivered", delivered)
	return delivered
}
