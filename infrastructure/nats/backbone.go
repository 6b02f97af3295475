package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"society-live/contract"
	"society-live/domain"

	"github.com/nats-io/nats.go"
)

var _ contract.Backbone = (*Backbone)(nil)

const DefaultSubjectPrefix = "society.rooms"

// Backbone relays room envelopes between broadcaster nodes. Every node
// subscribes to all rooms and delivers to its local members; the publishing
// node receives its own envelopes back through the subscription.
//
// It relays events only. Votes and bookings are guarded by one node's store,
// so a deployment keeps a single node serving mutations and workers.
//
// NATS keeps the order of messages from one connection on one subscription,
// which preserves the per-room commit order of a node.
type Backbone struct {
	log    *slog.Logger
	conn   *nats.Conn
	prefix string
}

func Connect(log *slog.Logger, url, name string) (*Backbone, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connection failed: %w", err)
	}
	log.Info("Connected to NATS", "url", conn.ConnectedUrl())
	return &Backbone{log: log, conn: conn, prefix: DefaultSubjectPrefix}, nil
}

// Subject routes by room kind; the full room id travels in the envelope.
func (b *Backbone) Subject(roomID domain.RoomID) string {
	kind, _, err := domain.ParseRoomID(string(roomID))
	if err != nil {
		return b.prefix + ".unknown"
	}
	return b.prefix + "." + string(kind)
}

func (b *Backbone) Publish(_ context.Context, env domain.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("envelope marshal failed: %w", err)
	}
	return b.conn.Publish(b.Subject(env.Room), data)
}

func (b *Backbone) Subscribe(handler func(env domain.Envelope)) error {
	_, err := b.conn.Subscribe(b.prefix+".>", func(msg *nats.Msg) {
		env, err := Decode(msg.Data)
		if err != nil {
			b.log.Warn("Dropping malformed envelope", "subject", msg.Subject, "error", err)
			return
		}
		handler(env)
	})
	return err
}

// Close drains pending messages then closes the connection.
func (b *Backbone) Close() error {
	return b.conn.Drain()
}

func Decode(data []byte) (domain.Envelope, error) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.Envelope{}, err
	}
	if env.Event == "" || env.Room == "" {
		return domain.Envelope{}, fmt.Errorf("envelope without event or room")
	}
	return env, nil
}
