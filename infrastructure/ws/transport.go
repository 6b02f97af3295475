package ws

import (
	"context"
	"sync"
	"time"

	"society-live/contract"
	"society-live/domain"

	"github.com/gorilla/websocket"
)

var _ contract.Transport = (*Transport)(nil)

const closeGracePeriod = time.Second

// Transport adapts a websocket connection to contract.Transport. Writes are
// serialized: gorilla connections support one concurrent writer only.
type Transport struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	closeOnce sync.Once
}

func NewTransport(conn *websocket.Conn) *Transport {
	return &Transport{conn: conn}
}

// Write sends env as a JSON text frame, failing once ctx's deadline passes.
func (t *Transport) Write(ctx context.Context, env domain.Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	return t.conn.WriteJSON(env)
}

func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		err = t.conn.Close()
	})
	return err
}
