package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"society-live/auth"
	"society-live/contract"
	"society-live/domain"
	"society-live/errors"
	"society-live/runtime"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const maxFrameSize = 4096

// Sessions is the part of the session manager the websocket endpoint drives.
type Sessions interface {
	Authenticate(credential string) (domain.Identity, error)
	Attach(identity domain.Identity, transport contract.Transport) *runtime.Session
	Join(ctx context.Context, connID domain.ConnectionID, roomID domain.RoomID) error
	Leave(connID domain.ConnectionID, roomID domain.RoomID) bool
	Disconnect(connID domain.ConnectionID) bool
	Send(connID domain.ConnectionID, event string, payload any)
	Touch(connID domain.ConnectionID)
}

// ClientFrame is what clients send: join or leave a room, or ping.
type ClientFrame struct {
	Action string `json:"action" validate:"required,oneof=join leave ping"`
	Room   string `json:"room" validate:"required_unless=Action ping"`
}

type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Room    string `json:"room,omitempty"`
}

type Config struct {
	InboundRate  float64
	InboundBurst int
	// ReadTimeout bounds the wait for the next client frame.
	ReadTimeout    time.Duration
	AllowedOrigins []string
}

type Handler struct {
	log      *slog.Logger
	sessions Sessions
	config   Config
	upgrader websocket.Upgrader
}

func NewHandler(log *slog.Logger, sessions Sessions, config Config) *Handler {
	h := &Handler{log: log, sessions: sessions, config: config}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.config.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ServeHTTP authenticates before upgrading: a refused credential gets a plain
// 401 and no connection state.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	credential := r.URL.Query().Get("token")
	if credential == "" {
		credential = r.Header.Get("Authorization")
	}
	identity, err := h.sessions.Authenticate(credential)
	if err != nil {
		h.log.Debug("Websocket refused", "remote", r.RemoteAddr, "error", err)
		http.Error(w, errors.Kind(err), errors.MapToHTTPStatus(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	session := h.sessions.Attach(identity, NewTransport(conn))
	defer h.sessions.Disconnect(session.ID)

	h.readLoop(context.WithoutCancel(r.Context()), conn, session.ID)
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, connID domain.ConnectionID) {
	conn.SetReadLimit(maxFrameSize)
	limiter := rate.NewLimiter(rate.Limit(h.config.InboundRate), h.config.InboundBurst)
	for {
		if h.config.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
		}
		var frame ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("Websocket read failed", "conn_id", connID, "error", err)
			}
			return
		}
		h.sessions.Touch(connID)
		if !limiter.Allow() {
			h.sessions.Send(connID, domain.EventError, ErrorPayload{Kind: "RateLimited", Message: "too many frames"})
			continue
		}
		h.handleFrame(ctx, connID, frame)
	}
}

func (h *Handler) handleFrame(ctx context.Context, connID domain.ConnectionID, frame ClientFrame) {
	if err := auth.ValidateStruct(frame); err != nil {
		h.sendError(connID, frame.Room, err)
		return
	}
	roomID := domain.RoomID(frame.Room)
	switch frame.Action {
	case "join":
		if err := h.sessions.Join(ctx, connID, roomID); err != nil {
			h.sendError(connID, frame.Room, err)
			return
		}
		h.sessions.Send(connID, domain.EventJoined, map[string]string{"room": frame.Room})
	case "leave":
		h.sessions.Leave(connID, roomID)
		h.sessions.Send(connID, domain.EventLeft, map[string]string{"room": frame.Room})
	case "ping":
		h.sessions.Send(connID, domain.EventPong, nil)
	}
}

func (h *Handler) sendError(connID domain.ConnectionID, room string, err error) {
	h.sessions.Send(connID, domain.EventError, ErrorPayload{
		Kind:    errors.Kind(err),
		Message: err.Error(),
		Room:    room,
	})
}
