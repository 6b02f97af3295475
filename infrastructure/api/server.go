package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"society-live/auth"
	"society-live/contract"
	"society-live/domain"
	"society-live/errors"
	"society-live/observability"
	"society-live/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const maxBodySize = 1 << 20

// BroadcastAuthorizer checks that a caller owns the room it pushes an event to.
type BroadcastAuthorizer interface {
	AuthorizeBroadcast(ctx context.Context, identity domain.Identity, roomID domain.RoomID) error
}

// Server exposes the core entry points to the platform's CRUD controllers.
type Server struct {
	log           *slog.Logger
	authenticator contract.IAuthenticator
	polls         services.IPollService
	bookings      services.IBookingService
	notifications services.INotificationService
	router        contract.IRouter
	rooms         BroadcastAuthorizer
	metrics       *observability.Metrics
	gatherer      prometheus.Gatherer
	websocket     http.Handler
}

func NewServer(log *slog.Logger, authenticator contract.IAuthenticator,
	polls services.IPollService, bookings services.IBookingService,
	notifications services.INotificationService, router contract.IRouter, rooms BroadcastAuthorizer,
	metrics *observability.Metrics, gatherer prometheus.Gatherer, websocket http.Handler) *Server {
	return &Server{
		log:           log,
		authenticator: authenticator,
		polls:         polls,
		bookings:      bookings,
		notifications: notifications,
		router:        router,
		rooms:         rooms,
		metrics:       metrics,
		gatherer:      gatherer,
		websocket:     websocket,
	}
}

// Routes mounts the websocket endpoint outside the instrumented group: the
// metrics writer wrapper cannot be hijacked.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	r.Method(http.MethodGet, "/metrics", observability.Handler(s.gatherer))
	if s.websocket != nil {
		r.Method(http.MethodGet, "/ws", s.websocket)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.metrics.Instrument)
		r.Use(auth.Middleware(s.authenticator, s.writeError))

		r.Post("/polls", s.createPoll)
		r.Get("/polls/{id}", s.getPoll)
		r.Post("/polls/{id}/votes", s.castVote)
		r.Post("/polls/{id}/close", s.closePoll)

		r.Post("/resources", s.registerResource)
		r.Get("/resources/{id}/bookings", s.listBookings)
		r.Post("/bookings", s.createBooking)
		r.Post("/bookings/{id}/cancel", s.cancelBooking)

		r.Post("/notifications", s.notify)
		r.Get("/notifications", s.listNotifications)
		r.Post("/notifications/{id}/read", s.markRead)

		r.Post("/broadcast", s.broadcast)
	})
	return r
}

func (s *Server) createPoll(w http.ResponseWriter, r *http.Request) {
	var cmd services.CreatePollCommand
	if !s.decode(w, r, &cmd) {
		return
	}
	cmd.Creator = identity(r)
	view, err := s.polls.CreatePoll(r.Context(), cmd)
	s.respond(w, http.StatusCreated, view, err)
}

func (s *Server) getPoll(w http.ResponseWriter, r *http.Request) {
	view, err := s.polls.GetPoll(r.Context(), chi.URLParam(r, "id"), identity(r))
	s.respond(w, http.StatusOK, view, err)
}

func (s *Server) castVote(w http.ResponseWriter, r *http.Request) {
	var cmd services.CastVoteCommand
	if !s.decode(w, r, &cmd) {
		return
	}
	cmd.PollID = chi.URLParam(r, "id")
	cmd.Voter = identity(r)
	view, err := s.polls.CastVote(r.Context(), cmd)
	s.respond(w, http.StatusOK, view, err)
}

func (s *Server) closePoll(w http.ResponseWriter, r *http.Request) {
	view, err := s.polls.ClosePoll(r.Context(), chi.URLParam(r, "id"), identity(r))
	s.respond(w, http.StatusOK, view, err)
}

func (s *Server) registerResource(w http.ResponseWriter, r *http.Request) {
	var cmd services.RegisterResourceCommand
	if !s.decode(w, r, &cmd) {
		return
	}
	cmd.Owner = identity(r)
	resource, err := s.bookings.RegisterResource(r.Context(), cmd)
	s.respond(w, http.StatusCreated, resource, err)
}

func (s *Server) listBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.bookings.ListBookings(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("date"), identity(r))
	if bookings == nil {
		bookings = []domain.Booking{}
	}
	s.respond(w, http.StatusOK, bookings, err)
}

func (s *Server) createBooking(w http.ResponseWriter, r *http.Request) {
	var cmd services.CreateBookingCommand
	if !s.decode(w, r, &cmd) {
		return
	}
	cmd.Requester = identity(r)
	booking, err := s.bookings.CreateBooking(r.Context(), cmd)
	s.respond(w, http.StatusCreated, booking, err)
}

func (s *Server) cancelBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.bookings.CancelBooking(r.Context(), chi.URLParam(r, "id"), identity(r))
	s.respond(w, http.StatusOK, booking, err)
}

func (s *Server) notify(w http.ResponseWriter, r *http.Request) {
	if !identity(r).IsManager() {
		s.writeError(w, fmt.Errorf("%w: only managers send notifications", errors.ErrForbidden))
		return
	}
	var cmd services.NotifyCommand
	if !s.decode(w, r, &cmd) {
		return
	}
	n, err := s.notifications.Notify(r.Context(), cmd)
	s.respond(w, http.StatusCreated, n, err)
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	items, err := s.notifications.ListForUser(r.Context(), identity(r), unreadOnly)
	if items == nil {
		items = []domain.InboxItem{}
	}
	s.respond(w, http.StatusOK, items, err)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	item, err := s.notifications.MarkRead(r.Context(), chi.URLParam(r, "id"), identity(r))
	s.respond(w, http.StatusOK, item, err)
}

// BroadcastRequest lets CRUD controllers push their own events
// (dispute-status-updated, document-updated, newComment) through the router.
type BroadcastRequest struct {
	Room    string `json:"room" validate:"required"`
	Event   string `json:"event" validate:"required,max=64"`
	Payload any    `json:"payload"`
}

func (s *Server) broadcast(w http.ResponseWriter, r *http.Request) {
	caller := identity(r)
	if !caller.IsManager() {
		s.writeError(w, fmt.Errorf("%w: only managers broadcast", errors.ErrForbidden))
		return
	}
	var req BroadcastRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := auth.ValidateStruct(req); err != nil {
		s.writeError(w, err)
		return
	}
	roomID := domain.RoomID(req.Room)
	if err := s.rooms.AuthorizeBroadcast(r.Context(), caller, roomID); err != nil {
		s.writeError(w, err)
		return
	}
	s.router.Broadcast(r.Context(), roomID, req.Event, req.Payload)
	w.WriteHeader(http.StatusAccepted)
}

func identity(r *http.Request) domain.Identity {
	id, _ := auth.IdentityFromContext(r.Context())
	return id
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v); err != nil {
		s.writeError(w, fmt.Errorf("%w: malformed body: %v", errors.ErrInvalidInput, err))
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, status int, body any, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, status, body)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.MapToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "error", err)
	}
	writeJSON(w, status, errorBody{Error: errors.Kind(err), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
