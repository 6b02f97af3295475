package domain

// Event names pushed to clients. The set is open: any non-empty name can be broadcast.
const (
	EventPollUpdated          = "poll-updated"
	EventPollClosed           = "poll-closed"
	EventNewBooking           = "newBooking"
	EventBookingCancelled     = "bookingCancelled"
	EventReminder             = "event-reminder"
	EventDisputeStatusUpdated = "dispute-status-updated"
	EventDocumentUpdated      = "document-updated"
	EventNewComment           = "newComment"
	EventNotification         = "notification"
	EventJoined               = "joined"
	EventLeft                 = "left"
	EventError                = "error"
	EventPong                 = "pong"
)

// Envelope is the outbound frame delivered to a connection.
type Envelope struct {
	Event   string `json:"event"`
	Room    RoomID `json:"room,omitempty"`
	Payload any    `json:"payload"`
}
