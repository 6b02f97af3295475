package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"society-live/auth"
	"society-live/contract"
	"society-live/domain"
	"society-live/errors"
	"society-live/ids"
	"society-live/infrastructure/storage"
	"society-live/observability"
	"society-live/runtime"
)

type IBookingService interface {
	RegisterResource(ctx context.Context, cmd RegisterResourceCommand) (domain.Resource, error)
	CreateBooking(ctx context.Context, cmd CreateBookingCommand) (domain.Booking, error)
	CancelBooking(ctx context.Context, bookingID string, requester domain.Identity) (domain.Booking, error)
	ListBookings(ctx context.Context, resourceID, date string, requester domain.Identity) ([]domain.Booking, error)
}

type RegisterResourceCommand struct {
	Owner    domain.Identity `validate:"required"`
	ID       string          `json:"id"`
	Name     string          `json:"name" validate:"required,max=100"`
	Bookable bool            `json:"bookable"`
}

type CreateBookingCommand struct {
	Requester  domain.Identity `validate:"required"`
	ResourceID string          `json:"resourceId" validate:"required"`
	Date       string          `json:"date" validate:"required"`
	StartTime  string          `json:"startTime" validate:"required"`
	EndTime    string          `json:"endTime" validate:"required"`
	Guests     int             `json:"guests" validate:"gte=0,lte=500"`
	Purpose    string          `json:"purpose" validate:"max=500"`
}

type BookingService struct {
	log       *slog.Logger
	repo      storage.IBookingRepository
	router    contract.IRouter
	sequencer *runtime.Sequencer
	metrics   *observability.Metrics
	location  *time.Location
	now       func() time.Time
}

// NewBookingService builds the service. Booking dates are calendar days of
// location (UTC when nil).
func NewBookingService(log *slog.Logger, repo storage.IBookingRepository, router contract.IRouter,
	sequencer *runtime.Sequencer, metrics *observability.Metrics, location *time.Location,
	now func() time.Time) *BookingService {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		log:       log,
		repo:      repo,
		router:    router,
		sequencer: sequencer,
		metrics:   metrics,
		location:  location,
		now:       now,
	}
}

func (s *BookingService) RegisterResource(ctx context.Context, cmd RegisterResourceCommand) (domain.Resource, error) {
	if err := auth.ValidateStruct(cmd); err != nil {
		return domain.Resource{}, err
	}
	if !cmd.Owner.IsManager() {
		return domain.Resource{}, fmt.Errorf("%w: only committee members register resources", errors.ErrForbidden)
	}
	resource := domain.Resource{
		ID:        cmd.ID,
		SocietyID: cmd.Owner.SocietyID,
		Name:      cmd.Name,
		Bookable:  cmd.Bookable,
	}
	if resource.ID == "" {
		resource.ID = ids.New()
	} else if existing, err := s.repo.GetResource(ctx, resource.ID); err == nil && existing.SocietyID != resource.SocietyID {
		return domain.Resource{}, fmt.Errorf("%w: resource %s belongs to another society", errors.ErrForbidden, resource.ID)
	}
	if err := s.repo.SaveResource(ctx, resource); err != nil {
		return domain.Resource{}, err
	}
	return resource, nil
}

// CreateBooking inserts a pending booking when no pending or confirmed booking
// of the same resource and day overlaps it. The overlap check and the insert
// are one store transaction.
func (s *BookingService) CreateBooking(ctx context.Context, cmd CreateBookingCommand) (domain.Booking, error) {
	booking, err := s.createBooking(ctx, cmd)
	s.metrics.Bookings.WithLabelValues(observability.Result(err)).Inc()
	return booking, err
}

func (s *BookingService) createBooking(ctx context.Context, cmd CreateBookingCommand) (domain.Booking, error) {
	if err := auth.ValidateStruct(cmd); err != nil {
		return domain.Booking{}, err
	}
	now := s.now()
	day, err := time.ParseInLocation(domain.DateLayout, cmd.Date, s.location)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", errors.ErrInvalidInput, cmd.Date)
	}
	today := now.In(s.location).Format(domain.DateLayout)
	if day.Format(domain.DateLayout) < today {
		return domain.Booking{}, fmt.Errorf("%w: date %s is in the past", errors.ErrInvalidInput, cmd.Date)
	}
	start, err := domain.ParseTimeOfDay(cmd.StartTime)
	if err != nil {
		return domain.Booking{}, err
	}
	end, err := domain.ParseTimeOfDay(cmd.EndTime)
	if err != nil {
		return domain.Booking{}, err
	}
	if start >= end {
		return domain.Booking{}, fmt.Errorf("%w: start %s must be before end %s", errors.ErrInvalidInput, start, end)
	}

	resource, err := s.repo.GetResource(ctx, cmd.ResourceID)
	if err != nil {
		return domain.Booking{}, err
	}
	if !resource.Bookable {
		return domain.Booking{}, fmt.Errorf("%w: resource %s is not bookable", errors.ErrInvalidInput, resource.ID)
	}
	if resource.SocietyID != cmd.Requester.SocietyID {
		return domain.Booking{}, fmt.Errorf("%w: resource %s belongs to another society", errors.ErrForbidden, resource.ID)
	}

	booking := domain.Booking{
		ID:          ids.New(),
		ResourceID:  resource.ID,
		SocietyID:   resource.SocietyID,
		Date:        cmd.Date,
		Start:       start,
		End:         end,
		Status:      domain.BookingPending,
		RequestedBy: cmd.Requester.UserID,
		Guests:      cmd.Guests,
		Purpose:     cmd.Purpose,
		CreatedAt:   now,
	}

	unlock := s.sequencer.Lock(slotKey(booking))
	defer unlock()
	if err := s.repo.Insert(ctx, booking); err != nil {
		s.log.Debug("Booking refused", "resource_id", booking.ResourceID, "date", booking.Date, "error", err)
		return domain.Booking{}, err
	}
	s.log.Info("Booking created", "booking_id", booking.ID, "resource_id", booking.ResourceID,
		"date", booking.Date, "start", booking.Start.String(), "end", booking.End.String())
	s.publish(ctx, booking, domain.EventNewBooking)
	return booking, nil
}

// CancelBooking frees the slot. Only the requester or a manager of the
// society may cancel, and only a pending or confirmed booking.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID string, requester domain.Identity) (domain.Booking, error) {
	current, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	unlock := s.sequencer.Lock(slotKey(current))
	defer unlock()

	booking, err := s.repo.UpdateBooking(ctx, bookingID, func(b *domain.Booking) error {
		if b.SocietyID != requester.SocietyID ||
			(b.RequestedBy != requester.UserID && !requester.IsManager()) {
			return fmt.Errorf("%w: %s cannot cancel booking %s", errors.ErrForbidden, requester.UserID, b.ID)
		}
		if !b.Blocking() {
			return fmt.Errorf("%w: booking %s is %s", errors.ErrInvalidInput, b.ID, b.Status)
		}
		b.Status = domain.BookingCancelled
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}
	s.log.Info("Booking cancelled", "booking_id", booking.ID, "by", requester.UserID)
	s.publish(ctx, booking, domain.EventBookingCancelled)
	return booking, nil
}

func (s *BookingService) ListBookings(ctx context.Context, resourceID, date string, requester domain.Identity) ([]domain.Booking, error) {
	resource, err := s.repo.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if resource.SocietyID != requester.SocietyID {
		return nil, fmt.Errorf("%w: resource %s belongs to another society", errors.ErrForbidden, resourceID)
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: date %q must be YYYY-MM-DD", errors.ErrInvalidInput, date)
	}
	return s.repo.ListByResourceDate(ctx, resourceID, date)
}

func (s *BookingService) publish(ctx context.Context, booking domain.Booking, event string) {
	ctx = context.WithoutCancel(ctx)
	s.router.Broadcast(ctx, domain.BookingResourceRoom(booking.ResourceID), event, booking)
	s.router.Broadcast(ctx, domain.SocietyRoom(booking.SocietyID), event, booking)
}

func slotKey(b domain.Booking) string {
	return string(domain.BookingResourceRoom(b.ResourceID)) + ":" + b.Date
}

// SendReminders pushes event-reminder to the requester of every pending or
// confirmed booking starting within lead. A booking is reminded once.
func (s *BookingService) SendReminders(ctx context.Context, lead time.Duration) (int, error) {
	bookings, err := s.repo.ListBlocking(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	sent := 0
	for _, candidate := range bookings {
		if candidate.RemindedAt != nil {
			continue
		}
		startsAt, err := candidate.StartsAt(s.location)
		if err != nil || startsAt.Before(now) || startsAt.After(now.Add(lead)) {
			continue
		}
		reminded := false
		booking, err := s.repo.UpdateBooking(ctx, candidate.ID, func(b *domain.Booking) error {
			reminded = b.Blocking() && b.MarkReminded(now)
			return nil
		})
		if err != nil {
			s.log.Warn("Booking reminder failed", "booking_id", candidate.ID, "error", err)
			continue
		}
		if !reminded {
			continue
		}
		sent++
		s.router.Broadcast(context.WithoutCancel(ctx), domain.UserRoom(booking.RequestedBy), domain.EventReminder, map[string]any{
			"booking":  booking,
			"startsAt": startsAt,
		})
	}
	return sent, nil
}
