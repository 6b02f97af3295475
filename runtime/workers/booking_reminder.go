package workers

import (
	"context"
	"log/slog"
	"time"
)

type Reminder interface {
	SendReminders(ctx context.Context, lead time.Duration) (int, error)
}

// BookingReminderWorker periodically asks for event-reminder pushes on
// bookings starting within lead.
type BookingReminderWorker struct {
	log      *slog.Logger
	reminder Reminder
	lead     time.Duration
	interval time.Duration
}

func NewBookingReminderWorker(log *slog.Logger, reminder Reminder, lead, interval time.Duration) *BookingReminderWorker {
	return &BookingReminderWorker{log: log, reminder: reminder, lead: lead, interval: interval}
}

func (w *BookingReminderWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			sent, err := w.reminder.SendReminders(ctx, w.lead)
			if err != nil {
				w.log.Error("Booking reminders failed", "error", err)
				continue
			}
			if sent > 0 {
				w.log.Debug("Booking reminders sent", "count", sent)
			}
		}
	}
}
