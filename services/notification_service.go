package services

import (
	"context"
	"log/slog"
	"time"

	"society-live/auth"
	"society-live/contract"
	"society-live/domain"
	"society-live/ids"
	"society-live/infrastructure/storage"
	"society-live/observability"

	"github.com/samber/lo"
)

type INotificationService interface {
	Notify(ctx context.Context, cmd NotifyCommand) (domain.Notification, error)
	MarkRead(ctx context.Context, notificationID string, reader domain.Identity) (domain.InboxItem, error)
	ListForUser(ctx context.Context, reader domain.Identity, unreadOnly bool) ([]domain.InboxItem, error)
}

type NotifyCommand struct {
	Recipients []string       `json:"recipients" validate:"min=1,dive,required"`
	Topic      string         `json:"topic" validate:"required,max=100"`
	Payload    map[string]any `json:"payload"`
}

type NotificationService struct {
	log     *slog.Logger
	repo    storage.INotificationRepository
	router  contract.IRouter
	metrics *observability.Metrics
	now     func() time.Time
}

func NewNotificationService(log *slog.Logger, repo storage.INotificationRepository, router contract.IRouter,
	metrics *observability.Metrics, now func() time.Time) *NotificationService {
	if now == nil {
		now = time.Now
	}
	return &NotificationService{log: log, repo: repo, router: router, metrics: metrics, now: now}
}

// Notify stores one notification shared by every recipient, then pushes it
// to the user room of each. Offline recipients find it in their inbox later.
func (s *NotificationService) Notify(ctx context.Context, cmd NotifyCommand) (domain.Notification, error) {
	if err := auth.ValidateStruct(cmd); err != nil {
		return domain.Notification{}, err
	}
	n := domain.NewNotification(ids.New(), cmd.Topic, cmd.Payload, cmd.Recipients, s.now().UTC())
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return domain.Notification{}, err
	}
	s.metrics.Notifications.Inc()

	ctx = context.WithoutCancel(ctx)
	for _, userID := range n.RecipientIDs() {
		item, _ := n.InboxItem(userID)
		s.router.Broadcast(ctx, domain.UserRoom(userID), domain.EventNotification, item)
	}
	s.log.Debug("Notification sent", "notification_id", n.ID, "topic", n.Topic, "recipients", len(n.Recipients))
	return n, nil
}

// MarkRead flags the notification read for reader only.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID string, reader domain.Identity) (domain.InboxItem, error) {
	now := s.now().UTC()
	n, err := s.repo.UpdateNotification(ctx, notificationID, func(n *domain.Notification) error {
		return n.MarkRead(reader.UserID, now)
	})
	if err != nil {
		return domain.InboxItem{}, err
	}
	item, _ := n.InboxItem(reader.UserID)
	return item, nil
}

func (s *NotificationService) ListForUser(ctx context.Context, reader domain.Identity, unreadOnly bool) ([]domain.InboxItem, error) {
	notifications, err := s.repo.ListForUser(ctx, reader.UserID)
	if err != nil {
		return nil, err
	}
	items := lo.FilterMap(notifications, func(n domain.Notification, _ int) (domain.InboxItem, bool) {
		return n.InboxItem(reader.UserID)
	})
	if unreadOnly {
		items = lo.Reject(items, func(item domain.InboxItem, _ int) bool { return item.IsRead })
	}
	return items, nil
}
