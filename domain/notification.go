package domain

import (
	"fmt"
	"time"

	"society-live/errors"

	"github.com/samber/lo"
)

type Recipient struct {
	UserID string     `json:"userId"`
	IsRead bool       `json:"isRead"`
	ReadAt *time.Time `json:"readAt,omitempty"`
}

// Notification is shared by all its recipients; read state is tracked per recipient.
type Notification struct {
	ID         string         `json:"id"`
	Topic      string         `json:"topic"`
	Payload    map[string]any `json:"payload"`
	CreatedAt  time.Time      `json:"createdAt"`
	Recipients []Recipient    `json:"recipients"`
}

func NewNotification(id, topic string, payload map[string]any, recipients []string, now time.Time) Notification {
	return Notification{
		ID:        id,
		Topic:     topic,
		Payload:   payload,
		CreatedAt: now,
		Recipients: lo.Map(lo.Uniq(recipients), func(userID string, _ int) Recipient {
			return Recipient{UserID: userID}
		}),
	}
}

// MarkRead flags one recipient as read. Marking twice keeps the first ReadAt.
func (n *Notification) MarkRead(userID string, now time.Time) error {
	for i := range n.Recipients {
		r := &n.Recipients[i]
		if r.UserID != userID {
			continue
		}
		if !r.IsRead {
			r.IsRead = true
			r.ReadAt = lo.ToPtr(now)
		}
		return nil
	}
	return fmt.Errorf("%w: %s is not a recipient of notification %s", errors.ErrNotFound, userID, n.ID)
}

func (n Notification) Recipient(userID string) (Recipient, bool) {
	return lo.Find(n.Recipients, func(r Recipient) bool { return r.UserID == userID })
}

func (n Notification) RecipientIDs() []string {
	return lo.Map(n.Recipients, func(r Recipient, _ int) string { return r.UserID })
}

// InboxItem is what a single recipient sees of a notification.
type InboxItem struct {
	ID        string         `json:"id"`
	Topic     string         `json:"topic"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"createdAt"`
	IsRead    bool           `json:"isRead"`
	ReadAt    *time.Time     `json:"readAt,omitempty"`
}

func (n Notification) InboxItem(userID string) (InboxItem, bool) {
	r, ok := n.Recipient(userID)
	if !ok {
		return InboxItem{}, false
	}
	return InboxItem{
		ID:        n.ID,
		Topic:     n.Topic,
		Payload:   n.Payload,
		CreatedAt: n.CreatedAt,
		IsRead:    r.IsRead,
		ReadAt:    r.ReadAt,
	}, true
}
