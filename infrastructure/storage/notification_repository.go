package storage

import (
	"context"
	"strings"

	"society-live/domain"

	"github.com/dgraph-io/badger/v4"
)

const (
	notificationPrefix = "notification:"
	inboxPrefix        = "inbox:"
)

type INotificationRepository interface {
	CreateNotification(ctx context.Context, notification domain.Notification) error
	GetNotification(ctx context.Context, notificationID string) (domain.Notification, error)
	UpdateNotification(ctx context.Context, notificationID string, mutate func(n *domain.Notification) error) (domain.Notification, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Notification, error)
}

// NotificationRepository keeps one record per notification and an inbox
// index entry per recipient. Ids are ULIDs, so the inbox iterates in creation order.
type NotificationRepository struct {
	db *badger.DB
}

func NewNotificationRepository(db *badger.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func notificationKey(id string) string { return notificationPrefix + id }

func inboxUserPrefix(userID string) string { return inboxPrefix + segment(userID) }

func (r *NotificationRepository) CreateNotification(ctx context.Context, n domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return update(r.db, func(txn *badger.Txn) error {
		if err := setJSON(txn, notificationKey(n.ID), n); err != nil {
			return err
		}
		for _, userID := range n.RecipientIDs() {
			if err := txn.Set([]byte(inboxUserPrefix(userID)+n.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *NotificationRepository) GetNotification(ctx context.Context, notificationID string) (domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return domain.Notification{}, err
	}
	var n domain.Notification
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, notificationKey(notificationID), &n)
	})
	return n, err
}

func (r *NotificationRepository) UpdateNotification(ctx context.Context, notificationID string,
	mutate func(n *domain.Notification) error) (domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return domain.Notification{}, err
	}
	var result domain.Notification
	err := update(r.db, func(txn *badger.Txn) error {
		var n domain.Notification
		if err := getJSON(txn, notificationKey(notificationID), &n); err != nil {
			return err
		}
		if err := mutate(&n); err != nil {
			return err
		}
		result = n
		return setJSON(txn, notificationKey(notificationID), n)
	})
	if err != nil {
		return domain.Notification{}, err
	}
	return result, nil
}

// ListForUser returns the notifications addressed to userID, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.Notification
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := inboxUserPrefix(userID)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(prefix + "\xff")); it.ValidForPrefix(opts.Prefix); it.Next() {
			id := strings.TrimPrefix(string(it.Item().Key()), prefix)
			var n domain.Notification
			if err := getJSON(txn, notificationKey(id), &n); err != nil {
				return err
			}
			out = append(out, n)
		}
		return nil
	})
	return out, err
}
