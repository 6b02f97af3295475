package storage

import (
	"context"
	"fmt"
	"strconv"

	"society-live/domain"
	"society-live/errors"

	"github.com/dgraph-io/badger/v4"
)

const (
	bookingPrefix  = "booking:"
	resourcePrefix = "resource:"
)

type IBookingRepository interface {
	SaveResource(ctx context.Context, resource domain.Resource) error
	GetResource(ctx context.Context, resourceID string) (domain.Resource, error)
	Insert(ctx context.Context, booking domain.Booking) error
	GetBooking(ctx context.Context, bookingID string) (domain.Booking, error)
	UpdateBooking(ctx context.Context, bookingID string, mutate func(booking *domain.Booking) error) (domain.Booking, error)
	ListByResourceDate(ctx context.Context, resourceID, date string) ([]domain.Booking, error)
	ListBlocking(ctx context.Context) ([]domain.Booking, error)
}

// BookingRepository stores bookings under "booking:{resource}:{date}:{id}",
// resource and date length-prefixed, so that every booking competing for the
// same slot shares one prefix and no other slot does.
// A guard key per (resource, date) is read and rewritten by every insert and
// status change: two transactions on the same day always conflict, even when
// they would write different booking keys.
type BookingRepository struct {
	db *badger.DB
}

func NewBookingRepository(db *badger.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func resourceKey(resourceID string) string { return resourcePrefix + resourceID }

func dayPrefix(resourceID, date string) string {
	return bookingPrefix + segment(resourceID) + segment(date)
}

func bookingKey(b domain.Booking) string { return dayPrefix(b.ResourceID, b.Date) + b.ID }

func bookingIndexKey(bookingID string) string { return "idx:booking:" + bookingID }

func guardKey(resourceID, date string) string {
	return "guard:booking:" + segment(resourceID) + segment(date)
}

func (r *BookingRepository) SaveResource(ctx context.Context, resource domain.Resource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return update(r.db, func(txn *badger.Txn) error {
		return setJSON(txn, resourceKey(resource.ID), resource)
	})
}

func (r *BookingRepository) GetResource(ctx context.Context, resourceID string) (domain.Resource, error) {
	if err := ctx.Err(); err != nil {
		return domain.Resource{}, err
	}
	var resource domain.Resource
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, resourceKey(resourceID), &resource)
	})
	return resource, err
}

// Insert stores the booking unless a blocking booking of the same resource
// and date overlaps it, in which case errors.ErrSlotUnavailable is returned.
func (r *BookingRepository) Insert(ctx context.Context, booking domain.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return update(r.db, func(txn *badger.Txn) error {
		if err := touchGuard(txn, booking.ResourceID, booking.Date); err != nil {
			return err
		}
		sameDay, err := scanJSON[domain.Booking](txn, dayPrefix(booking.ResourceID, booking.Date), nil)
		if err != nil {
			return err
		}
		for _, other := range sameDay {
			if other.Blocking() && other.Overlaps(booking) {
				return fmt.Errorf("%w: %s %s-%s overlaps booking %s",
					errors.ErrSlotUnavailable, booking.Date, booking.Start, booking.End, other.ID)
			}
		}
		if err := setJSON(txn, bookingKey(booking), booking); err != nil {
			return err
		}
		return txn.Set([]byte(bookingIndexKey(booking.ID)), []byte(bookingKey(booking)))
	})
}

func (r *BookingRepository) GetBooking(ctx context.Context, bookingID string) (domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return domain.Booking{}, err
	}
	var booking domain.Booking
	err := r.db.View(func(txn *badger.Txn) error {
		key, err := resolveBookingKey(txn, bookingID)
		if err != nil {
			return err
		}
		return getJSON(txn, key, &booking)
	})
	return booking, err
}

// UpdateBooking applies mutate atomically. Resource, date and time range are
// part of the slot identity and cannot be changed here.
func (r *BookingRepository) UpdateBooking(ctx context.Context, bookingID string,
	mutate func(booking *domain.Booking) error) (domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return domain.Booking{}, err
	}
	var result domain.Booking
	err := update(r.db, func(txn *badger.Txn) error {
		key, err := resolveBookingKey(txn, bookingID)
		if err != nil {
			return err
		}
		var booking domain.Booking
		if err := getJSON(txn, key, &booking); err != nil {
			return err
		}
		before := booking
		if err := mutate(&booking); err != nil {
			return err
		}
		if booking.ResourceID != before.ResourceID || booking.Date != before.Date ||
			booking.Start != before.Start || booking.End != before.End {
			return fmt.Errorf("%w: booking slot is immutable", errors.ErrInvalidInput)
		}
		if err := touchGuard(txn, booking.ResourceID, booking.Date); err != nil {
			return err
		}
		result = booking
		return setJSON(txn, key, booking)
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return result, nil
}

func (r *BookingRepository) ListByResourceDate(ctx context.Context, resourceID, date string) ([]domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var bookings []domain.Booking
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		bookings, err = scanJSON[domain.Booking](txn, dayPrefix(resourceID, date), nil)
		return err
	})
	return bookings, err
}

// ListBlocking returns every pending or confirmed booking.
func (r *BookingRepository) ListBlocking(ctx context.Context) ([]domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var bookings []domain.Booking
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		bookings, err = scanJSON(txn, bookingPrefix, domain.Booking.Blocking)
		return err
	})
	return bookings, err
}

func resolveBookingKey(txn *badger.Txn, bookingID string) (string, error) {
	item, err := txn.Get([]byte(bookingIndexKey(bookingID)))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return "", fmt.Errorf("%w: booking %s", errors.ErrNotFound, bookingID)
		}
		return "", err
	}
	key, err := item.ValueCopy(nil)
	return string(key), err
}

// touchGuard reads then bumps the (resource, date) guard counter, putting the
// key in both the read and the write set of the transaction.
func touchGuard(txn *badger.Txn, resourceID, date string) error {
	key := []byte(guardKey(resourceID, date))
	var counter uint64
	item, err := txn.Get(key)
	switch {
	case err == badger.ErrKeyNotFound:
	case err != nil:
		return err
	default:
		if err := item.Value(func(val []byte) error {
			counter, err = strconv.ParseUint(string(val), 10, 64)
			return err
		}); err != nil {
			return err
		}
	}
	return txn.Set(key, []byte(strconv.FormatUint(counter+1, 10)))
}
