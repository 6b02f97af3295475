package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic     = fmt.Errorf("worker panic")
	ErrAuth            = fmt.Errorf("invalid or expired credential")
	ErrNotFound        = fmt.Errorf("not found")
	ErrInactive        = fmt.Errorf("poll is not active")
	ErrForbidden       = fmt.Errorf("forbidden")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrDuplicateVote   = fmt.Errorf("duplicate vote")
	ErrSlotUnavailable = fmt.Errorf("slot unavailable")
	ErrDeliveryFailure = fmt.Errorf("delivery failure")
	ErrStoreConflict   = fmt.Errorf("store conflict, too many retries")
	ErrUnknownSession  = fmt.Errorf("unknown session")
)

var kinds = []struct {
	err    error
	name   string
	status int
}{
	{ErrAuth, "AuthError", http.StatusUnauthorized},
	{ErrNotFound, "NotFound", http.StatusNotFound},
	{ErrUnknownSession, "NotFound", http.StatusNotFound},
	{ErrInactive, "Inactive", http.StatusConflict},
	{ErrForbidden, "Forbidden", http.StatusForbidden},
	{ErrInvalidInput, "InvalidInput", http.StatusBadRequest},
	{ErrDuplicateVote, "DuplicateVote", http.StatusConflict},
	{ErrSlotUnavailable, "SlotUnavailable", http.StatusConflict},
	{ErrDeliveryFailure, "DeliveryFailure", http.StatusServiceUnavailable},
	{ErrStoreConflict, "StoreConflict", http.StatusServiceUnavailable},
}

// Kind names the taxonomy entry of err, "Internal" when it matches none.
func Kind(err error) string {
	for _, k := range kinds {
		if stderrors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}

// MapToHTTPStatus translates a core error into the status returned to CRUD callers.
func MapToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, k := range kinds {
		if stderrors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }
