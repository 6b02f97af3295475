package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"society-live/errors"
)

const DateLayout = "2006-01-02"

// TimeOfDay counts minutes since midnight. "24:00" is accepted as an end bound.
type TimeOfDay int

const endOfDay TimeOfDay = 24 * 60

func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	if len(raw) != 5 || raw[2] != ':' || !isDigits(raw[:2]) || !isDigits(raw[3:]) {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", errors.ErrInvalidInput, raw)
	}
	h, _ := strconv.Atoi(raw[:2])
	m, _ := strconv.Atoi(raw[3:])
	t := TimeOfDay(h*60 + m)
	if m > 59 || t > endOfDay {
		return 0, fmt.Errorf("%w: time %q out of range", errors.ErrInvalidInput, raw)
	}
	return t, nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// Booking reserves [Start,End) of a resource on Date.
type Booking struct {
	ID          string        `json:"id"`
	ResourceID  string        `json:"resourceId"`
	SocietyID   string        `json:"societyId"`
	Date        string        `json:"date"`
	Start       TimeOfDay     `json:"startTime"`
	End         TimeOfDay     `json:"endTime"`
	Status      BookingStatus `json:"status"`
	RequestedBy string        `json:"requestedBy"`
	Guests      int           `json:"guests"`
	Purpose     string        `json:"purpose"`
	CreatedAt   time.Time     `json:"createdAt"`
	RemindedAt  *time.Time    `json:"remindedAt,omitempty"`
}

// Blocking reports whether the booking still holds its slot.
func (b Booking) Blocking() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}

// MarkReminded records the reminder once. Returns false when already reminded.
func (b *Booking) MarkReminded(now time.Time) bool {
	if b.RemindedAt != nil {
		return false
	}
	b.RemindedAt = &now
	return true
}

// Overlaps implements the half-open interval rule s1 < e2 && s2 < e1.
func (b Booking) Overlaps(other Booking) bool {
	return b.ResourceID == other.ResourceID &&
		b.Date == other.Date &&
		b.Start < other.End && other.Start < b.End
}

// StartsAt resolves the wall-clock start of the booking in loc.
func (b Booking) StartsAt(loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, b.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(b.Start) * time.Minute), nil
}

// Resource is a bookable amenity of a society.
type Resource struct {
	ID        string `json:"id"`
	SocietyID string `json:"societyId"`
	Name      string `json:"name"`
	Bookable  bool   `json:"bookable"`
}
