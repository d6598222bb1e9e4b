package court

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/money"
)

var (
	ErrNotFound     = apperror.New(http.StatusNotFound, "court not found")
	ErrInactive     = apperror.New(http.StatusBadRequest, "court is not accepting bookings")
	errInvalidClock = errors.New("invalid HH:MM value")
)

const DefaultDownPaymentPercent = 20.0

var dayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// DayHours is one weekday's opening window in "HH:MM" wall-clock time.
type DayHours struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// Minutes returns the window as minutes past midnight. "24:00" closes at end of day.
func (d DayHours) Minutes() (open, close int, err error) {
	if open, err = parseClock(d.Open); err != nil {
		return 0, 0, err
	}
	if close, err = parseClock(d.Close); err != nil {
		return 0, 0, err
	}
	if close <= open {
		return 0, 0, fmt.Errorf("close %s is not after open %s", d.Close, d.Open)
	}
	return open, close, nil
}

// OpeningHours is keyed by lowercase English day name. A missing day is closed.
type OpeningHours map[string]DayHours

// For returns the hours of a weekday (0 = Sunday).
func (h OpeningHours) For(weekday int) (DayHours, bool) {
	if weekday < 0 || weekday > 6 || h == nil {
		return DayHours{}, false
	}
	d, ok := h[dayNames[weekday]]
	return d, ok
}

func DayName(weekday int) string {
	if weekday < 0 || weekday > 6 {
		return ""
	}
	return dayNames[weekday]
}

// Venue is the part of a venue the engine needs.
type Venue struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	OpeningHours       OpeningHours `json:"opening_hours"`
	DownPaymentPercent float64      `json:"down_payment_percent"`
}

// Court is a bookable resource. It is read-only to the reservation engine.
type Court struct {
	ID         string      `json:"id"`
	VenueID    string      `json:"venue_id"`
	Name       string      `json:"name"`
	HourlyRate money.Money `json:"hourly_rate"`
	IsActive   bool        `json:"is_active"`
	Venue      Venue       `json:"venue"`
}

func parseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("%w: %q", errInvalidClock, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errInvalidClock, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errInvalidClock, s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: %q", errInvalidClock, s)
	}
	return h*60 + m, nil
}
