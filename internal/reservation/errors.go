package reservation

import (
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	KindInvalidRequest    ErrorKind = "invalid_request"
	KindNoSlotsGenerated  ErrorKind = "no_slots_generated"
	KindPastTimeRequested ErrorKind = "past_time_requested"
	KindSlotConflict      ErrorKind = "slot_conflict"
	KindStorageFailure    ErrorKind = "storage_failure"
)

// Conflict reasons carried by SlotConflict errors.
const (
	ReasonReservation   = "reservation"
	ReasonQueueSession  = "queue_session"
	ReasonVenueClosed   = "venue_closed"
	ReasonOutsideHours  = "outside_operating_hours"
	ReasonSlotTakenLate = "slot_taken"
)

// BookingError is the closed failure set of a booking request.
type BookingError struct {
	Kind          ErrorKind
	Message       string
	Date          string // civil date of the failing occurrence
	Reason        string
	SlotIndex     int // 1-based; 0 means the batch as a whole
	CorrelationID string
	Err           error
}

// Sentinels for errors.Is; they match any BookingError of the same kind.
var (
	ErrInvalidRequest    = &BookingError{Kind: KindInvalidRequest}
	ErrNoSlotsGenerated  = &BookingError{Kind: KindNoSlotsGenerated}
	ErrPastTimeRequested = &BookingError{Kind: KindPastTimeRequested}
	ErrSlotConflict      = &BookingError{Kind: KindSlotConflict}
	ErrStorageFailure    = &BookingError{Kind: KindStorageFailure}
)

func (e *BookingError) Error() string {
	switch e.Kind {
	case KindSlotConflict:
		return fmt.Sprintf("slot conflict on %s (%s)", e.Date, e.Reason)
	case KindStorageFailure:
		return fmt.Sprintf("storage failure at slot %d [%s]: %v", e.SlotIndex, e.CorrelationID, e.Err)
	}
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind)
}

func (e *BookingError) Unwrap() error {
	return e.Err
}

func (e *BookingError) Is(target error) bool {
	t, ok := target.(*BookingError)
	return ok && t.Kind == e.Kind
}

func (e *BookingError) StatusCode() int {
	switch e.Kind {
	case KindSlotConflict:
		return http.StatusConflict
	case KindStorageFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// PublicMessage never includes storage error text.
func (e *BookingError) PublicMessage() string {
	switch e.Kind {
	case KindPastTimeRequested:
		return fmt.Sprintf("cannot book a time slot in the past (%s)", e.Date)
	case KindSlotConflict:
		switch e.Reason {
		case ReasonVenueClosed:
			return fmt.Sprintf("venue is closed on %s", e.Date)
		case ReasonOutsideHours:
			return fmt.Sprintf("requested time on %s is outside operating hours", e.Date)
		case ReasonQueueSession:
			return fmt.Sprintf("court is reserved for an open play session on %s", e.Date)
		default:
			return fmt.Sprintf("time slot on %s is already booked", e.Date)
		}
	case KindNoSlotsGenerated:
		return "no bookable time slots were generated from the request"
	case KindStorageFailure:
		return "we could not save your booking, please try again"
	}
	if e.Message != "" {
		return e.Message
	}
	return "invalid booking request"
}

func (e *BookingError) Details() map[string]any {
	d := map[string]any{"code": string(e.Kind)}
	if e.Date != "" {
		d["date"] = e.Date
	}
	if e.Reason != "" {
		d["reason"] = e.Reason
	}
	if e.Kind == KindStorageFailure {
		d["slot_index"] = e.SlotIndex
		d["correlation_id"] = e.CorrelationID
	}
	return d
}

func invalidRequest(format string, args ...any) *BookingError {
	return &BookingError{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

func slotConflict(date, reason string) *BookingError {
	return &BookingError{Kind: KindSlotConflict, Date: date, Reason: reason}
}

func storageFailure(slotIndex int, correlationID string, err error) *BookingError {
	return &BookingError{Kind: KindStorageFailure, SlotIndex: slotIndex, CorrelationID: correlationID, Err: err}
}
