package reservation

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/court-reservation-engine/internal/discount"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/money"
)

var (
	ErrNotFound         = apperror.New(http.StatusNotFound, "reservation not found")
	ErrGroupNotFound    = apperror.New(http.StatusNotFound, "no pending reservations in this group")
	ErrPermissionDenied = apperror.New(http.StatusForbidden, "permission denied")
	ErrNotCancellable   = apperror.New(http.StatusConflict, "reservation can no longer be cancelled")
	ErrNotReschedulable = apperror.New(http.StatusConflict, "reservation can no longer be rescheduled")
	ErrRescheduleWindow = apperror.New(http.StatusBadRequest, "cannot reschedule this close to the booking start time")
	ErrStatusChanged    = apperror.New(http.StatusConflict, "reservation status changed concurrently")
)

// Status is the reservation lifecycle. The engine only ever writes pending_payment and cancelled;
// the other transitions belong to payment and admin flows.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPartiallyPaid  Status = "partially_paid"
	StatusPaid           Status = "paid"
	StatusConfirmed      Status = "confirmed"
	StatusOngoing        Status = "ongoing"
	StatusCompleted      Status = "completed"
	StatusNoShow         Status = "no_show"
	StatusPendingRefund  Status = "pending_refund"
	StatusCancelled      Status = "cancelled"
	StatusRefunded       Status = "refunded"
)

var allStatuses = []Status{
	StatusPendingPayment, StatusPartiallyPaid, StatusPaid, StatusConfirmed, StatusOngoing,
	StatusCompleted, StatusNoShow, StatusPendingRefund, StatusCancelled, StatusRefunded,
}

func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsCalendarOccupying reports whether a reservation in this state blocks its interval.
// Both the write validation and the availability query use this predicate.
func (s Status) IsCalendarOccupying() bool {
	switch s {
	case StatusCancelled, StatusRefunded:
		return false
	default:
		return s.Valid()
	}
}

// IsEarlyHold is the unpaid, still-cancelable state a requester may replace with a new booking.
func (s Status) IsEarlyHold() bool {
	return s == StatusPendingPayment
}

// IsCancellable reports whether the holder may still cancel.
func (s Status) IsCancellable() bool {
	switch s {
	case StatusPendingPayment, StatusPartiallyPaid, StatusPaid, StatusConfirmed:
		return true
	default:
		return false
	}
}

// IsReschedulable reports whether the holder may still move the booking.
func (s Status) IsReschedulable() bool {
	return s == StatusPendingPayment || s == StatusConfirmed
}

// OccupyingStatuses lists every status for which IsCalendarOccupying holds.
func OccupyingStatuses() []Status {
	out := make([]Status, 0, len(allStatuses))
	for _, s := range allStatuses {
		if s.IsCalendarOccupying() {
			out = append(out, s)
		}
	}
	return out
}

type PaymentMethod string

const (
	PaymentEWallet PaymentMethod = "e_wallet"
	PaymentCash    PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentEWallet || m == PaymentCash
}

type PaymentType string

const (
	PaymentFull  PaymentType = "full"
	PaymentSplit PaymentType = "split"
)

func (p PaymentType) Valid() bool {
	return p == PaymentFull || p == PaymentSplit
}

// PricingBreakdown is the per-slot decomposition kept for audits and refunds.
type PricingBreakdown struct {
	CourtAmount    money.Money        `json:"court_amount"`
	FeeAmount      money.Money        `json:"fee_amount"`
	FeePercentage  float64            `json:"fee_percentage"`
	DiscountAmount money.Money        `json:"discount_amount"`
	DiscountReason string             `json:"discount_reason,omitempty"`
	Discounts      []discount.Applied `json:"discounts,omitempty"`
}

type RescheduleRecord struct {
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	RescheduledAt time.Time `json:"rescheduled_at"`
}

// Metadata is stored as JSONB alongside each reservation row.
type Metadata struct {
	RecurrenceIndex       int               `json:"recurrence_index"`
	RecurrenceTotal       int               `json:"recurrence_total"`
	WeekIndex             int               `json:"week_index"`
	WeeksTotal            int               `json:"weeks_total"`
	DaysPerWeek           int               `json:"days_per_week"`
	IntendedPaymentMethod PaymentMethod     `json:"intended_payment_method,omitempty"`
	BookingOrigin         string            `json:"booking_origin,omitempty"`
	Pricing               *PricingBreakdown `json:"pricing,omitempty"`
	DownPaymentPercentage float64           `json:"down_payment_percentage,omitempty"`
	DownPaymentAmount     money.Money       `json:"down_payment_amount,omitempty"`
	CancellationReason    string            `json:"cancellation_reason,omitempty"`
	CancelledAt           *time.Time        `json:"cancelled_at,omitempty"`
	CorrelationID         string            `json:"correlation_id,omitempty"`
	RescheduledFrom       *RescheduleRecord `json:"rescheduled_from,omitempty"`
}

type Reservation struct {
	ID                  string
	CourtID             string
	UserID              string
	StartTime           time.Time
	EndTime             time.Time
	Status              Status
	TotalAmount         money.Money
	AmountPaid          money.Money
	DiscountApplied     money.Money
	DiscountReason      string
	PlatformFee         money.Money
	RecurrenceGroupID   *string
	PaymentType         PaymentType
	CashPaymentDeadline *time.Time
	NumPlayers          int
	Notes               string
	Metadata            Metadata
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Overlaps uses half-open intervals.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && r.EndTime.After(start)
}

type Filter struct {
	UserID            string
	CourtID           string
	RecurrenceGroupID string
	Status            string
	StartTime         *time.Time // reservations ending after this time
	EndTime           *time.Time // reservations starting before this time
	Page              int
	PageSize          int
	SortBy            string
	SortOrder         string
}

// GroupTotal is the amount due for the unpaid part of a recurrence group.
type GroupTotal struct {
	RecurrenceGroupID string
	Count             int
	Total             money.Money
}
