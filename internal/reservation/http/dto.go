package http

import (
	"time"

	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/money"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/request"
	"github.com/nekogravitycat/court-reservation-engine/internal/pricing"
	"github.com/nekogravitycat/court-reservation-engine/internal/recurrence"
	"github.com/nekogravitycat/court-reservation-engine/internal/reservation"
)

type CreateReservationRequest struct {
	CourtID         string    `json:"court_id" binding:"required,uuid"`
	StartTime       time.Time `json:"start_time" binding:"required"`
	EndTime         time.Time `json:"end_time" binding:"required"`
	RecurrenceWeeks int       `json:"recurrence_weeks" binding:"omitempty,min=1"`
	SelectedDays    []int     `json:"selected_days" binding:"omitempty,dive,min=0,max=6"`
	PaymentMethod   string    `json:"payment_method" binding:"omitempty,oneof=e_wallet cash"`
	PaymentType     string    `json:"payment_type" binding:"omitempty,oneof=full split"`
	NumPlayers      int       `json:"num_players" binding:"omitempty,min=1,max=20"`
	Notes           string    `json:"notes" binding:"max=500"`
	// TotalAmount is the total shown to the user. The server price always wins.
	TotalAmount *money.Money `json:"total_amount"`
}

func (r *CreateReservationRequest) toBookRequest(userID string) reservation.BookRequest {
	return reservation.BookRequest{
		CourtID:         r.CourtID,
		UserID:          userID,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		RecurrenceWeeks: r.RecurrenceWeeks,
		SelectedDays:    r.SelectedDays,
		PaymentMethod:   reservation.PaymentMethod(r.PaymentMethod),
		PaymentType:     reservation.PaymentType(r.PaymentType),
		NumPlayers:      r.NumPlayers,
		Notes:           r.Notes,
		ClientTotal:     r.TotalAmount,
	}
}

type CancelReservationRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type RescheduleReservationRequest struct {
	StartTime time.Time `json:"start_time" binding:"required"`
}

// ListReservationsRequest defines query parameters for listing the caller's reservations.
type ListReservationsRequest struct {
	request.ListParams
	CourtID           string     `form:"court_id" binding:"omitempty,uuid"`
	RecurrenceGroupID string     `form:"recurrence_group_id" binding:"omitempty,uuid"`
	Status            string     `form:"status" binding:"omitempty,oneof=pending_payment partially_paid paid confirmed ongoing completed no_show pending_refund cancelled refunded"`
	StartTimeFrom     *time.Time `form:"start_time_from" time_format:"2006-01-02T15:04:05Z07:00"`
	StartTimeTo       *time.Time `form:"start_time_to" time_format:"2006-01-02T15:04:05Z07:00"`
	SortBy            string     `form:"sort_by" binding:"omitempty,oneof=start_time end_time created_at status"`
	SortOrder         string     `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
}

type AvailabilityRequest struct {
	Date string `form:"date" binding:"required"`
}

type ReservationResponse struct {
	ID                  string               `json:"id"`
	CourtID             string               `json:"court_id"`
	UserID              string               `json:"user_id"`
	StartTime           time.Time            `json:"start_time"`
	EndTime             time.Time            `json:"end_time"`
	Status              string               `json:"status"`
	TotalAmount         money.Money          `json:"total_amount"`
	AmountPaid          money.Money          `json:"amount_paid"`
	DiscountApplied     money.Money          `json:"discount_applied"`
	DiscountReason      string               `json:"discount_reason,omitempty"`
	PlatformFee         money.Money          `json:"platform_fee"`
	RecurrenceGroupID   *string              `json:"recurrence_group_id"`
	PaymentType         string               `json:"payment_type"`
	CashPaymentDeadline *time.Time           `json:"cash_payment_deadline,omitempty"`
	NumPlayers          int                  `json:"num_players"`
	Notes               string               `json:"notes,omitempty"`
	Metadata            reservation.Metadata `json:"metadata"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

func NewReservationResponse(r *reservation.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:                  r.ID,
		CourtID:             r.CourtID,
		UserID:              r.UserID,
		StartTime:           r.StartTime,
		EndTime:             r.EndTime,
		Status:              string(r.Status),
		TotalAmount:         r.TotalAmount,
		AmountPaid:          r.AmountPaid,
		DiscountApplied:     r.DiscountApplied,
		DiscountReason:      r.DiscountReason,
		PlatformFee:         r.PlatformFee,
		RecurrenceGroupID:   r.RecurrenceGroupID,
		PaymentType:         string(r.PaymentType),
		CashPaymentDeadline: r.CashPaymentDeadline,
		NumPlayers:          r.NumPlayers,
		Notes:               r.Notes,
		Metadata:            r.Metadata,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

type BookResponse struct {
	ReservationID       string       `json:"reservation_id"`
	RecurrenceGroupID   *string      `json:"recurrence_group_id,omitempty"`
	Count               int          `json:"count"`
	TotalAmount         money.Money  `json:"total_amount"`
	DownPaymentRequired bool         `json:"down_payment_required"`
	DownPaymentAmount   *money.Money `json:"down_payment_amount,omitempty"`
}

func NewBookResponse(res *reservation.BookResult) BookResponse {
	resp := BookResponse{
		ReservationID:       res.ReservationID,
		RecurrenceGroupID:   res.RecurrenceGroupID,
		Count:               res.Count,
		TotalAmount:         res.TotalAmount,
		DownPaymentRequired: res.DownPaymentRequired,
	}
	if res.DownPaymentRequired {
		amount := res.DownPaymentAmount
		resp.DownPaymentAmount = &amount
	}
	return resp
}

type SlotResponse struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	WeekIndex int       `json:"week_index"`
}

type QuoteResponse struct {
	BasePrice       money.Money `json:"base_price"`
	TotalDiscount   money.Money `json:"total_discount"`
	DiscountReason  string      `json:"discount_reason,omitempty"`
	Discounts       any         `json:"discounts"`
	PerSlotCourt    money.Money `json:"per_slot_court"`
	PerSlotFee      money.Money `json:"per_slot_fee"`
	PerSlotTotal    money.Money `json:"per_slot_total"`
	FeePercentage   float64     `json:"fee_percentage"`
	GrandTotal      money.Money `json:"grand_total"`
	SlotCount       int         `json:"slot_count"`
	PlatformFeeOn   bool        `json:"platform_fee_enabled"`
	PerSlotDiscount money.Money `json:"per_slot_discount"`
}

func newQuoteResponse(q *pricing.Quote) QuoteResponse {
	resp := QuoteResponse{
		BasePrice:       q.BasePrice,
		TotalDiscount:   q.TotalDiscount,
		DiscountReason:  q.DiscountReason,
		Discounts:       q.Discounts,
		PerSlotCourt:    q.PerSlotCourt,
		PerSlotFee:      q.PerSlotFee,
		PerSlotTotal:    q.PerSlotTotal,
		FeePercentage:   q.FeePercentage,
		GrandTotal:      q.GrandTotal,
		SlotCount:       q.SlotCount,
		PlatformFeeOn:   q.FeeEnabled,
		PerSlotDiscount: q.PerSlotDiscount,
	}
	if q.Discounts == nil {
		resp.Discounts = []any{}
	}
	return resp
}

type ValidateResponse struct {
	Valid      bool           `json:"valid"`
	Recurring  bool           `json:"recurring"`
	Slots      []SlotResponse `json:"slots"`
	Quote      QuoteResponse  `json:"quote"`
	Superseded int            `json:"replaces_pending_holds"`
}

func newValidateResponse(v *reservation.ValidationResult) ValidateResponse {
	slots := make([]SlotResponse, len(v.Slots))
	for i, s := range v.Slots {
		slots[i] = newSlotResponse(s)
	}
	return ValidateResponse{
		Valid:      true,
		Recurring:  v.Recurring,
		Slots:      slots,
		Quote:      newQuoteResponse(v.Quote),
		Superseded: v.Superseded,
	}
}

func newSlotResponse(s recurrence.Slot) SlotResponse {
	return SlotResponse{StartTime: s.Start, EndTime: s.End, WeekIndex: s.WeekIndex}
}

type GroupTotalResponse struct {
	RecurrenceGroupID string      `json:"recurrence_group_id"`
	Count             int         `json:"count"`
	Total             money.Money `json:"total"`
}

type AvailabilityResponse struct {
	CourtID string                      `json:"court_id"`
	Date    string                      `json:"date"`
	Slots   []reservation.AvailableSlot `json:"slots"`
}
