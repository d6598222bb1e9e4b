package events

import "time"

type Created struct {
	ReservationIDs    []string  `json:"reservation_ids"`
	RecurrenceGroupID string    `json:"recurrence_group_id,omitempty"`
	CourtID           string    `json:"court_id"`
	UserID            string    `json:"user_id"`
	Count             int       `json:"count"`
	Total             string    `json:"total"`
	PaymentMethod     string    `json:"payment_method"`
	OccurredAt        time.Time `json:"occurred_at"`
}

type Cancelled struct {
	ReservationID string    `json:"reservation_id"`
	CourtID       string    `json:"court_id"`
	UserID        string    `json:"user_id"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Rescheduled struct {
	ReservationID string    `json:"reservation_id"`
	CourtID       string    `json:"court_id"`
	UserID        string    `json:"user_id"`
	FromStart     time.Time `json:"from_start"`
	ToStart       time.Time `json:"to_start"`
	ToEnd         time.Time `json:"to_end"`
	OccurredAt    time.Time `json:"occurred_at"`
}
