package queuesession

import "time"

// Status is the lifecycle of an open-play session.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusPendingPayment  Status = "pending_payment"
	StatusOpen            Status = "open"
	StatusActive          Status = "active"
	StatusClosed          Status = "closed"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// IsActive reports whether a session in this state holds its court.
func (s Status) IsActive() bool {
	switch s {
	case StatusDraft, StatusPendingApproval, StatusPendingPayment, StatusOpen, StatusActive:
		return true
	default:
		return false
	}
}

// ActiveStatuses lists every status for which IsActive is true.
func ActiveStatuses() []Status {
	return []Status{StatusDraft, StatusPendingApproval, StatusPendingPayment, StatusOpen, StatusActive}
}

type Approval string

const (
	ApprovalPending  Approval = "pending"
	ApprovalApproved Approval = "approved"
	ApprovalRejected Approval = "rejected"
)

// Session is read-only here; it only ever acts as a source of conflicts.
type Session struct {
	ID             string
	CourtID        string
	OrganizerID    string
	StartTime      time.Time
	EndTime        time.Time
	Status         Status
	ApprovalStatus Approval
}

// Occupies reports whether the session blocks its court for other bookings.
func (s *Session) Occupies() bool {
	return s.Status.IsActive() && s.ApprovalStatus != ApprovalRejected
}
