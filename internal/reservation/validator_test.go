package reservation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/court-reservation-engine/internal/court"
	"github.com/nekogravitycat/court-reservation-engine/internal/queuesession"
	"github.com/nekogravitycat/court-reservation-engine/internal/recurrence"
)

func holdOf(user string, status Status, start time.Time) *Reservation {
	return &Reservation{
		CourtID:   "court-1",
		UserID:    user,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Status:    status,
	}
}

func assertConflict(t *testing.T, err error, date, reason string) {
	t.Helper()
	require.ErrorIs(t, err, ErrSlotConflict)
	var be *BookingError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, date, be.Date)
	assert.Equal(t, reason, be.Reason)
}

func TestValidatePastSlot(t *testing.T) {
	h := newHarness()

	_, err := h.validator.Validate(context.Background(), Check{
		Court:       testCourt(),
		RequesterID: "user-1",
		Slots:       oneSlot(testNow.Add(-time.Minute), time.Hour),
	})
	require.ErrorIs(t, err, ErrPastTimeRequested)
	assert.NotErrorIs(t, err, ErrSlotConflict)
}

func TestValidatePastGraceWindow(t *testing.T) {
	h := newHarness()

	_, err := h.validator.Validate(context.Background(), Check{
		Court:       testCourt(),
		RequesterID: "user-1",
		Slots:       oneSlot(testNow.Add(-10*time.Second), time.Hour),
	})
	assert.NoError(t, err)
}

func TestValidateQueueSessionAlwaysBlocks(t *testing.T) {
	start := at(2026, 3, 2, 18, 0)
	h := newHarness()
	h.sessions.sessions = []*queuesession.Session{{
		ID:             "qs-1",
		CourtID:        "court-1",
		OrganizerID:    "user-1",
		StartTime:      start.Add(-30 * time.Minute),
		EndTime:        start.Add(30 * time.Minute),
		Status:         queuesession.StatusOpen,
		ApprovalStatus: queuesession.ApprovalApproved,
	}}

	// The requester organises the session and owns no reservation; it still blocks.
	_, err := h.validator.Validate(context.Background(), Check{
		Court:       testCourt(),
		RequesterID: "user-1",
		Slots:       oneSlot(start, time.Hour),
	})
	assertConflict(t, err, "2026-03-02", ReasonQueueSession)
}

func TestValidateIgnoresInactiveQueueSessions(t *testing.T) {
	start := at(2026, 3, 2, 18, 0)
	h := newHarness()
	h.sessions.sessions = []*queuesession.Session{
		{ID: "closed", CourtID: "court-1", StartTime: start, EndTime: start.Add(time.Hour), Status: queuesession.StatusClosed},
		{ID: "rejected", CourtID: "court-1", StartTime: start, EndTime: start.Add(time.Hour), Status: queuesession.StatusPendingApproval, ApprovalStatus: queuesession.ApprovalRejected},
		{ID: "other-court", CourtID: "court-2", StartTime: start, EndTime: start.Add(time.Hour), Status: queuesession.StatusActive},
	}

	_, err := h.validator.Validate(context.Background(), Check{
		Court:       testCourt(),
		RequesterID: "user-1",
		Slots:       oneSlot(start, time.Hour),
	})
	assert.NoError(t, err)
}

func TestValidateSelfHoldException(t *testing.T) {
	start := at(2026, 3, 2, 18, 0)

	tests := []struct {
		name      string
		hold      *Reservation
		slots     []recurrence.Slot
		recurring bool
		strict    bool
		policy    SelfHoldPolicy
		wantErr   bool
	}{
		{
			name:   "single request replaces own pending hold",
			hold:   holdOf("user-1", StatusPendingPayment, start),
			slots:  oneSlot(start, time.Hour),
			policy: SelfHoldPolicy{AllowSingleReplace: true},
		},
		{
			name:      "recurring request is blocked by own pending hold",
			hold:      holdOf("user-1", StatusPendingPayment, start),
			slots:     []recurrence.Slot{{Start: start, End: start.Add(time.Hour)}, {Start: start.AddDate(0, 0, 7), End: start.AddDate(0, 0, 7).Add(time.Hour), WeekIndex: 1}},
			recurring: true,
			policy:    SelfHoldPolicy{AllowSingleReplace: true},
			wantErr:   true,
		},
		{
			name:      "single slot flagged recurring is blocked",
			hold:      holdOf("user-1", StatusPendingPayment, start),
			slots:     oneSlot(start, time.Hour),
			recurring: true,
			policy:    SelfHoldPolicy{AllowSingleReplace: true},
			wantErr:   true,
		},
		{
			name:    "own confirmed booking blocks",
			hold:    holdOf("user-1", StatusConfirmed, start),
			slots:   oneSlot(start, time.Hour),
			policy:  SelfHoldPolicy{AllowSingleReplace: true},
			wantErr: true,
		},
		{
			name:    "another user's pending hold blocks",
			hold:    holdOf("user-2", StatusPendingPayment, start),
			slots:   oneSlot(start, time.Hour),
			policy:  SelfHoldPolicy{AllowSingleReplace: true},
			wantErr: true,
		},
		{
			name:    "policy disabled",
			hold:    holdOf("user-1", StatusPendingPayment, start),
			slots:   oneSlot(start, time.Hour),
			policy:  SelfHoldPolicy{AllowSingleReplace: false},
			wantErr: true,
		},
		{
			name:    "strict ownership",
			hold:    holdOf("user-1", StatusPendingPayment, start),
			slots:   oneSlot(start, time.Hour),
			strict:  true,
			policy:  SelfHoldPolicy{AllowSingleReplace: true},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(withValidatorConfig(ValidatorConfig{PastGrace: DefaultPastGrace, SelfHold: tt.policy}))
			h.repo.seed(tt.hold)

			verdict, err := h.validator.Validate(context.Background(), Check{
				Court:           testCourt(),
				RequesterID:     "user-1",
				Slots:           tt.slots,
				Recurring:       tt.recurring,
				StrictOwnership: tt.strict,
			})
			if tt.wantErr {
				assertConflict(t, err, "2026-03-02", ReasonReservation)
				return
			}
			require.NoError(t, err)
			require.Len(t, verdict.Superseded, 1)
			assert.Equal(t, tt.hold.ID, verdict.Superseded[0].ID)
		})
	}
}

func TestValidateNonOccupyingStatusesDoNotBlock(t *testing.T) {
	start := at(2026, 3, 2, 18, 0)
	h := newHarness()
	h.repo.seed(holdOf("user-2", StatusCancelled, start))
	h.repo.seed(holdOf("user-2", StatusRefunded, start))

	verdict, err := h.validator.Validate(context.Background(), Check{
		Court:       testCourt(),
		RequesterID: "user-1",
		Slots:       oneSlot(start, time.Hour),
	})
	require.NoError(t, err)
	assert.Empty(t, verdict.Superseded)
}

func TestValidateTouchingIntervalsDoNotConflict(t *testing.T) {
	start := at(2026, 3, 2, 18, 0)
	h := newHarness()
	h.repo.seed(holdOf("user-2", StatusConfirmed, start.Add(-time.Hour)))
	h.repo.seed(holdOf("user-2", StatusConfirmed, start.Add(time.Hour)))

	_, err := h.validator.Validate(context.Background(), Check{
		Court:       testCourt(),
		RequesterID: "user-1",
		Slots:       oneSlot(start, time.Hour),
	})
	assert.NoError(t, err)
}

func TestValidateReportsFirstConflictingDate(t *testing.T) {
	first := at(2026, 3, 2, 18, 0)
	h := newHarness()
	h.repo.seed(holdOf("user-2", StatusConfirmed, first.AddDate(0, 0, 14)))
	h.repo.seed(holdOf("user-2", StatusPaid, first.AddDate(0, 0, 7)))

	var slots []recurrence.Slot
	for i := 0; i < 3; i++ {
		s := first.AddDate(0, 0, 7*i)
		slots = append(slots, recurrence.Slot{Start: s, End: s.Add(time.Hour), WeekIndex: i})
	}

	_, err := h.validator.Validate(context.Background(), Check{
		Court:       testCourt(),
		RequesterID: "user-1",
		Slots:       slots,
		Recurring:   true,
	})
	assertConflict(t, err, "2026-03-09", ReasonReservation)
}

func TestValidateOperatingHours(t *testing.T) {
	c := testCourt()
	c.Venue.OpeningHours = court.OpeningHours{
		"monday": {Open: "08:00", Close: "22:00"},
	}
	h := newHarness()

	tests := []struct {
		name   string
		start  time.Time
		length time.Duration
		reason string
	}{
		{name: "inside", start: at(2026, 3, 2, 8, 0), length: time.Hour},
		{name: "ends at close", start: at(2026, 3, 2, 21, 0), length: time.Hour},
		{name: "before open", start: at(2026, 3, 2, 7, 0), length: time.Hour, reason: ReasonOutsideHours},
		{name: "past close", start: at(2026, 3, 2, 21, 30), length: time.Hour, reason: ReasonOutsideHours},
		{name: "closed day", start: at(2026, 3, 3, 10, 0), length: time.Hour, reason: ReasonVenueClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.validator.Validate(context.Background(), Check{
				Court:       c,
				RequesterID: "user-1",
				Slots:       oneSlot(tt.start, tt.length),
			})
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			assertConflict(t, err, h.cal.Date(tt.start), tt.reason)
		})
	}
}

func TestValidateNoOpeningHoursMeansClosed(t *testing.T) {
	c := testCourt()
	c.Venue.OpeningHours = nil
	h := newHarness()

	_, err := h.validator.Validate(context.Background(), Check{
		Court:       c,
		RequesterID: "user-1",
		Slots:       oneSlot(at(2026, 3, 2, 10, 0), time.Hour),
	})
	assertConflict(t, err, "2026-03-02", ReasonVenueClosed)
}

func TestValidateExcludesOwnRow(t *testing.T) {
	start := at(2026, 3, 2, 18, 0)
	h := newHarness()
	r := h.repo.seed(holdOf("user-1", StatusConfirmed, start))

	_, err := h.validator.Validate(context.Background(), Check{
		Court:           testCourt(),
		RequesterID:     "user-1",
		Slots:           oneSlot(start.Add(30*time.Minute), time.Hour),
		ExcludeID:       r.ID,
		StrictOwnership: true,
	})
	assert.NoError(t, err)
}

func TestValidateLookupFailure(t *testing.T) {
	h := newHarness()
	h.sessions.err = errors.New("connection reset by peer")

	_, err := h.validator.Validate(context.Background(), Check{
		Court:       testCourt(),
		RequesterID: "user-1",
		Slots:       oneSlot(at(2026, 3, 2, 18, 0), time.Hour),
	})
	require.Error(t, err)
	var be *BookingError
	assert.False(t, errors.As(err, &be))
}

func TestAvailability(t *testing.T) {
	c := testCourt()
	c.Venue.OpeningHours = court.OpeningHours{"monday": {Open: "08:00", Close: "12:00"}}
	day := at(2026, 3, 2, 0, 0)

	h := newHarness()
	h.repo.seed(holdOf("user-2", StatusConfirmed, at(2026, 3, 2, 9, 0)))
	h.repo.seed(holdOf("user-1", StatusPendingPayment, at(2026, 3, 2, 10, 0)))
	h.repo.seed(holdOf("user-2", StatusCancelled, at(2026, 3, 2, 8, 0)))
	h.sessions.sessions = []*queuesession.Session{{
		CourtID: "court-1", StartTime: at(2026, 3, 2, 11, 0), EndTime: at(2026, 3, 2, 12, 0),
		Status: queuesession.StatusOpen, ApprovalStatus: queuesession.ApprovalPending,
	}}

	slots, err := h.validator.Availability(context.Background(), c, day, "user-1")
	require.NoError(t, err)
	require.Len(t, slots, 4)

	got := make([]bool, len(slots))
	for i, s := range slots {
		got[i] = s.Available
		assert.Equal(t, c.HourlyRate, s.Price)
		assert.Equal(t, time.Hour, s.EndTime.Sub(s.StartTime))
	}
	assert.Equal(t, []bool{true, false, true, false}, got)
	assert.True(t, slots[0].StartTime.Equal(at(2026, 3, 2, 8, 0)))

	// Another user sees the pending hold as taken.
	slots, err = h.validator.Availability(context.Background(), c, day, "user-3")
	require.NoError(t, err)
	assert.False(t, slots[2].Available)
}

func TestAvailabilityDropsStartedSlotsAndClosedDays(t *testing.T) {
	c := testCourt()
	h := newHarness()
	h.clock.Set(at(2026, 3, 2, 20, 30))

	slots, err := h.validator.Availability(context.Background(), c, at(2026, 3, 2, 0, 0), "user-1")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.True(t, slots[0].StartTime.Equal(at(2026, 3, 2, 21, 0)))

	c.Venue.OpeningHours = court.OpeningHours{}
	slots, err = h.validator.Availability(context.Background(), c, at(2026, 3, 3, 0, 0), "user-1")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestAvailabilityMatchesValidatePastGrace(t *testing.T) {
	c := testCourt()
	h := newHarness()
	start := at(2026, 3, 2, 21, 0)

	// Inside the grace window the slot is both listed and bookable.
	h.clock.Set(start.Add(20 * time.Second))
	slots, err := h.validator.Availability(context.Background(), c, at(2026, 3, 2, 0, 0), "user-1")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.True(t, slots[0].StartTime.Equal(start))
	assert.True(t, slots[0].Available)

	_, err = h.validator.Validate(context.Background(), Check{
		Court: c, RequesterID: "user-1", Slots: oneSlot(start, time.Hour),
	})
	require.NoError(t, err)

	// Past the grace window both drop it.
	h.clock.Set(start.Add(40 * time.Second))
	slots, err = h.validator.Availability(context.Background(), c, at(2026, 3, 2, 0, 0), "user-1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].StartTime.Equal(at(2026, 3, 2, 22, 0)))

	_, err = h.validator.Validate(context.Background(), Check{
		Court: c, RequesterID: "user-1", Slots: oneSlot(start, time.Hour),
	})
	require.ErrorIs(t, err, ErrPastTimeRequested)
}
