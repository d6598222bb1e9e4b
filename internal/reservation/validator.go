package reservation

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nekogravitycat/court-reservation-engine/internal/clock"
	"github.com/nekogravitycat/court-reservation-engine/internal/court"
	"github.com/nekogravitycat/court-reservation-engine/internal/metrics"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/errs"
	"github.com/nekogravitycat/court-reservation-engine/internal/queuesession"
	"github.com/nekogravitycat/court-reservation-engine/internal/recurrence"
)

const DefaultPastGrace = 30 * time.Second

// SelfHoldPolicy controls when a requester's own holds stop blocking a new booking.
type SelfHoldPolicy struct {
	// AllowSingleReplace lets a single non-recurring request replace the requester's
	// own pending_payment holds. Recurring requests are always blocked.
	AllowSingleReplace bool
}

type ValidatorConfig struct {
	PastGrace time.Duration
	SelfHold  SelfHoldPolicy
}

func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		PastGrace: DefaultPastGrace,
		SelfHold:  SelfHoldPolicy{AllowSingleReplace: true},
	}
}

type overlapFinder interface {
	FindOverlapping(ctx context.Context, courtID string, start, end time.Time, excludeID string) ([]*Reservation, error)
}

type Check struct {
	Court       *court.Court
	RequesterID string
	Slots       []recurrence.Slot
	Recurring   bool
	// ExcludeID skips one reservation, the one being rescheduled.
	ExcludeID string
	// StrictOwnership disables the self-hold exception.
	StrictOwnership bool
}

// Verdict is the outcome of a passing check.
type Verdict struct {
	// Superseded are the requester's own holds the new booking replaces.
	Superseded []*Reservation
}

type Validator struct {
	reservations overlapFinder
	sessions     queuesession.Repository
	cal          *clock.Calendar
	clock        clock.Clock
	cfg          ValidatorConfig
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

func NewValidator(
	reservations overlapFinder,
	sessions queuesession.Repository,
	cal *clock.Calendar,
	clk clock.Clock,
	cfg ValidatorConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Validator {
	if cfg.PastGrace < 0 {
		cfg.PastGrace = 0
	}
	return &Validator{
		reservations: reservations,
		sessions:     sessions,
		cal:          cal,
		clock:        clk,
		cfg:          cfg,
		metrics:      m,
		logger:       logger,
	}
}

// Validate checks every slot before anything is written and stops at the first failure.
func (v *Validator) Validate(ctx context.Context, chk Check) (*Verdict, error) {
	if chk.Court == nil || len(chk.Slots) == 0 {
		return nil, ErrNoSlotsGenerated
	}

	cutoff := v.pastCutoff()
	for _, s := range chk.Slots {
		if s.Start.Before(cutoff) {
			return nil, &BookingError{Kind: KindPastTimeRequested, Date: v.cal.Date(s.Start)}
		}
	}

	verdict := &Verdict{}
	seen := make(map[string]struct{})
	for _, s := range chk.Slots {
		if reason := v.outsideHours(chk.Court, s.Start, s.End); reason != "" {
			return nil, v.conflict(ctx, chk, s, reason)
		}

		held, sessions, err := v.lookup(ctx, chk.Court.ID, s.Start, s.End, chk.ExcludeID)
		if err != nil {
			return nil, err
		}
		if len(sessions) > 0 {
			return nil, v.conflict(ctx, chk, s, ReasonQueueSession)
		}
		if len(held) == 0 {
			continue
		}
		if !v.replaceable(held, chk) {
			return nil, v.conflict(ctx, chk, s, ReasonReservation)
		}
		for _, r := range held {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
			verdict.Superseded = append(verdict.Superseded, r)
		}
	}
	return verdict, nil
}

// pastCutoff is the earliest start a new booking may have.
func (v *Validator) pastCutoff() time.Time {
	return v.clock.Now().Add(-v.cfg.PastGrace)
}

// lookup runs the reservation and queue-session queries for one interval concurrently.
func (v *Validator) lookup(ctx context.Context, courtID string, start, end time.Time, excludeID string) ([]*Reservation, []*queuesession.Session, error) {
	var (
		held     []*Reservation
		sessions []*queuesession.Session
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := v.reservations.FindOverlapping(gctx, courtID, start, end, excludeID)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if r.Status.IsCalendarOccupying() && r.Overlaps(start, end) {
				held = append(held, r)
			}
		}
		return nil
	})
	g.Go(func() error {
		rows, err := v.sessions.FindOverlapping(gctx, courtID, start, end)
		if err != nil {
			return err
		}
		for _, s := range rows {
			if s.Occupies() && s.StartTime.Before(end) && s.EndTime.After(start) {
				sessions = append(sessions, s)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, errs.Wrap(err, "conflict lookup failed")
	}
	return held, sessions, nil
}

// replaceable reports whether every held row is a stale hold the requester may replace.
func (v *Validator) replaceable(held []*Reservation, chk Check) bool {
	if chk.StrictOwnership || chk.Recurring || len(chk.Slots) != 1 || !v.cfg.SelfHold.AllowSingleReplace {
		return false
	}
	if chk.RequesterID == "" {
		return false
	}
	for _, r := range held {
		if r.UserID != chk.RequesterID || !r.Status.IsEarlyHold() {
			return false
		}
	}
	return true
}

// outsideHours returns a conflict reason when [start, end) is not inside the venue's opening window.
func (v *Validator) outsideHours(c *court.Court, start, end time.Time) string {
	hours, ok := c.Venue.OpeningHours.For(v.cal.Weekday(start))
	if !ok {
		return ReasonVenueClosed
	}
	open, closing, err := hours.Minutes()
	if err != nil {
		return ReasonVenueClosed
	}
	from := v.cal.MinuteOfDay(start)
	to := from + int(end.Sub(start)/time.Minute)
	if from < open || to > closing {
		return ReasonOutsideHours
	}
	return ""
}

func (v *Validator) conflict(ctx context.Context, chk Check, s recurrence.Slot, reason string) error {
	v.metrics.IncConflict(reason)
	loggerFrom(ctx, v.logger).Debug().
		Str("court_id", chk.Court.ID).
		Str("requester_id", chk.RequesterID).
		Time("slot_start", s.Start).
		Str("reason", reason).
		Msg("slot conflict")
	return slotConflict(v.cal.Date(s.Start), reason)
}
