package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nekogravitycat/court-reservation-engine/internal/clock"
	"github.com/nekogravitycat/court-reservation-engine/internal/metrics"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/errs"
	"github.com/nekogravitycat/court-reservation-engine/internal/pricing"
	"github.com/nekogravitycat/court-reservation-engine/internal/recurrence"
)

const (
	cashDeadlineLead  = 2 * time.Hour
	cashDeadlineFloor = 30 * time.Minute

	defaultCompensationTimeout = 10 * time.Second

	reasonReplaced = "replaced by a new booking"
)

// BatchState is the saga state of one commit.
type BatchState int

const (
	StateValidated BatchState = iota
	StateWriting
	StateCommitted
	StateRollingBack
	StateAborted
)

func (s BatchState) String() string {
	switch s {
	case StateValidated:
		return "validated"
	case StateWriting:
		return "writing"
	case StateCommitted:
		return "committed"
	case StateRollingBack:
		return "rolling_back"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("BatchState(%d)", int(s))
	}
}

// Batch is a validated, priced set of rows ready to be written in order.
type Batch struct {
	CorrelationID     string
	RecurrenceGroupID *string
	Rows              []*Reservation
	Superseded        []*Reservation
}

type CommitResult struct {
	State BatchState
	IDs   []string
}

// PrepareInput is everything needed to turn validated slots into rows.
type PrepareInput struct {
	CourtID            string
	UserID             string
	Slots              []recurrence.Slot
	Recurring          bool
	Weeks              int
	DaysPerWeek        int
	Quote              *pricing.Quote
	PaymentMethod      PaymentMethod
	PaymentType        PaymentType
	DownPaymentPercent float64
	NumPlayers         int
	Notes              string
	Origin             string
	Superseded         []*Reservation
}

type Orchestrator struct {
	cal                 *clock.Calendar
	clock               clock.Clock
	metrics             *metrics.Metrics
	logger              zerolog.Logger
	compensationTimeout time.Duration
}

func NewOrchestrator(cal *clock.Calendar, clk clock.Clock, m *metrics.Metrics, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cal:                 cal,
		clock:               clk,
		metrics:             m,
		logger:              logger,
		compensationTimeout: defaultCompensationTimeout,
	}
}

// Prepare builds one pending_payment row per slot, sharing a group id when recurring.
func (o *Orchestrator) Prepare(in PrepareInput) Batch {
	b := Batch{
		CorrelationID: uuid.NewString(),
		Rows:          make([]*Reservation, 0, len(in.Slots)),
		Superseded:    in.Superseded,
	}
	if in.Recurring {
		id := uuid.NewString()
		b.RecurrenceGroupID = &id
	}

	now := o.clock.Now()
	q := in.Quote
	breakdown := &PricingBreakdown{
		CourtAmount:    q.PerSlotCourt,
		FeeAmount:      q.PerSlotFee,
		FeePercentage:  q.FeePercentage,
		DiscountAmount: q.PerSlotDiscount,
		DiscountReason: q.DiscountReason,
		Discounts:      q.Discounts,
	}

	for i, s := range in.Slots {
		row := &Reservation{
			CourtID:           in.CourtID,
			UserID:            in.UserID,
			StartTime:         s.Start,
			EndTime:           s.End,
			Status:            StatusPendingPayment,
			TotalAmount:       q.PerSlotTotal,
			DiscountApplied:   q.PerSlotDiscount,
			DiscountReason:    q.DiscountReason,
			PlatformFee:       q.PerSlotFee,
			RecurrenceGroupID: b.RecurrenceGroupID,
			PaymentType:       in.PaymentType,
			NumPlayers:        in.NumPlayers,
			Notes:             in.Notes,
			Metadata: Metadata{
				RecurrenceIndex:       i,
				RecurrenceTotal:       len(in.Slots),
				WeekIndex:             s.WeekIndex,
				WeeksTotal:            in.Weeks,
				DaysPerWeek:           in.DaysPerWeek,
				IntendedPaymentMethod: in.PaymentMethod,
				BookingOrigin:         in.Origin,
				Pricing:               breakdown,
				CorrelationID:         b.CorrelationID,
			},
		}
		if in.Recurring && in.Notes != "" {
			row.Notes = fmt.Sprintf("%s (Seq %d)", in.Notes, i+1)
		}
		if in.PaymentMethod == PaymentCash {
			deadline := CashDeadline(s.Start, now)
			row.CashPaymentDeadline = &deadline
		}
		if in.PaymentType == PaymentSplit {
			row.Metadata.DownPaymentPercentage = in.DownPaymentPercent
			row.Metadata.DownPaymentAmount = q.PerSlotTotal.Percent(in.DownPaymentPercent)
		}
		b.Rows = append(b.Rows, row)
	}
	return b
}

// CashDeadline is two hours before start, but never earlier than thirty minutes from now.
func CashDeadline(start, now time.Time) time.Time {
	deadline := start.Add(-cashDeadlineLead)
	if floor := now.Add(cashDeadlineFloor); deadline.Before(floor) {
		return floor
	}
	return deadline
}

// loggerFrom prefers the request-scoped logger carried by ctx.
func loggerFrom(ctx context.Context, fallback zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &fallback
}

// Commit writes the batch in order. If any write fails, every row already written is
// cancelled and released holds are restored before the failure is returned.
func (o *Orchestrator) Commit(ctx context.Context, w Writer, b Batch) (*CommitResult, error) {
	res := &CommitResult{State: StateValidated}
	log := loggerFrom(ctx, o.logger).With().Str("correlation_id", b.CorrelationID).Logger()

	res.State = StateWriting
	var released []*Reservation
	for _, r := range b.Superseded {
		if err := w.Cancel(ctx, r.ID, []Status{StatusPendingPayment}, reasonReplaced, o.clock.Now()); err != nil {
			o.rollback(ctx, w, b, nil, released, 0, &log)
			res.State = StateAborted
			if errs.Is(err, ErrStatusChanged) {
				// The hold was paid or cancelled after validation.
				log.Info().Str("reservation_id", r.ID).Msg("superseded hold changed state")
				return res, slotConflict(o.cal.Date(r.StartTime), ReasonReservation)
			}
			log.Error().Err(err).Str("reservation_id", r.ID).Msg("failed to release superseded hold")
			return res, storageFailure(0, b.CorrelationID, err)
		}
		released = append(released, r)
	}

	written := make([]*Reservation, 0, len(b.Rows))
	for i, r := range b.Rows {
		if err := w.Insert(ctx, r); err != nil {
			slot := i + 1
			log.Error().
				Err(err).
				Int("slot_index", slot).
				Int("slot_total", len(b.Rows)).
				Strs("stack", errs.StackLines(err, 5)).
				Msg("reservation insert failed")

			res.State = StateRollingBack
			o.rollback(ctx, w, b, written, released, slot, &log)
			res.State = StateAborted

			failure := storageFailure(slot, b.CorrelationID, err)
			if errs.Is(err, ErrSlotTaken) {
				failure.Reason = ReasonSlotTakenLate
			}
			return res, failure
		}
		written = append(written, r)
		res.IDs = append(res.IDs, r.ID)
	}

	res.State = StateCommitted
	return res, nil
}

// rollback never returns an error. Failed compensations are logged with severity high
// and left for the stale reservation sweep.
func (o *Orchestrator) rollback(ctx context.Context, w Writer, b Batch, written, released []*Reservation, failedSlot int, log *zerolog.Logger) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.compensationTimeout)
	defer cancel()

	ok := true
	reason := fmt.Sprintf("rollback: batch %s failed at slot %d", b.CorrelationID, failedSlot)
	for _, r := range written {
		if err := w.Cancel(cctx, r.ID, []Status{StatusPendingPayment}, reason, o.clock.Now()); err != nil {
			ok = false
			log.Error().
				Err(err).
				Str("severity", "high").
				Str("reservation_id", r.ID).
				Msg("compensating cancel failed, orphaned pending reservation")
		}
	}
	for _, r := range released {
		if err := w.Reinstate(cctx, r.ID, StatusPendingPayment); err != nil {
			ok = false
			log.Error().
				Err(err).
				Str("severity", "high").
				Str("reservation_id", r.ID).
				Msg("failed to restore superseded hold")
		}
	}

	o.metrics.IncRollback(ok)
	log.Warn().
		Int("cancelled", len(written)).
		Int("restored", len(released)).
		Bool("clean", ok).
		Msg("batch rolled back")
}
