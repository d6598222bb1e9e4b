package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/nekogravitycat/court-reservation-engine/internal/clock"
	"github.com/nekogravitycat/court-reservation-engine/internal/court"
	"github.com/nekogravitycat/court-reservation-engine/internal/events"
	"github.com/nekogravitycat/court-reservation-engine/internal/metrics"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/errs"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/money"
	"github.com/nekogravitycat/court-reservation-engine/internal/pricing"
	"github.com/nekogravitycat/court-reservation-engine/internal/recurrence"
)

const (
	DefaultRescheduleWindow = 24 * time.Hour
	defaultOrigin           = "web_checkout"
	publishTimeout          = 5 * time.Second
)

type BookRequest struct {
	CourtID         string
	UserID          string
	StartTime       time.Time
	EndTime         time.Time
	RecurrenceWeeks int
	SelectedDays    []int
	PaymentMethod   PaymentMethod
	PaymentType     PaymentType
	NumPlayers      int
	Notes           string
	Origin          string
	// ClientTotal is the total the client displayed. It is never charged.
	ClientTotal *money.Money
}

type BookResult struct {
	ReservationID       string
	RecurrenceGroupID   *string
	Count               int
	TotalAmount         money.Money
	DownPaymentRequired bool
	DownPaymentAmount   money.Money
	Reservations        []*Reservation
}

type ValidationResult struct {
	Slots      []recurrence.Slot
	Recurring  bool
	Quote      *pricing.Quote
	Superseded int
}

type Quoter interface {
	Quote(ctx context.Context, in pricing.QuoteInput) (*pricing.Quote, error)
}

type ServiceConfig struct {
	// UseTx runs each batch in one database transaction on top of the compensating saga.
	UseTx            bool
	RescheduleWindow time.Duration
	// DownPaymentPercent applies to split payments when the venue sets none.
	DownPaymentPercent float64
}

type Service interface {
	Book(ctx context.Context, req BookRequest) (*BookResult, error)
	Validate(ctx context.Context, req BookRequest) (*ValidationResult, error)
	Availability(ctx context.Context, courtID, date, requesterID string) ([]AvailableSlot, error)
	GetByID(ctx context.Context, id string) (*Reservation, error)
	List(ctx context.Context, filter Filter) ([]*Reservation, int, error)
	Cancel(ctx context.Context, id, requesterID, reason string) (*Reservation, error)
	Reschedule(ctx context.Context, id, requesterID string, newStart time.Time) (*Reservation, error)
	GroupTotal(ctx context.Context, groupID, requesterID string) (*GroupTotal, error)
}

type service struct {
	repo         Repository
	courts       court.Service
	expander     *recurrence.Expander
	validator    *Validator
	quoter       Quoter
	orchestrator *Orchestrator
	publisher    events.Publisher
	cal          *clock.Calendar
	clock        clock.Clock
	cfg          ServiceConfig
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

type Deps struct {
	Repo         Repository
	Courts       court.Service
	Expander     *recurrence.Expander
	Validator    *Validator
	Quoter       Quoter
	Orchestrator *Orchestrator
	Publisher    events.Publisher
	Calendar     *clock.Calendar
	Clock        clock.Clock
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
}

func NewService(d Deps, cfg ServiceConfig) Service {
	if cfg.RescheduleWindow <= 0 {
		cfg.RescheduleWindow = DefaultRescheduleWindow
	}
	if cfg.DownPaymentPercent <= 0 {
		cfg.DownPaymentPercent = court.DefaultDownPaymentPercent
	}
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	return &service{
		repo:         d.Repo,
		courts:       d.Courts,
		expander:     d.Expander,
		validator:    d.Validator,
		quoter:       d.Quoter,
		orchestrator: d.Orchestrator,
		publisher:    d.Publisher,
		cal:          d.Calendar,
		clock:        d.Clock,
		cfg:          cfg,
		metrics:      d.Metrics,
		logger:       d.Logger,
	}
}

// plan is a validated and priced request.
type plan struct {
	court      *court.Court
	slots      []recurrence.Slot
	weekdays   []int
	recurring  bool
	quote      *pricing.Quote
	superseded []*Reservation
}

func (s *service) plan(ctx context.Context, req *BookRequest) (*plan, error) {
	// 1. Request shape
	if req.CourtID == "" || req.UserID == "" {
		return nil, invalidRequest("court and user are required")
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = PaymentEWallet
	}
	if !req.PaymentMethod.Valid() {
		return nil, invalidRequest("unsupported payment method %q", req.PaymentMethod)
	}
	if req.PaymentType == "" {
		req.PaymentType = PaymentFull
	}
	if !req.PaymentType.Valid() {
		return nil, invalidRequest("unsupported payment type %q", req.PaymentType)
	}
	if req.NumPlayers == 0 {
		req.NumPlayers = 1
	}
	if req.NumPlayers < 0 {
		return nil, invalidRequest("number of players must be positive")
	}

	// 2. Court
	c, err := s.courts.GetBookable(ctx, req.CourtID)
	if err != nil {
		return nil, err
	}

	// 3. Expand
	slots, err := s.expander.Expand(recurrence.Request{
		Start:    req.StartTime,
		End:      req.EndTime,
		Weeks:    req.RecurrenceWeeks,
		Weekdays: req.SelectedDays,
	})
	if err != nil {
		return nil, expansionError(err)
	}
	weekdays, _ := recurrence.NormalizeWeekdays(req.SelectedDays)
	if len(weekdays) == 0 {
		weekdays = []int{s.cal.Weekday(req.StartTime)}
	}
	recurring := recurrence.IsRecurring(slots, weekdays)

	// 4. Validate every slot
	verdict, err := s.validator.Validate(ctx, Check{
		Court:       c,
		RequesterID: req.UserID,
		Slots:       slots,
		Recurring:   recurring,
	})
	if err != nil {
		return nil, err
	}

	// 5. Price
	quote, err := s.quoter.Quote(ctx, pricing.QuoteInput{
		VenueID:         c.VenueID,
		CourtID:         c.ID,
		HourlyRate:      c.HourlyRate,
		SlotDuration:    slots[0].Duration(),
		SlotCount:       len(slots),
		RecurrenceWeeks: req.RecurrenceWeeks,
		FirstStart:      slots[0].Start,
		LastStart:       slots[len(slots)-1].Start,
		ClientTotal:     req.ClientTotal,
	})
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidInput) {
			return nil, invalidRequest("court rate or duration cannot be priced")
		}
		return nil, errs.Wrap(err, "price booking failed")
	}

	return &plan{
		court:      c,
		slots:      slots,
		weekdays:   weekdays,
		recurring:  recurring,
		quote:      quote,
		superseded: verdict.Superseded,
	}, nil
}

func (s *service) Validate(ctx context.Context, req BookRequest) (*ValidationResult, error) {
	p, err := s.plan(ctx, &req)
	if err != nil {
		return nil, err
	}
	return &ValidationResult{
		Slots:      p.slots,
		Recurring:  p.recurring,
		Quote:      p.quote,
		Superseded: len(p.superseded),
	}, nil
}

func (s *service) Book(ctx context.Context, req BookRequest) (res *BookResult, err error) {
	started := time.Now()
	defer func() {
		s.metrics.ObserveBooking(started)
		s.metrics.IncBooking(outcome(err))
	}()

	p, err := s.plan(ctx, &req)
	if err != nil {
		return nil, err
	}

	downPct := 0.0
	if req.PaymentType == PaymentSplit {
		downPct = p.court.Venue.DownPaymentPercent
		if downPct <= 0 {
			downPct = s.cfg.DownPaymentPercent
		}
	}
	origin := req.Origin
	if origin == "" {
		origin = defaultOrigin
	}

	batch := s.orchestrator.Prepare(PrepareInput{
		CourtID:            p.court.ID,
		UserID:             req.UserID,
		Slots:              p.slots,
		Recurring:          p.recurring,
		Weeks:              max(req.RecurrenceWeeks, 1),
		DaysPerWeek:        len(p.weekdays),
		Quote:              p.quote,
		PaymentMethod:      req.PaymentMethod,
		PaymentType:        req.PaymentType,
		DownPaymentPercent: downPct,
		NumPlayers:         req.NumPlayers,
		Notes:              req.Notes,
		Origin:             origin,
		Superseded:         p.superseded,
	})

	var commit *CommitResult
	if s.cfg.UseTx {
		err = s.repo.WithinTx(ctx, func(w Writer) error {
			var cerr error
			commit, cerr = s.orchestrator.Commit(ctx, w, batch)
			return cerr
		})
		var be *BookingError
		if err != nil && !errors.As(err, &be) {
			err = storageFailure(0, batch.CorrelationID, err)
		}
	} else {
		commit, err = s.orchestrator.Commit(ctx, s.repo, batch)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.AddSlotsCreated(len(commit.IDs))
	result := &BookResult{
		ReservationID:     commit.IDs[0],
		RecurrenceGroupID: batch.RecurrenceGroupID,
		Count:             len(commit.IDs),
		TotalAmount:       p.quote.GrandTotal,
		Reservations:      batch.Rows,
	}
	if req.PaymentType == PaymentSplit {
		result.DownPaymentRequired = true
		result.DownPaymentAmount = p.quote.GrandTotal.Percent(downPct)
	}

	payload := events.Created{
		ReservationIDs: commit.IDs,
		CourtID:        p.court.ID,
		UserID:         req.UserID,
		Count:          result.Count,
		Total:          result.TotalAmount.String(),
		PaymentMethod:  string(req.PaymentMethod),
		OccurredAt:     s.clock.Now(),
	}
	if batch.RecurrenceGroupID != nil {
		payload.RecurrenceGroupID = *batch.RecurrenceGroupID
	}
	s.publish(ctx, events.ReservationCreated, payload)

	loggerFrom(ctx, s.logger).Info().
		Str("correlation_id", batch.CorrelationID).
		Str("court_id", p.court.ID).
		Str("user_id", req.UserID).
		Int("count", result.Count).
		Str("total", result.TotalAmount.String()).
		Msg("reservation batch committed")
	return result, nil
}

func (s *service) Availability(ctx context.Context, courtID, date, requesterID string) ([]AvailableSlot, error) {
	day, err := s.cal.ParseDate(date)
	if err != nil {
		return nil, invalidRequest("date must be YYYY-MM-DD")
	}
	c, err := s.courts.GetBookable(ctx, courtID)
	if err != nil {
		return nil, err
	}
	return s.validator.Availability(ctx, c, day, requesterID)
}

func (s *service) GetByID(ctx context.Context, id string) (*Reservation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Reservation, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Cancel(ctx context.Context, id, requesterID, reason string) (*Reservation, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != requesterID {
		return nil, ErrPermissionDenied
	}
	now := s.clock.Now()
	if !r.Status.IsCancellable() || !now.Before(r.StartTime) {
		return nil, ErrNotCancellable
	}
	if reason == "" {
		reason = "cancelled by user"
	}

	if err := s.repo.Cancel(ctx, id, []Status{r.Status}, reason, now); err != nil {
		return nil, err
	}
	s.metrics.IncCancellation()
	s.publish(ctx, events.ReservationCancelled, events.Cancelled{
		ReservationID: r.ID,
		CourtID:       r.CourtID,
		UserID:        r.UserID,
		Reason:        reason,
		OccurredAt:    now,
	})
	return s.repo.GetByID(ctx, id)
}

func (s *service) Reschedule(ctx context.Context, id, requesterID string, newStart time.Time) (*Reservation, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != requesterID {
		return nil, ErrPermissionDenied
	}
	if !r.Status.IsReschedulable() {
		return nil, ErrNotReschedulable
	}
	now := s.clock.Now()
	if r.StartTime.Sub(now) < s.cfg.RescheduleWindow {
		return nil, ErrRescheduleWindow
	}
	if newStart.IsZero() {
		return nil, invalidRequest("new start time is required")
	}

	c, err := s.courts.GetBookable(ctx, r.CourtID)
	if err != nil {
		return nil, err
	}
	newEnd := newStart.Add(r.EndTime.Sub(r.StartTime))
	if _, err := s.validator.Validate(ctx, Check{
		Court:           c,
		RequesterID:     requesterID,
		Slots:           []recurrence.Slot{{Start: newStart.UTC(), End: newEnd.UTC()}},
		ExcludeID:       r.ID,
		StrictOwnership: true,
	}); err != nil {
		return nil, err
	}

	deadline := r.CashPaymentDeadline
	if r.Metadata.IntendedPaymentMethod == PaymentCash && r.Status == StatusPendingPayment {
		d := CashDeadline(newStart, now)
		deadline = &d
	}
	from := RescheduleRecord{StartTime: r.StartTime, EndTime: r.EndTime, RescheduledAt: now}
	if err := s.repo.Reschedule(ctx, r.ID, newStart.UTC(), newEnd.UTC(), deadline, from); err != nil {
		if errs.Is(err, ErrSlotTaken) {
			return nil, slotConflict(s.cal.Date(newStart), ReasonSlotTakenLate)
		}
		return nil, err
	}

	s.metrics.IncReschedule()
	s.publish(ctx, events.ReservationRescheduled, events.Rescheduled{
		ReservationID: r.ID,
		CourtID:       r.CourtID,
		UserID:        r.UserID,
		FromStart:     r.StartTime,
		ToStart:       newStart.UTC(),
		ToEnd:         newEnd.UTC(),
		OccurredAt:    now,
	})
	return s.repo.GetByID(ctx, id)
}

func (s *service) GroupTotal(ctx context.Context, groupID, requesterID string) (*GroupTotal, error) {
	total, err := s.repo.SumGroupPending(ctx, groupID, requesterID)
	if err != nil {
		return nil, err
	}
	if total.Count == 0 {
		return nil, ErrGroupNotFound
	}
	return total, nil
}

// publish is best-effort. A broker failure never fails the request.
func (s *service) publish(ctx context.Context, key string, payload any) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishJSON(pctx, key, payload); err != nil {
		loggerFrom(ctx, s.logger).Warn().Err(err).Str("event", key).Msg("failed to publish event")
	}
}

func expansionError(err error) error {
	switch {
	case errors.Is(err, recurrence.ErrNoSlots):
		return &BookingError{Kind: KindNoSlotsGenerated, Err: err}
	case errors.Is(err, recurrence.ErrInvalid):
		return &BookingError{Kind: KindInvalidRequest, Message: err.Error(), Err: err}
	default:
		return errs.Wrap(err, "expand recurrence failed")
	}
}

func outcome(err error) string {
	if err == nil {
		return "created"
	}
	var be *BookingError
	if errors.As(err, &be) {
		return string(be.Kind)
	}
	return "error"
}
