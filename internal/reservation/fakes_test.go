package reservation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nekogravitycat/court-reservation-engine/internal/clock"
	"github.com/nekogravitycat/court-reservation-engine/internal/court"
	"github.com/nekogravitycat/court-reservation-engine/internal/discount"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/errs"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/money"
	"github.com/nekogravitycat/court-reservation-engine/internal/pricing"
	"github.com/nekogravitycat/court-reservation-engine/internal/queuesession"
	"github.com/nekogravitycat/court-reservation-engine/internal/recurrence"
)

var (
	manila  = time.FixedZone("PHT", 8*60*60)
	testNow = time.Date(2026, 2, 20, 9, 0, 0, 0, manila) // Friday

	errDiskFull = errors.New("could not extend file: no space left on device")
)

// memRepo is an in-memory Repository. With enforceOverlap set it behaves like the
// storage exclusion constraint.
type memRepo struct {
	mu             sync.Mutex
	rows           map[string]*Reservation
	seq            int
	inserts        int
	failInsertAt   int
	failCancel     bool
	enforceOverlap bool
	txCalls        int
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]*Reservation)}
}

func (m *memRepo) seed(r *Reservation) *Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if r.ID == "" {
		r.ID = fmt.Sprintf("seed-%d", m.seq)
	}
	c := *r
	m.rows[r.ID] = &c
	return r
}

func (m *memRepo) sorted() []*Reservation {
	out := make([]*Reservation, 0, len(m.rows))
	for _, r := range m.rows {
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (m *memRepo) active(courtID string) []*Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Reservation
	for _, r := range m.sorted() {
		if r.CourtID == courtID && r.Status.IsCalendarOccupying() {
			out = append(out, r)
		}
	}
	return out
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *r
	return &c, nil
}

func (m *memRepo) List(_ context.Context, f Filter) ([]*Reservation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Reservation
	for _, r := range m.sorted() {
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *memRepo) FindOverlapping(_ context.Context, courtID string, start, end time.Time, excludeID string) ([]*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Reservation
	for _, r := range m.sorted() {
		if r.CourtID == courtID && r.ID != excludeID && r.Status.IsCalendarOccupying() && r.Overlaps(start, end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) SumGroupPending(_ context.Context, groupID, userID string) (*GroupTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gt := &GroupTotal{RecurrenceGroupID: groupID}
	for _, r := range m.rows {
		if r.RecurrenceGroupID != nil && *r.RecurrenceGroupID == groupID && r.UserID == userID && r.Status == StatusPendingPayment {
			gt.Count++
			gt.Total += r.TotalAmount
		}
	}
	return gt, nil
}

func (m *memRepo) Insert(_ context.Context, r *Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.failInsertAt > 0 && m.inserts == m.failInsertAt {
		return errDiskFull
	}
	if m.enforceOverlap {
		for _, o := range m.rows {
			if o.CourtID == r.CourtID && o.Status.IsCalendarOccupying() && o.Overlaps(r.StartTime, r.EndTime) {
				return errs.Mark(errors.New("conflicting key value violates exclusion constraint"), ErrSlotTaken)
			}
		}
	}
	m.seq++
	r.ID = fmt.Sprintf("res-%d", m.seq)
	r.CreatedAt = testNow
	r.UpdatedAt = testNow
	c := *r
	m.rows[r.ID] = &c
	return nil
}

func (m *memRepo) Cancel(_ context.Context, id string, from []Status, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCancel {
		return errors.New("connection refused")
	}
	r, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	for _, s := range from {
		if r.Status == s {
			r.Status = StatusCancelled
			r.Metadata.CancellationReason = reason
			r.Metadata.CancelledAt = &at
			return nil
		}
	}
	return ErrStatusChanged
}

func (m *memRepo) Reinstate(_ context.Context, id string, to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != StatusCancelled {
		return ErrStatusChanged
	}
	r.Status = to
	r.Metadata.CancellationReason = ""
	r.Metadata.CancelledAt = nil
	return nil
}

func (m *memRepo) Reschedule(_ context.Context, id string, start, end time.Time, deadline *time.Time, from RescheduleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || !r.Status.IsReschedulable() {
		return ErrStatusChanged
	}
	if m.enforceOverlap {
		for _, o := range m.rows {
			if o.ID != id && o.CourtID == r.CourtID && o.Status.IsCalendarOccupying() && o.Overlaps(start, end) {
				return errs.Mark(errors.New("conflicting key value violates exclusion constraint"), ErrSlotTaken)
			}
		}
	}
	r.StartTime = start
	r.EndTime = end
	r.CashPaymentDeadline = deadline
	r.Metadata.RescheduledFrom = &from
	return nil
}

func (m *memRepo) WithinTx(_ context.Context, fn func(w Writer) error) error {
	m.mu.Lock()
	m.txCalls++
	m.mu.Unlock()
	return fn(m)
}

type memSessions struct {
	sessions []*queuesession.Session
	err      error
}

func (m *memSessions) FindOverlapping(_ context.Context, courtID string, start, end time.Time) ([]*queuesession.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*queuesession.Session
	for _, s := range m.sessions {
		if s.CourtID == courtID && s.StartTime.Before(end) && s.EndTime.After(start) {
			out = append(out, s)
		}
	}
	return out, nil
}

type memCourts struct {
	courts map[string]*court.Court
}

func (m *memCourts) GetByID(_ context.Context, id string) (*court.Court, error) {
	c, ok := m.courts[id]
	if !ok {
		return nil, court.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

type noDiscounts struct{}

func (noDiscounts) Calculate(_ context.Context, in discount.Input) (*discount.Result, error) {
	return &discount.Result{FinalPrice: in.BasePrice}, nil
}

type recordedEvent struct {
	key     string
	payload any
}

type memPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *memPublisher) PublishJSON(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, recordedEvent{key: key, payload: v})
	return nil
}

func (p *memPublisher) Close() error { return nil }

func everyDay(open, closing string) court.OpeningHours {
	h := court.OpeningHours{}
	for d := 0; d < 7; d++ {
		h[court.DayName(d)] = court.DayHours{Open: open, Close: closing}
	}
	return h
}

func testCourt() *court.Court {
	return &court.Court{
		ID:         "court-1",
		VenueID:    "venue-1",
		Name:       "Court 1",
		HourlyRate: money.FromMajor(300),
		IsActive:   true,
		Venue: court.Venue{
			ID:           "venue-1",
			Name:         "Makati Sports Center",
			OpeningHours: everyDay("06:00", "23:00"),
		},
	}
}

// at returns the given civil time in the business timezone.
func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, manila)
}

func oneSlot(start time.Time, d time.Duration) []recurrence.Slot {
	return []recurrence.Slot{{Start: start, End: start.Add(d)}}
}

type harness struct {
	repo      *memRepo
	sessions  *memSessions
	courts    *memCourts
	publisher *memPublisher
	clock     *clock.FixedClock
	cal       *clock.Calendar
	validator *Validator
	svc       Service
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	validator ValidatorConfig
	service   ServiceConfig
	fee       pricing.FeePolicy
}

func withValidatorConfig(cfg ValidatorConfig) harnessOption {
	return func(h *harnessConfig) { h.validator = cfg }
}

func withServiceConfig(cfg ServiceConfig) harnessOption {
	return func(h *harnessConfig) { h.service = cfg }
}

func withFee(p pricing.FeePolicy) harnessOption {
	return func(h *harnessConfig) { h.fee = p }
}

func newHarness(opts ...harnessOption) *harness {
	hc := harnessConfig{validator: DefaultValidatorConfig()}
	for _, o := range opts {
		o(&hc)
	}

	h := &harness{
		repo:      newMemRepo(),
		sessions:  &memSessions{},
		courts:    &memCourts{courts: map[string]*court.Court{"court-1": testCourt()}},
		publisher: &memPublisher{},
		clock:     clock.NewFixedClock(testNow),
		cal:       clock.NewCalendarIn(manila),
	}
	logger := zerolog.Nop()
	h.validator = NewValidator(h.repo, h.sessions, h.cal, h.clock, hc.validator, nil, logger)
	h.svc = NewService(Deps{
		Repo:         h.repo,
		Courts:       court.NewService(h.courts),
		Expander:     recurrence.NewExpander(h.cal, 0),
		Validator:    h.validator,
		Quoter:       pricing.NewResolver(noDiscounts{}, pricing.StaticFeeSource(hc.fee), h.cal, h.clock, logger),
		Orchestrator: NewOrchestrator(h.cal, h.clock, nil, logger),
		Publisher:    h.publisher,
		Calendar:     h.cal,
		Clock:        h.clock,
		Logger:       logger,
	}, hc.service)
	return h
}

var nopLogger = zerolog.Nop()

func newExpander(h *harness) *recurrence.Expander {
	return recurrence.NewExpander(h.cal, 0)
}

func threeMondays() []recurrence.Slot {
	var out []recurrence.Slot
	for i := 0; i < 3; i++ {
		s := at(2026, 3, 2+7*i, 18, 0)
		out = append(out, recurrence.Slot{Start: s, End: s.Add(time.Hour), WeekIndex: i})
	}
	return out
}

func flatQuote(n int) *pricing.Quote {
	per := money.FromMajor(300)
	return &pricing.Quote{
		BasePrice:    per * money.Money(n),
		FinalPrice:   per * money.Money(n),
		SlotCount:    n,
		PerSlotCourt: per,
		PerSlotTotal: per,
		GrandTotal:   per * money.Money(n),
	}
}

// racingRepo lets a competing row appear between validation and the write.
type racingRepo struct {
	*memRepo
	afterInserts     int
	beforeReschedule bool
	row              *Reservation
	done             bool
	written          int
}

func (r *racingRepo) Insert(ctx context.Context, res *Reservation) error {
	if err := r.memRepo.Insert(ctx, res); err != nil {
		return err
	}
	r.written++
	if !r.done && r.afterInserts > 0 && r.written == r.afterInserts {
		r.done = true
		r.memRepo.seed(r.row)
	}
	return nil
}

func (r *racingRepo) Reschedule(ctx context.Context, id string, start, end time.Time, deadline *time.Time, from RescheduleRecord) error {
	if r.beforeReschedule && !r.done {
		r.done = true
		r.memRepo.seed(r.row)
	}
	return r.memRepo.Reschedule(ctx, id, start, end, deadline, from)
}

func (r *racingRepo) WithinTx(_ context.Context, fn func(w Writer) error) error {
	return fn(r)
}

type cancelFailingRepo struct {
	*memRepo
}

func (r *cancelFailingRepo) Cancel(context.Context, string, []Status, string, time.Time) error {
	return errors.New("connection refused")
}
