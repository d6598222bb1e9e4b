package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nekogravitycat/court-reservation-engine/internal/clock"
	"github.com/nekogravitycat/court-reservation-engine/internal/discount"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/money"
)

var ErrInvalidInput = errors.New("invalid pricing input")

// DiscountCalculator resolves discounts for a batch price.
type DiscountCalculator interface {
	Calculate(ctx context.Context, in discount.Input) (*discount.Result, error)
}

type QuoteInput struct {
	VenueID         string
	CourtID         string
	HourlyRate      money.Money
	SlotDuration    time.Duration
	SlotCount       int
	RecurrenceWeeks int
	FirstStart      time.Time
	LastStart       time.Time
	// ClientTotal is what the caller displayed. It is compared, never used.
	ClientTotal *money.Money
}

// Quote is the authoritative price of a batch and its per-slot decomposition.
type Quote struct {
	BasePrice      money.Money
	FinalPrice     money.Money // court total after discounts
	TotalDiscount  money.Money
	Discounts      []discount.Applied
	DiscountReason string
	SlotCount      int

	PerSlotCourt    money.Money
	PerSlotDiscount money.Money
	PerSlotFee      money.Money
	PerSlotTotal    money.Money
	FeeEnabled      bool
	FeePercentage   float64

	GrandTotal money.Money // PerSlotTotal * SlotCount
}

type Resolver struct {
	discounts DiscountCalculator
	fees      FeeSource
	cal       *clock.Calendar
	clock     clock.Clock
	logger    zerolog.Logger
}

func NewResolver(discounts DiscountCalculator, fees FeeSource, cal *clock.Calendar, clk clock.Clock, logger zerolog.Logger) *Resolver {
	return &Resolver{
		discounts: discounts,
		fees:      fees,
		cal:       cal,
		clock:     clk,
		logger:    logger,
	}
}

// Quote recomputes the batch price from the court rate. Caller-supplied amounts are ignored.
func (r *Resolver) Quote(ctx context.Context, in QuoteInput) (*Quote, error) {
	if in.SlotCount <= 0 || in.SlotDuration <= 0 || in.HourlyRate < 0 {
		return nil, ErrInvalidInput
	}

	base := in.HourlyRate.Scale(in.SlotDuration.Hours() * float64(in.SlotCount))

	weeks := in.RecurrenceWeeks
	if weeks <= 0 {
		weeks = 1
	}
	res, err := r.discounts.Calculate(ctx, discount.Input{
		VenueID:         in.VenueID,
		CourtID:         in.CourtID,
		StartDate:       r.cal.Date(in.FirstStart),
		EndDate:         r.cal.Date(in.LastStart),
		RecurrenceWeeks: weeks,
		DaysInAdvance:   int(in.FirstStart.Sub(r.clock.Now()) / (24 * time.Hour)),
		BasePrice:       base,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve discounts failed: %w", err)
	}

	policy, err := r.fees.FeePolicy(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve platform fee failed: %w", err)
	}

	q := &Quote{
		BasePrice:      base,
		FinalPrice:     res.FinalPrice,
		TotalDiscount:  res.TotalDiscount,
		Discounts:      res.Discounts,
		DiscountReason: res.Reason(),
		SlotCount:      in.SlotCount,
		PerSlotCourt:   res.FinalPrice.Split(in.SlotCount),
		FeeEnabled:     policy.Enabled,
	}
	if res.TotalDiscount > 0 {
		q.PerSlotDiscount = res.TotalDiscount.Split(in.SlotCount)
	}
	if policy.Enabled && policy.Percentage > 0 {
		q.FeePercentage = policy.Percentage
		q.PerSlotFee = q.PerSlotCourt.Percent(policy.Percentage)
	}
	q.PerSlotTotal = q.PerSlotCourt + q.PerSlotFee
	q.GrandTotal = q.PerSlotTotal * money.Money(in.SlotCount)

	if in.ClientTotal != nil && *in.ClientTotal != q.GrandTotal && *in.ClientTotal != q.FinalPrice {
		r.logger.Warn().
			Str("court_id", in.CourtID).
			Str("client_total", in.ClientTotal.String()).
			Str("server_total", q.GrandTotal.String()).
			Msg("client price hint differs from server price")
	}

	return q, nil
}
