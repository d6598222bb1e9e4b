package discount

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/money"
)

// Source loads active pricing adjustments.
type Source interface {
	ActiveRules(ctx context.Context, venueID string) ([]Rule, error)
	// ActiveHolidays returns holidays whose range covers [startDate, endDate].
	ActiveHolidays(ctx context.Context, venueID, startDate, endDate string) ([]Holiday, error)
}

// Catalog resolves which discounts and surcharges apply to a batch.
type Catalog struct {
	src Source
}

func NewCatalog(src Source) *Catalog {
	return &Catalog{src: src}
}

func (c *Catalog) Calculate(ctx context.Context, in Input) (*Result, error) {
	var applied []Applied

	holidays, err := c.src.ActiveHolidays(ctx, in.VenueID, in.StartDate, in.EndDate)
	if err != nil {
		return nil, fmt.Errorf("load holiday pricing failed: %w", err)
	}
	if len(holidays) > 0 {
		if a, ok := holidayAdjustment(holidays[0], in.BasePrice); ok {
			applied = append(applied, a)
		}
	}

	rules, err := c.src.ActiveRules(ctx, in.VenueID)
	if err != nil {
		return nil, fmt.Errorf("load discount rules failed: %w", err)
	}
	for _, r := range rules {
		if a, ok := ruleDiscount(r, in); ok {
			applied = append(applied, a)
		}
	}

	sort.SliceStable(applied, func(i, j int) bool {
		return applied[i].Priority > applied[j].Priority
	})

	var total money.Money
	for _, a := range applied {
		if a.IsIncrease {
			total -= a.Amount
		} else {
			total += a.Amount
		}
	}

	return &Result{
		FinalPrice:    (in.BasePrice - total).NonNegative(),
		TotalDiscount: total,
		Discounts:     applied,
	}, nil
}

// Reason joins the names of applied adjustments for storage on each reservation.
func (r *Result) Reason() string {
	if r == nil || len(r.Discounts) == 0 {
		return ""
	}
	names := make([]string, len(r.Discounts))
	for i, d := range r.Discounts {
		names[i] = d.Name
	}
	return strings.Join(names, ", ")
}

func holidayAdjustment(h Holiday, base money.Money) (Applied, bool) {
	a := Applied{Name: h.Name}

	switch {
	case h.FixedSurcharge != nil:
		a.Type = KindHolidaySurcharge
		a.IsIncrease = true
		a.Priority = holidaySurchargePriority
		a.Amount = *h.FixedSurcharge
		a.Description = fmt.Sprintf("%s PHP holiday surcharge", h.FixedSurcharge.String())
	case h.Multiplier > 1:
		a.Type = KindHolidaySurcharge
		a.IsIncrease = true
		a.Priority = holidaySurchargePriority
		a.Amount = base.Scale(h.Multiplier - 1)
		a.Description = fmt.Sprintf("%d%% holiday surcharge", int(math.Round((h.Multiplier-1)*100)))
	case h.Multiplier > 0 && h.Multiplier < 1:
		a.Type = KindSeasonal
		a.Priority = seasonalPriority
		a.Amount = base.Scale(1 - h.Multiplier)
		a.Description = fmt.Sprintf("%d%% seasonal discount", int(math.Round((1-h.Multiplier)*100)))
	default:
		return Applied{}, false
	}
	return a, a.Amount > 0
}

func ruleDiscount(r Rule, in Input) (Applied, bool) {
	if r.CourtID != "" && in.CourtID != "" && r.CourtID != in.CourtID {
		return Applied{}, false
	}
	if r.ValidFrom != "" && r.ValidFrom > in.StartDate {
		return Applied{}, false
	}
	if r.ValidUntil != "" && r.ValidUntil < in.StartDate {
		return Applied{}, false
	}

	switch r.Type {
	case KindRecurring:
		if r.MinWeeks <= 0 || in.RecurrenceWeeks < r.MinWeeks {
			return Applied{}, false
		}
	case KindEarlyBird:
		if r.AdvanceDays <= 0 || in.DaysInAdvance < r.AdvanceDays {
			return Applied{}, false
		}
	default:
		return Applied{}, false
	}

	var amount money.Money
	if r.Unit == UnitPercent {
		amount = in.BasePrice.Percent(r.Value)
	} else {
		amount = money.FromMajor(r.Value)
	}
	if amount <= 0 {
		return Applied{}, false
	}

	desc := r.Description
	if desc == "" {
		if r.Unit == UnitPercent {
			desc = fmt.Sprintf("%g%% discount", r.Value)
		} else {
			desc = fmt.Sprintf("%g PHP discount", r.Value)
		}
	}

	return Applied{
		Type:        r.Type,
		Name:        r.Name,
		Description: desc,
		Amount:      amount,
		Priority:    r.Priority,
	}, true
}
