package reservation

import (
	"context"
	"time"

	"github.com/nekogravitycat/court-reservation-engine/internal/court"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/money"
	"github.com/nekogravitycat/court-reservation-engine/internal/recurrence"
)

const availabilityStep = 60

type AvailableSlot struct {
	StartTime time.Time   `json:"start_time"`
	EndTime   time.Time   `json:"end_time"`
	Available bool        `json:"available"`
	Price     money.Money `json:"price"`
}

// Availability lists the hourly slots of one civil day and whether each could be booked
// as a single non-recurring request by requesterID. Slots that Validate would reject as
// past are omitted.
func (v *Validator) Availability(ctx context.Context, c *court.Court, day time.Time, requesterID string) ([]AvailableSlot, error) {
	hours, ok := c.Venue.OpeningHours.For(v.cal.Weekday(day))
	if !ok {
		return []AvailableSlot{}, nil
	}
	open, closing, err := hours.Minutes()
	if err != nil {
		return []AvailableSlot{}, nil
	}

	dayOpen := v.cal.At(day, open)
	dayClose := v.cal.At(day, closing)
	held, sessions, err := v.lookup(ctx, c.ID, dayOpen, dayClose, "")
	if err != nil {
		return nil, err
	}

	cutoff := v.pastCutoff()
	out := make([]AvailableSlot, 0, (closing-open)/availabilityStep)
	for m := open; m+availabilityStep <= closing; m += availabilityStep {
		start := v.cal.At(day, m)
		end := v.cal.At(day, m+availabilityStep)
		if start.Before(cutoff) {
			continue
		}

		slot := AvailableSlot{StartTime: start, EndTime: end, Price: c.HourlyRate, Available: true}
		for _, s := range sessions {
			if s.StartTime.Before(end) && s.EndTime.After(start) {
				slot.Available = false
				break
			}
		}
		if slot.Available {
			var overlapping []*Reservation
			for _, r := range held {
				if r.Overlaps(start, end) {
					overlapping = append(overlapping, r)
				}
			}
			if len(overlapping) > 0 {
				slot.Available = v.replaceable(overlapping, Check{
					RequesterID: requesterID,
					Slots:       []recurrence.Slot{{Start: start, End: end}},
				})
			}
		}
		out = append(out, slot)
	}
	return out, nil
}
