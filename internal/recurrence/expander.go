package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nekogravitycat/court-reservation-engine/internal/clock"
)

const DefaultMaxWeeks = 52

var (
	// ErrNoSlots means the request could not produce a single slot.
	ErrNoSlots = errors.New("no slots generated")
	// ErrInvalid marks a malformed request. Wrapped errors carry the detail.
	ErrInvalid = errors.New("invalid recurrence request")
)

// Request describes one booking instance and how it repeats.
type Request struct {
	Start    time.Time
	End      time.Time
	Weeks    int
	Weekdays []int // 0 = Sunday; empty means the weekday of Start
}

// Slot is one expanded occurrence.
type Slot struct {
	Start     time.Time
	End       time.Time
	WeekIndex int
}

func (s Slot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Overlaps uses half-open intervals: touching slots do not overlap.
func (s Slot) Overlaps(start, end time.Time) bool {
	return s.Start.Before(end) && s.End.After(start)
}

type Expander struct {
	cal      *clock.Calendar
	maxWeeks int
}

func NewExpander(cal *clock.Calendar, maxWeeks int) *Expander {
	if maxWeeks <= 0 {
		maxWeeks = DefaultMaxWeeks
	}
	return &Expander{cal: cal, maxWeeks: maxWeeks}
}

// Expand turns req into a sorted, non-overlapping list of slots.
func (e *Expander) Expand(req Request) ([]Slot, error) {
	if req.Start.IsZero() || req.End.IsZero() || !req.End.After(req.Start) {
		return nil, ErrNoSlots
	}

	weeks := req.Weeks
	if weeks == 0 {
		weeks = 1
	}
	if weeks < 0 || weeks > e.maxWeeks {
		return nil, fmt.Errorf("%w: weeks must be between 1 and %d", ErrInvalid, e.maxWeeks)
	}

	days, err := NormalizeWeekdays(req.Weekdays)
	if err != nil {
		return nil, err
	}
	anchor := e.cal.Weekday(req.Start)
	if len(days) == 0 {
		days = []int{anchor}
	}

	duration := req.End.Sub(req.Start)
	slots := make([]Slot, 0, weeks*len(days))

	for i := 0; i < weeks; i++ {
		for _, day := range days {
			offset := (day - anchor + 7) % 7
			start := e.cal.AddDays(req.Start, i*7+offset)
			if start.Before(req.Start) {
				continue
			}
			slots = append(slots, Slot{
				Start:     start.UTC(),
				End:       start.Add(duration).UTC(),
				WeekIndex: i,
			})
		}
	}

	sort.SliceStable(slots, func(a, b int) bool {
		return slots[a].Start.Before(slots[b].Start)
	})

	for i := 1; i < len(slots); i++ {
		if slots[i].Start.Before(slots[i-1].End) {
			return nil, fmt.Errorf("%w: occurrences on %s and %s overlap",
				ErrInvalid, e.cal.Date(slots[i-1].Start), e.cal.Date(slots[i].Start))
		}
	}

	if len(slots) == 0 {
		return nil, ErrNoSlots
	}
	return slots, nil
}

// NormalizeWeekdays deduplicates and sorts weekday indexes.
func NormalizeWeekdays(days []int) ([]int, error) {
	seen := make(map[int]struct{}, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("%w: weekday %d out of range", ErrInvalid, d)
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Ints(out)
	return out, nil
}

// IsRecurring reports whether the expansion belongs in a recurrence group.
func IsRecurring(slots []Slot, weekdays []int) bool {
	if len(slots) > 1 {
		return true
	}
	days, err := NormalizeWeekdays(weekdays)
	return err == nil && len(days) > 1
}
