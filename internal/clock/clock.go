package clock

import "time"

// Clock is the single source of "now" for the engine.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func NewRealClock() Clock {
	return RealClock{}
}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always reports the same instant until moved.
type FixedClock struct {
	current time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{current: t}
}

func (c *FixedClock) Now() time.Time {
	return c.current
}

func (c *FixedClock) Set(t time.Time) {
	c.current = t
}

func (c *FixedClock) Add(d time.Duration) {
	c.current = c.current.Add(d)
}

// OffsetClock shifts a base clock by a constant duration.
// Used in non-production environments to simulate future dates.
type OffsetClock struct {
	base   Clock
	offset time.Duration
}

func NewOffsetClock(base Clock, offset time.Duration) Clock {
	if offset == 0 {
		return base
	}
	return &OffsetClock{base: base, offset: offset}
}

func (c *OffsetClock) Now() time.Time {
	return c.base.Now().Add(c.offset)
}
