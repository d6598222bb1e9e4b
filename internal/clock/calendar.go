package clock

import (
	"fmt"
	"time"
)

const (
	DefaultTimezone = "Asia/Manila"
	dateLayout      = "2006-01-02"
)

// Calendar converts instants into the civil calendar of one fixed business timezone.
// Every weekday, hour and date decision in the engine goes through a Calendar.
type Calendar struct {
	loc *time.Location
}

// NewCalendar loads the named zone. If tzdata is missing on the host it falls back
// to a fixed +08:00 offset, which matches Asia/Manila (no DST).
func NewCalendar(name string) *Calendar {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = time.FixedZone("PHT", 8*60*60)
	}
	return &Calendar{loc: loc}
}

// NewCalendarIn binds a Calendar to an existing location.
func NewCalendarIn(loc *time.Location) *Calendar {
	return &Calendar{loc: loc}
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Weekday returns 0 (Sunday) through 6 (Saturday) in the business timezone.
func (c *Calendar) Weekday(t time.Time) int {
	return int(t.In(c.loc).Weekday())
}

// Hour returns the hour of day in the business timezone.
func (c *Calendar) Hour(t time.Time) int {
	return t.In(c.loc).Hour()
}

// Date returns the civil date as YYYY-MM-DD.
func (c *Calendar) Date(t time.Time) string {
	return t.In(c.loc).Format(dateLayout)
}

// StartOfDay returns civil midnight of the day containing t.
func (c *Calendar) StartOfDay(t time.Time) time.Time {
	lt := t.In(c.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, c.loc)
}

// AddDays moves t by n civil days, keeping its wall-clock time.
func (c *Calendar) AddDays(t time.Time, n int) time.Time {
	return t.In(c.loc).AddDate(0, 0, n)
}

// ParseDate parses YYYY-MM-DD as civil midnight.
func (c *Calendar) ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// At returns the instant at minutes past civil midnight of day.
func (c *Calendar) At(day time.Time, minutes int) time.Time {
	d := c.StartOfDay(day)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, minutes, 0, 0, c.loc)
}

// MinuteOfDay returns the minutes elapsed since civil midnight.
func (c *Calendar) MinuteOfDay(t time.Time) int {
	lt := t.In(c.loc)
	return lt.Hour()*60 + lt.Minute()
}
