// Package timeutil holds the time primitives the scheduling engine is built
// on: tolerant ISO-8601 instant parsing, wall-clock (HH:MM) values,
// round-up-to-interval snapping, and overnight-aware clock spans.
//
// Instants are naive local times: the wire format carries no offset (a
// trailing "Z" and fractional seconds are stripped before parsing) and all
// computation happens in a single implied timezone.
package timeutil

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	instantFormat      = "2006-01-02T15:04:05"
	instantShortFormat = "2006-01-02T15:04"
	clockFormat        = "15:04"
)

const MinutesPerDay = 24 * 60

// ParseInstant parses an ISO-8601 timestamp, with or without a seconds
// component. A trailing "Z" and fractional seconds are stripped first.
func ParseInstant(s string) (time.Time, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	raw = strings.TrimSuffix(raw, "Z")
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}
	if t, err := time.ParseInLocation(instantFormat, raw, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(instantShortFormat, raw, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// FormatInstant renders t in the wire format (seconds, no offset).
func FormatInstant(t time.Time) string {
	return t.Format(instantFormat)
}

// Clock is a time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(clockFormat, strings.TrimSpace(s))
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// MustClock is for tests and package-level constants with known-good input.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// Minutes returns the clock as minutes since midnight.
func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

// On anchors the clock on day's calendar date.
func (c Clock) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

func (c Clock) Before(o Clock) bool { return c.Minutes() < o.Minutes() }
func (c Clock) After(o Clock) bool  { return c.Minutes() > o.Minutes() }

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ClockOf extracts the time of day from an instant.
func ClockOf(t time.Time) Clock { return Clock{Hour: t.Hour(), Minute: t.Minute()} }

// RoundUpTo snaps t to the next multiple of the interval. An already-aligned
// time is returned unchanged; otherwise the minute is rounded up, carrying
// into the next hour (or day) as needed.
func RoundUpTo(t time.Time, intervalMinutes int) time.Time {
	if intervalMinutes <= 0 {
		return t
	}
	rem := t.Minute() % intervalMinutes
	if rem == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t
	}
	base := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	up := (t.Minute()/intervalMinutes + 1) * intervalMinutes
	return base.Add(time.Duration(up) * time.Minute)
}

// Span is a time-of-day range. End <= Start denotes an overnight span
// (e.g. 22:00-06:00 crosses midnight).
type Span struct {
	Start Clock
	End   Clock
}

func (s Span) Overnight() bool { return s.End.Minutes() <= s.Start.Minutes() }

// Contains reports whether the clock falls inside [Start, End), wrapping
// across midnight for overnight spans.
func (s Span) Contains(c Clock) bool {
	m := c.Minutes()
	if s.Overnight() {
		return m >= s.Start.Minutes() || m < s.End.Minutes()
	}
	return m >= s.Start.Minutes() && m < s.End.Minutes()
}

// ContainsRange reports whether the whole clock range [from, to] lies inside
// the span. The right edge is inclusive so a slot ending exactly at the
// span's end still counts as inside.
func (s Span) ContainsRange(from, to Clock) bool {
	start, end := s.Start.Minutes(), s.End.Minutes()
	f, t := from.Minutes(), to.Minutes()
	if !s.Overnight() {
		return f >= start && t <= end && f <= t
	}
	// Normalize onto a timeline that starts at span start.
	shift := func(m int) int { return ((m - start) + MinutesPerDay) % MinutesPerDay }
	spanLen := shift(end)
	if spanLen == 0 {
		spanLen = MinutesPerDay
	}
	sf, st := shift(f), shift(t)
	if st < sf {
		st += MinutesPerDay
	}
	return sf <= spanLen && st <= spanLen
}

// Expand widens the span by d on both sides, clamping wrap-around.
func (s Span) Expand(d time.Duration) Span {
	m := int(d / time.Minute)
	start := ((s.Start.Minutes() - m) + MinutesPerDay) % MinutesPerDay
	end := (s.End.Minutes() + m) % MinutesPerDay
	return Span{
		Start: Clock{Hour: start / 60, Minute: start % 60},
		End:   Clock{Hour: end / 60, Minute: end % 60},
	}
}

// DayStart truncates t to midnight of its calendar day.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayEnd is the last schedulable instant of t's calendar day (23:59).
func DayEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// DateKey returns a comparable calendar-date key (YYYY-MM-DD).
func DateKey(t time.Time) string { return t.Format("2006-01-02") }

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching boundaries do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
