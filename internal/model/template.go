package model

import (
	"errors"
	"fmt"
	"time"
)

// Frequency selects which calendar dates a recurring series occurs on.
type Frequency string

const (
	FreqDaily        Frequency = "daily"
	FreqWeekdays     Frequency = "weekdays"
	FreqWeekly       Frequency = "weekly"
	FreqBiweekly     Frequency = "biweekly"
	FreqMonthlyFirst Frequency = "monthly-on-1st"
)

func (f Frequency) Valid() bool {
	switch f {
	case FreqDaily, FreqWeekdays, FreqWeekly, FreqBiweekly, FreqMonthlyFirst:
		return true
	}
	return false
}

// RecurringTemplate produces dated instances over a rolling horizon. It is
// never schedulable itself; only the instances occupy calendar time.
type RecurringTemplate struct {
	ID              string
	Title           string
	Category        Category
	Priority        Priority
	DurationMinutes int
	Frequency       Frequency
	SeriesStart     time.Time // calendar date; time of day is ignored
	Preferred       Window
	Notes           string
}

func (t RecurringTemplate) Duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}

func (t RecurringTemplate) Validate() error {
	if t.Title == "" {
		return errors.New("title is required")
	}
	if !t.Category.Valid() {
		return fmt.Errorf("invalid category %q", t.Category)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", t.Priority)
	}
	if t.DurationMinutes <= 0 {
		return errors.New("duration must be positive")
	}
	if !t.Frequency.Valid() {
		return fmt.Errorf("invalid frequency %q", t.Frequency)
	}
	if t.SeriesStart.IsZero() {
		return errors.New("series start date is required")
	}
	if len(t.Notes) > maxNotesLen {
		return fmt.Errorf("notes exceed %d characters", maxNotesLen)
	}
	return nil
}
