package model

import (
	"fmt"

	"tempora/internal/timeutil"
)

// Preferences is the single per-user record of scheduling constraints.
// It is read-only input to the engine.
type Preferences struct {
	SleepStart     timeutil.Clock `json:"sleep_start"`
	SleepEnd       timeutil.Clock `json:"sleep_end"`
	WorkStart      timeutil.Clock `json:"work_start"`
	WorkEnd        timeutil.Clock `json:"work_end"`
	RoundToMinutes int            `json:"round_to_minutes"`
}

// DefaultPreferences mirrors the defaults users start with before saving
// their own: sleep 23:00-07:00, work 09:00-18:00, quarter-hour rounding.
func DefaultPreferences() Preferences {
	return Preferences{
		SleepStart:     timeutil.Clock{Hour: 23},
		SleepEnd:       timeutil.Clock{Hour: 7},
		WorkStart:      timeutil.Clock{Hour: 9},
		WorkEnd:        timeutil.Clock{Hour: 18},
		RoundToMinutes: 15,
	}
}

// SleepSpan may wrap midnight; WorkSpan never does in practice but the span
// type handles it either way.
func (p Preferences) SleepSpan() timeutil.Span {
	return timeutil.Span{Start: p.SleepStart, End: p.SleepEnd}
}

func (p Preferences) WorkSpan() timeutil.Span {
	return timeutil.Span{Start: p.WorkStart, End: p.WorkEnd}
}

func (p Preferences) Validate() error {
	switch p.RoundToMinutes {
	case 5, 10, 15, 30:
	default:
		return fmt.Errorf("round_to_minutes must be one of 5, 10, 15, 30 (got %d)", p.RoundToMinutes)
	}
	if p.WorkStart.Minutes() == p.WorkEnd.Minutes() {
		return fmt.Errorf("work hours are empty (%s-%s)", p.WorkStart, p.WorkEnd)
	}
	return nil
}
