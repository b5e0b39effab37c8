package schedule

import (
	"fmt"
	"time"

	"tempora/internal/model"
	"tempora/internal/timeutil"
)

// Report is the outcome of validating one event against the current
// schedule and preferences. Errors block saving; warnings and suggestions
// are advisory.
type Report struct {
	Valid       bool     `json:"valid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

const (
	minSaneDuration = 5 * time.Minute
	maxSaneDuration = 8 * time.Hour
)

// Validate checks ev for structural problems, conflicts against idx and
// soft issues against prefs. The event's own ID is excluded from conflict
// checks so re-validating an existing event does not flag itself.
func Validate(ev model.Event, idx *ConflictIndex, prefs model.Preferences) Report {
	r := Report{Valid: true}

	if err := ev.Validate(); err != nil {
		r.Errors = append(r.Errors, err.Error())
	}

	if !ev.Start.IsZero() && !ev.End.IsZero() && ev.End.After(ev.Start) {
		if conflicts := idx.Conflicts(Window{Start: ev.Start, End: ev.End}, ev.ID); len(conflicts) > 0 {
			for _, c := range conflicts {
				r.Errors = append(r.Errors, fmt.Sprintf("overlaps %q (%s to %s)",
					c.Title, timeutil.FormatInstant(c.Start), timeutil.FormatInstant(c.End)))
			}
		}

		d := ev.Duration()
		if d < minSaneDuration {
			r.Warnings = append(r.Warnings, fmt.Sprintf("very short event: %s", d))
		}
		if d > maxSaneDuration {
			r.Warnings = append(r.Warnings, fmt.Sprintf("very long event: %s", d))
		}

		sleep := prefs.SleepSpan()
		if sleep.Contains(timeutil.ClockOf(ev.Start)) || sleep.Contains(timeutil.ClockOf(ev.End)) {
			r.Warnings = append(r.Warnings, "event falls within sleep hours")
		}

		if ev.Category == model.CategoryWork || ev.Category == model.CategoryMeeting {
			if !prefs.WorkSpan().ContainsRange(timeutil.ClockOf(ev.Start), timeutil.ClockOf(ev.End)) {
				r.Suggestions = append(r.Suggestions,
					fmt.Sprintf("%s events are usually scheduled within work hours (%s to %s)",
						ev.Category, prefs.WorkStart, prefs.WorkEnd))
			}
		}
	}

	r.Valid = len(r.Errors) == 0
	return r
}
