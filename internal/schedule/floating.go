package schedule

import (
	"time"

	"tempora/internal/model"
	"tempora/internal/timeutil"
	"tempora/pkg/logx"
)

// FloatingRequest describes a flexible task that must land somewhere inside
// [Earliest, Deadline].
type FloatingRequest struct {
	Title     string
	Category  model.Category
	Priority  model.Priority
	Duration  time.Duration
	Earliest  time.Time
	Deadline  time.Time
	Preferred model.Window
	Notes     string
}

// Placer positions floating tasks. It walks calendar days from the earliest
// start to the deadline and runs the full four-phase planner on each day
// before advancing; the first day that yields a slot wins. This is greedy
// on purpose: it cannot return the globally best slot across the whole
// window, but most tasks place within the first few days and a full scan of
// every day is the expensive path.
type Placer struct {
	idx   *ConflictIndex
	prefs model.Preferences
	log   logx.Logger
}

func NewPlacer(idx *ConflictIndex, prefs model.Preferences, log logx.Logger) *Placer {
	return &Placer{idx: idx, prefs: prefs, log: log}
}

// Place returns the placed (uncommitted) event, or a *ValidationError for a
// malformed request, or a *NoSlotError when no day up to and including the
// deadline's date has room.
func (p *Placer) Place(req FloatingRequest) (model.Event, error) {
	if req.Duration <= 0 {
		return model.Event{}, validationf("duration must be positive")
	}
	if req.Earliest.IsZero() || req.Deadline.IsZero() {
		return model.Event{}, validationf("earliest start and deadline are required")
	}
	if !req.Deadline.After(req.Earliest) {
		return model.Event{}, validationf("deadline must be after earliest start")
	}

	planner := NewPlanner(p.idx, p.log)
	bound := Window{Start: req.Earliest, End: req.Deadline}
	lastErr := &NoSlotError{}

	for day := timeutil.DayStart(req.Earliest); !day.After(timeutil.DayStart(req.Deadline)); day = day.AddDate(0, 0, 1) {
		dayBound := Window{Start: day, End: timeutil.DayEnd(day)}.Clip(bound)
		if dayBound.Empty() {
			continue
		}
		slot, phase, err := planner.Plan(Request{
			Bound:    dayBound,
			Duration: req.Duration,
			Event: model.Event{
				Title:     req.Title,
				Category:  req.Category,
				Priority:  req.Priority,
				Preferred: req.Preferred,
			},
			Prefs: p.prefs,
		})
		if err != nil {
			if nse, ok := err.(*NoSlotError); ok {
				lastErr = nse
				continue
			}
			return model.Event{}, err
		}

		p.log.Debug("floating task placed",
			logx.String("title", req.Title),
			logx.Time("start", slot.Start),
			logx.String("phase", phase.String()))

		return model.Event{
			Title:     req.Title,
			Category:  req.Category,
			Priority:  req.Priority,
			Start:     slot.Start,
			End:       slot.End,
			Kind:      model.KindFloating,
			Notes:     req.Notes,
			Preferred: req.Preferred,
		}, nil
	}
	return model.Event{}, lastErr
}
