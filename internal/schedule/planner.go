package schedule

import (
	"time"

	"tempora/internal/model"
	"tempora/pkg/logx"
)

// Phase identifies one of the four widening search windows the planner
// tries in order. Each phase is a strict superset of the previous in time
// span, so the first phase that yields a slot is also the most preferred.
type Phase int

const (
	PhaseExact Phase = iota + 1
	PhaseExpanded
	PhaseWorkHours
	PhaseFullDay
)

func (p Phase) String() string {
	switch p {
	case PhaseExact:
		return "exact"
	case PhaseExpanded:
		return "expanded"
	case PhaseWorkHours:
		return "work_hours"
	case PhaseFullDay:
		return "full_day"
	}
	return "unknown"
}

// Request asks the planner for one placement inside Bound. Bound is
// usually a single day (recurring, balancer) or a day clipped to
// [earliest, deadline] (floating). The event carries the category and
// preferred window the phases and scoring run on; its times are ignored.
type Request struct {
	Bound    Window
	Duration time.Duration
	Event    model.Event
	Prefs    model.Preferences
}

// Planner orchestrates the slot finder across ordered, widening windows:
// exact preferred window, preferred expanded by an hour each side, work
// hours, then the full bound. Phases 1-2 are skipped when the event has no
// preferred window.
type Planner struct {
	finder *SlotFinder
	log    logx.Logger
}

func NewPlanner(idx *ConflictIndex, log logx.Logger) *Planner {
	return &Planner{finder: NewSlotFinder(idx), log: log}
}

// Plan returns the best slot of the first phase that yields one, plus the
// phase it came from. On failure it returns a *NoSlotError listing every
// phase attempted.
func (p *Planner) Plan(req Request) (Slot, Phase, error) {
	if req.Bound.Empty() {
		return Slot{}, 0, validationf("search bound is empty")
	}
	if req.Duration <= 0 {
		return Slot{}, 0, validationf("duration must be positive")
	}

	var attempted []Phase
	for _, phase := range []Phase{PhaseExact, PhaseExpanded, PhaseWorkHours, PhaseFullDay} {
		w, ok := p.phaseWindow(req, phase)
		if !ok {
			continue
		}
		attempted = append(attempted, phase)
		slot, found := p.finder.FindBestSlot(w, req.Duration, req.Event, req.Prefs)
		if found {
			if phase != PhaseExact && p.log.Enabled(logx.LevelDebug) {
				p.log.Debug("slot found via fallback",
					logx.String("title", req.Event.Title),
					logx.String("phase", phase.String()),
					logx.Time("start", slot.Start))
			}
			return slot, phase, nil
		}
	}
	return Slot{}, 0, &NoSlotError{Attempted: attempted}
}

// phaseWindow builds the absolute search window for a phase, anchored on
// the bound's starting day and clipped to the bound. ok is false when the
// phase does not apply (no preferred window) or clips to nothing.
func (p *Planner) phaseWindow(req Request, phase Phase) (Window, bool) {
	day := req.Bound.Start
	var w Window
	switch phase {
	case PhaseExact, PhaseExpanded:
		span, ok := req.Event.Preferred.Span()
		if !ok {
			return Window{}, false
		}
		if phase == PhaseExpanded {
			span = span.Expand(time.Hour)
		}
		w.Start = span.Start.On(day)
		if span.Overnight() {
			w.End = span.End.On(day.AddDate(0, 0, 1))
		} else {
			w.End = span.End.On(day)
		}
	case PhaseWorkHours:
		w.Start = req.Prefs.WorkStart.On(day)
		w.End = req.Prefs.WorkEnd.On(day)
	case PhaseFullDay:
		w = req.Bound
	}
	if phase != PhaseFullDay {
		w = w.Clip(req.Bound)
	}
	if w.Empty() {
		return Window{}, false
	}
	return w, true
}
