package schedule

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"tempora/internal/model"
	"tempora/internal/timeutil"
	"tempora/pkg/logx"
)

// DefaultHorizonDays is how far ahead a recurring series is materialized.
const DefaultHorizonDays = 30

// ExpandResult is the outcome of one series expansion. Instances are the
// placed events (not yet committed); Skipped lists dates where no slot
// existed even at the full-day phase; PhaseCounts are fallback statistics.
type ExpandResult struct {
	Instances   []model.Event
	Skipped     []time.Time
	PhaseCounts map[Phase]int
}

// Expander turns a recurring template into dated instances. Instance
// placement is independent per date except for the shared conflict index,
// which each success is appended to so siblings never collide.
type Expander struct {
	idx   *ConflictIndex
	prefs model.Preferences
	log   logx.Logger
}

func NewExpander(idx *ConflictIndex, prefs model.Preferences, log logx.Logger) *Expander {
	return &Expander{idx: idx, prefs: prefs, log: log}
}

// Expand iterates the calendar dates the template's frequency rule selects
// between the series start and start+horizonDays (inclusive), and plans one
// instance per date. A date with no slot goes to Skipped and the series
// continues; one missed instance never aborts the expansion.
func (x *Expander) Expand(tpl model.RecurringTemplate, horizonDays int) (ExpandResult, error) {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	start := timeutil.DayStart(tpl.SeriesStart)
	return x.ExpandRange(tpl, start, start.AddDate(0, 0, horizonDays), nil)
}

// ExpandRange plans instances only for rule dates inside [from, until].
// The frequency rule stays anchored at the series start, so weekly and
// biweekly series keep their weekday and parity no matter where the
// range begins. Dates whose DateKey is in exclude are not planned at
// all; the horizon roll passes the dates that already hold an instance.
func (x *Expander) ExpandRange(tpl model.RecurringTemplate, from, until time.Time, exclude map[string]bool) (ExpandResult, error) {
	if err := tpl.Validate(); err != nil {
		return ExpandResult{}, &ValidationError{Msg: err.Error()}
	}

	anchor := timeutil.DayStart(tpl.SeriesStart)
	from = timeutil.DayStart(from)
	if from.Before(anchor) {
		from = anchor
	}
	rule, err := frequencyRule(tpl.Frequency, anchor, until)
	if err != nil {
		return ExpandResult{}, err
	}

	result := ExpandResult{PhaseCounts: make(map[Phase]int)}
	planner := NewPlanner(x.idx, x.log)

	for _, date := range rule.Between(from, until, true) {
		day := timeutil.DayStart(date)
		if exclude[timeutil.DateKey(day)] {
			continue
		}
		req := Request{
			Bound:    Window{Start: day, End: timeutil.DayEnd(day)},
			Duration: tpl.Duration(),
			Event: model.Event{
				Title:     tpl.Title,
				Category:  tpl.Category,
				Priority:  tpl.Priority,
				Preferred: tpl.Preferred,
			},
			Prefs: x.prefs,
		}
		slot, phase, err := planner.Plan(req)
		if err != nil {
			result.Skipped = append(result.Skipped, day)
			x.log.Warn("recurring instance skipped",
				logx.String("title", tpl.Title),
				logx.Time("date", day),
				logx.Err(err))
			continue
		}

		instance := model.Event{
			Title:     tpl.Title,
			Category:  tpl.Category,
			Priority:  tpl.Priority,
			Start:     slot.Start,
			End:       slot.End,
			Kind:      model.KindRecurring,
			ParentID:  tpl.ID,
			Locked:    false,
			Notes:     tpl.Notes,
			Preferred: tpl.Preferred,
		}
		x.idx.Add(instance)
		result.Instances = append(result.Instances, instance)
		result.PhaseCounts[phase]++
	}

	x.log.Info("recurring series expanded",
		logx.String("title", tpl.Title),
		logx.String("frequency", string(tpl.Frequency)),
		logx.Int("instances", len(result.Instances)),
		logx.Int("skipped", len(result.Skipped)),
		logx.Int("exact", result.PhaseCounts[PhaseExact]),
		logx.Int("expanded", result.PhaseCounts[PhaseExpanded]),
		logx.Int("work_hours", result.PhaseCounts[PhaseWorkHours]),
		logx.Int("full_day", result.PhaseCounts[PhaseFullDay]))

	return result, nil
}

// frequencyRule compiles a frequency into an RRULE anchored at the series
// start: daily; weekdays Mon-Fri; weekly on the start's weekday; biweekly
// (every other week from the start week); or the 1st of each month.
func frequencyRule(f model.Frequency, start, until time.Time) (*rrule.RRule, error) {
	opt := rrule.ROption{Dtstart: start, Until: until}
	switch f {
	case model.FreqDaily:
		opt.Freq = rrule.DAILY
	case model.FreqWeekdays:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}
	case model.FreqWeekly:
		opt.Freq = rrule.WEEKLY
	case model.FreqBiweekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
	case model.FreqMonthlyFirst:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = []int{1}
	default:
		return nil, fmt.Errorf("unsupported frequency %q", f)
	}
	return rrule.NewRRule(opt)
}
