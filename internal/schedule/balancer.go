package schedule

import (
	"sort"
	"time"

	"tempora/internal/model"
	"tempora/internal/timeutil"
	"tempora/pkg/logx"
)

// MaxBalanceRangeDays caps one optimization run. Seven days keeps the
// simulation cheap and matches the week view the balancer exists for.
const MaxBalanceRangeDays = 7

// BalanceReason is the modification reason recorded for every move.
const BalanceReason = "Workload balancing"

// Modification records one repositioned event.
type Modification struct {
	EventID  string
	OldStart time.Time
	NewStart time.Time
	Reason   string
}

// BalanceResult is the outcome of one optimization run. When Failed is
// non-empty and the run was not confirmed, NeedsConfirmation is set and the
// caller must not apply anything: the engine never applies a mix of
// successes and failures without an explicit signal.
type BalanceResult struct {
	Modifications     []Modification
	Schedule          []model.Event // simulated schedule: anchors + placements
	Succeeded         []model.Event
	Failed            []model.Event
	NeedsConfirmation bool
}

// Ordering tiers for the balancer's processing order, defined once so
// tie-breaking stays deterministic and testable. Lower places first.
var (
	priorityTier = map[model.Priority]int{
		model.PriorityHigh:   0,
		model.PriorityMedium: 1,
		model.PriorityLow:    2,
	}
	kindTier = map[model.Kind]int{
		model.KindFixed:     0,
		model.KindRecurring: 1,
		model.KindFloating:  2,
	}
	categoryTier = map[model.Category]int{
		model.CategoryWork:         0,
		model.CategoryMeeting:      1,
		model.CategoryRecreational: 2,
		model.CategoryMeal:         3,
		model.CategoryPersonal:     4,
	}
)

// Balancer evens out workload across a bounded date range by greedily
// repositioning movable events onto the least-loaded day.
type Balancer struct {
	prefs model.Preferences
	now   func() time.Time
	log   logx.Logger
}

func NewBalancer(prefs model.Preferences, log logx.Logger) *Balancer {
	return &Balancer{prefs: prefs, now: time.Now, log: log}
}

// WithNow overrides the clock, for tests.
func (b *Balancer) WithNow(now func() time.Time) *Balancer {
	b.now = now
	return b
}

// Optimize simulates the given events over [rng.Start, rng.End]:
//
//  1. Locked events and events already started stay as immutable anchors.
//  2. Movable events are processed in priority/type/category tier order.
//  3. Each one goes to the day with the least total scheduled minutes,
//     placed there by the full progressive-fallback planner.
//  4. A per-event planning failure is recorded and the batch continues.
//
// The run mutates nothing outside its own snapshot; committing the
// modifications is the caller's job.
func (b *Balancer) Optimize(rng Window, events []model.Event, confirmPartial bool) (BalanceResult, error) {
	now := b.now()
	if rng.Empty() {
		return BalanceResult{}, validationf("invalid range: end must be after start")
	}
	if rng.End.Before(now) {
		return BalanceResult{}, validationf("cannot optimize a range entirely in the past")
	}
	rangeDays := int(timeutil.DayStart(rng.End).Sub(timeutil.DayStart(rng.Start))/(24*time.Hour)) + 1
	if rangeDays > MaxBalanceRangeDays {
		return BalanceResult{}, validationf("range covers %d days, maximum is %d", rangeDays, MaxBalanceRangeDays)
	}

	anchors, movable := partition(events, now)
	sortMovable(movable)

	snap := NewSnapshot(rng.Start, rng.End, anchors)
	result := BalanceResult{}

	for _, ev := range movable {
		day := snap.LeastLoadedDay()
		planner := NewPlanner(snap.Index(), b.log)
		slot, _, err := planner.Plan(Request{
			Bound:    Window{Start: day, End: timeutil.DayEnd(day)},
			Duration: ev.Duration(),
			Event:    ev,
			Prefs:    b.prefs,
		})
		if err != nil {
			result.Failed = append(result.Failed, ev)
			b.log.Warn("balancer could not place event",
				logx.String("event", ev.Title),
				logx.Err(err))
			continue
		}

		moved := ev
		moved.Start = slot.Start
		moved.End = slot.End
		snap.Append(moved)
		result.Succeeded = append(result.Succeeded, moved)

		if !moved.Start.Equal(ev.Start) {
			result.Modifications = append(result.Modifications, Modification{
				EventID:  ev.ID,
				OldStart: ev.Start,
				NewStart: moved.Start,
				Reason:   BalanceReason,
			})
		}
	}

	result.Schedule = snap.Events()
	if len(result.Failed) > 0 && !confirmPartial {
		result.NeedsConfirmation = true
	}

	b.log.Info("workload balancing finished",
		logx.Int("moved", len(result.Modifications)),
		logx.Int("succeeded", len(result.Succeeded)),
		logx.Int("failed", len(result.Failed)))
	return result, nil
}

// partition splits events into immutable anchors (locked, or already
// started) and movable candidates. Every kind of event is movable; the
// switch is exhaustive so a new kind cannot silently skip classification.
func partition(events []model.Event, now time.Time) (anchors, movable []model.Event) {
	for _, ev := range events {
		if ev.Locked || ev.Start.Before(now) {
			anchors = append(anchors, ev)
			continue
		}
		switch ev.Kind {
		case model.KindFixed, model.KindRecurring, model.KindFloating:
			movable = append(movable, ev)
		default:
			anchors = append(anchors, ev) // unknown kind: never move it
		}
	}
	return anchors, movable
}

// sortMovable orders by priority tier, then type tier, then category tier,
// then original start time as the final deterministic tie-break.
func sortMovable(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if pa, pb := priorityTier[a.Priority], priorityTier[b.Priority]; pa != pb {
			return pa < pb
		}
		if ka, kb := kindTier[a.Kind], kindTier[b.Kind]; ka != kb {
			return ka < kb
		}
		if ca, cb := categoryTier[a.Category], categoryTier[b.Category]; ca != cb {
			return ca < cb
		}
		return a.Start.Before(b.Start)
	})
}
