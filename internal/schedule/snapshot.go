package schedule

import (
	"time"

	"tempora/internal/model"
	"tempora/internal/timeutil"
)

// Snapshot is the mutable working set one optimization run owns: immutable
// anchors plus incrementally appended placements, with per-day totals of
// scheduled minutes. It is passed by reference, never shared across runs,
// and discarded when the run's result is produced.
type Snapshot struct {
	days    []time.Time // midnights of the optimization range, in order
	minutes map[string]int
	idx     *ConflictIndex
	placed  []model.Event
}

// NewSnapshot seeds a snapshot covering [rangeStart, rangeEnd] (calendar
// days, inclusive) with anchor events. Anchor minutes count toward daily
// load only for days inside the range.
func NewSnapshot(rangeStart, rangeEnd time.Time, anchors []model.Event) *Snapshot {
	s := &Snapshot{
		minutes: make(map[string]int),
		idx:     NewConflictIndex(anchors),
	}
	for d := timeutil.DayStart(rangeStart); !d.After(rangeEnd); d = d.AddDate(0, 0, 1) {
		s.days = append(s.days, d)
		s.minutes[timeutil.DateKey(d)] = 0
	}
	for _, ev := range anchors {
		s.account(ev)
	}
	return s
}

func (s *Snapshot) account(ev model.Event) {
	key := timeutil.DateKey(ev.Start)
	if _, ok := s.minutes[key]; ok {
		s.minutes[key] += int(ev.Duration() / time.Minute)
	}
}

// Append adds a placed event to the working set.
func (s *Snapshot) Append(ev model.Event) {
	s.idx.Add(ev)
	s.placed = append(s.placed, ev)
	s.account(ev)
}

// LeastLoadedDay picks the day with the minimum total scheduled minutes;
// ties go to the earliest day. Total duration, not event count, is the
// balancing signal: one 8-hour block and eight 1-hour blocks weigh the same.
func (s *Snapshot) LeastLoadedDay() time.Time {
	best := s.days[0]
	bestLoad := s.minutes[timeutil.DateKey(best)]
	for _, d := range s.days[1:] {
		if load := s.minutes[timeutil.DateKey(d)]; load < bestLoad {
			best, bestLoad = d, load
		}
	}
	return best
}

// MinutesOn returns the scheduled minutes accounted to a day.
func (s *Snapshot) MinutesOn(day time.Time) int {
	return s.minutes[timeutil.DateKey(day)]
}

// Days returns the range days in order. The slice is shared.
func (s *Snapshot) Days() []time.Time { return s.days }

// Index exposes the conflict index over anchors plus placed events.
func (s *Snapshot) Index() *ConflictIndex { return s.idx }

// Events returns anchors plus placements in start order (the simulated
// schedule a successful optimization hands back).
func (s *Snapshot) Events() []model.Event { return s.idx.Events() }
