package schedule

import (
	"time"

	"tempora/internal/model"
	"tempora/internal/timeutil"
)

// Scan granularity and the cap on candidates considered per window. The cap
// bounds worst-case work on long windows; 50 candidates at 15-minute steps
// already covers half a day.
const (
	scanStep      = 15 * time.Minute
	maxCandidates = 50
)

// Scoring weights. A preferred-window hit dominates; work alignment,
// spacing, and category fit break the remaining ties.
const (
	scorePreferredExact    = 40
	scorePreferredExpanded = 20
	scoreWorkAligned       = 30
	scoreWorkMisaligned    = -20
	scoreWellSpaced        = 20
	scoreCramped           = -10
	scoreCategoryFit       = 10

	wideGap  = 15 * time.Minute
	tightGap = 5 * time.Minute
)

// Canonical meal bands used for the Meal category bonus.
var mealBands = []timeutil.Span{
	{Start: timeutil.Clock{Hour: 7}, End: timeutil.Clock{Hour: 9}},
	{Start: timeutil.Clock{Hour: 12}, End: timeutil.Clock{Hour: 13}},
	{Start: timeutil.Clock{Hour: 18}, End: timeutil.Clock{Hour: 20}},
}

// Slot is a candidate [Start, Start+duration) placement with its score.
type Slot struct {
	Start time.Time
	End   time.Time
	Score int
}

// SlotFinder scans a bounded window for the best-scoring conflict-free
// slot. It is a pure function over the index it is given.
type SlotFinder struct {
	idx *ConflictIndex
}

func NewSlotFinder(idx *ConflictIndex) *SlotFinder {
	return &SlotFinder{idx: idx}
}

// FindBestSlot scans the window at 15-minute steps, keeps up to 50
// conflict-free candidates, scores each, and returns the highest-scoring
// one (earliest start wins ties, by construction of the scan order).
// Candidate starts are snapped to the user's rounding interval before the
// conflict test, so the returned slot is already aligned. Slots that start
// or end inside sleep hours are never offered.
func (f *SlotFinder) FindBestSlot(w Window, duration time.Duration, ev model.Event, prefs model.Preferences) (Slot, bool) {
	if w.Empty() || duration <= 0 {
		return Slot{}, false
	}

	sleep := prefs.SleepSpan()
	best := Slot{Score: -1 << 30}
	found := false
	candidates := 0
	var lastStart time.Time

	for t := w.Start; candidates < maxCandidates; t = t.Add(scanStep) {
		start := timeutil.RoundUpTo(t, prefs.RoundToMinutes)
		end := start.Add(duration)
		if end.After(w.End) {
			break
		}
		if !lastStart.IsZero() && !start.After(lastStart) {
			continue // rounding collapsed this step onto the previous candidate
		}
		if sleep.Contains(timeutil.ClockOf(start)) || sleep.Contains(timeutil.ClockOf(end)) {
			continue
		}
		if !f.idx.Free(Window{Start: start, End: end}, ev.ID) {
			continue
		}

		lastStart = start
		candidates++
		score := f.scoreSlot(start, end, ev, prefs)
		if !found || score > best.Score {
			best = Slot{Start: start, End: end, Score: score}
			found = true
		}
	}
	return best, found
}

func (f *SlotFinder) scoreSlot(start, end time.Time, ev model.Event, prefs model.Preferences) int {
	score := 0
	startC := timeutil.ClockOf(start)
	endC := timeutil.ClockOf(end)

	// Preferred-window match.
	if span, ok := ev.Preferred.Span(); ok {
		switch {
		case span.ContainsRange(startC, endC):
			score += scorePreferredExact
		case span.Expand(time.Hour).ContainsRange(startC, endC):
			score += scorePreferredExpanded
		}
	}

	// Work-hours alignment matters only for Work and Meeting.
	switch ev.Category {
	case model.CategoryWork, model.CategoryMeeting:
		if prefs.WorkSpan().ContainsRange(startC, endC) {
			score += scoreWorkAligned
		} else {
			score += scoreWorkMisaligned
		}
	case model.CategoryPersonal, model.CategoryRecreational, model.CategoryMeal:
	}

	score += f.spacingScore(start, end, ev.ID)
	score += categoryFitScore(ev.Category, start, end, prefs)
	return score
}

// spacingScore rewards breathing room: both neighbor gaps over 15 minutes
// earn the bonus, either gap under 5 minutes takes the penalty.
func (f *SlotFinder) spacingScore(start, end time.Time, excludeID string) int {
	before, after := f.neighborGaps(start, end, excludeID)
	if before > wideGap && after > wideGap {
		return scoreWellSpaced
	}
	if before < tightGap || after < tightGap {
		return scoreCramped
	}
	return 0
}

// neighborGaps measures the distance to the closest event ending at or
// before start and the closest starting at or after end. A missing
// neighbor counts as an unbounded gap.
func (f *SlotFinder) neighborGaps(start, end time.Time, excludeID string) (before, after time.Duration) {
	const unbounded = 365 * 24 * time.Hour
	before, after = unbounded, unbounded
	for _, other := range f.idx.Events() {
		if excludeID != "" && other.ID == excludeID {
			continue
		}
		if !other.End.After(start) {
			if g := start.Sub(other.End); g < before {
				before = g
			}
		}
		if !other.Start.Before(end) {
			if g := other.Start.Sub(end); g < after {
				after = g
			}
			break // events are start-ordered; later ones only widen the gap
		}
	}
	return before, after
}

func categoryFitScore(cat model.Category, start, end time.Time, prefs model.Preferences) int {
	switch cat {
	case model.CategoryMeal:
		s, e := timeutil.ClockOf(start).Minutes(), timeutil.ClockOf(end).Minutes()
		if e <= s {
			e = timeutil.MinutesPerDay // slot runs past midnight
		}
		for _, band := range mealBands {
			if s < band.End.Minutes() && e > band.Start.Minutes() {
				return scoreCategoryFit
			}
		}
	case model.CategoryRecreational:
		wd := start.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			return scoreCategoryFit
		}
		if timeutil.ClockOf(start).Minutes() >= prefs.WorkEnd.Minutes() {
			return scoreCategoryFit
		}
	case model.CategoryWork, model.CategoryMeeting, model.CategoryPersonal:
	}
	return 0
}
