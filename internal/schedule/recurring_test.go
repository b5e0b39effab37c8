package schedule

import (
	"testing"
	"time"

	"tempora/internal/model"
	"tempora/internal/timeutil"
)

func weekdayTemplate(t *testing.T) model.RecurringTemplate {
	t.Helper()
	return model.RecurringTemplate{
		ID:              "tpl-1",
		Title:           "morning review",
		Category:        model.CategoryWork,
		Priority:        model.PriorityHigh,
		DurationMinutes: 30,
		Frequency:       model.FreqWeekdays,
		SeriesStart:     mustTime(t, "2025-06-02T00:00"), // Monday
		Preferred:       preferred("09:00", "10:00"),
	}
}

func TestExpandWeekdays(t *testing.T) {
	t.Parallel()

	x := NewExpander(NewConflictIndex(nil), testPrefs(), testLog())
	res, err := x.Expand(weekdayTemplate(t), 5)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(res.Instances) != 5 {
		t.Fatalf("got %d instances, want 5 (Mon-Fri)", len(res.Instances))
	}
	if len(res.Skipped) != 0 {
		t.Errorf("skipped %v, want none", res.Skipped)
	}
	for i, inst := range res.Instances {
		wantDay := mustTime(t, "2025-06-02T00:00").AddDate(0, 0, i)
		if !timeutil.SameDay(inst.Start, wantDay) {
			t.Errorf("instance %d on %s, want %s", i, timeutil.DateKey(inst.Start), timeutil.DateKey(wantDay))
		}
		if inst.Kind != model.KindRecurring {
			t.Errorf("instance %d kind = %s, want %s", i, inst.Kind, model.KindRecurring)
		}
		if inst.ParentID != "tpl-1" {
			t.Errorf("instance %d parent = %q, want tpl-1", i, inst.ParentID)
		}
	}
	if res.PhaseCounts[PhaseExact] != 5 {
		t.Errorf("exact placements = %d, want 5 on an empty calendar", res.PhaseCounts[PhaseExact])
	}
}

func TestExpandSiblingsNeverCollide(t *testing.T) {
	t.Parallel()

	idx := NewConflictIndex(nil)
	x := NewExpander(idx, testPrefs(), testLog())

	tpl := weekdayTemplate(t)
	tpl.Frequency = model.FreqDaily
	res, err := x.Expand(tpl, 3)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	for i := 1; i < len(res.Instances); i++ {
		a, b := res.Instances[i-1], res.Instances[i]
		if timeutil.Overlaps(a.Start, a.End, b.Start, b.End) {
			t.Errorf("instances %d and %d overlap", i-1, i)
		}
	}
}

func TestExpandSkipsFullDays(t *testing.T) {
	t.Parallel()

	// Tuesday is completely booked; the series must skip it and carry on.
	idx := NewConflictIndex([]model.Event{
		fixedEvent(t, "busy", "offsite", model.CategoryWork, "2025-06-03T00:00", "2025-06-03T23:59"),
	})
	x := NewExpander(idx, testPrefs(), testLog())

	res, err := x.Expand(weekdayTemplate(t), 5)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(res.Instances) != 4 {
		t.Errorf("got %d instances, want 4", len(res.Instances))
	}
	if len(res.Skipped) != 1 || timeutil.DateKey(res.Skipped[0]) != "2025-06-03" {
		t.Errorf("skipped = %v, want [2025-06-03]", res.Skipped)
	}
}

func TestExpandFrequencies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		frequency model.Frequency
		start     string
		horizon   int
		wantCount int
	}{
		{"daily over a week", model.FreqDaily, "2025-06-02T00:00", 6, 7},
		{"weekly over a month", model.FreqWeekly, "2025-06-02T00:00", 28, 5},
		{"biweekly over a month", model.FreqBiweekly, "2025-06-02T00:00", 28, 3},
		{"monthly on the 1st", model.FreqMonthlyFirst, "2025-06-15T00:00", 50, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			x := NewExpander(NewConflictIndex(nil), testPrefs(), testLog())
			tpl := weekdayTemplate(t)
			tpl.Frequency = tc.frequency
			tpl.SeriesStart = mustTime(t, tc.start)
			res, err := x.Expand(tpl, tc.horizon)
			if err != nil {
				t.Fatalf("Expand: %v", err)
			}
			if len(res.Instances) != tc.wantCount {
				t.Errorf("got %d instances, want %d", len(res.Instances), tc.wantCount)
			}
		})
	}
}

func TestExpandRangeSkipsExcludedDates(t *testing.T) {
	t.Parallel()

	// An excluded date is not planned at all: no instance, no skip
	// entry, and nothing reserved for it in the shared index.
	idx := NewConflictIndex(nil)
	x := NewExpander(idx, testPrefs(), testLog())
	tpl := weekdayTemplate(t)
	from := mustTime(t, "2025-06-02T00:00")
	res, err := x.ExpandRange(tpl, from, from.AddDate(0, 0, 4), map[string]bool{
		"2025-06-03": true,
	})
	if err != nil {
		t.Fatalf("ExpandRange: %v", err)
	}
	if len(res.Instances) != 4 {
		t.Fatalf("got %d instances, want 4 (Tue excluded)", len(res.Instances))
	}
	for _, inst := range res.Instances {
		if timeutil.DateKey(inst.Start) == "2025-06-03" {
			t.Errorf("excluded date was planned anyway: %s", inst.Start)
		}
	}
	if len(res.Skipped) != 0 {
		t.Errorf("skipped = %v; exclusion must not count as a skip", res.Skipped)
	}
	tue := Window{Start: mustTime(t, "2025-06-03T00:00"), End: mustTime(t, "2025-06-03T23:59")}
	if got := idx.Conflicts(tue, ""); len(got) != 0 {
		t.Errorf("index holds %d reservation(s) on the excluded date", len(got))
	}
}

func TestExpandRangeKeepsRuleAnchor(t *testing.T) {
	t.Parallel()

	// Resuming a weekly Monday series mid-week stays on Mondays.
	x := NewExpander(NewConflictIndex(nil), testPrefs(), testLog())
	tpl := weekdayTemplate(t)
	tpl.Frequency = model.FreqWeekly // anchored Monday 2025-06-02
	from := mustTime(t, "2025-06-04T00:00")
	res, err := x.ExpandRange(tpl, from, from.AddDate(0, 0, 14), nil)
	if err != nil {
		t.Fatalf("ExpandRange: %v", err)
	}
	if len(res.Instances) != 2 {
		t.Fatalf("got %d instances, want 2 (Jun 9 and Jun 16)", len(res.Instances))
	}
	for _, inst := range res.Instances {
		if inst.Start.Weekday() != time.Monday {
			t.Errorf("instance %s not on the anchor weekday", inst.Start)
		}
	}
}

func TestExpandRejectsInvalidTemplate(t *testing.T) {
	t.Parallel()

	x := NewExpander(NewConflictIndex(nil), testPrefs(), testLog())
	tpl := weekdayTemplate(t)
	tpl.DurationMinutes = 0
	if _, err := x.Expand(tpl, 5); err == nil {
		t.Error("invalid template accepted")
	}
}
