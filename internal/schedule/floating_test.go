package schedule

import (
	"errors"
	"testing"
	"time"

	"tempora/internal/model"
	"tempora/internal/timeutil"
)

func TestPlaceFirstFeasibleDayWins(t *testing.T) {
	t.Parallel()

	// Monday is fully booked, Tuesday has room: the task lands on Tuesday
	// even though Wednesday would be completely empty.
	idx := NewConflictIndex([]model.Event{
		fixedEvent(t, "mon", "offsite", model.CategoryWork, "2025-06-02T00:00", "2025-06-02T23:59"),
		fixedEvent(t, "tue", "standup", model.CategoryMeeting, "2025-06-03T09:00", "2025-06-03T09:30"),
	})
	placer := NewPlacer(idx, testPrefs(), testLog())

	ev, err := placer.Place(FloatingRequest{
		Title:    "write report",
		Category: model.CategoryWork,
		Priority: model.PriorityHigh,
		Duration: 2 * time.Hour,
		Earliest: mustTime(t, "2025-06-02T08:00"),
		Deadline: mustTime(t, "2025-06-04T18:00"),
	})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if got := timeutil.DateKey(ev.Start); got != "2025-06-03" {
		t.Errorf("placed on %s, want 2025-06-03", got)
	}
	if ev.Kind != model.KindFloating {
		t.Errorf("kind = %s, want %s", ev.Kind, model.KindFloating)
	}
}

func TestPlaceRespectsEarliestAndDeadline(t *testing.T) {
	t.Parallel()

	placer := NewPlacer(NewConflictIndex(nil), testPrefs(), testLog())
	earliest := mustTime(t, "2025-06-02T14:00")
	deadline := mustTime(t, "2025-06-02T17:00")

	ev, err := placer.Place(FloatingRequest{
		Title:    "errand",
		Category: model.CategoryPersonal,
		Priority: model.PriorityLow,
		Duration: time.Hour,
		Earliest: earliest,
		Deadline: deadline,
	})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if ev.Start.Before(earliest) {
		t.Errorf("start %s before earliest %s", ev.Start, earliest)
	}
	if ev.End.After(deadline) {
		t.Errorf("end %s after deadline %s", ev.End, deadline)
	}
}

func TestPlaceNoRoomBeforeDeadline(t *testing.T) {
	t.Parallel()

	idx := NewConflictIndex([]model.Event{
		fixedEvent(t, "a", "booked", model.CategoryWork, "2025-06-02T00:00", "2025-06-02T23:59"),
	})
	placer := NewPlacer(idx, testPrefs(), testLog())

	_, err := placer.Place(FloatingRequest{
		Title:    "task",
		Category: model.CategoryPersonal,
		Priority: model.PriorityMedium,
		Duration: time.Hour,
		Earliest: mustTime(t, "2025-06-02T08:00"),
		Deadline: mustTime(t, "2025-06-02T20:00"),
	})
	var nse *NoSlotError
	if !errors.As(err, &nse) {
		t.Fatalf("err = %v, want *NoSlotError", err)
	}
}

func TestPlaceValidation(t *testing.T) {
	t.Parallel()

	placer := NewPlacer(NewConflictIndex(nil), testPrefs(), testLog())
	base := FloatingRequest{
		Title:    "task",
		Category: model.CategoryPersonal,
		Priority: model.PriorityMedium,
		Duration: time.Hour,
		Earliest: mustTime(t, "2025-06-02T08:00"),
		Deadline: mustTime(t, "2025-06-03T18:00"),
	}

	tests := []struct {
		name   string
		mutate func(*FloatingRequest)
	}{
		{"zero duration", func(r *FloatingRequest) { r.Duration = 0 }},
		{"missing earliest", func(r *FloatingRequest) { r.Earliest = time.Time{} }},
		{"missing deadline", func(r *FloatingRequest) { r.Deadline = time.Time{} }},
		{"deadline before earliest", func(r *FloatingRequest) { r.Deadline = r.Earliest.Add(-time.Hour) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)
			_, err := placer.Place(req)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("err = %v, want *ValidationError", err)
			}
		})
	}
}

func TestPlaceUsesPreferredWindow(t *testing.T) {
	t.Parallel()

	placer := NewPlacer(NewConflictIndex(nil), testPrefs(), testLog())
	ev, err := placer.Place(FloatingRequest{
		Title:     "gym",
		Category:  model.CategoryRecreational,
		Priority:  model.PriorityMedium,
		Duration:  time.Hour,
		Earliest:  mustTime(t, "2025-06-02T08:00"),
		Deadline:  mustTime(t, "2025-06-04T22:00"),
		Preferred: preferred("18:00", "20:00"),
	})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if h := ev.Start.Hour(); h < 18 || h >= 20 {
		t.Errorf("start hour = %d, want inside 18-20", h)
	}
	if got := timeutil.DateKey(ev.Start); got != "2025-06-02" {
		t.Errorf("placed on %s, want the first day", got)
	}
}
