package model

import (
	"strings"
	"testing"
	"time"

	"tempora/internal/timeutil"
)

func validEvent() Event {
	start := time.Date(2025, 11, 3, 14, 0, 0, 0, time.Local)
	return Event{
		Title:    "Team Sync",
		Category: CategoryMeeting,
		Priority: PriorityMedium,
		Start:    start,
		End:      start.Add(time.Hour),
		Kind:     KindFixed,
	}
}

func TestEventValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*Event)
		wantErr string
	}{
		{name: "valid", mutate: func(e *Event) {}},
		{name: "missing title", mutate: func(e *Event) { e.Title = "" }, wantErr: "title"},
		{name: "bad category", mutate: func(e *Event) { e.Category = "Gym" }, wantErr: "category"},
		{name: "bad priority", mutate: func(e *Event) { e.Priority = "urgent" }, wantErr: "priority"},
		{name: "bad kind", mutate: func(e *Event) { e.Kind = "task" }, wantErr: "event type"},
		{name: "end before start", mutate: func(e *Event) { e.End = e.Start.Add(-time.Minute) }, wantErr: "end must be after start"},
		{name: "zero duration", mutate: func(e *Event) { e.End = e.Start }, wantErr: "end must be after start"},
		{name: "long notes", mutate: func(e *Event) { e.Notes = strings.Repeat("x", 201) }, wantErr: "notes"},
		{name: "instance without parent", mutate: func(e *Event) { e.Kind = KindRecurring }, wantErr: "parent series"},
		{name: "fixed with parent", mutate: func(e *Event) { e.ParentID = "abc" }, wantErr: "parent series"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			ev := validEvent()
			tt.mutate(&ev)
			err := ev.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestTemplateValidate(t *testing.T) {
	t.Parallel()
	tpl := RecurringTemplate{
		Title:           "Gym",
		Category:        CategoryRecreational,
		Priority:        PriorityMedium,
		DurationMinutes: 60,
		Frequency:       FreqWeekdays,
		SeriesStart:     time.Date(2025, 11, 3, 0, 0, 0, 0, time.Local),
	}
	if err := tpl.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	bad := tpl
	bad.DurationMinutes = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for zero duration")
	}
	bad = tpl
	bad.Frequency = "fortnightly"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for unknown frequency")
	}
}

func TestPreferencesValidate(t *testing.T) {
	t.Parallel()
	p := DefaultPreferences()
	if err := p.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	p.RoundToMinutes = 20
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for unsupported rounding interval")
	}
}

func TestWindowSpan(t *testing.T) {
	t.Parallel()
	start, end := timeutil.MustClock("22:00"), timeutil.MustClock("06:00")
	w := Window{Enabled: true, Start: &start, End: &end}
	span, ok := w.Span()
	if !ok {
		t.Fatal("enabled window with bounds should produce a span")
	}
	if !span.Overnight() {
		t.Fatal("22:00-06:00 should be overnight")
	}

	if _, ok := (Window{Enabled: true, Start: &start}).Span(); ok {
		t.Fatal("window missing an end must not produce a span")
	}
	if _, ok := (Window{Enabled: false, Start: &start, End: &end}).Span(); ok {
		t.Fatal("disabled window must not produce a span")
	}
}
