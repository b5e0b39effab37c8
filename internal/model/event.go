// Package model holds the calendar domain types shared by the scheduling
// engine, the stores, and the HTTP surface.
package model

import (
	"errors"
	"fmt"
	"time"

	"tempora/internal/timeutil"
)

// Category classifies what an event is for. The scheduler uses it to pick
// search windows (Work/Meeting stay inside work hours) and scoring bonuses
// (Meal bands, Recreational off-hours).
type Category string

const (
	CategoryWork         Category = "Work"
	CategoryMeeting      Category = "Meeting"
	CategoryPersonal     Category = "Personal"
	CategoryRecreational Category = "Recreational"
	CategoryMeal         Category = "Meal"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryWork, CategoryMeeting, CategoryPersonal, CategoryRecreational, CategoryMeal:
		return true
	}
	return false
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Kind is the event type discriminator. Every site that branches on
// scheduling behavior (deletion cascade, balancer ordering) switches over
// all three values.
type Kind string

const (
	KindFixed     Kind = "fixed"
	KindRecurring Kind = "recurring_instance"
	KindFloating  Kind = "floating"
)

func (k Kind) Valid() bool {
	switch k {
	case KindFixed, KindRecurring, KindFloating:
		return true
	}
	return false
}

// Window is an optional preferred time-of-day range. Start > End denotes an
// overnight window (e.g. 22:00-06:00).
type Window struct {
	Enabled bool            `json:"enabled"`
	Start   *timeutil.Clock `json:"start"`
	End     *timeutil.Clock `json:"end"`
}

// Span returns the window as a clock span. ok is false when the window is
// disabled or missing either bound.
func (w Window) Span() (timeutil.Span, bool) {
	if !w.Enabled || w.Start == nil || w.End == nil {
		return timeutil.Span{}, false
	}
	return timeutil.Span{Start: *w.Start, End: *w.End}, true
}

const maxNotesLen = 200

// Event is a placed calendar entry. Start/End form a half-open interval
// [Start, End); committed events for a user never overlap.
type Event struct {
	ID        string
	Title     string
	Category  Category
	Priority  Priority
	Start     time.Time
	End       time.Time
	Kind      Kind
	ParentID  string // series id, set iff Kind == KindRecurring
	Locked    bool
	Notes     string
	Preferred Window
}

func (e Event) Duration() time.Duration { return e.End.Sub(e.Start) }

// Validate enforces the structural invariants that hold at creation and
// after every mutation. Overlap against the rest of the calendar is the
// store's job, not the event's.
func (e Event) Validate() error {
	if e.Title == "" {
		return errors.New("title is required")
	}
	if !e.Category.Valid() {
		return fmt.Errorf("invalid category %q", e.Category)
	}
	if !e.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", e.Priority)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("invalid event type %q", e.Kind)
	}
	if e.Start.IsZero() || e.End.IsZero() {
		return errors.New("start and end are required")
	}
	if !e.End.After(e.Start) {
		return errors.New("end must be after start")
	}
	if len(e.Notes) > maxNotesLen {
		return fmt.Errorf("notes exceed %d characters", maxNotesLen)
	}
	switch e.Kind {
	case KindRecurring:
		if e.ParentID == "" {
			return errors.New("recurring instance requires a parent series id")
		}
	case KindFixed, KindFloating:
		if e.ParentID != "" {
			return fmt.Errorf("%s event must not carry a parent series id", e.Kind)
		}
	}
	return nil
}
