// Package schedule is the scheduling and optimization core: conflict
// detection over an interval set, best-slot search with multi-criteria
// scoring, progressive fallback planning, recurring-series expansion,
// deadline-bounded placement of floating tasks, and a greedy workload
// balancer.
//
// Everything here is synchronous, in-memory computation over a snapshot of
// events fetched by the caller. The core never touches the store directly;
// it returns placements and modifications for the caller to commit.
package schedule

import (
	"sort"
	"time"

	"tempora/internal/model"
)

// Window is a half-open absolute time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Empty() bool { return !w.End.After(w.Start) }

// Clip intersects w with bound.
func (w Window) Clip(bound Window) Window {
	out := w
	if bound.Start.After(out.Start) {
		out.Start = bound.Start
	}
	if bound.End.Before(out.End) {
		out.End = bound.End
	}
	return out
}

// ConflictIndex answers overlap queries against a working set of events.
// Events are kept ordered by start time so queries can stop at the first
// event starting at or after the window's end.
type ConflictIndex struct {
	events []model.Event
}

// NewConflictIndex copies and sorts the given events. The index owns its
// copy; callers may keep mutating their slice.
func NewConflictIndex(events []model.Event) *ConflictIndex {
	cp := make([]model.Event, len(events))
	copy(cp, events)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Start.Before(cp[j].Start) })
	return &ConflictIndex{events: cp}
}

// Add inserts an event, preserving start order.
func (ix *ConflictIndex) Add(ev model.Event) {
	i := sort.Search(len(ix.events), func(i int) bool {
		return ix.events[i].Start.After(ev.Start)
	})
	ix.events = append(ix.events, model.Event{})
	copy(ix.events[i+1:], ix.events[i:])
	ix.events[i] = ev
}

// Conflicts returns every event whose [Start, End) interval intersects the
// window, excluding excludeID (used when re-validating an edit of the same
// event). Boundary touching is not a conflict.
func (ix *ConflictIndex) Conflicts(w Window, excludeID string) []model.Event {
	var out []model.Event
	for _, ev := range ix.events {
		if !ev.Start.Before(w.End) {
			break
		}
		if excludeID != "" && ev.ID == excludeID {
			continue
		}
		if ev.End.After(w.Start) {
			out = append(out, ev)
		}
	}
	return out
}

// Free reports whether the window has no conflicts.
func (ix *ConflictIndex) Free(w Window, excludeID string) bool {
	for _, ev := range ix.events {
		if !ev.Start.Before(w.End) {
			return true
		}
		if excludeID != "" && ev.ID == excludeID {
			continue
		}
		if ev.End.After(w.Start) {
			return false
		}
	}
	return true
}

// Events returns the indexed events in start order. The slice is shared;
// callers must not mutate it.
func (ix *ConflictIndex) Events() []model.Event { return ix.events }

func (ix *ConflictIndex) Len() int { return len(ix.events) }
