package storage

import (
	"context"
	"errors"
	"time"

	"tempora/internal/model"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would create overlapping events.
	ErrConflict = errors.New("time slot conflict")
)

// Config configures storage.
//
// Driver values:
//   - "memory": in-process store, lost on exit
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	// Defaults supplies the preferences returned before any are saved.
	// It is called per read, so a reloaded config takes effect without a
	// restart. Nil falls back to model.DefaultPreferences.
	Defaults func() model.Preferences
}

// CascadeMode selects how a deletion applies to a recurring series.
type CascadeMode string

const (
	// CascadeDefault deletes only the addressed event. For a recurring
	// instance this leaves its siblings and template untouched.
	CascadeDefault CascadeMode = ""
	// CascadeThisInstance is an explicit spelling of the default.
	CascadeThisInstance CascadeMode = "this_instance"
	// CascadeAllFuture deletes the addressed instance and every sibling
	// starting at or after it, and retires the template.
	CascadeAllFuture CascadeMode = "all_future"
	// CascadeSeries deletes the template and every instance it produced,
	// past and future. On a non-recurring event it behaves like the
	// default.
	CascadeSeries CascadeMode = "series"
)

func (m CascadeMode) Valid() bool {
	switch m {
	case CascadeDefault, CascadeThisInstance, CascadeAllFuture, CascadeSeries:
		return true
	}
	return false
}

// EventPatch is a partial update; nil fields are left unchanged.
type EventPatch struct {
	Title     *string
	Category  *model.Category
	Priority  *model.Priority
	Start     *time.Time
	End       *time.Time
	Notes     *string
	Preferred *model.Window
}

func applyPatch(ev model.Event, p EventPatch) model.Event {
	if p.Title != nil {
		ev.Title = *p.Title
	}
	if p.Category != nil {
		ev.Category = *p.Category
	}
	if p.Priority != nil {
		ev.Priority = *p.Priority
	}
	if p.Start != nil {
		ev.Start = *p.Start
	}
	if p.End != nil {
		ev.End = *p.End
	}
	if p.Notes != nil {
		ev.Notes = *p.Notes
	}
	if p.Preferred != nil {
		ev.Preferred = *p.Preferred
	}
	return ev
}

// EventFilter bounds a listing. Zero fields are unbounded.
type EventFilter struct {
	From     time.Time
	To       time.Time
	Category model.Category
}

// Store is the persistence API the scheduling service and HTTP layer use.
// All writes validate the event and reject interval overlaps; reads return
// events in start order.
type Store interface {
	CreateEvent(ctx context.Context, ev model.Event) (model.Event, error)
	GetEvent(ctx context.Context, id string) (model.Event, error)
	ListEvents(ctx context.Context, f EventFilter) ([]model.Event, error)
	UpdateEvent(ctx context.Context, id string, p EventPatch) (model.Event, error)
	DeleteEvent(ctx context.Context, id string, mode CascadeMode) error
	SetEventLocked(ctx context.Context, id string, locked bool) (model.Event, error)
	ReplaceEvents(ctx context.Context, updates []model.Event) error

	CreateTemplate(ctx context.Context, tpl model.RecurringTemplate) (model.RecurringTemplate, error)
	GetTemplate(ctx context.Context, id string) (model.RecurringTemplate, error)
	ListTemplates(ctx context.Context) ([]model.RecurringTemplate, error)
	// DeleteTemplate removes the template and every instance expanded
	// from it, so a retired series cannot be re-materialized.
	DeleteTemplate(ctx context.Context, id string) error

	Preferences(ctx context.Context) (model.Preferences, error)
	SavePreferences(ctx context.Context, p model.Preferences) error

	Close() error
}
