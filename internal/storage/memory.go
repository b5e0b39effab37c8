package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tempora/internal/model"
	"tempora/internal/timeutil"
	"tempora/pkg/logx"
)

// memoryStore keeps everything in process memory. Events stay sorted by
// start time so listings and overlap checks read in order.
type memoryStore struct {
	log      logx.Logger
	defaults func() model.Preferences

	mu        sync.RWMutex
	events    []model.Event
	templates map[string]model.RecurringTemplate
	prefs     model.Preferences
	hasPrefs  bool
}

func NewMemory(log logx.Logger) Store {
	return newMemory(log, nil)
}

func newMemory(log logx.Logger, defaults func() model.Preferences) Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	if defaults == nil {
		defaults = model.DefaultPreferences
	}
	return &memoryStore{
		log:       log,
		defaults:  defaults,
		templates: make(map[string]model.RecurringTemplate),
	}
}

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) CreateEvent(ctx context.Context, ev model.Event) (model.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if err := ev.Validate(); err != nil {
		return model.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.overlapping(ev.Start, ev.End, ev.ID); len(c) > 0 {
		return model.Event{}, fmt.Errorf("%w with %q", ErrConflict, c[0].Title)
	}
	s.insert(ev)
	return ev, nil
}

func (s *memoryStore) GetEvent(ctx context.Context, id string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.events[i], nil
	}
	return model.Event{}, ErrNotFound
}

func (s *memoryStore) ListEvents(ctx context.Context, f EventFilter) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Event
	for _, ev := range s.events {
		if !f.From.IsZero() && ev.End.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && ev.Start.After(f.To) {
			break
		}
		if f.Category != "" && ev.Category != f.Category {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *memoryStore) UpdateEvent(ctx context.Context, id string, p EventPatch) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return model.Event{}, ErrNotFound
	}
	ev := applyPatch(s.events[i], p)
	if err := ev.Validate(); err != nil {
		return model.Event{}, err
	}
	if c := s.overlapping(ev.Start, ev.End, ev.ID); len(c) > 0 {
		return model.Event{}, fmt.Errorf("%w with %q", ErrConflict, c[0].Title)
	}
	s.removeAt(i)
	s.insert(ev)
	return ev, nil
}

func (s *memoryStore) DeleteEvent(ctx context.Context, id string, mode CascadeMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid cascade mode %q", mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	target := s.events[i]
	s.removeAt(i)

	if target.Kind != model.KindRecurring || target.ParentID == "" {
		return nil
	}
	switch mode {
	case CascadeAllFuture:
		s.dropInstances(target.ParentID, target.Start)
		delete(s.templates, target.ParentID)
	case CascadeSeries:
		s.dropInstances(target.ParentID, time.Time{})
		delete(s.templates, target.ParentID)
	}
	return nil
}

// dropInstances removes every instance of the template starting at or
// after from; a zero from drops them all. Callers hold the write lock.
func (s *memoryStore) dropInstances(parentID string, from time.Time) {
	kept := s.events[:0]
	for _, ev := range s.events {
		if ev.ParentID == parentID && (from.IsZero() || !ev.Start.Before(from)) {
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
}

func (s *memoryStore) SetEventLocked(ctx context.Context, id string, locked bool) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return model.Event{}, ErrNotFound
	}
	s.events[i].Locked = locked
	return s.events[i], nil
}

// ReplaceEvents applies a batch of repositioned events atomically: every
// update must reference an existing event, and the resulting set must stay
// overlap-free, or nothing changes.
func (s *memoryStore) ReplaceEvents(ctx context.Context, updates []model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]model.Event, len(s.events))
	copy(next, s.events)
	for _, up := range updates {
		if err := up.Validate(); err != nil {
			return err
		}
		found := false
		for i := range next {
			if next[i].ID == up.ID {
				next[i] = up
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: event %s", ErrNotFound, up.ID)
		}
	}
	sort.Slice(next, func(i, j int) bool { return next[i].Start.Before(next[j].Start) })
	for i := 1; i < len(next); i++ {
		a, b := next[i-1], next[i]
		if timeutil.Overlaps(a.Start, a.End, b.Start, b.End) {
			return fmt.Errorf("%w between %q and %q", ErrConflict, a.Title, b.Title)
		}
	}
	s.events = next
	return nil
}

func (s *memoryStore) CreateTemplate(ctx context.Context, tpl model.RecurringTemplate) (model.RecurringTemplate, error) {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	if err := tpl.Validate(); err != nil {
		return model.RecurringTemplate{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tpl.ID] = tpl
	return tpl, nil
}

func (s *memoryStore) GetTemplate(ctx context.Context, id string) (model.RecurringTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.templates[id]
	if !ok {
		return model.RecurringTemplate{}, ErrNotFound
	}
	return tpl, nil
}

func (s *memoryStore) ListTemplates(ctx context.Context) ([]model.RecurringTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.RecurringTemplate, 0, len(s.templates))
	for _, tpl := range s.templates {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) DeleteTemplate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return ErrNotFound
	}
	delete(s.templates, id)
	s.dropInstances(id, time.Time{})
	return nil
}

func (s *memoryStore) Preferences(ctx context.Context) (model.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasPrefs {
		return s.defaults(), nil
	}
	return s.prefs, nil
}

func (s *memoryStore) SavePreferences(ctx context.Context, p model.Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
	s.hasPrefs = true
	return nil
}

// indexOf returns the position of the event with the given id, or -1.
// Callers hold at least a read lock.
func (s *memoryStore) indexOf(id string) int {
	for i := range s.events {
		if s.events[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *memoryStore) insert(ev model.Event) {
	i := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].Start.After(ev.Start)
	})
	s.events = append(s.events, model.Event{})
	copy(s.events[i+1:], s.events[i:])
	s.events[i] = ev
}

func (s *memoryStore) removeAt(i int) {
	s.events = append(s.events[:i], s.events[i+1:]...)
}

// overlapping returns events intersecting [start, end), excluding
// excludeID. Boundary touching does not count. Callers hold the lock.
func (s *memoryStore) overlapping(start, end time.Time, excludeID string) []model.Event {
	var out []model.Event
	for _, ev := range s.events {
		if !ev.Start.Before(end) {
			break
		}
		if ev.ID == excludeID {
			continue
		}
		if timeutil.Overlaps(ev.Start, ev.End, start, end) {
			out = append(out, ev)
		}
	}
	return out
}
