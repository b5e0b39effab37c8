package api

import (
	"fmt"
	"time"

	"tempora/internal/model"
	"tempora/internal/schedule"
	"tempora/internal/timeutil"
)

// windowJSON is the wire form of a preferred-time window. start > end
// denotes an overnight span.
type windowJSON struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
}

func (w windowJSON) toModel() (model.Window, error) {
	if !w.Enabled {
		return model.Window{}, nil
	}
	if w.Start == "" || w.End == "" {
		return model.Window{}, fmt.Errorf("preferred_time requires start and end when enabled")
	}
	start, err := timeutil.ParseClock(w.Start)
	if err != nil {
		return model.Window{}, fmt.Errorf("preferred_time.start: %w", err)
	}
	end, err := timeutil.ParseClock(w.End)
	if err != nil {
		return model.Window{}, fmt.Errorf("preferred_time.end: %w", err)
	}
	return model.Window{Enabled: true, Start: &start, End: &end}, nil
}

func windowFromModel(w model.Window) windowJSON {
	span, ok := w.Span()
	if !ok {
		return windowJSON{}
	}
	return windowJSON{Enabled: true, Start: span.Start.String(), End: span.End.String()}
}

type eventJSON struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Category      string     `json:"category"`
	Priority      string     `json:"priority"`
	Start         string     `json:"start"`
	End           string     `json:"end"`
	Type          string     `json:"type"`
	ParentID      string     `json:"parent_id,omitempty"`
	Locked        bool       `json:"locked"`
	Notes         string     `json:"notes,omitempty"`
	PreferredTime windowJSON `json:"preferred_time"`
}

func eventFromModel(ev model.Event) eventJSON {
	return eventJSON{
		ID:            ev.ID,
		Title:         ev.Title,
		Category:      string(ev.Category),
		Priority:      string(ev.Priority),
		Start:         timeutil.FormatInstant(ev.Start),
		End:           timeutil.FormatInstant(ev.End),
		Type:          string(ev.Kind),
		ParentID:      ev.ParentID,
		Locked:        ev.Locked,
		Notes:         ev.Notes,
		PreferredTime: windowFromModel(ev.Preferred),
	}
}

func eventsFromModel(events []model.Event) []eventJSON {
	out := make([]eventJSON, len(events))
	for i, ev := range events {
		out[i] = eventFromModel(ev)
	}
	return out
}

// createEventRequest covers all three creation modes, discriminated by
// type: "event" (the default), "recurring", or "floating".
type createEventRequest struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Priority string `json:"priority"`
	Locked   bool   `json:"locked"`
	Notes    string `json:"notes"`

	// type == "event"
	Start string `json:"start"`
	End   string `json:"end"`

	// type == "recurring" | "floating"
	Duration      int        `json:"duration"` // minutes
	PreferredTime windowJSON `json:"preferred_time"`

	// type == "recurring"
	Frequency string `json:"frequency"`
	StartDate string `json:"start_date"`

	// type == "floating"
	EarliestStart string `json:"earliest_start"`
	Deadline      string `json:"deadline"`
}

func (r createEventRequest) category() model.Category {
	if r.Category == "" {
		return model.CategoryPersonal
	}
	return model.Category(r.Category)
}

type optimizeRequest struct {
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	ConfirmPartial bool   `json:"confirm_partial"`
	// Preview computes the modifications without writing any of them.
	Preview bool `json:"preview"`
}

type modificationJSON struct {
	EventID  string `json:"event_id"`
	OldStart string `json:"old_start"`
	NewStart string `json:"new_start"`
	Reason   string `json:"reason"`
}

type optimizeResponse struct {
	Modifications []modificationJSON `json:"modifications"`
	SuccessCount  int                `json:"success_count"`
	FailedCount   int                `json:"failed_count"`
	Preview       bool               `json:"preview,omitempty"`
}

type failedEventJSON struct {
	Title    string `json:"title"`
	Type     string `json:"type"`
	Priority string `json:"priority"`
}

type confirmationResponse struct {
	RequiresConfirmation bool              `json:"requires_confirmation"`
	SuccessCount         int               `json:"success_count"`
	FailedCount          int               `json:"failed_count"`
	FailedEvents         []failedEventJSON `json:"failed_events"`
}

func modificationsFromResult(mods []schedule.Modification) []modificationJSON {
	out := make([]modificationJSON, len(mods))
	for i, m := range mods {
		out[i] = modificationJSON{
			EventID:  m.EventID,
			OldStart: timeutil.FormatInstant(m.OldStart),
			NewStart: timeutil.FormatInstant(m.NewStart),
			Reason:   m.Reason,
		}
	}
	return out
}

func parseInstantField(value, field string) (time.Time, error) {
	t, err := timeutil.ParseInstant(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return t, nil
}
