// Package ics renders schedules as iCalendar payloads so events can be
// pulled into external calendar clients.
package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"tempora/internal/model"
)

const prodID = "-//tempora//scheduling engine//EN"

// Export serializes events into a single VCALENDAR. Event times are naive
// local instants; they are emitted as floating local times, matching how
// the engine stores them.
func Export(events []model.Event) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)

	now := time.Now()
	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(now)
		ve.SetStartAt(ev.Start)
		ve.SetEndAt(ev.End)
		ve.SetSummary(ev.Title)
		if ev.Notes != "" {
			ve.SetDescription(ev.Notes)
		}
		ve.SetProperty(ical.ComponentPropertyCategories, string(ev.Category))
		if ev.ParentID != "" {
			ve.SetProperty(ical.ComponentProperty("RELATED-TO"), ev.ParentID)
		}
	}
	return cal.Serialize()
}
