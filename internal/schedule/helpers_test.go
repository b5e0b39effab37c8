package schedule

import (
	"testing"
	"time"

	"tempora/internal/model"
	"tempora/internal/timeutil"
	"tempora/pkg/logx"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := timeutil.ParseInstant(s)
	if err != nil {
		t.Fatalf("ParseInstant(%q): %v", s, err)
	}
	return ts
}

func clockPtr(s string) *timeutil.Clock {
	c := timeutil.MustClock(s)
	return &c
}

func preferred(start, end string) model.Window {
	return model.Window{Enabled: true, Start: clockPtr(start), End: clockPtr(end)}
}

func fixedEvent(t *testing.T, id, title string, cat model.Category, start, end string) model.Event {
	t.Helper()
	return model.Event{
		ID:       id,
		Title:    title,
		Category: cat,
		Priority: model.PriorityMedium,
		Start:    mustTime(t, start),
		End:      mustTime(t, end),
		Kind:     model.KindFixed,
	}
}

func testPrefs() model.Preferences {
	return model.DefaultPreferences()
}

func testLog() logx.Logger { return logx.Nop() }
