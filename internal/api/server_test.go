package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tempora/internal/storage"
	"tempora/pkg/logx"
)

// Event dates live far in the future because creation rejects the past.

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(Config{Addr: ":0"}, storage.NewMemory(logx.Nop()), logx.Nop())
}

func doJSON(t *testing.T, s *Server, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var decoded map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp, decoded
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	resp, body := doJSON(t, s, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("got %d %v", resp.StatusCode, body)
	}
}

func TestCreateFixedEvent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp, body := doJSON(t, s, http.MethodPost, "/events", map[string]any{
		"title":    "Team Sync",
		"priority": "high",
		"category": "Meeting",
		"start":    "2030-11-04T14:00:00",
		"end":      "2030-11-04T15:00:00",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	if body["id"] == "" || body["type"] != "fixed" {
		t.Errorf("unexpected body %v", body)
	}

	// Same slot again conflicts.
	resp, _ = doJSON(t, s, http.MethodPost, "/events", map[string]any{
		"title":    "Clash",
		"priority": "low",
		"start":    "2030-11-04T14:30:00",
		"end":      "2030-11-04T15:30:00",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("conflict status = %d, want 409", resp.StatusCode)
	}

	// Trailing Z and fractional seconds are tolerated.
	resp, _ = doJSON(t, s, http.MethodPost, "/events", map[string]any{
		"title":    "Zulu",
		"priority": "low",
		"start":    "2030-11-04T16:00:00.000Z",
		"end":      "2030-11-04T17:00:00Z",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("tolerant parse status = %d, want 201", resp.StatusCode)
	}
}

func TestCreateEventValidation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"priority": "high", "start": "2030-11-04T14:00", "end": "2030-11-04T15:00"}},
		{"end before start", map[string]any{"title": "x", "priority": "high", "start": "2030-11-04T15:00", "end": "2030-11-04T14:00"}},
		{"in the past", map[string]any{"title": "x", "priority": "high", "start": "2020-01-01T10:00", "end": "2020-01-01T11:00"}},
		{"bad datetime", map[string]any{"title": "x", "priority": "high", "start": "yesterday", "end": "2030-11-04T15:00"}},
		{"unknown type", map[string]any{"title": "x", "priority": "high", "type": "mystery"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := doJSON(t, s, http.MethodPost, "/events", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestCreateRecurringEvent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp, body := doJSON(t, s, http.MethodPost, "/events", map[string]any{
		"type":       "recurring",
		"title":      "Gym",
		"priority":   "medium",
		"category":   "Recreational",
		"duration":   60,
		"frequency":  "weekdays",
		"start_date": "2030-11-04", // a Monday
		"preferred_time": map[string]any{
			"enabled": true, "start": "18:00", "end": "20:00",
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	instances, ok := body["instances"].([]any)
	if !ok {
		t.Fatalf("no instances in %v", body)
	}
	// Default 30-day horizon from a Monday covers 22 weekdays.
	if len(instances) == 0 {
		t.Fatal("no instances created")
	}
	if body["template_id"] == "" {
		t.Error("missing template_id")
	}

	resp, listBody := doJSON(t, s, http.MethodGet, "/events", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	if got := len(listBody["events"].([]any)); got != len(instances) {
		t.Errorf("listed %d events, want %d", got, len(instances))
	}
}

func TestCreateFloatingEvent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp, body := doJSON(t, s, http.MethodPost, "/events", map[string]any{
		"type":           "floating",
		"title":          "Write report",
		"priority":       "high",
		"category":       "Work",
		"duration":       120,
		"earliest_start": "2030-11-04T08:00",
		"deadline":       "2030-11-06T18:00",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	if body["type"] != "floating" {
		t.Errorf("type = %v, want floating", body["type"])
	}

	// Earliest after deadline is rejected up front.
	resp, _ = doJSON(t, s, http.MethodPost, "/events", map[string]any{
		"type":           "floating",
		"title":          "Impossible",
		"priority":       "low",
		"duration":       60,
		"earliest_start": "2030-11-06T18:00",
		"deadline":       "2030-11-04T08:00",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestValidateEventEndpoint(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/events", map[string]any{
		"title": "Busy", "priority": "high",
		"start": "2030-11-04T10:00", "end": "2030-11-04T11:00",
	})

	resp, body := doJSON(t, s, http.MethodPost, "/validate-event", map[string]any{
		"event": map[string]any{
			"title": "Overlap", "priority": "low", "category": "Personal",
			"start": "2030-11-04T10:30", "end": "2030-11-04T11:30",
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["valid"] != false {
		t.Errorf("overlapping event reported valid: %v", body)
	}
}

func TestUpdateDeleteLockEvent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	_, created := doJSON(t, s, http.MethodPost, "/events", map[string]any{
		"title": "Draft", "priority": "medium",
		"start": "2030-11-04T10:00", "end": "2030-11-04T11:00",
	})
	id := created["id"].(string)

	resp, body := doJSON(t, s, http.MethodPut, "/events/"+id, map[string]any{"title": "Final"})
	if resp.StatusCode != http.StatusOK || body["title"] != "Final" {
		t.Errorf("update got %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, s, http.MethodPost, "/events/"+id+"/lock", nil)
	if resp.StatusCode != http.StatusOK || body["locked"] != true {
		t.Errorf("lock got %d %v", resp.StatusCode, body)
	}
	resp, body = doJSON(t, s, http.MethodPost, "/events/"+id+"/lock", nil)
	if resp.StatusCode != http.StatusOK || body["locked"] != false {
		t.Errorf("unlock got %d %v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, s, http.MethodDelete, "/events/"+id+"?mode=bogus", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bogus mode status = %d, want 400", resp.StatusCode)
	}
	resp, _ = doJSON(t, s, http.MethodDelete, "/events/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, s, http.MethodDelete, "/events/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestPreferencesEndpoints(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp, body := doJSON(t, s, http.MethodGet, "/preferences", nil)
	if resp.StatusCode != http.StatusOK || body["work_start"] != "09:00" {
		t.Errorf("defaults got %d %v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, s, http.MethodPut, "/preferences", map[string]any{
		"sleep_start": "22:00", "sleep_end": "06:00",
		"work_start": "08:00", "work_end": "17:00",
		"round_to_minutes": 30,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d", resp.StatusCode)
	}
	_, body = doJSON(t, s, http.MethodGet, "/preferences", nil)
	if body["work_start"] != "08:00" {
		t.Errorf("preferences not persisted: %v", body)
	}

	resp, _ = doJSON(t, s, http.MethodPut, "/preferences", map[string]any{
		"sleep_start": "22:00", "sleep_end": "06:00",
		"work_start": "08:00", "work_end": "17:00",
		"round_to_minutes": 7,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid rounding status = %d, want 400", resp.StatusCode)
	}
}

func TestOptimizeEndpoint(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	// Monday holds a locked 8-hour block plus one movable 4-hour event;
	// Tuesday is empty. The movable event must move off Monday.
	_, locked := doJSON(t, s, http.MethodPost, "/events", map[string]any{
		"title": "Deep work", "priority": "high", "category": "Work",
		"start": "2030-11-04T09:00", "end": "2030-11-04T17:00", "locked": true,
	})
	if locked["id"] == nil {
		t.Fatal("locked event not created")
	}
	_, movable := doJSON(t, s, http.MethodPost, "/events", map[string]any{
		"title": "Prep", "priority": "medium", "category": "Work",
		"start": "2030-11-04T17:00", "end": "2030-11-04T21:00",
	})

	resp, body := doJSON(t, s, http.MethodPost, "/optimize", map[string]any{
		"start_date": "2030-11-04",
		"end_date":   "2030-11-10",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	mods, ok := body["modifications"].([]any)
	if !ok || len(mods) != 1 {
		t.Fatalf("modifications = %v, want exactly 1", body["modifications"])
	}
	mod := mods[0].(map[string]any)
	if mod["event_id"] != movable["id"] {
		t.Errorf("moved %v, want %v", mod["event_id"], movable["id"])
	}
	if mod["reason"] != "Workload balancing" {
		t.Errorf("reason = %v", mod["reason"])
	}
	if strings.HasPrefix(mod["new_start"].(string), "2030-11-04") {
		t.Errorf("event stayed on Monday: %v", mod["new_start"])
	}

	// The move was committed.
	_, ev := doJSON(t, s, http.MethodGet, "/events?from=2030-11-05&to=2030-11-10", nil)
	if len(ev["events"].([]any)) == 0 {
		t.Error("committed schedule has nothing after Monday")
	}

	// Ranges longer than 7 days are rejected.
	resp, _ = doJSON(t, s, http.MethodPost, "/optimize", map[string]any{
		"start_date": "2030-11-04",
		"end_date":   "2030-11-20",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("long range status = %d, want 400", resp.StatusCode)
	}
}

func TestOptimizePreview(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/events", map[string]any{
		"title": "Deep work", "priority": "high", "category": "Work",
		"start": "2030-11-04T09:00", "end": "2030-11-04T17:00", "locked": true,
	})
	doJSON(t, s, http.MethodPost, "/events", map[string]any{
		"title": "Prep", "priority": "medium", "category": "Work",
		"start": "2030-11-04T17:00", "end": "2030-11-04T21:00",
	})

	resp, body := doJSON(t, s, http.MethodPost, "/optimize", map[string]any{
		"start_date": "2030-11-04",
		"end_date":   "2030-11-10",
		"preview":    true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	mods, ok := body["modifications"].([]any)
	if !ok || len(mods) != 1 {
		t.Fatalf("modifications = %v, want exactly 1", body["modifications"])
	}
	if body["preview"] != true {
		t.Errorf("preview flag missing from response: %v", body)
	}

	// Nothing was written: both events still sit on Monday.
	_, list := doJSON(t, s, http.MethodGet, "/events?from=2030-11-04&to=2030-11-05", nil)
	events, _ := list["events"].([]any)
	if len(events) != 2 {
		t.Fatalf("Monday holds %d events after preview, want 2", len(events))
	}
	for _, raw := range events {
		ev := raw.(map[string]any)
		if start, _ := ev["start"].(string); !strings.HasPrefix(start, "2030-11-04") {
			t.Errorf("preview moved %v to %s", ev["id"], start)
		}
	}
}

func TestDeleteTemplateEndpoint(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp, body := doJSON(t, s, http.MethodPost, "/events", map[string]any{
		"type":       "recurring",
		"title":      "Standup",
		"priority":   "high",
		"category":   "Meeting",
		"duration":   15,
		"frequency":  "daily",
		"start_date": "2030-11-04",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body %v", resp.StatusCode, body)
	}
	tplID, _ := body["template_id"].(string)
	if tplID == "" {
		t.Fatal("missing template_id")
	}

	resp, _ = doJSON(t, s, http.MethodDelete, "/templates/"+tplID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	// Every instance went with the series.
	_, list := doJSON(t, s, http.MethodGet, "/events", nil)
	if events, ok := list["events"].([]any); ok && len(events) != 0 {
		t.Errorf("%d instances survived series deletion", len(events))
	}

	resp, _ = doJSON(t, s, http.MethodDelete, "/templates/"+tplID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestExportICS(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/events", map[string]any{
		"title": "Exported", "priority": "high",
		"start": "2030-11-04T10:00", "end": "2030-11-04T11:00",
	})

	req := httptest.NewRequest(http.MethodGet, "/export.ics", nil)
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/calendar") {
		t.Errorf("content type = %q", resp.Header.Get("Content-Type"))
	}
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "SUMMARY:Exported") {
		t.Error("exported calendar missing event")
	}
}
