package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"tempora/internal/model"
	"tempora/internal/schedule"
	"tempora/internal/storage"
	"tempora/internal/timeutil"
)

func (s *Server) handleListEvents(c *fiber.Ctx) error {
	var filter storage.EventFilter
	if v := c.Query("from"); v != "" {
		t, err := parseDateOrInstant(v, "from")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		filter.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := parseDateOrInstant(v, "to")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		filter.To = t
	}
	if v := c.Query("category"); v != "" {
		filter.Category = model.Category(v)
	}

	events, err := s.store.ListEvents(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"events": eventsFromModel(events)})
}

func (s *Server) handleCreateEvent(c *fiber.Ctx) error {
	var req createEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	if req.Title == "" || req.Priority == "" {
		return fiber.NewError(fiber.StatusBadRequest, "title and priority are required")
	}

	switch req.Type {
	case "", "event":
		return s.createFixedEvent(c, req)
	case "recurring":
		return s.createRecurringEvent(c, req)
	case "floating":
		return s.createFloatingEvent(c, req)
	default:
		return fiber.NewError(fiber.StatusBadRequest, "unknown event type "+req.Type)
	}
}

func (s *Server) createFixedEvent(c *fiber.Ctx, req createEventRequest) error {
	start, err := parseInstantField(req.Start, "start")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	end, err := parseInstantField(req.End, "end")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if !end.After(start) {
		return fiber.NewError(fiber.StatusBadRequest, "event end time must be after start time")
	}
	if end.Before(time.Now()) {
		return fiber.NewError(fiber.StatusBadRequest, "cannot create events in the past")
	}
	preferred, err := req.PreferredTime.toModel()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ev, err := s.store.CreateEvent(c.UserContext(), model.Event{
		Title:     req.Title,
		Category:  req.category(),
		Priority:  model.Priority(req.Priority),
		Start:     start,
		End:       end,
		Kind:      model.KindFixed,
		Locked:    req.Locked,
		Notes:     req.Notes,
		Preferred: preferred,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(eventFromModel(ev))
}

func (s *Server) createRecurringEvent(c *fiber.Ctx, req createEventRequest) error {
	ctx := c.UserContext()
	seriesStart, err := parseDateOrInstant(req.StartDate, "start_date")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	preferred, err := req.PreferredTime.toModel()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	tpl, err := s.store.CreateTemplate(ctx, model.RecurringTemplate{
		Title:           req.Title,
		Category:        req.category(),
		Priority:        model.Priority(req.Priority),
		DurationMinutes: req.Duration,
		Frequency:       model.Frequency(req.Frequency),
		SeriesStart:     seriesStart,
		Preferred:       preferred,
		Notes:           req.Notes,
	})
	if err != nil {
		return err
	}

	existing, err := s.store.ListEvents(ctx, storage.EventFilter{})
	if err != nil {
		return err
	}
	prefs, err := s.store.Preferences(ctx)
	if err != nil {
		return err
	}

	expander := schedule.NewExpander(schedule.NewConflictIndex(existing), prefs, s.log)
	res, err := expander.Expand(tpl, schedule.DefaultHorizonDays)
	if err != nil {
		// The template is unusable; do not leave it behind.
		_ = s.store.DeleteTemplate(ctx, tpl.ID)
		return err
	}

	created := make([]model.Event, 0, len(res.Instances))
	for _, inst := range res.Instances {
		ev, err := s.store.CreateEvent(ctx, inst)
		if err != nil {
			return err
		}
		created = append(created, ev)
	}

	skipped := make([]string, len(res.Skipped))
	for i, d := range res.Skipped {
		skipped[i] = timeutil.DateKey(d)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"template_id": tpl.ID,
		"instances":   eventsFromModel(created),
		"skipped":     skipped,
	})
}

func (s *Server) createFloatingEvent(c *fiber.Ctx, req createEventRequest) error {
	ctx := c.UserContext()
	earliest, err := parseInstantField(req.EarliestStart, "earliest_start")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	deadline, err := parseInstantField(req.Deadline, "deadline")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	preferred, err := req.PreferredTime.toModel()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	existing, err := s.store.ListEvents(ctx, storage.EventFilter{})
	if err != nil {
		return err
	}
	prefs, err := s.store.Preferences(ctx)
	if err != nil {
		return err
	}

	placer := schedule.NewPlacer(schedule.NewConflictIndex(existing), prefs, s.log)
	placed, err := placer.Place(schedule.FloatingRequest{
		Title:     req.Title,
		Category:  req.category(),
		Priority:  model.Priority(req.Priority),
		Duration:  time.Duration(req.Duration) * time.Minute,
		Earliest:  earliest,
		Deadline:  deadline,
		Preferred: preferred,
		Notes:     req.Notes,
	})
	if err != nil {
		return err
	}

	ev, err := s.store.CreateEvent(ctx, placed)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(eventFromModel(ev))
}

// handleValidateEvent runs the validation report without committing
// anything. The payload carries the candidate event and, for edits, the
// id to exclude from conflict checks.
func (s *Server) handleValidateEvent(c *fiber.Ctx) error {
	var req struct {
		Event   eventJSON `json:"event"`
		EventID string    `json:"event_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}

	ev := model.Event{
		ID:       req.EventID,
		Title:    req.Event.Title,
		Category: model.Category(req.Event.Category),
		Priority: model.Priority(req.Event.Priority),
		Kind:     model.KindFixed,
		Notes:    req.Event.Notes,
	}
	if req.Event.Type != "" {
		ev.Kind = model.Kind(req.Event.Type)
	}
	var err error
	if ev.Start, err = parseInstantField(req.Event.Start, "start"); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if ev.End, err = parseInstantField(req.Event.End, "end"); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	existing, err := s.store.ListEvents(c.UserContext(), storage.EventFilter{})
	if err != nil {
		return err
	}
	prefs, err := s.store.Preferences(c.UserContext())
	if err != nil {
		return err
	}
	report := schedule.Validate(ev, schedule.NewConflictIndex(existing), prefs)
	return c.JSON(report)
}

func (s *Server) handleUpdateEvent(c *fiber.Ctx) error {
	var body struct {
		Title         *string     `json:"title"`
		Category      *string     `json:"category"`
		Priority      *string     `json:"priority"`
		Start         *string     `json:"start"`
		End           *string     `json:"end"`
		Notes         *string     `json:"notes"`
		PreferredTime *windowJSON `json:"preferred_time"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}

	var patch storage.EventPatch
	patch.Title = body.Title
	patch.Notes = body.Notes
	if body.Category != nil {
		cat := model.Category(*body.Category)
		patch.Category = &cat
	}
	if body.Priority != nil {
		prio := model.Priority(*body.Priority)
		patch.Priority = &prio
	}
	if body.Start != nil {
		t, err := parseInstantField(*body.Start, "start")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		patch.Start = &t
	}
	if body.End != nil {
		t, err := parseInstantField(*body.End, "end")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		patch.End = &t
	}
	if body.PreferredTime != nil {
		w, err := body.PreferredTime.toModel()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		patch.Preferred = &w
	}

	ev, err := s.store.UpdateEvent(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(eventFromModel(ev))
}

func (s *Server) handleDeleteEvent(c *fiber.Ctx) error {
	mode := storage.CascadeMode(c.Query("mode"))
	if !mode.Valid() {
		return fiber.NewError(fiber.StatusBadRequest, "unknown delete mode "+string(mode))
	}
	if err := s.store.DeleteEvent(c.UserContext(), c.Params("id"), mode); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// handleDeleteTemplate retires a recurring series: the template and all
// of its instances go together, so the horizon job cannot bring any of
// them back.
func (s *Server) handleDeleteTemplate(c *fiber.Ctx) error {
	if err := s.store.DeleteTemplate(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": true})
}

func (s *Server) handleLockEvent(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ev, err := s.store.GetEvent(ctx, c.Params("id"))
	if err != nil {
		return err
	}
	ev, err = s.store.SetEventLocked(ctx, ev.ID, !ev.Locked)
	if err != nil {
		return err
	}
	return c.JSON(eventFromModel(ev))
}

// parseDateOrInstant accepts either a full instant or a bare date, which
// is taken as the start of that day.
func parseDateOrInstant(value, field string) (time.Time, error) {
	if t, err := timeutil.ParseInstant(value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, field+": invalid date")
	}
	return t, nil
}
