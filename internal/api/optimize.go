package api

import (
	"github.com/gofiber/fiber/v2"

	"tempora/internal/ics"
	"tempora/internal/model"
	"tempora/internal/schedule"
	"tempora/internal/storage"
	"tempora/internal/timeutil"
)

func (s *Server) handleOptimize(c *fiber.Ctx) error {
	if !s.optLimiter.Allow() {
		return fiber.NewError(fiber.StatusTooManyRequests, "too many optimization requests")
	}

	var req optimizeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	start, err := parseDateOrInstant(req.StartDate, "start_date")
	if err != nil {
		return err
	}
	end, err := parseDateOrInstant(req.EndDate, "end_date")
	if err != nil {
		return err
	}
	rng := schedule.Window{Start: start, End: timeutil.DayEnd(end)}

	// One optimization at a time: a concurrent run would plan against a
	// snapshot this run is about to invalidate.
	s.optMu.Lock()
	defer s.optMu.Unlock()

	ctx := c.UserContext()
	events, err := s.store.ListEvents(ctx, storage.EventFilter{From: rng.Start, To: rng.End})
	if err != nil {
		return err
	}
	prefs, err := s.store.Preferences(ctx)
	if err != nil {
		return err
	}

	balancer := schedule.NewBalancer(prefs, s.log)
	result, err := balancer.Optimize(rng, events, req.ConfirmPartial)
	if err != nil {
		return err
	}

	// A preview never persists, so partial failures need no confirmation
	// round-trip either; the caller just sees the counts.
	if result.NeedsConfirmation && !req.Preview {
		failed := make([]failedEventJSON, len(result.Failed))
		for i, ev := range result.Failed {
			failed[i] = failedEventJSON{
				Title:    ev.Title,
				Type:     string(ev.Kind),
				Priority: string(ev.Priority),
			}
		}
		return c.JSON(confirmationResponse{
			RequiresConfirmation: true,
			SuccessCount:         len(result.Succeeded),
			FailedCount:          len(result.Failed),
			FailedEvents:         failed,
		})
	}

	if !req.Preview && len(result.Succeeded) > 0 {
		if err := s.store.ReplaceEvents(ctx, result.Succeeded); err != nil {
			return err
		}
	}
	return c.JSON(optimizeResponse{
		Modifications: modificationsFromResult(result.Modifications),
		SuccessCount:  len(result.Succeeded),
		FailedCount:   len(result.Failed),
		Preview:       req.Preview,
	})
}

func (s *Server) handleGetPreferences(c *fiber.Ctx) error {
	prefs, err := s.store.Preferences(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(prefs)
}

func (s *Server) handlePutPreferences(c *fiber.Ctx) error {
	var prefs model.Preferences
	if err := c.BodyParser(&prefs); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	if err := prefs.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.store.SavePreferences(c.UserContext(), prefs); err != nil {
		return err
	}
	return c.JSON(prefs)
}

func (s *Server) handleExportICS(c *fiber.Ctx) error {
	events, err := s.store.ListEvents(c.UserContext(), storage.EventFilter{})
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "text/calendar; charset=utf-8")
	return c.SendString(ics.Export(events))
}
