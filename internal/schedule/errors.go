package schedule

import (
	"fmt"
	"strings"

	"tempora/internal/model"
)

// ValidationError rejects a request before any scheduling work happens.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports that a requested fixed-time slot is already
// occupied. The caller must pick another time; nothing is retried.
type ConflictError struct {
	Conflicts []model.Event
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 1 {
		return fmt.Sprintf("time slot conflicts with %q", e.Conflicts[0].Title)
	}
	return fmt.Sprintf("time slot conflicts with %d events", len(e.Conflicts))
}

// NoSlotError is the terminal failure of the progressive fallback: phase 4
// found nothing. Attempted records which phases were tried, for diagnostics.
type NoSlotError struct {
	Attempted []Phase
}

func (e *NoSlotError) Error() string {
	if len(e.Attempted) == 0 {
		return "no available slot"
	}
	names := make([]string, len(e.Attempted))
	for i, p := range e.Attempted {
		names[i] = p.String()
	}
	return "no available slot (tried " + strings.Join(names, ", ") + ")"
}
