package appointment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("appointment: not found")
	ErrIllegalTransition = errors.New("appointment: illegal status transition")
	ErrValidation        = errors.New("appointment: validation failed")
)

// Status is the appointment's lifecycle label.
type Status string

const (
	StatusPending     Status = "Pending"
	StatusConfirmed   Status = "Confirmed"
	StatusRescheduled Status = "Rescheduled"
	StatusCompleted   Status = "Completed"
	StatusCancelled   Status = "Cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusRescheduled, StatusCompleted, StatusCancelled}

// ParseStatus accepts any casing. "scheduled", the initial value of older
// database rows, reads as Pending.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "scheduled":
		return StatusPending, nil
	case "confirmed":
		return StatusConfirmed, nil
	case "rescheduled":
		return StatusRescheduled, nil
	case "completed":
		return StatusCompleted, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = ""
		return nil
	}
	v, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Transition validates a move from one status to another and returns the
// resulting status. Completed and Cancelled accept no further moves and
// nothing returns to Pending.
func Transition(from, to Status) (Status, error) {
	if from.Terminal() {
		return from, fmt.Errorf("%w: %s is final", ErrIllegalTransition, from)
	}
	switch from {
	case StatusPending, StatusConfirmed, StatusRescheduled:
	default:
		return from, fmt.Errorf("%w: unknown current status %q", ErrIllegalTransition, from)
	}
	switch to {
	case StatusConfirmed, StatusCompleted, StatusCancelled, StatusRescheduled:
		return to, nil
	case StatusPending:
		return from, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return from, fmt.Errorf("%w: unknown target status %q", ErrIllegalTransition, to)
}
