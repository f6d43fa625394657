package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

// NewService binds the repository to the clinic's time zone. A nil loc means
// UTC.
func NewService(repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, loc: loc, now: time.Now}
}

// Location is the clinic time zone appointment dates are expressed in.
func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) validate(a *Appointment) error {
	var missing []string
	if strings.TrimSpace(a.OwnerName) == "" {
		missing = append(missing, "owner_name")
	}
	if strings.TrimSpace(a.OwnerEmail) == "" {
		missing = append(missing, "owner_email")
	}
	if strings.TrimSpace(a.PetName) == "" {
		missing = append(missing, "pet_name")
	}
	if a.Service == "" {
		missing = append(missing, "service")
	}
	if a.Date.IsZero() {
		missing = append(missing, "date")
	}
	if a.TimeSlot == "" {
		missing = append(missing, "time_slot")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// Create assigns an id and creation time and stores the booking as Pending.
func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if err := s.validate(a); err != nil {
		return err
	}
	now := s.now()
	a.ID = uuid.New().String()
	a.Status = StatusPending
	a.Date = Day(a.Date, s.loc)
	a.Time = a.TimeSlot.Display()
	a.CreatedAt = now
	a.UpdatedAt = now
	if err := s.repo.Create(ctx, a); err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Appointment, error) {
	return s.repo.List(ctx, f)
}

// UpdateStatus moves the appointment to status. It reports false with a nil
// error when no appointment has that id.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (bool, error) {
	_, err := s.repo.Mutate(ctx, id, func(a *Appointment) error {
		next, err := Transition(a.Status, status)
		if err != nil {
			return err
		}
		a.Status = next
		a.UpdatedAt = s.now()
		return nil
	})
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case errors.Is(err, ErrIllegalTransition):
		return true, err
	case err != nil:
		return true, fmt.Errorf("update status: %w", err)
	}
	return true, nil
}

// Reschedule overwrites the date and slot and marks the appointment
// Rescheduled. Other bookings in the same slot are not checked.
func (s *Service) Reschedule(ctx context.Context, id string, date time.Time, slot TimeSlot) (*Appointment, error) {
	if date.IsZero() || slot == "" {
		return nil, fmt.Errorf("%w: date and time_slot required", ErrValidation)
	}
	day := Day(date, s.loc)
	a, err := s.repo.Mutate(ctx, id, func(a *Appointment) error {
		next, err := Transition(a.Status, StatusRescheduled)
		if err != nil {
			return err
		}
		a.Date = day
		a.TimeSlot = slot
		a.Time = slot.Display()
		a.Status = next
		a.UpdatedAt = s.now()
		return nil
	})
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrIllegalTransition):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("reschedule: %w", err)
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
