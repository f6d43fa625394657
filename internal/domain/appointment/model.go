package appointment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ServiceType is the kind of visit booked.
type ServiceType string

const (
	ServiceCheckup     ServiceType = "checkup"
	ServiceVaccination ServiceType = "vaccination"
	ServiceGrooming    ServiceType = "grooming"
	ServiceSurgery     ServiceType = "surgery"
	ServiceDeworming   ServiceType = "deworming"
)

// Services lists every service in display order.
var Services = []ServiceType{ServiceCheckup, ServiceVaccination, ServiceGrooming, ServiceSurgery, ServiceDeworming}

// serviceAliases maps admin-side labels onto the booking enumeration.
var serviceAliases = map[string]ServiceType{
	"checkup":         ServiceCheckup,
	"check-up":        ServiceCheckup,
	"general checkup": ServiceCheckup,
	"consultation":    ServiceCheckup,
	"vaccination":     ServiceVaccination,
	"vaccinations":    ServiceVaccination,
	"vaccine":         ServiceVaccination,
	"grooming":        ServiceGrooming,
	"surgery":         ServiceSurgery,
	"deworming":       ServiceDeworming,
	"de-worming":      ServiceDeworming,
}

// ParseService normalizes a service label.
func ParseService(s string) (ServiceType, error) {
	if svc, ok := serviceAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return svc, nil
	}
	return "", fmt.Errorf("%w: unknown service %q", ErrValidation, s)
}

func (s ServiceType) Label() string {
	switch s {
	case ServiceCheckup:
		return "General Checkup"
	case ServiceVaccination:
		return "Vaccination"
	case ServiceGrooming:
		return "Grooming"
	case ServiceSurgery:
		return "Surgery"
	case ServiceDeworming:
		return "Deworming"
	}
	return string(s)
}

func (s *ServiceType) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = ""
		return nil
	}
	v, err := ParseService(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// TimeSlot is one of the three daily booking windows.
type TimeSlot string

const (
	SlotMorning   TimeSlot = "morning"
	SlotAfternoon TimeSlot = "afternoon"
	SlotEvening   TimeSlot = "evening"
)

func ParseTimeSlot(s string) (TimeSlot, error) {
	switch TimeSlot(strings.ToLower(strings.TrimSpace(s))) {
	case SlotMorning:
		return SlotMorning, nil
	case SlotAfternoon:
		return SlotAfternoon, nil
	case SlotEvening:
		return SlotEvening, nil
	}
	return "", fmt.Errorf("%w: unknown time slot %q", ErrValidation, s)
}

// Clock returns the hour and minute the slot starts at.
func (t TimeSlot) Clock() (hour, minute int) {
	switch t {
	case SlotMorning:
		return 9, 0
	case SlotAfternoon:
		return 14, 0
	case SlotEvening:
		return 18, 0
	}
	return 0, 0
}

// Display is the clock time shown next to the date, e.g. "09:00 AM".
func (t TimeSlot) Display() string {
	h, m := t.Clock()
	return time.Date(2000, 1, 1, h, m, 0, 0, time.UTC).Format("03:04 PM")
}

func (t *TimeSlot) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" {
		*t = ""
		return nil
	}
	v, err := ParseTimeSlot(raw)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Appointment is one booking request.
type Appointment struct {
	ID              string      `db:"id" json:"id"`
	OwnerID         string      `db:"owner_id" json:"owner_id"`
	OwnerName       string      `db:"owner_name" json:"owner_name"`
	OwnerEmail      string      `db:"owner_email" json:"owner_email"`
	OwnerPhone      *string     `db:"owner_phone" json:"owner_phone,omitempty"`
	PetID           *string     `db:"pet_id" json:"pet_id,omitempty"`
	PetName         string      `db:"pet_name" json:"pet_name"`
	Service         ServiceType `db:"service" json:"service"`
	Date            time.Time   `db:"appointment_date" json:"date"`
	TimeSlot        TimeSlot    `db:"time_slot" json:"time_slot"`
	Time            string      `db:"-" json:"time"`
	Status          Status      `db:"status" json:"status"`
	Reason          *string     `db:"reason" json:"reason,omitempty"`
	AdditionalInfo  *string     `db:"additional_info" json:"additional_info,omitempty"`
	Urgent          bool        `db:"urgent" json:"urgent"`
	FirstVisit      bool        `db:"first_visit" json:"first_visit"`
	GroomingPackage *string     `db:"grooming_package" json:"grooming_package,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// StartsAt combines the calendar date with the slot's clock time in the
// date's location.
func (a *Appointment) StartsAt() time.Time {
	h, m := a.TimeSlot.Clock()
	y, mo, d := a.Date.Date()
	return time.Date(y, mo, d, h, m, 0, 0, a.Date.Location())
}

// Terminal reports whether the appointment can no longer change.
func (a *Appointment) Terminal() bool { return a.Status.Terminal() }

// Day truncates t to midnight in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	OwnerID string
	Email   string // case-insensitive exact match
	Status  Status
}

// Match applies the filter to a single record.
func (f Filter) Match(a *Appointment) bool {
	if f.OwnerID != "" && a.OwnerID != f.OwnerID {
		return false
	}
	if f.Email != "" && !strings.EqualFold(strings.TrimSpace(a.OwnerEmail), strings.TrimSpace(f.Email)) {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}
