// Package reminder derives owner notifications from appointment and pet
// records and keeps them flowing on a schedule.
package reminder

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vetclinic/vetclinic/internal/domain/appointment"
	"github.com/vetclinic/vetclinic/internal/domain/pet"
)

type Kind string

const (
	KindAppointment Kind = "appointment"
	KindVaccination Kind = "vaccination"
	KindPromo       Kind = "promo"
)

const (
	// PromoID is shared by every owner; dismissing it hides it for that owner
	// only.
	PromoID = "promo-wellness"

	vaccinationAgeMonths = 6
	vaccinationLookback  = 365 * 24 * time.Hour
	upcomingWindow       = 24 * time.Hour
)

// Notification is derived on every scan and never stored.
type Notification struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	OwnerID       string    `json:"owner_id,omitempty"`
	AppointmentID string    `json:"appointment_id,omitempty"`
	PetID         string    `json:"pet_id,omitempty"`
	PetName       string    `json:"pet_name,omitempty"`
	When          string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

func AppointmentID(id string) string { return "appointment-" + id }
func VaccinationID(petID string) string { return "vaccination-" + petID }

// DeriveNotifications scans both collections against now. Ids are stable
// across scans so callers can de-duplicate.
func DeriveNotifications(appts []*appointment.Appointment, pets []*pet.Pet, now time.Time) []Notification {
	var out []Notification
	for _, a := range appts {
		if n, ok := upcoming(a, now); ok {
			out = append(out, n)
		}
	}
	for _, p := range pets {
		if n, ok := vaccinationDue(p, appts, now); ok {
			out = append(out, n)
		}
	}
	if len(pets) > 0 {
		out = append(out, Notification{
			ID:        PromoID,
			Kind:      KindPromo,
			Title:     "Wellness check special",
			Message:   "Book a wellness checkup this month and get a free nail trim for your pet.",
			CreatedAt: now,
		})
	}
	return out
}

func upcoming(a *appointment.Appointment, now time.Time) (Notification, bool) {
	if a.Terminal() {
		return Notification{}, false
	}
	start := a.StartsAt()
	until := start.Sub(now)
	if until <= 0 || until > upcomingWindow {
		return Notification{}, false
	}

	var when string
	switch {
	case until < time.Hour:
		when = "starts in less than an hour"
	case sameDay(start, now.In(start.Location())):
		when = "is today at " + a.TimeSlot.Display()
	default:
		when = "is tomorrow at " + a.TimeSlot.Display()
	}
	return Notification{
		ID:            AppointmentID(a.ID),
		Kind:          KindAppointment,
		Title:         "Upcoming appointment",
		Message:       fmt.Sprintf("%s's %s appointment %s.", a.PetName, strings.ToLower(a.Service.Label()), when),
		OwnerID:       a.OwnerID,
		AppointmentID: a.ID,
		PetName:       a.PetName,
		When:          when,
		CreatedAt:     now,
	}, true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func vaccinationDue(p *pet.Pet, appts []*appointment.Appointment, now time.Time) (Notification, bool) {
	if p.AgeInMonths(now) < vaccinationAgeMonths {
		return Notification{}, false
	}
	since := now.Add(-vaccinationLookback)
	for _, a := range appts {
		if a.Service != appointment.ServiceVaccination || a.Status == appointment.StatusCancelled {
			continue
		}
		if !forPet(a, p) {
			continue
		}
		if !a.Date.Before(since) {
			return Notification{}, false
		}
	}
	return Notification{
		ID:        VaccinationID(p.ID),
		Kind:      KindVaccination,
		Title:     "Vaccination may be due",
		Message:   fmt.Sprintf("%s has no vaccination on record in the last year.", p.Name),
		OwnerID:   p.OwnerID,
		PetID:     p.ID,
		PetName:   p.Name,
		CreatedAt: now,
	}, true
}

// forPet matches by pet id when the booking carries one, else by name.
func forPet(a *appointment.Appointment, p *pet.Pet) bool {
	if a.PetID != nil && *a.PetID != "" {
		return *a.PetID == p.ID
	}
	if a.OwnerID != "" && p.OwnerID != "" && a.OwnerID != p.OwnerID {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(a.PetName), strings.TrimSpace(p.Name))
}

// ByOwner splits records into per-owner groups, sorted by owner id.
func ByOwner(appts []*appointment.Appointment, pets []*pet.Pet) []OwnerRecords {
	idx := map[string]*OwnerRecords{}
	get := func(id string) *OwnerRecords {
		r, ok := idx[id]
		if !ok {
			r = &OwnerRecords{OwnerID: id}
			idx[id] = r
		}
		return r
	}
	for _, a := range appts {
		get(a.OwnerID).Appointments = append(get(a.OwnerID).Appointments, a)
	}
	for _, p := range pets {
		get(p.OwnerID).Pets = append(get(p.OwnerID).Pets, p)
	}
	out := make([]OwnerRecords, 0, len(idx))
	for _, r := range idx {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
	return out
}

type OwnerRecords struct {
	OwnerID      string
	Appointments []*appointment.Appointment
	Pets         []*pet.Pet
}

// Contact returns the most recent email and phone the owner booked with.
func (r OwnerRecords) Contact() (email, phone, name string) {
	var latest *appointment.Appointment
	for _, a := range r.Appointments {
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return "", "", ""
	}
	if latest.OwnerPhone != nil {
		phone = *latest.OwnerPhone
	}
	return latest.OwnerEmail, phone, latest.OwnerName
}
