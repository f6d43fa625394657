// Package dashboard aggregates appointment, pet and profile records into the
// admin overview: monthly deltas, status and service breakdowns and a recent
// activity feed.
package dashboard

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/vetclinic/vetclinic/internal/domain/appointment"
	"github.com/vetclinic/vetclinic/internal/domain/pet"
	"github.com/vetclinic/vetclinic/internal/domain/profile"
)

const (
	recentPerCollection = 5
	recentLimit         = 8
)

// Delta compares this calendar month with the previous one. Change is the
// rounded percentage; it is 0 when Previous is 0, and FromZero then marks
// growth from nothing.
type Delta struct {
	Current  int  `json:"current"`
	Previous int  `json:"previous"`
	Change   int  `json:"change"`
	FromZero bool `json:"from_zero"`
}

type Stats struct {
	Appointments Delta `json:"appointments"`
	Pets         Delta `json:"pets"`
	Customers    Delta `json:"customers"`
	Totals       struct {
		Appointments int `json:"appointments"`
		Pets         int `json:"pets"`
		Customers    int `json:"customers"`
	} `json:"totals"`
}

type window struct {
	start, prevStart time.Time
}

func monthWindow(now time.Time) window {
	y, m, _ := now.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	return window{start: start, prevStart: start.AddDate(0, -1, 0)}
}

// count tallies the timestamps falling in the current and previous month.
func (w window) count(ts []time.Time) Delta {
	var d Delta
	for _, t := range ts {
		switch {
		case !t.Before(w.start):
			d.Current++
		case !t.Before(w.prevStart):
			d.Previous++
		}
	}
	d.Change = PercentChange(d.Current, d.Previous)
	d.FromZero = d.Previous == 0 && d.Current > 0
	return d
}

// PercentChange is round((cur-prev)/prev*100), or 0 when prev is 0.
func PercentChange(cur, prev int) int {
	if prev == 0 {
		return 0
	}
	return int(math.Round(float64(cur-prev) / float64(prev) * 100))
}

func StatsForWindow(appts []*appointment.Appointment, pets []*pet.Pet, profiles []*profile.Profile, now time.Time) Stats {
	w := monthWindow(now)

	at := make([]time.Time, len(appts))
	for i, a := range appts {
		at[i] = a.CreatedAt
	}
	pt := make([]time.Time, len(pets))
	for i, p := range pets {
		pt[i] = p.CreatedAt
	}
	var ct []time.Time
	for _, p := range profiles {
		if p.Role == profile.RoleCustomer {
			ct = append(ct, p.CreatedAt)
		}
	}

	s := Stats{
		Appointments: w.count(at),
		Pets:         w.count(pt),
		Customers:    w.count(ct),
	}
	s.Totals.Appointments = len(appts)
	s.Totals.Pets = len(pets)
	s.Totals.Customers = len(ct)
	return s
}

const unknownColor = "#9ca3af"

var statusColors = map[appointment.Status]string{
	appointment.StatusPending:     "#f59e0b",
	appointment.StatusConfirmed:   "#3b82f6",
	appointment.StatusRescheduled: "#8b5cf6",
	appointment.StatusCompleted:   "#10b981",
	appointment.StatusCancelled:   "#ef4444",
}

// StatusColor returns the chart color for s, gray when s is not a known
// status.
func StatusColor(s appointment.Status) string {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return unknownColor
}

type StatusCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Color string `json:"color"`
}

// GroupByStatus lists present statuses in lifecycle order, then any
// unrecognized values alphabetically.
func GroupByStatus(appts []*appointment.Appointment) []StatusCount {
	counts := map[appointment.Status]int{}
	for _, a := range appts {
		counts[a.Status]++
	}
	out := []StatusCount{}
	for _, s := range appointment.Statuses {
		if n := counts[s]; n > 0 {
			out = append(out, StatusCount{Name: string(s), Count: n, Color: StatusColor(s)})
			delete(counts, s)
		}
	}
	var rest []string
	for s := range counts {
		rest = append(rest, string(s))
	}
	sort.Strings(rest)
	for _, s := range rest {
		st := appointment.Status(s)
		out = append(out, StatusCount{Name: s, Count: counts[st], Color: unknownColor})
	}
	return out
}

type ServiceCount struct {
	Service string `json:"service"`
	Label   string `json:"label"`
	Count   int    `json:"count"`
}

// GroupByService tallies by the normalized service, in catalogue order.
func GroupByService(appts []*appointment.Appointment) []ServiceCount {
	counts := map[appointment.ServiceType]int{}
	for _, a := range appts {
		counts[a.Service]++
	}
	out := []ServiceCount{}
	for _, s := range appointment.Services {
		if n := counts[s]; n > 0 {
			out = append(out, ServiceCount{Service: string(s), Label: s.Label(), Count: n})
			delete(counts, s)
		}
	}
	var rest []string
	for s := range counts {
		rest = append(rest, string(s))
	}
	sort.Strings(rest)
	for _, s := range rest {
		out = append(out, ServiceCount{Service: s, Label: s, Count: counts[appointment.ServiceType(s)]})
	}
	return out
}

type ActivityKind string

const (
	ActivityAppointment ActivityKind = "appointment"
	ActivityCustomer    ActivityKind = "customer"
	ActivityPet         ActivityKind = "pet"
)

type Activity struct {
	Kind        ActivityKind `json:"kind"`
	RefID       string       `json:"ref_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	At          time.Time    `json:"at"`
}

func newest[T any](items []T, at func(T) time.Time) []T {
	cp := append([]T(nil), items...)
	sort.SliceStable(cp, func(i, j int) bool { return at(cp[i]).After(at(cp[j])) })
	if len(cp) > recentPerCollection {
		cp = cp[:recentPerCollection]
	}
	return cp
}

// RecentActivity merges the newest records of each collection into one feed
// of at most eight entries, newest first.
func RecentActivity(appts []*appointment.Appointment, profiles []*profile.Profile, pets []*pet.Pet) []Activity {
	out := []Activity{}
	for _, a := range newest(appts, func(a *appointment.Appointment) time.Time { return a.CreatedAt }) {
		out = append(out, Activity{
			Kind:        ActivityAppointment,
			RefID:       a.ID,
			Title:       fmt.Sprintf("%s booked %s", a.OwnerName, a.Service.Label()),
			Description: fmt.Sprintf("%s on %s at %s (%s)", a.PetName, a.Date.Format("Jan 2, 2006"), a.TimeSlot.Display(), a.Status),
			At:          a.CreatedAt,
		})
	}
	for _, p := range newest(profiles, func(p *profile.Profile) time.Time { return p.CreatedAt }) {
		out = append(out, Activity{
			Kind:        ActivityCustomer,
			RefID:       p.ID,
			Title:       "New customer registered",
			Description: fmt.Sprintf("%s (%s)", p.Name, p.Email),
			At:          p.CreatedAt,
		})
	}
	for _, p := range newest(pets, func(p *pet.Pet) time.Time { return p.CreatedAt }) {
		out = append(out, Activity{
			Kind:        ActivityPet,
			RefID:       p.ID,
			Title:       "New pet added",
			Description: fmt.Sprintf("%s the %s", p.Name, p.SpeciesLabel()),
			At:          p.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	if len(out) > recentLimit {
		out = out[:recentLimit]
	}
	return out
}
