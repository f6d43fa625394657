package appointment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vetclinic/vetclinic/internal/platform/kvstore"
)

// CollectionKey is the key the whole appointment array is stored under.
const CollectionKey = "appointments"

type kvRepo struct {
	col *kvstore.Collection[Appointment]
	loc *time.Location
}

// NewRepoKV keeps every appointment in one stored array that is rewritten on
// each mutation. Dates are read back as midnight in loc.
func NewRepoKV(ctx context.Context, store kvstore.Store, loc *time.Location) (Repository, error) {
	if loc == nil {
		loc = time.UTC
	}
	col, err := kvstore.LoadCollection[Appointment](ctx, store, CollectionKey)
	if err != nil {
		return nil, err
	}
	return &kvRepo{col: col, loc: loc}, nil
}

func indexOf(items []Appointment, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// withDisplayTime also restores the clinic zone; decoded JSON times only keep
// a fixed offset.
func (r *kvRepo) withDisplayTime(a Appointment) *Appointment {
	y, m, d := a.Date.Date()
	a.Date = time.Date(y, m, d, 0, 0, 0, 0, r.loc)
	a.Time = a.TimeSlot.Display()
	return &a
}

func (r *kvRepo) Create(ctx context.Context, a *Appointment) error {
	return r.col.Write(ctx, func(items []Appointment) ([]Appointment, error) {
		if indexOf(items, a.ID) >= 0 {
			return nil, fmt.Errorf("appointment %s already exists", a.ID)
		}
		return append(items, *a), nil
	})
}

func (r *kvRepo) GetByID(_ context.Context, id string) (*Appointment, error) {
	var out *Appointment
	r.col.Read(func(items []Appointment) {
		if i := indexOf(items, id); i >= 0 {
			out = r.withDisplayTime(items[i])
		}
	})
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

func (r *kvRepo) List(_ context.Context, f Filter) ([]*Appointment, error) {
	var out []*Appointment
	r.col.Read(func(items []Appointment) {
		for i := range items {
			if f.Match(&items[i]) {
				out = append(out, r.withDisplayTime(items[i]))
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *kvRepo) Update(ctx context.Context, a *Appointment) error {
	return r.col.Write(ctx, func(items []Appointment) ([]Appointment, error) {
		i := indexOf(items, a.ID)
		if i < 0 {
			return nil, ErrNotFound
		}
		items[i] = *a
		return items, nil
	})
}

// Mutate applies fn to the stored record while holding the collection lock,
// so a concurrent writer cannot act on the same snapshot.
func (r *kvRepo) Mutate(ctx context.Context, id string, fn func(a *Appointment) error) (*Appointment, error) {
	var out *Appointment
	err := r.col.Write(ctx, func(items []Appointment) ([]Appointment, error) {
		i := indexOf(items, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		a := r.withDisplayTime(items[i])
		if err := fn(a); err != nil {
			return nil, err
		}
		items[i] = *a
		out = a
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *kvRepo) Delete(ctx context.Context, id string) error {
	return r.col.Write(ctx, func(items []Appointment) ([]Appointment, error) {
		i := indexOf(items, id)
		if i < 0 {
			return items, nil
		}
		return append(items[:i], items[i+1:]...), nil
	})
}
