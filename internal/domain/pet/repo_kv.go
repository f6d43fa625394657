package pet

import (
	"context"
	"sort"
	"time"

	"github.com/vetclinic/vetclinic/internal/platform/kvstore"
)

const CollectionKey = "pets"

type kvRepo struct {
	col *kvstore.Collection[Pet]
	loc *time.Location
}

// NewRepoKV reads birth dates back as midnight in loc.
func NewRepoKV(ctx context.Context, store kvstore.Store, loc *time.Location) (Repository, error) {
	if loc == nil {
		loc = time.UTC
	}
	col, err := kvstore.LoadCollection[Pet](ctx, store, CollectionKey)
	if err != nil {
		return nil, err
	}
	return &kvRepo{col: col, loc: loc}, nil
}

func (r *kvRepo) local(p Pet) *Pet {
	y, m, d := p.BirthDate.Date()
	p.BirthDate = time.Date(y, m, d, 0, 0, 0, 0, r.loc)
	return &p
}

func find(items []Pet, ownerID, id string) int {
	for i := range items {
		if items[i].ID == id && items[i].OwnerID == ownerID {
			return i
		}
	}
	return -1
}

func (r *kvRepo) Create(ctx context.Context, p *Pet) error {
	return r.col.Write(ctx, func(items []Pet) ([]Pet, error) {
		return append(items, *p), nil
	})
}

func (r *kvRepo) GetByID(_ context.Context, ownerID, id string) (*Pet, error) {
	var out *Pet
	r.col.Read(func(items []Pet) {
		if i := find(items, ownerID, id); i >= 0 {
			out = r.local(items[i])
		}
	})
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

func (r *kvRepo) List(_ context.Context, ownerID string) ([]*Pet, error) {
	var out []*Pet
	r.col.Read(func(items []Pet) {
		for i := range items {
			if ownerID == "" || items[i].OwnerID == ownerID {
				out = append(out, r.local(items[i]))
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *kvRepo) Update(ctx context.Context, p *Pet) error {
	return r.col.Write(ctx, func(items []Pet) ([]Pet, error) {
		i := find(items, p.OwnerID, p.ID)
		if i < 0 {
			return nil, ErrNotFound
		}
		items[i] = *p
		return items, nil
	})
}

func (r *kvRepo) Delete(ctx context.Context, ownerID, id string) error {
	return r.col.Write(ctx, func(items []Pet) ([]Pet, error) {
		i := find(items, ownerID, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		return append(items[:i], items[i+1:]...), nil
	})
}
