package profile

import (
	"context"
	"fmt"
	"sort"

	"github.com/vetclinic/vetclinic/internal/platform/kvstore"
)

const CollectionKey = "profiles"

type kvRepo struct {
	col *kvstore.Collection[Profile]
}

func NewRepoKV(ctx context.Context, store kvstore.Store) (Repository, error) {
	col, err := kvstore.LoadCollection[Profile](ctx, store, CollectionKey)
	if err != nil {
		return nil, err
	}
	return &kvRepo{col: col}, nil
}

func indexOf(items []Profile, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *kvRepo) Create(ctx context.Context, p *Profile) error {
	return r.col.Write(ctx, func(items []Profile) ([]Profile, error) {
		if indexOf(items, p.ID) >= 0 {
			return nil, fmt.Errorf("profile %s already exists", p.ID)
		}
		return append(items, *p), nil
	})
}

func (r *kvRepo) GetByID(_ context.Context, id string) (*Profile, error) {
	var out *Profile
	r.col.Read(func(items []Profile) {
		if i := indexOf(items, id); i >= 0 {
			p := items[i]
			out = &p
		}
	})
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

func (r *kvRepo) List(_ context.Context) ([]*Profile, error) {
	var out []*Profile
	r.col.Read(func(items []Profile) {
		for i := range items {
			p := items[i]
			out = append(out, &p)
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *kvRepo) Update(ctx context.Context, p *Profile) error {
	return r.col.Write(ctx, func(items []Profile) ([]Profile, error) {
		i := indexOf(items, p.ID)
		if i < 0 {
			return nil, ErrNotFound
		}
		items[i] = *p
		return items, nil
	})
}
