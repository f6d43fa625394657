package pet

import "context"

// Repository persists pets. ownerID scopes every call; an empty ownerID on
// List returns all pets.
type Repository interface {
	Create(ctx context.Context, p *Pet) error
	GetByID(ctx context.Context, ownerID, id string) (*Pet, error)
	List(ctx context.Context, ownerID string) ([]*Pet, error)
	Update(ctx context.Context, p *Pet) error
	Delete(ctx context.Context, ownerID, id string) error
}
