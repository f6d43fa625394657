package appointment

import "context"

// Repository persists appointments. GetByID, Update and Mutate return
// ErrNotFound for unknown ids; Delete of an unknown id is a no-op.
//
// Mutate reads the record, applies fn and writes the result as one atomic
// step. An error from fn aborts the write and is returned unchanged.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id string) (*Appointment, error)
	List(ctx context.Context, f Filter) ([]*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Mutate(ctx context.Context, id string, fn func(a *Appointment) error) (*Appointment, error)
	Delete(ctx context.Context, id string) error
}
