package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repoPG struct {
	db   queryable
	pool *pgxpool.Pool
	loc  *time.Location
}

// NewRepoPG stores appointments in the appointments table. Dates are read
// back as midnight in loc.
func NewRepoPG(pool *pgxpool.Pool, loc *time.Location) Repository {
	return &repoPG{db: pool, pool: pool, loc: loc}
}

var apptCols = []string{
	"id", "owner_id", "owner_name", "owner_email", "owner_phone", "pet_id", "pet_name",
	"service", "appointment_date", "time_slot", "status", "reason", "additional_info",
	"urgent", "first_visit", "grooming_package", "created_at", "updated_at",
}

func (r *repoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var service, slot, status string
	var date time.Time
	err := row.Scan(&a.ID, &a.OwnerID, &a.OwnerName, &a.OwnerEmail, &a.OwnerPhone, &a.PetID, &a.PetName,
		&service, &date, &slot, &status, &a.Reason, &a.AdditionalInfo,
		&a.Urgent, &a.FirstVisit, &a.GroomingPackage, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if a.Service, err = ParseService(service); err != nil {
		return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
	}
	if a.TimeSlot, err = ParseTimeSlot(slot); err != nil {
		return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
	}
	if a.Status, err = ParseStatus(status); err != nil {
		return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
	}
	y, m, d := date.Date()
	a.Date = time.Date(y, m, d, 0, 0, 0, 0, r.loc)
	a.Time = a.TimeSlot.Display()
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	query, args, err := psql.Insert("appointments").
		Columns(apptCols[:len(apptCols)-2]...).
		Values(a.ID, a.OwnerID, a.OwnerName, a.OwnerEmail, a.OwnerPhone, a.PetID, a.PetName,
			string(a.Service), a.Date.Format(time.DateOnly), string(a.TimeSlot), string(a.Status),
			a.Reason, a.AdditionalInfo, a.Urgent, a.FirstVisit, a.GroomingPackage).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	return r.db.QueryRow(ctx, query, args...).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*Appointment, error) {
	query, args, err := psql.Select(apptCols...).From("appointments").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	a, err := r.scanAppointment(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Appointment, error) {
	b := psql.Select(apptCols...).From("appointments").OrderBy("created_at DESC")
	if f.OwnerID != "" {
		b = b.Where(sq.Eq{"owner_id": f.OwnerID})
	}
	if f.Email != "" {
		b = b.Where(sq.Expr("LOWER(owner_email) = LOWER(?)", f.Email))
	}
	if f.Status != "" {
		statuses := []string{string(f.Status)}
		if f.Status == StatusPending {
			statuses = append(statuses, "scheduled")
		}
		b = b.Where(sq.Eq{"status": statuses})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	query, args, err := psql.Update("appointments").
		SetMap(map[string]interface{}{
			"owner_name":       a.OwnerName,
			"owner_email":      a.OwnerEmail,
			"owner_phone":      a.OwnerPhone,
			"pet_id":           a.PetID,
			"pet_name":         a.PetName,
			"service":          string(a.Service),
			"appointment_date": a.Date.Format(time.DateOnly),
			"time_slot":        string(a.TimeSlot),
			"status":           string(a.Status),
			"reason":           a.Reason,
			"additional_info":  a.AdditionalInfo,
			"urgent":           a.Urgent,
			"first_visit":      a.FirstVisit,
			"grooming_package": a.GroomingPackage,
			"updated_at":       sq.Expr("NOW()"),
		}).
		Where(sq.Eq{"id": a.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	err = r.db.QueryRow(ctx, query, args...).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Mutate locks the row for the length of a transaction so concurrent status
// changes are applied one after the other.
func (r *repoPG) Mutate(ctx context.Context, id string, fn func(a *Appointment) error) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	query, args, err := psql.Select(apptCols...).From("appointments").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	txRepo := &repoPG{db: tx, loc: r.loc}
	a, err := txRepo.scanAppointment(tx.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := fn(a); err != nil {
		return nil, err
	}
	if err := txRepo.Update(ctx, a); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return a, nil
}

func (r *repoPG) Delete(ctx context.Context, id string) error {
	query, args, err := psql.Delete("appointments").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	_, err = r.db.Exec(ctx, query, args...)
	return err
}
