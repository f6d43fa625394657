package profile

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

var profileCols = []string{"id", "name", "email", "phone", "address", "role", "created_at", "updated_at"}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	var role string
	if err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.Address, &role, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	r, err := ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.ID, err)
	}
	p.Role = r
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Profile) error {
	query, args, err := psql.Insert("profiles").
		Columns("id", "name", "email", "phone", "address", "role").
		Values(p.ID, p.Name, p.Email, p.Phone, p.Address, string(p.Role)).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	return r.pool.QueryRow(ctx, query, args...).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*Profile, error) {
	query, args, err := psql.Select(profileCols...).From("profiles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	p, err := scanProfile(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoPG) List(ctx context.Context) ([]*Profile, error) {
	query, args, err := psql.Select(profileCols...).From("profiles").OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// Update writes the editable fields. The role column is never touched.
func (r *repoPG) Update(ctx context.Context, p *Profile) error {
	query, args, err := psql.Update("profiles").
		SetMap(map[string]interface{}{
			"name":       p.Name,
			"email":      p.Email,
			"phone":      p.Phone,
			"address":    p.Address,
			"updated_at": sq.Expr("NOW()"),
		}).
		Where(sq.Eq{"id": p.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	err = r.pool.QueryRow(ctx, query, args...).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
