package pet

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repoPG struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

func NewRepoPG(pool *pgxpool.Pool, loc *time.Location) Repository {
	return &repoPG{pool: pool, loc: loc}
}

var petCols = []string{
	"id", "owner_id", "name", "type", "species", "breed", "weight",
	"birth_date", "gender", "created_at", "updated_at",
}

func (r *repoPG) scanPet(row pgx.Row) (*Pet, error) {
	var p Pet
	var kind, gender string
	var birth time.Time
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &kind, &p.Species, &p.Breed, &p.Weight,
		&birth, &gender, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	k, sub, err := ParseKind(kind)
	if err != nil {
		return nil, fmt.Errorf("pet %s: %w", p.ID, err)
	}
	p.Type = k
	if sub != "" && p.Species == nil {
		p.Species = &sub
	}
	if p.Gender, err = ParseGender(gender); err != nil {
		return nil, fmt.Errorf("pet %s: %w", p.ID, err)
	}
	y, m, d := birth.Date()
	p.BirthDate = time.Date(y, m, d, 0, 0, 0, 0, r.loc)
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Pet) error {
	query, args, err := psql.Insert("pets").
		Columns(petCols[:len(petCols)-2]...).
		Values(p.ID, p.OwnerID, p.Name, string(p.Type), p.Species, p.Breed, p.Weight,
			p.BirthDate.Format(time.DateOnly), string(p.Gender)).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	return r.pool.QueryRow(ctx, query, args...).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, ownerID, id string) (*Pet, error) {
	query, args, err := psql.Select(petCols...).From("pets").
		Where(sq.Eq{"id": id, "owner_id": ownerID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	p, err := r.scanPet(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoPG) List(ctx context.Context, ownerID string) ([]*Pet, error) {
	b := psql.Select(petCols...).From("pets").OrderBy("created_at DESC")
	if ownerID != "" {
		b = b.Where(sq.Eq{"owner_id": ownerID})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Pet
	for rows.Next() {
		p, err := r.scanPet(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, p *Pet) error {
	query, args, err := psql.Update("pets").
		SetMap(map[string]interface{}{
			"name":       p.Name,
			"type":       string(p.Type),
			"species":    p.Species,
			"breed":      p.Breed,
			"weight":     p.Weight,
			"birth_date": p.BirthDate.Format(time.DateOnly),
			"gender":     string(p.Gender),
			"updated_at": sq.Expr("NOW()"),
		}).
		Where(sq.Eq{"id": p.ID, "owner_id": p.OwnerID}).
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

func (r *repoPG) Delete(ctx context.Context, ownerID, id string) error {
	query, args, err := psql.Delete("pets").Where(sq.Eq{"id": id, "owner_id": ownerID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
