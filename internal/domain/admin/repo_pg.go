package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type locationRepoPG struct {
	pool *pgxpool.Pool
}

func NewLocationRepo(pool *pgxpool.Pool) LocationRepository {
	return &locationRepoPG{pool: pool}
}

func (r *locationRepoPG) Create(ctx context.Context, l *Location) error {
	if l.UUID == uuid.Nil {
		l.UUID = uuid.New()
	}
	if l.ID == 0 {
		return r.pool.QueryRow(ctx, `
			INSERT INTO location (uuid, name, description) VALUES ($1, $2, $3)
			RETURNING location_id, created_at`,
			l.UUID, l.Name, l.Description,
		).Scan(&l.ID, &l.CreatedAt)
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO location (location_id, uuid, name, description) VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		l.ID, l.UUID, l.Name, l.Description,
	).Scan(&l.CreatedAt)
}

func (r *locationRepoPG) GetByID(ctx context.Context, id int) (*Location, error) {
	var l Location
	err := r.pool.QueryRow(ctx,
		`SELECT location_id, uuid, name, description, created_at FROM location WHERE location_id = $1`, id,
	).Scan(&l.ID, &l.UUID, &l.Name, &l.Description, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("location %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *locationRepoPG) List(ctx context.Context) ([]*Location, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT location_id, uuid, name, description, created_at FROM location ORDER BY location_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.UUID, &l.Name, &l.Description, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
