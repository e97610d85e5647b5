package concept

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Create(ctx context.Context, c *Concept) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO concept (concept_id, uuid, datatype, is_set)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		c.ID, c.UUID, c.Datatype, c.IsSet,
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert concept %d: %w", c.ID, err)
	}
	for loc, name := range c.Names {
		if _, err := tx.Exec(ctx,
			`INSERT INTO concept_name (concept_id, locale, name) VALUES ($1, $2, $3)`,
			c.ID, loc, name,
		); err != nil {
			return fmt.Errorf("insert concept name: %w", err)
		}
	}
	for i, a := range c.Answers {
		if _, err := tx.Exec(ctx,
			`INSERT INTO concept_answer (concept_id, answer_concept_id, sort_weight) VALUES ($1, $2, $3)`,
			c.ID, a, i,
		); err != nil {
			return fmt.Errorf("insert concept answer: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *repoPG) GetByID(ctx context.Context, id int) (*Concept, error) {
	var c Concept
	err := r.pool.QueryRow(ctx,
		`SELECT concept_id, uuid, datatype, is_set, created_at FROM concept WHERE concept_id = $1`, id,
	).Scan(&c.ID, &c.UUID, &c.Datatype, &c.IsSet, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("concept %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadDetails(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) List(ctx context.Context) ([]*Concept, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT concept_id, uuid, datatype, is_set, created_at FROM concept ORDER BY concept_id`)
	if err != nil {
		return nil, err
	}
	var out []*Concept
	for rows.Next() {
		var c Concept
		if err := rows.Scan(&c.ID, &c.UUID, &c.Datatype, &c.IsSet, &c.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, &c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, c := range out {
		if err := r.loadDetails(ctx, c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *repoPG) loadDetails(ctx context.Context, c *Concept) error {
	rows, err := r.pool.Query(ctx, `SELECT locale, name FROM concept_name WHERE concept_id = $1`, c.ID)
	if err != nil {
		return fmt.Errorf("query concept names: %w", err)
	}
	c.Names = make(map[string]string)
	for rows.Next() {
		var loc, name string
		if err := rows.Scan(&loc, &name); err != nil {
			rows.Close()
			return err
		}
		c.Names[loc] = name
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.pool.Query(ctx,
		`SELECT answer_concept_id FROM concept_answer WHERE concept_id = $1 ORDER BY sort_weight`, c.ID)
	if err != nil {
		return fmt.Errorf("query concept answers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a int
		if err := rows.Scan(&a); err != nil {
			return err
		}
		c.Answers = append(c.Answers, a)
	}
	return rows.Err()
}
