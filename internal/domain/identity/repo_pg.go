package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `patient_id, uuid, given_name, family_name, gender, birth_date, created_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	if p.ID == 0 {
		return r.pool.QueryRow(ctx, `
			INSERT INTO patient (uuid, given_name, family_name, gender, birth_date)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING patient_id, created_at`,
			p.UUID, p.GivenName, p.FamilyName, p.Gender, p.BirthDate,
		).Scan(&p.ID, &p.CreatedAt)
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO patient (patient_id, uuid, given_name, family_name, gender, birth_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		p.ID, p.UUID, p.GivenName, p.FamilyName, p.Gender, p.BirthDate,
	).Scan(&p.CreatedAt)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int) (*Patient, error) {
	var p Patient
	err := r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE patient_id = $1`, id).
		Scan(&p.ID, &p.UUID, &p.GivenName, &p.FamilyName, &p.Gender, &p.BirthDate, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("patient %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+patientCols+` FROM patient ORDER BY patient_id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.UUID, &p.GivenName, &p.FamilyName, &p.Gender, &p.BirthDate, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &p)
	}
	return out, total, rows.Err()
}

type practitionerRepoPG struct {
	pool *pgxpool.Pool
}

func NewPractitionerRepo(pool *pgxpool.Pool) PractitionerRepository {
	return &practitionerRepoPG{pool: pool}
}

func (r *practitionerRepoPG) Create(ctx context.Context, p *Practitioner) error {
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	if p.ID == 0 {
		return r.pool.QueryRow(ctx, `
			INSERT INTO practitioner (uuid, given_name, family_name)
			VALUES ($1, $2, $3)
			RETURNING practitioner_id, created_at`,
			p.UUID, p.GivenName, p.FamilyName,
		).Scan(&p.ID, &p.CreatedAt)
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO practitioner (practitioner_id, uuid, given_name, family_name)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		p.ID, p.UUID, p.GivenName, p.FamilyName,
	).Scan(&p.CreatedAt)
}

func (r *practitionerRepoPG) GetByID(ctx context.Context, id int) (*Practitioner, error) {
	var p Practitioner
	err := r.pool.QueryRow(ctx, `
		SELECT practitioner_id, uuid, given_name, family_name, created_at
		FROM practitioner WHERE practitioner_id = $1`, id,
	).Scan(&p.ID, &p.UUID, &p.GivenName, &p.FamilyName, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("practitioner %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *practitionerRepoPG) List(ctx context.Context) ([]*Practitioner, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT practitioner_id, uuid, given_name, family_name, created_at
		FROM practitioner ORDER BY practitioner_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Practitioner
	for rows.Next() {
		var p Practitioner
		if err := rows.Scan(&p.ID, &p.UUID, &p.GivenName, &p.FamilyName, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
