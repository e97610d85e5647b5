package encounter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/formentry/internal/domain/admin"
	"github.com/ehr/formentry/internal/domain/clinical"
	"github.com/ehr/formentry/internal/domain/concept"
	"github.com/ehr/formentry/internal/domain/identity"
)

// Lookups resolves the references stored as ids in encounter and obs rows.
type Lookups struct {
	Concepts      concept.Repository
	Patients      identity.PatientRepository
	Practitioners identity.PractitionerRepository
	Locations     admin.LocationRepository
}

type repoPG struct {
	pool    *pgxpool.Pool
	lookups Lookups
}

func NewRepo(pool *pgxpool.Pool, lookups Lookups) Repository {
	return &repoPG{pool: pool, lookups: lookups}
}

const encCols = `id, patient_id, location_id, provider_id, encounter_datetime, form_id, created_at`

const obsCols = `id, obs_group_id, person_id, concept_id, obs_datetime, location_id,
	value_coded, value_numeric, value_text, value_datetime, value_drug, value_complex,
	voided, date_created`

func (r *repoPG) Create(ctx context.Context, enc *Encounter) error {
	enc.ID = uuid.New()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO encounter (id, patient_id, location_id, provider_id, encounter_datetime, form_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		enc.ID, enc.PatientID, enc.LocationID(), enc.ProviderID(), enc.EncounterDatetime, enc.FormID,
	).Scan(&enc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert encounter: %w", err)
	}

	assignObsIDs(enc)
	for _, o := range enc.AllObs(true) {
		var groupID *uuid.UUID
		if o.ObsGroup != nil {
			groupID = &o.ObsGroup.ID
		}
		var coded *int
		if o.ValueCoded != nil {
			coded = &o.ValueCoded.ID
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO obs (
				id, encounter_id, obs_group_id, person_id, concept_id, obs_datetime, location_id,
				value_coded, value_numeric, value_text, value_datetime, value_drug, value_complex,
				voided, date_created
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			o.ID, enc.ID, groupID, o.PersonID, o.ConceptID(), o.ObsDatetime, o.LocationID,
			coded, o.ValueNumeric, o.ValueText, o.ValueDatetime, o.ValueDrug, o.ValueComplex,
			o.Voided, o.DateCreated,
		); err != nil {
			return fmt.Errorf("insert obs %s: %w", o.ID, err)
		}
	}
	return tx.Commit(ctx)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	enc, err := r.scanEnc(ctx, r.pool.QueryRow(ctx, `SELECT `+encCols+` FROM encounter WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("encounter %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return enc, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int) ([]*Encounter, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM encounter WHERE patient_id = $1 ORDER BY created_at`, patientID)
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*Encounter, 0, len(ids))
	for _, id := range ids {
		enc, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
	}
	return out, nil
}

func (r *repoPG) scanEnc(ctx context.Context, row pgx.Row) (*Encounter, error) {
	var enc Encounter
	var locationID, providerID *int
	if err := row.Scan(&enc.ID, &enc.PatientID, &locationID, &providerID,
		&enc.EncounterDatetime, &enc.FormID, &enc.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if r.lookups.Patients != nil {
		if enc.Patient, err = r.lookups.Patients.GetByID(ctx, enc.PatientID); err != nil {
			return nil, fmt.Errorf("resolve patient: %w", err)
		}
	}
	if locationID != nil && r.lookups.Locations != nil {
		if enc.Location, err = r.lookups.Locations.GetByID(ctx, *locationID); err != nil {
			return nil, fmt.Errorf("resolve location: %w", err)
		}
	}
	if providerID != nil && r.lookups.Practitioners != nil {
		if enc.Provider, err = r.lookups.Practitioners.GetByID(ctx, *providerID); err != nil {
			return nil, fmt.Errorf("resolve provider: %w", err)
		}
	}

	if err := r.loadObs(ctx, &enc); err != nil {
		return nil, err
	}
	return &enc, nil
}

func (r *repoPG) loadObs(ctx context.Context, enc *Encounter) error {
	rows, err := r.pool.Query(ctx,
		`SELECT `+obsCols+` FROM obs WHERE encounter_id = $1 ORDER BY date_created, obs_group_id NULLS FIRST`, enc.ID)
	if err != nil {
		return fmt.Errorf("query obs: %w", err)
	}

	type obsRow struct {
		obs       *clinical.Obs
		groupID   *uuid.UUID
		conceptID int
		codedID   *int
	}
	var loaded []obsRow
	for rows.Next() {
		o := &clinical.Obs{}
		var row obsRow
		var obsDatetime time.Time
		if err := rows.Scan(&o.ID, &row.groupID, &o.PersonID, &row.conceptID, &obsDatetime, &o.LocationID,
			&row.codedID, &o.ValueNumeric, &o.ValueText, &o.ValueDatetime, &o.ValueDrug, &o.ValueComplex,
			&o.Voided, &o.DateCreated); err != nil {
			rows.Close()
			return fmt.Errorf("scan obs: %w", err)
		}
		o.ObsDatetime = obsDatetime
		id := enc.ID
		o.EncounterID = &id
		row.obs = o
		loaded = append(loaded, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	concepts := make(map[int]*concept.Concept)
	resolve := func(id int) (*concept.Concept, error) {
		if c, ok := concepts[id]; ok {
			return c, nil
		}
		if r.lookups.Concepts == nil {
			return &concept.Concept{ID: id}, nil
		}
		c, err := r.lookups.Concepts.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve concept: %w", err)
		}
		concepts[id] = c
		return c, nil
	}

	byID := make(map[uuid.UUID]*clinical.Obs, len(loaded))
	for _, row := range loaded {
		if row.obs.Concept, err = resolve(row.conceptID); err != nil {
			return err
		}
		if row.codedID != nil {
			if row.obs.ValueCoded, err = resolve(*row.codedID); err != nil {
				return err
			}
		}
		byID[row.obs.ID] = row.obs
	}
	for _, row := range loaded {
		if row.groupID == nil {
			continue
		}
		parent, ok := byID[*row.groupID]
		if !ok {
			return fmt.Errorf("obs %s references missing group %s", row.obs.ID, *row.groupID)
		}
		parent.AddGroupMember(row.obs)
	}
	for _, row := range loaded {
		enc.obs = append(enc.obs, row.obs)
	}
	return nil
}
