package encounter

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateEncounter(ctx context.Context, enc *Encounter) error {
	if enc.PatientID == 0 {
		if enc.Patient == nil {
			return fmt.Errorf("patient_id is required")
		}
		enc.PatientID = enc.Patient.ID
	}
	if enc.EncounterDatetime.IsZero() {
		return fmt.Errorf("encounter_datetime is required")
	}
	for _, o := range enc.AllObs(true) {
		if o.Concept == nil {
			return fmt.Errorf("obs without concept")
		}
		if o.IsObsGrouping() && o.HasValue() {
			return fmt.Errorf("obs group for concept %d must not carry a value", o.ConceptID())
		}
	}
	return s.repo.Create(ctx, enc)
}

func (s *Service) GetEncounter(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListEncountersByPatient(ctx context.Context, patientID int) ([]*Encounter, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// LastEncounter returns the patient's encounter with the latest encounter
// datetime, or nil when the patient has none. A zero datetime sorts first.
func (s *Service) LastEncounter(ctx context.Context, patientID int) (*Encounter, error) {
	encs, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(encs) == 0 {
		return nil, nil
	}
	if len(encs) == 1 {
		return encs[0], nil
	}
	sort.SliceStable(encs, func(i, j int) bool {
		return compareNullAsEarliest(encs[i].EncounterDatetime, encs[j].EncounterDatetime) < 0
	})
	return encs[len(encs)-1], nil
}
