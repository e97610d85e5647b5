package identity

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

type Service struct {
	patients      PatientRepository
	practitioners PractitionerRepository
}

func NewService(patients PatientRepository, practitioners PractitionerRepository) *Service {
	return &Service{patients: patients, practitioners: practitioners}
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.FamilyName == "" {
		return fmt.Errorf("family_name is required")
	}
	if p.ID < 0 {
		return fmt.Errorf("patient_id must not be negative")
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id int) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) CreatePractitioner(ctx context.Context, p *Practitioner) error {
	if p.FamilyName == "" && p.GivenName == "" {
		return fmt.Errorf("practitioner name is required")
	}
	return s.practitioners.Create(ctx, p)
}

func (s *Service) GetPractitioner(ctx context.Context, id int) (*Practitioner, error) {
	return s.practitioners.GetByID(ctx, id)
}

func (s *Service) ListPractitioners(ctx context.Context) ([]*Practitioner, error) {
	return s.practitioners.List(ctx)
}
