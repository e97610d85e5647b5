// Package dataset loads reference data (locations, providers, patients and
// concepts) from YAML into the domain services.
package dataset

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ehr/formentry/internal/domain/admin"
	"github.com/ehr/formentry/internal/domain/concept"
	"github.com/ehr/formentry/internal/domain/identity"
)

//go:embed standard.yaml
var standard []byte

type Dataset struct {
	Locations     []*admin.Location        `yaml:"locations"`
	Practitioners []*identity.Practitioner `yaml:"practitioners"`
	Patients      []*identity.Patient      `yaml:"patients"`
	Concepts      []*concept.Concept       `yaml:"concepts"`
}

// Standard returns the built-in dataset used by tests and by "serve" when no
// DATASET file is configured.
func Standard() (*Dataset, error) {
	return Parse(standard)
}

func ReadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Dataset, error) {
	var d Dataset
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	return &d, nil
}

// Targets are the services a dataset is loaded into.
type Targets struct {
	Concepts *concept.Service
	Identity *identity.Service
	Admin    *admin.Service
}

// Load creates every record of d. Records are created in file order, so
// coded concepts may reference answers listed before them.
func (d *Dataset) Load(ctx context.Context, t Targets) error {
	for _, l := range d.Locations {
		if err := t.Admin.CreateLocation(ctx, l); err != nil {
			return fmt.Errorf("location %d: %w", l.ID, err)
		}
	}
	for _, p := range d.Practitioners {
		if err := t.Identity.CreatePractitioner(ctx, p); err != nil {
			return fmt.Errorf("practitioner %d: %w", p.ID, err)
		}
	}
	for _, p := range d.Patients {
		if err := t.Identity.CreatePatient(ctx, p); err != nil {
			return fmt.Errorf("patient %d: %w", p.ID, err)
		}
	}
	for _, c := range d.Concepts {
		if err := t.Concepts.CreateConcept(ctx, c); err != nil {
			return fmt.Errorf("concept %d: %w", c.ID, err)
		}
	}
	return nil
}
