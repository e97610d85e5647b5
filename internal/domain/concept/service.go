package concept

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by lookups that find nothing.
var ErrNotFound = errors.New("not found")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateConcept(ctx context.Context, c *Concept) error {
	if c.ID <= 0 {
		return fmt.Errorf("concept_id must be positive")
	}
	if c.Datatype == "" {
		c.Datatype = DatatypeNA
	}
	if !validDatatypes[c.Datatype] {
		return fmt.Errorf("invalid datatype: %s", c.Datatype)
	}
	if len(c.Names) == 0 {
		return fmt.Errorf("concept %d needs at least one name", c.ID)
	}
	if len(c.Answers) > 0 && c.Datatype != DatatypeCoded {
		return fmt.Errorf("concept %d has answers but datatype %s", c.ID, c.Datatype)
	}
	return s.repo.Create(ctx, c)
}

func (s *Service) GetConcept(ctx context.Context, id int) (*Concept, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListConcepts(ctx context.Context) ([]*Concept, error) {
	return s.repo.List(ctx)
}
