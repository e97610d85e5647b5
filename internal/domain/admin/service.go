package admin

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

type Service struct {
	locations LocationRepository
}

func NewService(locations LocationRepository) *Service {
	return &Service{locations: locations}
}

func (s *Service) CreateLocation(ctx context.Context, l *Location) error {
	if l.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.locations.Create(ctx, l)
}

func (s *Service) GetLocation(ctx context.Context, id int) (*Location, error) {
	return s.locations.GetByID(ctx, id)
}

func (s *Service) ListLocations(ctx context.Context) ([]*Location, error) {
	return s.locations.List(ctx)
}
