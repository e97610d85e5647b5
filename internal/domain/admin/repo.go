package admin

import "context"

type LocationRepository interface {
	Create(ctx context.Context, l *Location) error
	GetByID(ctx context.Context, id int) (*Location, error)
	List(ctx context.Context) ([]*Location, error)
}
