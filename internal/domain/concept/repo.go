package concept

import "context"

type Repository interface {
	Create(ctx context.Context, c *Concept) error
	GetByID(ctx context.Context, id int) (*Concept, error)
	List(ctx context.Context) ([]*Concept, error)
}
