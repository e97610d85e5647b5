package admin

import (
	"time"

	"github.com/google/uuid"
)

// Location maps to the location table.
type Location struct {
	ID          int       `db:"location_id" json:"location_id" yaml:"id"`
	UUID        uuid.UUID `db:"uuid" json:"uuid" yaml:"-"`
	Name        string    `db:"name" json:"name" yaml:"name"`
	Description *string   `db:"description" json:"description,omitempty" yaml:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at" yaml:"-"`
}
