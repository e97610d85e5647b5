package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table.
type Patient struct {
	ID         int        `db:"patient_id" json:"patient_id" yaml:"id"`
	UUID       uuid.UUID  `db:"uuid" json:"uuid" yaml:"-"`
	GivenName  string     `db:"given_name" json:"given_name" yaml:"given"`
	FamilyName string     `db:"family_name" json:"family_name" yaml:"family"`
	Gender     *string    `db:"gender" json:"gender,omitempty" yaml:"gender"`
	BirthDate  *time.Time `db:"birth_date" json:"birth_date,omitempty" yaml:"birthdate"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at" yaml:"-"`
}

// PersonName returns "Given Family".
func (p *Patient) PersonName() string {
	return joinName(p.GivenName, p.FamilyName)
}

// Practitioner maps to the practitioner table. Practitioners are offered as
// encounter providers on forms.
type Practitioner struct {
	ID         int       `db:"practitioner_id" json:"practitioner_id" yaml:"id"`
	UUID       uuid.UUID `db:"uuid" json:"uuid" yaml:"-"`
	GivenName  string    `db:"given_name" json:"given_name" yaml:"given"`
	FamilyName string    `db:"family_name" json:"family_name" yaml:"family"`
	CreatedAt  time.Time `db:"created_at" json:"created_at" yaml:"-"`
}

func (p *Practitioner) PersonName() string {
	return joinName(p.GivenName, p.FamilyName)
}

func joinName(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}
