package htmlform

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ehr/formentry/internal/domain/admin"
	"github.com/ehr/formentry/internal/domain/concept"
	"github.com/ehr/formentry/internal/domain/encounter"
	"github.com/ehr/formentry/internal/domain/identity"
	"github.com/ehr/formentry/internal/platform/locale"
)

// Services bundles the domain services a form session reads from and writes to.
type Services struct {
	Concepts   *concept.Service
	Identity   *identity.Service
	Admin      *admin.Service
	Encounters *encounter.Service
	Locale     locale.Locale
	Logger     zerolog.Logger
	// Now is used for "not in the future" checks; nil means time.Now.
	Now func() time.Time
}

func (s *Services) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// NewMemServices wires every service to an in-memory repository.
func NewMemServices(loc locale.Locale, logger zerolog.Logger) *Services {
	return &Services{
		Concepts:   concept.NewService(concept.NewMemRepo()),
		Identity:   identity.NewService(identity.NewPatientMemRepo(), identity.NewPractitionerMemRepo()),
		Admin:      admin.NewService(admin.NewLocationMemRepo()),
		Encounters: encounter.NewService(encounter.NewMemRepo()),
		Locale:     loc,
		Logger:     logger,
	}
}

// NewPGServices wires every service to PostgreSQL through pool.
func NewPGServices(pool *pgxpool.Pool, loc locale.Locale, logger zerolog.Logger) *Services {
	concepts := concept.NewRepo(pool)
	patients := identity.NewPatientRepo(pool)
	practitioners := identity.NewPractitionerRepo(pool)
	locations := admin.NewLocationRepo(pool)
	encounters := encounter.NewRepo(pool, encounter.Lookups{
		Concepts:      concepts,
		Patients:      patients,
		Practitioners: practitioners,
		Locations:     locations,
	})
	return &Services{
		Concepts:   concept.NewService(concepts),
		Identity:   identity.NewService(patients, practitioners),
		Admin:      admin.NewService(locations),
		Encounters: encounter.NewService(encounters),
		Locale:     loc,
		Logger:     logger,
	}
}
