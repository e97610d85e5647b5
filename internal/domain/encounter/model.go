package encounter

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/formentry/internal/domain/admin"
	"github.com/ehr/formentry/internal/domain/clinical"
	"github.com/ehr/formentry/internal/domain/identity"
)

// Encounter maps to the encounter table. It owns every obs recorded during
// the visit, group members included.
type Encounter struct {
	ID                uuid.UUID              `db:"id" json:"id"`
	PatientID         int                    `db:"patient_id" json:"patient_id"`
	Patient           *identity.Patient      `json:"-"`
	Location          *admin.Location        `json:"location,omitempty"`
	Provider          *identity.Practitioner `json:"provider,omitempty"`
	EncounterDatetime time.Time              `db:"encounter_datetime" json:"encounter_datetime"`
	FormID            *int                   `db:"form_id" json:"form_id,omitempty"`
	CreatedAt         time.Time              `db:"created_at" json:"created_at"`

	obs []*clinical.Obs
}

func (e *Encounter) LocationID() *int {
	if e.Location == nil {
		return nil
	}
	return &e.Location.ID
}

func (e *Encounter) ProviderID() *int {
	if e.Provider == nil {
		return nil
	}
	return &e.Provider.ID
}

// AddObs attaches o and its group members to the encounter. Person, obs
// datetime and location are inherited from the encounter when unset.
func (e *Encounter) AddObs(o *clinical.Obs) {
	for _, existing := range e.obs {
		if existing == o {
			return
		}
	}
	if o.PersonID == 0 {
		o.PersonID = e.PatientID
	}
	if o.ObsDatetime.IsZero() {
		o.ObsDatetime = e.EncounterDatetime
	}
	if o.LocationID == nil {
		o.LocationID = e.LocationID()
	}
	if e.ID != uuid.Nil {
		id := e.ID
		o.EncounterID = &id
	}
	e.obs = append(e.obs, o)
	for _, m := range o.GroupMembers {
		e.AddObs(m)
	}
}

// AllObs returns every obs of the encounter, groups and their members alike.
func (e *Encounter) AllObs(includeVoided bool) []*clinical.Obs {
	var out []*clinical.Obs
	for _, o := range e.obs {
		if includeVoided || !o.Voided {
			out = append(out, o)
		}
	}
	return out
}

// ObsAtTopLevel returns the obs that do not belong to a group.
func (e *Encounter) ObsAtTopLevel(includeVoided bool) []*clinical.Obs {
	var out []*clinical.Obs
	for _, o := range e.AllObs(includeVoided) {
		if o.ObsGroup == nil {
			out = append(out, o)
		}
	}
	return out
}

// LeafObs returns the non-voided obs that are not groupings, members of
// groups included.
func (e *Encounter) LeafObs() []*clinical.Obs {
	var out []*clinical.Obs
	for _, o := range e.AllObs(false) {
		if !o.IsObsGrouping() {
			out = append(out, o)
		}
	}
	return out
}
