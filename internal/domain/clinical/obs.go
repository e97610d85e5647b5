package clinical

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/formentry/internal/domain/concept"
	"github.com/ehr/formentry/internal/platform/locale"
)

// Obs is a single clinical observation. An obs with group members is a
// grouping obs and carries no value of its own.
type Obs struct {
	ID            uuid.UUID        `db:"id" json:"id"`
	PersonID      int              `db:"person_id" json:"person_id"`
	Concept       *concept.Concept `json:"concept"`
	ObsDatetime   time.Time        `db:"obs_datetime" json:"obs_datetime"`
	LocationID    *int             `db:"location_id" json:"location_id,omitempty"`
	EncounterID   *uuid.UUID       `db:"encounter_id" json:"encounter_id,omitempty"`
	ObsGroup      *Obs             `json:"-"`
	ValueCoded    *concept.Concept `json:"value_coded,omitempty"`
	ValueNumeric  *float64         `db:"value_numeric" json:"value_numeric,omitempty"`
	ValueText     *string          `db:"value_text" json:"value_text,omitempty"`
	ValueDatetime *time.Time       `db:"value_datetime" json:"value_datetime,omitempty"`
	ValueDrug     *string          `db:"value_drug" json:"value_drug,omitempty"`
	ValueComplex  *string          `db:"value_complex" json:"value_complex,omitempty"`
	GroupMembers  []*Obs           `json:"group_members,omitempty"`
	Voided        bool             `db:"voided" json:"voided"`
	DateCreated   time.Time        `db:"date_created" json:"date_created"`
}

func NewObs(personID int, c *concept.Concept, obsDatetime time.Time, locationID *int) *Obs {
	return &Obs{
		PersonID:    personID,
		Concept:     c,
		ObsDatetime: obsDatetime,
		LocationID:  locationID,
	}
}

func (o *Obs) ConceptID() int {
	if o.Concept == nil {
		return 0
	}
	return o.Concept.ID
}

func (o *Obs) IsObsGrouping() bool {
	return len(o.GroupMembers) > 0
}

// AddGroupMember makes member a child of o.
func (o *Obs) AddGroupMember(member *Obs) {
	member.ObsGroup = o
	o.GroupMembers = append(o.GroupMembers, member)
}

// Members returns the group members, skipping voided ones unless asked.
func (o *Obs) Members(includeVoided bool) []*Obs {
	var out []*Obs
	for _, m := range o.GroupMembers {
		if includeVoided || !m.Voided {
			out = append(out, m)
		}
	}
	return out
}

// HasValue reports whether any value slot is filled.
func (o *Obs) HasValue() bool {
	return o.ValueCoded != nil || o.ValueComplex != nil || o.ValueDatetime != nil ||
		o.ValueDrug != nil || o.ValueNumeric != nil || o.ValueText != nil
}

// ValueAsString renders the filled value slot for display in loc. Boolean
// concepts store 1/0 in the numeric slot and render as true/false.
func (o *Obs) ValueAsString(loc locale.Locale) string {
	switch {
	case o.ValueCoded != nil:
		return o.ValueCoded.Name(loc.Tag)
	case o.ValueNumeric != nil:
		if o.Concept != nil && o.Concept.Datatype == concept.DatatypeBoolean {
			if *o.ValueNumeric != 0 {
				return "true"
			}
			return "false"
		}
		return locale.FormatDouble(*o.ValueNumeric)
	case o.ValueDatetime != nil:
		return loc.FormatDate(*o.ValueDatetime)
	case o.ValueText != nil:
		return *o.ValueText
	case o.ValueDrug != nil:
		return *o.ValueDrug
	case o.ValueComplex != nil:
		return *o.ValueComplex
	}
	return ""
}

// SetValue fills the slot matching the dynamic type of v: numbers go to the
// numeric slot, strings to text, times to datetime and concepts to coded.
// Other types are ignored and reported as false.
func (o *Obs) SetValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case *concept.Concept:
		o.ValueCoded = val
	case string:
		o.ValueText = &val
	case time.Time:
		o.ValueDatetime = &val
	case bool:
		n := 0.0
		if val {
			n = 1
		}
		o.ValueNumeric = &n
	default:
		n, ok := ToFloat(v)
		if !ok {
			return false
		}
		o.ValueNumeric = &n
	}
	return true
}

// ToFloat widens any Go numeric type to float64.
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
