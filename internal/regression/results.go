package regression

import (
	"fmt"

	"github.com/stretchr/testify/require"

	"github.com/ehr/formentry/internal/domain/clinical"
	"github.com/ehr/formentry/internal/domain/encounter"
	"github.com/ehr/formentry/internal/htmlform"
)

// SubmissionResults holds either the validation errors of a submission or
// the encounter it created.
type SubmissionResults struct {
	ValidationErrors []htmlform.FormSubmissionError
	EncounterCreated *encounter.Encounter

	t require.TestingT
	h *Harness
}

func (r *SubmissionResults) AssertNoEncounterCreated() {
	require.Nil(r.t, r.EncounterCreated)
}

func (r *SubmissionResults) AssertEncounterCreated() {
	require.NotNil(r.t, r.EncounterCreated)
}

func (r *SubmissionResults) AssertNoErrors() {
	require.Empty(r.t, r.ValidationErrors, "expected no validation errors")
}

func (r *SubmissionResults) AssertErrors() {
	require.NotEmpty(r.t, r.ValidationErrors, "expected validation errors")
}

func (r *SubmissionResults) AssertErrorCount(n int) {
	require.Len(r.t, r.ValidationErrors, n)
}

func (r *SubmissionResults) AssertObsCreatedCount(expected int) {
	found := r.ObsCreatedCount()
	require.Equal(r.t, expected, found, "Expected to create %d obs but got %d", expected, found)
}

func (r *SubmissionResults) AssertObsGroupCreatedCount(expected int) {
	found := r.ObsGroupCreatedCount()
	require.Equal(r.t, expected, found, "Expected to create %d obs groups but got %d", expected, found)
}

func (r *SubmissionResults) AssertObsLeafCreatedCount(expected int) {
	found := r.ObsLeafCreatedCount()
	require.Equal(r.t, expected, found, "Expected to create %d non-group obs but got %d", expected, found)
}

// ObsCreatedCount counts every obs of the created encounter, groups and
// members alike. It is 0 when no encounter was created.
func (r *SubmissionResults) ObsCreatedCount() int {
	if r.EncounterCreated == nil {
		return 0
	}
	return len(r.EncounterCreated.AllObs(false))
}

func (r *SubmissionResults) ObsGroupCreatedCount() int {
	if r.EncounterCreated == nil {
		return 0
	}
	n := 0
	for _, o := range r.EncounterCreated.AllObs(false) {
		if o.IsObsGrouping() {
			n++
		}
	}
	return n
}

// ObsLeafCreatedCount counts the obs that are not groups.
func (r *SubmissionResults) ObsLeafCreatedCount() int {
	if r.EncounterCreated == nil {
		return 0
	}
	return len(r.EncounterCreated.LeafObs())
}

// AssertObsCreated fails unless the created encounter has an obs of
// conceptID with the given value. A nil value matches any obs of the concept.
func (r *SubmissionResults) AssertObsCreated(conceptID int, value interface{}) {
	if r.EncounterCreated == nil {
		require.Fail(r.t, "no encounter created")
		return
	}
	want, ok := r.h.ValueAsString(value)
	for _, o := range r.EncounterCreated.AllObs(false) {
		if o.ConceptID() != conceptID {
			continue
		}
		if !ok || want == o.ValueAsString(r.h.Services.Locale) {
			return
		}
	}
	require.Fail(r.t, fmt.Sprintf("Could not find obs with conceptId %d and value %s", conceptID, describe(want, ok)))
}

// AssertObsGroupCreated fails unless the created encounter has a group of
// groupingConceptID whose members are exactly the given concept id and value
// pairs, in any order.
func (r *SubmissionResults) AssertObsGroupCreated(groupingConceptID int, conceptIDsAndValues ...interface{}) {
	if r.EncounterCreated == nil {
		require.Fail(r.t, "no encounter created")
		return
	}
	if len(conceptIDsAndValues)%2 != 0 {
		require.Fail(r.t, "concept ids and values must come in pairs")
		return
	}
	var expected []ObsValue
	for i := 0; i < len(conceptIDsAndValues); i += 2 {
		id, ok := conceptIDsAndValues[i].(int)
		if !ok {
			require.Fail(r.t, fmt.Sprintf("argument %d: concept id must be an int, got %T", i, conceptIDsAndValues[i]))
			return
		}
		expected = append(expected, ObsValue{ConceptID: id, Value: conceptIDsAndValues[i+1]})
	}

	for _, o := range r.EncounterCreated.AllObs(false) {
		if o.ConceptID() != groupingConceptID {
			continue
		}
		if o.HasValue() {
			require.Fail(r.t, fmt.Sprintf("Obs group with groupingConceptId %d should not have a value", groupingConceptID))
			return
		}
		if r.h.IsMatchingObsGroup(o, expected) {
			return
		}
	}
	require.Fail(r.t, fmt.Sprintf("Cannot find an obs group matching %v", expected))
}

func (r *SubmissionResults) PrintErrors() {
	out := r.h.Out
	if len(r.ValidationErrors) == 0 {
		fmt.Fprintln(out, "No Errors")
		return
	}
	for _, e := range r.ValidationErrors {
		fmt.Fprintln(out, e.String())
	}
}

func (r *SubmissionResults) PrintEncounterCreated() {
	out := r.h.Out
	enc := r.EncounterCreated
	if enc == nil {
		fmt.Fprintln(out, "No encounter created")
		return
	}
	fmt.Fprintln(out, "=== Encounter created ===")
	fmt.Fprintln(out, "Date: "+r.h.DateAsString(enc.EncounterDatetime))
	location, provider := "", ""
	if enc.Location != nil {
		location = enc.Location.Name
	}
	if enc.Provider != nil {
		provider = enc.Provider.PersonName()
	}
	fmt.Fprintln(out, "Location: "+location)
	fmt.Fprintln(out, "Provider: "+provider)
	fmt.Fprintln(out, "    (obs)")
	obs := enc.AllObs(false)
	if len(obs) == 0 {
		fmt.Fprintln(out, "None")
		return
	}
	for _, o := range obs {
		fmt.Fprintln(out, r.h.obsLine(o))
	}
}

func (r *SubmissionResults) Print() {
	r.PrintErrors()
	r.PrintEncounterCreated()
}

func (h *Harness) obsLine(o *clinical.Obs) string {
	name := ""
	if o.Concept != nil {
		name = o.Concept.Name(h.Services.Locale.Tag)
	}
	return name + " -> " + o.ValueAsString(h.Services.Locale)
}

func describe(s string, ok bool) string {
	if !ok {
		return "<nil>"
	}
	return s
}
