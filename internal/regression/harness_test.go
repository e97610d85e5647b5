package regression

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/formentry/internal/domain/clinical"
	"github.com/ehr/formentry/internal/domain/encounter"
	"github.com/ehr/formentry/internal/htmlform"
)

// recordingT collects assertion failures instead of stopping the test.
type recordingT struct {
	failed bool
	msgs   []string
}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.msgs = append(r.msgs, fmt.Sprintf(format, args...))
}

func (r *recordingT) FailNow() { r.failed = true }

func TestLabeledWidgets(t *testing.T) {
	html := `<htmlform>Date: <input type="text" size="10" name="w1" id="w1" value=""/>` +
		`<span class="error" id="w2"></span>` +
		`Weight: <input type="text" size="5" name="w7" id="w7" value=""/>` +
		`Trailing: no widget</htmlform>`

	got := LabeledWidgets(html, "Date:", "Weight:", "Missing:", "Trailing:")
	want := map[string]string{"Date:": "w1", "Weight:": "w7"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LabeledWidgets mismatch (-want +got):\n%s", diff)
	}
}

func TestLabeledWidgets_FirstWidgetAfterLabel(t *testing.T) {
	html := `<input name="w1"/>Weight: <select name="w3" id="w3"></select>`
	got := LabeledWidgets(html, "Weight:")
	assert.Equal(t, "w3", got["Weight:"])
}

func TestLabeledWidgets_UnterminatedAttribute(t *testing.T) {
	got := LabeledWidgets(`Date: <input name="w1`, "Date:")
	assert.Empty(t, got)
}

func TestFuzzyEquals(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		actual   string
		want     bool
	}{
		{"identical", "abc", "abc", true},
		{"case and whitespace", "Date: 01/01/2026", "date:\n\t01/01/2026", true},
		{"value span", "Weight: 70.0", `Weight: <span class="value">70.0</span>`, true},
		{"empty value", "Weight:", `Weight: <span class="emptyValue">___</span>`, true},
		{"htmlform wrapper", "Weight: 70.0", "<htmlform>\nWeight: 70.0\n</htmlform>", true},
		{"different value", "Weight: 71.0", `Weight: <span class="value">70.0</span>`, false},
		{"both empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FuzzyEquals(tt.expected, tt.actual))
		})
	}
}

func TestAssertFuzzyEquals_Failure(t *testing.T) {
	rt := &recordingT{}
	AssertFuzzyEquals(rt, "a", "b")
	assert.True(t, rt.failed)
	require.Len(t, rt.msgs, 1)
	assert.Contains(t, rt.msgs[0], "a does not match b")
}

func TestValueAsString(t *testing.T) {
	h := newHarness(t)
	married := getConcept(t, h, 6)

	tests := []struct {
		name  string
		value interface{}
		want  string
		ok    bool
	}{
		{"nil", nil, "", false},
		{"int", 70, "70.0", true},
		{"float", 36.6, "36.6", true},
		{"big", 12345678, "1.2345678E7", true},
		{"string", "Pizza", "Pizza", true},
		{"bool", true, "true", true},
		{"concept", married, "MARRIED", true},
		{"date", time.Date(2026, 1, 2, 0, 0, 0, 0, time.Local), "02/01/2026", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := h.ValueAsString(tt.value)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestObsValue_String(t *testing.T) {
	assert.Equal(t, "5089->70", ObsValue{ConceptID: 5089, Value: 70}.String())
	assert.Equal(t, "5089-><nil>", ObsValue{ConceptID: 5089}.String())
}

func buildGroup(t *testing.T, h *Harness) *clinical.Obs {
	t.Helper()
	group := clinical.NewObs(2, getConcept(t, h, 1000), time.Time{}, nil)
	coded := clinical.NewObs(2, getConcept(t, h, 1001), time.Time{}, nil)
	coded.ValueCoded = getConcept(t, h, 1002)
	weight := clinical.NewObs(2, getConcept(t, h, 5089), time.Time{}, nil)
	w := 70.0
	weight.ValueNumeric = &w
	group.AddGroupMember(coded)
	group.AddGroupMember(weight)
	return group
}

func TestIsMatchingObsGroup(t *testing.T) {
	h := newHarness(t)
	group := buildGroup(t, h)
	penicillin := getConcept(t, h, 1002)

	assert.True(t, h.IsMatchingObsGroup(group, []ObsValue{{5089, 70}, {1001, penicillin}}))
	assert.True(t, h.IsMatchingObsGroup(group, []ObsValue{{1001, penicillin}, {5089, 70.0}}))
	assert.False(t, h.IsMatchingObsGroup(group, []ObsValue{{1001, penicillin}}))
	assert.False(t, h.IsMatchingObsGroup(group, []ObsValue{{5089, 70}, {5089, 70}}))
	assert.False(t, h.IsMatchingObsGroup(group, []ObsValue{{5089, 71}, {1001, penicillin}}))
	assert.False(t, h.IsMatchingObsGroup(group, []ObsValue{{5089, nil}, {1001, penicillin}}))

	leaf := group.GroupMembers[1]
	assert.False(t, h.IsMatchingObsGroup(leaf, nil))
}

func resultsFor(h *Harness, rt *recordingT, enc *encounter.Encounter) *SubmissionResults {
	return &SubmissionResults{EncounterCreated: enc, t: rt, h: h}
}

func TestSubmissionResults_NoEncounter(t *testing.T) {
	h := newHarness(t)
	rt := &recordingT{}
	r := resultsFor(h, rt, nil)

	assert.Equal(t, 0, r.ObsCreatedCount())
	assert.Equal(t, 0, r.ObsGroupCreatedCount())
	assert.Equal(t, 0, r.ObsLeafCreatedCount())

	r.AssertNoEncounterCreated()
	r.AssertNoErrors()
	assert.False(t, rt.failed)

	r.AssertObsCreated(5089, nil)
	assert.True(t, rt.failed)
}

func TestSubmissionResults_Assertions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, err := h.Services.Identity.GetPatient(ctx, 2)
	require.NoError(t, err)
	enc := &encounter.Encounter{PatientID: p.ID, Patient: p, EncounterDatetime: today}
	enc.AddObs(buildGroup(t, h))
	require.NoError(t, h.AddObs(ctx, enc, 19, "Pizza", today))

	rt := &recordingT{}
	r := resultsFor(h, rt, enc)
	r.AssertEncounterCreated()
	r.AssertObsCreatedCount(4)
	r.AssertObsGroupCreatedCount(1)
	r.AssertObsLeafCreatedCount(3)
	r.AssertObsCreated(19, "Pizza")
	r.AssertObsCreated(5089, 70)
	r.AssertObsGroupCreated(1000, 5089, 70, 1001, getConcept(t, h, 1002))
	require.False(t, rt.failed, "unexpected failures: %v", rt.msgs)

	r.AssertObsCreated(19, "Soup")
	assert.True(t, rt.failed)
	assert.Contains(t, rt.msgs[len(rt.msgs)-1], "Could not find obs with conceptId 19 and value Soup")

	rt = &recordingT{}
	r = resultsFor(h, rt, enc)
	r.AssertObsGroupCreated(1000, 5089, 70)
	assert.True(t, rt.failed)
	assert.Contains(t, rt.msgs[0], "Cannot find an obs group matching [5089->70]")

	rt = &recordingT{}
	r = resultsFor(h, rt, enc)
	r.AssertObsCreatedCount(5)
	assert.True(t, rt.failed)
	assert.Contains(t, rt.msgs[0], "Expected to create 5 obs but got 4")
}

func TestSubmissionResults_GroupWithValue(t *testing.T) {
	h := newHarness(t)
	group := buildGroup(t, h)
	text := "oops"
	group.ValueText = &text
	enc := &encounter.Encounter{PatientID: 2, EncounterDatetime: today}
	enc.AddObs(group)

	rt := &recordingT{}
	resultsFor(h, rt, enc).AssertObsGroupCreated(1000)
	assert.True(t, rt.failed)
	assert.Contains(t, rt.msgs[0], "should not have a value")
}

func TestSubmissionResults_Print(t *testing.T) {
	h := newHarness(t)
	out := &bytes.Buffer{}
	h.Out = out

	r := resultsFor(h, &recordingT{}, nil)
	r.ValidationErrors = []htmlform.FormSubmissionError{{ID: "w2", Error: "Required"}}
	r.Print()
	assert.Equal(t, "w2 -> Required\nNo encounter created\n", out.String())

	out.Reset()
	ctx := context.Background()
	loc, err := h.Services.Admin.GetLocation(ctx, 2)
	require.NoError(t, err)
	prov, err := h.Services.Identity.GetPractitioner(ctx, 502)
	require.NoError(t, err)
	enc := &encounter.Encounter{PatientID: 2, Location: loc, Provider: prov, EncounterDatetime: today}
	require.NoError(t, h.AddObs(ctx, enc, 5089, 70, today))

	r = resultsFor(h, &recordingT{}, enc)
	r.Print()
	want := "No Errors\n" +
		"=== Encounter created ===\n" +
		"Date: 15/03/2026\n" +
		"Location: Xanadu\n" +
		"Provider: Hippocrates of Cos\n" +
		"    (obs)\n" +
		"WEIGHT (KG) -> 70.0\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("Print mismatch (-want +got):\n%s", diff)
	}
}

func TestAddObs_ValueKinds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	enc := &encounter.Encounter{PatientID: 2, EncounterDatetime: today}
	married := getConcept(t, h, 6)

	require.NoError(t, h.AddObs(ctx, enc, 5089, 70, today))
	require.NoError(t, h.AddObs(ctx, enc, 19, "Pizza", today))
	require.NoError(t, h.AddObs(ctx, enc, 3032, today, today))
	require.NoError(t, h.AddObs(ctx, enc, 4, married, today))
	require.NoError(t, h.AddObs(ctx, enc, 5497, nil, today))
	require.Error(t, h.AddObs(ctx, enc, 5089, struct{}{}, today))
	require.Error(t, h.AddObs(ctx, enc, 424242, 1, today))

	obs := enc.AllObs(false)
	require.Len(t, obs, 5)
	assert.NotNil(t, obs[0].ValueNumeric)
	assert.NotNil(t, obs[1].ValueText)
	assert.NotNil(t, obs[2].ValueDatetime)
	assert.Same(t, married, obs[3].ValueCoded)
	assert.False(t, obs[4].HasValue())
	for _, o := range obs {
		assert.Equal(t, 2, o.PersonID)
		assert.False(t, o.DateCreated.IsZero())
	}
}

func TestDateAsString(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "15/03/2026", h.DateTodayAsString())
	assert.Equal(t, "08/04/1975", h.DateAsString(time.Date(1975, 4, 8, 0, 0, 0, 0, time.UTC)))
}
