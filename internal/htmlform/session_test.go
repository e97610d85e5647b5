package htmlform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/formentry/internal/domain/clinical"
	"github.com/ehr/formentry/internal/domain/encounter"
	"github.com/ehr/formentry/internal/domain/identity"
	"github.com/ehr/formentry/internal/platform/dataset"
	"github.com/ehr/formentry/internal/platform/locale"
)

var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.Local)

func newTestServices(t *testing.T) *Services {
	t.Helper()
	svc := NewMemServices(locale.Default, zerolog.Nop())
	svc.Now = func() time.Time { return testNow }
	d, err := dataset.Standard()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = d.Load(context.Background(), dataset.Targets{
		Concepts: svc.Concepts,
		Identity: svc.Identity,
		Admin:    svc.Admin,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func testPatient(t *testing.T, svc *Services) *identity.Patient {
	t.Helper()
	p, err := svc.Identity.GetPatient(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

const simplestForm = `<htmlform>
	Date: <encounterDate/>
	Location: <encounterLocation/>
	Provider: <encounterProvider/>
</htmlform>`

const vitalsForm = `<htmlform>
	Date: <encounterDate/>
	Location: <encounterLocation/>
	Provider: <encounterProvider/>
	Weight: <obs conceptId="5089"/>
	Allergy: <obs conceptId="4" answerConceptIds="5,6" answerLabels="Single,Married"/>
	Food: <obs conceptId="19" required="true"/>
</htmlform>`

const groupForm = `<htmlform>
	Date: <encounterDate/>
	Location: <encounterLocation/>
	Provider: <encounterProvider/>
	<obsgroup groupingConceptId="1000">
		Allergy: <obs conceptId="1001"/>
		Allergy Date: <obs conceptId="1004"/>
	</obsgroup>
</htmlform>`

func openSession(t *testing.T, svc *Services, xml string, mode Mode, enc *encounter.Encounter) *Session {
	t.Helper()
	s, err := NewSession(context.Background(), svc, testPatient(t, svc), enc, mode, &HtmlForm{Name: "test", FormID: 1, XMLData: xml})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func submit(t *testing.T, s *Session, values url.Values) []FormSubmissionError {
	t.Helper()
	req := postForm(values)
	s.PrepareForSubmit()
	if errs := s.SubmissionController().ValidateSubmission(s.Context(), req); len(errs) > 0 {
		return errs
	}
	if err := s.SubmissionController().HandleFormSubmission(s, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.ApplyActions(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return nil
}

func TestNewSession_WidgetNumbering(t *testing.T) {
	svc := newTestServices(t)
	s := openSession(t, svc, vitalsForm, ModeEnter, nil)
	html := s.HTMLToDisplay()

	if !strings.HasPrefix(html, "<htmlform>") || !strings.HasSuffix(html, "</htmlform>") {
		t.Errorf("expected htmlform wrapper, got %q", html)
	}
	for _, want := range []string{
		`name="w1"`, `id="w2"`, `<select name="w3"`, `<select name="w5"`,
		`name="w7"`, `<select name="w9"`, `name="w11"`, `id="w12"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %s in %q", want, html)
		}
	}
	if !strings.Contains(html, `<option value="5">Single</option>`) {
		t.Errorf("expected answer label override, got %q", html)
	}
	if !strings.Contains(html, `<option value="502">Hippocrates of Cos</option>`) {
		t.Errorf("expected provider option, got %q", html)
	}
	if strings.Contains(html, "<encounterDate") || strings.Contains(html, "<obs") {
		t.Errorf("expected tags to be replaced, got %q", html)
	}
}

func TestNewSession_UnknownConcept(t *testing.T) {
	svc := newTestServices(t)
	_, err := NewSession(context.Background(), svc, testPatient(t, svc), nil, ModeEnter,
		&HtmlForm{Name: "bad", XMLData: `<htmlform><obs conceptId="99999"/></htmlform>`})
	if err == nil {
		t.Fatal("expected error for unknown concept")
	}
}

func TestNewSession_NAConcept(t *testing.T) {
	svc := newTestServices(t)
	_, err := NewSession(context.Background(), svc, testPatient(t, svc), nil, ModeEnter,
		&HtmlForm{Name: "bad", XMLData: `<htmlform><obs conceptId="5"/></htmlform>`})
	if err == nil {
		t.Fatal("expected error for N/A concept")
	}
}

func TestSubmission_CreatesEncounter(t *testing.T) {
	svc := newTestServices(t)
	s := openSession(t, svc, vitalsForm, ModeEnter, nil)
	errs := submit(t, s, url.Values{
		"w1":  {"01/03/2026"},
		"w3":  {"2"},
		"w5":  {"502"},
		"w7":  {"70"},
		"w9":  {"6"},
		"w11": {"Pizza"},
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected validation errors: %v", errs)
	}

	enc, err := svc.Encounters.LastEncounter(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc == nil {
		t.Fatal("expected encounter")
	}
	if got := svc.Locale.FormatDate(enc.EncounterDatetime); got != "01/03/2026" {
		t.Errorf("expected 01/03/2026, got %s", got)
	}
	if enc.Location == nil || enc.Location.Name != "Xanadu" {
		t.Errorf("unexpected location: %+v", enc.Location)
	}
	if enc.Provider == nil || enc.Provider.ID != 502 {
		t.Errorf("unexpected provider: %+v", enc.Provider)
	}
	if enc.FormID == nil || *enc.FormID != 1 {
		t.Errorf("expected form id 1, got %v", enc.FormID)
	}

	obs := enc.AllObs(false)
	if len(obs) != 3 {
		t.Fatalf("expected 3 obs, got %d", len(obs))
	}
	byConcept := map[int]*clinical.Obs{}
	for _, o := range obs {
		byConcept[o.ConceptID()] = o
		if !o.ObsDatetime.Equal(enc.EncounterDatetime) {
			t.Errorf("obs %d: expected encounter datetime, got %v", o.ConceptID(), o.ObsDatetime)
		}
		if o.LocationID == nil || *o.LocationID != 2 {
			t.Errorf("obs %d: expected location 2, got %v", o.ConceptID(), o.LocationID)
		}
		if o.PersonID != 2 {
			t.Errorf("obs %d: expected person 2, got %d", o.ConceptID(), o.PersonID)
		}
	}
	if got := byConcept[5089].ValueAsString(svc.Locale); got != "70.0" {
		t.Errorf("expected 70.0, got %s", got)
	}
	if got := byConcept[4].ValueAsString(svc.Locale); got != "MARRIED" {
		t.Errorf("expected MARRIED, got %s", got)
	}
	if got := byConcept[19].ValueAsString(svc.Locale); got != "Pizza" {
		t.Errorf("expected Pizza, got %s", got)
	}
}

func TestSubmission_ValidationErrors(t *testing.T) {
	svc := newTestServices(t)
	tests := []struct {
		name   string
		values url.Values
		want   map[string]string
	}{
		{
			name:   "all missing",
			values: url.Values{},
			want:   map[string]string{"w2": msgRequired, "w4": msgRequired, "w6": msgRequired, "w12": msgRequired},
		},
		{
			name:   "future date",
			values: url.Values{"w1": {"01/01/2027"}, "w3": {"2"}, "w5": {"502"}, "w11": {"x"}},
			want:   map[string]string{"w2": msgFutureDate},
		},
		{
			name:   "bad values",
			values: url.Values{"w1": {"2026-01-01"}, "w3": {"99"}, "w5": {"abc"}, "w7": {"heavy"}, "w9": {"1002"}, "w11": {"x"}},
			want: map[string]string{
				"w2": msgInvalidDate, "w4": msgInvalidLoc, "w6": msgInvalidProv,
				"w8": msgNotANumber, "w10": msgInvalidAnswer,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openSession(t, svc, vitalsForm, ModeEnter, nil)
			errs := submit(t, s, tt.values)
			got := map[string]string{}
			for _, e := range errs {
				got[e.ID] = e.Error
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d errors, got %v", len(tt.want), errs)
			}
			for id, msg := range tt.want {
				if got[id] != msg {
					t.Errorf("%s: expected %q, got %q", id, msg, got[id])
				}
			}
		})
	}
}

func TestSubmission_ObsGroup(t *testing.T) {
	svc := newTestServices(t)
	s := openSession(t, svc, groupForm, ModeEnter, nil)
	errs := submit(t, s, url.Values{
		"w1": {"01/03/2026"}, "w3": {"2"}, "w5": {"502"},
		"w7": {"1003"}, "w9": {"02/02/2026"},
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
	enc, err := svc.Encounters.LastEncounter(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	top := enc.ObsAtTopLevel(false)
	if len(top) != 1 || top[0].ConceptID() != 1000 {
		t.Fatalf("expected one top-level group, got %v", top)
	}
	if len(enc.AllObs(false)) != 3 {
		t.Errorf("expected 3 obs, got %d", len(enc.AllObs(false)))
	}
	if len(enc.LeafObs()) != 2 {
		t.Errorf("expected 2 leaf obs, got %d", len(enc.LeafObs()))
	}
	for _, m := range top[0].GroupMembers {
		if m.ObsGroup != top[0] {
			t.Errorf("member %d not linked to group", m.ConceptID())
		}
	}
}

func TestSubmission_EmptyObsGroupDropped(t *testing.T) {
	svc := newTestServices(t)
	s := openSession(t, svc, groupForm, ModeEnter, nil)
	errs := submit(t, s, url.Values{"w1": {"01/03/2026"}, "w3": {"2"}, "w5": {"502"}})
	if len(errs) != 0 {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
	enc, err := svc.Encounters.LastEncounter(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(enc.AllObs(true)); n != 0 {
		t.Errorf("expected no obs, got %d", n)
	}
}

func TestSubmission_NoEncounterTag(t *testing.T) {
	svc := newTestServices(t)
	s := openSession(t, svc, `<htmlform>Weight: <obs conceptId="5089"/></htmlform>`, ModeEnter, nil)
	s.PrepareForSubmit()
	req := postForm(url.Values{"w1": {"70"}})
	if errs := s.SubmissionController().ValidateSubmission(s.Context(), req); len(errs) != 0 {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
	if err := s.SubmissionController().HandleFormSubmission(s, req); err == nil {
		t.Fatal("expected error attaching obs without an encounter")
	}
	if n := len(s.SubmissionActions().EncountersToCreate()); n != 0 {
		t.Errorf("expected no encounters to create, got %d", n)
	}
}

func TestView_RendersValues(t *testing.T) {
	svc := newTestServices(t)
	s := openSession(t, svc, vitalsForm, ModeEnter, nil)
	errs := submit(t, s, url.Values{
		"w1": {"01/03/2026"}, "w3": {"2"}, "w5": {"502"}, "w7": {"70"}, "w11": {"Pizza"},
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
	enc, err := svc.Encounters.LastEncounter(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	view := openSession(t, svc, vitalsForm, ModeView, enc)
	html := view.HTMLToDisplay()
	for _, want := range []string{
		`<span class="value">01/03/2026</span>`,
		`<span class="value">Xanadu</span>`,
		`<span class="value">Hippocrates of Cos</span>`,
		`<span class="value">70.0</span>`,
		`<span class="emptyValue">___</span>`,
		`<span class="value">Pizza</span>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %s in %q", want, html)
		}
	}
	if strings.Contains(html, "<input") || strings.Contains(html, "<select") {
		t.Errorf("expected no inputs in view mode, got %q", html)
	}

	req := postForm(url.Values{})
	if errs := view.SubmissionController().ValidateSubmission(view.Context(), req); len(errs) == 0 {
		t.Error("expected view mode submission to be rejected")
	}
}

func TestView_NilEncounter(t *testing.T) {
	svc := newTestServices(t)
	s := openSession(t, svc, simplestForm, ModeView, nil)
	if got := strings.Count(s.HTMLToDisplay(), `<span class="emptyValue">___</span>`); got != 3 {
		t.Errorf("expected 3 empty values, got %d", got)
	}
}

func TestEdit_PrefillsValues(t *testing.T) {
	svc := newTestServices(t)
	s := openSession(t, svc, vitalsForm, ModeEnter, nil)
	if errs := submit(t, s, url.Values{
		"w1": {"01/03/2026"}, "w3": {"2"}, "w5": {"502"}, "w9": {"5"}, "w11": {"Soup"},
	}); len(errs) != 0 {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
	enc, err := svc.Encounters.LastEncounter(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	html := openSession(t, svc, vitalsForm, ModeEdit, enc).HTMLToDisplay()
	for _, want := range []string{
		`value="01/03/2026"`,
		`<option value="2" selected="true">Xanadu</option>`,
		`<option value="5" selected="true">Single</option>`,
		`value="Soup"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %s in %q", want, html)
		}
	}
}
