// Package regression drives forms through a full enter, submit and view
// cycle against in-process services and asserts on the obs they produce.
package regression

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ehr/formentry/internal/domain/encounter"
	"github.com/ehr/formentry/internal/domain/identity"
	"github.com/ehr/formentry/internal/htmlform"
	"github.com/ehr/formentry/internal/platform/dataset"
)

// DefaultPatientID is the patient a case runs against unless it says otherwise.
const DefaultPatientID = 2

// FormsDir is where form definitions are looked up, on disk and in the
// embedded resources.
const FormsDir = "include"

// ErrNoEncounter is returned when an ENTER submission would not create an
// encounter.
var ErrNoEncounter = errors.New("this form is not going to create an encounter")

//go:embed include/*.xml
var resources embed.FS

// Case is one regression scenario. Only FormName is required.
type Case struct {
	// FormName resolves to {FormsDir}/{FormName}.xml.
	FormName string
	// WidgetLabels are the labels preceding the widgets SetupRequest fills,
	// so it can say "Date:" instead of "w1".
	WidgetLabels []string
	// SetupRequest populates the submission. widgets maps each label to the
	// widget name the form generated for it.
	SetupRequest func(req url.Values, widgets map[string]string)
	// TestResults checks the outcome of the submission. It only runs when
	// SetupRequest set at least one parameter.
	TestResults func(r *SubmissionResults)
	// Patient overrides the patient the form is filled for.
	Patient func(ctx context.Context) (*identity.Patient, error)
	// EncounterToView overrides the encounter shown in VIEW mode. A non-nil
	// result turns viewing on.
	EncounterToView func(ctx context.Context) (*encounter.Encounter, error)
	// ViewEncounter turns viewing on for the encounter created by the submission.
	ViewEncounter bool
	// TestViewingEncounter checks the VIEW rendering.
	TestViewingEncounter func(enc *encounter.Encounter, html string)
}

// Harness runs cases against a set of services.
type Harness struct {
	Services *htmlform.Services
	Forms    htmlform.Loader
	Out      io.Writer
}

// New returns a harness reading forms from FormsDir, on disk or embedded,
// and printing to stdout.
func New(svc *htmlform.Services) *Harness {
	return &Harness{
		Services: svc,
		Forms:    htmlform.Loader{Dir: FormsDir, FS: resources},
		Out:      os.Stdout,
	}
}

// NewStandard returns a harness over in-memory services holding the
// standard dataset.
func NewStandard(ctx context.Context, svc *htmlform.Services) (*Harness, error) {
	d, err := dataset.Standard()
	if err != nil {
		return nil, err
	}
	err = d.Load(ctx, dataset.Targets{
		Concepts: svc.Concepts,
		Identity: svc.Identity,
		Admin:    svc.Admin,
	})
	if err != nil {
		return nil, fmt.Errorf("load standard dataset: %w", err)
	}
	return New(svc), nil
}

// Run runs c and fails t on any error outside of the case's own assertions.
func (h *Harness) Run(t testing.TB, c Case) {
	t.Helper()
	if err := h.RunE(context.Background(), t, c); err != nil {
		t.Fatalf("regression case %s: %v", c.FormName, err)
	}
}

// RunE runs c, reporting assertion failures to t and returning any other error.
func (h *Harness) RunE(ctx context.Context, t require.TestingT, c Case) error {
	patient, err := h.patient(ctx, c)
	if err != nil {
		return err
	}
	session, err := h.openSession(ctx, patient, nil, htmlform.ModeEnter, c.FormName)
	if err != nil {
		return err
	}
	html := session.HTMLToDisplay()

	widgets := LabeledWidgets(html, c.WidgetLabels...)
	req := url.Values{}
	if c.SetupRequest != nil {
		c.SetupRequest(req, widgets)
	}

	var toView *encounter.Encounter
	if len(req) > 0 {
		results, err := h.submit(ctx, t, session, req)
		if err != nil {
			return err
		}
		if c.TestResults != nil {
			c.TestResults(results)
		}
		toView = results.EncounterCreated
	}

	var override *encounter.Encounter
	if c.EncounterToView != nil {
		override, err = c.EncounterToView(ctx)
		if err != nil {
			return fmt.Errorf("encounter to view: %w", err)
		}
	}
	if override == nil && !c.ViewEncounter {
		return nil
	}
	if override != nil {
		toView = override
	}

	session, err = h.openSession(ctx, patient, toView, htmlform.ModeView, c.FormName)
	if err != nil {
		return err
	}
	if c.TestViewingEncounter != nil {
		c.TestViewingEncounter(toView, session.HTMLToDisplay())
	}
	return nil
}

func (h *Harness) patient(ctx context.Context, c Case) (*identity.Patient, error) {
	if c.Patient != nil {
		p, err := c.Patient(ctx)
		if err != nil {
			return nil, fmt.Errorf("patient: %w", err)
		}
		return p, nil
	}
	p, err := h.Services.Identity.GetPatient(ctx, DefaultPatientID)
	if err != nil {
		return nil, fmt.Errorf("default patient: %w", err)
	}
	return p, nil
}

func (h *Harness) openSession(ctx context.Context, patient *identity.Patient, enc *encounter.Encounter, mode htmlform.Mode, formName string) (*htmlform.Session, error) {
	form, err := h.LoadForm(formName)
	if err != nil {
		return nil, err
	}
	h.Services.Logger.Debug().
		Str("form", formName).
		Str("mode", mode.String()).
		Msg("opening regression session")
	return htmlform.NewSession(ctx, h.Services, patient, enc, mode, form)
}

// LoadForm reads {FormsDir}/{name}.xml as a form with id 1.
func (h *Harness) LoadForm(name string) (*htmlform.HtmlForm, error) {
	form, err := h.Forms.Load(name)
	if err != nil {
		return nil, err
	}
	form.FormID = 1
	return form, nil
}

func (h *Harness) submit(ctx context.Context, t require.TestingT, s *htmlform.Session, params url.Values) (*SubmissionResults, error) {
	results := &SubmissionResults{t: t, h: h}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build submission: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	s.PrepareForSubmit()
	if errs := s.SubmissionController().ValidateSubmission(s.Context(), req); len(errs) > 0 {
		results.ValidationErrors = errs
		return results, nil
	}
	if err := s.SubmissionController().HandleFormSubmission(s, req); err != nil {
		return nil, fmt.Errorf("handle submission: %w", err)
	}
	if s.Context().Mode() == htmlform.ModeEnter && len(s.SubmissionActions().EncountersToCreate()) == 0 {
		return nil, ErrNoEncounter
	}
	if err := s.ApplyActions(ctx); err != nil {
		return nil, err
	}

	patientID := 0
	if p := s.Patient(); p != nil {
		patientID = p.ID
	}
	results.EncounterCreated, err = h.Services.Encounters.LastEncounter(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("last encounter: %w", err)
	}
	return results, nil
}

// LabeledWidgets maps each label to the first widget name after it in html,
// i.e. the value of the first name="w..." attribute. Labels that do not occur,
// or are not followed by a widget, are left out.
func LabeledWidgets(html string, labels ...string) map[string]string {
	const attr = `name="w`
	out := make(map[string]string, len(labels))
	for _, label := range labels {
		i := strings.Index(html, label)
		if i < 0 {
			continue
		}
		j := strings.Index(html[i:], attr)
		if j < 0 {
			continue
		}
		start := i + j + len(`name="`)
		end := strings.IndexByte(html[start+1:], '"')
		if end < 0 {
			continue
		}
		out[label] = html[start : start+1+end]
	}
	return out
}

// DateAsString formats t the way the forms print dates.
func (h *Harness) DateAsString(t time.Time) string {
	return h.Services.Locale.FormatDate(t)
}

// DateTodayAsString formats the services' current date.
func (h *Harness) DateTodayAsString() string {
	if h.Services.Now != nil {
		return h.DateAsString(h.Services.Now())
	}
	return h.DateAsString(time.Now())
}
