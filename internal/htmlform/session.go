package htmlform

import (
	"context"
	"fmt"
	"strings"

	"github.com/ehr/formentry/internal/domain/encounter"
	"github.com/ehr/formentry/internal/domain/identity"
)

// Session is one pass of a form for one patient: render, then optionally
// validate and apply a submission.
type Session struct {
	svc     *Services
	form    *HtmlForm
	patient *identity.Patient
	fc      *FormEntryContext

	html             string
	createsEncounter bool
	controller       *SubmissionController
	actions          *SubmissionActions
}

// NewSession parses form and renders it for patient. enc is the encounter
// shown in VIEW and EDIT mode and is ignored in ENTER mode.
func NewSession(ctx context.Context, svc *Services, patient *identity.Patient, enc *encounter.Encounter, mode Mode, form *HtmlForm) (*Session, error) {
	if form == nil {
		return nil, fmt.Errorf("form is required")
	}
	if mode == ModeEnter {
		enc = nil
	}
	if patient == nil && enc != nil {
		patient = enc.Patient
	}
	root, err := parseDefinition(form.XMLData)
	if err != nil {
		return nil, fmt.Errorf("parse form %q: %w", form.Name, err)
	}

	s := &Session{
		svc:     svc,
		form:    form,
		patient: patient,
		fc:      newFormEntryContext(mode, enc),
		actions: &SubmissionActions{},
	}
	s.controller = &SubmissionController{session: s}

	var b strings.Builder
	for _, n := range root.children {
		if n.tag != tagHtmlForm {
			continue
		}
		b.WriteString("<htmlform>")
		if err := s.generate(ctx, n, &b); err != nil {
			return nil, fmt.Errorf("render form %q: %w", form.Name, err)
		}
		b.WriteString("</htmlform>")
	}
	s.html = b.String()

	svc.Logger.Debug().
		Str("form", form.Name).
		Str("mode", mode.String()).
		Int("actions", len(s.controller.actions)).
		Msg("form session opened")
	return s, nil
}

func (s *Session) generate(ctx context.Context, parent *node, b *strings.Builder) error {
	for _, n := range parent.children {
		switch n.tag {
		case "":
			b.WriteString(n.raw)
		case tagEncounterDate:
			el := newEncounterDateElement(s, n)
			el.render(s, b)
			s.controller.add(el)
			s.createsEncounter = true
		case tagEncounterLocation:
			el, err := newEncounterLocationElement(ctx, s, n)
			if err != nil {
				return err
			}
			el.render(s, b)
			s.controller.add(el)
		case tagEncounterProvider:
			el, err := newEncounterProviderElement(ctx, s, n)
			if err != nil {
				return err
			}
			el.render(s, b)
			s.controller.add(el)
		case tagObs:
			el, err := newObsElement(ctx, s, n)
			if err != nil {
				return err
			}
			el.render(s, b)
			s.controller.add(el)
		case tagObsGroup:
			start, err := newObsGroupStart(ctx, s, n)
			if err != nil {
				return err
			}
			s.controller.add(start)
			s.fc.enterGroup(start.concept.ID)
			err = s.generate(ctx, n, b)
			s.fc.exitGroup()
			if err != nil {
				return err
			}
			s.controller.add(obsGroupEnd{})
		default:
			return fmt.Errorf("unexpected <%s>", n.tag)
		}
	}
	return nil
}

func (s *Session) HTMLToDisplay() string { return s.html }

func (s *Session) Context() *FormEntryContext { return s.fc }

func (s *Session) SubmissionController() *SubmissionController { return s.controller }

func (s *Session) SubmissionActions() *SubmissionActions { return s.actions }

func (s *Session) Patient() *identity.Patient { return s.patient }

func (s *Session) Form() *HtmlForm { return s.form }

func (s *Session) patientID() int {
	if s.patient == nil {
		return 0
	}
	return s.patient.ID
}

// PrepareForSubmit resets the submission actions. In ENTER mode a form with
// an <encounterDate/> starts a new encounter for the patient.
func (s *Session) PrepareForSubmit() {
	s.actions = &SubmissionActions{}
	if s.fc.Mode() == ModeEnter && s.createsEncounter {
		s.actions.BeginEncounter(&encounter.Encounter{
			PatientID: s.patientID(),
			Patient:   s.patient,
		})
	}
}

// ApplyActions saves the encounters collected by HandleFormSubmission. Obs
// take the encounter datetime and location where they have none.
func (s *Session) ApplyActions(ctx context.Context) error {
	for _, enc := range s.actions.EncountersToCreate() {
		if s.form.FormID != 0 {
			id := s.form.FormID
			enc.FormID = &id
		}
		for _, o := range enc.AllObs(true) {
			if o.ObsDatetime.IsZero() {
				o.ObsDatetime = enc.EncounterDatetime
			}
			if o.LocationID == nil {
				o.LocationID = enc.LocationID()
			}
		}
		if err := s.svc.Encounters.CreateEncounter(ctx, enc); err != nil {
			return fmt.Errorf("create encounter: %w", err)
		}
		s.svc.Logger.Debug().
			Str("encounter_id", enc.ID.String()).
			Int("patient_id", enc.PatientID).
			Int("obs", len(enc.AllObs(false))).
			Msg("encounter created")
	}
	return nil
}
