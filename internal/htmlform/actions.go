package htmlform

import (
	"fmt"
	"net/http"

	"github.com/ehr/formentry/internal/domain/clinical"
	"github.com/ehr/formentry/internal/domain/encounter"
)

// SubmissionActions collects what a submission will create. Obs are attached
// to the innermost open group, or to the current encounter at top level.
type SubmissionActions struct {
	encountersToCreate []*encounter.Encounter
	encounters         []*encounter.Encounter
	groups             []*clinical.Obs
}

func (a *SubmissionActions) EncountersToCreate() []*encounter.Encounter {
	return a.encountersToCreate
}

// BeginEncounter queues enc for creation and makes it current.
func (a *SubmissionActions) BeginEncounter(enc *encounter.Encounter) {
	a.encountersToCreate = append(a.encountersToCreate, enc)
	a.encounters = append(a.encounters, enc)
}

func (a *SubmissionActions) EndEncounter() error {
	if len(a.encounters) == 0 {
		return fmt.Errorf("no encounter to end")
	}
	if len(a.groups) > 0 {
		return fmt.Errorf("cannot end encounter with %d open obs group(s)", len(a.groups))
	}
	a.encounters = a.encounters[:len(a.encounters)-1]
	return nil
}

func (a *SubmissionActions) CurrentEncounter() *encounter.Encounter {
	if len(a.encounters) == 0 {
		return nil
	}
	return a.encounters[len(a.encounters)-1]
}

// BeginObsGroup opens group. Members created until the matching EndObsGroup
// are attached to it.
func (a *SubmissionActions) BeginObsGroup(group *clinical.Obs) {
	a.groups = append(a.groups, group)
}

// EndObsGroup closes the innermost group. A group that received no members
// is dropped.
func (a *SubmissionActions) EndObsGroup() error {
	if len(a.groups) == 0 {
		return fmt.Errorf("no obs group to end")
	}
	group := a.groups[len(a.groups)-1]
	a.groups = a.groups[:len(a.groups)-1]
	if !group.IsObsGrouping() {
		return nil
	}
	if len(a.groups) > 0 {
		a.groups[len(a.groups)-1].AddGroupMember(group)
		return nil
	}
	enc := a.CurrentEncounter()
	if enc == nil {
		return fmt.Errorf("obs group %d outside of an encounter", group.ConceptID())
	}
	enc.AddObs(group)
	return nil
}

func (a *SubmissionActions) CreateObs(o *clinical.Obs) error {
	if len(a.groups) > 0 {
		a.groups[len(a.groups)-1].AddGroupMember(o)
		return nil
	}
	enc := a.CurrentEncounter()
	if enc == nil {
		return fmt.Errorf("obs %d outside of an encounter", o.ConceptID())
	}
	enc.AddObs(o)
	return nil
}

// SubmissionController runs the form elements that read request parameters,
// in document order.
type SubmissionController struct {
	session *Session
	actions []submissionAction
}

func (c *SubmissionController) add(a submissionAction) {
	c.actions = append(c.actions, a)
}

// ValidateSubmission checks every element against the request and returns
// all failures. Only ENTER submissions are accepted.
func (c *SubmissionController) ValidateSubmission(fc *FormEntryContext, r *http.Request) []FormSubmissionError {
	if fc.Mode() != ModeEnter {
		return []FormSubmissionError{{ID: "general-form-error", Error: fmt.Sprintf("cannot submit a form in %s mode", fc.Mode())}}
	}
	ctx := r.Context()
	var errs []FormSubmissionError
	for _, a := range c.actions {
		errs = append(errs, a.validate(ctx, c.session, r)...)
	}
	return errs
}

// HandleFormSubmission records the request into the session's submission
// actions. The request is expected to have passed ValidateSubmission.
func (c *SubmissionController) HandleFormSubmission(s *Session, r *http.Request) error {
	if s.fc.Mode() != ModeEnter {
		return fmt.Errorf("cannot submit a form in %s mode", s.fc.Mode())
	}
	ctx := r.Context()
	for _, a := range c.actions {
		if err := a.handle(ctx, s, r); err != nil {
			return err
		}
	}
	return nil
}
