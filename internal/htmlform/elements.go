package htmlform

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/ehr/formentry/internal/domain/admin"
	"github.com/ehr/formentry/internal/domain/clinical"
	"github.com/ehr/formentry/internal/domain/concept"
	"github.com/ehr/formentry/internal/domain/identity"
)

// Validation messages shown next to widgets.
const (
	msgRequired      = "Required"
	msgInvalidDate   = "Invalid date"
	msgFutureDate    = "Cannot be in the future"
	msgNotANumber    = "Must be a number"
	msgInvalidAnswer = "Invalid answer"
	msgInvalidValue  = "Invalid value"
	msgInvalidLoc    = "Invalid location"
	msgInvalidProv   = "Invalid provider"
)

// submissionAction is a form element that reads request parameters.
type submissionAction interface {
	validate(ctx context.Context, s *Session, r *http.Request) []FormSubmissionError
	handle(ctx context.Context, s *Session, r *http.Request) error
}

func formValue(r *http.Request, name string) string {
	return strings.TrimSpace(r.FormValue(name))
}

func isTrue(n *node, key string) bool {
	v, _ := n.attr(key)
	b, _ := strconv.ParseBool(v)
	return b
}

// -- <encounterDate/> --

type encounterDateElement struct {
	widget      string
	errWidget   string
	value       string
	allowFuture bool
}

func newEncounterDateElement(s *Session, n *node) *encounterDateElement {
	el := &encounterDateElement{
		widget:      s.fc.RegisterWidget(),
		errWidget:   s.fc.RegisterWidget(),
		allowFuture: isTrue(n, "allowFutureDates"),
	}
	if enc := s.fc.ExistingEncounter(); enc != nil && !enc.EncounterDatetime.IsZero() {
		el.value = s.svc.Locale.FormatDate(enc.EncounterDatetime)
	} else if d, _ := n.attr("default"); d == "today" && s.fc.Mode() != ModeView {
		el.value = s.svc.Locale.FormatDate(s.svc.now())
	}
	return el
}

func (el *encounterDateElement) render(s *Session, b *strings.Builder) {
	if s.fc.Mode() == ModeView {
		viewValue(b, el.value)
		return
	}
	textInput(b, el.widget, 10, el.value)
	errorSpan(b, el.errWidget)
}

func (el *encounterDateElement) parse(s *Session, r *http.Request) (time.Time, string) {
	raw := formValue(r, el.widget)
	if raw == "" {
		return time.Time{}, msgRequired
	}
	t, err := s.svc.Locale.ParseDate(raw)
	if err != nil {
		return time.Time{}, msgInvalidDate
	}
	if !el.allowFuture && t.After(s.svc.now()) {
		return time.Time{}, msgFutureDate
	}
	return t, ""
}

func (el *encounterDateElement) validate(_ context.Context, s *Session, r *http.Request) []FormSubmissionError {
	if _, msg := el.parse(s, r); msg != "" {
		return []FormSubmissionError{{ID: el.errWidget, Error: msg}}
	}
	return nil
}

func (el *encounterDateElement) handle(_ context.Context, s *Session, r *http.Request) error {
	t, msg := el.parse(s, r)
	if msg != "" {
		return fmt.Errorf("encounter date: %s", msg)
	}
	enc := s.actions.CurrentEncounter()
	if enc == nil {
		return fmt.Errorf("encounter date outside of an encounter")
	}
	enc.EncounterDatetime = t
	return nil
}

// -- <encounterLocation/> --

type encounterLocationElement struct {
	widget    string
	errWidget string
	options   []option
	selected  string
	display   string
}

func newEncounterLocationElement(ctx context.Context, s *Session, n *node) (*encounterLocationElement, error) {
	el := &encounterLocationElement{
		widget:    s.fc.RegisterWidget(),
		errWidget: s.fc.RegisterWidget(),
	}
	locations, err := s.svc.Admin.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	for _, l := range locations {
		el.options = append(el.options, option{value: strconv.Itoa(l.ID), label: l.Name})
	}
	if enc := s.fc.ExistingEncounter(); enc != nil && enc.Location != nil {
		el.selected = strconv.Itoa(enc.Location.ID)
		el.display = enc.Location.Name
	} else if d, ok := n.attr("default"); ok {
		el.selected = d
	}
	return el, nil
}

func (el *encounterLocationElement) render(s *Session, b *strings.Builder) {
	if s.fc.Mode() == ModeView {
		viewValue(b, el.display)
		return
	}
	selectInput(b, el.widget, el.options, el.selected)
	errorSpan(b, el.errWidget)
}

func (el *encounterLocationElement) lookup(ctx context.Context, s *Session, r *http.Request) (*admin.Location, string) {
	raw := formValue(r, el.widget)
	if raw == "" {
		return nil, msgRequired
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return nil, msgInvalidLoc
	}
	loc, err := s.svc.Admin.GetLocation(ctx, id)
	if err != nil {
		return nil, msgInvalidLoc
	}
	return loc, ""
}

func (el *encounterLocationElement) validate(ctx context.Context, s *Session, r *http.Request) []FormSubmissionError {
	if _, msg := el.lookup(ctx, s, r); msg != "" {
		return []FormSubmissionError{{ID: el.errWidget, Error: msg}}
	}
	return nil
}

func (el *encounterLocationElement) handle(ctx context.Context, s *Session, r *http.Request) error {
	loc, msg := el.lookup(ctx, s, r)
	if msg != "" {
		return fmt.Errorf("encounter location: %s", msg)
	}
	enc := s.actions.CurrentEncounter()
	if enc == nil {
		return fmt.Errorf("encounter location outside of an encounter")
	}
	enc.Location = loc
	return nil
}

// -- <encounterProvider/> --

type encounterProviderElement struct {
	widget    string
	errWidget string
	options   []option
	selected  string
	display   string
}

func newEncounterProviderElement(ctx context.Context, s *Session, n *node) (*encounterProviderElement, error) {
	el := &encounterProviderElement{
		widget:    s.fc.RegisterWidget(),
		errWidget: s.fc.RegisterWidget(),
	}
	providers, err := s.svc.Identity.ListPractitioners(ctx)
	if err != nil {
		return nil, fmt.Errorf("list practitioners: %w", err)
	}
	for _, p := range providers {
		el.options = append(el.options, option{value: strconv.Itoa(p.ID), label: p.PersonName()})
	}
	if enc := s.fc.ExistingEncounter(); enc != nil && enc.Provider != nil {
		el.selected = strconv.Itoa(enc.Provider.ID)
		el.display = enc.Provider.PersonName()
	} else if d, ok := n.attr("default"); ok {
		el.selected = d
	}
	return el, nil
}

func (el *encounterProviderElement) render(s *Session, b *strings.Builder) {
	if s.fc.Mode() == ModeView {
		viewValue(b, el.display)
		return
	}
	selectInput(b, el.widget, el.options, el.selected)
	errorSpan(b, el.errWidget)
}

func (el *encounterProviderElement) lookup(ctx context.Context, s *Session, r *http.Request) (*identity.Practitioner, string) {
	raw := formValue(r, el.widget)
	if raw == "" {
		return nil, msgRequired
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return nil, msgInvalidProv
	}
	p, err := s.svc.Identity.GetPractitioner(ctx, id)
	if err != nil {
		return nil, msgInvalidProv
	}
	return p, ""
}

func (el *encounterProviderElement) validate(ctx context.Context, s *Session, r *http.Request) []FormSubmissionError {
	if _, msg := el.lookup(ctx, s, r); msg != "" {
		return []FormSubmissionError{{ID: el.errWidget, Error: msg}}
	}
	return nil
}

func (el *encounterProviderElement) handle(ctx context.Context, s *Session, r *http.Request) error {
	p, msg := el.lookup(ctx, s, r)
	if msg != "" {
		return fmt.Errorf("encounter provider: %s", msg)
	}
	enc := s.actions.CurrentEncounter()
	if enc == nil {
		return fmt.Errorf("encounter provider outside of an encounter")
	}
	enc.Provider = p
	return nil
}

// -- <obs conceptId="..."/> --

type obsElement struct {
	concept   *concept.Concept
	label     string
	required  bool
	widget    string
	errWidget string
	answers   map[string]*concept.Concept
	options   []option
	existing  *clinical.Obs
}

func newObsElement(ctx context.Context, s *Session, n *node) (*obsElement, error) {
	raw, ok := n.attr("conceptId")
	if !ok {
		return nil, fmt.Errorf("<obs> requires a conceptId attribute")
	}
	conceptID, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("<obs> conceptId %q is not a number", raw)
	}
	c, err := s.svc.Concepts.GetConcept(ctx, conceptID)
	if err != nil {
		return nil, fmt.Errorf("<obs> concept %d: %w", conceptID, err)
	}
	if c.Datatype == concept.DatatypeNA {
		return nil, fmt.Errorf("<obs> concept %d has datatype N/A", conceptID)
	}

	el := &obsElement{
		concept:   c,
		required:  isTrue(n, "required"),
		widget:    s.fc.RegisterWidget(),
		errWidget: s.fc.RegisterWidget(),
		answers:   make(map[string]*concept.Concept),
	}
	el.label, _ = n.attr("labelText")

	if c.Datatype == concept.DatatypeCoded {
		if err := el.loadAnswers(ctx, s, n); err != nil {
			return nil, err
		}
	}
	if s.fc.Mode() != ModeEnter {
		el.existing = s.fc.takeObs(conceptID)
	}
	return el, nil
}

func (el *obsElement) loadAnswers(ctx context.Context, s *Session, n *node) error {
	ids := el.concept.Answers
	if raw, ok := n.attr("answerConceptIds"); ok {
		ids = nil
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return fmt.Errorf("<obs> answerConceptIds %q: %w", raw, err)
			}
			ids = append(ids, id)
		}
	}
	var labels []string
	if raw, ok := n.attr("answerLabels"); ok {
		labels = strings.Split(raw, ",")
	}
	for i, id := range ids {
		answer, err := s.svc.Concepts.GetConcept(ctx, id)
		if err != nil {
			return fmt.Errorf("<obs> answer concept %d: %w", id, err)
		}
		label := answer.Name(s.svc.Locale.Tag)
		if i < len(labels) && strings.TrimSpace(labels[i]) != "" {
			label = strings.TrimSpace(labels[i])
		}
		key := strconv.Itoa(id)
		el.answers[key] = answer
		el.options = append(el.options, option{value: key, label: label})
	}
	return nil
}

func (el *obsElement) render(s *Session, b *strings.Builder) {
	if el.label != "" {
		b.WriteString(html.EscapeString(el.label))
		b.WriteString(" ")
	}
	if s.fc.Mode() == ModeView {
		value := ""
		if el.existing != nil {
			value = el.existing.ValueAsString(s.svc.Locale)
		}
		viewValue(b, value)
		return
	}

	current := ""
	if el.existing != nil {
		current = el.existing.ValueAsString(s.svc.Locale)
	}
	switch el.concept.Datatype {
	case concept.DatatypeNumeric:
		textInput(b, el.widget, 5, current)
	case concept.DatatypeDate:
		textInput(b, el.widget, 10, current)
	case concept.DatatypeBoolean:
		checkboxInput(b, el.widget, current == "true")
	case concept.DatatypeCoded:
		selected := ""
		if el.existing != nil && el.existing.ValueCoded != nil {
			selected = strconv.Itoa(el.existing.ValueCoded.ID)
		}
		selectInput(b, el.widget, el.options, selected)
	default:
		textInput(b, el.widget, 20, current)
	}
	errorSpan(b, el.errWidget)
}

// value parses the submitted widget. A nil value with an empty message means
// the widget was left blank.
func (el *obsElement) value(s *Session, r *http.Request) (interface{}, string) {
	raw := formValue(r, el.widget)
	if raw == "" {
		if el.required {
			return nil, msgRequired
		}
		return nil, ""
	}
	switch el.concept.Datatype {
	case concept.DatatypeNumeric:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, msgNotANumber
		}
		return f, ""
	case concept.DatatypeDate:
		t, err := s.svc.Locale.ParseDate(raw)
		if err != nil {
			return nil, msgInvalidDate
		}
		return t, ""
	case concept.DatatypeBoolean:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, msgInvalidValue
		}
		return v, ""
	case concept.DatatypeCoded:
		answer, ok := el.answers[raw]
		if !ok {
			return nil, msgInvalidAnswer
		}
		return answer, ""
	}
	return raw, ""
}

func (el *obsElement) validate(_ context.Context, s *Session, r *http.Request) []FormSubmissionError {
	if _, msg := el.value(s, r); msg != "" {
		return []FormSubmissionError{{ID: el.errWidget, Error: msg}}
	}
	return nil
}

func (el *obsElement) handle(_ context.Context, s *Session, r *http.Request) error {
	v, msg := el.value(s, r)
	if msg != "" {
		return fmt.Errorf("obs %d: %s", el.concept.ID, msg)
	}
	if v == nil {
		return nil
	}
	o := clinical.NewObs(s.patientID(), el.concept, time.Time{}, nil)
	o.SetValue(v)
	return s.actions.CreateObs(o)
}

// -- <obsgroup groupingConceptId="..."> ... </obsgroup> --

type obsGroupStart struct {
	concept *concept.Concept
}

func newObsGroupStart(ctx context.Context, s *Session, n *node) (*obsGroupStart, error) {
	raw, ok := n.attr("groupingConceptId")
	if !ok {
		return nil, fmt.Errorf("<obsgroup> requires a groupingConceptId attribute")
	}
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("<obsgroup> groupingConceptId %q is not a number", raw)
	}
	c, err := s.svc.Concepts.GetConcept(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("<obsgroup> concept %d: %w", id, err)
	}
	return &obsGroupStart{concept: c}, nil
}

func (g *obsGroupStart) validate(context.Context, *Session, *http.Request) []FormSubmissionError {
	return nil
}

func (g *obsGroupStart) handle(_ context.Context, s *Session, _ *http.Request) error {
	s.actions.BeginObsGroup(clinical.NewObs(s.patientID(), g.concept, time.Time{}, nil))
	return nil
}

type obsGroupEnd struct{}

func (obsGroupEnd) validate(context.Context, *Session, *http.Request) []FormSubmissionError {
	return nil
}

func (obsGroupEnd) handle(_ context.Context, s *Session, _ *http.Request) error {
	return s.actions.EndObsGroup()
}
