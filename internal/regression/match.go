package regression

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ehr/formentry/internal/domain/clinical"
	"github.com/ehr/formentry/internal/domain/concept"
	"github.com/ehr/formentry/internal/domain/encounter"
	"github.com/ehr/formentry/internal/platform/locale"
)

// ObsValue is an expected member of an obs group. A nil Value only matches
// a member with no value.
type ObsValue struct {
	ConceptID int
	Value     interface{}
}

func (v ObsValue) String() string {
	return fmt.Sprintf("%d->%v", v.ConceptID, v.Value)
}

func (h *Harness) matches(v ObsValue, o *clinical.Obs) bool {
	if o.ConceptID() != v.ConceptID {
		return false
	}
	want, ok := h.ValueAsString(v.Value)
	return ok && want == o.ValueAsString(h.Services.Locale)
}

// IsMatchingObsGroup reports whether the members of group are exactly
// expected, in any order. Each expected value is consumed by one member.
func (h *Harness) IsMatchingObsGroup(group *clinical.Obs, expected []ObsValue) bool {
	if !group.IsObsGrouping() {
		return false
	}
	members := group.Members(false)
	if len(members) != len(expected) {
		return false
	}
	used := make([]bool, len(expected))
	for _, m := range members {
		found := false
		for i, v := range expected {
			if used[i] {
				continue
			}
			if h.matches(v, m) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ValueAsString renders an expected value the way obs values are displayed.
// ok is false for a nil value.
func (h *Harness) ValueAsString(v interface{}) (s string, ok bool) {
	return valueAsString(h.Services.Locale, v)
}

func valueAsString(loc locale.Locale, v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case *concept.Concept:
		if x == nil {
			return "", false
		}
		return x.Name(loc.Tag), true
	case concept.Concept:
		return x.Name(loc.Tag), true
	case time.Time:
		return loc.FormatDate(x), true
	case *time.Time:
		if x == nil {
			return "", false
		}
		return loc.FormatDate(*x), true
	}
	if f, ok := clinical.ToFloat(v); ok {
		return locale.FormatDouble(f), true
	}
	return fmt.Sprint(v), true
}

var (
	valueSpan = regexp.MustCompile(`<span class="value">(.*)</span>`)
	emptySpan = regexp.MustCompile(`<span class="emptyvalue">.*</span>`)
	space     = regexp.MustCompile(`\s`)
	formWrap  = regexp.MustCompile(`<htmlform>(.*)</htmlform>`)
)

func normalizeHTML(s string) string {
	s = strings.ToLower(s)
	s = valueSpan.ReplaceAllString(s, "${1}")
	s = emptySpan.ReplaceAllString(s, "")
	s = space.ReplaceAllString(s, "")
	s = formWrap.ReplaceAllString(s, "${1}")
	return s
}

// FuzzyEquals compares rendered forms ignoring case and whitespace. Value
// spans are unwrapped, empty-value placeholders dropped and the <htmlform>
// wrapper removed before comparing.
func FuzzyEquals(expected, actual string) bool {
	return normalizeHTML(expected) == normalizeHTML(actual)
}

func AssertFuzzyEquals(t require.TestingT, expected, actual string) {
	if !FuzzyEquals(expected, actual) {
		require.Fail(t, fmt.Sprintf("%s does not match %s", expected, actual))
	}
}

// AddObs attaches an obs of conceptID to enc, taking the value slot from the
// kind of value: numbers are numeric, strings text, times datetimes and
// concepts coded answers.
func (h *Harness) AddObs(ctx context.Context, enc *encounter.Encounter, conceptID int, value interface{}, date time.Time) error {
	c, err := h.Services.Concepts.GetConcept(ctx, conceptID)
	if err != nil {
		return fmt.Errorf("add obs: %w", err)
	}
	o := clinical.NewObs(enc.PatientID, c, date, enc.LocationID())
	if enc.PatientID == 0 && enc.Patient != nil {
		o.PersonID = enc.Patient.ID
	}
	switch x := value.(type) {
	case nil:
	case string:
		o.ValueText = &x
	case time.Time:
		o.ValueDatetime = &x
	case *concept.Concept:
		o.ValueCoded = x
	default:
		f, ok := clinical.ToFloat(value)
		if !ok {
			return fmt.Errorf("add obs: unsupported value type %T", value)
		}
		o.ValueNumeric = &f
	}
	o.DateCreated = time.Now()
	enc.AddObs(o)
	return nil
}
