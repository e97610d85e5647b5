package clinical

import (
	"testing"
	"time"

	"github.com/ehr/formentry/internal/domain/concept"
	"github.com/ehr/formentry/internal/platform/locale"
)

func TestObs_ValueAsString(t *testing.T) {
	yes := &concept.Concept{ID: 1065, Datatype: concept.DatatypeNA, Names: map[string]string{"en": "YES"}}
	num := &concept.Concept{ID: 5089, Datatype: concept.DatatypeNumeric}
	boolean := &concept.Concept{ID: 4, Datatype: concept.DatatypeBoolean}
	day := time.Date(2010, time.March, 4, 0, 0, 0, 0, time.Local)

	tests := []struct {
		name  string
		obs   *Obs
		value interface{}
		want  string
	}{
		{"coded", &Obs{}, yes, "YES"},
		{"numeric", &Obs{Concept: num}, 70, "70.0"},
		{"decimal", &Obs{Concept: num}, 37.5, "37.5"},
		{"text", &Obs{}, "hello", "hello"},
		{"date", &Obs{}, day, "04/03/2010"},
		{"boolean true", &Obs{Concept: boolean}, true, "true"},
		{"boolean false", &Obs{Concept: boolean}, false, "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.obs.SetValue(tt.value) {
				t.Fatalf("SetValue(%v) rejected", tt.value)
			}
			if got := tt.obs.ValueAsString(locale.Default); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestObs_SetValue_Unsupported(t *testing.T) {
	o := &Obs{}
	if o.SetValue(struct{}{}) {
		t.Error("expected struct value to be rejected")
	}
	if o.SetValue(nil) {
		t.Error("expected nil to be rejected")
	}
	if o.HasValue() {
		t.Error("expected no value")
	}
}

func TestObs_Grouping(t *testing.T) {
	group := &Obs{}
	if group.IsObsGrouping() {
		t.Fatal("empty obs should not be a grouping")
	}
	child := &Obs{}
	voided := &Obs{Voided: true}
	group.AddGroupMember(child)
	group.AddGroupMember(voided)

	if !group.IsObsGrouping() {
		t.Error("expected grouping")
	}
	if child.ObsGroup != group {
		t.Error("expected member to point at its group")
	}
	if n := len(group.Members(false)); n != 1 {
		t.Errorf("expected 1 active member, got %d", n)
	}
	if n := len(group.Members(true)); n != 2 {
		t.Errorf("expected 2 members, got %d", n)
	}
}

func TestObs_EmptyValueAsString(t *testing.T) {
	if got := (&Obs{}).ValueAsString(locale.Default); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
