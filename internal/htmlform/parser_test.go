package htmlform

import (
	"strings"
	"testing"
)

func TestParseDefinition_PassThrough(t *testing.T) {
	root, err := parseDefinition(`<htmlform><table><tr><td>Weight:</td><td><obs conceptId="5089"/></td></tr></table></htmlform>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(root.children) != 1 || root.children[0].tag != tagHtmlForm {
		t.Fatalf("expected a single htmlform node, got %+v", root.children)
	}
	var raw strings.Builder
	var obs *node
	for _, n := range root.children[0].children {
		if n.tag == "" {
			raw.WriteString(n.raw)
		}
		if n.tag == tagObs {
			obs = n
		}
	}
	if raw.String() != "<table><tr><td>Weight:</td><td></td></tr></table>" {
		t.Errorf("unexpected pass-through markup: %q", raw.String())
	}
	if obs == nil {
		t.Fatal("expected obs node")
	}
	if v, ok := obs.attr("conceptId"); !ok || v != "5089" {
		t.Errorf("expected conceptId 5089, got %q", v)
	}
}

func TestParseDefinition_ObsGroupChildren(t *testing.T) {
	root, err := parseDefinition(`<htmlform><obsgroup groupingConceptId="1000"><obs conceptId="1001"/><obs conceptId="1004"/></obsgroup></htmlform>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	group := root.children[0].children[0]
	if group.tag != tagObsGroup {
		t.Fatalf("expected obsgroup, got %q", group.tag)
	}
	if len(group.children) != 2 {
		t.Errorf("expected 2 children, got %d", len(group.children))
	}
}

func TestParseDefinition_Errors(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want string
	}{
		{"no htmlform", `<div>hello</div>`, "expected one <htmlform>"},
		{"two htmlforms", `<htmlform></htmlform><htmlform></htmlform>`, "expected one <htmlform>"},
		{"nested htmlform", `<htmlform><obsgroup groupingConceptId="1"><htmlform></htmlform></obsgroup></htmlform>`, "outermost"},
		{"unclosed obsgroup", `<htmlform><obsgroup groupingConceptId="1"></htmlform>`, "unexpected </htmlform>"},
		{"unclosed htmlform", `<htmlform>`, "unclosed <htmlform>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseDefinition(tt.xml)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
