package htmlform

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

type option struct {
	value string
	label string
}

func textInput(b *strings.Builder, name string, size int, value string) {
	fmt.Fprintf(b, `<input type="text" size="%d" name="%s" id="%s" value="%s"/>`,
		size, name, name, html.EscapeString(value))
}

func checkboxInput(b *strings.Builder, name string, checked bool) {
	fmt.Fprintf(b, `<input type="checkbox" name="%s" id="%s" value="true"`, name, name)
	if checked {
		b.WriteString(` checked="true"`)
	}
	b.WriteString("/>")
}

func selectInput(b *strings.Builder, name string, options []option, selected string) {
	fmt.Fprintf(b, `<select name="%s" id="%s">`, name, name)
	b.WriteString(`<option value="">Choose...</option>`)
	for _, o := range options {
		fmt.Fprintf(b, `<option value="%s"`, html.EscapeString(o.value))
		if o.value == selected && selected != "" {
			b.WriteString(` selected="true"`)
		}
		fmt.Fprintf(b, `>%s</option>`, html.EscapeString(o.label))
	}
	b.WriteString(`</select>`)
}

func errorSpan(b *strings.Builder, name string) {
	fmt.Fprintf(b, `<span class="error" style="display: none" id="%s"></span>`, name)
}

// viewValue renders a read-only value, or the empty placeholder.
func viewValue(b *strings.Builder, value string) {
	if value == "" {
		b.WriteString(`<span class="emptyValue">___</span>`)
		return
	}
	fmt.Fprintf(b, `<span class="value">%s</span>`, html.EscapeString(value))
}
