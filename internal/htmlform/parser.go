package htmlform

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Tags with behavior attached. Any other markup passes through untouched.
const (
	tagHtmlForm          = "htmlform"
	tagEncounterDate     = "encounterdate"
	tagEncounterLocation = "encounterlocation"
	tagEncounterProvider = "encounterprovider"
	tagObs               = "obs"
	tagObsGroup          = "obsgroup"
)

var knownTags = map[string]bool{
	tagHtmlForm:          true,
	tagEncounterDate:     true,
	tagEncounterLocation: true,
	tagEncounterProvider: true,
	tagObs:               true,
	tagObsGroup:          true,
}

// containers are tags whose children are processed by the engine.
var containers = map[string]bool{
	tagHtmlForm: true,
	tagObsGroup: true,
}

// node is either raw markup (tag == "") or a known tag with attributes.
// Attribute keys are lower-cased by the tokenizer.
type node struct {
	tag      string
	raw      string
	attrs    map[string]string
	children []*node
}

func (n *node) attr(key string) (string, bool) {
	v, ok := n.attrs[strings.ToLower(key)]
	return v, ok
}

// parseDefinition tokenizes form markup into a tree rooted at a synthetic
// node. The markup must contain exactly one <htmlform> element.
func parseDefinition(xml string) (*node, error) {
	root := &node{}
	stack := []*node{root}
	top := func() *node { return stack[len(stack)-1] }
	forms := 0

	z := html.NewTokenizer(strings.NewReader(xml))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				if len(stack) > 1 {
					return nil, fmt.Errorf("unclosed <%s>", top().tag)
				}
				if forms != 1 {
					return nil, fmt.Errorf("expected one <htmlform> element, found %d", forms)
				}
				return root, nil
			}
			return nil, fmt.Errorf("tokenize form: %w", z.Err())

		case html.StartTagToken, html.SelfClosingTagToken:
			raw := string(z.Raw())
			name, hasAttr := z.TagName()
			tag := string(name)
			if !knownTags[tag] {
				top().children = append(top().children, &node{raw: raw})
				continue
			}
			n := &node{tag: tag, attrs: make(map[string]string)}
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				n.attrs[string(k)] = string(v)
			}
			if tag == tagHtmlForm {
				forms++
				if len(stack) > 1 {
					return nil, fmt.Errorf("<htmlform> must be the outermost element")
				}
			}
			top().children = append(top().children, n)
			if containers[tag] && tt == html.StartTagToken {
				stack = append(stack, n)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if !knownTags[tag] {
				top().children = append(top().children, &node{raw: string(z.Raw())})
				continue
			}
			if !containers[tag] {
				continue
			}
			if top().tag != tag {
				return nil, fmt.Errorf("unexpected </%s>", tag)
			}
			stack = stack[:len(stack)-1]

		default:
			top().children = append(top().children, &node{raw: string(z.Raw())})
		}
	}
}
