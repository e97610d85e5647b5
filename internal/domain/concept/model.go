package concept

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// Datatype decides which value slot an observation of the concept fills.
type Datatype string

const (
	DatatypeNA      Datatype = "N/A"
	DatatypeNumeric Datatype = "Numeric"
	DatatypeText    Datatype = "Text"
	DatatypeCoded   Datatype = "Coded"
	DatatypeDate    Datatype = "Date"
	DatatypeBoolean Datatype = "Boolean"
)

var validDatatypes = map[Datatype]bool{
	DatatypeNA:      true,
	DatatypeNumeric: true,
	DatatypeText:    true,
	DatatypeCoded:   true,
	DatatypeDate:    true,
	DatatypeBoolean: true,
}

// Concept maps to the concept table. Names are keyed by BCP 47 tag ("en",
// "en-GB", "fr").
type Concept struct {
	ID        int               `db:"concept_id" json:"concept_id" yaml:"id"`
	UUID      uuid.UUID         `db:"uuid" json:"uuid" yaml:"-"`
	Datatype  Datatype          `db:"datatype" json:"datatype" yaml:"datatype"`
	IsSet     bool              `db:"is_set" json:"is_set" yaml:"set"`
	Names     map[string]string `json:"names" yaml:"names"`
	Answers   []int             `json:"answers,omitempty" yaml:"answers"`
	CreatedAt time.Time         `db:"created_at" json:"created_at" yaml:"-"`
}

// Name returns the concept name for tag, falling back to the base language
// and then to the alphabetically first locale on record.
func (c *Concept) Name(tag language.Tag) string {
	if len(c.Names) == 0 {
		return ""
	}
	if n, ok := c.Names[tag.String()]; ok {
		return n
	}
	base, _ := tag.Base()
	if n, ok := c.Names[base.String()]; ok {
		return n
	}
	keys := make([]string, 0, len(c.Names))
	for k := range c.Names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return c.Names[keys[0]]
}

// HasAnswer reports whether answerID is one of the coded answers.
func (c *Concept) HasAnswer(answerID int) bool {
	for _, a := range c.Answers {
		if a == answerID {
			return true
		}
	}
	return false
}
