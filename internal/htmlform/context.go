package htmlform

import (
	"strconv"

	"github.com/ehr/formentry/internal/domain/clinical"
	"github.com/ehr/formentry/internal/domain/encounter"
)

// FormEntryContext tracks widget naming and, when viewing or editing, the
// existing obs still available to be shown by form elements.
type FormEntryContext struct {
	mode              Mode
	seq               int
	existingEncounter *encounter.Encounter
	pools             []*obsPool
}

type obsPool struct {
	obs    map[int][]*clinical.Obs
	groups map[int][]*clinical.Obs
}

func newObsPool(obs []*clinical.Obs) *obsPool {
	p := &obsPool{obs: make(map[int][]*clinical.Obs), groups: make(map[int][]*clinical.Obs)}
	for _, o := range obs {
		if o.IsObsGrouping() {
			p.groups[o.ConceptID()] = append(p.groups[o.ConceptID()], o)
		} else {
			p.obs[o.ConceptID()] = append(p.obs[o.ConceptID()], o)
		}
	}
	return p
}

func newFormEntryContext(mode Mode, existing *encounter.Encounter) *FormEntryContext {
	fc := &FormEntryContext{mode: mode, existingEncounter: existing}
	var top []*clinical.Obs
	if existing != nil {
		top = existing.ObsAtTopLevel(false)
	}
	fc.pools = []*obsPool{newObsPool(top)}
	return fc
}

func (c *FormEntryContext) Mode() Mode { return c.mode }

func (c *FormEntryContext) ExistingEncounter() *encounter.Encounter { return c.existingEncounter }

// RegisterWidget hands out the next widget name: w1, w2, ...
func (c *FormEntryContext) RegisterWidget() string {
	c.seq++
	return "w" + strconv.Itoa(c.seq)
}

// takeObs removes and returns the first unused existing obs for conceptID in
// the innermost group scope.
func (c *FormEntryContext) takeObs(conceptID int) *clinical.Obs {
	p := c.pools[len(c.pools)-1]
	list := p.obs[conceptID]
	if len(list) == 0 {
		return nil
	}
	p.obs[conceptID] = list[1:]
	return list[0]
}

// enterGroup claims the first unused existing group for groupingConceptID and
// scopes subsequent takeObs calls to its members.
func (c *FormEntryContext) enterGroup(groupingConceptID int) {
	p := c.pools[len(c.pools)-1]
	var members []*clinical.Obs
	if list := p.groups[groupingConceptID]; len(list) > 0 {
		p.groups[groupingConceptID] = list[1:]
		members = list[0].Members(false)
	}
	c.pools = append(c.pools, newObsPool(members))
}

func (c *FormEntryContext) exitGroup() {
	if len(c.pools) > 1 {
		c.pools = c.pools[:len(c.pools)-1]
	}
}
