package encounter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type repoMem struct {
	mu         sync.RWMutex
	encounters map[uuid.UUID]*Encounter
	order      []uuid.UUID
}

// NewMemRepo returns a Repository held in process memory. Encounters are
// listed in insertion order.
func NewMemRepo() Repository {
	return &repoMem{encounters: make(map[uuid.UUID]*Encounter)}
}

func (r *repoMem) Create(_ context.Context, enc *Encounter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	enc.ID = uuid.New()
	enc.CreatedAt = time.Now()
	assignObsIDs(enc)
	r.encounters[enc.ID] = enc
	r.order = append(r.order, enc.ID)
	return nil
}

func (r *repoMem) GetByID(_ context.Context, id uuid.UUID) (*Encounter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	enc, ok := r.encounters[id]
	if !ok {
		return nil, fmt.Errorf("encounter %s: %w", id, ErrNotFound)
	}
	return enc, nil
}

func (r *repoMem) ListByPatient(_ context.Context, patientID int) ([]*Encounter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Encounter
	for _, id := range r.order {
		if enc := r.encounters[id]; enc.PatientID == patientID {
			out = append(out, enc)
		}
	}
	return out, nil
}

// assignObsIDs stamps ids, the encounter reference and creation time on
// every obs of a freshly created encounter.
func assignObsIDs(enc *Encounter) {
	now := time.Now()
	for _, o := range enc.AllObs(true) {
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}
		id := enc.ID
		o.EncounterID = &id
		if o.DateCreated.IsZero() {
			o.DateCreated = now
		}
		if o.PersonID == 0 {
			o.PersonID = enc.PatientID
		}
	}
}
