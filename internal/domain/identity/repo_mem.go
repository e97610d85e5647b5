package identity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type patientRepoMem struct {
	mu       sync.RWMutex
	patients map[int]*Patient
	nextID   int
}

// NewPatientMemRepo returns a PatientRepository held in process memory.
// Patients created without an ID are numbered after the highest ID seen.
func NewPatientMemRepo() PatientRepository {
	return &patientRepoMem{patients: make(map[int]*Patient), nextID: 1}
}

func (r *patientRepoMem) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		p.ID = r.nextID
	}
	if _, ok := r.patients[p.ID]; ok {
		return fmt.Errorf("patient %d already exists", p.ID)
	}
	if p.ID >= r.nextID {
		r.nextID = p.ID + 1
	}
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	p.CreatedAt = time.Now()
	r.patients[p.ID] = p
	return nil
}

func (r *patientRepoMem) GetByID(_ context.Context, id int) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, fmt.Errorf("patient %d: %w", id, ErrNotFound)
	}
	return p, nil
}

func (r *patientRepoMem) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*Patient, 0, len(r.patients))
	for _, p := range r.patients {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

type practitionerRepoMem struct {
	mu            sync.RWMutex
	practitioners map[int]*Practitioner
	nextID        int
}

// NewPractitionerMemRepo returns a PractitionerRepository held in process memory.
func NewPractitionerMemRepo() PractitionerRepository {
	return &practitionerRepoMem{practitioners: make(map[int]*Practitioner), nextID: 1}
}

func (r *practitionerRepoMem) Create(_ context.Context, p *Practitioner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		p.ID = r.nextID
	}
	if _, ok := r.practitioners[p.ID]; ok {
		return fmt.Errorf("practitioner %d already exists", p.ID)
	}
	if p.ID >= r.nextID {
		r.nextID = p.ID + 1
	}
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	p.CreatedAt = time.Now()
	r.practitioners[p.ID] = p
	return nil
}

func (r *practitionerRepoMem) GetByID(_ context.Context, id int) (*Practitioner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.practitioners[id]
	if !ok {
		return nil, fmt.Errorf("practitioner %d: %w", id, ErrNotFound)
	}
	return p, nil
}

func (r *practitionerRepoMem) List(_ context.Context) ([]*Practitioner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Practitioner, 0, len(r.practitioners))
	for _, p := range r.practitioners {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
