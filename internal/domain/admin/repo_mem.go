package admin

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type locationRepoMem struct {
	mu        sync.RWMutex
	locations map[int]*Location
	nextID    int
}

// NewLocationMemRepo returns a LocationRepository held in process memory.
func NewLocationMemRepo() LocationRepository {
	return &locationRepoMem{locations: make(map[int]*Location), nextID: 1}
}

func (r *locationRepoMem) Create(_ context.Context, l *Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == 0 {
		l.ID = r.nextID
	}
	if _, ok := r.locations[l.ID]; ok {
		return fmt.Errorf("location %d already exists", l.ID)
	}
	if l.ID >= r.nextID {
		r.nextID = l.ID + 1
	}
	if l.UUID == uuid.Nil {
		l.UUID = uuid.New()
	}
	l.CreatedAt = time.Now()
	r.locations[l.ID] = l
	return nil
}

func (r *locationRepoMem) GetByID(_ context.Context, id int) (*Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.locations[id]
	if !ok {
		return nil, fmt.Errorf("location %d: %w", id, ErrNotFound)
	}
	return l, nil
}

func (r *locationRepoMem) List(_ context.Context) ([]*Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Location, 0, len(r.locations))
	for _, l := range r.locations {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
