package concept

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type repoMem struct {
	mu       sync.RWMutex
	concepts map[int]*Concept
}

// NewMemRepo returns a Repository held in process memory.
func NewMemRepo() Repository {
	return &repoMem{concepts: make(map[int]*Concept)}
}

func (r *repoMem) Create(_ context.Context, c *Concept) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.concepts[c.ID]; ok {
		return fmt.Errorf("concept %d already exists", c.ID)
	}
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	c.CreatedAt = time.Now()
	r.concepts[c.ID] = c
	return nil
}

func (r *repoMem) GetByID(_ context.Context, id int) (*Concept, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.concepts[id]
	if !ok {
		return nil, fmt.Errorf("concept %d: %w", id, ErrNotFound)
	}
	return c, nil
}

func (r *repoMem) List(_ context.Context) ([]*Concept, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Concept, 0, len(r.concepts))
	for _, c := range r.concepts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
