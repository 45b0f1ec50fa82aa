package watcher

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Registry holds the tracked entities in configuration order.
// Readers get copies; mutation is unexported and owned by the Watcher.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*Entity
}

func NewRegistry(entities ...Entity) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Entity, len(entities))}
	for _, e := range entities {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return nil, fmt.Errorf("entity %q: empty id", e.Name)
		}
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("entity %s: duplicate id", id)
		}
		e.ID = id
		e.LastCount, e.Primed = 0, false
		cp := e
		r.byID[id] = &cp
		r.order = append(r.order, id)
	}
	return r, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry) Entities() []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entity, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out
}

func (r *Registry) Entity(id string) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// Find matches by id, full name or last name, case-insensitively.
func (r *Registry) Find(query string) (Entity, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Entity{}, false
	}
	if e, ok := r.Entity(q); ok {
		return e, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var lastName *Entity
	for _, id := range r.order {
		e := r.byID[id]
		name := strings.ToLower(e.Name)
		if name == q {
			return *e, true
		}
		if fields := strings.Fields(name); lastName == nil && len(fields) > 0 && fields[len(fields)-1] == q {
			lastName = e
		}
	}
	if lastName != nil {
		return *lastName, true
	}
	return Entity{}, false
}

// prime sets the first baseline. It reports false when id is unknown or
// already primed.
func (r *Registry) prime(id string, count int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok || e.Primed {
		return false
	}
	e.LastCount = count
	e.Primed = true
	return true
}

// commit moves the baseline forward; lower values are ignored.
func (r *Registry) commit(id string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byID[id]; ok && count > e.LastCount {
		e.LastCount = count
	}
}

func (r *Registry) observe(id string, o Outcome, err error, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return
	}
	e.LastChecked = at
	e.LastOutcome = o
	e.LastError = ""
	if err != nil {
		e.LastError = err.Error()
	}
}
