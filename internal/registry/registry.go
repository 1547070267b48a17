// Package registry holds the authoritative set of monitored targets.
//
// Reads are served from an immutable snapshot that is swapped atomically on
// every write, so the scheduler can list targets while the API mutates them.
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"lagmon/internal/models"
)

// maxIDAttempts bounds how often a colliding generated id is retried
const maxIDAttempts = 8

type snapshot struct {
	order []models.Target
	index map[string]int
}

func (s *snapshot) clone() *snapshot {
	n := &snapshot{
		order: make([]models.Target, len(s.order)),
		index: make(map[string]int, len(s.index)),
	}
	copy(n.order, s.order)
	for k, v := range s.index {
		n.index[k] = v
	}
	return n
}

// Registry owns the target lifecycle
type Registry struct {
	mu    sync.Mutex // serializes writers
	snap  atomic.Pointer[snapshot]
	pub   models.Publisher
	newID func() (string, error)
}

// New creates an empty registry. pub may be nil.
func New(pub models.Publisher) *Registry {
	r := &Registry{pub: pub, newID: generateID}
	r.snap.Store(&snapshot{index: map[string]int{}})
	return r
}

func generateID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (r *Registry) publish(e models.Event) {
	if r.pub != nil {
		r.pub.Publish(e)
	}
}

// Add inserts a target. An existing id returns the stored target unchanged.
func (r *Registry) Add(spec models.TargetSpec) (models.Target, error) {
	address, err := models.NormalizeAddress(spec.Address)
	if err != nil {
		return models.Target{}, err
	}

	role := spec.Role
	if role == "" {
		role = models.RoleCustom
	}
	if _, err := models.ParseRole(string(role)); err != nil {
		return models.Target{}, err
	}

	r.mu.Lock()
	cur := r.snap.Load()

	if spec.ID != "" {
		if i, ok := cur.index[spec.ID]; ok {
			existing := cur.order[i]
			r.mu.Unlock()
			return existing, nil
		}
	}

	if role.IsTopology() {
		for _, t := range cur.order {
			if t.Role == role {
				r.mu.Unlock()
				return models.Target{}, fmt.Errorf("%w: %s is held by %q", models.ErrRoleConflict, role, t.ID)
			}
		}
	}

	id := spec.ID
	if id == "" {
		id, err = r.uniqueID(cur)
		if err != nil {
			r.mu.Unlock()
			return models.Target{}, err
		}
	}

	active := true
	if spec.Active != nil {
		active = *spec.Active
	}
	name := spec.Name
	if name == "" {
		name = address
	}

	t := models.Target{
		ID:       id,
		Address:  address,
		Name:     name,
		Role:     role,
		Active:   active,
		Interval: spec.Interval,
	}

	next := cur.clone()
	next.index[id] = len(next.order)
	next.order = append(next.order, t)
	r.snap.Store(next)
	r.mu.Unlock()

	r.publish(models.TargetAdded(t))
	return t, nil
}

func (r *Registry) uniqueID(cur *snapshot) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id, err := r.newID()
		if err != nil {
			return "", fmt.Errorf("%w: %v", models.ErrIDSpace, err)
		}
		if _, taken := cur.index[id]; !taken {
			return id, nil
		}
	}
	return "", models.ErrIDSpace
}

// Remove deletes a target. Unknown ids are ignored.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	cur := r.snap.Load()
	i, ok := cur.index[id]
	if !ok {
		r.mu.Unlock()
		return false
	}

	next := &snapshot{
		order: make([]models.Target, 0, len(cur.order)-1),
		index: make(map[string]int, len(cur.index)-1),
	}
	next.order = append(next.order, cur.order[:i]...)
	next.order = append(next.order, cur.order[i+1:]...)
	for j, t := range next.order {
		next.index[t.ID] = j
	}
	r.snap.Store(next)
	r.mu.Unlock()

	r.publish(models.TargetRemoved(id))
	return true
}

// SetActive toggles probing for a target. It reports whether the flag changed.
func (r *Registry) SetActive(id string, active bool) (changed bool, err error) {
	r.mu.Lock()
	cur := r.snap.Load()
	i, ok := cur.index[id]
	if !ok {
		r.mu.Unlock()
		return false, fmt.Errorf("%w: %q", models.ErrNotFound, id)
	}
	if cur.order[i].Active == active {
		r.mu.Unlock()
		return false, nil
	}

	next := cur.clone()
	next.order[i].Active = active
	t := next.order[i]
	r.snap.Store(next)
	r.mu.Unlock()

	r.publish(models.TargetUpdated(t))
	return true, nil
}

// Get returns the target with the given id
func (r *Registry) Get(id string) (models.Target, bool) {
	cur := r.snap.Load()
	i, ok := cur.index[id]
	if !ok {
		return models.Target{}, false
	}
	return cur.order[i], true
}

// IsActive reports whether id is present and active
func (r *Registry) IsActive(id string) bool {
	t, ok := r.Get(id)
	return ok && t.Active
}

// List returns the targets in insertion order. The slice is a private copy.
func (r *Registry) List() []models.Target {
	cur := r.snap.Load()
	out := make([]models.Target, len(cur.order))
	copy(out, cur.order)
	return out
}

// Active returns the active targets in insertion order
func (r *Registry) Active() []models.Target {
	cur := r.snap.Load()
	out := make([]models.Target, 0, len(cur.order))
	for _, t := range cur.order {
		if t.Active {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of registered targets
func (r *Registry) Len() int {
	return len(r.snap.Load().order)
}
