// Package extension is a registration table of extension points and their
// compiled-in implementations, ranked by priority.
package extension

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrPointExists indicates a duplicate extension point id.
	ErrPointExists = errors.New("extension point already registered")
	// ErrUnknownPoint indicates an extension registered against a missing point.
	ErrUnknownPoint = errors.New("extension point is not registered")
	// ErrContractMismatch indicates an extension that does not satisfy the point's contract.
	ErrContractMismatch = errors.New("extension does not implement point contract")
)

// Contract returns an acceptance check for implementations of T.
func Contract[T any]() func(any) bool {
	return func(v any) bool {
		_, ok := v.(T)
		return ok
	}
}

type entry struct {
	ext      any
	priority int
}

type point struct {
	accepts func(any) bool
	entries []entry // priority desc, registration order within equal priority
}

// Registry holds extension points. It is filled during process start and read afterwards.
type Registry struct {
	mu     sync.RWMutex
	points map[string]*point
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{points: make(map[string]*point)}
}

// RegisterPoint declares an extension point with the check its implementations must pass.
func (r *Registry) RegisterPoint(id string, accepts func(any) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.points[id]; ok {
		return fmt.Errorf("%s: %w", id, ErrPointExists)
	}
	if accepts == nil {
		accepts = func(any) bool { return true }
	}
	r.points[id] = &point{accepts: accepts}
	return nil
}

// Register adds ext to point id. Higher priority wins; ties keep the earlier registration first.
func (r *Registry) Register(id string, ext any, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.points[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownPoint)
	}
	if ext == nil || !p.accepts(ext) {
		return fmt.Errorf("%s: %T: %w", id, ext, ErrContractMismatch)
	}
	p.entries = append(p.entries, entry{ext: ext, priority: priority})
	sort.SliceStable(p.entries, func(i, j int) bool {
		return p.entries[i].priority > p.entries[j].priority
	})
	return nil
}

// Highest returns the single best-ranked implementation of point id.
func (r *Registry) Highest(id string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.points[id]
	if !ok || len(p.entries) == 0 {
		return nil, false
	}
	return p.entries[0].ext, true
}

// Extensions lists implementations of point id in rank order.
func (r *Registry) Extensions(id string) []any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.points[id]
	if !ok {
		return nil
	}
	out := make([]any, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e.ext)
	}
	return out
}
