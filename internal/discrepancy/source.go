// Package discrepancy compares our recorded values against independent
// external sources and classifies how far they disagree.
package discrepancy

import (
	"context"
	"sort"
	"sync"

	"github.com/treasurylens/treasury-cli/internal/model"
)

// Source is an external data source that can report a claim for a
// (company, field) pair. Implementations live near their transport client
// and are registered at startup.
type Source interface {
	// Name returns the source identifier used as the key in discrepancy
	// records.
	Name() string
	// CanProvide reports whether the source tracks the given field.
	CanProvide(field string) bool
	// Fetch returns the source's current claim, or resilience.ErrNotFound
	// when the source has no data for this company.
	Fetch(ctx context.Context, company model.Company, field string) (*model.FactClaim, error)
}

// Registry manages registered external sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds a source to the registry, replacing any source with the
// same name.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Name()] = s
}

// Get returns a source by name, or nil if not registered.
func (r *Registry) Get(name string) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[name]
}

// ForField returns the sources that track the given field, sorted by name
// so comparison runs are deterministic.
func (r *Registry) ForField(field string) []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Source
	for _, s := range r.sources {
		if s.CanProvide(field) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
