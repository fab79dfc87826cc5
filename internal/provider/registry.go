package provider

import (
	"context"
	"fmt"

	"github.com/unearth-dev/unearth/internal/graph"
)

// Registry holds the ordered candidate list per data kind and performs
// first-match selection. Constructed once at engine setup, read-only
// afterwards, safe for concurrent use.
type Registry struct {
	byKind map[Kind][]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKind: make(map[Kind][]Provider)}
}

// Add appends a candidate for its kind. Order matters: earlier candidates
// win selection.
func (reg *Registry) Add(p Provider) {
	reg.byKind[p.Kind()] = append(reg.byKind[p.Kind()], p)
}

// Candidates returns the ordered candidate list for a kind.
func (reg *Registry) Candidates(kind Kind) []Provider {
	out := make([]Provider, len(reg.byKind[kind]))
	copy(out, reg.byKind[kind])
	return out
}

// Select picks the first candidate whose data can be used on the pair,
// falling back to the identity strategy when none matches. Selection never
// fails on missing data — only on a candidate's lookup infrastructure
// erroring out.
func (reg *Registry) Select(ctx context.Context, kind Kind, r *graph.Release, v graph.Variant) (Provider, error) {
	for _, p := range reg.byKind[kind] {
		usable, err := p.CanBeUsedOn(ctx, r, v)
		if err != nil {
			return nil, fmt.Errorf("selecting %s provider for %s: %w", kind, r.Name(), err)
		}
		if usable {
			return p, nil
		}
	}
	return Identity{DataKind: kind}, nil
}
