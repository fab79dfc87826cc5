// Package provider implements interchangeable sources of optional
// transformation data (mappings, signature patches, unpick constants, nest
// data), selected per release and per artifact variant.
//
// Providers are stateless with respect to releases: all per-release state
// lives in the artifact store. Missing data is a legitimate steady state —
// a provider that has nothing for a release contributes a NotRun outcome,
// never an error.
package provider

import (
	"context"
	"io"

	"github.com/unearth-dev/unearth/internal/graph"
	"github.com/unearth-dev/unearth/internal/pipeline"
)

// Kind names one optional data category.
type Kind string

const (
	KindMappings   Kind = "mappings"
	KindSignatures Kind = "signatures"
	KindUnpick     Kind = "unpick"
	KindNests      Kind = "nests"
)

// Kinds lists all data kinds in canonical order.
var Kinds = []Kind{KindMappings, KindSignatures, KindUnpick, KindNests}

// Provider is one named strategy for a data kind.
//
// ExistsFor asks whether data exists for the exact (release, variant) pair;
// CanBeUsedOn additionally accounts for merged-variant substitution: when a
// release's variants are not versioned separately, or client and server
// share obfuscation, data published against the merged artifact serves any
// variant.
type Provider interface {
	// Name identifies the strategy; it appears in artifact file names, so
	// it must be path-safe and stable.
	Name() string

	// Kind returns the data category this provider serves.
	Kind() Kind

	// ExistsFor reports whether data exists for the exact pair.
	ExistsFor(ctx context.Context, r *graph.Release, v graph.Variant) (bool, error)

	// CanBeUsedOn reports whether data is usable for the pair after
	// merged-variant substitution.
	CanBeUsedOn(ctx context.Context, r *graph.Release, v graph.Variant) (bool, error)

	// Materialize obtains or builds the provider's backing artifact,
	// consulting the artifact store for a cached, validated copy before
	// going to the network. Returns NotRun when no data exists.
	Materialize(ctx context.Context, r *graph.Release, v graph.Variant) (pipeline.Outcome, error)

	// Apply streams the materialized data onto the caller's target.
	// Failure here is hard: it surfaces as a step failure.
	Apply(ctx context.Context, r *graph.Release, v graph.Variant, target io.Writer) error
}

// Identity is the no-op default strategy: it vacuously satisfies all checks,
// contributes no artifact, and applies nothing.
type Identity struct {
	DataKind Kind
}

func (i Identity) Name() string { return "identity" }
func (i Identity) Kind() Kind   { return i.DataKind }

func (i Identity) ExistsFor(context.Context, *graph.Release, graph.Variant) (bool, error) {
	return true, nil
}

func (i Identity) CanBeUsedOn(context.Context, *graph.Release, graph.Variant) (bool, error) {
	return true, nil
}

func (i Identity) Materialize(context.Context, *graph.Release, graph.Variant) (pipeline.Outcome, error) {
	return pipeline.OutcomeNotRun, nil
}

func (i Identity) Apply(context.Context, *graph.Release, graph.Variant, io.Writer) error {
	return nil
}
