// Package graph builds the totally ordered release collection that drives a
// pipeline run.
//
// The graph is built once per run from manifest entries and is read-only
// afterwards. It owns all Release instances and answers three questions:
// lookup by name, strict total ordering (build number, manifest order as the
// tie-breaker), and the derived equivalence relations between releases
// (shared obfuscation / shared versioning grouping). The relations are
// computed at build time from manifest-declared group labels, never
// recomputed per query.
package graph

import (
	"fmt"
	"sort"
)

// MalformedManifestError indicates the manifest entries cannot be turned into
// a totally ordered release collection. It is fatal to the whole run.
type MalformedManifestError struct {
	// Entry is the offending entry's name, if attributable.
	Entry string

	// Reason describes why the manifest is malformed.
	Reason string
}

func (e *MalformedManifestError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("malformed manifest: entry %q: %s", e.Entry, e.Reason)
	}
	return fmt.Sprintf("malformed manifest: %s", e.Reason)
}

// Graph is the totally ordered, read-only release collection.
type Graph struct {
	ordered []*Release
	byName  map[string]*Release

	// Group label -> member set, precomputed at build time.
	obfuscationGroups map[string]map[string]bool
	versioningGroups  map[string]map[string]bool
}

// Build constructs a Graph from manifest entries.
//
// Validation rules:
//   - at least one entry
//   - names are non-empty and unique
//   - builds are non-negative
//   - every release has at least one of client/server
//
// Entries are ordered by build number; entries sharing a build number keep
// their relative manifest order, which makes the ordering a strict total
// order over distinct releases.
func Build(entries []ManifestEntry) (*Graph, error) {
	if len(entries) == 0 {
		return nil, &MalformedManifestError{Reason: "no entries"}
	}

	g := &Graph{
		ordered:           make([]*Release, 0, len(entries)),
		byName:            make(map[string]*Release, len(entries)),
		obfuscationGroups: make(map[string]map[string]bool),
		versioningGroups:  make(map[string]map[string]bool),
	}

	for i, entry := range entries {
		if entry.Name == "" {
			return nil, &MalformedManifestError{Reason: fmt.Sprintf("entry %d has empty name", i)}
		}
		if _, dup := g.byName[entry.Name]; dup {
			return nil, &MalformedManifestError{Entry: entry.Name, Reason: "duplicate name"}
		}
		if entry.Build < 0 {
			return nil, &MalformedManifestError{Entry: entry.Name, Reason: fmt.Sprintf("negative build %d", entry.Build)}
		}
		if !entry.HasClient && !entry.HasServer {
			return nil, &MalformedManifestError{Entry: entry.Name, Reason: "no client or server distribution"}
		}

		r := &Release{
			name:              entry.Name,
			build:             entry.Build,
			ordinal:           i,
			hasClient:         entry.HasClient,
			hasServer:         entry.HasServer,
			sharedObfuscation: entry.SharedObfuscation,
			sharedVersioning:  entry.SharedVersioning,
			obfuscationGroup:  entry.ObfuscationGroup,
			versioningGroup:   entry.VersioningGroup,
			stable:            entry.Stable,
			clientDownload:    entry.ClientDownload,
			serverDownload:    entry.ServerDownload,
			libraries:         append([]string(nil), entry.Libraries...),
			javaVersion:       entry.JavaVersion,
		}
		g.ordered = append(g.ordered, r)
		g.byName[r.name] = r

		if r.obfuscationGroup != "" {
			addGroupMember(g.obfuscationGroups, r.obfuscationGroup, r.name)
		}
		if r.versioningGroup != "" {
			addGroupMember(g.versioningGroups, r.versioningGroup, r.name)
		}
	}

	sort.SliceStable(g.ordered, func(i, j int) bool {
		return g.ordered[i].build < g.ordered[j].build
	})

	return g, nil
}

func addGroupMember(groups map[string]map[string]bool, label, name string) {
	members, ok := groups[label]
	if !ok {
		members = make(map[string]bool)
		groups[label] = members
	}
	members[name] = true
}

// Len returns the number of releases.
func (g *Graph) Len() int { return len(g.ordered) }

// Releases returns the releases in graph order. The returned slice is a copy;
// the Release pointers remain owned by the graph.
func (g *Graph) Releases() []*Release {
	out := make([]*Release, len(g.ordered))
	copy(out, g.ordered)
	return out
}

// ByName looks up a release by its unique name. Returns nil if absent; a
// missing release is a soft condition, not an error.
func (g *Graph) ByName(name string) *Release {
	return g.byName[name]
}

// Compare orders two releases by build number, falling back to manifest
// order for equal builds. Returns a negative value if a precedes b, positive
// if b precedes a, and zero only when a and b are the same release.
func (g *Graph) Compare(a, b *Release) int {
	if a == b {
		return 0
	}
	if a.build != b.build {
		return a.build - b.build
	}
	return a.ordinal - b.ordinal
}

// SharesObfuscation reports whether two releases were declared to share an
// obfuscation group in the manifest. The relation is symmetric and reflexive.
func (g *Graph) SharesObfuscation(a, b *Release) bool {
	if a == b {
		return true
	}
	return sameGroup(g.obfuscationGroups, a.obfuscationGroup, a.name, b.name)
}

// SharesVersioning reports whether two releases were declared to share a
// versioning group in the manifest. The relation is symmetric and reflexive.
func (g *Graph) SharesVersioning(a, b *Release) bool {
	if a == b {
		return true
	}
	return sameGroup(g.versioningGroups, a.versioningGroup, a.name, b.name)
}

func sameGroup(groups map[string]map[string]bool, label, a, b string) bool {
	if label == "" {
		return false
	}
	members := groups[label]
	return members[a] && members[b]
}
