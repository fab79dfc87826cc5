package storage

import (
	"fmt"
	"path/filepath"

	"github.com/unearth-dev/unearth/internal/graph"
)

// Standard artifact keys. Steps consume and produce these; new keys are
// added by registering them at setup, never by touching engine logic.
const (
	KeyClientJar Key = "jar/client"
	KeyServerJar Key = "jar/server"
	KeyMergedJar Key = "jar/merged"

	KeyRemappedClientJar Key = "remapped/client"
	KeyRemappedServerJar Key = "remapped/server"
	KeyRemappedMergedJar Key = "remapped/merged"

	KeyDecompiledClientJar Key = "decompiled/client"
	KeyDecompiledServerJar Key = "decompiled/server"
	KeyDecompiledMergedJar Key = "decompiled/merged"

	KeyDependencies Key = "decompiled/dependencies"
)

// JarKey returns the raw-distribution key for a variant.
func JarKey(v graph.Variant) Key {
	switch v {
	case graph.VariantClient:
		return KeyClientJar
	case graph.VariantServer:
		return KeyServerJar
	default:
		return KeyMergedJar
	}
}

// RemappedKey returns the remapped-jar key for a variant.
func RemappedKey(v graph.Variant) Key {
	switch v {
	case graph.VariantClient:
		return KeyRemappedClientJar
	case graph.VariantServer:
		return KeyRemappedServerJar
	default:
		return KeyRemappedMergedJar
	}
}

// DecompiledKey returns the decompiled-jar key for a variant.
func DecompiledKey(v graph.Variant) Key {
	switch v {
	case graph.VariantClient:
		return KeyDecompiledClientJar
	case graph.VariantServer:
		return KeyDecompiledServerJar
	default:
		return KeyDecompiledMergedJar
	}
}

// RegisterDefaultLayout registers the standard key set.
//
// Raw jars are named by release only; everything downstream of remapping
// carries the mapping flavor in its name, so switching mapping strategies
// produces new artifacts instead of invalidating old ones.
func RegisterDefaultLayout(s *Store) error {
	register := func(key Key, spec KeySpec) error { return s.Register(key, spec) }

	for _, v := range graph.Variants {
		variant := v
		if err := register(JarKey(variant), KeySpec{
			Path: func(r *graph.Release, _ Flavors) string {
				return fmt.Sprintf("mojang/%s/%s.jar", r.PathSegment(), variant)
			},
			Validate: ValidateArchive,
		}); err != nil {
			return err
		}
		if err := register(RemappedKey(variant), KeySpec{
			Path: func(r *graph.Release, f Flavors) string {
				return fmt.Sprintf("remapped/%s-%s-%s.jar", r.PathSegment(), f.Mappings, variant)
			},
			Validate: ValidateArchive,
		}); err != nil {
			return err
		}
		if err := register(DecompiledKey(variant), KeySpec{
			Path: func(r *graph.Release, f Flavors) string {
				return fmt.Sprintf("decompiled/%s-%s-%s.jar", r.PathSegment(), f.Mappings, variant)
			},
			Validate: ValidateArchive,
		}); err != nil {
			return err
		}
	}

	return register(KeyDependencies, KeySpec{
		Path: func(r *graph.Release, f Flavors) string {
			return fmt.Sprintf("decompiled/%s-%s-dependencies.json", r.PathSegment(), f.Mappings)
		},
		Validate: ValidateJSON,
	})
}

// PatchPath returns the store path for a provider's materialized data file,
// named by release, provider, build number, and file kind, e.g.
// "1.14.4-sparrow-build.3.sigs". Provider artifacts carry their build number
// so a feed update produces a new file instead of overwriting the old one.
func (s *Store) PatchPath(r *graph.Release, v graph.Variant, provider string, build int, ext string) string {
	key := r.PathSegment()
	if v != graph.VariantMerged {
		key = key + "-" + string(v)
	}
	return filepath.Join(s.root, "patches", fmt.Sprintf("%s-%s-build.%d%s", key, provider, build, ext))
}
