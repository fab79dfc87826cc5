package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(name string, build int) ManifestEntry {
	return ManifestEntry{Name: name, Build: build, HasClient: true, HasServer: true}
}

func TestBuild_OrdersByBuildNumber(t *testing.T) {
	g, err := Build([]ManifestEntry{
		entry("c", 7),
		entry("a", 5),
		entry("b", 6),
	})
	require.NoError(t, err)
	require.Equal(t, 3, g.Len())

	names := make([]string, 0, g.Len())
	for _, r := range g.Releases() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestBuild_TiesBrokenByManifestOrder(t *testing.T) {
	g, err := Build([]ManifestEntry{
		entry("first", 3),
		entry("second", 3),
	})
	require.NoError(t, err)

	releases := g.Releases()
	assert.Equal(t, "first", releases[0].Name())
	assert.Equal(t, "second", releases[1].Name())

	// Strict total order: distinct releases never compare equal.
	assert.Negative(t, g.Compare(releases[0], releases[1]))
	assert.Positive(t, g.Compare(releases[1], releases[0]))
	assert.Zero(t, g.Compare(releases[0], releases[0]))
}

func TestBuild_CompareConsistentWithBuildNumbers(t *testing.T) {
	g, err := Build([]ManifestEntry{
		entry("r5", 5),
		entry("r7", 7),
	})
	require.NoError(t, err)

	r5 := g.ByName("r5")
	r7 := g.ByName("r7")
	require.NotNil(t, r5)
	require.NotNil(t, r7)
	assert.Negative(t, g.Compare(r5, r7))
}

func TestBuild_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		entries []ManifestEntry
	}{
		{"empty manifest", nil},
		{"empty name", []ManifestEntry{entry("", 1)}},
		{"duplicate name", []ManifestEntry{entry("a", 1), entry("a", 2)}},
		{"negative build", []ManifestEntry{entry("a", -1)}},
		{"no distributions", []ManifestEntry{{Name: "a", Build: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.entries)
			var malformed *MalformedManifestError
			require.ErrorAs(t, err, &malformed)
		})
	}
}

func TestByName_MissingIsNil(t *testing.T) {
	g, err := Build([]ManifestEntry{entry("a", 1)})
	require.NoError(t, err)
	assert.Nil(t, g.ByName("nope"))
}

func TestSharesObfuscation_GroupMembership(t *testing.T) {
	a := entry("a", 1)
	a.ObfuscationGroup = "g1"
	b := entry("b", 2)
	b.ObfuscationGroup = "g1"
	c := entry("c", 3)
	c.ObfuscationGroup = "g2"
	d := entry("d", 4) // no group

	g, err := Build([]ManifestEntry{a, b, c, d})
	require.NoError(t, err)

	ra, rb, rc, rd := g.ByName("a"), g.ByName("b"), g.ByName("c"), g.ByName("d")

	assert.True(t, g.SharesObfuscation(ra, rb))
	assert.True(t, g.SharesObfuscation(rb, ra), "relation must be symmetric")
	assert.False(t, g.SharesObfuscation(ra, rc))
	assert.False(t, g.SharesObfuscation(ra, rd))
	assert.True(t, g.SharesObfuscation(rd, rd), "relation must be reflexive")
}

func TestSharesVersioning_GroupMembership(t *testing.T) {
	a := entry("a", 1)
	a.VersioningGroup = "v1"
	b := entry("b", 2)
	b.VersioningGroup = "v1"

	g, err := Build([]ManifestEntry{a, b})
	require.NoError(t, err)

	assert.True(t, g.SharesVersioning(g.ByName("a"), g.ByName("b")))
}

func TestEffectiveVariant_MergedSubstitution(t *testing.T) {
	tests := []struct {
		name              string
		sharedVersioning  bool
		sharedObfuscation bool
		want              Variant
	}{
		{"separate versioning, separate obfuscation", true, false, VariantClient},
		{"shared obfuscation forces merged", true, true, VariantMerged},
		{"no shared versioning forces merged", false, false, VariantMerged},
		{"both shared forces merged", false, true, VariantMerged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := entry("r", 1)
			e.SharedVersioning = tt.sharedVersioning
			e.SharedObfuscation = tt.sharedObfuscation
			g, err := Build([]ManifestEntry{e})
			require.NoError(t, err)
			assert.Equal(t, tt.want, g.ByName("r").EffectiveVariant(VariantClient))
		})
	}
}

func TestHasVariant(t *testing.T) {
	e := ManifestEntry{Name: "r", Build: 1, HasClient: true}
	g, err := Build([]ManifestEntry{e})
	require.NoError(t, err)

	r := g.ByName("r")
	assert.True(t, r.HasVariant(VariantClient))
	assert.False(t, r.HasVariant(VariantServer))
	assert.True(t, r.HasVariant(VariantMerged), "single-sided release is its own merged artifact")
}
