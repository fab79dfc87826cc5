package graph

// Variant identifies one of the interchangeable sub-artifacts of a release.
//
// Most releases ship a client and a server distribution; MERGED refers to the
// combined artifact produced by the merge step (or, for data providers, to
// data published against the combined artifact).
type Variant string

const (
	VariantClient Variant = "client"
	VariantServer Variant = "server"
	VariantMerged Variant = "merged"
)

// Variants lists all variants in canonical order.
var Variants = []Variant{VariantClient, VariantServer, VariantMerged}

// Valid reports whether v is one of the known variants.
func (v Variant) Valid() bool {
	switch v {
	case VariantClient, VariantServer, VariantMerged:
		return true
	}
	return false
}

// Download describes one upstream distribution file.
type Download struct {
	URL  string `json:"url" yaml:"url"`
	SHA1 string `json:"sha1" yaml:"sha1"`
}

// ManifestEntry is one raw release record from a manifest source.
//
// Entries are external input: they are validated during Build and converted
// into immutable Release values owned by the Graph.
type ManifestEntry struct {
	// Name is the release's unique identity (e.g. "1.14.4").
	Name string `json:"name" yaml:"name"`

	// Build is the monotonically comparable build indicator used for
	// ordering. Distinct releases may share a build number; ties are broken
	// by manifest order.
	Build int `json:"build" yaml:"build"`

	// HasClient/HasServer declare which per-variant distributions exist
	// upstream. A release with neither is malformed.
	HasClient bool `json:"has_client" yaml:"has_client"`
	HasServer bool `json:"has_server" yaml:"has_server"`

	// SharedObfuscation declares that the client and server distributions
	// of this release were obfuscated together, so data published against
	// the merged artifact applies to either variant.
	SharedObfuscation bool `json:"shared_obfuscation" yaml:"shared_obfuscation"`

	// SharedVersioning declares that the client and server distributions
	// carry the same version identifier upstream.
	SharedVersioning bool `json:"shared_versioning" yaml:"shared_versioning"`

	// ObfuscationGroup and VersioningGroup are manifest-declared grouping
	// labels. Two releases with the same non-empty group label are related
	// by the corresponding graph predicate. Empty means "its own group".
	ObfuscationGroup string `json:"obfuscation_group,omitempty" yaml:"obfuscation_group,omitempty"`
	VersioningGroup  string `json:"versioning_group,omitempty" yaml:"versioning_group,omitempty"`

	// Stable marks a full release (as opposed to a snapshot or pre-release).
	Stable bool `json:"stable" yaml:"stable"`

	// ClientDownload/ServerDownload locate the upstream distribution
	// files, when the manifest source knows them.
	ClientDownload *Download `json:"client_download,omitempty" yaml:"client_download,omitempty"`
	ServerDownload *Download `json:"server_download,omitempty" yaml:"server_download,omitempty"`

	// Libraries lists the release's runtime dependency coordinates in
	// "group:artifact:version" form.
	Libraries []string `json:"libraries,omitempty" yaml:"libraries,omitempty"`

	// JavaVersion is the language-runtime version the release targets.
	JavaVersion int `json:"java_version,omitempty" yaml:"java_version,omitempty"`
}

// Release is one versioned unit of the upstream artifact being processed.
//
// Releases are created once by Build and never mutated afterwards; the Graph
// owns all Release instances. Callers hold *Release purely as a handle.
type Release struct {
	name              string
	build             int
	ordinal           int // position in manifest order, tie-breaker for Compare
	hasClient         bool
	hasServer         bool
	sharedObfuscation bool
	sharedVersioning  bool
	obfuscationGroup  string
	versioningGroup   string
	stable            bool
	clientDownload    *Download
	serverDownload    *Download
	libraries         []string
	javaVersion       int
}

// Name returns the release's unique identity.
func (r *Release) Name() string { return r.name }

// Build returns the monotonically comparable build indicator.
func (r *Release) Build() int { return r.build }

// Stable reports whether this is a full release.
func (r *Release) Stable() bool { return r.stable }

// HasVariant reports whether the given variant exists for this release.
// MERGED is available whenever both client and server exist, or whenever the
// release shares obfuscation between the two (a single-sided release is its
// own merged artifact).
func (r *Release) HasVariant(v Variant) bool {
	switch v {
	case VariantClient:
		return r.hasClient
	case VariantServer:
		return r.hasServer
	case VariantMerged:
		return (r.hasClient && r.hasServer) || r.sharedObfuscation || !r.hasClient || !r.hasServer
	}
	return false
}

// SharedObfuscation reports whether the client and server distributions of
// this release were obfuscated together.
func (r *Release) SharedObfuscation() bool { return r.sharedObfuscation }

// SharedVersioning reports whether the client and server distributions carry
// the same upstream version identifier.
func (r *Release) SharedVersioning() bool { return r.sharedVersioning }

// EffectiveVariant applies the merged-substitution rule for optional data
// lookups: when a release does not version its variants separately, or when
// both variants share obfuscation, data published against the merged artifact
// is the authoritative source for either variant.
func (r *Release) EffectiveVariant(v Variant) Variant {
	if !r.sharedVersioning || r.sharedObfuscation {
		return VariantMerged
	}
	return v
}

// PathSegment returns the release name reduced to characters that are safe in
// a filesystem path. Letters, digits, '.', '-' and '_' pass through; anything
// else becomes '_'.
func (r *Release) PathSegment() string {
	return SanitizePathSegment(r.name)
}

// DownloadFor returns the upstream download for a per-variant distribution,
// or nil if the manifest source did not declare one. The merged variant is
// produced locally and never has an upstream download.
func (r *Release) DownloadFor(v Variant) *Download {
	switch v {
	case VariantClient:
		return r.clientDownload
	case VariantServer:
		return r.serverDownload
	}
	return nil
}

// Libraries returns the release's runtime dependency coordinates. The
// returned slice is a copy.
func (r *Release) Libraries() []string {
	out := make([]string, len(r.libraries))
	copy(out, r.libraries)
	return out
}

// JavaVersion returns the language-runtime version the release targets.
func (r *Release) JavaVersion() int { return r.javaVersion }
