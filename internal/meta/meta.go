// Package meta consumes versioned remote metadata feeds.
//
// A feed is a JSON list of build records keyed by release name. Providers use
// feeds to discover which build of their data (mappings, signatures, nests,
// unpick constants) exists for a given release, and to resolve the Maven
// coordinate of the backing artifact to a download URL.
package meta

import (
	"fmt"
	"strings"
)

// BuildMeta is one record of a metadata feed.
type BuildMeta struct {
	// GameVersion is the release-name key this record belongs to.
	GameVersion string `json:"gameVersion"`

	// Build is the monotonically increasing build number within the key.
	// "Latest for key" selection picks the maximum build.
	Build int `json:"build"`

	// Maven is the package coordinate in "group:artifact:version" form.
	Maven string `json:"maven"`

	// Version is the artifact's own version string.
	Version string `json:"version"`

	// Stable marks builds published against full releases.
	Stable bool `json:"stable"`
}

// URL resolves the record's Maven coordinate against a repository base URL.
func (m BuildMeta) URL(baseURL, ext string) (string, error) {
	return MavenURL(baseURL, m.Maven, ext)
}

// MavenURL resolves a "group:artifact:version" coordinate to a repository
// URL: baseURL + group-with-dots-as-slashes + "/" + artifact + "/" + version
// + "/" + artifact + "-" + version + ext.
func MavenURL(baseURL, coordinate, ext string) (string, error) {
	parts := strings.Split(coordinate, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("malformed maven coordinate %q: want group:artifact:version", coordinate)
	}
	group, artifact, version := parts[0], parts[1], parts[2]
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL +
		strings.ReplaceAll(group, ".", "/") + "/" +
		artifact + "/" +
		version + "/" +
		artifact + "-" + version + ext, nil
}

// latest picks the maximum-build record among records matching key.
// Returns nil when no record matches; absence is a soft condition.
func latest(records []BuildMeta, key string) *BuildMeta {
	var best *BuildMeta
	for i := range records {
		if records[i].GameVersion != key {
			continue
		}
		if best == nil || records[i].Build > best.Build {
			best = &records[i]
		}
	}
	return best
}
