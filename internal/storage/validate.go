package storage

import (
	"archive/zip"
	"encoding/json"
	"os"

	"github.com/unearth-dev/unearth/internal/fetch"
)

// ValidateNonEmpty accepts any file with at least one byte. This is the
// default validator for keys without a stronger check.
func ValidateNonEmpty(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.Size() > 0, nil
}

// ValidateArchive accepts readable zip archives containing at least one
// entry. An empty or truncated archive is invalid, not an error: the caller
// deletes it and re-produces.
func ValidateArchive(path string) (bool, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		// Unreadable counts as invalid, not as a hard failure.
		return false, nil
	}
	defer zr.Close()
	return len(zr.File) > 0, nil
}

// ValidateJSON accepts files containing well-formed JSON.
func ValidateJSON(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return json.Valid(data), nil
}

// ValidateChecksum builds a validator that accepts only files matching the
// given checksum. Used for downloaded artifacts whose digest the upstream
// manifest declares.
func ValidateChecksum(c fetch.Checksum) ValidateFunc {
	return func(path string) (bool, error) {
		return c.Matches(path)
	}
}
