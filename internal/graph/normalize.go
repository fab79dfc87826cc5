package graph

import (
	"fmt"
	"regexp"
	"strings"
)

// versionTokenPattern matches the first version-looking token in raw user
// input, e.g. "1.21.4" out of "please do 1.21.4 thanks" or "24w14a".
var versionTokenPattern = regexp.MustCompile(`([0-9]+(?:[._-][0-9A-Za-z]+)*)`)

// NormalizeVersionInput extracts a release name from raw user input.
//
// The first version-looking token is taken and underscores are rewritten to
// dots, so "1_21_4" and " 1.21.4 " both normalize to "1.21.4". Returns an
// error if no token can be found.
func NormalizeVersionInput(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	match := versionTokenPattern.FindStringSubmatch(candidate)
	if match == nil {
		return "", fmt.Errorf("could not parse a release version from input: %q", raw)
	}
	return strings.ReplaceAll(match[1], "_", "."), nil
}

// SanitizePathSegment reduces a release name to characters safe in a
// filesystem path. Letters, digits, '.', '-' and '_' pass through; every
// other rune becomes '_'.
func SanitizePathSegment(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '.' || c == '-' || c == '_':
			b.WriteRune(c)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
