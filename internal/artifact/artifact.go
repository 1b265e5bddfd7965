// Package artifact locates and selects the installable artifact the
// cluster bootstrap will install.
package artifact

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Policy names an ordering used to pick one artifact out of many.
type Policy string

const (
	// PolicyLexical picks the lexically greatest filename. This matches
	// the historical launcher behavior but misorders multi-digit version
	// segments: "pkg-9.0.whl" sorts after "pkg-10.0.whl".
	PolicyLexical Policy = "lexical"

	// PolicyVersion picks the greatest semantic version parsed from the
	// version segment of each filename.
	PolicyVersion Policy = "version"
)

// ParsePolicy validates a configured policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyLexical, PolicyVersion:
		return p, nil
	}
	return "", fmt.Errorf("unknown artifact selection policy %q", s)
}

// List returns the names of regular files in dir whose names end with
// suffix. Directories and other non-regular entries are skipped even when
// their names match.
func List(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan artifact dir %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if strings.HasSuffix(entry.Name(), suffix) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Select picks the artifact to install from names according to policy.
// Under PolicyVersion, names lacking a parseable version segment make the
// whole listing fall back to lexical order so selection still succeeds.
func Select(names []string, policy Policy) (string, error) {
	if len(names) == 0 {
		return "", fmt.Errorf("no artifact to select")
	}
	if policy == PolicyVersion {
		if name, ok := VersionCandidate(names); ok {
			return name, nil
		}
	}
	return selectLexical(names), nil
}

func selectLexical(names []string) string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	return sorted[len(sorted)-1]
}

// VersionCandidate returns the name carrying the greatest version segment,
// or ok=false when any name lacks one. Equal versions tie-break lexically
// so selection stays deterministic.
func VersionCandidate(names []string) (string, bool) {
	var best string
	var bestVer *semver.Version
	for _, name := range names {
		v, err := versionOf(name)
		if err != nil {
			return "", false
		}
		if bestVer == nil || v.GreaterThan(bestVer) || (v.Equal(bestVer) && name > best) {
			best, bestVer = name, v
		}
	}
	return best, bestVer != nil
}

// versionOf parses the version segment of a wheel-style filename,
// "dist-version[-tags].ext". Wheel distribution names never contain
// hyphens, so the segment after the first hyphen is the version.
func versionOf(name string) (*semver.Version, error) {
	base := name
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	_, rest, found := strings.Cut(base, "-")
	if !found {
		return nil, fmt.Errorf("no version segment in %q", name)
	}
	ver, _, _ := strings.Cut(rest, "-")
	v, err := semver.NewVersion(ver)
	if err != nil {
		return nil, fmt.Errorf("parse version %q of %q: %w", ver, name, err)
	}
	return v, nil
}
