/*
Copyright 2026 The Flux authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package version

import (
	"cmp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ParseVersion parses a version string and returns a semver.Version object.
// The validation is looser than the official semver spec, allowing for
// a 'v' prefix and 0-prefixed numbers in the major, minor, and patch segments
// (e.g., v2025.02.03-rc.1 is considered valid).
func ParseVersion(v string) (*semver.Version, error) {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) != 3 {
		return nil, semver.ErrInvalidSemVer
	}

	return semver.NewVersion(v)
}

// NewConstraint parses the given range. When includePrerelease is set,
// pre-release versions can satisfy the range even when none of its
// comparators carries a pre-release.
func NewConstraint(r string, includePrerelease bool) (*semver.Constraints, error) {
	c, err := semver.NewConstraint(r)
	if err != nil {
		return nil, err
	}
	c.IncludePrerelease = includePrerelease
	return c, nil
}

// CompareBuild compares a to b like semver.Version.Compare, but breaks ties
// between otherwise equal versions using their build metadata. A version
// without build metadata sorts before one with metadata.
func CompareBuild(a, b *semver.Version) int {
	if c := a.Compare(b); c != 0 {
		return c
	}
	return compareBuildMetadata(a.Metadata(), b.Metadata())
}

// Latest returns the index of the highest version in vs that satisfies c,
// ordered with CompareBuild. Strings that do not parse as a version are
// skipped. When several entries compare equal the first one wins. The
// boolean is false if nothing satisfies c.
func Latest(c *semver.Constraints, vs []string) (int, bool) {
	var (
		best    *semver.Version
		bestIdx = -1
	)
	for i, v := range vs {
		pv, err := ParseVersion(v)
		if err != nil || (c != nil && !c.Check(pv)) {
			continue
		}
		if best == nil || CompareBuild(pv, best) > 0 {
			best, bestIdx = pv, i
		}
	}
	return bestIdx, bestIdx >= 0
}

func compareBuildMetadata(a, b string) int {
	as, bs := splitIdentifiers(a), splitIdentifiers(b)
	for i := 0; ; i++ {
		switch {
		case i >= len(as) && i >= len(bs):
			return 0
		case i >= len(bs):
			return 1
		case i >= len(as):
			return -1
		}
		if c := compareIdentifier(as[i], bs[i]); c != 0 {
			return c
		}
	}
}

func splitIdentifiers(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ".")
}

// compareIdentifier orders numeric identifiers numerically and before
// alphanumeric ones, which are ordered lexically.
func compareIdentifier(a, b string) int {
	an, aErr := strconv.ParseUint(a, 10, 64)
	bn, bErr := strconv.ParseUint(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		return cmp.Compare(an, bn)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
