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
	"testing"

	. "github.com/onsi/gomega"

	"github.com/Masterminds/semver/v3"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		version string
		err     bool
	}{
		{"v1.2.3", false},
		{"v2025.07.03", false},
		{"v1.0", true},
		{"v1", true},
		{"v1.2.beta", true},
		{"v1.2-5", true},
		{"v1.2-beta5", true},
		{"\nv1.2", true},
		{"v1.2.0-x.Y.0+metadata", false},
		{"v1.2.0-x.Y.0+metadata-width-hypen", false},
		{"v1.2.3-rc1-with-hypen", false},
		{"v1.2.3.4", true},
		{"main", true},
	}

	for _, tc := range tests {
		g := NewWithT(t)
		_, err := ParseVersion(tc.version)
		if tc.err {
			g.Expect(err).To(HaveOccurred(), "version: %s", tc.version)
		} else {
			g.Expect(err).NotTo(HaveOccurred(), "version: %s", tc.version)
		}
	}
}

func TestCompareBuild(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.1", -1},
		{"2.0.0", "2.0.0-rc.1", 1},
		{"1.0.0", "1.0.0", 0},
		{"v1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.0+1", -1},
		{"1.0.0+2", "1.0.0+10", -1},
		{"1.0.0+1", "1.0.0+alpha", -1},
		{"1.0.0+beta", "1.0.0+alpha", 1},
		{"1.0.0+build.1", "1.0.0+build.1.1", -1},
		{"1.0.0-rc.1+b", "1.0.0-rc.2+a", -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			g := NewWithT(t)
			a := semver.MustParse(tt.a)
			b := semver.MustParse(tt.b)
			g.Expect(CompareBuild(a, b)).To(Equal(tt.want))
			g.Expect(CompareBuild(b, a)).To(Equal(-tt.want))
		})
	}
}

func TestLatest(t *testing.T) {
	tests := []struct {
		name              string
		constraint        string
		includePrerelease bool
		versions          []string
		wantIdx           int
		wantOK            bool
	}{
		{
			name:       "caret range excludes pre-releases",
			constraint: "^1.0.0",
			versions:   []string{"1.0.0", "1.2.0", "2.0.0-rc.1"},
			wantIdx:    1,
			wantOK:     true,
		},
		{
			name:              "pre-release range with pre-releases enabled",
			constraint:        ">=2.0.0-0",
			includePrerelease: true,
			versions:          []string{"1.0.0", "1.2.0", "2.0.0-rc.1"},
			wantIdx:           2,
			wantOK:            true,
		},
		{
			name:       "pre-releases stay excluded unless asked for",
			constraint: ">=1.0.0",
			versions:   []string{"1.0.0", "1.2.0", "2.0.0-rc.1"},
			wantIdx:    1,
			wantOK:     true,
		},
		{
			name:              "pre-releases included when asked for",
			constraint:        ">=1.0.0",
			includePrerelease: true,
			versions:          []string{"1.0.0", "1.2.0", "2.0.0-rc.1"},
			wantIdx:           2,
			wantOK:            true,
		},
		{
			name:       "build metadata breaks ties",
			constraint: "1.2.x",
			versions:   []string{"v1.2.0+1", "v1.2.0+3", "v1.2.0+2", "v1.1.9"},
			wantIdx:    1,
			wantOK:     true,
		},
		{
			name:       "first listed wins on full tie",
			constraint: ">=1.0.0",
			versions:   []string{"something-invalid", "v1.2.0", "1.2.0"},
			wantIdx:    1,
			wantOK:     true,
		},
		{
			name:       "nothing satisfies",
			constraint: ">=3.0.0",
			versions:   []string{"1.0.0", "2.0.0"},
			wantIdx:    -1,
			wantOK:     false,
		},
		{
			name:       "empty list",
			constraint: "*",
			wantIdx:    -1,
			wantOK:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)

			c, err := NewConstraint(tt.constraint, tt.includePrerelease)
			g.Expect(err).NotTo(HaveOccurred())

			idx, ok := Latest(c, tt.versions)
			g.Expect(ok).To(Equal(tt.wantOK))
			g.Expect(idx).To(Equal(tt.wantIdx))
		})
	}
}

func TestNewConstraint(t *testing.T) {
	g := NewWithT(t)

	_, err := NewConstraint("main", false)
	g.Expect(err).To(HaveOccurred())

	c, err := NewConstraint("~1.2", true)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(c.IncludePrerelease).To(BeTrue())
}
