/*
Copyright 2022 The Flux authors

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

package masktoken

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	. "github.com/onsi/gomega"
)

func Test_MaskTokenFromString(t *testing.T) {
	tests := []struct {
		name           string
		token          string
		expectErr      bool
		originalErrStr string
		expectedErrStr string
	}{
		{
			name:           "no token",
			token:          "8h0387hdyehbwwa45",
			originalErrStr: "cannot fetch release",
			expectedErrStr: "cannot fetch release",
		},
		{
			name:           "empty token",
			token:          "",
			originalErrStr: "cannot fetch release",
			expectedErrStr: "cannot fetch release",
		},
		{
			name:           "exact token",
			token:          "8h0387hdyehbwwa45",
			originalErrStr: "cannot fetch release with token 8h0387hdyehbwwa45",
			expectedErrStr: "cannot fetch release with token *****",
		},
		{
			name:           "non-exact token",
			token:          "8h0387hdyehbwwa45",
			originalErrStr: `cannot fetch release with token 8h0387hdyehbwwa45\\n`,
			expectedErrStr: `cannot fetch release with token *****\\n`,
		},
		{
			name:           "extra text in front token",
			token:          "8h0387hdyehbwwa45",
			originalErrStr: `cannot fetch release with token metoo8h0387hdyehbwwa45\\n`,
			expectedErrStr: `cannot fetch release with token metoo*****\\n`,
		},
		{
			name:           "extra text in front token",
			token:          "8h0387hdyehbwwa45踙",
			originalErrStr: `cannot fetch release with token metoo8h0387hdyehbwwa45踙\\n`,
			expectedErrStr: `cannot fetch release with token metoo*****\\n`,
		},
		{
			name:           "return error on invalid UTF-8 string",
			token:          "\x18\xd0\xfa\xab\xb2\x93\xbb;\xc0l\xf4\xdc",
			originalErrStr: `cannot fetch release with token \x18\xd0\xfa\xab\xb2\x93\xbb;\xc0l\xf4\xdc\\n`,
			expectedErrStr: ``,
			expectErr:      true,
		},
		{
			name:           "unescaped token",
			token:          "8h0387hdyehbwwa45\\",
			originalErrStr: `cannot fetch release with token metoo8h0387hdyehbwwa45\\\n`,
			expectedErrStr: `cannot fetch release with token metoo*****n`,
		},
		{
			name:           "invalid chars",
			token:          "8h0387hdyehbwwa45(?!\\/)",
			originalErrStr: `cannot fetch release`,
			expectedErrStr: `cannot fetch release`,
		},
	}

	for _, tt := range tests {
		returnedStr, err := MaskTokenFromString(tt.originalErrStr, tt.token)
		if tt.expectErr && err == nil {
			t.Fatalf("expected error for token: %s", tt.token)
		}

		if !tt.expectErr && err != nil {
			t.Fatalf("returned unexpected error: %s", err)
		}

		if !strings.Contains(returnedStr, tt.expectedErrStr) {
			t.Errorf("expected returned string '%s' to contain '%s'",
				returnedStr, tt.expectedErrStr)
		}
	}

}

func Test_Mask(t *testing.T) {
	g := NewWithT(t)

	msg := "GET https://api.github.com/repos/fluxcd/flux2?token=ghp_abc123: 401 for user:p4ss"
	g.Expect(Mask(msg)).To(Equal(msg))
	g.Expect(Mask(msg, "", "ghp_abc123", "user:p4ss")).To(Equal(
		"GET https://api.github.com/repos/fluxcd/flux2?token=*****: 401 for *****"))

	invalid := "\x18\xd0\xfa"
	g.Expect(Mask("token "+invalid, invalid)).To(Equal("token *****"))
}

var errUnauthorized = errors.New("unauthorized")

func Test_Error(t *testing.T) {
	g := NewWithT(t)

	g.Expect(Error(nil, "s3cret")).To(BeNil())

	err := Error(fmt.Errorf("login with s3cret failed: %w", errUnauthorized), "s3cret")
	g.Expect(err).To(MatchError("login with ***** failed: unauthorized"))
	g.Expect(errors.Is(err, errUnauthorized)).To(BeTrue())
}
