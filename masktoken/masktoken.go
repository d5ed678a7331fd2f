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

// Package masktoken redacts secrets from messages before they are logged or
// reported as a failure of the action.
package masktoken

import (
	"fmt"
	"regexp"
	"strings"
)

const mask = "*****"

// MaskTokenFromString redacts all matches for the given token from the provided string,
// replacing them with "*****".
// The token is expected to be a valid UTF-8 string.
func MaskTokenFromString(log string, token string) (string, error) {
	if token == "" {
		return log, nil
	}

	re, err := regexp.Compile(fmt.Sprintf("%s*", regexp.QuoteMeta(token)))
	if err != nil {
		return "", err
	}

	return re.ReplaceAllString(log, mask), nil
}

// Mask redacts every given token from s. Tokens that are not valid UTF-8
// are replaced literally.
func Mask(s string, tokens ...string) string {
	for _, token := range tokens {
		redacted, err := MaskTokenFromString(s, token)
		if err != nil {
			redacted = strings.ReplaceAll(s, token, mask)
		}
		s = redacted
	}
	return s
}

// Error returns err with the given tokens redacted from its message. The
// returned error unwraps to err, nil when err is nil.
func Error(err error, tokens ...string) error {
	if err == nil {
		return nil
	}
	return &maskedError{msg: Mask(err.Error(), tokens...), err: err}
}

type maskedError struct {
	msg string
	err error
}

func (e *maskedError) Error() string {
	return e.msg
}

func (e *maskedError) Unwrap() error {
	return e.err
}
