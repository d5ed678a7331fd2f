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

package resolver

import "errors"

var (
	// ErrNothingFound is returned when there is nothing to download: no
	// release satisfies the target and there is no fallback, the target
	// cannot be resolved, or no workflow run or artifact exists for it.
	ErrNothingFound = errors.New("nothing found")

	// ErrFileNotFound is returned when a release or artifact was found but
	// none of its files match.
	ErrFileNotFound = errors.New("no matching file found")

	// ErrNoParentCommit is returned when the walk over parent commits
	// reaches the root of the history.
	ErrNoParentCommit = errors.New("no parent commit")

	// ErrMaxDepthExceeded is returned when the walk over parent commits
	// visits more commits than allowed.
	ErrMaxDepthExceeded = errors.New("maximum parent commit depth exceeded")

	errRunsIncomplete = errors.New("workflow runs are not complete")
)

// IsSoftNotFound reports whether err only means that there was nothing to
// download. Such errors are not failures unless the caller asks for it.
func IsSoftNotFound(err error) bool {
	return errors.Is(err, ErrNothingFound)
}
