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

package github

import "time"

// Status of a completed workflow run.
const StatusCompleted = "completed"

// Release is a published release of a repository.
type Release struct {
	ID         int64
	Tag        string
	Draft      bool
	Prerelease bool
	Assets     []Asset
}

// Asset is a file attached to a release.
type Asset struct {
	ID          int64
	Name        string
	DownloadURL string
	Size        int64
}

// WorkflowRun is one execution of a workflow at a commit.
type WorkflowRun struct {
	ID         int64
	HeadSHA    string
	RunAttempt int
	Status     string
}

// Completed reports whether the run has finished.
func (r WorkflowRun) Completed() bool {
	return r.Status == StatusCompleted
}

// Artifact is a named zip archive uploaded by a workflow run.
type Artifact struct {
	ID          int64
	Name        string
	DownloadURL string
	Size        int64
	UpdatedAt   time.Time
	Expired     bool
}

// Commit is a commit and the SHAs of its parents, first parent first.
type Commit struct {
	SHA     string
	Parents []string
}
