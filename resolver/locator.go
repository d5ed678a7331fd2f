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

import (
	"context"
	"fmt"
	"slices"

	"github.com/fluxcd/artifact-fetcher/github"
)

// RunLocator finds the workflow runs at a commit.
type RunLocator struct {
	Platform Platform
	// RunID is the run of the caller, which is never returned.
	RunID int64
}

// Locate returns the workflow runs at sha, highest run attempt first, without
// the run of the caller. Runs with the same attempt keep the order of the
// API. It fails with ErrNothingFound when no run is left.
func (l RunLocator) Locate(ctx context.Context, sha string) ([]github.WorkflowRun, error) {
	all, err := l.Platform.ListWorkflowRuns(ctx, sha)
	if err != nil {
		return nil, err
	}

	runs := make([]github.WorkflowRun, 0, len(all))
	for _, r := range all {
		if l.RunID != 0 && r.ID == l.RunID {
			continue
		}
		runs = append(runs, r)
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no workflow runs at %s", ErrNothingFound, sha)
	}

	slices.SortStableFunc(runs, func(a, b github.WorkflowRun) int {
		return b.RunAttempt - a.RunAttempt
	})
	return runs, nil
}

// Ready reports whether every run has completed.
func Ready(runs []github.WorkflowRun) bool {
	for _, r := range runs {
		if !r.Completed() {
			return false
		}
	}
	return true
}

// ArtifactLocator finds the artifacts of workflow runs.
type ArtifactLocator struct {
	Platform Platform
}

// Locate returns the unexpired artifacts called name of all runs, in the
// order of runs. The first artifact is the one to use. It fails with
// ErrNothingFound when there is none.
func (l ArtifactLocator) Locate(ctx context.Context, runs []github.WorkflowRun, name string) ([]github.Artifact, error) {
	var artifacts []github.Artifact
	for _, r := range runs {
		all, err := l.Platform.ListRunArtifacts(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range all {
			if a.Name == name && !a.Expired {
				artifacts = append(artifacts, a)
			}
		}
	}
	if len(artifacts) == 0 {
		sha := ""
		if len(runs) > 0 {
			sha = runs[0].HeadSHA
		}
		return nil, fmt.Errorf("%w: no artifact %s at %s", ErrNothingFound, name, sha)
	}
	return artifacts, nil
}
