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

import (
	"context"

	"github.com/google/go-github/v82/github"
)

// ListWorkflowRuns returns all workflow runs at the commit sha.
func (c *Client) ListWorkflowRuns(ctx context.Context, sha string) ([]WorkflowRun, error) {
	var runs []WorkflowRun
	opts := &github.ListWorkflowRunsOptions{
		HeadSHA:     sha,
		ListOptions: c.listOptions(),
	}
	for {
		page, resp, err := c.gh.Actions.ListRepositoryWorkflowRuns(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, wrapErr(err, "failed to list workflow runs at %s", sha)
		}
		for _, r := range page.WorkflowRuns {
			runs = append(runs, WorkflowRun{
				ID:         r.GetID(),
				HeadSHA:    r.GetHeadSHA(),
				RunAttempt: r.GetRunAttempt(),
				Status:     r.GetStatus(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	c.log.V(1).Info("listed workflow runs", "sha", sha, "count", len(runs))
	return runs, nil
}

// ListRunArtifacts returns all artifacts uploaded by the workflow run.
func (c *Client) ListRunArtifacts(ctx context.Context, runID int64) ([]Artifact, error) {
	var artifacts []Artifact
	opts := c.listOptions()
	for {
		page, resp, err := c.gh.Actions.ListWorkflowRunArtifacts(ctx, c.owner, c.repo, runID, &opts)
		if err != nil {
			return nil, wrapErr(err, "failed to list artifacts of run %d", runID)
		}
		for _, a := range page.Artifacts {
			artifacts = append(artifacts, Artifact{
				ID:          a.GetID(),
				Name:        a.GetName(),
				DownloadURL: a.GetArchiveDownloadURL(),
				Size:        a.GetSizeInBytes(),
				UpdatedAt:   a.GetUpdatedAt().Time,
				Expired:     a.GetExpired(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	c.log.V(1).Info("listed artifacts", "run", runID, "count", len(artifacts))
	return artifacts, nil
}
