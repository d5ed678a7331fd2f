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
	"fmt"
	"io"
	"strings"

	"github.com/google/go-github/v82/github"
)

// ListReleases returns all releases of the repository, newest first as
// returned by the API.
func (c *Client) ListReleases(ctx context.Context) ([]Release, error) {
	var releases []Release
	opts := c.listOptions()
	for {
		page, resp, err := c.gh.Repositories.ListReleases(ctx, c.owner, c.repo, &opts)
		if err != nil {
			return nil, wrapErr(err, "failed to list releases of %s/%s", c.owner, c.repo)
		}
		for _, r := range page {
			release := Release{
				ID:         r.GetID(),
				Tag:        r.GetTagName(),
				Draft:      r.GetDraft(),
				Prerelease: r.GetPrerelease(),
			}
			for _, a := range r.Assets {
				release.Assets = append(release.Assets, Asset{
					ID:          a.GetID(),
					Name:        a.GetName(),
					DownloadURL: a.GetBrowserDownloadURL(),
					Size:        int64(a.GetSize()),
				})
			}
			releases = append(releases, release)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	c.log.V(1).Info("listed releases", "repository", c.owner+"/"+c.repo, "count", len(releases))
	return releases, nil
}

// DownloadAsset returns the contents of a release asset. The asset is
// fetched through the API, so assets of private repositories can be read
// with the configured token.
func (c *Client) DownloadAsset(ctx context.Context, asset Asset) (io.ReadCloser, error) {
	rc, redirectURL, err := c.gh.Repositories.DownloadReleaseAsset(ctx, c.owner, c.repo, asset.ID, c.httpClient)
	if err != nil {
		return nil, wrapErr(err, "failed to download asset %s", asset.Name)
	}
	if rc == nil {
		return nil, fmt.Errorf("failed to download asset %s: unexpected redirect to %s", asset.Name, redirectURL)
	}
	return rc, nil
}

// ResolveBranch returns the SHA of the head commit of branch. The branch may
// be given as a full reference name.
func (c *Client) ResolveBranch(ctx context.Context, branch string) (string, error) {
	branch = strings.TrimPrefix(branch, "refs/heads/")
	b, _, err := c.gh.Repositories.GetBranch(ctx, c.owner, c.repo, branch, 1)
	if err != nil {
		return "", wrapErr(err, "failed to resolve branch %s", branch)
	}
	sha := b.GetCommit().GetSHA()
	if sha == "" {
		return "", fmt.Errorf("branch %s has no head commit", branch)
	}
	return sha, nil
}

// GetCommit returns the commit ref resolves to. The ref can be a SHA, a
// short SHA, a branch or a tag.
func (c *Client) GetCommit(ctx context.Context, ref string) (*Commit, error) {
	rc, _, err := c.gh.Repositories.GetCommit(ctx, c.owner, c.repo, ref, &github.ListOptions{PerPage: 1})
	if err != nil {
		return nil, wrapErr(err, "failed to get commit %s", ref)
	}
	commit := &Commit{SHA: rc.GetSHA()}
	for _, p := range rc.Parents {
		commit.Parents = append(commit.Parents, p.GetSHA())
	}
	return commit, nil
}
