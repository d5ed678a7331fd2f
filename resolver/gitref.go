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
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/fluxcd/artifact-fetcher/github"
	"github.com/fluxcd/artifact-fetcher/unzip"
)

const (
	// DefaultPollInterval is the delay between polls for run completion.
	DefaultPollInterval = 5 * time.Second

	// maxConcurrentWrites is the number of archive entries extracted at
	// the same time.
	maxConcurrentWrites = 4
)

// GitRefExtractor extracts files from the workflow artifact built at a git
// reference.
type GitRefExtractor struct {
	Platform     Platform
	Sources      SourceFunc
	Storage      Writer
	File         *regexp.Regexp
	ArtifactName string
	RunID        int64

	// Wait polls until the runs at the commit complete. Otherwise the
	// first parent is tried while the runs at a commit are incomplete or
	// absent.
	Wait           bool
	PollInterval   time.Duration
	MaxPolls       int
	WaitTimeout    time.Duration
	MaxParentDepth int

	Log logr.Logger
}

// Extract resolves ref to a commit, locates the workflow artifact built at
// it and writes every entry of the artifact that matches. The last match in
// archive order is reported.
func (e *GitRefExtractor) Extract(ctx context.Context, ref string) (*Result, error) {
	sha, err := e.resolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}

	sha, runs, err := e.locateRuns(ctx, sha)
	if err != nil {
		return nil, err
	}

	artifacts, err := ArtifactLocator{Platform: e.Platform}.Locate(ctx, runs, e.ArtifactName)
	if err != nil {
		return nil, err
	}
	return e.extractArtifact(ctx, sha, artifacts[0])
}

// resolveRef returns the commit SHA of ref. Full SHAs are returned as is,
// branches are resolved to their head and anything else, such as tags and
// short SHAs, through the commit API.
func (e *GitRefExtractor) resolveRef(ctx context.Context, ref string) (string, error) {
	if plumbing.IsHash(ref) {
		return ref, nil
	}

	name := plumbing.ReferenceName(ref)
	switch {
	case name.IsBranch():
		sha, err := e.Platform.ResolveBranch(ctx, name.Short())
		return sha, notFound(err)
	case name.IsTag():
		ref = name.Short()
	default:
		sha, err := e.Platform.ResolveBranch(ctx, ref)
		if err == nil {
			return sha, nil
		}
		if !errors.Is(err, github.ErrNotFound) {
			return "", err
		}
	}

	commit, err := e.Platform.GetCommit(ctx, ref)
	if err != nil {
		return "", notFound(err)
	}
	e.Log.V(1).Info("resolved reference", "ref", ref, "sha", commit.SHA)
	return commit.SHA, nil
}

// locateRuns returns the commit whose runs are complete and those runs.
func (e *GitRefExtractor) locateRuns(ctx context.Context, sha string) (string, []github.WorkflowRun, error) {
	locator := RunLocator{Platform: e.Platform, RunID: e.RunID}
	if e.Wait {
		runs, err := e.waitForRuns(ctx, locator, sha)
		return sha, runs, err
	}

	for depth := 0; ; depth++ {
		runs, err := locator.Locate(ctx, sha)
		switch {
		case err == nil && Ready(runs):
			return sha, runs, nil
		case err != nil && !IsSoftNotFound(err):
			return "", nil, err
		}

		if e.MaxParentDepth > 0 && depth >= e.MaxParentDepth {
			return "", nil, fmt.Errorf("%w: no complete workflow runs within %d parents", ErrMaxDepthExceeded, depth)
		}

		commit, err := e.Platform.GetCommit(ctx, sha)
		if err != nil {
			return "", nil, err
		}
		if len(commit.Parents) == 0 {
			return "", nil, fmt.Errorf("%w: %s has no parent", ErrNoParentCommit, sha)
		}
		e.Log.Info("workflows not complete, trying parent", "sha", sha, "parent", commit.Parents[0])
		sha = commit.Parents[0]
	}
}

// waitForRuns polls the runs at sha until all of them complete.
func (e *GitRefExtractor) waitForRuns(ctx context.Context, locator RunLocator, sha string) ([]github.WorkflowRun, error) {
	if e.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.WaitTimeout)
		defer cancel()
	}

	interval := e.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	var b backoff.BackOff = backoff.NewConstantBackOff(interval)
	if e.MaxPolls > 0 {
		b = backoff.WithMaxRetries(b, uint64(e.MaxPolls))
	}

	var runs []github.WorkflowRun
	operation := func() error {
		r, err := locator.Locate(ctx, sha)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !Ready(r) {
			return errRunsIncomplete
		}
		runs = r
		return nil
	}
	notify := func(_ error, d time.Duration) {
		e.Log.Info("waiting for workflows to complete", "sha", sha, "retryIn", d.String())
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		if errors.Is(err, errRunsIncomplete) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("workflows at %s did not complete: %w", sha, err)
		}
		return nil, err
	}
	return runs, nil
}

// extractArtifact writes the matching entries of the artifact zip.
func (e *GitRefExtractor) extractArtifact(ctx context.Context, sha string, artifact github.Artifact) (*Result, error) {
	zr, err := unzip.Open(ctx, e.Sources(artifact.DownloadURL))
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact %s: %w", artifact.Name, err)
	}

	var matches []*unzip.File
	for _, f := range zr.File {
		if f.IsDir() || !e.File.MatchString(f.Name) {
			continue
		}
		matches = append(matches, f)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no file of artifact %s at %s matches %s", ErrFileNotFound, artifact.Name, sha, e.File)
	}

	paths := make([]string, len(matches))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentWrites)
	for i, zf := range matches {
		eg.Go(func() error {
			rc, err := zf.Open(egCtx)
			if err != nil {
				return err
			}
			defer rc.Close()

			f, err := e.Storage.AtomicWriteFile(zf.Name, rc, fileMode(zf.Mode()))
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", zf.Name, err)
			}
			e.Log.Info("downloaded file", "file", zf.Name, "sha", sha, "artifact", artifact.Name, "digest", f.Digest.String())
			paths[i] = f.Path
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		Name:   matches[len(matches)-1].Name,
		Path:   paths[len(paths)-1],
		Files:  paths,
		Source: SourceArtifact,
		Ref:    sha,
	}, nil
}

// notFound turns a 404 from the API into ErrNothingFound.
func notFound(err error) error {
	if errors.Is(err, github.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNothingFound, err)
	}
	return err
}

// fileMode returns the permission bits of m, or 0644 if there are none.
func fileMode(m os.FileMode) os.FileMode {
	if p := m.Perm(); p != 0 {
		return p
	}
	return 0o644
}
