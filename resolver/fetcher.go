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

// Package resolver resolves a version range or git reference of a GitHub
// repository to a release asset, a container image layer or a workflow
// artifact, and extracts the files matching a pattern from it.
package resolver

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/go-logr/logr"

	"github.com/fluxcd/artifact-fetcher/github"
	"github.com/fluxcd/artifact-fetcher/oci"
	"github.com/fluxcd/artifact-fetcher/storage"
	"github.com/fluxcd/artifact-fetcher/unzip"
)

// Sources of a Result.
const (
	SourceRelease   = "release"
	SourceContainer = "container"
	SourceArtifact  = "artifact"
)

// Platform is the subset of the GitHub API used to locate build outputs.
type Platform interface {
	ListReleases(ctx context.Context) ([]github.Release, error)
	DownloadAsset(ctx context.Context, asset github.Asset) (io.ReadCloser, error)
	ListWorkflowRuns(ctx context.Context, sha string) ([]github.WorkflowRun, error)
	ListRunArtifacts(ctx context.Context, runID int64) ([]github.Artifact, error)
	ResolveBranch(ctx context.Context, branch string) (string, error)
	GetCommit(ctx context.Context, ref string) (*github.Commit, error)
}

// Registry reads the first layer of a container image.
type Registry interface {
	FirstLayer(ctx context.Context, repository, tag string) (*oci.Layer, error)
}

// Writer stores extracted files.
type Writer interface {
	AtomicWriteFile(name string, r io.Reader, mode os.FileMode) (*storage.File, error)
}

// SourceFunc returns a ranged byte source for the file at url.
type SourceFunc func(url string) unzip.Source

// Options configures a Fetcher.
type Options struct {
	// Owner of the repository, also the namespace of the container package.
	Owner string
	// File matches the names of the files to extract.
	File *regexp.Regexp
	// Target is a version range or a git reference.
	Target string
	// Prereleases allows pre-release versions to satisfy Target.
	Prereleases bool
	// ArtifactName is the workflow artifact to read when no release
	// satisfies Target. When empty, only releases are considered.
	ArtifactName string
	// ContainerPackage is the container image to read when no asset of the
	// release matches File.
	ContainerPackage string
	// FailOnMissingTarget makes Run fail when there is nothing to download.
	FailOnMissingTarget bool
	// WaitForExactTarget polls until the workflow runs at the target commit
	// complete instead of walking to parent commits.
	WaitForExactTarget bool
	// RunID is the workflow run of the caller, which is never considered.
	RunID int64
	// PollInterval is the delay between polls for run completion.
	PollInterval time.Duration
	// MaxPolls limits the number of polls, 0 means unlimited.
	MaxPolls int
	// WaitTimeout limits the time spent polling, 0 means unlimited.
	WaitTimeout time.Duration
	// MaxParentDepth limits the number of parent commits visited, 0 means
	// unlimited.
	MaxParentDepth int
}

// Result describes the extracted files.
type Result struct {
	// Name is the name of the reported file in the release or archive.
	Name string
	// Path is the local path of the reported file.
	Path string
	// Files are the local paths of all extracted files.
	Files []string
	// Source is one of SourceRelease, SourceContainer or SourceArtifact.
	Source string
	// Ref is the release tag or the commit SHA the files were taken from.
	Ref string
}

// Fetcher resolves Options.Target and extracts the matching files.
type Fetcher struct {
	Options

	Platform Platform
	Registry Registry
	Sources  SourceFunc
	Storage  Writer
	Log      logr.Logger
}

// Fetch resolves the target to a release, or else to a commit, and extracts
// the matching files from the release assets, its container image or the
// workflow artifact at the commit.
func (f *Fetcher) Fetch(ctx context.Context) (*Result, error) {
	if f.File == nil {
		return nil, fmt.Errorf("file pattern must be set")
	}

	releases, err := f.Platform.ListReleases(ctx)
	if err != nil {
		return nil, err
	}

	if release := ResolveRelease(f.Target, releases, f.Prereleases); release != nil {
		f.Log.Info("resolved release", "target", f.Target, "release", release.Tag)
		e := &ReleaseExtractor{
			Platform:         f.Platform,
			Registry:         f.Registry,
			Storage:          f.Storage,
			File:             f.File,
			Owner:            f.Owner,
			ContainerPackage: f.ContainerPackage,
			Log:              f.Log,
		}
		return e.Extract(ctx, release)
	}

	if f.ArtifactName == "" {
		return nil, fmt.Errorf("%w: no release satisfies %q and no artifact name is set", ErrNothingFound, f.Target)
	}

	e := &GitRefExtractor{
		Platform:       f.Platform,
		Sources:        f.Sources,
		Storage:        f.Storage,
		File:           f.File,
		ArtifactName:   f.ArtifactName,
		RunID:          f.RunID,
		Wait:           f.WaitForExactTarget,
		PollInterval:   f.PollInterval,
		MaxPolls:       f.MaxPolls,
		WaitTimeout:    f.WaitTimeout,
		MaxParentDepth: f.MaxParentDepth,
		Log:            f.Log,
	}
	return e.Extract(ctx, f.Target)
}

// Run calls Fetch. When there is nothing to download and
// FailOnMissingTarget is not set, it returns an empty Result instead of the
// error.
func (f *Fetcher) Run(ctx context.Context) (*Result, error) {
	res, err := f.Fetch(ctx)
	if err != nil {
		if IsSoftNotFound(err) && !f.FailOnMissingTarget {
			f.Log.Info("nothing to download", "reason", err.Error())
			return &Result{}, nil
		}
		return nil, err
	}
	return res, nil
}
