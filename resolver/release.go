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
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"

	"github.com/go-logr/logr"

	"github.com/fluxcd/artifact-fetcher/github"
	"github.com/fluxcd/artifact-fetcher/oci"
	pkgtar "github.com/fluxcd/artifact-fetcher/tar"
	"github.com/fluxcd/artifact-fetcher/version"
)

// ResolveRelease returns the release to download for target, or nil when no
// release satisfies it. The highest release satisfying target as a version
// range is chosen, with build metadata breaking ties. A release tagged
// exactly target is only chosen outright when its tag is not a version or
// target is not a range. Draft releases are ignored.
func ResolveRelease(target string, releases []github.Release, includePrereleases bool) *github.Release {
	c, rangeErr := version.NewConstraint(target, includePrereleases)

	var candidates []*github.Release
	for i := range releases {
		if releases[i].Draft {
			continue
		}
		if releases[i].Tag == target {
			if _, err := version.ParseVersion(target); err != nil || rangeErr != nil {
				return &releases[i]
			}
		}
		candidates = append(candidates, &releases[i])
	}
	if rangeErr != nil {
		return nil
	}

	tags := make([]string, len(candidates))
	for i, r := range candidates {
		tags[i] = r.Tag
	}
	idx, ok := version.Latest(c, tags)
	if !ok {
		return nil
	}
	return candidates[idx]
}

// ReleaseExtractor extracts a file from a release. The assets are tried in
// order and the first match is written. When no asset matches, the first
// matching file of the first layer of the container image tagged like the
// release is written instead.
type ReleaseExtractor struct {
	Platform         Platform
	Registry         Registry
	Storage          Writer
	File             *regexp.Regexp
	Owner            string
	ContainerPackage string
	Log              logr.Logger
}

// Extract writes the first file of release that matches.
func (e *ReleaseExtractor) Extract(ctx context.Context, release *github.Release) (*Result, error) {
	for _, asset := range release.Assets {
		if !e.File.MatchString(asset.Name) {
			continue
		}
		return e.extractAsset(ctx, release, asset)
	}

	if e.ContainerPackage == "" || e.Registry == nil {
		return nil, fmt.Errorf("%w: no asset of release %s matches %s", ErrFileNotFound, release.Tag, e.File)
	}
	return e.extractLayer(ctx, release)
}

func (e *ReleaseExtractor) extractAsset(ctx context.Context, release *github.Release, asset github.Asset) (*Result, error) {
	rc, err := e.Platform.DownloadAsset(ctx, asset)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	f, err := e.Storage.AtomicWriteFile(asset.Name, rc, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", asset.Name, err)
	}
	e.Log.Info("downloaded file", "file", asset.Name, "release", release.Tag, "digest", f.Digest.String())
	return &Result{
		Name:   asset.Name,
		Path:   f.Path,
		Files:  []string{f.Path},
		Source: SourceRelease,
		Ref:    release.Tag,
	}, nil
}

func (e *ReleaseExtractor) extractLayer(ctx context.Context, release *github.Release) (*Result, error) {
	repository := path.Join(e.Owner, e.ContainerPackage)
	layer, err := e.Registry.FirstLayer(ctx, repository, release.Tag)
	if err != nil {
		if errors.Is(err, oci.ErrNotFound) || errors.Is(err, oci.ErrNoLayers) {
			return nil, fmt.Errorf("%w: no asset of release %s matches %s and %w",
				ErrFileNotFound, release.Tag, e.File, err)
		}
		return nil, err
	}
	e.Log.V(1).Info("reading container layer", "image", layer.Reference, "digest", layer.Digest.String(), "size", layer.Size)

	blob, err := layer.Open()
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	r, err := pkgtar.Decompress(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to read layer %s: %w", layer.Digest, err)
	}
	defer r.Close()

	var res *Result
	err = pkgtar.Walk(r, func(hdr *tar.Header, body io.Reader) error {
		if hdr.Typeflag != tar.TypeReg || pkgtar.IsWhiteout(hdr.Name) || !e.File.MatchString(hdr.Name) {
			return nil
		}
		f, err := e.Storage.AtomicWriteFile(hdr.Name, body, fileMode(hdr.FileInfo().Mode()))
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", hdr.Name, err)
		}
		e.Log.Info("downloaded file", "file", hdr.Name, "release", release.Tag,
			"image", layer.Reference, "digest", f.Digest.String())
		res = &Result{
			Name:   hdr.Name,
			Path:   f.Path,
			Files:  []string{f.Path},
			Source: SourceContainer,
			Ref:    release.Tag,
		}
		return pkgtar.ErrStop
	}, pkgtar.WithMaxUntarSize(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to read layer %s: %w", layer.Digest, err)
	}
	if res == nil {
		return nil, fmt.Errorf("%w: no asset of release %s or file of image %s matches %s",
			ErrFileNotFound, release.Tag, layer.Reference, e.File)
	}
	return res, nil
}
