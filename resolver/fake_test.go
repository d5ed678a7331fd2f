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
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/fluxcd/artifact-fetcher/github"
	"github.com/fluxcd/artifact-fetcher/storage"
	"github.com/fluxcd/artifact-fetcher/testserver"
	"github.com/fluxcd/artifact-fetcher/unzip"
)

// fakePlatform serves canned API responses.
type fakePlatform struct {
	releases  []github.Release
	assets    map[int64]string
	branches  map[string]string
	commits   map[string]*github.Commit
	artifacts map[int64][]github.Artifact
	// runs holds successive responses per SHA, the last one repeats.
	runs map[string][][]github.WorkflowRun

	mu         sync.Mutex
	runCalls   map[string]int
	commitRefs []string
	downloads  []string
}

func (p *fakePlatform) ListReleases(_ context.Context) ([]github.Release, error) {
	return p.releases, nil
}

func (p *fakePlatform) DownloadAsset(_ context.Context, asset github.Asset) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	body, ok := p.assets[asset.ID]
	if !ok {
		return nil, fmt.Errorf("asset %d: %w", asset.ID, github.ErrNotFound)
	}
	p.downloads = append(p.downloads, asset.Name)
	return io.NopCloser(strings.NewReader(body)), nil
}

func (p *fakePlatform) ListWorkflowRuns(_ context.Context, sha string) ([]github.WorkflowRun, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.runCalls == nil {
		p.runCalls = map[string]int{}
	}
	responses := p.runs[sha]
	if len(responses) == 0 {
		return nil, nil
	}
	idx := min(p.runCalls[sha], len(responses)-1)
	p.runCalls[sha]++
	return responses[idx], nil
}

func (p *fakePlatform) ListRunArtifacts(_ context.Context, runID int64) ([]github.Artifact, error) {
	return p.artifacts[runID], nil
}

func (p *fakePlatform) ResolveBranch(_ context.Context, branch string) (string, error) {
	sha, ok := p.branches[branch]
	if !ok {
		return "", fmt.Errorf("branch %s: %w", branch, github.ErrNotFound)
	}
	return sha, nil
}

func (p *fakePlatform) GetCommit(_ context.Context, ref string) (*github.Commit, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commitRefs = append(p.commitRefs, ref)
	c, ok := p.commits[ref]
	if !ok {
		return nil, fmt.Errorf("commit %s: %w", ref, github.ErrNotFound)
	}
	return c, nil
}

func (p *fakePlatform) pollCount(sha string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runCalls[sha]
}

// memSource is a ranged source over an in-memory archive.
type memSource struct {
	data []byte
}

func (s *memSource) Size(_ context.Context) (int64, error) {
	return int64(len(s.data)), nil
}

func (s *memSource) ReadRange(_ context.Context, offset, length int64) (io.ReadCloser, error) {
	end := int64(len(s.data))
	if length >= 0 {
		end = min(offset+length, end)
	}
	return io.NopCloser(bytes.NewReader(s.data[offset:end])), nil
}

// zipSources returns a SourceFunc serving zip archives by URL.
func zipSources(t *testing.T, archives map[string][]testserver.File) SourceFunc {
	t.Helper()
	data := map[string][]byte{}
	for url, files := range archives {
		b, err := testserver.ZipArchive(files)
		if err != nil {
			t.Fatal(err)
		}
		data[url] = b
	}
	return func(url string) unzip.Source {
		b, ok := data[url]
		if !ok {
			t.Fatalf("unexpected archive %s", url)
		}
		return &memSource{data: b}
	}
}

func newStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func completed(id int64, sha string, attempt int) github.WorkflowRun {
	return github.WorkflowRun{ID: id, HeadSHA: sha, RunAttempt: attempt, Status: github.StatusCompleted}
}

func inProgress(id int64, sha string, attempt int) github.WorkflowRun {
	return github.WorkflowRun{ID: id, HeadSHA: sha, RunAttempt: attempt, Status: "in_progress"}
}
