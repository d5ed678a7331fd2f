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

// Package storage writes extracted files below an output directory.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/fluxcd/pkg/lockedfile"
	"github.com/opencontainers/go-digest"
)

// Storage manages files written below BasePath.
type Storage struct {
	// BasePath is the local directory files are written to.
	BasePath string
}

// File is a file written to Storage.
type File struct {
	// Name is the name the file was requested to be written as.
	Name string
	// Path is the local path of the file.
	Path string
	// Digest is the digest of the file contents.
	Digest digest.Digest
	// Size is the number of bytes written.
	Size int64
}

// New creates the base directory if needed and returns a Storage for it.
func New(basePath string) (*Storage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	if f, err := os.Stat(basePath); err != nil || !f.IsDir() {
		return nil, fmt.Errorf("invalid dir path: %s", basePath)
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}
	return &Storage{BasePath: abs}, nil
}

// LocalPath returns the secure local path for name (that is: relative to
// the Storage.BasePath). Names that try to escape the base path are
// confined to it.
func (s Storage) LocalPath(name string) (string, error) {
	p, err := securejoin.SecureJoin(s.BasePath, name)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", name, err)
	}
	if p == s.BasePath {
		return "", fmt.Errorf("invalid path %q: resolves to the output dir", name)
	}
	return p, nil
}

// Lock acquires a file lock for the base path, which serializes fetches
// writing to the same output dir. The lock file is kept in the temp dir
// so that it does not end up next to the extracted files.
func (s Storage) Lock() (unlock func(), err error) {
	return lockedfile.MutexAt(s.lockFile()).Lock()
}

func (s Storage) lockFile() string {
	return filepath.Join(os.TempDir(), "artifact-fetcher-"+digest.FromString(s.BasePath).Encoded()[:16]+".lock")
}
