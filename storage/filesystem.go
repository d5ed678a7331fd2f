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

package storage

import (
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

// writeCounter is an implementation of io.Writer
// that only records the number of bytes written.
type writeCounter struct {
	written int64
}

// Write implements the io.Writer interface.
func (wc *writeCounter) Write(p []byte) (int, error) {
	n := len(p)
	wc.written += int64(n)
	return n, nil
}

// AtomicWriteFile atomically writes the io.Reader contents to name below the
// base path, creating parent directories as needed. The contents are written
// to a temporary file in the target directory that is renamed into place.
func (s Storage) AtomicWriteFile(name string, reader io.Reader, mode os.FileMode) (_ *File, err error) {
	localPath, err := s.LocalPath(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return nil, err
	}

	tf, err := os.CreateTemp(filepath.Split(localPath))
	if err != nil {
		return nil, err
	}
	tfName := tf.Name()
	defer func() {
		if err != nil {
			os.Remove(tfName)
		}
	}()

	d := digest.Canonical.Digester()
	sz := &writeCounter{}
	mw := io.MultiWriter(tf, d.Hash(), sz)

	if _, err := io.Copy(mw, reader); err != nil {
		tf.Close()
		return nil, err
	}
	if err := tf.Close(); err != nil {
		return nil, err
	}

	if err := os.Chmod(tfName, mode); err != nil {
		return nil, err
	}

	if err := os.Rename(tfName, localPath); err != nil {
		return nil, err
	}

	return &File{
		Name:   name,
		Path:   localPath,
		Digest: d.Digest(),
		Size:   sz.written,
	}, nil
}
