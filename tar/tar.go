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

// Package tar reads tar streams entry by entry, with support for stopping
// the walk once the consumer has found what it was looking for.
package tar

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// DefaultMaxUntarSize is the default maximum size of a single entry.
const DefaultMaxUntarSize = 100 << (10 * 2)

const whiteoutPrefix = ".wh."

// ErrStop is returned by a WalkFunc to end the walk early. Walk does not
// report it as an error.
var ErrStop = errors.New("tar: stop walking")

// WalkFunc is called for every entry of the stream, in stream order. The
// reader yields the contents of the entry and is only valid until the
// function returns. Contents that are not consumed are skipped.
type WalkFunc func(hdr *tar.Header, r io.Reader) error

type tarOpts struct {
	// maxUntarSize represents the limit size (bytes) for a single entry.
	// Use values <= 0 to disable the limit.
	maxUntarSize int64
}

// TarOption represents options to be applied to Walk.
type TarOption func(*tarOpts)

// WithMaxUntarSize sets the limit size for a single entry. Use values
// <= 0 to disable the limit.
func WithMaxUntarSize(limit int64) TarOption {
	return func(t *tarOpts) {
		t.maxUntarSize = limit
	}
}

func (t *tarOpts) applyOpts(tarOpts ...TarOption) {
	for _, clientOpt := range tarOpts {
		clientOpt(t)
	}
}

// Walk reads the tar stream from r and calls fn for every entry. When fn
// returns ErrStop the walk ends and Walk returns nil, leaving the remainder
// of r unread. Any other error from fn, or from reading the stream, is
// returned. The size limit applies to entries fn reads: reading an entry
// over the limit fails, while skipping it does not.
func Walk(r io.Reader, fn WalkFunc, opts ...TarOption) error {
	o := tarOpts{
		maxUntarSize: DefaultMaxUntarSize,
	}
	o.applyOpts(opts...)

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tar error: %w", err)
		}

		var body io.Reader = tr
		if o.maxUntarSize > 0 && hdr.Size > o.maxUntarSize {
			body = &oversizedReader{name: hdr.Name, limit: o.maxUntarSize}
		}

		if err := fn(hdr, body); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}

// IsWhiteout reports whether name is an OCI layer whiteout marker.
func IsWhiteout(name string) bool {
	return strings.HasPrefix(path.Base(name), whiteoutPrefix)
}

// oversizedReader stands in for the contents of an entry over the size
// limit.
type oversizedReader struct {
	name  string
	limit int64
}

func (r *oversizedReader) Read([]byte) (int, error) {
	return 0, fmt.Errorf("tar %q is bigger than max archive size of %d bytes", r.name, r.limit)
}
