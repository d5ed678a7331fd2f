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

package oci

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/go-containerregistry/pkg/crane"
	gcrv1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/opencontainers/go-digest"
)

var (
	// ErrNotFound is returned when the image does not exist in the registry.
	ErrNotFound = errors.New("image not found")

	// ErrNoLayers is returned when the image has no layers.
	ErrNoLayers = errors.New("no layers found in image")
)

// Layer is a layer of an image in a remote registry.
type Layer struct {
	Reference string
	Digest    digest.Digest
	MediaType string
	Size      int64

	layer gcrv1.Layer
}

// Open returns the compressed contents of the layer as served by the
// registry. The blob is only fetched when Open is called.
func (l *Layer) Open() (io.ReadCloser, error) {
	rc, err := l.layer.Compressed()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch layer %s: %w", l.Digest, err)
	}
	return rc, nil
}

// FirstLayer fetches the manifest of the image tagged tag in repository and
// returns its first layer. Registry pull tokens are requested as needed.
func (c *Client) FirstLayer(ctx context.Context, repository, tag string) (*Layer, error) {
	ref := c.Reference(repository, tag)

	img, err := crane.Pull(ref, c.optionsWithContext(ctx)...)
	if err != nil {
		return nil, wrapNotFound(ref, err)
	}

	manifest, err := img.Manifest()
	if err != nil {
		return nil, wrapNotFound(ref, err)
	}
	if len(manifest.Layers) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoLayers, ref)
	}

	desc := manifest.Layers[0]
	layer, err := img.LayerByDigest(desc.Digest)
	if err != nil {
		return nil, fmt.Errorf("failed to get layer %s of %s: %w", desc.Digest, ref, err)
	}

	dgst, err := digest.Parse(desc.Digest.String())
	if err != nil {
		return nil, fmt.Errorf("invalid layer digest %q: %w", desc.Digest, err)
	}

	return &Layer{
		Reference: ref,
		Digest:    dgst,
		MediaType: string(desc.MediaType),
		Size:      desc.Size,
		layer:     layer,
	}, nil
}

func wrapNotFound(ref string, err error) error {
	var terr *transport.Error
	if errors.As(err, &terr) && terr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return fmt.Errorf("failed to fetch manifest of %s: %w", ref, err)
}
