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

// Package oci reads image layers from OCI container registries.
package oci

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/crane"
)

const (
	// UserAgent is the User-Agent sent to registries.
	UserAgent = "fluxcd/artifact-fetcher"

	// DefaultRegistry is the registry host used when none is configured.
	DefaultRegistry = "ghcr.io"
)

// Client holds the options for accessing remote OCI registries.
type Client struct {
	registry string
	options  []crane.Option
}

// Option configures a Client.
type Option func(*Client)

// WithRegistry sets the registry host, e.g. "ghcr.io".
func WithRegistry(registry string) Option {
	return func(c *Client) {
		c.registry = strings.TrimSuffix(registry, "/")
	}
}

// WithInsecure allows plain HTTP connections to the registry.
func WithInsecure() Option {
	return func(c *Client) {
		c.options = append(c.options, crane.Insecure)
	}
}

// WithTransport sets the transport used to reach the registry.
func WithTransport(t http.RoundTripper) Option {
	return func(c *Client) {
		c.options = append(c.options, crane.WithTransport(t))
	}
}

// WithUserAgent overrides the User-Agent sent to the registry.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.options = append(c.options, crane.WithUserAgent(ua))
	}
}

// NewClient returns an OCI client for the given options. Until credentials
// are configured with LoginWithCredentials, the client pulls anonymously.
func NewClient(opts ...Option) *Client {
	c := &Client{
		registry: DefaultRegistry,
		options: []crane.Option{
			crane.WithUserAgent(UserAgent),
			crane.WithAuth(authn.Anonymous),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the configured registry host.
func (c *Client) Registry() string {
	return c.registry
}

// Reference returns the image reference for the repository and tag in the
// configured registry. The tag is converted with Tag.
func (c *Client) Reference(repository, tag string) string {
	return fmt.Sprintf("%s/%s:%s", c.registry, strings.ToLower(repository), Tag(tag))
}

// Tag converts a version to an OCI tag. OCI tags cannot contain '+', which
// is replaced with '_'.
func Tag(version string) string {
	return strings.ReplaceAll(version, "+", "_")
}

// optionsWithContext returns the crane options for the given context.
func (c *Client) optionsWithContext(ctx context.Context) []crane.Option {
	options := []crane.Option{
		crane.WithContext(ctx),
	}
	return append(options, c.options...)
}
