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

// Package github is a client for the parts of the GitHub REST API that
// locate build outputs: releases, workflow runs, artifacts and commits.
package github

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/go-github/v82/github"
	"golang.org/x/net/http/httpproxy"
)

const (
	// DefaultBaseURL is the address of the public GitHub API.
	DefaultBaseURL = "https://api.github.com/"

	// DefaultPerPage is the page size of list requests.
	DefaultPerPage = 100
)

// ErrNotFound is returned when the API responds with 404.
var ErrNotFound = errors.New("not found")

// Client reads releases, workflow runs, artifacts and commits of a single
// repository.
type Client struct {
	owner      string
	repo       string
	token      string
	baseURL    string
	proxyURL   *url.URL
	httpClient *http.Client
	perPage    int
	log        logr.Logger

	gh *github.Client
}

// OptFunc enables specifying options for the client.
type OptFunc func(*Client)

// WithToken sets the access token sent with every request.
func WithToken(token string) OptFunc {
	return func(c *Client) {
		c.token = token
	}
}

// WithBaseURL sets the API address, for GitHub Enterprise Server.
func WithBaseURL(baseURL string) OptFunc {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client used for API requests and for
// following asset download redirects.
func WithHTTPClient(httpClient *http.Client) OptFunc {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithProxyURL sets the proxy URL. It is ignored when an HTTP client is
// configured with WithHTTPClient.
func WithProxyURL(proxyURL *url.URL) OptFunc {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithLogger sets the logger for request details.
func WithLogger(log logr.Logger) OptFunc {
	return func(c *Client) {
		c.log = log
	}
}

// WithPerPage sets the page size of list requests.
func WithPerPage(perPage int) OptFunc {
	return func(c *Client) {
		c.perPage = perPage
	}
}

// New returns a client for the repository owner/repo.
func New(owner, repo string, opts ...OptFunc) (*Client, error) {
	c := &Client{
		owner:   owner,
		repo:    repo,
		baseURL: DefaultBaseURL,
		perPage: DefaultPerPage,
		log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.owner == "" || c.repo == "" {
		return nil, fmt.Errorf("owner and repository must be provided")
	}
	if c.perPage <= 0 || c.perPage > DefaultPerPage {
		return nil, fmt.Errorf("page size must be between 1 and %d", DefaultPerPage)
	}

	if c.httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if c.proxyURL != nil {
			proxyStr := c.proxyURL.String()
			proxyConfig := &httpproxy.Config{
				HTTPProxy:  proxyStr,
				HTTPSProxy: proxyStr,
			}
			transport.Proxy = func(req *http.Request) (*url.URL, error) {
				return proxyConfig.ProxyFunc()(req.URL)
			}
		}
		c.httpClient = &http.Client{Transport: transport}
	}

	c.gh = github.NewClient(c.httpClient)
	if c.token != "" {
		c.gh = c.gh.WithAuthToken(c.token)
	}

	apiURL := c.baseURL
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	baseURL, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	c.gh.BaseURL = baseURL

	return c, nil
}

// Owner returns the owner of the repository.
func (c *Client) Owner() string {
	return c.owner
}

// Repository returns the name of the repository.
func (c *Client) Repository() string {
	return c.repo
}

func (c *Client) listOptions() github.ListOptions {
	return github.ListOptions{PerPage: c.perPage}
}

// wrapErr maps 404 responses to ErrNotFound.
func wrapErr(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
