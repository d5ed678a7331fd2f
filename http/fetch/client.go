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

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-retryablehttp"
)

// DefaultUserAgent is sent with every request unless overridden.
const DefaultUserAgent = "fluxcd/artifact-fetcher"

var (
	// ErrFileNotFound is returned when the server responds with 404.
	ErrFileNotFound = errors.New("file not found")

	// ErrRangeNotSupported is returned when the server ignores or rejects
	// a range request.
	ErrRangeNotSupported = errors.New("range requests are not supported by the server")
)

// Client holds the HTTP client that retries with back off when the file
// server is unavailable, and the bearer token sent along with each request.
type Client struct {
	httpClient *retryablehttp.Client
	token      string
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithToken configures the bearer token used to authenticate requests.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithRetries configures the maximum number of retries for a single request.
func WithRetries(retries int) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = retries
	}
}

// WithRetryWait configures the minimum and maximum wait between retries.
func WithRetryWait(min, max time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryWaitMin = min
		c.httpClient.RetryWaitMax = max
	}
}

// WithLogger logs failed attempts to the given logger.
func WithLogger(log logr.Logger) Option {
	return func(c *Client) {
		c.httpClient.Logger = newRetryLogger(log)
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHTTPClient configures the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient = hc
	}
}

// NewClient configures the retryable HTTP client used for fetching files.
func NewClient(opts ...Option) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryWaitMin = 1 * time.Second
	httpClient.RetryWaitMax = 30 * time.Second
	httpClient.RetryMax = 3
	httpClient.Logger = nil

	c := &Client{
		httpClient: httpClient,
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StandardClient returns an *http.Client that retries through this Client.
// Requests made with it are not decorated with the bearer token.
func (c *Client) StandardClient() *http.Client {
	return c.httpClient.StandardClient()
}

// Download writes the body of the file at fileURL to w and returns the number
// of bytes written. If the file server responds with 5xx errors, the
// request is retried. If the file server responds with 404, the returned
// error wraps ErrFileNotFound.
func (c *Client) Download(ctx context.Context, fileURL string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fileURL)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return 0, err
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to copy contents of %s: %w", fileURL, err)
	}
	return n, nil
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string) (*retryablehttp.Request, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create a new request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

// checkStatus returns nil if resp carries one of the expected status codes.
func checkStatus(resp *http.Response, expected ...int) error {
	for _, code := range expected {
		if resp.StatusCode == code {
			return nil
		}
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrFileNotFound, redactURL(resp.Request.URL))
	}
	return fmt.Errorf("failed to fetch %s, status: %s", redactURL(resp.Request.URL), resp.Status)
}

// redactURL strips credentials and the query string, which holds the
// signature of pre-signed storage URLs.
func redactURL(u *url.URL) string {
	r := *u
	r.User = nil
	r.RawQuery = ""
	r.Fragment = ""
	return r.String()
}
