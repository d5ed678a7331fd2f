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
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// RangeSource presents the file at a URL as a randomly accessible byte
// source. Every ReadRange call issues its own request, so reads are
// independent of each other and may run concurrently.
type RangeSource struct {
	client *Client
	url    string

	mu   sync.Mutex
	size int64
}

// RangeSource returns a RangeSource for the file at fileURL.
func (c *Client) RangeSource(fileURL string) *RangeSource {
	return &RangeSource{
		client: c,
		url:    fileURL,
		size:   -1,
	}
}

// URL returns the address of the file.
func (s *RangeSource) URL() string {
	return s.url
}

// Size returns the total size of the file in bytes. The size is taken from
// the Content-Length of a HEAD response, or from the Content-Range of a one
// byte range request when the server does not advertise a length.
func (s *RangeSource) Size(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size >= 0 {
		return s.size, nil
	}

	req, err := s.client.newRequest(ctx, http.MethodHead, s.url)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to determine file size: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		if err := checkStatus(resp, http.StatusOK); err != nil {
			return 0, err
		}
		if resp.ContentLength >= 0 {
			s.size = resp.ContentLength
			return s.size, nil
		}
	}

	rc, total, err := s.readRange(ctx, 0, 1)
	if err != nil {
		return 0, err
	}
	rc.Close()
	if total < 0 {
		return 0, fmt.Errorf("server did not report the size of %s", s.url)
	}
	s.size = total
	return s.size, nil
}

// ReadRange returns the bytes [offset, offset+length) of the file. A
// negative length reads until the end of the file. The returned reader
// fails with io.ErrUnexpectedEOF if the response is shorter than requested.
func (s *RangeSource) ReadRange(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	if offset < 0 {
		return nil, fmt.Errorf("invalid offset %d", offset)
	}
	if length == 0 {
		return http.NoBody, nil
	}
	rc, _, err := s.readRange(ctx, offset, length)
	return rc, err
}

func (s *RangeSource) readRange(ctx context.Context, offset, length int64) (io.ReadCloser, int64, error) {
	req, err := s.client.newRequest(ctx, http.MethodGet, s.url)
	if err != nil {
		return nil, -1, err
	}
	rng := "bytes=" + strconv.FormatInt(offset, 10) + "-"
	if length > 0 {
		rng += strconv.FormatInt(offset+length-1, 10)
	}
	req.Header.Set("Range", rng)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return nil, -1, fmt.Errorf("failed to read %s: %w", rng, err)
	}

	total := int64(-1)
	switch resp.StatusCode {
	case http.StatusPartialContent:
		start, size, err := parseContentRange(resp.Header.Get("Content-Range"))
		if err != nil {
			resp.Body.Close()
			return nil, -1, err
		}
		if start != offset {
			resp.Body.Close()
			return nil, -1, fmt.Errorf("requested %s but server returned range starting at %d", rng, start)
		}
		total = size
	case http.StatusOK:
		// The server ignored the Range header. That is only acceptable when
		// the requested range starts at the beginning of the file.
		if offset != 0 {
			resp.Body.Close()
			return nil, -1, ErrRangeNotSupported
		}
		total = resp.ContentLength
	case http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		return nil, -1, fmt.Errorf("range %s is not satisfiable for %s", rng, redactURL(resp.Request.URL))
	default:
		err := checkStatus(resp, http.StatusPartialContent)
		resp.Body.Close()
		return nil, -1, err
	}

	if length < 0 {
		return resp.Body, total, nil
	}
	return &exactReader{r: io.LimitReader(resp.Body, length), c: resp.Body, remaining: length}, total, nil
}

// parseContentRange parses a "bytes start-end/size" header value. The size
// is -1 when the server reports it as unknown.
func parseContentRange(v string) (int64, int64, error) {
	spec, ok := strings.CutPrefix(v, "bytes ")
	if !ok {
		return 0, -1, fmt.Errorf("invalid Content-Range %q", v)
	}
	rng, total, ok := strings.Cut(spec, "/")
	if !ok {
		return 0, -1, fmt.Errorf("invalid Content-Range %q", v)
	}
	first, _, ok := strings.Cut(rng, "-")
	if !ok {
		return 0, -1, fmt.Errorf("invalid Content-Range %q", v)
	}
	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, -1, fmt.Errorf("invalid Content-Range %q: %w", v, err)
	}
	if total == "*" {
		return start, -1, nil
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, -1, fmt.Errorf("invalid Content-Range %q: %w", v, err)
	}
	return start, size, nil
}

// exactReader reads exactly remaining bytes from r.
type exactReader struct {
	r         io.Reader
	c         io.Closer
	remaining int64
}

func (e *exactReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	e.remaining -= int64(n)
	if err == io.EOF && e.remaining > 0 {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

func (e *exactReader) Close() error {
	return e.c.Close()
}
