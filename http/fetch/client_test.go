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
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/require"
)

var testModTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestClient_Download(t *testing.T) {
	g := NewWithT(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer t0k3n", r.Header.Get("Authorization"))
		require.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		if r.URL.Path != "/file.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, err := w.Write([]byte("contents"))
		require.NoError(t, err)
	}))
	defer server.Close()

	c := NewClient(WithToken("t0k3n"), WithUserAgent("test-agent"), WithRetries(0))

	var buf bytes.Buffer
	n, err := c.Download(context.TODO(), server.URL+"/file.txt", &buf)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(n).To(Equal(int64(8)))
	g.Expect(buf.String()).To(Equal("contents"))

	_, err = c.Download(context.TODO(), server.URL+"/missing?sig=secret", &buf)
	g.Expect(err).To(MatchError(ErrFileNotFound))
	g.Expect(err.Error()).ToNot(ContainSubstring("secret"))
}

func TestClient_DownloadRetries(t *testing.T) {
	g := NewWithT(t)

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, err := w.Write([]byte("ok"))
		require.NoError(t, err)
	}))
	defer server.Close()

	c := NewClient(WithRetries(3), WithRetryWait(time.Millisecond, 5*time.Millisecond))

	var buf bytes.Buffer
	_, err := c.Download(context.TODO(), server.URL, &buf)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(attempts).To(Equal(3))
	g.Expect(buf.String()).To(Equal("ok"))
}

func TestClient_DownloadRedirectDropsToken(t *testing.T) {
	g := NewWithT(t)

	blob := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))
		require.Equal(t, "bytes=2-3", r.Header.Get("Range"))
		http.ServeContent(w, r, "blob", testModTime, bytes.NewReader([]byte("abcdef")))
	}))
	defer blob.Close()

	// httptest servers share the loopback address; redirect to another host
	// name so the client treats the target as a different origin.
	blobURL := strings.Replace(blob.URL, "127.0.0.1", "localhost", 1)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer t0k3n", r.Header.Get("Authorization"))
		http.Redirect(w, r, blobURL+"/blob?sig=abc", http.StatusFound)
	}))
	defer api.Close()

	c := NewClient(WithToken("t0k3n"), WithRetries(0))
	rc, err := c.RangeSource(api.URL).ReadRange(context.TODO(), 2, 2)
	g.Expect(err).ToNot(HaveOccurred())
	defer rc.Close()

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(rc)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(buf.String()).To(Equal("cd"))
}
