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

package tar

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/fluxcd/artifact-fetcher/testserver"
)

// countingReader counts the bytes read from r.
type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestWalk(t *testing.T) {
	g := NewWithT(t)

	data, err := testserver.TarArchive([]testserver.File{
		{Name: "etc/"},
		{Name: "etc/config", Body: "config"},
		{Name: "bin/tool", Body: "tool"},
	}, testserver.NoCompression)
	g.Expect(err).ToNot(HaveOccurred())

	var names []string
	var contents []string
	err = Walk(bytes.NewReader(data), func(hdr *tar.Header, r io.Reader) error {
		names = append(names, hdr.Name)
		if hdr.Name == "bin/tool" {
			b, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			contents = append(contents, string(b))
		}
		return nil
	})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(names).To(Equal([]string{"etc/", "etc/config", "bin/tool"}))
	g.Expect(contents).To(Equal([]string{"tool"}))
}

func TestWalk_Stop(t *testing.T) {
	g := NewWithT(t)

	target := strings.Repeat("target bytes ", 100)
	files := []testserver.File{
		{Name: "a.txt", Body: "a"},
		{Name: "dir/target.bin", Body: target},
	}
	for i := 0; i < 50; i++ {
		files = append(files, testserver.File{Name: "filler", Body: strings.Repeat("x", 4096)})
	}
	data, err := testserver.TarArchive(files, testserver.NoCompression)
	g.Expect(err).ToNot(HaveOccurred())

	cr := &countingReader{r: bytes.NewReader(data)}
	var found []byte
	visited := 0
	err = Walk(cr, func(hdr *tar.Header, r io.Reader) error {
		visited++
		if hdr.Name != "dir/target.bin" {
			return nil
		}
		b, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		found = b
		return ErrStop
	})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(visited).To(Equal(2))
	g.Expect(string(found)).To(Equal(target))
	g.Expect(cr.n).To(BeNumerically("<", len(data)/2))
}

func TestWalk_WrappedStop(t *testing.T) {
	g := NewWithT(t)

	data, err := testserver.TarArchive([]testserver.File{{Name: "a", Body: "a"}, {Name: "b", Body: "b"}}, testserver.NoCompression)
	g.Expect(err).ToNot(HaveOccurred())

	err = Walk(bytes.NewReader(data), func(hdr *tar.Header, r io.Reader) error {
		return errors.Join(errors.New("written"), ErrStop)
	})
	g.Expect(err).ToNot(HaveOccurred())
}

func TestWalk_Errors(t *testing.T) {
	g := NewWithT(t)

	data, err := testserver.TarArchive([]testserver.File{{Name: "big", Body: strings.Repeat("b", 2048)}}, testserver.NoCompression)
	g.Expect(err).ToNot(HaveOccurred())

	consumerErr := errors.New("disk full")
	err = Walk(bytes.NewReader(data), func(hdr *tar.Header, r io.Reader) error {
		return consumerErr
	})
	g.Expect(err).To(MatchError(consumerErr))

	err = Walk(bytes.NewReader(data), func(hdr *tar.Header, r io.Reader) error {
		_, err := io.Copy(io.Discard, r)
		return err
	}, WithMaxUntarSize(1024))
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("bigger than max archive size"))

	err = Walk(bytes.NewReader(data), func(hdr *tar.Header, r io.Reader) error {
		_, err := io.Copy(io.Discard, r)
		return err
	}, WithMaxUntarSize(-1))
	g.Expect(err).ToNot(HaveOccurred())

	// A stream that breaks mid-entry is an error, not a stop.
	err = Walk(bytes.NewReader(data[:1024]), func(hdr *tar.Header, r io.Reader) error {
		_, err := io.ReadAll(r)
		return err
	})
	g.Expect(err).To(HaveOccurred())
}

func TestWalk_SkipsOversizedEntries(t *testing.T) {
	g := NewWithT(t)

	data, err := testserver.TarArchive([]testserver.File{
		{Name: "big.bin", Body: strings.Repeat("b", 4096)},
		{Name: "want.txt", Body: "wanted"},
	}, testserver.NoCompression)
	g.Expect(err).ToNot(HaveOccurred())

	var found string
	err = Walk(bytes.NewReader(data), func(hdr *tar.Header, r io.Reader) error {
		if hdr.Name != "want.txt" {
			return nil
		}
		b, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		found = string(b)
		return ErrStop
	}, WithMaxUntarSize(1024))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(found).To(Equal("wanted"))
}

func TestDecompress(t *testing.T) {
	files := []testserver.File{{Name: "layer/file", Body: "layer contents"}}

	for _, tt := range []struct {
		name        string
		compression testserver.Compression
	}{
		{name: "plain", compression: testserver.NoCompression},
		{name: "gzip", compression: testserver.Gzip},
		{name: "zstd", compression: testserver.Zstd},
	} {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)

			data, err := testserver.TarArchive(files, tt.compression)
			g.Expect(err).ToNot(HaveOccurred())

			rc, err := Decompress(bytes.NewReader(data))
			g.Expect(err).ToNot(HaveOccurred())
			defer rc.Close()

			var got string
			err = Walk(rc, func(hdr *tar.Header, r io.Reader) error {
				b, err := io.ReadAll(r)
				got = string(b)
				return err
			})
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(got).To(Equal("layer contents"))
		})
	}

	t.Run("empty", func(t *testing.T) {
		g := NewWithT(t)
		rc, err := Decompress(bytes.NewReader(nil))
		g.Expect(err).ToNot(HaveOccurred())
		b, err := io.ReadAll(rc)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(b).To(BeEmpty())
	})
}

func TestIsWhiteout(t *testing.T) {
	g := NewWithT(t)
	g.Expect(IsWhiteout("usr/bin/.wh.tool")).To(BeTrue())
	g.Expect(IsWhiteout(".wh..wh..opq")).To(BeTrue())
	g.Expect(IsWhiteout("usr/bin/tool")).To(BeFalse())
	g.Expect(IsWhiteout("usr/.whale/tool")).To(BeFalse())
}
