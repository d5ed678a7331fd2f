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

package testserver

import (
	"archive/tar"
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// Compression selects the stream compression of a tar fixture.
type Compression int

const (
	// NoCompression writes a plain tar stream.
	NoCompression Compression = iota
	// Gzip compresses the tar stream with gzip.
	Gzip
	// Zstd compresses the tar stream with zstd.
	Zstd
)

// NewTempArtifactServer returns an ArtifactServer with a newly created temp
// dir as the artifact docroot.
func NewTempArtifactServer() (*ArtifactServer, error) {
	tmpDir, err := os.MkdirTemp("", "artifact-test-")
	if err != nil {
		return nil, err
	}
	server := NewHTTPServer(tmpDir)
	artifact := &ArtifactServer{server}
	return artifact, nil
}

// ArtifactServer is an HTTP artifact server for testing purposes. It
// offers utilities to generate zip and tar archives to be served by the
// server.
type ArtifactServer struct {
	*HTTPServer
}

// File holds the name and string contents of an archive entry. Entries
// with a name ending in "/" are written as directories. Stored entries
// are written without compression in zip archives.
type File struct {
	Name   string
	Body   string
	Stored bool
}

// ZipFromFiles writes a zip archive with the given files to the docroot
// and returns the file name of the archive.
func (s *ArtifactServer) ZipFromFiles(files []File) (string, error) {
	data, err := ZipArchive(files)
	if err != nil {
		return "", err
	}
	fileName := calculateArtifactName(files, ".zip")
	if err := os.WriteFile(filepath.Join(s.docroot, fileName), data, 0o644); err != nil {
		return "", err
	}
	return fileName, nil
}

// TarFromFiles writes a tar archive with the given files and compression
// to the docroot and returns the file name of the archive.
func (s *ArtifactServer) TarFromFiles(files []File, c Compression) (string, error) {
	data, err := TarArchive(files, c)
	if err != nil {
		return "", err
	}
	fileName := calculateArtifactName(files, ".tar")
	if err := os.WriteFile(filepath.Join(s.docroot, fileName), data, 0o644); err != nil {
		return "", err
	}
	return fileName, nil
}

// URLForFile returns the URL the given file can be reached at or
// an error if the server has not been started.
func (s *ArtifactServer) URLForFile(file string) (string, error) {
	if s.URL() == "" {
		return "", errors.New("server must be started to be able to determine the URL of the given file")
	}
	return fmt.Sprintf("%s/%s", s.URL(), file), nil
}

// ZipArchive returns the bytes of a zip archive holding the given files
// in order.
func ZipArchive(files []File) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		hdr := &zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		if f.Stored || isDir(f.Name) {
			hdr.Method = zip.Store
		}
		if isDir(f.Name) {
			hdr.SetMode(os.ModeDir | 0o755)
		} else {
			hdr.SetMode(0o644)
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, err
		}
		if isDir(f.Name) {
			continue
		}
		if _, err := io.WriteString(w, f.Body); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TarArchive returns the bytes of a tar archive holding the given files
// in order, compressed with c.
func TarArchive(files []File, c Compression) ([]byte, error) {
	var buf bytes.Buffer
	var cw io.WriteCloser
	switch c {
	case Gzip:
		cw = gzip.NewWriter(&buf)
	case Zstd:
		enc, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		cw = enc
	default:
		cw = nopWriteCloser{&buf}
	}

	tw := tar.NewWriter(cw)
	for _, f := range files {
		hdr := &tar.Header{
			Name:     f.Name,
			Mode:     0o600,
			Size:     int64(len(f.Body)),
			Typeflag: tar.TypeReg,
		}
		if isDir(f.Name) {
			hdr.Mode = 0o755
			hdr.Size = 0
			hdr.Typeflag = tar.TypeDir
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if hdr.Size == 0 {
			continue
		}
		if _, err := io.WriteString(tw, f.Body); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := cw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func isDir(name string) bool {
	return len(name) > 0 && name[len(name)-1] == '/'
}

func calculateArtifactName(files []File, ext string) string {
	h := sha1.New()
	for _, f := range files {
		h.Write([]byte(f.Name))
		h.Write([]byte(f.Body))
	}
	return fmt.Sprintf("%x%s", h.Sum(nil), ext)
}
