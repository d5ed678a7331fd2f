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

package unzip

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"io/fs"

	"github.com/klauspost/compress/flate"
)

const (
	creatorFAT    = 0
	creatorUnix   = 3
	creatorNTFS   = 11
	creatorVFAT   = 14
	creatorMacOSX = 19

	sIFMT  = 0xf000
	sIFDIR = 0x4000
	sIFLNK = 0xa000

	msdosDir      = 0x10
	msdosReadOnly = 0x01
)

// Open returns a reader of the decompressed contents of the entry. It reads
// the local file header, then issues one ranged read scoped to the
// compressed data of the entry. The returned reader verifies the size and
// CRC-32 of the contents at EOF. Open may be called concurrently.
func (f *File) Open(ctx context.Context) (io.ReadCloser, error) {
	if f.Flags&flagEncrypted != 0 {
		return nil, fmt.Errorf("%w: %q is encrypted", ErrAlgorithm, f.Name)
	}
	if f.Method != Store && f.Method != Deflate {
		return nil, fmt.Errorf("%w: method %d of %q", ErrAlgorithm, f.Method, f.Name)
	}

	offset, err := f.dataOffset(ctx)
	if err != nil {
		return nil, err
	}
	if offset+int64(f.CompressedSize64) > f.zr.size {
		return nil, fmt.Errorf("%w: data of %q out of bounds", ErrFormat, f.Name)
	}

	body, err := f.zr.src.ReadRange(ctx, offset, int64(f.CompressedSize64))
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", f.Name, err)
	}

	var r io.Reader = body
	var decomp io.ReadCloser
	if f.Method == Deflate {
		decomp = flate.NewReader(body)
		r = decomp
	}
	return &checksumReader{
		r:      r,
		decomp: decomp,
		body:   body,
		hash:   crc32.NewIEEE(),
		f:      f,
	}, nil
}

// dataOffset reads the local file header and returns the offset of the
// compressed data that follows it.
func (f *File) dataOffset(ctx context.Context) (int64, error) {
	b, err := readBytes(ctx, f.zr.src, f.headerOffset, fileHeaderLen)
	if err != nil {
		return 0, fmt.Errorf("failed to read local header of %q: %w", f.Name, err)
	}
	if binary.LittleEndian.Uint32(b) != fileHeaderSignature {
		return 0, fmt.Errorf("%w: invalid local header signature of %q", ErrFormat, f.Name)
	}
	nameLen := int64(binary.LittleEndian.Uint16(b[26:]))
	extraLen := int64(binary.LittleEndian.Uint16(b[28:]))
	return f.headerOffset + fileHeaderLen + nameLen + extraLen, nil
}

type checksumReader struct {
	r      io.Reader
	decomp io.ReadCloser
	body   io.ReadCloser
	hash   hash.Hash32
	nread  uint64
	f      *File
	err    error
}

func (r *checksumReader) Read(b []byte) (n int, err error) {
	if r.err != nil {
		return 0, r.err
	}
	n, err = r.r.Read(b)
	r.hash.Write(b[:n])
	r.nread += uint64(n)
	if r.nread > r.f.UncompressedSize64 {
		r.err = fmt.Errorf("%w: %q is larger than declared", ErrFormat, r.f.Name)
		return 0, r.err
	}
	if err == nil {
		return n, nil
	}
	if err == io.EOF {
		if r.nread != r.f.UncompressedSize64 {
			err = io.ErrUnexpectedEOF
		} else if r.hash.Sum32() != r.f.CRC32 {
			err = fmt.Errorf("%w: %q", ErrChecksum, r.f.Name)
		}
	}
	r.err = err
	return n, err
}

func (r *checksumReader) Close() error {
	if r.decomp != nil {
		r.decomp.Close()
	}
	return r.body.Close()
}

func unixModeToFileMode(m uint32) fs.FileMode {
	mode := fs.FileMode(m & 0o777)
	switch m & sIFMT {
	case sIFDIR:
		mode |= fs.ModeDir
	case sIFLNK:
		mode |= fs.ModeSymlink
	}
	return mode
}

func msdosModeToFileMode(m uint32) fs.FileMode {
	var mode fs.FileMode
	if m&msdosDir != 0 {
		mode = fs.ModeDir | 0o777
	} else {
		mode = 0o666
	}
	if m&msdosReadOnly != 0 {
		mode &^= 0o222
	}
	return mode
}
