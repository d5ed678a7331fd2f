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

// Package unzip reads zip archives over a source that supports ranged
// reads, such as a file served over HTTP. The central directory is read
// first, and the data of an entry is only fetched when the entry is opened.
package unzip

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrFormat    = errors.New("zip: not a valid zip file")
	ErrAlgorithm = errors.New("zip: unsupported compression algorithm")
	ErrChecksum  = errors.New("zip: checksum error")
)

// Compression methods.
const (
	Store   uint16 = 0
	Deflate uint16 = 8
)

const (
	fileHeaderSignature      = 0x04034b50
	directoryHeaderSignature = 0x02014b50
	directoryEndSignature    = 0x06054b50
	directory64LocSignature  = 0x07064b50
	directory64EndSignature  = 0x06064b50

	fileHeaderLen      = 30
	directoryHeaderLen = 46
	directoryEndLen    = 22
	directory64LocLen  = 20
	directory64EndLen  = 56

	maxCommentLen = 1<<16 - 1

	zip64ExtraID = 0x0001

	flagEncrypted = 0x1
	flagUTF8      = 0x800

	uint16max = 1<<16 - 1
	uint32max = 1<<32 - 1
)

// Source is a randomly accessible byte source.
type Source interface {
	// Size returns the total number of bytes of the source.
	Size(ctx context.Context) (int64, error)
	// ReadRange returns the bytes [offset, offset+length) of the source,
	// or [offset, EOF) for a negative length.
	ReadRange(ctx context.Context, offset, length int64) (io.ReadCloser, error)
}

// Reader holds the central directory of a zip archive. It is not modified
// after Open returns.
type Reader struct {
	File    []*File
	Comment string

	src  Source
	size int64
}

// File is an entry of the central directory.
type File struct {
	Name               string
	Comment            string
	CreatorVersion     uint16
	Flags              uint16
	Method             uint16
	Modified           time.Time
	CRC32              uint32
	CompressedSize64   uint64
	UncompressedSize64 uint64
	ExternalAttrs      uint32

	headerOffset int64
	zr           *Reader
}

// Open reads the end of central directory record and the central directory
// of the archive in src. It issues one ranged read for the tail of the
// archive, one for the ZIP64 end record when present outside of the tail,
// and one for the central directory when it is not contained in the tail.
func Open(ctx context.Context, src Source) (*Reader, error) {
	size, err := src.Size(ctx)
	if err != nil {
		return nil, err
	}
	if size < directoryEndLen {
		return nil, fmt.Errorf("%w: archive of %d bytes is too small", ErrFormat, size)
	}

	tailLen := min(size, directoryEndLen+maxCommentLen)
	tailOffset := size - tailLen
	tail, err := readBytes(ctx, src, tailOffset, tailLen)
	if err != nil {
		return nil, fmt.Errorf("failed to read end of central directory: %w", err)
	}

	endPos := findDirectoryEnd(tail)
	if endPos < 0 {
		return nil, fmt.Errorf("%w: end of central directory not found", ErrFormat)
	}

	d, err := parseDirectoryEnd(tail[endPos:])
	if err != nil {
		return nil, err
	}

	if endPos >= directory64LocLen {
		loc := readBuf(tail[endPos-directory64LocLen : endPos])
		if loc.uint32() == directory64LocSignature {
			loc.uint32() // disk with the ZIP64 end record
			d64Offset := int64(loc.uint64())
			if d64Offset < 0 || d64Offset+directory64EndLen > size {
				return nil, fmt.Errorf("%w: invalid ZIP64 end record offset", ErrFormat)
			}
			b, err := sliceOrRead(ctx, src, tail, tailOffset, d64Offset, directory64EndLen)
			if err != nil {
				return nil, fmt.Errorf("failed to read ZIP64 end of central directory: %w", err)
			}
			if err := d.parse64(b); err != nil {
				return nil, err
			}
		}
	}

	if d.directoryOffset < 0 || d.directorySize < 0 || d.directoryOffset+d.directorySize > size {
		return nil, fmt.Errorf("%w: central directory out of bounds", ErrFormat)
	}
	// Each header is at least directoryHeaderLen bytes.
	if d.records > uint64(d.directorySize)/directoryHeaderLen {
		return nil, fmt.Errorf("%w: central directory of %d bytes cannot hold %d records",
			ErrFormat, d.directorySize, d.records)
	}

	dir, err := sliceOrRead(ctx, src, tail, tailOffset, d.directoryOffset, d.directorySize)
	if err != nil {
		return nil, fmt.Errorf("failed to read central directory: %w", err)
	}

	zr := &Reader{
		Comment: d.comment,
		src:     src,
		size:    size,
		File:    make([]*File, 0, d.records),
	}
	buf := readBuf(dir)
	for i := uint64(0); i < d.records; i++ {
		f, err := parseDirectoryHeader(&buf)
		if err != nil {
			return nil, fmt.Errorf("central directory record %d: %w", i, err)
		}
		if f.headerOffset+fileHeaderLen > size {
			return nil, fmt.Errorf("%w: local header of %q out of bounds", ErrFormat, f.Name)
		}
		f.zr = zr
		zr.File = append(zr.File, f)
	}
	return zr, nil
}

// Mode returns the permission and mode bits of the entry.
func (f *File) Mode() (mode fs.FileMode) {
	switch f.CreatorVersion >> 8 {
	case creatorUnix, creatorMacOSX:
		mode = unixModeToFileMode(f.ExternalAttrs >> 16)
	case creatorNTFS, creatorVFAT, creatorFAT:
		mode = msdosModeToFileMode(f.ExternalAttrs)
	}
	if f.IsDir() {
		mode |= fs.ModeDir
	}
	return mode
}

// IsDir reports whether the entry is a directory.
func (f *File) IsDir() bool {
	return strings.HasSuffix(f.Name, "/")
}

type directoryEnd struct {
	records         uint64
	directorySize   int64
	directoryOffset int64
	comment         string
}

func findDirectoryEnd(b []byte) int {
	for i := len(b) - directoryEndLen; i >= 0; i-- {
		if binary.LittleEndian.Uint32(b[i:]) != directoryEndSignature {
			continue
		}
		n := int(binary.LittleEndian.Uint16(b[i+20:]))
		if i+directoryEndLen+n <= len(b) {
			return i
		}
	}
	return -1
}

func parseDirectoryEnd(b []byte) (*directoryEnd, error) {
	buf := readBuf(b[4:])
	diskNbr := buf.uint16()
	dirDiskNbr := buf.uint16()
	dirRecordsThisDisk := buf.uint16()
	dirRecords := buf.uint16()
	dirSize := buf.uint32()
	dirOffset := buf.uint32()
	commentLen := int(buf.uint16())
	if diskNbr != 0 || dirDiskNbr != 0 || dirRecordsThisDisk != dirRecords {
		return nil, fmt.Errorf("%w: multi-disk archives are not supported", ErrFormat)
	}
	return &directoryEnd{
		records:         uint64(dirRecords),
		directorySize:   int64(dirSize),
		directoryOffset: int64(dirOffset),
		comment:         string(buf[:commentLen]),
	}, nil
}

func (d *directoryEnd) parse64(b []byte) error {
	buf := readBuf(b)
	if buf.uint32() != directory64EndSignature {
		return fmt.Errorf("%w: invalid ZIP64 end of central directory signature", ErrFormat)
	}
	buf = buf[12:] // record size, versions
	buf.uint32()   // disk number
	buf.uint32()   // disk with the central directory
	buf.uint64()   // records on this disk
	d.records = buf.uint64()
	d.directorySize = int64(buf.uint64())
	d.directoryOffset = int64(buf.uint64())
	return nil
}

func parseDirectoryHeader(buf *readBuf) (*File, error) {
	if len(*buf) < directoryHeaderLen {
		return nil, fmt.Errorf("%w: truncated central directory", ErrFormat)
	}
	if buf.uint32() != directoryHeaderSignature {
		return nil, fmt.Errorf("%w: invalid central directory header signature", ErrFormat)
	}
	f := &File{}
	f.CreatorVersion = buf.uint16()
	buf.uint16() // version needed
	f.Flags = buf.uint16()
	f.Method = buf.uint16()
	modTime := buf.uint16()
	modDate := buf.uint16()
	f.CRC32 = buf.uint32()
	compressed := buf.uint32()
	uncompressed := buf.uint32()
	nameLen := int(buf.uint16())
	extraLen := int(buf.uint16())
	commentLen := int(buf.uint16())
	buf.uint16() // disk number start
	buf.uint16() // internal attributes
	f.ExternalAttrs = buf.uint32()
	offset := buf.uint32()

	if len(*buf) < nameLen+extraLen+commentLen {
		return nil, fmt.Errorf("%w: truncated central directory", ErrFormat)
	}
	name := string((*buf)[:nameLen])
	extra := readBuf((*buf)[nameLen : nameLen+extraLen])
	f.Comment = string((*buf)[nameLen+extraLen : nameLen+extraLen+commentLen])
	*buf = (*buf)[nameLen+extraLen+commentLen:]

	if f.Flags&flagUTF8 != 0 && !utf8.ValidString(name) {
		return nil, fmt.Errorf("%w: invalid UTF-8 name", ErrFormat)
	}
	f.Name = name
	f.Modified = msDosTimeToTime(modDate, modTime)
	f.CompressedSize64 = uint64(compressed)
	f.UncompressedSize64 = uint64(uncompressed)
	f.headerOffset = int64(offset)

	needUSize := uncompressed == uint32max
	needCSize := compressed == uint32max
	needOffset := offset == uint32max

	for len(extra) >= 4 {
		id := extra.uint16()
		size := int(extra.uint16())
		if len(extra) < size {
			return nil, fmt.Errorf("%w: truncated extra field of %q", ErrFormat, name)
		}
		field := extra.sub(size)
		if id != zip64ExtraID {
			continue
		}
		if needUSize {
			if len(field) < 8 {
				return nil, fmt.Errorf("%w: invalid ZIP64 extra field of %q", ErrFormat, name)
			}
			needUSize = false
			f.UncompressedSize64 = field.uint64()
		}
		if needCSize {
			if len(field) < 8 {
				return nil, fmt.Errorf("%w: invalid ZIP64 extra field of %q", ErrFormat, name)
			}
			needCSize = false
			f.CompressedSize64 = field.uint64()
		}
		if needOffset {
			if len(field) < 8 {
				return nil, fmt.Errorf("%w: invalid ZIP64 extra field of %q", ErrFormat, name)
			}
			needOffset = false
			f.headerOffset = int64(field.uint64())
		}
	}
	if needCSize || needOffset {
		return nil, fmt.Errorf("%w: missing ZIP64 extra field of %q", ErrFormat, name)
	}
	if f.headerOffset < 0 || f.CompressedSize64 > 1<<62 {
		return nil, fmt.Errorf("%w: invalid sizes of %q", ErrFormat, name)
	}
	return f, nil
}

// sliceOrRead returns the bytes [offset, offset+length) from tail when
// they lie within it, and reads them from src otherwise.
func sliceOrRead(ctx context.Context, src Source, tail []byte, tailOffset, offset, length int64) ([]byte, error) {
	if offset >= tailOffset && offset+length <= tailOffset+int64(len(tail)) {
		start := offset - tailOffset
		return tail[start : start+length], nil
	}
	return readBytes(ctx, src, offset, length)
}

func readBytes(ctx context.Context, src Source, offset, length int64) ([]byte, error) {
	rc, err := src.ReadRange(ctx, offset, length)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	b := make([]byte, length)
	if _, err := io.ReadFull(rc, b); err != nil {
		return nil, err
	}
	return b, nil
}

// msDosTimeToTime converts an MS-DOS date and time into a time.Time.
// The resolution is 2s.
func msDosTimeToTime(dosDate, dosTime uint16) time.Time {
	return time.Date(
		int(dosDate>>9+1980),
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f*2),
		0,
		time.UTC,
	)
}

type readBuf []byte

func (b *readBuf) uint16() uint16 {
	v := binary.LittleEndian.Uint16(*b)
	*b = (*b)[2:]
	return v
}

func (b *readBuf) uint32() uint32 {
	v := binary.LittleEndian.Uint32(*b)
	*b = (*b)[4:]
	return v
}

func (b *readBuf) uint64() uint64 {
	v := binary.LittleEndian.Uint64(*b)
	*b = (*b)[8:]
	return v
}

func (b *readBuf) sub(n int) readBuf {
	b2 := (*b)[:n]
	*b = (*b)[n:]
	return b2
}
