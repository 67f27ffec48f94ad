// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"math"
	"time"
)

// archiveWalker is an interface that represents a file walker in an archive
type archiveWalker interface {
	Next() (archiveEntry, error)
}

// archiveEntry is an interface that represents a file in an archive
type archiveEntry interface {
	IsRegular() bool
	IsDir() bool
	IsSymlink() bool
	Linkname() (string, error)
	Mode() fs.FileMode
	ModTime() time.Time
	Name() string
	Open() (io.ReadCloser, error)
	Size() int64
}

// zipWalker walks the entries of a zip archive in central directory order
type zipWalker struct {
	zr *zip.Reader
	fp int
}

// Next returns the next entry in the zip archive or io.EOF
func (z *zipWalker) Next() (archiveEntry, error) {
	if z.fp >= len(z.zr.File) {
		return nil, io.EOF
	}
	defer func() { z.fp++ }()
	return &zipEntry{z.zr.File[z.fp]}, nil
}

// zipEntry is an entry in a zip archive
type zipEntry struct {
	zf *zip.File
}

// Name returns the name of the entry
func (z *zipEntry) Name() string {
	return z.zf.FileHeader.Name
}

// Size returns the uncompressed size of the entry as stated in the header.
// Sizes beyond the int64 range are reported as math.MaxInt64.
func (z *zipEntry) Size() int64 {
	if z.zf.FileHeader.UncompressedSize64 > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(z.zf.FileHeader.UncompressedSize64)
}

// creator systems of the zip "version made by" field with unix permission bits
const (
	creatorUnix   = 3
	creatorMacOSX = 19
)

// Mode returns the mode of the entry. Permission bits are only reported if the
// archive was created on a system that records them, otherwise they are zero.
func (z *zipEntry) Mode() fs.FileMode {
	mode := z.zf.FileHeader.Mode()
	switch z.zf.FileHeader.CreatorVersion >> 8 {
	case creatorUnix, creatorMacOSX:
		return mode
	}
	// msdos attributes only carry a read-only flag
	return mode.Type()
}

// ModTime returns the modification time of the entry
func (z *zipEntry) ModTime() time.Time {
	return z.zf.FileHeader.FileInfo().ModTime()
}

// maxLinknameLength caps the content that is read as symlink target
const maxLinknameLength = 4096

// Linkname returns the target of a symlink entry, which is stored as the entry content
func (z *zipEntry) Linkname() (string, error) {
	rc, err := z.zf.Open()
	if err != nil {
		return "", fmt.Errorf("cannot open symlink entry: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxLinknameLength+1))
	if err != nil {
		return "", fmt.Errorf("cannot read symlink target: %w", err)
	}
	if len(data) > maxLinknameLength {
		return "", fmt.Errorf("symlink target exceeds %d bytes", maxLinknameLength)
	}
	return string(data), nil
}

// IsRegular returns true if the entry is a regular file
func (z *zipEntry) IsRegular() bool {
	return z.zf.FileHeader.Mode().Type() == 0
}

// IsDir returns true if the entry is a directory
func (z *zipEntry) IsDir() bool {
	return z.zf.FileHeader.Mode().Type() == fs.ModeDir
}

// IsSymlink returns true if the entry is a symlink
func (z *zipEntry) IsSymlink() bool {
	return z.zf.FileHeader.Mode().Type() == fs.ModeSymlink
}

// Open returns a reader for the decompressed content of the entry
func (z *zipEntry) Open() (io.ReadCloser, error) {
	return z.zf.Open()
}
