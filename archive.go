// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Archive is a read-only handle on an opened zip archive. It owns the underlying
// file until [Archive.Close] is called. The handle is only valid within one
// open, extract and close cycle; after Close, extraction fails with [fs.ErrClosed].
type Archive struct {
	name    string
	zr      *zip.Reader
	size    int64
	closer  io.Closer
	cleanup func() error
	closed  bool
}

// OpenArchive opens the zip archive at path and reads its central directory.
// Errors wrap [ErrOpenArchive].
func OpenArchive(path string, cfg *Config) (*Archive, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenArchive, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrOpenArchive, err)
	}
	if stat.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrOpenArchive, path)
	}

	a, err := newArchive(path, f, stat.Size(), cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.closer = f
	return a, nil
}

// OpenArchiveReader reads a zip archive from src. Since the central directory sits
// at the end of a zip archive, src is cached first, on disk by default or in memory
// if [WithCacheInMemory] is set. The cache is bounded by [Config.MaxInputSize] and
// released by [Archive.Close]. Errors wrap [ErrOpenArchive].
func OpenArchiveReader(src io.Reader, cfg *Config) (*Archive, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	// an in-memory reader needs no cache
	if br, ok := src.(*bytes.Reader); ok {
		return newArchive("", br, br.Size(), cfg)
	}

	limitedReader := newLimitErrorReader(src, cfg.MaxInputSize())

	if cfg.CacheInMemory() {
		data, err := io.ReadAll(limitedReader)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot cache archive in memory: %w", ErrOpenArchive, err)
		}
		return newArchive("", bytes.NewReader(data), int64(len(data)), cfg)
	}

	tmpFile, err := os.CreateTemp("", "gounpack-*.zip")
	if err != nil {
		return nil, fmt.Errorf("%w: cannot create cache file: %w", ErrOpenArchive, err)
	}
	removeTmpFile := func() error {
		return os.Remove(tmpFile.Name())
	}
	if _, err := io.Copy(tmpFile, limitedReader); err != nil {
		tmpFile.Close()
		removeTmpFile()
		return nil, fmt.Errorf("%w: cannot cache archive on disk: %w", ErrOpenArchive, err)
	}
	cfg.Logger().Debug("cached archive on disk", "path", tmpFile.Name(), "size", limitedReader.ReadBytes())

	a, err := newArchive("", tmpFile, limitedReader.ReadBytes(), cfg)
	if err != nil {
		tmpFile.Close()
		removeTmpFile()
		return nil, err
	}
	a.closer = tmpFile
	a.cleanup = removeTmpFile
	return a, nil
}

// newArchive checks the input size and reads the central directory from ra
func newArchive(name string, ra io.ReaderAt, size int64, cfg *Config) (*Archive, error) {
	if cfg.MaxInputSize() != -1 && size > cfg.MaxInputSize() {
		return nil, fmt.Errorf("%w: %w", ErrOpenArchive, ErrMaxInputSizeExceeded)
	}

	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenArchive, err)
	}
	registerDecompressors(zr)

	cfg.Logger().Debug("opened archive", "name", name, "size", size, "entries", len(zr.File))
	return &Archive{name: name, zr: zr, size: size}, nil
}

// WithArchive opens the archive at path, calls fn with it and closes it afterwards,
// regardless of how fn returns. An error of fn takes precedence over a close error.
func WithArchive(path string, cfg *Config, fn func(*Archive) error) (err error) {
	a, err := OpenArchive(path, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("cannot close archive: %w", cerr)
		}
	}()
	return fn(a)
}

// Name returns the path the archive was opened from. It is empty for streams.
func (a *Archive) Name() string {
	return a.name
}

// Names returns the entry names in central directory order. It returns nil
// once the archive is closed.
func (a *Archive) Names() []string {
	if a.closed {
		return nil
	}
	names := make([]string, 0, len(a.zr.File))
	for _, f := range a.zr.File {
		names = append(names, f.Name)
	}
	return names
}

// Len returns the number of entries in the central directory.
func (a *Archive) Len() int {
	if a.closed {
		return 0
	}
	return len(a.zr.File)
}

// Size returns the size of the archive in bytes.
func (a *Archive) Size() int64 {
	return a.size
}

// Close releases the underlying file. Calling Close more than once is a no-op.
func (a *Archive) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	var err error
	if a.closer != nil {
		err = a.closer.Close()
	}
	if a.cleanup != nil {
		if cerr := a.cleanup(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// walker returns a walker over all entries
func (a *Archive) walker() (archiveWalker, error) {
	if a.closed {
		return nil, fmt.Errorf("cannot walk archive: %w", fs.ErrClosed)
	}
	return &zipWalker{zr: a.zr}, nil
}
