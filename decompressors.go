// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"archive/zip"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression methods from the PKWARE APPNOTE, section 4.4.5, that are
// not covered by archive/zip itself.
const (
	methodBzip2 uint16 = 12
	methodZstd  uint16 = 93
	methodXz    uint16 = 95
)

// registerDecompressors registers the additional compression methods on zr. The
// registration is local to zr, so no global state of archive/zip is modified.
// Entries with any other method fail with [zip.ErrAlgorithm] when opened.
func registerDecompressors(zr *zip.Reader) {
	zr.RegisterDecompressor(zip.Deflate, decompressFlate)
	zr.RegisterDecompressor(methodBzip2, decompressBzip2)
	zr.RegisterDecompressor(methodZstd, decompressZstd)
	zr.RegisterDecompressor(methodXz, decompressXz)
}

func decompressFlate(r io.Reader) io.ReadCloser {
	return flate.NewReader(r)
}

func decompressBzip2(r io.Reader) io.ReadCloser {
	br, err := bzip2.NewReader(r, &bzip2.ReaderConfig{})
	if err != nil {
		return &errReadCloser{err: err}
	}
	return br
}

func decompressZstd(r io.Reader) io.ReadCloser {
	// a single decoder goroutine, the stream is consumed sequentially anyway
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return &errReadCloser{err: err}
	}
	return dec.IOReadCloser()
}

func decompressXz(r io.Reader) io.ReadCloser {
	xr, err := xz.NewReader(r)
	if err != nil {
		return &errReadCloser{err: err}
	}
	return &noopReaderCloser{xr}
}

// errReadCloser reports a failed decompressor setup on the first read.
type errReadCloser struct {
	err error
}

func (e *errReadCloser) Read([]byte) (int, error) {
	return 0, e.err
}

func (e *errReadCloser) Close() error {
	return nil
}
