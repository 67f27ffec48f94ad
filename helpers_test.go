// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack_test

import (
	"archive/zip"
	"bytes"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// zip compression methods beside store and deflate
const (
	methodBzip2 uint16 = 12
	methodZstd  uint16 = 93
	methodXz    uint16 = 95
)

// archiveContent describes an entry that is packed with packZip
type archiveContent struct {
	Name       string
	Content    []byte
	Linktarget string
	Mode       fs.FileMode
	Filetype   fs.FileMode
	ModTime    time.Time
	Method     uint16
	NoAttrs    bool // pack without unix attributes, like a zip created on windows
}

// packZip creates a zip archive with the given entries in that order
func packZip(t *testing.T, contents []archiveContent) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(methodBzip2, func(w io.Writer) (io.WriteCloser, error) {
		return bzip2.NewWriter(w, &bzip2.WriterConfig{})
	})
	zw.RegisterCompressor(methodZstd, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w)
	})
	zw.RegisterCompressor(methodXz, func(w io.Writer) (io.WriteCloser, error) {
		return &xzEntryWriter{w: w}, nil
	})

	for _, c := range contents {
		data := c.Content
		if c.Filetype == fs.ModeSymlink {
			data = []byte(c.Linktarget)
		}

		header := &zip.FileHeader{Name: c.Name, Method: c.Method}
		if c.Method == 0 {
			header.Method = zip.Deflate
		}
		if c.Filetype == fs.ModeDir {
			header.Method = zip.Store
		}
		if !c.ModTime.IsZero() {
			header.Modified = c.ModTime
		}
		if !c.NoAttrs {
			header.SetMode(c.Filetype | c.Mode)
		}

		// unknown methods are written raw, so reading them fails
		if !knownMethod(header.Method) {
			header.CRC32 = crc32.ChecksumIEEE(data)
			header.CompressedSize64 = uint64(len(data))
			header.UncompressedSize64 = uint64(len(data))
			w, err := zw.CreateRaw(header)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := w.Write(data); err != nil {
				t.Fatal(err)
			}
			continue
		}

		w, err := zw.CreateHeader(header)
		if err != nil {
			t.Fatal(err)
		}
		if len(data) > 0 {
			if _, err := w.Write(data); err != nil {
				t.Fatal(err)
			}
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// xzEntryWriter starts the xz stream on first use. zip.Writer builds the
// compressor before it writes the local file header, and xz.NewWriter writes
// the stream header right away.
type xzEntryWriter struct {
	w  io.Writer
	xw *xz.Writer
}

func (x *xzEntryWriter) init() error {
	if x.xw != nil {
		return nil
	}
	xw, err := xz.NewWriter(x.w)
	if err != nil {
		return err
	}
	x.xw = xw
	return nil
}

func (x *xzEntryWriter) Write(p []byte) (int, error) {
	if err := x.init(); err != nil {
		return 0, err
	}
	return x.xw.Write(p)
}

func (x *xzEntryWriter) Close() error {
	if err := x.init(); err != nil {
		return err
	}
	return x.xw.Close()
}

// knownMethod returns true if packZip has a compressor for method
func knownMethod(method uint16) bool {
	switch method {
	case zip.Store, zip.Deflate, methodBzip2, methodZstd, methodXz:
		return true
	}
	return false
}

// writeZip packs contents into name below dir and returns the path
func writeZip(t *testing.T, dir string, name string, contents []archiveContent) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, packZip(t, contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// sampleContents are the entries of a small static website
func sampleContents() []archiveContent {
	return []archiveContent{
		{Name: "index.html", Content: []byte("<html><body>nova</body></html>"), Mode: 0644},
		{Name: "css/style.css", Content: []byte("body { margin: 0; }"), Mode: 0644},
		{Name: "js/app.js", Content: []byte("console.log('nova');"), Mode: 0644},
	}
}

// numberedContents returns n small files named file-00.txt, file-01.txt and so on
func numberedContents(n int) []archiveContent {
	contents := make([]archiveContent, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("file-%02d.txt", i)
		contents = append(contents, archiveContent{Name: name, Content: []byte(name), Mode: 0644})
	}
	return contents
}
