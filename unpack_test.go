// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"hash/crc32"
	"io"
	"io/fs"
	"math"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	unpack "github.com/hashicorp/go-unpack"
)

func TestUnpackSample(t *testing.T) {
	dir := t.TempDir()
	archive := writeZip(t, dir, "sample.zip", sampleContents())
	dst := filepath.Join(dir, "out")

	var out bytes.Buffer
	res, err := unpack.Unpack(context.Background(), archive, dst, unpack.NewConfig(unpack.WithOutput(&out)))
	if err != nil {
		t.Fatalf("Unpack() failed: %s", err)
	}

	want := "Found 3 files in archive:\n" +
		"  index.html\n" +
		"  css/style.css\n" +
		"  js/app.js\n" +
		"\n" +
		"Successfully extracted 3 files to " + dst + "\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}

	if res.Extracted != 3 {
		t.Errorf("Extracted = %d, want 3", res.Extracted)
	}
	if res.Destination != dst {
		t.Errorf("Destination = %q, want %q", res.Destination, dst)
	}
	if res.Listing.Total != 3 || res.Listing.Remaining != 0 {
		t.Errorf("unexpected listing: %+v", res.Listing)
	}

	// every entry is extracted with identical content
	for _, c := range sampleContents() {
		data, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(c.Name)))
		if err != nil {
			t.Fatalf("cannot read extracted file: %s", err)
		}
		if !bytes.Equal(data, c.Content) {
			t.Errorf("%s: content = %q, want %q", c.Name, data, c.Content)
		}
	}
}

func TestUnpackPreviewLimit(t *testing.T) {
	dir := t.TempDir()
	archive := writeZip(t, dir, "numbered.zip", numberedContents(12))

	tests := []struct {
		name      string
		opts      []unpack.ConfigOption
		shown     int
		remaining string
	}{
		{
			name:      "default limit",
			shown:     10,
			remaining: "  ... and 2 more files\n",
		},
		{
			name:      "custom limit",
			opts:      []unpack.ConfigOption{unpack.WithPreviewLimit(15)},
			shown:     12,
			remaining: "",
		},
		{
			name:      "show all",
			opts:      []unpack.ConfigOption{unpack.WithPreviewLimit(0)},
			shown:     12,
			remaining: "",
		},
		{
			name:      "single name",
			opts:      []unpack.ConfigOption{unpack.WithPreviewLimit(1)},
			shown:     1,
			remaining: "  ... and 11 more files\n",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var out bytes.Buffer
			opts := append([]unpack.ConfigOption{
				unpack.WithOutput(&out),
				unpack.WithTarget(unpack.NewTargetMemory()),
			}, test.opts...)

			res, err := unpack.Unpack(context.Background(), archive, "out", unpack.NewConfig(opts...))
			if err != nil {
				t.Fatalf("Unpack() failed: %s", err)
			}

			var want strings.Builder
			want.WriteString("Found 12 files in archive:\n")
			for _, c := range numberedContents(12)[:test.shown] {
				want.WriteString("  " + c.Name + "\n")
			}
			want.WriteString(test.remaining)
			want.WriteString("\nSuccessfully extracted 12 files to out\n")

			if diff := cmp.Diff(want.String(), out.String()); diff != "" {
				t.Errorf("report mismatch (-want +got):\n%s", diff)
			}
			if len(res.Listing.Preview) != test.shown {
				t.Errorf("Preview has %d names, want %d", len(res.Listing.Preview), test.shown)
			}
		})
	}
}

func TestUnpackRoundTrip(t *testing.T) {
	contents := []archiveContent{
		{Name: "readme.md", Content: []byte("# nova"), Mode: 0644},
		{Name: "assets/", Mode: 0755, Filetype: fs.ModeDir},
		{Name: "assets/img/logo.svg", Content: []byte("<svg/>"), Mode: 0644},
		{Name: "assets/empty.txt", Mode: 0644},
		{Name: "deep/nested/path/file.txt", Content: bytes.Repeat([]byte("nova"), 1024), Mode: 0600},
		{Name: "stored.txt", Content: []byte("not compressed"), Mode: 0644, Method: zip.Store},
		{Name: "bzip2.txt", Content: bytes.Repeat([]byte("bzip2 "), 100), Mode: 0644, Method: methodBzip2},
		{Name: "zstd.txt", Content: bytes.Repeat([]byte("zstd "), 100), Mode: 0644, Method: methodZstd},
		{Name: "xz.txt", Content: bytes.Repeat([]byte("xz "), 100), Mode: 0644, Method: methodXz},
		{Name: "link", Linktarget: "readme.md", Mode: 0777, Filetype: fs.ModeSymlink},
	}
	archive := writeZip(t, t.TempDir(), "roundtrip.zip", contents)

	tm := unpack.NewTargetMemory()
	cfg := unpack.NewConfig(unpack.WithOutput(io.Discard), unpack.WithTarget(tm))
	res, err := unpack.Unpack(context.Background(), archive, "out", cfg)
	if err != nil {
		t.Fatalf("Unpack() failed: %s", err)
	}
	if res.Extracted != len(contents) {
		t.Errorf("Extracted = %d, want %d", res.Extracted, len(contents))
	}

	for _, c := range contents {
		name := path.Join("out", strings.TrimSuffix(c.Name, "/"))
		stat, err := tm.Lstat(name)
		if err != nil {
			t.Fatalf("%s missing: %s", c.Name, err)
		}
		if stat.Mode().Type() != c.Filetype {
			t.Errorf("%s: type = %v, want %v", c.Name, stat.Mode().Type(), c.Filetype)
		}
		if c.Filetype != 0 {
			continue
		}
		data, err := tm.ReadFile(name)
		if err != nil {
			t.Fatalf("cannot read %s: %s", c.Name, err)
		}
		if !bytes.Equal(data, c.Content) {
			t.Errorf("%s: content mismatch", c.Name)
		}
	}

	// the symlink resolves to its target
	data, err := tm.ReadFile("out/link")
	if err != nil {
		t.Fatalf("cannot read through symlink: %s", err)
	}
	if string(data) != "# nova" {
		t.Errorf("symlink content = %q", data)
	}
}

func TestUnpackOverwrite(t *testing.T) {
	dir := t.TempDir()
	contents := []archiveContent{
		{Name: "index.html", Content: []byte("original"), Mode: 0644},
		{Name: "readonly.txt", Content: []byte("read only"), Mode: 0444},
	}
	archive := writeZip(t, dir, "site.zip", contents)
	dst := filepath.Join(dir, "out")
	cfg := unpack.NewConfig(unpack.WithOutput(io.Discard))

	if _, err := unpack.Unpack(context.Background(), archive, dst, cfg); err != nil {
		t.Fatalf("first Unpack() failed: %s", err)
	}

	// local modification is replaced by the second extraction
	if err := os.WriteFile(filepath.Join(dst, "index.html"), []byte("modified"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := unpack.Unpack(context.Background(), archive, dst, cfg); err != nil {
		t.Fatalf("second Unpack() failed: %s", err)
	}
	data, err := os.ReadFile(filepath.Join(dst, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "original" {
		t.Errorf("content after overwrite = %q, want %q", data, "original")
	}

	// without overwrite the existing file is a conflict
	_, err = unpack.Unpack(context.Background(), archive, dst, unpack.NewConfig(
		unpack.WithOutput(io.Discard),
		unpack.WithOverwrite(false),
	))
	if !errors.Is(err, unpack.ErrExtraction) {
		t.Errorf("Unpack() without overwrite = %v, want %v", err, unpack.ErrExtraction)
	}
}

func TestUnpackCompressionMethods(t *testing.T) {
	content := bytes.Repeat([]byte("compressed nova content "), 64)
	tests := []struct {
		name   string
		method uint16
	}{
		{name: "store", method: zip.Store},
		{name: "deflate", method: zip.Deflate},
		{name: "bzip2", method: methodBzip2},
		{name: "zstd", method: methodZstd},
		{name: "xz", method: methodXz},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := packZip(t, []archiveContent{{Name: "data.txt", Content: content, Mode: 0644, Method: test.method}})
			if !bytes.HasPrefix(p, []byte("PK\x03\x04")) {
				t.Fatalf("archive does not start with a local file header: % x", p[:8])
			}
			archive := filepath.Join(t.TempDir(), test.name+".zip")
			if err := os.WriteFile(archive, p, 0644); err != nil {
				t.Fatal(err)
			}

			tm := unpack.NewTargetMemory()
			cfg := unpack.NewConfig(unpack.WithOutput(io.Discard), unpack.WithTarget(tm))
			if _, err := unpack.Unpack(context.Background(), archive, "out", cfg); err != nil {
				t.Fatalf("Unpack() failed: %s", err)
			}
			data, err := tm.ReadFile("out/data.txt")
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(data, content) {
				t.Errorf("content mismatch after %s decompression", test.name)
			}
		})
	}
}

func TestUnpackOversizedEntry(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "small.txt", Method: zip.Store})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("small")); err != nil {
		t.Fatal(err)
	}

	// the header claims more than int64 can hold
	data := []byte("huge")
	w, err = zw.CreateRaw(&zip.FileHeader{
		Name:               "huge.txt",
		Method:             zip.Store,
		CRC32:              crc32.ChecksumIEEE(data),
		CompressedSize64:   uint64(len(data)),
		UncompressedSize64: math.MaxUint64,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	archive := filepath.Join(t.TempDir(), "oversized.zip")
	if err := os.WriteFile(archive, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	tm := unpack.NewTargetMemory()
	var td *unpack.TelemetryData
	cfg := unpack.NewConfig(
		unpack.WithOutput(io.Discard),
		unpack.WithTarget(tm),
		unpack.WithTelemetryHook(func(_ context.Context, d *unpack.TelemetryData) { td = d }),
	)
	_, err = unpack.Unpack(context.Background(), archive, "out", cfg)
	if !errors.Is(err, unpack.ErrMaxExtractionSizeExceeded) {
		t.Fatalf("Unpack() error = %v, want %v", err, unpack.ErrMaxExtractionSizeExceeded)
	}
	if td == nil || td.ExtractedFiles != 1 {
		t.Errorf("telemetry = %v, want one extracted file", td)
	}
	if _, err := tm.Lstat("out/huge.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("oversized entry was created: %v", err)
	}
}

func TestUnpackFailures(t *testing.T) {
	tests := []struct {
		name     string
		contents []archiveContent
		opts     []unpack.ConfigOption
		wantErr  bool
		wantIs   error
	}{
		{
			name:     "path traversal in file name",
			contents: []archiveContent{{Name: "../outside.txt", Content: []byte("x"), Mode: 0644}},
			wantErr:  true,
		},
		{
			name:     "path traversal in directory name",
			contents: []archiveContent{{Name: "sub/../../outside/", Mode: 0755, Filetype: fs.ModeDir}},
			wantErr:  true,
		},
		{
			name:     "absolute name is extracted below destination",
			contents: []archiveContent{{Name: "/abs/file.txt", Content: []byte("x"), Mode: 0644}},
		},
		{
			name:     "too many files",
			contents: numberedContents(5),
			opts:     []unpack.ConfigOption{unpack.WithMaxFiles(4)},
			wantErr:  true,
			wantIs:   unpack.ErrMaxFilesExceeded,
		},
		{
			name:     "file limit disabled",
			contents: numberedContents(5),
			opts:     []unpack.ConfigOption{unpack.WithMaxFiles(-1)},
		},
		{
			name:     "extraction too large",
			contents: []archiveContent{{Name: "big.txt", Content: bytes.Repeat([]byte("x"), 1024), Mode: 0644}},
			opts:     []unpack.ConfigOption{unpack.WithMaxExtractionSize(512)},
			wantErr:  true,
			wantIs:   unpack.ErrMaxExtractionSizeExceeded,
		},
		{
			name:     "extraction size limit disabled",
			contents: []archiveContent{{Name: "big.txt", Content: bytes.Repeat([]byte("x"), 1024), Mode: 0644}},
			opts:     []unpack.ConfigOption{unpack.WithMaxExtractionSize(-1)},
		},
		{
			name:     "symlink with absolute target",
			contents: []archiveContent{{Name: "link", Linktarget: "/etc/passwd", Filetype: fs.ModeSymlink, Mode: 0777}},
			wantErr:  true,
		},
		{
			name:     "symlink target with path traversal",
			contents: []archiveContent{{Name: "link", Linktarget: "../../etc/passwd", Filetype: fs.ModeSymlink, Mode: 0777}},
			wantErr:  true,
		},
		{
			name:     "symlink name with path traversal",
			contents: []archiveContent{{Name: "../link", Linktarget: "target", Filetype: fs.ModeSymlink, Mode: 0777}},
			wantErr:  true,
		},
		{
			name:     "denied symlink",
			contents: []archiveContent{{Name: "link", Linktarget: "target", Filetype: fs.ModeSymlink, Mode: 0777}},
			opts:     []unpack.ConfigOption{unpack.WithDenySymlinkExtraction(true)},
			wantErr:  true,
			wantIs:   unpack.ErrUnsupportedFile,
		},
		{
			name:     "denied symlink is skipped",
			contents: []archiveContent{{Name: "link", Linktarget: "target", Filetype: fs.ModeSymlink, Mode: 0777}},
			opts: []unpack.ConfigOption{
				unpack.WithDenySymlinkExtraction(true),
				unpack.WithContinueOnUnsupportedFiles(true),
			},
		},
		{
			name:     "named pipe",
			contents: []archiveContent{{Name: "fifo", Filetype: fs.ModeNamedPipe, Mode: 0644}},
			wantErr:  true,
			wantIs:   unpack.ErrUnsupportedFile,
		},
		{
			name:     "named pipe is skipped",
			contents: []archiveContent{{Name: "fifo", Filetype: fs.ModeNamedPipe, Mode: 0644}},
			opts:     []unpack.ConfigOption{unpack.WithContinueOnUnsupportedFiles(true)},
		},
		{
			name:     "unsupported compression method",
			contents: []archiveContent{{Name: "aes.bin", Content: []byte("encrypted"), Mode: 0644, Method: 99}},
			wantErr:  true,
			wantIs:   zip.ErrAlgorithm,
		},
		{
			name:     "missing destination is not created",
			contents: sampleContents(),
			opts:     []unpack.ConfigOption{unpack.WithCreateDestination(false)},
			wantErr:  true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			archive := writeZip(t, t.TempDir(), "test.zip", test.contents)
			opts := append([]unpack.ConfigOption{
				unpack.WithOutput(io.Discard),
				unpack.WithTarget(unpack.NewTargetMemory()),
			}, test.opts...)

			_, err := unpack.Unpack(context.Background(), archive, "out", unpack.NewConfig(opts...))
			if (err != nil) != test.wantErr {
				t.Fatalf("Unpack() error = %v, wantErr %v", err, test.wantErr)
			}
			if err == nil {
				return
			}
			if !errors.Is(err, unpack.ErrExtraction) {
				t.Errorf("Unpack() error = %v, want wrapped %v", err, unpack.ErrExtraction)
			}
			if test.wantIs != nil && !errors.Is(err, test.wantIs) {
				t.Errorf("Unpack() error = %v, want wrapped %v", err, test.wantIs)
			}
		})
	}
}

func TestUnpackAbsoluteName(t *testing.T) {
	archive := writeZip(t, t.TempDir(), "abs.zip", []archiveContent{
		{Name: "/abs/file.txt", Content: []byte("inside"), Mode: 0644},
	})
	tm := unpack.NewTargetMemory()
	cfg := unpack.NewConfig(unpack.WithOutput(io.Discard), unpack.WithTarget(tm))
	if _, err := unpack.Unpack(context.Background(), archive, "out", cfg); err != nil {
		t.Fatalf("Unpack() failed: %s", err)
	}
	data, err := tm.ReadFile("out/abs/file.txt")
	if err != nil {
		t.Fatalf("file not extracted below destination: %s", err)
	}
	if string(data) != "inside" {
		t.Errorf("content = %q, want %q", data, "inside")
	}
}

func TestUnpackDestination(t *testing.T) {
	archive := writeZip(t, t.TempDir(), "sample.zip", sampleContents())

	t.Run("empty destination is working directory", func(t *testing.T) {
		tm := unpack.NewTargetMemory()
		var out bytes.Buffer
		res, err := unpack.Unpack(context.Background(), archive, "", unpack.NewConfig(unpack.WithOutput(&out), unpack.WithTarget(tm)))
		if err != nil {
			t.Fatalf("Unpack() failed: %s", err)
		}
		if res.Destination != "." {
			t.Errorf("Destination = %q, want %q", res.Destination, ".")
		}
		if _, err := tm.ReadFile("css/style.css"); err != nil {
			t.Errorf("file not extracted to working directory: %s", err)
		}
		if !strings.HasSuffix(out.String(), "Successfully extracted 3 files to .\n") {
			t.Errorf("unexpected report: %q", out.String())
		}
	})

	t.Run("destination is a file", func(t *testing.T) {
		tm := unpack.NewTargetMemory()
		if _, err := tm.CreateFile("out", strings.NewReader("file"), 0644, false, -1); err != nil {
			t.Fatal(err)
		}
		_, err := unpack.Unpack(context.Background(), archive, "out", unpack.NewConfig(unpack.WithOutput(io.Discard), unpack.WithTarget(tm)))
		if !errors.Is(err, unpack.ErrExtraction) {
			t.Errorf("Unpack() into a file = %v, want %v", err, unpack.ErrExtraction)
		}
	})

	t.Run("nested destination is created", func(t *testing.T) {
		tm := unpack.NewTargetMemory()
		_, err := unpack.Unpack(context.Background(), archive, "a/b/c", unpack.NewConfig(unpack.WithOutput(io.Discard), unpack.WithTarget(tm)))
		if err != nil {
			t.Fatalf("Unpack() failed: %s", err)
		}
		if _, err := tm.ReadFile("a/b/c/js/app.js"); err != nil {
			t.Errorf("file not extracted: %s", err)
		}
	})
}

func TestUnpackOpenFailures(t *testing.T) {
	dir := t.TempDir()
	notZip := filepath.Join(dir, "not.zip")
	if err := os.WriteFile(notZip, []byte("foobar content"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		archive string
		wantIs  error
	}{
		{
			name:    "nonexistent archive",
			archive: filepath.Join(dir, "nova-landing.zip"),
			wantIs:  fs.ErrNotExist,
		},
		{
			name:    "not a zip archive",
			archive: notZip,
			wantIs:  zip.ErrFormat,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var out bytes.Buffer
			var td *unpack.TelemetryData
			cfg := unpack.NewConfig(
				unpack.WithOutput(&out),
				unpack.WithTarget(unpack.NewTargetMemory()),
				unpack.WithTelemetryHook(func(_ context.Context, d *unpack.TelemetryData) { td = d }),
			)

			res, err := unpack.Unpack(context.Background(), test.archive, "out", cfg)
			if !errors.Is(err, unpack.ErrOpenArchive) {
				t.Fatalf("Unpack() error = %v, want %v", err, unpack.ErrOpenArchive)
			}
			if !errors.Is(err, test.wantIs) {
				t.Errorf("Unpack() error = %v, want wrapped %v", err, test.wantIs)
			}
			if res != nil {
				t.Errorf("Unpack() returned a result on failure")
			}
			if out.Len() != 0 {
				t.Errorf("Unpack() reported %q before failing to open", out.String())
			}
			if td == nil || td.ExtractionErrors != 1 {
				t.Errorf("telemetry hook not called with the open error: %v", td)
			}

			// the catch-and-report variant prints the cause
			out.Reset()
			if unpack.TryUnpack(context.Background(), test.archive, "out", cfg) {
				t.Fatalf("TryUnpack() succeeded")
			}
			want := "Error extracting zip: " + err.Error() + "\n"
			if out.String() != want {
				t.Errorf("TryUnpack() output = %q, want %q", out.String(), want)
			}
		})
	}
}

func TestTryUnpack(t *testing.T) {
	archive := writeZip(t, t.TempDir(), "sample.zip", sampleContents())
	var out bytes.Buffer
	cfg := unpack.NewConfig(unpack.WithOutput(&out), unpack.WithTarget(unpack.NewTargetMemory()))

	if !unpack.TryUnpack(context.Background(), archive, "out", cfg) {
		t.Fatalf("TryUnpack() failed: %s", out.String())
	}
	if !strings.Contains(out.String(), "Successfully extracted 3 files to out") {
		t.Errorf("unexpected report: %q", out.String())
	}

	// extraction errors are reported after the listing
	out.Reset()
	traversal := writeZip(t, t.TempDir(), "traversal.zip", []archiveContent{
		{Name: "../evil.txt", Content: []byte("x"), Mode: 0644},
	})
	if unpack.TryUnpack(context.Background(), traversal, "out", cfg) {
		t.Fatalf("TryUnpack() of malicious archive succeeded")
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if lines[0] != "Found 1 files in archive:" {
		t.Errorf("first line = %q", lines[0])
	}
	if last := lines[len(lines)-1]; !strings.HasPrefix(last, "Error extracting zip: extraction failed: ") {
		t.Errorf("last line = %q", last)
	}
}

func TestUnpackContextCanceled(t *testing.T) {
	archive := writeZip(t, t.TempDir(), "sample.zip", sampleContents())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tm := unpack.NewTargetMemory()
	_, err := unpack.Unpack(ctx, archive, "out", unpack.NewConfig(unpack.WithOutput(io.Discard), unpack.WithTarget(tm)))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Unpack() error = %v, want %v", err, context.Canceled)
	}
	if _, err := tm.Lstat("out/index.html"); err == nil {
		t.Errorf("entry extracted after cancellation")
	}
}

func TestUnpackTelemetry(t *testing.T) {
	contents := append(sampleContents(),
		archiveContent{Name: "lib/", Mode: 0755, Filetype: fs.ModeDir},
		archiveContent{Name: "latest", Linktarget: "index.html", Mode: 0777, Filetype: fs.ModeSymlink},
		archiveContent{Name: "fifo", Mode: 0644, Filetype: fs.ModeNamedPipe},
	)
	p := packZip(t, contents)
	archive := filepath.Join(t.TempDir(), "telemetry.zip")
	if err := os.WriteFile(archive, p, 0644); err != nil {
		t.Fatal(err)
	}

	var td *unpack.TelemetryData
	cfg := unpack.NewConfig(
		unpack.WithOutput(io.Discard),
		unpack.WithTarget(unpack.NewTargetMemory()),
		unpack.WithContinueOnUnsupportedFiles(true),
		unpack.WithTelemetryHook(func(_ context.Context, d *unpack.TelemetryData) { td = d }),
	)
	res, err := unpack.Unpack(context.Background(), archive, "out", cfg)
	if err != nil {
		t.Fatalf("Unpack() failed: %s", err)
	}
	if td == nil {
		t.Fatalf("telemetry hook not called")
	}
	if td != res.Telemetry {
		t.Errorf("hook and result carry different telemetry data")
	}

	var size int64
	for _, c := range sampleContents() {
		size += int64(len(c.Content))
	}
	want := unpack.TelemetryData{
		ArchiveEntries:      6,
		ExtractedDirs:       1,
		ExtractedFiles:      3,
		ExtractedSymlinks:   1,
		ExtractionSize:      size,
		InputSize:           int64(len(p)),
		UnsupportedFiles:    1,
		LastUnsupportedFile: "fifo",
	}
	got := *td
	got.ExtractionDuration = 0
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("telemetry mismatch (-want +got):\n%s", diff)
	}
	if res.Extracted != 5 {
		t.Errorf("Extracted = %d, want 5", res.Extracted)
	}
	// the skipped fifo is listed but not counted as extracted
	if res.Listing.Total != 6 {
		t.Errorf("Listing.Total = %d, want 6", res.Listing.Total)
	}
}

func TestUnpackFileAttributes(t *testing.T) {
	modTime := time.Date(2024, 2, 29, 12, 30, 0, 0, time.UTC)
	contents := []archiveContent{
		{Name: "bin/", Mode: 0700, Filetype: fs.ModeDir, ModTime: modTime},
		{Name: "bin/run.sh", Content: []byte("#!/bin/sh"), Mode: 0755, ModTime: modTime},
		{Name: "readonly.txt", Content: []byte("ro"), Mode: 0444, ModTime: modTime},
		{Name: "windows.txt", Content: []byte("fat"), NoAttrs: true, ModTime: modTime},
	}
	archive := writeZip(t, t.TempDir(), "attrs.zip", contents)

	tests := []struct {
		name      string
		opts      []unpack.ConfigOption
		wantModes map[string]fs.FileMode
		keepTimes bool
	}{
		{
			name: "attributes restored",
			wantModes: map[string]fs.FileMode{
				"out/bin":          fs.ModeDir | 0700,
				"out/bin/run.sh":   0755,
				"out/readonly.txt": 0444,
				"out/windows.txt":  0640,
			},
			keepTimes: true,
		},
		{
			name: "attributes dropped",
			opts: []unpack.ConfigOption{unpack.WithDropFileAttributes(true)},
			wantModes: map[string]fs.FileMode{
				"out/bin":          fs.ModeDir | 0750,
				"out/bin/run.sh":   0640,
				"out/readonly.txt": 0640,
				"out/windows.txt":  0640,
			},
		},
		{
			name: "custom default modes",
			opts: []unpack.ConfigOption{
				unpack.WithDropFileAttributes(true),
				unpack.WithCustomCreateDirMode(0755),
				unpack.WithCustomDecompressFileMode(0600),
			},
			wantModes: map[string]fs.FileMode{
				"out/bin":          fs.ModeDir | 0755,
				"out/bin/run.sh":   0600,
				"out/readonly.txt": 0600,
				"out/windows.txt":  0600,
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tm := unpack.NewTargetMemory()
			opts := append([]unpack.ConfigOption{unpack.WithOutput(io.Discard), unpack.WithTarget(tm)}, test.opts...)
			if _, err := unpack.Unpack(context.Background(), archive, "out", unpack.NewConfig(opts...)); err != nil {
				t.Fatalf("Unpack() failed: %s", err)
			}
			for name, want := range test.wantModes {
				stat, err := tm.Lstat(name)
				if err != nil {
					t.Fatalf("Lstat(%s) failed: %s", name, err)
				}
				if stat.Mode() != want {
					t.Errorf("%s: mode = %v, want %v", name, stat.Mode(), want)
				}
				if stat.ModTime().Equal(modTime) != test.keepTimes {
					t.Errorf("%s: modification time = %v, restored %v", name, stat.ModTime(), test.keepTimes)
				}
			}
		})
	}
}

func TestUnpackArchiveFromReader(t *testing.T) {
	p := packZip(t, sampleContents())
	cfg := unpack.NewConfig(unpack.WithOutput(io.Discard), unpack.WithTarget(unpack.NewTargetMemory()))

	a, err := unpack.OpenArchiveReader(io.MultiReader(bytes.NewReader(p)), cfg)
	if err != nil {
		t.Fatalf("OpenArchiveReader() failed: %s", err)
	}
	defer a.Close()

	res, err := unpack.UnpackArchive(context.Background(), a, "out", cfg)
	if err != nil {
		t.Fatalf("UnpackArchive() failed: %s", err)
	}
	if res.Extracted != 3 {
		t.Errorf("Extracted = %d, want 3", res.Extracted)
	}
	if res.Telemetry.InputSize != int64(len(p)) {
		t.Errorf("InputSize = %d, want %d", res.Telemetry.InputSize, len(p))
	}
}
