// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Result summarizes a successful extraction.
type Result struct {
	// Listing is the preview that was reported before the extraction
	Listing Listing

	// Extracted is the number of extracted files, directories and symlinks. Entries
	// skipped by [WithContinueOnUnsupportedFiles] are not counted, so it can be lower
	// than Listing.Total.
	Extracted int

	// Destination is the directory the archive was extracted to
	Destination string

	// Telemetry holds the telemetry data of the extraction
	Telemetry *TelemetryData
}

// Unpack opens the zip archive at archivePath, reports its entries to [Config.Output]
// and extracts all of them to dst. An empty dst is the current working directory.
//
// Every failure is returned: errors opening the archive wrap [ErrOpenArchive], errors
// during the extraction wrap [ErrExtraction]. The archive is closed in either case.
func Unpack(ctx context.Context, archivePath string, dst string, cfg *Config) (*Result, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	var res *Result
	err := WithArchive(archivePath, cfg, func(a *Archive) error {
		var err error
		res, err = UnpackArchive(ctx, a, dst, cfg)
		return err
	})

	// the telemetry hook of UnpackArchive has not seen this failure
	if errors.Is(err, ErrOpenArchive) {
		cfg.Logger().Error("cannot open archive", "path", archivePath, "err", err)
		td := &TelemetryData{}
		captureError(td, err)
		cfg.TelemetryHook()(ctx, td)
	}
	return res, err
}

// UnpackArchive reports the entries of the opened archive a to [Config.Output] and
// extracts all of them to dst. An empty dst is the current working directory. The
// caller stays responsible for closing a. Errors wrap [ErrExtraction].
func UnpackArchive(ctx context.Context, a *Archive, dst string, cfg *Config) (*Result, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if len(dst) == 0 {
		dst = "."
	}

	// prepare telemetry data collection and emit
	td := &TelemetryData{InputSize: a.Size(), ArchiveEntries: int64(a.Len())}
	defer cfg.TelemetryHook()(ctx, td)
	defer captureExtractionDuration(td, now())

	listing := NewListing(a.Names(), cfg.PreviewLimit())
	if _, err := listing.WriteTo(cfg.Output()); err != nil {
		cfg.Logger().Warn("cannot write listing", "err", err)
	}

	cfg.Logger().Info("extracting zip", "archive", a.Name(), "destination", dst)
	if err := extract(ctx, cfg.Target(), dst, a, cfg, td); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	res := &Result{
		Listing:     listing,
		Extracted:   int(td.ExtractedFiles + td.ExtractedDirs + td.ExtractedSymlinks),
		Destination: dst,
		Telemetry:   td,
	}
	fmt.Fprintf(cfg.Output(), "\nSuccessfully extracted %d files to %s\n", res.Extracted, dst)
	return res, nil
}

// TryUnpack behaves like [Unpack], but reports a failure as message on
// [Config.Output] instead of returning it. It returns true on success.
func TryUnpack(ctx context.Context, archivePath string, dst string, cfg *Config) bool {
	if cfg == nil {
		cfg = NewConfig()
	}
	if _, err := Unpack(ctx, archivePath, dst, cfg); err != nil {
		ReportError(cfg.Output(), err)
		return false
	}
	return true
}

// ReportError writes the failure message for err to w.
func ReportError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error extracting zip: %s\n", err)
}
