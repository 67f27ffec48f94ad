// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"path/filepath"
	"time"
)

// fileAttributes are restored on an extracted entry
type fileAttributes struct {
	path      string
	mode      fs.FileMode
	modTime   time.Time
	isSymlink bool
}

// extract walks all entries of a and creates them in dst on t. The walk stops with the
// first error. The context is checked before each entry.
func extract(ctx context.Context, t Target, dst string, a *Archive, cfg *Config, td *TelemetryData) error {
	w, err := a.walker()
	if err != nil {
		return handleError(cfg, td, "cannot read archive", err)
	}

	// ensure destination exists before the first entry
	if err := ensureDestination(t, dst, cfg); err != nil {
		return handleError(cfg, td, "cannot prepare destination", err)
	}

	var (
		objectCounter  int64
		extractionSize int64
		dirAttributes  []fileAttributes
	)

	for {
		// check if context is canceled
		if err := ctx.Err(); err != nil {
			return handleError(cfg, td, "context error", err)
		}

		ae, err := w.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return handleError(cfg, td, "cannot read next entry", err)
		}

		// check for to many objects in the archive
		objectCounter++
		if err := cfg.CheckMaxFiles(objectCounter); err != nil {
			return handleError(cfg, td, "max objects check failed", err)
		}

		name := ae.Name()
		path := filepath.Join(dst, localPath(name))
		cfg.Logger().Debug("extract entry", "name", name, "mode", ae.Mode())

		switch {

		case ae.IsDir():
			mode := createMode(cfg, ae.Mode(), cfg.CustomCreateDirMode(), 0700)
			if err := createDir(t, dst, name, mode, cfg); err != nil {
				return handleError(cfg, td, "cannot create directory", err)
			}
			td.ExtractedDirs++
			dirMode := ae.Mode().Perm()
			if dirMode != 0 {
				dirMode |= 0700
			}
			dirAttributes = append(dirAttributes, fileAttributes{path: path, mode: dirMode, modTime: ae.ModTime()})

		case ae.IsRegular():
			// check the declared size first, the written bytes are limited below
			if err := cfg.CheckExtractionSize(addSize(extractionSize, ae.Size())); err != nil {
				return handleError(cfg, td, "max extraction size exceeded", err)
			}
			remaining := int64(-1)
			if cfg.MaxExtractionSize() != -1 {
				remaining = cfg.MaxExtractionSize() - extractionSize
			}

			n, err := extractFile(t, dst, name, ae, remaining, cfg)
			extractionSize += n
			td.ExtractionSize = extractionSize
			if err != nil {
				return handleError(cfg, td, "cannot create file", err)
			}
			td.ExtractedFiles++
			if err := restoreAttributes(t, fileAttributes{path: path, mode: ae.Mode().Perm(), modTime: ae.ModTime()}, cfg); err != nil {
				return handleError(cfg, td, "cannot restore file attributes", err)
			}

		case ae.IsSymlink():
			linkTarget, err := ae.Linkname()
			if err != nil {
				return handleError(cfg, td, "cannot read symlink", err)
			}
			if err := createSymlink(t, dst, name, linkTarget, cfg); err != nil {
				if errors.Is(err, ErrUnsupportedFile) {
					if skipErr := skipUnsupported(cfg, td, name); skipErr == nil {
						continue
					}
				}
				return handleError(cfg, td, "cannot create symlink", err)
			}
			td.ExtractedSymlinks++
			if err := restoreAttributes(t, fileAttributes{path: path, modTime: ae.ModTime(), isSymlink: true}, cfg); err != nil {
				return handleError(cfg, td, "cannot restore symlink attributes", err)
			}

		default:
			if err := skipUnsupported(cfg, td, name); err != nil {
				return handleError(cfg, td, "cannot extract file", err)
			}
		}
	}

	// directories last, creating their content changed the modification times
	for i := len(dirAttributes) - 1; i >= 0; i-- {
		if err := restoreAttributes(t, dirAttributes[i], cfg); err != nil {
			return handleError(cfg, td, "cannot restore directory attributes", err)
		}
	}

	return nil
}

// extractFile opens ae and writes its content to dst
func extractFile(t Target, dst string, name string, ae archiveEntry, maxSize int64, cfg *Config) (int64, error) {
	rc, err := ae.Open()
	if err != nil {
		return 0, fmt.Errorf("cannot open entry: %w", err)
	}
	defer rc.Close()

	mode := createMode(cfg, ae.Mode(), cfg.CustomDecompressFileMode(), 0600)
	return createFile(t, dst, name, rc, mode, maxSize, cfg)
}

// addSize returns a + b for non-negative sizes, saturated at math.MaxInt64
func addSize(a, b int64) int64 {
	if b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}

// skipUnsupported records an unsupported entry and returns an error, unless the
// configuration allows to continue.
func skipUnsupported(cfg *Config, td *TelemetryData, name string) error {
	td.UnsupportedFiles++
	td.LastUnsupportedFile = name
	if cfg.ContinueOnUnsupportedFiles() {
		cfg.Logger().Info("skipped unsupported file", "name", name)
		return nil
	}
	return unsupportedFile(name)
}

// createMode returns the permissions an entry is created with. The owner bits are
// added, so the extraction can create, and later overwrite, the content. Without a
// recorded mode, or if attributes are dropped, fallback is used.
func createMode(cfg *Config, mode fs.FileMode, fallback fs.FileMode, owner fs.FileMode) fs.FileMode {
	if cfg.DropFileAttributes() || mode.Perm() == 0 {
		return fallback
	}
	return mode.Perm() | owner
}

// restoreAttributes sets mode and modification time of an extracted entry, unless
// attributes are dropped.
func restoreAttributes(t Target, attr fileAttributes, cfg *Config) error {
	if cfg.DropFileAttributes() {
		return nil
	}

	if attr.isSymlink {
		if attr.modTime.IsZero() {
			return nil
		}
		return t.Lchtimes(attr.path, attr.modTime, attr.modTime)
	}

	if attr.mode != 0 {
		if err := t.Chmod(attr.path, attr.mode); err != nil {
			return err
		}
	}
	if !attr.modTime.IsZero() {
		if err := t.Chtimes(attr.path, attr.modTime, attr.modTime); err != nil {
			return err
		}
	}
	return nil
}

// handleError logs err, records it in the telemetry data and returns it wrapped with msg.
func handleError(cfg *Config, td *TelemetryData, msg string, err error) error {
	err = fmt.Errorf("%s: %w", msg, err)
	captureError(td, err)
	cfg.Logger().Error(msg, "err", err)
	return err
}
