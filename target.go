// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

//go:generate mockgen -destination=internal/mocks/mock_target.go -package=mocks github.com/hashicorp/go-unpack Target

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Target specifies all function that are needed to be implemented to extract contents from an archive
type Target interface {
	// CreateFile creates a file at the specified path with src as content. The mode parameter is the file mode that
	// should be set on the file. If the file already exists and overwrite is false, an error should be returned. If the
	// file does not exist, it should be created. The size of the file should not exceed maxSize. If the file is created
	// successfully, the number of bytes written should be returned. If an error occurs, the number of bytes written
	// should be returned along with the error. If maxSize < 0, the file size is not limited.
	CreateFile(path string, src io.Reader, mode fs.FileMode, overwrite bool, maxSize int64) (int64, error)

	// CreateDir creates at the specified path with the specified mode. If the directory already exists, nothing is done.
	// The function returns an error if there's a problem creating the directory. If the function completes successfully,
	// it returns nil.
	CreateDir(path string, mode fs.FileMode) error

	// CreateSymlink creates a symbolic link from newname to oldname. If newname already exists and overwrite is false,
	// the function returns an error. If newname already exists and overwrite is true, the function may overwrite the
	// existing symlink.
	CreateSymlink(oldname string, newname string, overwrite bool) error

	// Lstat see docs for os.Lstat. Main purpose is to check for symlinks in the extraction path
	// and for zip-slip attacks.
	Lstat(path string) (fs.FileInfo, error)

	// Stat see docs for os.Stat. Main purpose is to check if the destination is a directory.
	Stat(path string) (fs.FileInfo, error)

	// Chmod see docs for os.Chmod. Main purpose is to set the file mode of a file or directory.
	Chmod(name string, mode fs.FileMode) error

	// Chtimes see docs for os.Chtimes. Main purpose is to set the file times of a file or directory.
	Chtimes(name string, atime, mtime time.Time) error

	// Lchtimes see docs for os.Lchtimes. Main purpose is to set the file times of a symlink.
	Lchtimes(name string, atime, mtime time.Time) error
}

// createFile is a wrapper around the CreateFile function
//
// If the name is empty, the function returns an error.
//
// If the directory for the file does not exist, it will be created with the config.CustomCreateDirMode().
//
// If the path contains path traversal or a symlink, the function returns an error.
//
// If the path contains a symlink and config.TraverseSymlinks() returns true, a warning is logged and the
// function continues.
//
// If the file is created successfully, the function returns the number of bytes written and nil.
func createFile(t Target, dst string, name string, src io.Reader, mode fs.FileMode, maxSize int64, cfg *Config) (int64, error) {
	// check if a name is provided
	if len(name) == 0 {
		return 0, fmt.Errorf("cannot create file without name")
	}

	// adjust path to by os specific
	name = localPath(name)
	if name == "." {
		return 0, fmt.Errorf("cannot create file without name")
	}

	// ensures that the directory exists and is safe to write to (e.g. no symlinks if disabled)
	if err := createDir(t, dst, filepath.Dir(name), cfg.CustomCreateDirMode(), cfg); err != nil {
		return 0, fmt.Errorf("cannot create directory: %w", err)
	}

	// ensure that if the file exist that it is not a symlink
	if err := securityCheck(t, dst, name, cfg); err != nil {
		return 0, fmt.Errorf("security check path failed: %w", err)
	}
	return t.CreateFile(filepath.Join(dst, name), src, mode, cfg.Overwrite(), maxSize)
}

// createDir is a wrapper around the CreateDir function
//
// If the destination does not exist, it is created if config.CreateDestination() returns true.
//
// If the path contains path traversal or a symlink, the function returns an error.
//
// If the path contains a symlink and config.TraverseSymlinks() returns true, a warning is logged and the
// function continues.
//
// If the directory is created successfully, the function returns nil.
func createDir(t Target, dst string, name string, mode fs.FileMode, cfg *Config) error {
	if err := ensureDestination(t, dst, cfg); err != nil {
		return err
	}

	// adjust path to by os specific
	name = localPath(name)

	// no action needed
	if name == "." {
		return nil
	}

	// perform security check to ensure that the path is safe to write to
	if err := securityCheck(t, dst, name, cfg); err != nil {
		return fmt.Errorf("security check path failed: %w", err)
	}

	return t.CreateDir(filepath.Join(dst, name), mode)
}

// ensureDestination checks that dst is a directory and creates it if it
// does not exist and config.CreateDestination() returns true.
func ensureDestination(t Target, dst string, cfg *Config) error {
	if len(dst) == 0 || dst == "." {
		return nil
	}

	stat, err := t.Stat(dst)
	if errors.Is(err, fs.ErrNotExist) {
		if !cfg.CreateDestination() {
			return fmt.Errorf("destination does not exist")
		}
		if err := t.CreateDir(dst, cfg.CustomCreateDirMode()); err != nil {
			return fmt.Errorf("failed to create destination directory %w", err)
		}
		cfg.Logger().Info("created destination directory", "path", dst)
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalid destination: %w", err)
	}
	if !stat.IsDir() {
		return fmt.Errorf("destination is not a directory")
	}
	return nil
}

// createSymlink is a wrapper around the CreateSymlink function
//
// It checks if the symlink extraction is allowed and if the link target is an absolute path.
// If the symlink extraction is denied, an unsupported file error is returned. If the link
// target is an absolute path, the function returns an error.
//
// If the name is empty, the function returns an error.
//
// If the directory for the symlink does not exist, it will be created with the config.CustomCreateDirMode().
//
// If the path or the link target contains path traversal or a symlink, the function returns an error.
//
// If the symlink is created successfully, the function returns nil.
func createSymlink(t Target, dst string, name string, linkTarget string, cfg *Config) error {
	// check if symlink extraction is denied
	if cfg.DenySymlinkExtraction() {
		return unsupportedFile(name)
	}

	// check if a name is provided
	if len(name) == 0 {
		return fmt.Errorf("empty name")
	}

	// check if link target is absolute path
	if filepath.IsAbs(linkTarget) || strings.HasPrefix(linkTarget, "/") {
		return fmt.Errorf("symlink with absolute path as target: %s", linkTarget)
	}

	// convert name to platform specific path
	name = localPath(name)

	// get link directory
	linkDirectory := filepath.Dir(name)

	// create target dir && check for traversal in file name
	if err := createDir(t, dst, linkDirectory, cfg.CustomCreateDirMode(), cfg); err != nil {
		return fmt.Errorf("cannot create directory (%s) for symlink: %w", fmt.Sprintf("%s%s", linkDirectory, string(os.PathSeparator)), err)
	}

	// an existing link at name is replaced, not followed, so only traversal is checked
	if err := checkLocal(dst, name); err != nil {
		return fmt.Errorf("symlink name security check path failed: %w", err)
	}
	targetCleaned := filepath.Join(linkDirectory, localPath(linkTarget))
	if err := securityCheck(t, dst, targetCleaned, cfg); err != nil {
		return fmt.Errorf("symlink target security check path failed: %w", err)
	}

	// create symlink
	return t.CreateSymlink(linkTarget, filepath.Join(dst, name), cfg.Overwrite())
}

// localPath converts the slash separated name of an archive entry to a
// platform specific, relative path. Leading slashes are dropped.
func localPath(name string) string {
	parts := strings.Split(name, "/")
	p := filepath.Join(parts...)
	if len(p) == 0 {
		return "."
	}
	return p
}

// securityCheck checks if the targetDirectory contains path traversal
// and if the path contains a symlink.
//
// The function returns an error if the path contains path traversal or
// if a symlink is detected.
//
// If the path contains a symlink and config.TraverseSymlinks() returns true,
// a warning is logged and the function continues.
//
// If the path contains a symlink and config.TraverseSymlinks() returns false,
// an error is returned.
func securityCheck(t Target, dst string, path string, config *Config) error {
	// check if dstBase is empty, then targetDirectory should not be an absolute path
	if len(dst) == 0 {
		if filepath.IsAbs(path) {
			return fmt.Errorf("absolute path detected")
		}
	}

	// clean the target
	path = localPath(path)

	if err := checkLocal(dst, path); err != nil {
		return err
	}

	// check each dir in path
	targetPathElements := strings.Split(path, string(os.PathSeparator))
	for i := 0; i < len(targetPathElements); i++ {

		// assemble path
		subDirs := filepath.Join(targetPathElements[0 : i+1]...)
		checkDir := filepath.Join(dst, subDirs)

		// check if its a proper path
		if len(checkDir) == 0 {
			continue
		}

		if checkDir == "." {
			continue
		}

		// perform check if its a proper dir
		if _, err := t.Lstat(checkDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("invalid path: %w", err)
			}
		}

		// check for symlink
		isSymlink, err := isSymlink(t, checkDir)
		if err != nil {
			return fmt.Errorf("failed to check symlink: %w", err)
		}
		if isSymlink {
			if config.TraverseSymlinks() {
				config.Logger().Warn("traverse symlink", "sub-dir", subDirs)
			} else {
				return fmt.Errorf("symlink in path")
			}
		}
	}

	return nil
}

// checkLocal returns an error if path escapes dst
func checkLocal(dst string, path string) error {
	rel, err := filepath.Rel(dst, filepath.Join(dst, path))
	if err != nil {
		return fmt.Errorf("failed to get relative path: %w", err)
	}
	if !filepath.IsLocal(rel) {
		return fmt.Errorf("path traversal detected")
	}
	return nil
}

// isSymlink checks if path contains a symlink
//
// The function returns true if the path contains a symlink, otherwise false.
func isSymlink(t Target, path string) (bool, error) {
	// ignore empty checks
	if len(path) == 0 {
		return false, fmt.Errorf("empty path")
	}

	// don't check cwd
	if path == "." {
		return false, fmt.Errorf("cwd")
	}

	// perform check
	if stat, err := t.Lstat(path); !errors.Is(err, fs.ErrNotExist) {
		// check if error occurred --> not a symlink
		if err != nil {
			return false, fmt.Errorf("failed to check path: %w", err)
		}

		// check if we got stats
		if stat == nil {
			return false, fmt.Errorf("failed to get stats")
		}

		// check if symlink
		if stat.Mode()&os.ModeSymlink == os.ModeSymlink {
			return true, nil
		}
	}

	// no symlink found within path
	return false, nil
}
