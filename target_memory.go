// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// TargetMemory is an in-memory filesystem implementation of [Target]. It also
// implements [fs.FS] and [fs.ReadFileFS], so extracted entries can be inspected with
// the functions of the io/fs package. Paths are slash separated and relative, the
// root is ".". Permissions on entries are recorded but not enforced.
type TargetMemory struct {
	files sync.Map // map[string]*memoryEntry
}

// NewTargetMemory creates a new in-memory filesystem.
func NewTargetMemory() *TargetMemory {
	return &TargetMemory{}
}

// memoryEntry is a file, directory or symlink in a [TargetMemory]. For symlinks,
// data holds the link target.
type memoryEntry struct {
	info *memoryFileInfo
	data []byte
}

// maxSymlinkHops limits the resolution of symlink chains
const maxSymlinkHops = 40

// memPath converts path to the slash separated form used as key
func memPath(name string) string {
	return path.Clean(filepath.ToSlash(name))
}

// load returns the entry stored at name
func (m *TargetMemory) load(name string) (*memoryEntry, bool) {
	e, ok := m.files.Load(name)
	if !ok {
		return nil, false
	}
	return e.(*memoryEntry), true
}

// CreateFile creates a new file in the in-memory filesystem. The file is created with the given mode.
// If the overwrite flag is set to false and the file already exists, an error is returned. If the overwrite
// flag is set to true, the file is overwritten. A directory is never overwritten. The maxSize parameter can
// be used to limit the size of the file. If the file exceeds the maxSize, an error is returned. If the file
// is created successfully, the number of bytes written is returned.
func (m *TargetMemory) CreateFile(name string, src io.Reader, mode fs.FileMode, overwrite bool, maxSize int64) (int64, error) {
	name = memPath(name)
	if !fs.ValidPath(name) || name == "." {
		return 0, &fs.PathError{Op: "create", Path: name, Err: fs.ErrInvalid}
	}
	if e, ok := m.load(name); ok {
		if !overwrite {
			return 0, &fs.PathError{Op: "create", Path: name, Err: fs.ErrExist}
		}
		if e.info.IsDir() {
			return 0, fmt.Errorf("cannot overwrite directory with file")
		}
	}

	// create byte buffered writer
	var buf bytes.Buffer
	n, err := io.Copy(limitWriter(&buf, maxSize), src)
	if err != nil {
		return n, err
	}

	m.files.Store(name, &memoryEntry{
		info: &memoryFileInfo{name: path.Base(name), size: n, mode: mode.Perm(), modTime: now()},
		data: buf.Bytes(),
	})
	return n, nil
}

// CreateDir creates a new directory and all missing parents in the in-memory
// filesystem. If the directory already exists, nothing is done. An existing
// non-directory entry in the path results in an error.
func (m *TargetMemory) CreateDir(name string, mode fs.FileMode) error {
	name = memPath(name)
	if !fs.ValidPath(name) {
		return &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return nil
	}

	// create parents first
	if parent := path.Dir(name); parent != "." {
		if err := m.CreateDir(parent, mode); err != nil {
			return err
		}
	}

	if e, ok := m.load(name); ok {
		if e.info.IsDir() || e.info.Mode()&fs.ModeSymlink != 0 {
			return nil
		}
		return &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrExist}
	}

	m.files.Store(name, &memoryEntry{
		info: &memoryFileInfo{name: path.Base(name), mode: mode.Perm() | fs.ModeDir, modTime: now()},
	})
	return nil
}

// CreateSymlink creates a new symlink newName pointing to oldName in the in-memory filesystem.
// If the overwrite flag is set to false and newName already exists, an error is returned.
// If the overwrite flag is set to true, the entry is replaced, unless it is a directory.
func (m *TargetMemory) CreateSymlink(oldName string, newName string, overwrite bool) error {
	newName = memPath(newName)
	if !fs.ValidPath(newName) || newName == "." {
		return &fs.PathError{Op: "symlink", Path: newName, Err: fs.ErrInvalid}
	}
	if e, ok := m.load(newName); ok {
		if !overwrite {
			return &fs.PathError{Op: "symlink", Path: newName, Err: fs.ErrExist}
		}
		if e.info.IsDir() {
			return fmt.Errorf("cannot overwrite directory with symlink")
		}
	}

	m.files.Store(newName, &memoryEntry{
		info: &memoryFileInfo{name: path.Base(newName), mode: 0777 | fs.ModeSymlink, modTime: now()},
		data: []byte(filepath.ToSlash(oldName)),
	})
	return nil
}

// resolve follows symlinks at name, relative to the directory of each link
func (m *TargetMemory) resolve(name string) (string, *memoryEntry, error) {
	for i := 0; i < maxSymlinkHops; i++ {
		if name == "." {
			return name, nil, nil
		}
		e, ok := m.load(name)
		if !ok {
			return name, nil, fs.ErrNotExist
		}
		if e.info.Mode()&fs.ModeSymlink == 0 {
			return name, e, nil
		}
		name = path.Clean(path.Join(path.Dir(name), string(e.data)))
		if !fs.ValidPath(name) {
			return name, nil, fs.ErrInvalid
		}
	}
	return name, nil, fmt.Errorf("too many levels of symbolic links")
}

// Open opens the named file for reading. Symlinks are followed. Directories
// implement [fs.ReadDirFile].
func (m *TargetMemory) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	resolved, e, err := m.resolve(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	if e == nil {
		return &memoryDir{info: rootFileInfo(), entries: m.readDir(".")}, nil
	}
	if e.info.IsDir() {
		return &memoryDir{info: e.info, entries: m.readDir(resolved)}, nil
	}
	return &memoryFile{info: e.info, r: bytes.NewReader(e.data)}, nil
}

// ReadFile implements [fs.ReadFileFS].
func (m *TargetMemory) ReadFile(name string) ([]byte, error) {
	f, err := m.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	mf, ok := f.(*memoryFile)
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fmt.Errorf("is a directory")}
	}
	return io.ReadAll(mf)
}

// readDir returns all direct children of dir sorted by name
func (m *TargetMemory) readDir(dir string) []fs.DirEntry {
	var entries []fs.DirEntry
	m.files.Range(func(key, value any) bool {
		if path.Dir(key.(string)) == dir {
			entries = append(entries, fs.FileInfoToDirEntry(value.(*memoryEntry).info))
		}
		return true
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	return entries
}

// Lstat returns the [fs.FileInfo] for name without following a symlink.
func (m *TargetMemory) Lstat(name string) (fs.FileInfo, error) {
	name = memPath(name)
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "lstat", Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return rootFileInfo(), nil
	}
	e, ok := m.load(name)
	if !ok {
		return nil, &fs.PathError{Op: "lstat", Path: name, Err: fs.ErrNotExist}
	}
	return e.info, nil
}

// Stat returns the [fs.FileInfo] for name following symlinks.
func (m *TargetMemory) Stat(name string) (fs.FileInfo, error) {
	name = memPath(name)
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	_, e, err := m.resolve(name)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	if e == nil {
		return rootFileInfo(), nil
	}
	return e.info, nil
}

// Chmod changes the permission bits of the named entry. Symlinks are followed.
func (m *TargetMemory) Chmod(name string, mode fs.FileMode) error {
	_, e, err := m.resolve(memPath(name))
	if err != nil {
		return &fs.PathError{Op: "chmod", Path: name, Err: err}
	}
	if e == nil {
		return nil
	}
	e.info.mode = e.info.mode.Type() | mode.Perm()
	return nil
}

// Chtimes changes the modification time of the named entry. Symlinks are followed.
func (m *TargetMemory) Chtimes(name string, atime, mtime time.Time) error {
	_, e, err := m.resolve(memPath(name))
	if err != nil {
		return &fs.PathError{Op: "chtimes", Path: name, Err: err}
	}
	if e != nil {
		e.info.modTime = mtime
	}
	return nil
}

// Lchtimes changes the modification time of the named entry without following a symlink.
func (m *TargetMemory) Lchtimes(name string, atime, mtime time.Time) error {
	e, ok := m.load(memPath(name))
	if !ok {
		return &fs.PathError{Op: "lchtimes", Path: name, Err: fs.ErrNotExist}
	}
	e.info.modTime = mtime
	return nil
}

// memoryFileInfo implements [fs.FileInfo] for entries of a [TargetMemory]
type memoryFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

func rootFileInfo() *memoryFileInfo {
	return &memoryFileInfo{name: ".", mode: fs.ModeDir | 0755}
}

func (fi *memoryFileInfo) Name() string       { return fi.name }
func (fi *memoryFileInfo) Size() int64        { return fi.size }
func (fi *memoryFileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi *memoryFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *memoryFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *memoryFileInfo) Sys() any           { return nil }

// memoryFile is an opened regular file
type memoryFile struct {
	info *memoryFileInfo
	r    *bytes.Reader
}

func (f *memoryFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *memoryFile) Read(p []byte) (int, error) { return f.r.Read(p) }
func (f *memoryFile) Close() error               { return nil }

// memoryDir is an opened directory
type memoryDir struct {
	info    *memoryFileInfo
	entries []fs.DirEntry
	offset  int
}

func (d *memoryDir) Stat() (fs.FileInfo, error) { return d.info, nil }
func (d *memoryDir) Close() error               { return nil }

func (d *memoryDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.info.name, Err: fmt.Errorf("is a directory")}
}

// ReadDir implements [fs.ReadDirFile].
func (d *memoryDir) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	if n > len(rest) {
		n = len(rest)
	}
	d.offset += n
	return rest[:n], nil
}

// ensure interfaces are implemented
var (
	_ Target        = (*TargetMemory)(nil)
	_ fs.ReadFileFS = (*TargetMemory)(nil)
	_ Target        = (*TargetDisk)(nil)
)
