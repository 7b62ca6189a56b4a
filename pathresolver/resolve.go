// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pathresolver implements path resolution and the filesystem
// entry points built on top of it (spec.md §4.5): resolve_name_to_entry,
// resolve_name_to_inode, filesys_create, filesys_open, filesys_remove,
// and chdir.
package pathresolver

import (
	"errors"
	"strings"

	"github.com/gopintos/kernel/blockdev"
	"github.com/gopintos/kernel/directory"
	"github.com/gopintos/kernel/inode"
)

// ErrInvalidPath covers an empty path, a component longer than
// directory.NameMax, or a missing intermediate component. A
// non-directory intermediate component yields directory.ErrNotADirectory
// instead.
var ErrInvalidPath = errors.New("pathresolver: invalid path")

// Filesystem bundles the inode store and root sector every resolution
// needs.
type Filesystem struct {
	Store      *inode.InodeStore
	Fm         *blockdev.FreeMap
	RootSector blockdev.Sector
}

// isAllSlashes reports whether name is "/" or any string made up solely
// of slashes, which resolve_name_to_inode treats as a direct reference
// to the root (spec.md §4.5).
func isAllSlashes(name string) bool {
	return name != "" && strings.Count(name, "/") == len(name)
}

// splitComponents splits name on "/" and drops empty parts, mirroring
// get_next_part's slash-skipping behavior.
func splitComponents(name string) []string {
	var parts []string
	for _, p := range strings.Split(name, "/") {
		if p != "" {
			if len(p) > directory.NameMax {
				return nil
			}
			parts = append(parts, p)
		}
	}
	return parts
}

// Resolve implements resolve_name_to_entry: it walks every component of
// name but the last, opening each as a directory, and returns the final
// directory handle plus the last path component. cwd is nil when the
// caller has no current working directory (processes start rooted).
func (fs *Filesystem) Resolve(name string, cwd *directory.Directory) (*directory.Directory, string, error) {
	var dir *directory.Directory
	var err error

	if strings.HasPrefix(name, "/") || cwd == nil {
		dir, err = directory.OpenRoot(fs.Store, fs.RootSector)
	} else {
		ino, oerr := fs.Store.Open(cwd.Inode().Sector())
		if oerr != nil {
			return nil, "", oerr
		}
		dir, err = directory.Open(ino)
	}
	if err != nil {
		return nil, "", err
	}

	parts := splitComponents(name)
	if len(parts) == 0 {
		dir.Close(fs.Store)
		return nil, "", ErrInvalidPath
	}

	for i := 0; i < len(parts)-1; i++ {
		sector, lerr := dir.Lookup(parts[i])
		if lerr != nil {
			dir.Close(fs.Store)
			return nil, "", ErrInvalidPath
		}

		childIno, oerr := fs.Store.Open(sector)
		if oerr != nil {
			dir.Close(fs.Store)
			return nil, "", oerr
		}
		child, oerr := directory.Open(childIno)
		if oerr != nil {
			fs.Store.Close(childIno)
			dir.Close(fs.Store)
			return nil, "", oerr
		}

		dir.Close(fs.Store)
		dir = child
	}

	return dir, parts[len(parts)-1], nil
}

// ResolveToInode implements resolve_name_to_inode: "/" (and any
// all-slash string) resolves straight to the root inode; everything
// else goes through Resolve then a final lookup.
func (fs *Filesystem) ResolveToInode(name string, cwd *directory.Directory) (*inode.Inode, error) {
	if isAllSlashes(name) {
		return fs.Store.Open(fs.RootSector)
	}

	dir, last, err := fs.Resolve(name, cwd)
	if err != nil {
		return nil, err
	}
	defer dir.Close(fs.Store)

	sector, err := dir.Lookup(last)
	if err != nil {
		return nil, err
	}
	return fs.Store.Open(sector)
}

// Create implements filesys_create: resolve the parent directory,
// allocate a sector, create the inode, and add the directory entry.
// Any failure partway through releases what it already allocated.
func (fs *Filesystem) Create(name string, cwd *directory.Directory, size int64, ftype inode.Type) error {
	dir, last, err := fs.Resolve(name, cwd)
	if err != nil {
		return err
	}
	defer dir.Close(fs.Store)

	sector, ok := fs.Fm.Allocate()
	if !ok {
		return inode.ErrNoSpace
	}

	if ftype == inode.TypeDirectory {
		err = directory.Create(fs.Store, sector, dir.Inode().Sector())
	} else {
		err = fs.Store.Create(sector, size, inode.TypeFile)
	}
	if err != nil {
		fs.Fm.Release(sector)
		return err
	}

	if err := dir.Add(last, sector); err != nil {
		ino, oerr := fs.Store.Open(sector)
		if oerr == nil {
			ino.Remove()
			fs.Store.Close(ino)
		}
		return err
	}

	return nil
}

// Open implements filesys_open.
func (fs *Filesystem) Open(name string, cwd *directory.Directory) (*inode.Inode, error) {
	if name == "" {
		return nil, ErrInvalidPath
	}
	return fs.ResolveToInode(name, cwd)
}

// Remove implements filesys_remove.
func (fs *Filesystem) Remove(name string, cwd *directory.Directory) error {
	dir, last, err := fs.Resolve(name, cwd)
	if err != nil {
		return err
	}
	defer dir.Close(fs.Store)
	return dir.Remove(fs.Store, last)
}

// Chdir resolves name to a directory inode and wraps it for use as a new
// CWD, implementing filesys_chdir. The caller is responsible for closing
// the process's previous CWD.
func (fs *Filesystem) Chdir(name string, cwd *directory.Directory) (*directory.Directory, error) {
	ino, err := fs.ResolveToInode(name, cwd)
	if err != nil {
		return nil, err
	}
	return directory.Open(ino)
}
