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

package directory

import (
	"errors"
	"strings"

	"github.com/gopintos/kernel/blockdev"
	"github.com/gopintos/kernel/inode"
	"github.com/jacobsa/syncutil"
)

var (
	// ErrInvalidName covers empty names, names over NameMax, and names
	// containing a path separator (spec.md §4.5's dir_add validation).
	ErrInvalidName = errors.New("directory: invalid entry name")
	// ErrNameInUse means Add found an existing in-use entry for the name.
	ErrNameInUse = errors.New("directory: name already in use")
	// ErrNotFound means Lookup/Remove found no in-use entry for the name.
	ErrNotFound = errors.New("directory: entry not found")
	// ErrNotEmpty means Remove targeted a directory with entries besides
	// "." and "..", or with more than one open handle.
	ErrNotEmpty = errors.New("directory: directory not empty or still open elsewhere")
	// ErrDotEntry means Remove was asked to remove "." or "..".
	ErrDotEntry = errors.New("directory: cannot remove . or ..")
	// ErrNotADirectory means Open was handed a file inode.
	ErrNotADirectory = errors.New("directory: inode is not a directory")
)

// Directory is an open handle onto a directory inode plus a readdir
// cursor (spec.md §4.5).
type Directory struct {
	// GUARDED_BY(mu): pos.
	mu  syncutil.InvariantMutex
	ino *inode.Inode
	pos int64
}

// checkInvariants enforces that the readdir cursor never runs backward
// past the start of the entry table.
func (d *Directory) checkInvariants() {
	if d.pos < 0 {
		panic("directory: negative readdir cursor")
	}
}

// Create allocates the "."/".." entries for a brand-new directory inode
// at sector, whose parent directory lives at parentSector (spec.md
// §4.5's dir_create). The teacher's original wrote "." into both name
// slots; this stores the correct ".." name, per the fix spec.md §9
// calls for.
func Create(store *inode.InodeStore, sector, parentSector blockdev.Sector) error {
	if err := store.Create(sector, 0, inode.TypeDirectory); err != nil {
		return err
	}

	ino, err := store.Open(sector)
	if err != nil {
		return err
	}
	defer store.Close(ino)

	entries := []DirEntry{
		{InUse: true, Name: ".", Sector: sector},
		{InUse: true, Name: "..", Sector: parentSector},
	}
	buf := make([]byte, 0, entrySize*len(entries))
	for _, e := range entries {
		buf = append(buf, e.encode()...)
	}
	if _, err := ino.WriteAt(buf, 0); err != nil {
		return err
	}
	return nil
}

// Open wraps an already-open directory-type inode.
func Open(ino *inode.Inode) (*Directory, error) {
	if ino.Type() != inode.TypeDirectory {
		return nil, ErrNotADirectory
	}
	d := &Directory{ino: ino}
	d.mu = syncutil.NewInvariantMutex(d.checkInvariants)
	return d, nil
}

// OpenRoot opens the directory at the filesystem's root sector.
func OpenRoot(store *inode.InodeStore, rootSector blockdev.Sector) (*Directory, error) {
	ino, err := store.Open(rootSector)
	if err != nil {
		return nil, err
	}
	d, err := Open(ino)
	if err != nil {
		store.Close(ino)
		return nil, err
	}
	return d, nil
}

// Inode returns the directory's underlying inode.
func (d *Directory) Inode() *inode.Inode {
	return d.ino
}

// Close releases the directory's inode handle.
func (d *Directory) Close(store *inode.InodeStore) error {
	return store.Close(d.ino)
}

func (d *Directory) readEntryAt(ofs int64) (DirEntry, bool, error) {
	buf := make([]byte, entrySize)
	n, err := d.ino.ReadAt(buf, ofs)
	if err != nil {
		return DirEntry{}, false, err
	}
	if n < entrySize {
		return DirEntry{}, false, nil
	}
	return decodeEntry(buf), true, nil
}

func (d *Directory) lookup(name string) (DirEntry, int64, bool, error) {
	for ofs := int64(0); ; ofs += entrySize {
		e, ok, err := d.readEntryAt(ofs)
		if err != nil {
			return DirEntry{}, 0, false, err
		}
		if !ok {
			return DirEntry{}, 0, false, nil
		}
		if e.InUse && e.Name == name {
			return e, ofs, true, nil
		}
	}
}

// Lookup finds name among d's entries and returns the inode sector it
// points to.
func (d *Directory) Lookup(name string) (blockdev.Sector, error) {
	e, _, ok, err := d.lookup(name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotFound
	}
	return e.Sector, nil
}

// Add inserts a name→sector entry, reusing a tombstone slot if one
// exists, else appending (spec.md §4.5's dir_add).
func (d *Directory) Add(name string, sector blockdev.Sector) error {
	if name == "" || len(name) > NameMax || strings.Contains(name, "/") {
		return ErrInvalidName
	}

	var freeOfs int64 = -1
	for ofs := int64(0); ; ofs += entrySize {
		e, ok, err := d.readEntryAt(ofs)
		if err != nil {
			return err
		}
		if !ok {
			if freeOfs < 0 {
				freeOfs = ofs
			}
			break
		}
		if e.InUse {
			if e.Name == name {
				return ErrNameInUse
			}
		} else if freeOfs < 0 {
			freeOfs = ofs
		}
	}

	e := DirEntry{InUse: true, Name: name, Sector: sector}
	_, err := d.ino.WriteAt(e.encode(), freeOfs)
	return err
}

// countInUse reports how many in-use entries d currently holds.
func (d *Directory) countInUse() (int, error) {
	count := 0
	for ofs := int64(0); ; ofs += entrySize {
		e, ok, err := d.readEntryAt(ofs)
		if err != nil {
			return 0, err
		}
		if !ok {
			return count, nil
		}
		if e.InUse {
			count++
		}
	}
}

// Remove tombstones the entry for name and removes its target inode
// (spec.md §4.5's dir_remove). Directory targets must have exactly one
// open handle and no entries beyond "."/"..".
func (d *Directory) Remove(store *inode.InodeStore, name string) error {
	if name == "." || name == ".." {
		return ErrDotEntry
	}

	e, ofs, ok, err := d.lookup(name)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	target, err := store.Open(e.Sector)
	if err != nil {
		return err
	}

	if target.Type() == inode.TypeDirectory {
		if target.OpenCount() > 1 {
			store.Close(target)
			return ErrNotEmpty
		}
		sub, err := Open(target)
		if err != nil {
			store.Close(target)
			return err
		}
		n, err := sub.countInUse()
		if err != nil {
			store.Close(target)
			return err
		}
		if n > 2 {
			store.Close(target)
			return ErrNotEmpty
		}
	}

	e.InUse = false
	if _, err := d.ino.WriteAt(e.encode(), ofs); err != nil {
		store.Close(target)
		return err
	}

	target.Remove()
	return store.Close(target)
}

// isDotEntry reports whether name is "." or "..".
func isDotEntry(name string) bool {
	return name == "." || name == ".."
}

// Readdir advances the cursor past tombstones and "."/".." and returns
// the next valid entry name (spec.md §4.5's dir_readdir). ok is false
// once the directory is exhausted.
func (d *Directory) Readdir() (name string, ok bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		e, found, err := d.readEntryAt(d.pos)
		if err != nil {
			return "", false, err
		}
		if !found {
			return "", false, nil
		}
		d.pos += entrySize
		if e.InUse && !isDotEntry(e.Name) {
			return e.Name, true, nil
		}
	}
}
