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

// Package fdtable implements the per-process file descriptor table
// (spec.md §4.6): a tagged union of file/directory handles keyed by a
// small integer, with fd 0 and 1 reserved for stdin/stdout.
package fdtable

import (
	"errors"
	"sync"

	"github.com/gopintos/kernel/common"
	"github.com/gopintos/kernel/directory"
	"github.com/gopintos/kernel/inode"
)

// firstFD is the first fd handed out by Open; 0 and 1 are reserved for
// stdin/stdout (spec.md §4.6).
const firstFD = 2

// ErrBadFD means fd does not name a live entry.
var ErrBadFD = errors.New("fdtable: bad file descriptor")

// ErrWrongKind means an operation requiring a file was given a directory
// fd, or vice versa (spec.md §4.6: read/write against a directory fd
// return -1).
var ErrWrongKind = errors.New("fdtable: wrong descriptor kind")

// Entry is one fd's tagged union of an open file or an open directory,
// each tracking its own byte position independent of any other opener of
// the same inode.
type Entry struct {
	File *inode.Inode
	Dir  *directory.Directory
	pos  int64
}

// IsDir reports whether this entry is a directory handle.
func (e *Entry) IsDir() bool {
	return e.Dir != nil
}

// Table is a process's fd→Entry map. The recycling free list (rather
// than a monotonic counter) is the documented fix for spec.md §9's
// unspecified fd_num overflow behavior: closed fds are handed back out
// before the table ever grows past its high-water mark.
type Table struct {
	mu      sync.Mutex
	entries map[int]*Entry
	free    common.Queue[int]
	next    int
}

// New builds an empty fd table; fds start at 2.
func New() *Table {
	return &Table{
		entries: make(map[int]*Entry),
		free:    common.NewQueue[int](),
		next:    firstFD,
	}
}

func (t *Table) allocate() int {
	if !t.free.IsEmpty() {
		return t.free.Pop()
	}
	fd := t.next
	t.next++
	return fd
}

// OpenFile installs a file handle and returns its fd.
func (t *Table) OpenFile(ino *inode.Inode) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	fd := t.allocate()
	t.entries[fd] = &Entry{File: ino}
	return fd
}

// OpenDir installs a directory handle and returns its fd.
func (t *Table) OpenDir(dir *directory.Directory) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	fd := t.allocate()
	t.entries[fd] = &Entry{Dir: dir}
	return fd
}

// Get returns the entry for fd.
func (t *Table) Get(fd int) (*Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[fd]
	if !ok {
		return nil, ErrBadFD
	}
	return e, nil
}

// Pos returns and Seek sets an entry's own read/write cursor (spec.md
// §4.6's per-fd position, distinct from any other opener's).
func (e *Entry) Pos() int64      { return e.pos }
func (e *Entry) Seek(pos int64)  { e.pos = pos }
func (e *Entry) Advance(n int64) { e.pos += n }

// Close removes fd from the table and returns its entry so the caller
// can release the underlying inode/directory; fd becomes available for
// reuse immediately.
func (t *Table) Close(fd int) (*Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[fd]
	if !ok {
		return nil, ErrBadFD
	}
	delete(t.entries, fd)
	t.free.Push(fd)
	return e, nil
}

// CloseAll drains every live entry in ascending fd order, matching the
// teacher's exit-time fd_list cleanup, and returns them for the caller to
// release. Once a recycled fd has been reused, ascending fd order can
// differ from the order the entries were opened in.
func (t *Table) CloseAll() []*Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	fds := make([]int, 0, len(t.entries))
	for fd := range t.entries {
		fds = append(fds, fd)
	}
	// Ascending order keeps cleanup deterministic and matches the
	// original's front-to-back list drain.
	for i := 0; i < len(fds); i++ {
		for j := i + 1; j < len(fds); j++ {
			if fds[j] < fds[i] {
				fds[i], fds[j] = fds[j], fds[i]
			}
		}
	}

	out := make([]*Entry, 0, len(fds))
	for _, fd := range fds {
		out = append(out, t.entries[fd])
		delete(t.entries, fd)
	}
	return out
}
