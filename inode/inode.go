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

package inode

import (
	"errors"

	"github.com/gopintos/kernel/blockdev"
	"github.com/jacobsa/syncutil"
)

// ErrWriteDenied is returned by WriteAt while the inode backs a running
// executable (spec.md §3's deny_write_cnt).
var ErrWriteDenied = errors.New("inode: write denied while executable is running")

// ErrBadMagic means the sector read back did not contain a valid
// OnDiskInode.
var ErrBadMagic = errors.New("inode: bad magic number")

// Inode is the in-memory handle for an open on-disk inode (spec.md §3).
// Every open of the same sector shares one Inode, tracked by InodeStore's
// open-inode table, so writers and readers observe the same length and
// deny-write count.
type Inode struct {
	// GUARDED_BY(mu): disk, openCount, removed, denyWriteCnt.
	mu     syncutil.InvariantMutex
	store  *InodeStore
	sector blockdev.Sector
	disk   *OnDiskInode

	openCount    int
	removed      bool
	denyWriteCnt int
}

// checkInvariants enforces that neither the deny-write count, which only
// ever tracks concurrently running executables, nor the open count ever
// goes negative.
func (ino *Inode) checkInvariants() {
	if ino.denyWriteCnt < 0 {
		panic("inode: negative deny-write count")
	}
	if ino.openCount < 0 {
		panic("inode: negative open count")
	}
}

// Sector returns the inode's own on-disk sector number.
func (ino *Inode) Sector() blockdev.Sector {
	return ino.sector
}

// Type reports whether the inode is a regular file or a directory.
func (ino *Inode) Type() Type {
	ino.mu.Lock()
	defer ino.mu.Unlock()
	return ino.disk.FileType
}

// Length returns the inode's current byte length.
func (ino *Inode) Length() int64 {
	ino.mu.Lock()
	defer ino.mu.Unlock()
	return ino.disk.Length
}

// OpenCount reports how many live handles reference this inode.
func (ino *Inode) OpenCount() int {
	ino.mu.Lock()
	defer ino.mu.Unlock()
	return ino.openCount
}

// Removed reports whether Remove has been called on this inode.
func (ino *Inode) Removed() bool {
	ino.mu.Lock()
	defer ino.mu.Unlock()
	return ino.removed
}

// Remove marks the inode for deletion. The underlying sectors are only
// reclaimed once the last open handle is closed (spec.md §3), so open
// readers/writers keep working until then.
func (ino *Inode) Remove() {
	ino.mu.Lock()
	ino.removed = true
	ino.mu.Unlock()
}

// DenyWrite prevents WriteAt from succeeding, used while this inode backs
// a running executable.
func (ino *Inode) DenyWrite() {
	ino.mu.Lock()
	ino.denyWriteCnt++
	ino.mu.Unlock()
}

// AllowWrite undoes one DenyWrite.
func (ino *Inode) AllowWrite() {
	ino.mu.Lock()
	if ino.denyWriteCnt > 0 {
		ino.denyWriteCnt--
	}
	ino.mu.Unlock()
}

// ReadAt reads len(buf) bytes starting at offset, zero-filling any
// unallocated "hole" sectors (spec.md §4.4).
func (ino *Inode) ReadAt(buf []byte, offset int64) (int, error) {
	ino.mu.Lock()
	defer ino.mu.Unlock()

	if offset >= ino.disk.Length {
		return 0, nil
	}
	end := offset + int64(len(buf))
	if end > ino.disk.Length {
		end = ino.disk.Length
	}

	read := 0
	for offset+int64(read) < end {
		pos := offset + int64(read)
		sectorOff := pos % blockdev.SectorSize
		chunk := blockdev.SectorSize - sectorOff
		if remain := end - pos; chunk > remain {
			chunk = remain
		}

		data, sector, err := GetDataBlock(ino.store.device, ino.store.fm, ino.disk, pos, false)
		if err != nil {
			return read, err
		}
		if sector == 0 {
			for i := int64(0); i < chunk; i++ {
				buf[int64(read)+i] = 0
			}
		} else {
			copy(buf[read:int64(read)+chunk], data[sectorOff:sectorOff+chunk])
		}
		read += int(chunk)
	}

	return read, nil
}

// WriteAt writes len(buf) bytes starting at offset, extending the file
// (spec.md §3's extend_file) and allocating backing sectors as needed. It
// fails with ErrWriteDenied while a deny-write hold is active.
func (ino *Inode) WriteAt(buf []byte, offset int64) (int, error) {
	ino.mu.Lock()
	defer ino.mu.Unlock()

	if ino.denyWriteCnt > 0 {
		return 0, ErrWriteDenied
	}

	written := 0
	end := offset + int64(len(buf))

	for offset+int64(written) < end {
		pos := offset + int64(written)
		sectorOff := pos % blockdev.SectorSize
		chunk := blockdev.SectorSize - sectorOff
		if remain := end - pos; chunk > remain {
			chunk = remain
		}

		data, sector, err := GetDataBlock(ino.store.device, ino.store.fm, ino.disk, pos, true)
		if err != nil {
			return written, err
		}
		copy(data[sectorOff:sectorOff+chunk], buf[written:int64(written)+chunk])
		if err := ino.store.device.WriteSector(sector, data); err != nil {
			return written, err
		}
		written += int(chunk)
	}

	if end > ino.disk.Length {
		ino.disk.Length = end
	}
	if err := ino.store.device.WriteSector(ino.sector, ino.disk.Encode()); err != nil {
		return written, err
	}

	return written, nil
}
