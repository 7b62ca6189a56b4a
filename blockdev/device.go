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

// Package blockdev is the EXTERNAL COLLABORATOR boundary for fixed-size
// sector I/O (spec.md §2, "BlockDevice (external)"). The core subsystems
// (inode, swap, freemap) only ever see the Device interface; nothing above
// this package assumes the sectors live in a particular backing medium.
package blockdev

import "fmt"

// SectorSize is the fixed size in bytes of one sector.
const SectorSize = 512

// Sector is an index into a Device, addressing one SectorSize-byte sector.
type Sector int64

// Device is a fixed-size sector store: read or write exactly one sector by
// index. Implementations are not required to be safe for concurrent use by
// multiple goroutines without external locking; callers in this repo always
// serialize access to a given sector range themselves (inode.lock,
// swap_lock, etc. per spec.md §5).
type Device interface {
	// ReadSector reads exactly SectorSize bytes into buf, which must have
	// length SectorSize.
	ReadSector(s Sector, buf []byte) error

	// WriteSector writes exactly SectorSize bytes from buf, which must have
	// length SectorSize.
	WriteSector(s Sector, buf []byte) error

	// SectorCount returns the total number of sectors on the device.
	SectorCount() Sector
}

// ErrOutOfRange is returned when a sector index is not within [0, SectorCount).
type ErrOutOfRange struct {
	Sector Sector
	Count  Sector
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("sector %d out of range (device has %d sectors)", e.Sector, e.Count)
}

// ErrBadBufferSize is returned when a read/write buffer does not have
// exactly SectorSize bytes.
type ErrBadBufferSize struct {
	Got int
}

func (e *ErrBadBufferSize) Error() string {
	return fmt.Sprintf("buffer has %d bytes, want %d", e.Got, SectorSize)
}
