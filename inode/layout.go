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

// Package inode implements the on-disk inode layout and InodeStore
// (spec.md §3, §4.4): direct/indirect/doubly-indirect block pointers, the
// sector-keyed open-inode table, and byte-granular read/write with
// on-demand block allocation.
package inode

import (
	"encoding/binary"

	"github.com/gopintos/kernel/blockdev"
)

// Type tags an inode's content as a regular file or a directory.
type Type int32

const (
	TypeFile Type = iota
	TypeDirectory
)

const (
	// DirectCount is the number of direct sector pointers an on-disk
	// inode stores.
	DirectCount = 123

	// PointersPerSector is how many 4-byte sector pointers fit in one
	// indirect block.
	PointersPerSector = blockdev.SectorSize / 4

	// Magic identifies a sector as holding a valid on-disk inode.
	Magic = int32(0x494e4f44) // "INOD"

	// Span is the maximum number of bytes a file can span:
	// (123 + 128 + 128*128) * 512 = 8,460,288 (spec.md §3/§8).
	Span = int64(DirectCount+PointersPerSector+PointersPerSector*PointersPerSector) * blockdev.SectorSize
)

// OnDiskInode is the single-sector on-disk representation of spec.md §3.
// A zero sector pointer means "not allocated".
type OnDiskInode struct {
	Direct         [DirectCount]blockdev.Sector
	Indirect       blockdev.Sector
	DoublyIndirect blockdev.Sector
	FileType       Type
	Length         int64
	Magic          int32
}

// Encode serializes d into exactly blockdev.SectorSize bytes.
func (d *OnDiskInode) Encode() []byte {
	buf := make([]byte, blockdev.SectorSize)
	off := 0
	for _, s := range d.Direct {
		binary.LittleEndian.PutUint32(buf[off:], uint32(s))
		off += 4
	}
	binary.LittleEndian.PutUint32(buf[off:], uint32(d.Indirect))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(d.DoublyIndirect))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(d.FileType))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(d.Length))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(d.Magic))
	return buf
}

// DecodeOnDiskInode parses a sector previously produced by Encode.
func DecodeOnDiskInode(buf []byte) *OnDiskInode {
	d := &OnDiskInode{}
	off := 0
	for i := range d.Direct {
		d.Direct[i] = blockdev.Sector(int32(binary.LittleEndian.Uint32(buf[off:])))
		off += 4
	}
	d.Indirect = blockdev.Sector(int32(binary.LittleEndian.Uint32(buf[off:])))
	off += 4
	d.DoublyIndirect = blockdev.Sector(int32(binary.LittleEndian.Uint32(buf[off:])))
	off += 4
	d.FileType = Type(int32(binary.LittleEndian.Uint32(buf[off:])))
	off += 4
	d.Length = int64(int32(binary.LittleEndian.Uint32(buf[off:])))
	off += 4
	d.Magic = int32(binary.LittleEndian.Uint32(buf[off:]))
	return d
}

// sectorsFor returns the number of sectors needed to store length bytes.
func sectorsFor(length int64) int64 {
	return (length + blockdev.SectorSize - 1) / blockdev.SectorSize
}

// encodeSectorArray/decodeSectorArray (de)serialize an indirect block: a
// sector full of PointersPerSector 4-byte sector pointers.
func encodeSectorArray(ptrs []blockdev.Sector) []byte {
	buf := make([]byte, blockdev.SectorSize)
	for i, s := range ptrs {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(s))
	}
	return buf
}

func decodeSectorArray(buf []byte) []blockdev.Sector {
	out := make([]blockdev.Sector, PointersPerSector)
	for i := range out {
		out[i] = blockdev.Sector(int32(binary.LittleEndian.Uint32(buf[i*4:])))
	}
	return out
}
