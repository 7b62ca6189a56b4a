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

// Package directory implements directories as regular files holding a
// sequence of fixed-size name-to-inode entries (spec.md §4.5).
package directory

import (
	"encoding/binary"

	"github.com/gopintos/kernel/blockdev"
)

// NameMax is the longest component name a directory entry can hold.
const NameMax = 14

// entrySize is the on-disk size of one DirEntry: a 1-byte in-use flag, a
// fixed name buffer, and a 4-byte sector number.
const entrySize = 1 + NameMax + 1 + 4

// DirEntry is one slot in a directory's content, readable/writable at a
// fixed byte offset (spec.md §4.5). A false InUse marks a tombstone a
// future Add may reuse.
type DirEntry struct {
	InUse  bool
	Name   string
	Sector blockdev.Sector
}

func (e *DirEntry) encode() []byte {
	buf := make([]byte, entrySize)
	if e.InUse {
		buf[0] = 1
	}
	copy(buf[1:1+NameMax+1], []byte(e.Name))
	binary.LittleEndian.PutUint32(buf[1+NameMax+1:], uint32(e.Sector))
	return buf
}

func decodeEntry(buf []byte) DirEntry {
	nameBuf := buf[1 : 1+NameMax+1]
	end := 0
	for end < len(nameBuf) && nameBuf[end] != 0 {
		end++
	}
	return DirEntry{
		InUse:  buf[0] != 0,
		Name:   string(nameBuf[:end]),
		Sector: blockdev.Sector(int32(binary.LittleEndian.Uint32(buf[1+NameMax+1:]))),
	}
}
