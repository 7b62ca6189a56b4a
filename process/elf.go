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

// Package process implements process lifecycle, ELF-style loading, and
// initial stack construction (spec.md §4.1).
package process

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/gopintos/kernel/common"
	"github.com/gopintos/kernel/inode"
	"github.com/gopintos/kernel/vm"
)

const (
	ehdrSize = 52
	phdrSize = 32

	ptLoad    = 1
	ptDynamic = 2
	ptInterp  = 3
	ptShlib   = 5

	pfW = 2
)

var (
	// ErrBadHeader means the executable header failed a magic, machine
	// type, version, or program-header sanity check (spec.md §4.1).
	ErrBadHeader = errors.New("process: invalid executable header")
	// ErrUnsupportedSegment means a PT_DYNAMIC/PT_INTERP/PT_SHLIB segment
	// was encountered, which this loader cannot satisfy.
	ErrUnsupportedSegment = errors.New("process: unsupported segment type")
	// ErrBadSegment means a PT_LOAD segment failed validateSegment.
	ErrBadSegment = errors.New("process: invalid loadable segment")
)

type elfHeader struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	Phoff     uint32
	Shoff     uint32
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type programHeader struct {
	Type   uint32
	Offset uint32
	Vaddr  uint32
	Paddr  uint32
	Filesz uint32
	Memsz  uint32
	Flags  uint32
	Align  uint32
}

func parseElfHeader(buf []byte) (elfHeader, error) {
	var h elfHeader
	if len(buf) < ehdrSize {
		return h, ErrBadHeader
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &h); err != nil {
		return h, err
	}
	if !bytes.Equal(h.Ident[0:7], []byte{0x7F, 'E', 'L', 'F', 1, 1, 1}) {
		return h, ErrBadHeader
	}
	if h.Type != 2 || h.Machine != 3 || h.Version != 1 {
		return h, ErrBadHeader
	}
	if h.Phentsize != phdrSize || h.Phnum > 1024 {
		return h, ErrBadHeader
	}
	return h, nil
}

func parseProgramHeader(buf []byte) programHeader {
	var p programHeader
	binary.Read(bytes.NewReader(buf), binary.LittleEndian, &p)
	return p
}

// validateSegment mirrors the teacher-independent validate_segment logic
// in spec.md §4.1: offset/vaddr share a page offset, the offset lies
// within the file, memsz covers filesz, the region neither wraps nor
// touches page 0, and it lies entirely in user address space.
func validateSegment(p programHeader, fileLen int64) bool {
	mask := uint32(common.PageSize - 1)
	if p.Offset&mask != p.Vaddr&mask {
		return false
	}
	if int64(p.Offset) > fileLen {
		return false
	}
	if p.Memsz < p.Filesz {
		return false
	}
	if p.Memsz == 0 {
		return false
	}
	if uintptr(p.Vaddr) >= vm.PhysBase || uintptr(p.Vaddr+p.Memsz) > vm.PhysBase {
		return false
	}
	if p.Vaddr+p.Memsz < p.Vaddr {
		return false
	}
	if p.Vaddr < common.PageSize {
		return false
	}
	return true
}

// installSegment creates the File-backed and Zero-backed page
// descriptors for one PT_LOAD segment (spec.md §4.1): a file-backed
// prefix covering readBytes, and a zero-fill tail covering the rest of
// memsz, each page-aligned and marked writable iff the segment is.
func installSegment(pt *vm.PageTable, owner vm.ProcessID, file *inode.Inode, filePage, memPage uint32, readBytes, totalBytes uint32, writable bool) {
	for off := uint32(0); off < totalBytes; off += common.PageSize {
		addr := uintptr(memPage + off)
		if off < readBytes {
			chunk := readBytes - off
			if chunk > common.PageSize {
				chunk = common.PageSize
			}
			src := vm.Source{Kind: vm.SourceFile, File: file, Offset: int64(filePage + off), Bytes: int64(chunk)}
			pt.Install(vm.NewPage(addr, owner, !writable, src))
		} else {
			pt.Install(vm.NewPage(addr, owner, !writable, vm.Source{Kind: vm.SourceZero}))
		}
	}
}

// roundUp rounds n up to the next multiple of common.PageSize.
func roundUp(n uint32) uint32 {
	return uint32(common.AlignUp(uintptr(n), common.PageSize))
}

// LoadExecutable implements the ELF-style loader of spec.md §4.1: it
// validates the header, walks program headers, and installs page
// descriptors for every PT_LOAD segment into pt. It returns the
// entry-point address.
func LoadExecutable(file *inode.Inode, pt *vm.PageTable, owner vm.ProcessID) (uintptr, error) {
	length := file.Length()

	hdrBuf := make([]byte, ehdrSize)
	if n, err := file.ReadAt(hdrBuf, 0); err != nil || n != ehdrSize {
		return 0, ErrBadHeader
	}
	hdr, err := parseElfHeader(hdrBuf)
	if err != nil {
		return 0, err
	}

	for i := 0; i < int(hdr.Phnum); i++ {
		ofs := int64(hdr.Phoff) + int64(i)*phdrSize
		if ofs < 0 || ofs > length {
			return 0, ErrBadHeader
		}
		phBuf := make([]byte, phdrSize)
		if n, err := file.ReadAt(phBuf, ofs); err != nil || n != phdrSize {
			return 0, ErrBadHeader
		}
		ph := parseProgramHeader(phBuf)

		switch ph.Type {
		case ptDynamic, ptInterp, ptShlib:
			return 0, ErrUnsupportedSegment
		case ptLoad:
			if !validateSegment(ph, length) {
				return 0, ErrBadSegment
			}
			writable := ph.Flags&pfW != 0
			filePage := ph.Offset &^ (common.PageSize - 1)
			memPage := ph.Vaddr &^ (common.PageSize - 1)
			pageOffset := ph.Vaddr & (common.PageSize - 1)

			var readBytes, totalBytes uint32
			if ph.Filesz > 0 {
				readBytes = pageOffset + ph.Filesz
				totalBytes = roundUp(pageOffset + ph.Memsz)
			} else {
				readBytes = 0
				totalBytes = roundUp(pageOffset + ph.Memsz)
			}
			installSegment(pt, owner, file, filePage, memPage, readBytes, totalBytes, writable)
		}
	}

	return uintptr(hdr.Entry), nil
}
