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

package process

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/gopintos/kernel/blockdev"
	"github.com/gopintos/kernel/common"
	"github.com/gopintos/kernel/inode"
	"github.com/gopintos/kernel/vm"
	"github.com/stretchr/testify/require"
)

func newTestInode(t *testing.T, data []byte) *inode.Inode {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	dev, err := blockdev.CreateFileDevice(path, 512)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	fm := blockdev.NewFreeMap(512, 1)
	store := inode.NewInodeStore(dev, fm)
	require.NoError(t, store.Create(0, 0, inode.TypeFile))

	ino, err := store.Open(0)
	require.NoError(t, err)
	_, err = ino.WriteAt(data, 0)
	require.NoError(t, err)
	return ino
}

// buildMinimalELF constructs a one-PT_LOAD-segment ELF image: a header,
// one program header, and segBytes of file content mapped at vaddr+0x54
// (the entry point), so file offset and vaddr share a page offset.
func buildMinimalELF(t *testing.T, vaddr uint32, filesz, memsz uint32, segBytes []byte, writable bool) []byte {
	t.Helper()
	buf := make([]byte, ehdrSize+phdrSize+len(segBytes))

	copy(buf[0:7], []byte{0x7F, 'E', 'L', 'F', 1, 1, 1})
	binary.LittleEndian.PutUint16(buf[16:], 2) // e_type
	binary.LittleEndian.PutUint16(buf[18:], 3) // e_machine
	binary.LittleEndian.PutUint32(buf[20:], 1) // e_version
	binary.LittleEndian.PutUint32(buf[24:], vaddr+0x54)
	binary.LittleEndian.PutUint32(buf[28:], ehdrSize) // e_phoff
	binary.LittleEndian.PutUint16(buf[42:], phdrSize)
	binary.LittleEndian.PutUint16(buf[44:], 1) // e_phnum

	ph := buf[ehdrSize:]
	flags := uint32(4) // PF_R
	if writable {
		flags |= 2
	}
	binary.LittleEndian.PutUint32(ph[0:], ptLoad)
	binary.LittleEndian.PutUint32(ph[4:], ehdrSize+phdrSize) // p_offset
	binary.LittleEndian.PutUint32(ph[8:], vaddr+ehdrSize+phdrSize)
	binary.LittleEndian.PutUint32(ph[16:], filesz)
	binary.LittleEndian.PutUint32(ph[20:], memsz)
	binary.LittleEndian.PutUint32(ph[24:], flags)

	copy(buf[ehdrSize+phdrSize:], segBytes)
	return buf
}

func TestLoadExecutable_InstallsFileAndZeroPages(t *testing.T) {
	vaddr := uint32(common.PageSize) // page-aligned, not page 0
	segBytes := []byte("hello world")
	img := buildMinimalELF(t, vaddr, uint32(len(segBytes)), common.PageSize*2, segBytes, true)
	ino := newTestInode(t, img)

	pt := vm.NewPageTable()
	entry, err := LoadExecutable(ino, pt, 1)
	require.NoError(t, err)
	require.Equal(t, uintptr(vaddr+0x54), entry)

	firstPage, ok := pt.Lookup(uintptr(vaddr))
	require.True(t, ok)
	require.Equal(t, vm.SourceFile, firstPage.Source.Kind)
	require.False(t, firstPage.ReadOnly)

	secondPage, ok := pt.Lookup(uintptr(vaddr) + common.PageSize)
	require.True(t, ok)
	require.Equal(t, vm.SourceZero, secondPage.Source.Kind)
}

func TestLoadExecutable_RejectsBadMagic(t *testing.T) {
	img := buildMinimalELF(t, common.PageSize, 4, common.PageSize, []byte("data"), false)
	img[0] = 'X'
	ino := newTestInode(t, img)

	_, err := LoadExecutable(ino, vm.NewPageTable(), 1)
	require.ErrorIs(t, err, ErrBadHeader)
}

func TestLoadExecutable_RejectsPage0Segment(t *testing.T) {
	img := buildMinimalELF(t, 0, 4, common.PageSize, []byte("data"), false)
	ino := newTestInode(t, img)

	_, err := LoadExecutable(ino, vm.NewPageTable(), 1)
	require.ErrorIs(t, err, ErrBadSegment)
}
