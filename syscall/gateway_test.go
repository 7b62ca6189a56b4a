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

package syscall

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gopintos/kernel/blockdev"
	"github.com/gopintos/kernel/common"
	"github.com/gopintos/kernel/directory"
	"github.com/gopintos/kernel/fdtable"
	"github.com/gopintos/kernel/inode"
	"github.com/gopintos/kernel/pager"
	"github.com/gopintos/kernel/pathresolver"
	"github.com/gopintos/kernel/process"
	"github.com/gopintos/kernel/swap"
	"github.com/gopintos/kernel/vm"
	"github.com/stretchr/testify/require"
)

const testRootSector = blockdev.Sector(1)

func newTestGateway(t *testing.T) (*Gateway, *process.Process) {
	t.Helper()

	diskPath := filepath.Join(t.TempDir(), "disk.img")
	dev, err := blockdev.CreateFileDevice(diskPath, 512)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	fm := blockdev.NewFreeMap(512, 2)
	store := inode.NewInodeStore(dev, fm)
	require.NoError(t, directory.Create(store, testRootSector, testRootSector))

	fs := &pathresolver.Filesystem{Store: store, Fm: fm, RootSector: testRootSector}

	swapPath := filepath.Join(t.TempDir(), "swap.img")
	swapDev, err := blockdev.CreateFileDevice(swapPath, 16)
	require.NoError(t, err)
	t.Cleanup(func() { swapDev.Close() })
	sw := swap.New(swapDev)
	p := pager.New(vm.NewFrameTable(8, sw), sw)

	next := vm.ProcessID(1)
	newPID := func() vm.ProcessID {
		next++
		return next
	}

	g := NewGateway(fs, newPID)
	proc := process.New(1, p, store, nil)
	return g, proc
}

// writeUserBuffer installs a writable zero-backed page at addr in proc's
// page table and copies data into it, standing in for a user program
// having already touched that page itself.
func writeUserBuffer(t *testing.T, proc *process.Process, addr uintptr, data []byte) {
	t.Helper()
	if _, ok := proc.PageTable.Lookup(common.PageRoundDown(addr)); !ok {
		proc.PageTable.Install(vm.NewPage(common.PageRoundDown(addr), proc.PID, false, vm.Source{Kind: vm.SourceZero}))
	}
	frame, err := proc.Pager.PageLock(context.Background(), proc.PageTable, addr, true)
	require.NoError(t, err)
	off := int(addr - common.PageRoundDown(addr))
	copy(frame.Mem()[off:], data)
	proc.Pager.PageUnlock(frame)
}

func readUserBuffer(t *testing.T, proc *process.Process, addr uintptr, n int) []byte {
	t.Helper()
	frame, err := proc.Pager.PageLock(context.Background(), proc.PageTable, addr, false)
	require.NoError(t, err)
	defer proc.Pager.PageUnlock(frame)
	off := int(addr - common.PageRoundDown(addr))
	out := make([]byte, n)
	copy(out, frame.Mem()[off:off+n])
	return out
}

const userBufAddr = uintptr(0x08040000)

func TestGateway_CreateOpenWriteReadClose(t *testing.T) {
	g, proc := newTestGateway(t)
	ctx := context.Background()

	writeUserBuffer(t, proc, userBufAddr, append([]byte("hello.txt"), 0))

	ok, err := g.Dispatch(ctx, proc, vm.PhysBase, SysCreate, [3]uintptr{userBufAddr, 0, 0})
	require.NoError(t, err)
	require.Equal(t, int32(1), ok)

	fd, err := g.Dispatch(ctx, proc, vm.PhysBase, SysOpen, [3]uintptr{userBufAddr, 0, 0})
	require.NoError(t, err)
	require.GreaterOrEqual(t, fd, int32(2))

	writeUserBuffer(t, proc, userBufAddr+0x1000, []byte("hi there"))
	n, err := g.Dispatch(ctx, proc, vm.PhysBase, SysWrite, [3]uintptr{uintptr(fd), userBufAddr + 0x1000, 8})
	require.NoError(t, err)
	require.Equal(t, int32(8), n)

	zero, err := g.Dispatch(ctx, proc, vm.PhysBase, SysSeek, [3]uintptr{uintptr(fd), 0, 0})
	require.NoError(t, err)
	require.Equal(t, int32(0), zero)

	readAddr := userBufAddr + 0x2000
	writeUserBuffer(t, proc, readAddr, make([]byte, 8))
	n, err = g.Dispatch(ctx, proc, vm.PhysBase, SysRead, [3]uintptr{uintptr(fd), readAddr, 8})
	require.NoError(t, err)
	require.Equal(t, int32(8), n)
	require.Equal(t, "hi there", string(readUserBuffer(t, proc, readAddr, 8)))

	zero, err = g.Dispatch(ctx, proc, vm.PhysBase, SysClose, [3]uintptr{uintptr(fd), 0, 0})
	require.NoError(t, err)
	require.Equal(t, int32(0), zero)

	_, err = proc.FDs.Get(int(fd))
	require.ErrorIs(t, err, fdtable.ErrBadFD)
}

func TestGateway_OpenMissingFileReturnsMinusOne(t *testing.T) {
	g, proc := newTestGateway(t)
	ctx := context.Background()

	writeUserBuffer(t, proc, userBufAddr, append([]byte("nosuch"), 0))
	fd, err := g.Dispatch(ctx, proc, vm.PhysBase, SysOpen, [3]uintptr{userBufAddr, 0, 0})
	require.NoError(t, err)
	require.Equal(t, int32(-1), fd)
}

func TestGateway_ReadBadFDKillsProcess(t *testing.T) {
	g, proc := newTestGateway(t)
	ctx := context.Background()

	writeUserBuffer(t, proc, userBufAddr, make([]byte, 8))
	_, err := g.Dispatch(ctx, proc, vm.PhysBase, SysRead, [3]uintptr{99, userBufAddr, 8})
	require.ErrorIs(t, err, ErrKilled)

	code, exited := proc.ExitCode()
	require.True(t, exited)
	require.Equal(t, -1, code)
}

func TestGateway_MkdirChdirReaddir(t *testing.T) {
	g, proc := newTestGateway(t)
	ctx := context.Background()

	writeUserBuffer(t, proc, userBufAddr, append([]byte("sub"), 0))
	ok, err := g.Dispatch(ctx, proc, vm.PhysBase, SysMkdir, [3]uintptr{userBufAddr, 0, 0})
	require.NoError(t, err)
	require.Equal(t, int32(1), ok)

	ok, err = g.Dispatch(ctx, proc, vm.PhysBase, SysChdir, [3]uintptr{userBufAddr, 0, 0})
	require.NoError(t, err)
	require.Equal(t, int32(1), ok)

	writeUserBuffer(t, proc, userBufAddr, append([]byte("."), 0))
	fd, err := g.Dispatch(ctx, proc, vm.PhysBase, SysOpen, [3]uintptr{userBufAddr, 0, 0})
	require.NoError(t, err)

	isdir, err := g.Dispatch(ctx, proc, vm.PhysBase, SysIsdir, [3]uintptr{uintptr(fd), 0, 0})
	require.NoError(t, err)
	require.Equal(t, int32(1), isdir)

	nameAddr := userBufAddr + 0x3000
	writeUserBuffer(t, proc, nameAddr, make([]byte, directory.NameMax+1))

	seen := map[string]bool{}
	for {
		got, err := g.Dispatch(ctx, proc, vm.PhysBase, SysReaddir, [3]uintptr{uintptr(fd), nameAddr, 0})
		require.NoError(t, err)
		if got == 0 {
			break
		}
		raw := readUserBuffer(t, proc, nameAddr, directory.NameMax+1)
		name := string(bytes.TrimRight(raw, "\x00"))
		seen[name] = true
	}
	// A freshly created directory holds only "." and "..", both skipped
	// by Readdir, so nothing else should ever surface here.
	require.Empty(t, seen)
}

func TestGateway_HaltReturnsErrHalt(t *testing.T) {
	g, proc := newTestGateway(t)
	_, err := g.Dispatch(context.Background(), proc, vm.PhysBase, SysHalt, [3]uintptr{})
	require.ErrorIs(t, err, ErrHalt)
}

func TestGateway_UnknownSyscallKillsProcess(t *testing.T) {
	g, proc := newTestGateway(t)
	_, err := g.Dispatch(context.Background(), proc, vm.PhysBase, 999, [3]uintptr{})
	require.ErrorIs(t, err, ErrKilled)
}

func TestGateway_WriteToStdoutUsesStdoutWriter(t *testing.T) {
	g, proc := newTestGateway(t)
	var out bytes.Buffer
	g.Stdout = &out

	writeUserBuffer(t, proc, userBufAddr, []byte("console line"))
	n, err := g.Dispatch(context.Background(), proc, vm.PhysBase, SysWrite, [3]uintptr{1, userBufAddr, uintptr(len("console line"))})
	require.NoError(t, err)
	require.Equal(t, int32(len("console line")), n)
	require.Equal(t, "console line", out.String())
}

func TestGateway_CopyInStringTruncatesAtPageBoundary(t *testing.T) {
	_, proc := newTestGateway(t)
	ctx := context.Background()

	huge := strings.Repeat("a", common.PageSize+10)
	writeUserBuffer(t, proc, userBufAddr, []byte(huge))

	s, err := CopyInString(ctx, proc.Pager, proc.PageTable, proc.PID, vm.PhysBase, userBufAddr)
	require.NoError(t, err)
	require.Len(t, s, common.PageSize)
}
