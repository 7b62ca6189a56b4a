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
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gopintos/kernel/blockdev"
	"github.com/gopintos/kernel/directory"
	"github.com/gopintos/kernel/fdtable"
	"github.com/gopintos/kernel/inode"
	"github.com/gopintos/kernel/pager"
	"github.com/gopintos/kernel/pathresolver"
	"github.com/gopintos/kernel/swap"
	"github.com/gopintos/kernel/vm"
	"github.com/stretchr/testify/require"
)

const testRootSector = blockdev.Sector(1)

func newTestFS(t *testing.T) *pathresolver.Filesystem {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	dev, err := blockdev.CreateFileDevice(path, 512)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	fm := blockdev.NewFreeMap(512, 2)
	store := inode.NewInodeStore(dev, fm)
	require.NoError(t, directory.Create(store, testRootSector, testRootSector))
	return &pathresolver.Filesystem{Store: store, Fm: fm, RootSector: testRootSector}
}

func writeExecutable(t *testing.T, fs *pathresolver.Filesystem, name string, img []byte) {
	t.Helper()
	require.NoError(t, fs.Create(name, nil, 0, inode.TypeFile))
	ino, err := fs.Open(name, nil)
	require.NoError(t, err)
	_, err = ino.WriteAt(img, 0)
	require.NoError(t, err)
	require.NoError(t, fs.Store.Close(ino))
}

func pidAllocator() func() vm.ProcessID {
	next := vm.ProcessID(2)
	return func() vm.ProcessID {
		next++
		return next
	}
}

func TestProcess_ExecuteLoadsChildAndWaitReturnsExitCode(t *testing.T) {
	fs := newTestFS(t)
	img := buildMinimalELF(t, 4096, 4, 4096, []byte("data"), false)
	writeExecutable(t, fs, "prog", img)

	swPath := filepath.Join(t.TempDir(), "swap.img")
	dev, err := blockdev.CreateFileDevice(swPath, 16)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	sw := swap.New(dev)

	parent := New(1, newPagerOver(sw), fs.Store, nil)

	child, err := parent.Execute(context.Background(), fs, pidAllocator(), "prog arg1")
	require.NoError(t, err)
	require.Equal(t, vm.ProcessID(3), child.PID)

	// Simulate the child exiting on its own.
	go func() {
		time.Sleep(10 * time.Millisecond)
		child.Exit(42)
	}()

	code, err := parent.Wait(child.PID)
	require.NoError(t, err)
	require.Equal(t, 42, code)

	_, err = parent.Wait(child.PID)
	require.ErrorIs(t, err, ErrAlreadyWaited)
}

func TestProcess_ExecuteFailsForMissingExecutable(t *testing.T) {
	fs := newTestFS(t)
	swPath := filepath.Join(t.TempDir(), "swap.img")
	dev, err := blockdev.CreateFileDevice(swPath, 16)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	sw := swap.New(dev)

	parent := New(1, newPagerOver(sw), fs.Store, nil)
	_, err = parent.Execute(context.Background(), fs, pidAllocator(), "nosuch")
	require.ErrorIs(t, err, ErrExecFailed)
}

func TestProcess_WaitOnNonChildFails(t *testing.T) {
	fs := newTestFS(t)
	swPath := filepath.Join(t.TempDir(), "swap.img")
	dev, err := blockdev.CreateFileDevice(swPath, 16)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	sw := swap.New(dev)

	parent := New(1, newPagerOver(sw), fs.Store, nil)
	_, err = parent.Wait(99)
	require.ErrorIs(t, err, ErrNotAChild)
}

func TestProcess_ExitClosesFDsAndFreesFrames(t *testing.T) {
	fs := newTestFS(t)
	swPath := filepath.Join(t.TempDir(), "swap.img")
	dev, err := blockdev.CreateFileDevice(swPath, 16)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	sw := swap.New(dev)

	p := New(1, newPagerOver(sw), fs.Store, nil)
	page := vm.NewPage(0x5000, p.PID, false, vm.Source{Kind: vm.SourceZero})
	p.PageTable.Install(page)
	frame, err := p.Pager.PageLock(context.Background(), p.PageTable, 0x5000, true)
	require.NoError(t, err)
	p.Pager.PageUnlock(frame)

	require.NoError(t, fs.Create("f", nil, 0, inode.TypeFile))
	ino, err := fs.Open("f", nil)
	require.NoError(t, err)
	fd := p.FDs.OpenFile(ino)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); p.Exit(7) }()
	wg.Wait()

	code, exited := p.ExitCode()
	require.True(t, exited)
	require.Equal(t, 7, code)

	_, err = p.FDs.Get(fd)
	require.ErrorIs(t, err, fdtable.ErrBadFD)
	require.Nil(t, frame.Owner)
}

func TestProcess_ExitReleasesSwapSlotsOfEvictedPages(t *testing.T) {
	fs := newTestFS(t)
	swPath := filepath.Join(t.TempDir(), "swap.img")
	dev, err := blockdev.CreateFileDevice(swPath, 16)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	sw := swap.New(dev)

	p := New(1, newPagerOver(sw), fs.Store, nil)

	slot, ok := sw.Allocate()
	require.True(t, ok)
	require.Equal(t, 1, sw.Populated())

	page := vm.NewPage(0x6000, p.PID, false, vm.Source{Kind: vm.SourceSwap, Slot: slot})
	p.PageTable.Install(page)

	p.Exit(0)

	require.Equal(t, 0, sw.Populated())
}

func newPagerOver(sw *swap.Swap) *pager.Pager {
	return pager.New(vm.NewFrameTable(8, sw), sw)
}
