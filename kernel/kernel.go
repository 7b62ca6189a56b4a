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

// Package kernel wires every core subsystem together over the external
// collaborators cfg.Config names: block devices for the disk and swap,
// the frame pool, and a process table indexed by pid. It is the
// equivalent of Pintos's init.c bringing up the subsystems in order and
// starting the first user process.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/gopintos/kernel/blockdev"
	"github.com/gopintos/kernel/cfg"
	"github.com/gopintos/kernel/directory"
	"github.com/gopintos/kernel/inode"
	"github.com/gopintos/kernel/logger"
	"github.com/gopintos/kernel/pager"
	"github.com/gopintos/kernel/pathresolver"
	"github.com/gopintos/kernel/process"
	syscallgw "github.com/gopintos/kernel/syscall"
	"github.com/gopintos/kernel/swap"
	"github.com/gopintos/kernel/vm"
)

// ErrUnknownProcess means a pid does not (or no longer) name a live
// process in the kernel's table.
var ErrUnknownProcess = errors.New("kernel: unknown process id")

// Kernel owns every system-wide resource: the one InodeStore, the one
// Pager/FrameTable/Swap, the syscall Gateway, and the live process table
// a real kernel would keep in a thread/process list.
type Kernel struct {
	Config cfg.Config
	Log    *log.Logger

	disk *blockdev.FileDevice
	swap *blockdev.FileDevice

	FS      *pathresolver.Filesystem
	Pager   *pager.Pager
	Gateway *syscallgw.Gateway

	mu       sync.Mutex
	nextPID  vm.ProcessID
	procs    map[vm.ProcessID]*process.Process
}

// New boots a fresh kernel over the disk and swap images named by c:
// creates both block devices (truncating any prior contents, mirroring a
// freshly formatted Pintos disk), seeds the root directory, and builds
// the Pager and syscall Gateway over them.
func New(c cfg.Config) (*Kernel, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	disk, err := blockdev.CreateFileDevice(c.Disk.ImagePath, blockdev.Sector(c.Disk.Sectors))
	if err != nil {
		return nil, fmt.Errorf("kernel: opening disk image: %w", err)
	}

	swapDev, err := blockdev.CreateFileDevice(c.Swap.ImagePath, blockdev.Sector(c.Swap.Sectors))
	if err != nil {
		disk.Close()
		return nil, fmt.Errorf("kernel: opening swap image: %w", err)
	}

	rootSector := blockdev.Sector(c.Disk.RootSector)
	fm := blockdev.NewFreeMap(blockdev.Sector(c.Disk.Sectors), rootSector+1)
	store := inode.NewInodeStore(disk, fm)
	if err := directory.Create(store, rootSector, rootSector); err != nil {
		disk.Close()
		swapDev.Close()
		return nil, fmt.Errorf("kernel: formatting root directory: %w", err)
	}

	fs := &pathresolver.Filesystem{Store: store, Fm: fm, RootSector: rootSector}

	sw := swap.New(swapDev)
	frames := vm.NewFrameTable(c.Memory.Frames, sw)
	pg := pager.New(frames, sw)

	lg := logger.New(logger.Options{
		Path:    c.Debug.LogPath,
		Enabled: c.Debug.LogEnabled,
	})

	k := &Kernel{
		Config:  c,
		Log:     lg,
		disk:    disk,
		swap:    swapDev,
		FS:      fs,
		Pager:   pg,
		nextPID: 1,
		procs:   make(map[vm.ProcessID]*process.Process),
	}

	k.Gateway = syscallgw.NewGateway(fs, k.allocatePID)
	k.Gateway.Register = k.register
	k.Gateway.Log = lg

	return k, nil
}

// Close releases the underlying disk and swap files.
func (k *Kernel) Close() error {
	err1 := k.disk.Close()
	err2 := k.swap.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (k *Kernel) allocatePID() vm.ProcessID {
	k.mu.Lock()
	defer k.mu.Unlock()
	pid := k.nextPID
	k.nextPID++
	return pid
}

func (k *Kernel) register(p *process.Process) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.procs[p.PID] = p
}

// Process returns the live process for pid, for dispatching its next
// syscall trap.
func (k *Kernel) Process(pid vm.ProcessID) (*process.Process, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, ok := k.procs[pid]
	if !ok {
		return nil, ErrUnknownProcess
	}
	return p, nil
}

// Boot registers a pid-0 init process (no parent, no cwd) and runs
// commandLine as its child, returning that child, the way Pintos's init
// thread runs the first user program named on its kernel command line.
func (k *Kernel) Boot(ctx context.Context, commandLine string) (*process.Process, error) {
	init := process.New(0, k.Pager, k.FS.Store, nil)
	k.mu.Lock()
	k.procs[0] = init
	k.mu.Unlock()

	child, err := init.Execute(ctx, k.FS, k.allocatePID, commandLine)
	if err != nil {
		return nil, err
	}
	k.register(child)
	return child, nil
}
