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
	"sync"

	"github.com/gopintos/kernel/directory"
	"github.com/gopintos/kernel/fdtable"
	"github.com/gopintos/kernel/inode"
	"github.com/gopintos/kernel/pager"
	"github.com/gopintos/kernel/vm"
)

// unsetExitCode marks a Process or ChildSlot that hasn't exited yet.
const unsetExitCode = 1<<31 - 1

// ChildSlot is one entry in a parent's child-exit table, a map keyed by
// child pid (spec.md §3). A child writes its exit code and signals cond exactly
// once; the parent may consume it at most once (wait-once).
type ChildSlot struct {
	mu       sync.Mutex
	cond     *sync.Cond
	tidSet   bool
	exitCode int
	waited   bool
}

func newChildSlot() *ChildSlot {
	s := &ChildSlot{exitCode: unsetExitCode}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// deposit records status from the exiting child and wakes any waiter.
// It is a no-op on a second call, preserving the "exactly once" write
// invariant even if Exit were somehow invoked twice.
func (s *ChildSlot) deposit(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tidSet {
		return
	}
	s.exitCode = status
	s.tidSet = true
	s.cond.Broadcast()
}

// consume blocks until the child has deposited its exit code, then
// returns it. A second call (after waited is set) returns false
// immediately, matching process_wait's wait-once contract.
func (s *ChildSlot) consume() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waited {
		return 0, false
	}
	for !s.tidSet {
		s.cond.Wait()
	}
	s.waited = true
	return s.exitCode, true
}

// Process is one running (or exited-but-not-yet-reaped) user process
// (spec.md §3).
type Process struct {
	PID        vm.ProcessID
	PageTable  *vm.PageTable
	Pager      *pager.Pager
	Executable *inode.Inode
	FDs        *fdtable.Table
	Store      *inode.InodeStore

	mu       sync.Mutex
	cwd      *directory.Directory
	exitCode int
	exited   bool

	parent   *Process
	children map[vm.ProcessID]*ChildSlot
}

// New creates a Process with fresh page table and fd table; cwd is nil
// for a rooted process.
func New(pid vm.ProcessID, p *pager.Pager, store *inode.InodeStore, cwd *directory.Directory) *Process {
	return &Process{
		PID:       pid,
		PageTable: vm.NewPageTable(),
		Pager:     p,
		FDs:       fdtable.New(),
		Store:     store,
		cwd:       cwd,
		exitCode:  unsetExitCode,
		children:  make(map[vm.ProcessID]*ChildSlot),
	}
}

// CWD returns the process's current working directory, nil meaning
// rooted.
func (p *Process) CWD() *directory.Directory {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cwd
}

// SetCWD replaces the process's CWD, closing the previous one.
func (p *Process) SetCWD(dir *directory.Directory) error {
	p.mu.Lock()
	prev := p.cwd
	p.cwd = dir
	p.mu.Unlock()
	if prev != nil {
		return prev.Close(p.Store)
	}
	return nil
}

// registerChild creates and tracks a new child slot for childPID, called
// by the parent before the child can possibly exit.
func (p *Process) registerChild(childPID vm.ProcessID) *ChildSlot {
	p.mu.Lock()
	defer p.mu.Unlock()
	slot := newChildSlot()
	p.children[childPID] = slot
	return slot
}

// childSlot returns the slot for childPID, or nil if it is not (or no
// longer) a child of p.
func (p *Process) childSlot(childPID vm.ProcessID) *ChildSlot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.children[childPID]
}
