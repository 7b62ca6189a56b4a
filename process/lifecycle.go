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
	"errors"
	"strings"

	"github.com/gopintos/kernel/directory"
	"github.com/gopintos/kernel/pathresolver"
	"github.com/gopintos/kernel/vm"
)

var (
	// ErrExecFailed covers both "no such executable" and "failed to
	// parse/load it" (spec.md §4.1's process_execute ERROR return).
	ErrExecFailed = errors.New("process: exec failed")
	// ErrNotAChild means process_wait's argument does not name a current
	// child of the caller.
	ErrNotAChild = errors.New("process: not a child of the caller")
	// ErrAlreadyWaited means process_wait was already called successfully
	// for this child.
	ErrAlreadyWaited = errors.New("process: already waited for this child")
)

// firstToken returns the first whitespace-delimited word of a command
// line, the executable name process_execute loads (spec.md §4.1).
func firstToken(commandLine string) string {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Execute implements process_execute: it resolves and loads the
// executable named by commandLine's first token into a freshly created
// child Process, builds its initial stack, and, on success, returns
// the child itself (so a process table can index it by pid). The exit
// slot the parent Waits on is registered in the parent's child table.
// The thread scheduler that would normally race the parent against the
// child's start_process is an external collaborator (spec.md §6); here
// the load happens synchronously within Execute, which is equivalent to
// the parent always observing the post-load outcome.
func (p *Process) Execute(ctx context.Context, fs *pathresolver.Filesystem, newPID func() vm.ProcessID, commandLine string) (*Process, error) {
	name := firstToken(commandLine)
	if name == "" {
		return nil, ErrExecFailed
	}

	ino, err := fs.Open(name, p.CWD())
	if err != nil {
		return nil, ErrExecFailed
	}

	childPID := newPID()

	var childCWD *directory.Directory
	if cwd := p.CWD(); cwd != nil {
		cwdIno, oerr := fs.Store.Open(cwd.Inode().Sector())
		if oerr != nil {
			fs.Store.Close(ino)
			return nil, ErrExecFailed
		}
		childCWD, err = directory.Open(cwdIno)
		if err != nil {
			fs.Store.Close(cwdIno)
			fs.Store.Close(ino)
			return nil, ErrExecFailed
		}
	}

	child := New(childPID, p.Pager, fs.Store, childCWD)
	child.Executable = ino
	child.parent = p
	ino.DenyWrite()

	entry, err := LoadExecutable(ino, child.PageTable, childPID)
	if err != nil {
		ino.AllowWrite()
		fs.Store.Close(ino)
		return nil, ErrExecFailed
	}
	_ = entry // the entry point belongs to a CPU this kernel doesn't model

	if _, err := setupStack(ctx, child.Pager, child.PageTable, childPID, commandLine); err != nil {
		ino.AllowWrite()
		fs.Store.Close(ino)
		return nil, ErrExecFailed
	}

	p.registerChild(childPID)

	return child, nil
}

// Wait implements process_wait: blocks until childPID has exited and
// returns its exit code, or fails immediately if childPID is not a
// current child or has already been waited on.
func (p *Process) Wait(childPID vm.ProcessID) (int, error) {
	slot := p.childSlot(childPID)
	if slot == nil {
		return -1, ErrNotAChild
	}
	code, ok := slot.consume()
	if !ok {
		return -1, ErrAlreadyWaited
	}
	return code, nil
}

// Exit implements exit(status): records the exit code, closes every fd
// and the CWD, eagerly frees every frame and swap slot the page table
// still owns, deposits status into the parent's slot for this pid, and
// marks the process exited.
func (p *Process) Exit(status int) {
	p.mu.Lock()
	if p.exited {
		p.mu.Unlock()
		return
	}
	p.exited = true
	p.exitCode = status
	parent := p.parent
	pid := p.PID
	p.mu.Unlock()

	for _, e := range p.FDs.CloseAll() {
		if e.IsDir() {
			e.Dir.Close(p.Store)
		} else {
			p.Store.Close(e.File)
		}
	}

	p.SetCWD(nil)

	if p.Executable != nil {
		p.Executable.AllowWrite()
		p.Store.Close(p.Executable)
	}

	for _, page := range p.PageTable.All() {
		page.Lock()
		frame := page.Frame
		source := page.Source
		page.Unlock()
		switch {
		case frame != nil:
			p.Pager.Frames.Free(frame)
		case source.Kind == vm.SourceSwap:
			p.Pager.Swap.Release(source.Slot)
		}
	}

	if parent != nil {
		if slot := parent.childSlot(pid); slot != nil {
			slot.deposit(status)
		}
	}
}

// ExitCode returns the process's exit code and whether it has exited.
func (p *Process) ExitCode() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.exited
}
