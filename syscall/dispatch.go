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
	"context"

	"github.com/gopintos/kernel/process"
)

type handlerFunc func(ctx context.Context, g *Gateway, proc *process.Process, savedSP uintptr, args [3]uintptr) (int32, error)

// table is the numeric syscall-number dispatch table (spec.md §4.2),
// generalizing fuseutil.FileSystem's method-per-operation interface
// dispatch into a plain array indexed by call number.
var table = [...]handlerFunc{
	SysHalt:     handleHalt,
	SysExit:     handleExit,
	SysExec:     handleExec,
	SysWait:     handleWait,
	SysCreate:   handleCreate,
	SysRemove:   handleRemove,
	SysOpen:     handleOpen,
	SysFilesize: handleFilesize,
	SysRead:     handleRead,
	SysWrite:    handleWrite,
	SysSeek:     handleSeek,
	SysTell:     handleTell,
	SysClose:    handleClose,
	SysChdir:    handleChdir,
	SysMkdir:    handleMkdir,
	SysReaddir:  handleReaddir,
	SysIsdir:    handleIsdir,
	SysInumber:  handleInumber,
}

// Dispatch implements the trap handler's second half (spec.md §4.2): given
// the syscall number and up to three already-validated-as-in-range
// arguments, it runs the matching handler. callNr outside the table exits
// the process with -1 (spec.md: "Unknown numbers exit −1"). savedSP is the
// process's most recently saved user stack pointer, needed by the
// stack-growth heuristic when a handler touches a user buffer.
func (g *Gateway) Dispatch(ctx context.Context, proc *process.Process, savedSP uintptr, callNr int, args [3]uintptr) (int32, error) {
	if callNr < 0 || callNr >= len(table) || table[callNr] == nil {
		no, _ := errnoOf(ErrUnknownCall)
		g.logf("syscall: %v (errno %d, number %d)", ErrUnknownCall, no, callNr)
		return kill(proc)
	}
	result, err := table[callNr](ctx, g, proc, savedSP, args)
	if err != nil && err != ErrKilled && err != ErrHalt {
		g.logf("syscall %d failed: %v", callNr, err)
	}
	return result, err
}
