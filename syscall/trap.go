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
	"encoding/binary"

	"github.com/gopintos/kernel/common"
	"github.com/gopintos/kernel/process"
	"github.com/gopintos/kernel/vm"
)

// safeLoad implements spec.md §4.2's "two-stage" user byte read: first
// confirm addr lies below PhysBase, then run a processor-assisted load
// that may fail safely instead of panicking on a bad mapping. It stands
// in for the get_user inline-assembly/recoverable-page-fault pattern
// spec.md §9 calls for, built here on the same Fault+PageLock sequence
// touchPage already uses for CopyInBytes/CopyOutBytes.
func safeLoad(ctx context.Context, proc *process.Process, savedSP, addr uintptr) (byte, bool) {
	if addr >= vm.PhysBase {
		return 0, false
	}
	frame, err := touchPage(ctx, proc.Pager, proc.PageTable, proc.PID, savedSP, addr, false)
	if err != nil {
		return 0, false
	}
	off := int(addr - common.AlignDown(addr, common.PageSize))
	b := frame.Mem()[off]
	proc.Pager.PageUnlock(frame)
	return b, true
}

// readWord safe-loads 4 consecutive bytes starting at addr and decodes
// them as a little-endian 32-bit word (spec.md §6: "syscall number and
// each argument is a 32-bit little-endian word on the user stack").
func readWord(ctx context.Context, proc *process.Process, savedSP, addr uintptr) (uintptr, bool) {
	var raw [4]byte
	for i := 0; i < 4; i++ {
		b, ok := safeLoad(ctx, proc, savedSP, addr+uintptr(i))
		if !ok {
			return 0, false
		}
		raw[i] = b
	}
	return uintptr(binary.LittleEndian.Uint32(raw[:])), true
}

// Trap implements the trap handler's front half (spec.md §4.2): verifies
// that savedSP, the user stack pointer at the moment of the trap, lies
// below PhysBase; reads the syscall number from esp[0]; reads up to
// three 4-byte arguments from esp[1..3]; and hands the decoded call off
// to Dispatch. Any failed read, including savedSP itself being at or
// above PhysBase, kills the offending process with exit code -1
// (spec.md §4.2/§7).
func (g *Gateway) Trap(ctx context.Context, proc *process.Process, savedSP uintptr) (int32, error) {
	no, _ := errnoOf(ErrFault)

	if savedSP >= vm.PhysBase {
		g.logf("syscall: trap: %v (errno %d, stack pointer 0x%x)", ErrFault, no, savedSP)
		return kill(proc)
	}

	callNr, ok := readWord(ctx, proc, savedSP, savedSP)
	if !ok {
		g.logf("syscall: trap: %v (errno %d) reading call number", ErrFault, no)
		return kill(proc)
	}

	var args [3]uintptr
	for i := range args {
		argAddr := savedSP + uintptr(4*(i+1))
		word, ok := readWord(ctx, proc, savedSP, argAddr)
		if !ok {
			g.logf("syscall: trap: %v (errno %d) reading argument %d", ErrFault, no, i)
			return kill(proc)
		}
		args[i] = word
	}

	return g.Dispatch(ctx, proc, savedSP, int(callNr), args)
}
