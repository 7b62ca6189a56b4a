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
	"encoding/binary"
	"errors"
	"strings"

	"github.com/gopintos/kernel/common"
	"github.com/gopintos/kernel/pager"
	"github.com/gopintos/kernel/vm"
)

// maxArgs caps how many whitespace-delimited tokens setupStack will honor
// (spec.md §4.1).
const maxArgs = 50

// ErrCommandLineTooLong means the command line (plus its terminator)
// would not fit in the single page the stack is seeded from.
var ErrCommandLineTooLong = errors.New("process: command line exceeds one page")

// setupStack builds the initial user stack for commandLine into the page
// just below vm.PhysBase and returns the stack pointer, exactly following
// the six-part layout from spec.md §4.1: argument strings high-to-low,
// padding, argv pointers, a pointer to argv[0], argc, and a zero fake
// return address.
func setupStack(ctx context.Context, p *pager.Pager, pt *vm.PageTable, owner vm.ProcessID, commandLine string) (uintptr, error) {
	if len(commandLine) >= common.PageSize {
		return 0, ErrCommandLineTooLong
	}

	args := strings.Fields(commandLine)
	if len(args) > maxArgs {
		args = args[:maxArgs]
	}

	stackPage := vm.PhysBase - common.PageSize
	pt.Install(vm.NewPage(stackPage, owner, false, vm.Source{Kind: vm.SourceZero}))

	frame, err := p.PageLock(ctx, pt, stackPage, true)
	if err != nil {
		return 0, err
	}
	defer p.PageUnlock(frame)

	mem := frame.Mem()
	top := common.PageSize // offset within mem, counts down from the page's end
	esp := func() int { return top }

	write := func(b []byte) {
		top -= len(b)
		copy(mem[top:], b)
	}

	argAddrs := make([]uintptr, len(args))
	for i := len(args) - 1; i >= 0; i-- {
		write(append([]byte(args[i]), 0))
		argAddrs[i] = vm.PhysBase - common.PageSize + uintptr(esp())
	}

	// Word-align, leaving room for the argv[] NULL terminator.
	for (common.PageSize-esp())%4 != 0 {
		write([]byte{0})
	}
	write([]byte{0, 0, 0, 0})

	for i := len(args) - 1; i >= 0; i-- {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(argAddrs[i]))
		write(b[:])
	}

	argvAddr := vm.PhysBase - common.PageSize + uintptr(esp())
	var argvBuf [4]byte
	binary.LittleEndian.PutUint32(argvBuf[:], uint32(argvAddr))
	write(argvBuf[:])

	var argcBuf [4]byte
	binary.LittleEndian.PutUint32(argcBuf[:], uint32(len(args)))
	write(argcBuf[:])

	write([]byte{0, 0, 0, 0}) // fake return address

	return vm.PhysBase - common.PageSize + uintptr(esp()), nil
}
