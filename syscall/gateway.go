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
	"errors"
	"io"
	"log"

	"github.com/gopintos/kernel/pathresolver"
	"github.com/gopintos/kernel/process"
	"github.com/gopintos/kernel/vm"
)

// ErrHalt is returned by the halt handler to ask whatever drives Dispatch
// to power the kernel off (spec.md §4.2's "0 | halt | 0 | powers off";
// devices/shutdown.c is an external collaborator this kernel doesn't
// model beyond surfacing the request).
var ErrHalt = errors.New("syscall: halt requested")

// Gateway is the syscall trap handler shared by every process: it owns no
// per-process state itself, only the collaborators every handler needs.
// Stdin/Stdout stand in for devices/input.c and the console, wired by
// whatever assembles the kernel (spec.md §1's external collaborators).
type Gateway struct {
	FS     *pathresolver.Filesystem
	NewPID func() vm.ProcessID

	// Register is invoked with a freshly loaded child after a successful
	// exec, so a process table outside this package can look it up by
	// pid for future dispatch. May be nil in tests that don't care.
	Register func(*process.Process)

	Stdin  io.Reader
	Stdout io.Writer

	Log *log.Logger
}

// NewGateway builds a Gateway over fs, allocating child pids via newPID.
func NewGateway(fs *pathresolver.Filesystem, newPID func() vm.ProcessID) *Gateway {
	return &Gateway{FS: fs, NewPID: newPID}
}

func (g *Gateway) logf(format string, args ...any) {
	if g.Log != nil {
		g.Log.Printf(format, args...)
	}
}

// kill terminates proc with exit code -1, the uniform response to a
// UserFault (spec.md §7): bad pointer, bad fd on read/write, or a write
// attempt against a read-only page.
func kill(proc *process.Process) (int32, error) {
	proc.Exit(-1)
	return 0, ErrKilled
}
