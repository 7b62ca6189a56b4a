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

// Package syscall implements the trap handler that validates user pointers
// and dispatches the 18 syscalls (spec.md §4.2) to the process, filesystem,
// and fd-table layers.
package syscall

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Syscall numbers, in dispatch-table order (spec.md §4.2).
const (
	SysHalt = iota
	SysExit
	SysExec
	SysWait
	SysCreate
	SysRemove
	SysOpen
	SysFilesize
	SysRead
	SysWrite
	SysSeek
	SysTell
	SysClose
	SysChdir
	SysMkdir
	SysReaddir
	SysIsdir
	SysInumber
)

// ErrFault wraps unix.EFAULT: a user pointer was outside the user address
// space or its containing page could not be faulted in. Any fault kills the
// offending process with exit code -1 (spec.md §4.2/§7).
var ErrFault = errWithErrno("syscall: bad user pointer", unix.EFAULT)

// ErrUnknownCall wraps unix.EINVAL: the syscall number did not match any
// entry in the dispatch table.
var ErrUnknownCall = errWithErrno("syscall: unknown syscall number", unix.EINVAL)

// ErrKilled is returned by Dispatch when handling the call already
// terminated the calling process (via Process.Exit); the caller must not
// resume the process or attempt to read its registers.
var ErrKilled = errors.New("syscall: process killed")

type errnoError struct {
	msg string
	no  unix.Errno
}

func (e *errnoError) Error() string     { return e.msg }
func (e *errnoError) Errno() unix.Errno { return e.no }

func errWithErrno(msg string, no unix.Errno) error {
	return &errnoError{msg: msg, no: no}
}

// errnoOf extracts the raw errno from err, if it carries one via an
// Errno() accessor, so callers logging a trap failure can report the
// numeric code alongside the message instead of just the string.
func errnoOf(err error) (unix.Errno, bool) {
	var e interface{ Errno() unix.Errno }
	if errors.As(err, &e) {
		return e.Errno(), true
	}
	return 0, false
}
