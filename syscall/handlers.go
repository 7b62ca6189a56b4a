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

	"github.com/gopintos/kernel/directory"
	"github.com/gopintos/kernel/inode"
	"github.com/gopintos/kernel/process"
	"github.com/gopintos/kernel/vm"
)

func handleHalt(_ context.Context, _ *Gateway, _ *process.Process, _ uintptr, _ [3]uintptr) (int32, error) {
	return 0, ErrHalt
}

func handleExit(_ context.Context, _ *Gateway, proc *process.Process, _ uintptr, args [3]uintptr) (int32, error) {
	proc.Exit(int(int32(args[0])))
	return 0, ErrKilled
}

func handleExec(ctx context.Context, g *Gateway, proc *process.Process, sp uintptr, args [3]uintptr) (int32, error) {
	cmdLine, err := CopyInString(ctx, proc.Pager, proc.PageTable, proc.PID, sp, args[0])
	if err != nil {
		return kill(proc)
	}

	child, err := proc.Execute(ctx, g.FS, g.NewPID, cmdLine)
	if err != nil {
		return -1, nil
	}
	if g.Register != nil {
		g.Register(child)
	}
	return int32(child.PID), nil
}

func handleWait(_ context.Context, _ *Gateway, proc *process.Process, _ uintptr, args [3]uintptr) (int32, error) {
	code, err := proc.Wait(vm.ProcessID(args[0]))
	if err != nil {
		return -1, nil
	}
	return int32(code), nil
}

func handleCreate(ctx context.Context, g *Gateway, proc *process.Process, sp uintptr, args [3]uintptr) (int32, error) {
	name, err := CopyInString(ctx, proc.Pager, proc.PageTable, proc.PID, sp, args[0])
	if err != nil {
		return kill(proc)
	}
	if name == "" {
		return 0, nil
	}
	if err := g.FS.Create(name, proc.CWD(), int64(uint32(args[1])), inode.TypeFile); err != nil {
		return 0, nil
	}
	return 1, nil
}

func handleRemove(ctx context.Context, g *Gateway, proc *process.Process, sp uintptr, args [3]uintptr) (int32, error) {
	name, err := CopyInString(ctx, proc.Pager, proc.PageTable, proc.PID, sp, args[0])
	if err != nil {
		return kill(proc)
	}
	if err := g.FS.Remove(name, proc.CWD()); err != nil {
		return 0, nil
	}
	return 1, nil
}

func handleOpen(ctx context.Context, g *Gateway, proc *process.Process, sp uintptr, args [3]uintptr) (int32, error) {
	name, err := CopyInString(ctx, proc.Pager, proc.PageTable, proc.PID, sp, args[0])
	if err != nil {
		return kill(proc)
	}
	if name == "" {
		return -1, nil
	}

	ino, err := g.FS.Open(name, proc.CWD())
	if err != nil {
		return -1, nil
	}

	if ino.Type() == inode.TypeDirectory {
		dir, err := directory.Open(ino)
		if err != nil {
			g.FS.Store.Close(ino)
			return -1, nil
		}
		return int32(proc.FDs.OpenDir(dir)), nil
	}
	return int32(proc.FDs.OpenFile(ino)), nil
}

func handleFilesize(_ context.Context, _ *Gateway, proc *process.Process, _ uintptr, args [3]uintptr) (int32, error) {
	e, err := proc.FDs.Get(int(args[0]))
	if err != nil || e.IsDir() {
		return -1, nil
	}
	return int32(e.File.Length()), nil
}

func handleRead(ctx context.Context, g *Gateway, proc *process.Process, sp uintptr, args [3]uintptr) (int32, error) {
	fd := int(args[0])
	bufAddr := args[1]
	n := int(args[2])
	if n == 0 {
		return 0, nil
	}

	if fd == 0 {
		kbuf := make([]byte, n)
		got := 0
		if g.Stdin != nil {
			got, _ = g.Stdin.Read(kbuf)
		}
		if err := CopyOutBytes(ctx, proc.Pager, proc.PageTable, proc.PID, sp, bufAddr, kbuf[:got]); err != nil {
			return kill(proc)
		}
		return int32(got), nil
	}

	e, err := proc.FDs.Get(fd)
	if err != nil || e.IsDir() {
		return kill(proc)
	}

	kbuf := make([]byte, n)
	got, rerr := e.File.ReadAt(kbuf, e.Pos())
	if rerr != nil {
		return -1, nil
	}
	e.Advance(int64(got))

	if err := CopyOutBytes(ctx, proc.Pager, proc.PageTable, proc.PID, sp, bufAddr, kbuf[:got]); err != nil {
		return kill(proc)
	}
	return int32(got), nil
}

func handleWrite(ctx context.Context, g *Gateway, proc *process.Process, sp uintptr, args [3]uintptr) (int32, error) {
	fd := int(args[0])
	bufAddr := args[1]
	n := int(args[2])
	if n == 0 {
		return 0, nil
	}

	kbuf, err := CopyInBytes(ctx, proc.Pager, proc.PageTable, proc.PID, sp, bufAddr, n)
	if err != nil {
		return kill(proc)
	}

	if fd == 1 {
		written := n
		if g.Stdout != nil {
			written, _ = g.Stdout.Write(kbuf)
		}
		return int32(written), nil
	}

	e, err := proc.FDs.Get(fd)
	if err != nil || e.IsDir() {
		return kill(proc)
	}

	written, werr := e.File.WriteAt(kbuf, e.Pos())
	if werr != nil {
		return -1, nil
	}
	e.Advance(int64(written))
	return int32(written), nil
}

func handleSeek(_ context.Context, _ *Gateway, proc *process.Process, _ uintptr, args [3]uintptr) (int32, error) {
	e, err := proc.FDs.Get(int(args[0]))
	if err == nil && !e.IsDir() {
		e.Seek(int64(uint32(args[1])))
	}
	return 0, nil
}

func handleTell(_ context.Context, _ *Gateway, proc *process.Process, _ uintptr, args [3]uintptr) (int32, error) {
	e, err := proc.FDs.Get(int(args[0]))
	if err != nil {
		return -1, nil
	}
	return int32(e.Pos()), nil
}

func handleClose(_ context.Context, _ *Gateway, proc *process.Process, _ uintptr, args [3]uintptr) (int32, error) {
	e, err := proc.FDs.Close(int(args[0]))
	if err != nil {
		return 0, nil
	}
	if e.IsDir() {
		e.Dir.Close(proc.Store)
	} else {
		proc.Store.Close(e.File)
	}
	return 0, nil
}

func handleChdir(ctx context.Context, g *Gateway, proc *process.Process, sp uintptr, args [3]uintptr) (int32, error) {
	name, err := CopyInString(ctx, proc.Pager, proc.PageTable, proc.PID, sp, args[0])
	if err != nil {
		return kill(proc)
	}
	dir, err := g.FS.Chdir(name, proc.CWD())
	if err != nil {
		return 0, nil
	}
	if err := proc.SetCWD(dir); err != nil {
		return 0, nil
	}
	return 1, nil
}

func handleMkdir(ctx context.Context, g *Gateway, proc *process.Process, sp uintptr, args [3]uintptr) (int32, error) {
	name, err := CopyInString(ctx, proc.Pager, proc.PageTable, proc.PID, sp, args[0])
	if err != nil {
		return kill(proc)
	}
	if name == "" {
		return 0, nil
	}
	if err := g.FS.Create(name, proc.CWD(), 0, inode.TypeDirectory); err != nil {
		return 0, nil
	}
	return 1, nil
}

func handleReaddir(ctx context.Context, g *Gateway, proc *process.Process, sp uintptr, args [3]uintptr) (int32, error) {
	e, err := proc.FDs.Get(int(args[0]))
	if err != nil || !e.IsDir() {
		return 0, nil
	}

	name, ok, rerr := e.Dir.Readdir()
	if rerr != nil || !ok {
		return 0, nil
	}

	nameBuf := append([]byte(name), 0)
	if err := CopyOutBytes(ctx, proc.Pager, proc.PageTable, proc.PID, sp, args[1], nameBuf); err != nil {
		return kill(proc)
	}
	return 1, nil
}

func handleIsdir(_ context.Context, _ *Gateway, proc *process.Process, _ uintptr, args [3]uintptr) (int32, error) {
	e, err := proc.FDs.Get(int(args[0]))
	if err != nil {
		return 0, nil
	}
	if e.IsDir() {
		return 1, nil
	}
	return 0, nil
}

func handleInumber(_ context.Context, _ *Gateway, proc *process.Process, _ uintptr, args [3]uintptr) (int32, error) {
	e, err := proc.FDs.Get(int(args[0]))
	if err != nil {
		return -1, nil
	}
	if e.IsDir() {
		return int32(e.Dir.Inode().Sector()), nil
	}
	return int32(e.File.Sector()), nil
}
