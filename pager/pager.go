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

// Package pager resolves page faults (spec.md §4.3): it consults a
// process's PageTable and the system-wide FrameTable, possibly swapping
// in, reading from an executable, or zero-filling, and grows the stack on
// demand.
package pager

import (
	"context"
	"errors"

	"github.com/gopintos/kernel/common"
	"github.com/gopintos/kernel/swap"
	"github.com/gopintos/kernel/vm"
)

// ErrSegFault means the fault cannot be resolved and the caller must kill
// the offending process (spec.md §4.3 step 3).
var ErrSegFault = errors.New("pager: unresolvable page fault")

// ErrReadOnly is returned by PageLock when will_write is requested against
// a read-only page (spec.md §4.3's page_lock contract).
var ErrReadOnly = errors.New("pager: page is read-only")

// Pager resolves faults for every process sharing frames and swap; one
// instance is shared system-wide, matching the single FrameTable/Swap it
// wraps.
type Pager struct {
	Frames *vm.FrameTable
	Swap   *swap.Swap
}

// New builds a Pager over the given frame table and swap device.
func New(frames *vm.FrameTable, sw *swap.Swap) *Pager {
	return &Pager{Frames: frames, Swap: sw}
}

// Fault resolves a page fault at address addr for the process owning pt.
// savedSP is the user stack pointer saved at the most recent trap, used by
// the stack-growth heuristic.
func (p *Pager) Fault(ctx context.Context, pt *vm.PageTable, addr uintptr, savedSP uintptr, owner vm.ProcessID) error {
	pageAddr := common.PageRoundDown(addr)

	if page, ok := pt.Lookup(pageAddr); ok {
		return p.pageInAndInstall(ctx, page)
	}

	if addr+vm.StackFaultSlack >= savedSP && vm.InStackGrowthRegion(pageAddr) {
		page := vm.NewPage(pageAddr, owner, false, vm.Source{Kind: vm.SourceZero})
		pt.Install(page)
		return p.pageInAndInstall(ctx, page)
	}

	return ErrSegFault
}

// pageInAndInstall allocates (and, if necessary, evicts for) a frame,
// fills it per the page's source, and installs the mapping. On return the
// frame is unlocked: the mapping is considered installed once the bytes
// are in place, matching spec.md §4.3's "install the mapping ... and
// release the frame lock".
func (p *Pager) pageInAndInstall(ctx context.Context, page *vm.Page) error {
	page.Lock()
	if page.Frame != nil {
		// Already resident (e.g. a racing fault on the same page).
		page.Accessed = true
		page.Unlock()
		return nil
	}
	page.Unlock()

	frame, err := p.Frames.Allocate(ctx, page)
	if err != nil {
		return err
	}

	if err := p.fill(frame, page); err != nil {
		frame.Owner = nil
		frame.Unlock()
		return err
	}

	page.Lock()
	page.Frame = frame
	page.Accessed = true
	page.Unlock()
	frame.Unlock()

	return nil
}

// fill populates frame's contents according to page's source tag
// (spec.md §4.3's page-in dispatch).
func (p *Pager) fill(frame *vm.Frame, page *vm.Page) error {
	mem := frame.Mem()

	switch page.Source.Kind {
	case vm.SourceSwap:
		if err := p.Swap.Read(page.Source.Slot, mem); err != nil {
			return err
		}
		p.Swap.Release(page.Source.Slot)
		return nil

	case vm.SourceFile:
		n, err := page.Source.File.ReadAt(mem[:page.Source.Bytes], page.Source.Offset)
		if err != nil {
			return err
		}
		for i := n; i < len(mem); i++ {
			mem[i] = 0
		}
		return nil

	case vm.SourceZero:
		for i := range mem {
			mem[i] = 0
		}
		return nil
	}

	return ErrSegFault
}

// PageLock pins addr's containing page for the duration of a kernel
// operation (spec.md §4.3's page_lock), paging it in if necessary. It
// fails if the page doesn't exist, or exists read-only while willWrite is
// set. The returned frame is locked; callers must call PageUnlock.
func (p *Pager) PageLock(ctx context.Context, pt *vm.PageTable, addr uintptr, willWrite bool) (*vm.Frame, error) {
	pageAddr := common.PageRoundDown(addr)
	page, ok := pt.Lookup(pageAddr)
	if !ok {
		return nil, ErrSegFault
	}
	if willWrite && page.ReadOnly {
		return nil, ErrReadOnly
	}

	for {
		if err := p.pageInAndInstall(ctx, page); err != nil {
			return nil, err
		}

		page.Lock()
		frame := page.Frame
		page.Unlock()

		frame.Lock()
		if frame.Owner == page {
			page.Lock()
			page.Dirty = page.Dirty || willWrite
			page.Unlock()
			return frame, nil
		}
		// Raced with eviction between pageInAndInstall and this lock:
		// the frame was reassigned. Try again.
		frame.Unlock()
	}
}

// PageUnlock releases a frame pinned by PageLock.
func (p *Pager) PageUnlock(frame *vm.Frame) {
	frame.Unlock()
}
