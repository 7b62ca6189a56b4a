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

package vm

import (
	"context"
	"errors"
	"sync"

	"github.com/gopintos/kernel/common"
	"github.com/gopintos/kernel/swap"
	"golang.org/x/sync/errgroup"
)

// ErrOutOfFrames is returned when the clock sweep finds nothing evictable,
// a ResourceExhaustion per spec.md §7 that the page fault path treats as
// fatal. A full swap device during write-back surfaces as swap.ErrSwapFull
// instead.
var ErrOutOfFrames = errors.New("vm: no frame available and swap is full")

// Frame is one physical user-pool frame (spec.md §3). Holding mu pins the
// frame: it prevents eviction and prevents Owner from changing.
type Frame struct {
	mu  sync.Mutex
	mem [common.PageSize]byte

	// Owner is nil when the frame is free.
	Owner *Page
}

// Mem returns the frame's backing storage.
func (f *Frame) Mem() []byte { return f.mem[:] }

// Lock/Unlock/TryLock implement the frame-lock protocol of spec.md §5.
func (f *Frame) Lock()         { f.mu.Lock() }
func (f *Frame) Unlock()       { f.mu.Unlock() }
func (f *Frame) TryLock() bool { return f.mu.TryLock() }

// FrameTable owns every physical frame in the user pool (spec.md §4.3).
type FrameTable struct {
	scanLock sync.Mutex // guards hand; never held together with a frame lock
	frames   []*Frame
	hand     int
	sw       *swap.Swap
}

// NewFrameTable pre-allocates n zeroed frames, mirroring frame_table_init's
// up-front allocation (see SPEC_FULL.md, grounded on
// pintos-p3/pintos-raw/src/vm/frame.c).
func NewFrameTable(n int, sw *swap.Swap) *FrameTable {
	frames := make([]*Frame, n)
	for i := range frames {
		frames[i] = &Frame{}
	}
	return &FrameTable{frames: frames, sw: sw}
}

// Allocate assigns a frame to page, evicting if necessary, and returns it
// locked. The caller is responsible for filling the frame's contents and
// then calling Unlock.
func (ft *FrameTable) Allocate(ctx context.Context, page *Page) (*Frame, error) {
	ft.scanLock.Lock()

	if f := ft.findFreeFrameLocked(); f != nil {
		f.Lock()
		ft.scanLock.Unlock()
		f.Owner = page
		return f, nil
	}

	f, err := ft.evictOneLocked(ctx)
	ft.scanLock.Unlock()
	if err != nil {
		return nil, err
	}

	f.Owner = page
	return f, nil
}

// Free unconditionally returns frame to the pool, used when a process
// exits and its page table is torn down: unlike eviction, no write-back
// is needed because the data no longer belongs to anyone.
func (ft *FrameTable) Free(frame *Frame) {
	frame.Lock()
	frame.Owner = nil
	frame.Unlock()
}

// findFreeFrameLocked performs the "one attempt at finding a free frame"
// pass: a linear scan, try-lock per frame. Caller holds scanLock.
func (ft *FrameTable) findFreeFrameLocked() *Frame {
	for _, f := range ft.frames {
		if f.Owner != nil {
			continue
		}
		if !f.TryLock() {
			continue
		}
		if f.Owner != nil { // lost the race after acquiring the lock
			f.Unlock()
			continue
		}
		return f
	}
	return nil
}

// evictOneLocked runs the clock-hand eviction pass across up to 2*N
// frames (spec.md §4.3). Caller holds scanLock.
func (ft *FrameTable) evictOneLocked(ctx context.Context) (*Frame, error) {
	n := len(ft.frames)
	limit := 2 * n
	if limit == 0 {
		return nil, ErrOutOfFrames
	}

	// Probe up to a full lap of candidates concurrently: for each frame,
	// try its lock and, if held, read whether its owning page was
	// recently accessed. Only the probing is parallel; the actual evict
	// (clearing the accessed bit, or writing back and reassigning the
	// frame) still happens one candidate at a time below, preserving the
	// "try-lock-then-test-then-possibly-evict" sequencing spec.md
	// requires.
	type probe struct {
		idx      int
		frame    *Frame
		locked   bool
		accessed bool
	}
	probes := make([]probe, n)
	g, _ := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			f := ft.frames[(ft.hand+i)%n]
			locked := f.TryLock()
			accessed := false
			if locked && f.Owner != nil {
				f.Owner.Lock()
				accessed = f.Owner.Accessed
				f.Owner.Unlock()
			}
			probes[i] = probe{idx: (ft.hand + i) % n, frame: f, locked: locked, accessed: accessed}
			return nil
		})
	}
	_ = g.Wait()

	winner := -1
	var winErr error

	// Up to two laps over the probed frames: a frame whose accessed bit is
	// cleared on the first lap stays locked and is evictable on the second.
	for i := 0; i < limit; i++ {
		p := probes[i%n]
		if !p.locked || winner != -1 {
			continue
		}
		if p.frame.Owner == nil {
			// Freed by someone else between probing and here.
			winner = i % n
			continue
		}
		if p.accessed {
			p.frame.Owner.Lock()
			p.frame.Owner.Accessed = false
			p.frame.Owner.Unlock()
			probes[i%n].accessed = false
			continue
		}

		// Evictable: not accessed since the last sweep.
		if err := ft.writeBack(p.frame); err != nil {
			winErr = err
		}
		winner = i % n
	}

	// Release every probed frame we aren't returning, whether it was
	// skipped outright or failed to write back.
	for i := 0; i < n; i++ {
		if i == winner || !probes[i].locked {
			continue
		}
		probes[i].frame.Unlock()
	}

	if winner == -1 {
		return nil, ErrOutOfFrames
	}
	ft.hand = (probes[winner].idx + 1) % n
	if winErr != nil {
		probes[winner].frame.Unlock()
		return nil, winErr
	}
	return probes[winner].frame, nil
}

// writeBack evicts frame's current contents per the owning page's source
// tag (spec.md §4.3), then, on success only, clears the page's frame
// pointer and frame's owner, fixing the §9 bug where find_frame_to_evict
// released the lock without clearing page->frame on the non-success swap
// path. frame is locked on entry; it is left locked on both success and
// failure so the caller can decide what happens next.
func (ft *FrameTable) writeBack(frame *Frame) error {
	page := frame.Owner
	page.Lock()
	defer page.Unlock()

	switch page.Source.Kind {
	case SourceSwap:
		slot, err := ft.sw.Write(frame.Mem())
		if err != nil {
			return err
		}
		page.Source.Slot = slot
		page.Frame = nil
		frame.Owner = nil
		return nil

	case SourceFile:
		if page.ReadOnly && !page.Dirty {
			// Clean read-only file-backed page: discard, re-readable later.
			page.Frame = nil
			frame.Owner = nil
			return nil
		}
		// Writable file-backed (data segment) pages are swap-destined from
		// the moment they are created, see DESIGN.md's resolution of the
		// "swap_or_file at creation" open question, so a dirty writable
		// file-backed page always promotes to swap here rather than
		// writing back into the original executable.
		slot, err := ft.sw.Write(frame.Mem())
		if err != nil {
			return err
		}
		page.PromoteToSwap(slot)
		page.Frame = nil
		frame.Owner = nil
		return nil

	case SourceZero:
		if !page.Dirty {
			page.Frame = nil
			frame.Owner = nil
			return nil
		}
		slot, err := ft.sw.Write(frame.Mem())
		if err != nil {
			return err
		}
		page.PromoteToSwap(slot)
		page.Frame = nil
		frame.Owner = nil
		return nil
	}

	return nil
}
