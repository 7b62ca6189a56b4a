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

// Package vm holds the three tightly-coupled demand-paging data structures
// (spec.md §3/§4.3): the per-process Page descriptor, the physical Frame
// pool, and the per-process PageTable. They live in one package because a
// Page references its current Frame and a Frame references its owning Page;
// splitting them across packages would just relocate the cycle into the
// import graph.
package vm

import (
	"github.com/gopintos/kernel/swap"
	"github.com/jacobsa/syncutil"
)

// SourceKind distinguishes the three ways a Page's contents can be
// (re)populated, replacing the three-nullable-fields-plus-a-bool layout the
// design notes (spec.md §9) flag as a wart in the source kernel.
type SourceKind int

const (
	SourceZero SourceKind = iota
	SourceSwap
	SourceFile
)

// FileSource is the minimal read capability a Page needs from the
// executable or regular file backing it. Kept separate from the inode
// package's richer Inode interface so vm never needs to import inode.
type FileSource interface {
	ReadAt(buf []byte, offset int64) (int, error)
}

// Source is the sum type `{Swap(slot) | File{handle, offset, bytes} | Zero}`
// from spec.md §9.
type Source struct {
	Kind SourceKind

	// Valid when Kind == SourceSwap.
	Slot swap.SlotID

	// Valid when Kind == SourceFile.
	File   FileSource
	Offset int64
	Bytes  int64
}

// ProcessID identifies the owning process of a Page, without vm needing to
// import the process package.
type ProcessID int

// Page is one mapped user virtual page of a process (spec.md §3).
//
// INVARIANT: at most one non-nil Frame at a time (enforced by PageTable's
// lock plus the frame lock protocol, not by Page itself).
// INVARIANT: ReadOnly ⇒ never written back to a file unless originally
// file-backed and clean (enforced in FrameTable.writeBack).
type Page struct {
	// GUARDED_BY(mu): Frame, Source, Accessed, Dirty.
	mu syncutil.InvariantMutex

	Addr     uintptr // page-aligned user virtual address
	Owner    ProcessID
	ReadOnly bool

	Source Source

	// Frame is nil when the page is not currently resident.
	Frame *Frame

	// Accessed is the clock algorithm's reference bit. It is set on every
	// fault-in and cleared by one clock sweep; a real MMU would track this
	// in hardware, but nothing here models a TLB, so the Pager sets it
	// explicitly on access.
	Accessed bool

	// Dirty tracks whether a writable page has been modified since it was
	// last written back, used to decide whether eviction needs to write at
	// all for a Zero-sourced page or a clean File-sourced page.
	Dirty bool
}

// NewPage creates an unmapped (no frame) page descriptor.
func NewPage(addr uintptr, owner ProcessID, readOnly bool, source Source) *Page {
	p := &Page{
		Addr:     addr,
		Owner:    owner,
		ReadOnly: readOnly,
		Source:   source,
	}
	p.mu = syncutil.NewInvariantMutex(p.checkInvariants)
	return p
}

// checkInvariants enforces that a read-only page, which is never written
// back to its source, can never have accumulated unwritten changes.
func (p *Page) checkInvariants() {
	if p.ReadOnly && p.Dirty {
		panic("vm: read-only page marked dirty")
	}
}

// Lock/Unlock guard Page.Frame, Page.Source, Page.Accessed and Page.Dirty.
func (p *Page) Lock()   { p.mu.Lock() }
func (p *Page) Unlock() { p.mu.Unlock() }

// PromoteToSwap changes a dirty File-backed page's source tag to
// Swap-backed on first dirty write-out, per the invariant in spec.md §3.
// Callers must hold p's lock.
func (p *Page) PromoteToSwap(slot swap.SlotID) {
	p.Source = Source{Kind: SourceSwap, Slot: slot}
}
