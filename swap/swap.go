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

// Package swap maps page-sized slots on a swap device to an opaque slot ID
// (spec.md §3 "Swap slot", §4.3). swap_lock is a leaf lock per spec.md §5:
// callers must never call back into this package while already holding a
// frame or inode lock that Read/Write might need to reacquire.
package swap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gopintos/kernel/blockdev"
	"github.com/gopintos/kernel/common"
)

// sectorsPerSlot is how many disk sectors back one page-sized swap slot.
const sectorsPerSlot = common.PageSize / blockdev.SectorSize

// SlotID identifies one page's worth of storage on the swap device.
type SlotID int

// ErrSwapFull is returned by Write when every slot is occupied; Allocate
// reports the same condition with ok == false.
var ErrSwapFull = errors.New("swap: device is full")

// Swap owns the in-memory bitmap over a swap device. Bit set ⇔ slot holds
// live contents (spec.md §3); the bitmap itself is never persisted, per
// spec.md §6.
type Swap struct {
	mu     sync.Mutex // swap_lock
	device blockdev.Device
	used   []bool
}

// New builds a Swap over device, sized to the number of whole pages the
// device can hold.
func New(device blockdev.Device) *Swap {
	slots := int(device.SectorCount()) / sectorsPerSlot
	return &Swap{
		device: device,
		used:   make([]bool, slots),
	}
}

// Allocate reserves a free slot without writing to it. ok is false if the
// swap device is full.
func (s *Swap) Allocate() (slot SlotID, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, u := range s.used {
		if !u {
			s.used[i] = true
			return SlotID(i), true
		}
	}
	return 0, false
}

// Release frees slot so a future Allocate/Write may reuse it.
func (s *Swap) Release(slot SlotID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if int(slot) < 0 || int(slot) >= len(s.used) {
		panic("swap: release of out-of-range slot")
	}
	s.used[slot] = false
}

// Write allocates a fresh slot and writes page (which must be exactly
// common.PageSize bytes) into it, the swap_out operation of spec.md §4.3.
func (s *Swap) Write(page []byte) (SlotID, error) {
	slot, ok := s.Allocate()
	if !ok {
		return 0, ErrSwapFull
	}
	if err := s.writeSlot(slot, page); err != nil {
		s.Release(slot)
		return 0, err
	}
	return slot, nil
}

// Read copies the contents of slot into page, which must be exactly
// common.PageSize bytes. The slot remains allocated; callers that are
// swapping a page back in are responsible for calling Release once the
// data has been consumed, per spec.md §4.3's "read the swap slot ... and
// free the slot".
func (s *Swap) Read(slot SlotID, page []byte) error {
	if len(page) != common.PageSize {
		return fmt.Errorf("swap: read buffer has %d bytes, want %d", len(page), common.PageSize)
	}

	for i := 0; i < sectorsPerSlot; i++ {
		sec := blockdev.Sector(int(slot)*sectorsPerSlot + i)
		if err := s.device.ReadSector(sec, page[i*blockdev.SectorSize:(i+1)*blockdev.SectorSize]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Swap) writeSlot(slot SlotID, page []byte) error {
	if len(page) != common.PageSize {
		return fmt.Errorf("swap: write buffer has %d bytes, want %d", len(page), common.PageSize)
	}

	for i := 0; i < sectorsPerSlot; i++ {
		sec := blockdev.Sector(int(slot)*sectorsPerSlot + i)
		if err := s.device.WriteSector(sec, page[i*blockdev.SectorSize:(i+1)*blockdev.SectorSize]); err != nil {
			return err
		}
	}
	return nil
}

// Populated returns how many slots currently hold live contents. Exposed
// for the testable property in spec.md §8 ("swap-bitmap population > 0 at
// some point during the write").
func (s *Swap) Populated() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, u := range s.used {
		if u {
			n++
		}
	}
	return n
}

// Capacity returns the total number of slots on the device.
func (s *Swap) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.used)
}
