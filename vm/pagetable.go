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
	"sync"

	"github.com/gopintos/kernel/common"
)

// PageTable is a single process's mapping from page-aligned user virtual
// address to Page descriptor (spec.md §4.3, the "supplemental" PageTable
// component).
type PageTable struct {
	mu    sync.Mutex
	pages map[uintptr]*Page
}

// NewPageTable returns an empty page table.
func NewPageTable() *PageTable {
	return &PageTable{pages: make(map[uintptr]*Page)}
}

// Lookup returns the page descriptor for the page containing addr, if any.
func (pt *PageTable) Lookup(addr uintptr) (*Page, bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	p, ok := pt.pages[common.PageRoundDown(addr)]
	return p, ok
}

// Install adds a new page descriptor. It panics if a page already exists at
// that address; callers (the ELF loader, stack growth) are expected to
// never double-map.
func (pt *PageTable) Install(page *Page) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if _, exists := pt.pages[page.Addr]; exists {
		panic("vm: page already mapped at this address")
	}
	pt.pages[page.Addr] = page
}

// Remove deletes the mapping for addr's containing page, returning the
// descriptor that was removed, if any.
func (pt *PageTable) Remove(addr uintptr) (*Page, bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	a := common.PageRoundDown(addr)
	p, ok := pt.pages[a]
	if ok {
		delete(pt.pages, a)
	}
	return p, ok
}

// All returns every page descriptor currently mapped, used by process exit
// to release frames and swap slots.
func (pt *PageTable) All() []*Page {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	out := make([]*Page, 0, len(pt.pages))
	for _, p := range pt.pages {
		out = append(out, p)
	}
	return out
}
