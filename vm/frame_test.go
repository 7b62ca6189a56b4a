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
	"path/filepath"
	"testing"

	"github.com/gopintos/kernel/blockdev"
	"github.com/gopintos/kernel/common"
	"github.com/gopintos/kernel/swap"
	"github.com/stretchr/testify/require"
)

func newTestSwap(t *testing.T, slots int) *swap.Swap {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swap.img")
	dev, err := blockdev.CreateFileDevice(path, blockdev.Sector(slots*common.PageSize/blockdev.SectorSize))
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	return swap.New(dev)
}

func TestFrameTable_AllocateFillsFreeFramesFirst(t *testing.T) {
	ft := NewFrameTable(2, newTestSwap(t, 2))

	p1 := NewPage(0x1000, 1, false, Source{Kind: SourceZero})
	f1, err := ft.Allocate(context.Background(), p1)
	require.NoError(t, err)
	f1.Unlock()

	p2 := NewPage(0x2000, 1, false, Source{Kind: SourceZero})
	f2, err := ft.Allocate(context.Background(), p2)
	require.NoError(t, err)
	f2.Unlock()

	require.NotSame(t, f1, f2)
}

func TestFrameTable_EvictsUnaccessedPage(t *testing.T) {
	ft := NewFrameTable(1, newTestSwap(t, 2))

	p1 := NewPage(0x1000, 1, false, Source{Kind: SourceZero})
	f1, err := ft.Allocate(context.Background(), p1)
	require.NoError(t, err)
	p1.Lock()
	p1.Frame = f1
	p1.Dirty = true
	p1.Unlock()
	f1.Unlock()

	p2 := NewPage(0x2000, 1, false, Source{Kind: SourceZero})
	f2, err := ft.Allocate(context.Background(), p2)
	require.NoError(t, err)
	f2.Unlock()

	require.Same(t, f1, f2, "single-frame table must reuse the only frame")

	p1.Lock()
	require.Nil(t, p1.Frame)
	require.Equal(t, SourceSwap, p1.Source.Kind, "dirty zero-fill page must be written to swap on eviction")
	p1.Unlock()
}

func TestFrameTable_AccessedBitProtectsFromOneSweep(t *testing.T) {
	ft := NewFrameTable(1, newTestSwap(t, 2))

	p1 := NewPage(0x1000, 1, false, Source{Kind: SourceZero})
	f1, err := ft.Allocate(context.Background(), p1)
	require.NoError(t, err)
	p1.Lock()
	p1.Frame = f1
	p1.Accessed = true
	p1.Unlock()
	f1.Unlock()

	p2 := NewPage(0x2000, 1, false, Source{Kind: SourceZero})
	f2, err := ft.Allocate(context.Background(), p2)
	require.NoError(t, err)
	f2.Unlock()

	require.Same(t, f1, f2)
	p1.Lock()
	require.False(t, p1.Accessed, "clock sweep must have cleared the accessed bit")
	p1.Unlock()
}

func TestFrameTable_OutOfFramesAndSwapIsFatal(t *testing.T) {
	ft := NewFrameTable(1, newTestSwap(t, 1))

	p1 := NewPage(0x1000, 1, false, Source{Kind: SourceZero})
	f1, err := ft.Allocate(context.Background(), p1)
	require.NoError(t, err)
	p1.Lock()
	p1.Frame = f1
	p1.Accessed = true
	p1.Dirty = true // evicting p1 has to write it to swap
	p1.Unlock()
	f1.Unlock()

	// Fill the one swap slot so a subsequent eviction can't write out.
	filler := make([]byte, common.PageSize)
	_, err = ft.sw.Write(filler)
	require.NoError(t, err)

	p2 := NewPage(0x2000, 1, false, Source{Kind: SourceZero})
	_, err = ft.Allocate(context.Background(), p2)
	// The sweep clears p1's accessed bit on its first lap and picks p1 on
	// the second; p1 is dirty, so evicting it needs a swap slot, and with
	// swap full the allocation fails.
	require.Error(t, err)
}
