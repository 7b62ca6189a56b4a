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

package swap

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/gopintos/kernel/blockdev"
	"github.com/gopintos/kernel/common"
	"github.com/stretchr/testify/require"
)

func newTestSwap(t *testing.T, slots int) *Swap {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swap.img")
	dev, err := blockdev.CreateFileDevice(path, blockdev.Sector(slots*common.PageSize/blockdev.SectorSize))
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	return New(dev)
}

func TestSwap_WriteReadRoundTrip(t *testing.T) {
	s := newTestSwap(t, 4)

	page := bytes.Repeat([]byte{0x42}, common.PageSize)
	slot, err := s.Write(page)
	require.NoError(t, err)
	require.Equal(t, 1, s.Populated())

	got := make([]byte, common.PageSize)
	require.NoError(t, s.Read(slot, got))
	require.Equal(t, page, got)

	s.Release(slot)
	require.Equal(t, 0, s.Populated())
}

func TestSwap_FullReturnsErrSwapFull(t *testing.T) {
	s := newTestSwap(t, 2)
	page := make([]byte, common.PageSize)

	_, err := s.Write(page)
	require.NoError(t, err)
	_, err = s.Write(page)
	require.NoError(t, err)

	_, err = s.Write(page)
	require.ErrorIs(t, err, ErrSwapFull)
}

func TestSwap_ReleaseOutOfRangePanics(t *testing.T) {
	s := newTestSwap(t, 2)
	require.Panics(t, func() { s.Release(5) })
}
