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

package blockdev

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileDevice_WriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := CreateFileDevice(path, 32)
	require.NoError(t, err)
	defer d.Close()

	want := bytes.Repeat([]byte{0xAB}, SectorSize)
	require.NoError(t, d.WriteSector(5, want))

	got := make([]byte, SectorSize)
	require.NoError(t, d.ReadSector(5, got))
	require.Equal(t, want, got)
}

func TestFileDevice_OutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := CreateFileDevice(path, 4)
	require.NoError(t, err)
	defer d.Close()

	buf := make([]byte, SectorSize)
	require.Error(t, d.ReadSector(4, buf))
	require.Error(t, d.WriteSector(-1, buf))
}

func TestFileDevice_BadBufferSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := CreateFileDevice(path, 4)
	require.NoError(t, err)
	defer d.Close()

	require.Error(t, d.ReadSector(0, make([]byte, 10)))
}
