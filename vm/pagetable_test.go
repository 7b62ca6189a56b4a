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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageTable_InstallLookupRemove(t *testing.T) {
	pt := NewPageTable()
	p := NewPage(0x4000, 1, false, Source{Kind: SourceZero})
	pt.Install(p)

	got, ok := pt.Lookup(0x4007) // mid-page address rounds down
	require.True(t, ok)
	require.Same(t, p, got)

	removed, ok := pt.Remove(0x4000)
	require.True(t, ok)
	require.Same(t, p, removed)

	_, ok = pt.Lookup(0x4000)
	require.False(t, ok)
}

func TestPageTable_InstallDuplicatePanics(t *testing.T) {
	pt := NewPageTable()
	pt.Install(NewPage(0x4000, 1, false, Source{Kind: SourceZero}))
	require.Panics(t, func() {
		pt.Install(NewPage(0x4000, 1, false, Source{Kind: SourceZero}))
	})
}

func TestPageTable_All(t *testing.T) {
	pt := NewPageTable()
	pt.Install(NewPage(0x1000, 1, false, Source{Kind: SourceZero}))
	pt.Install(NewPage(0x2000, 1, false, Source{Kind: SourceZero}))
	require.Len(t, pt.All(), 2)
}
