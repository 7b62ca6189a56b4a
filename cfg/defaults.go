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

package cfg

// Defaults mirror a small Pintos-like install: a 4 MiB disk, a 2 MiB swap
// device, and 256 frames (1 MiB of simulated physical memory).
const (
	DefaultDiskSectors  = 8192
	DefaultSwapSectors  = 4096
	DefaultRootSector   = 0
	DefaultFrameCount   = 256
	DefaultDiskPath     = "disk.img"
	DefaultSwapPath     = "swap.img"
)

// Default returns a Config populated with the defaults above.
func Default() Config {
	return Config{
		Disk: DiskConfig{
			ImagePath:  DefaultDiskPath,
			Sectors:    DefaultDiskSectors,
			RootSector: DefaultRootSector,
		},
		Swap: SwapConfig{
			ImagePath: DefaultSwapPath,
			Sectors:   DefaultSwapSectors,
		},
		Memory: MemoryConfig{
			Frames: DefaultFrameCount,
		},
	}
}
