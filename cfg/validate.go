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

import "fmt"

// Validate rejects a Config that could not possibly boot a kernel,
// mirroring the teacher's validateConfig range check in cmd/root.go.
func (c Config) Validate() error {
	if c.Disk.ImagePath == "" {
		return fmt.Errorf("cfg: disk image path must not be empty")
	}
	if c.Disk.Sectors <= 0 {
		return fmt.Errorf("cfg: disk sectors must be positive, got %d", c.Disk.Sectors)
	}
	if c.Disk.RootSector < 0 || c.Disk.RootSector >= c.Disk.Sectors {
		return fmt.Errorf("cfg: root sector %d out of range [0, %d)", c.Disk.RootSector, c.Disk.Sectors)
	}
	if c.Swap.ImagePath == "" {
		return fmt.Errorf("cfg: swap image path must not be empty")
	}
	if c.Swap.Sectors <= 0 {
		return fmt.Errorf("cfg: swap sectors must be positive, got %d", c.Swap.Sectors)
	}
	if c.Memory.Frames <= 0 {
		return fmt.Errorf("cfg: frame count must be positive, got %d", c.Memory.Frames)
	}
	return nil
}
