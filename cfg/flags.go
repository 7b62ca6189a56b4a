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

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags registers every Config field as a flag on flagSet and binds it
// into viper, the way the teacher's cfg.BindFlags wires FileSystemConfig's
// fields one at a time.
func BindFlags(flagSet *pflag.FlagSet) error {
	d := Default()

	flagSet.String("disk-image", d.Disk.ImagePath, "Path to the file backing the filesystem's block device.")
	if err := viper.BindPFlag("disk.image-path", flagSet.Lookup("disk-image")); err != nil {
		return err
	}

	flagSet.Int64("disk-sectors", d.Disk.Sectors, "Number of 512-byte sectors in the disk image.")
	if err := viper.BindPFlag("disk.sectors", flagSet.Lookup("disk-sectors")); err != nil {
		return err
	}

	flagSet.Int64("root-sector", d.Disk.RootSector, "Sector holding the root directory's inode.")
	if err := viper.BindPFlag("disk.root-sector", flagSet.Lookup("root-sector")); err != nil {
		return err
	}

	flagSet.String("swap-image", d.Swap.ImagePath, "Path to the file backing the swap device.")
	if err := viper.BindPFlag("swap.image-path", flagSet.Lookup("swap-image")); err != nil {
		return err
	}

	flagSet.Int64("swap-sectors", d.Swap.Sectors, "Number of 512-byte sectors in the swap image.")
	if err := viper.BindPFlag("swap.sectors", flagSet.Lookup("swap-sectors")); err != nil {
		return err
	}

	flagSet.Int("frames", d.Memory.Frames, "Number of simulated physical frames in the user pool.")
	if err := viper.BindPFlag("memory.frames", flagSet.Lookup("frames")); err != nil {
		return err
	}

	flagSet.Bool("log", false, "Enable kernel logging.")
	if err := viper.BindPFlag("debug.log-enabled", flagSet.Lookup("log")); err != nil {
		return err
	}

	flagSet.String("log-path", "", "Rotating log file path; empty logs to stderr.")
	if err := viper.BindPFlag("debug.log-path", flagSet.Lookup("log-path")); err != nil {
		return err
	}

	return nil
}
