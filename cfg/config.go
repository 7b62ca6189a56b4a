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

// Package cfg holds the kernel's tunables, bound to flags the way the
// teacher's cfg.Config is bound: a plain struct decoded by viper from
// pflag-registered flags (and an optional YAML config file).
package cfg

// Config is every knob the boot sequence needs before it can build a
// kernel.Kernel: where the disk and swap images live, how big the frame
// pool is, and where the root directory's inode lives on disk.
type Config struct {
	Disk DiskConfig `yaml:"disk"`

	Swap SwapConfig `yaml:"swap"`

	Memory MemoryConfig `yaml:"memory"`

	Debug DebugConfig `yaml:"debug"`
}

// DiskConfig describes the file standing in for the filesystem's block
// device (spec.md §6's BlockDevice external collaborator).
type DiskConfig struct {
	ImagePath string `yaml:"image-path"`

	Sectors int64 `yaml:"sectors"`

	// RootSector is the fixed sector the root directory's inode lives at.
	RootSector int64 `yaml:"root-sector"`
}

// SwapConfig describes the file standing in for the swap device.
type SwapConfig struct {
	ImagePath string `yaml:"image-path"`

	Sectors int64 `yaml:"sectors"`
}

// MemoryConfig sizes the simulated physical frame pool.
type MemoryConfig struct {
	Frames int `yaml:"frames"`
}

// DebugConfig gates kernel-log verbosity, mirroring the teacher's
// Debug.LogMutex/ExitOnInvariantViolation flags.
type DebugConfig struct {
	LogEnabled bool `yaml:"log-enabled"`

	LogPath string `yaml:"log-path"`
}
