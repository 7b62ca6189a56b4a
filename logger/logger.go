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

// Package logger provides the kernel's single shared *log.Logger, backed by
// a rotating file when configured, or stderr/discard otherwise.
package logger

import (
	"io"
	"log"
	"os"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options configures where kernel log output goes.
type Options struct {
	// Path to the rotating log file. Empty means log to stderr.
	Path string

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int

	// Enabled gates whether anything is written at all. Mirrors the
	// debug-flag-gated logger used by the filesystem proxy layer this is
	// patterned on: when disabled, writes go to io.Discard rather than being
	// skipped by call sites.
	Enabled bool
}

// New returns a logger configured per opts, with a fixed "kernel: " prefix.
func New(opts Options) *log.Logger {
	var w io.Writer = io.Discard

	switch {
	case !opts.Enabled:
		w = io.Discard
	case opts.Path == "":
		w = os.Stderr
	default:
		w = &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   false,
		}
	}

	return log.New(w, "kernel: ", log.LstdFlags|log.Lmicroseconds)
}
