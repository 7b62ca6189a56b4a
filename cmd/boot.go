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

package cmd

import (
	"context"
	"fmt"

	"github.com/gopintos/kernel/cfg"
	"github.com/gopintos/kernel/kernel"
	"github.com/spf13/cobra"
)

var initCommandLine string

var runCmd = &cobra.Command{
	Use:   "run <disk-image>",
	Short: "Boot the kernel over disk-image and run the init command line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		runtimeConfig.Disk.ImagePath = args[0]
		if err := runtimeConfig.Validate(); err != nil {
			return err
		}
		return boot(context.Background(), runtimeConfig, initCommandLine)
	},
}

func init() {
	runCmd.Flags().StringVar(&initCommandLine, "init-command", "", "Command line run as the first user process.")
	rootCmd.AddCommand(runCmd)
}

// boot builds a kernel.Kernel over cfg, starts commandLine as the init
// process, and logs the new process's pid, mirroring the first half of
// Pintos's kernel command line boot path (load the root program named on
// the command line). It returns once the process is started; it does not
// wait for the process to exit or report its exit code.
func boot(ctx context.Context, c cfg.Config, commandLine string) error {
	k, err := kernel.New(c)
	if err != nil {
		return fmt.Errorf("booting kernel: %w", err)
	}
	defer k.Close()

	if commandLine == "" {
		return fmt.Errorf("cmd: --init-command is required")
	}

	child, err := k.Boot(ctx, commandLine)
	if err != nil {
		return fmt.Errorf("starting init process: %w", err)
	}

	k.Log.Printf("started pid %d: %s", child.PID, commandLine)
	return nil
}
