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

// PhysBase is the first address of kernel virtual memory; every user
// address must lie strictly below it (spec.md §4.2, §6).
const PhysBase = uintptr(0xC0000000)

// StackGrowthLimit is how far below PhysBase the automatically-growable
// stack region extends (spec.md §4.3).
const StackGrowthLimit = 1 << 20 // 1 MiB

// StackFaultSlack is how far below the saved stack pointer a fault may
// occur and still be treated as stack growth (spec.md §4.3): a PUSHA-style
// instruction can fault up to 32 bytes below esp.
const StackFaultSlack = 32

// InStackGrowthRegion reports whether addr lies within the stack's
// auto-growth region just below PhysBase.
func InStackGrowthRegion(addr uintptr) bool {
	return addr < PhysBase && addr >= PhysBase-StackGrowthLimit
}
