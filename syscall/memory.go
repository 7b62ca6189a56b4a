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

package syscall

import (
	"context"

	"github.com/gopintos/kernel/common"
	"github.com/gopintos/kernel/pager"
	"github.com/gopintos/kernel/vm"
)

// touchPage is the two-stage sequence spec.md §4.2 describes for every
// byte read or write across the user/kernel boundary: first confirm the
// address lies below PhysBase, then run the processor-assisted load,
// modeled here as Fault (which can grow the stack or page in an existing
// mapping) followed by PageLock (which pins the frame and enforces the
// writable bit). Either stage failing means ErrFault.
func touchPage(ctx context.Context, p *pager.Pager, pt *vm.PageTable, owner vm.ProcessID, savedSP, addr uintptr, write bool) (*vm.Frame, error) {
	if addr >= vm.PhysBase {
		return nil, ErrFault
	}
	if err := p.Fault(ctx, pt, addr, savedSP, owner); err != nil {
		return nil, ErrFault
	}
	frame, err := p.PageLock(ctx, pt, addr, write)
	if err != nil {
		return nil, ErrFault
	}
	return frame, nil
}

// CopyInBytes copies n bytes starting at user address uaddr into a fresh
// kernel-owned []byte, page by page, pinning each containing page only for
// the duration of its own chunk (spec.md §4.2/§7: a fault partway through
// aborts after the valid prefix was already copied, so the caller sees
// ErrFault and discards the partial buffer).
func CopyInBytes(ctx context.Context, p *pager.Pager, pt *vm.PageTable, owner vm.ProcessID, savedSP, uaddr uintptr, n int) ([]byte, error) {
	out := make([]byte, n)
	for copied := 0; copied < n; {
		addr := uaddr + uintptr(copied)
		frame, err := touchPage(ctx, p, pt, owner, savedSP, addr, false)
		if err != nil {
			return nil, err
		}

		off := int(addr - common.AlignDown(addr, common.PageSize))
		chunk := common.MinInt(common.PageSize-off, n-copied)

		copy(out[copied:copied+chunk], frame.Mem()[off:off+chunk])
		p.PageUnlock(frame)
		copied += chunk
	}
	return out, nil
}

// CopyOutBytes writes data to user address uaddr, page by page, exactly
// mirroring CopyInBytes but pinning for write (spec.md §4.2's put_user):
// a read-only destination page aborts with ErrFault before any more bytes
// are written.
func CopyOutBytes(ctx context.Context, p *pager.Pager, pt *vm.PageTable, owner vm.ProcessID, savedSP, uaddr uintptr, data []byte) error {
	for written := 0; written < len(data); {
		addr := uaddr + uintptr(written)
		frame, err := touchPage(ctx, p, pt, owner, savedSP, addr, true)
		if err != nil {
			return err
		}

		off := int(addr - common.AlignDown(addr, common.PageSize))
		chunk := common.MinInt(common.PageSize-off, len(data)-written)

		copy(frame.Mem()[off:off+chunk], data[written:written+chunk])
		p.PageUnlock(frame)
		written += chunk
	}
	return nil
}

// CopyInString implements copy_in_string (spec.md §4.2): it reads bytes
// from user address uaddr until a NUL or one page of bytes has been
// copied, whichever comes first, pinning each containing page only while
// its bytes are being read. The returned string does not include the
// NUL; if none is found within one page, it holds exactly one page of
// bytes.
func CopyInString(ctx context.Context, p *pager.Pager, pt *vm.PageTable, owner vm.ProcessID, savedSP, uaddr uintptr) (string, error) {
	buf := make([]byte, 0, common.PageSize)

	for len(buf) < common.PageSize {
		addr := uaddr + uintptr(len(buf))
		frame, err := touchPage(ctx, p, pt, owner, savedSP, addr, false)
		if err != nil {
			return "", err
		}

		off := int(addr - common.AlignDown(addr, common.PageSize))
		mem := frame.Mem()
		for off < common.PageSize && len(buf) < common.PageSize {
			b := mem[off]
			if b == 0 {
				p.PageUnlock(frame)
				return string(buf), nil
			}
			buf = append(buf, b)
			off++
		}
		p.PageUnlock(frame)
	}

	return string(buf), nil
}
