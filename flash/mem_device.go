// Copyright 2015 Google Inc. All Rights Reserved.
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

package flash

import "fmt"

// MemDevice is a Device backed by a plain byte slice. It is the "fake" used
// by tests and by callers with no real flash part, the same role a
// byte-slice-backed fake plays for the teacher's in-memory file systems.
type MemDevice struct {
	pageSize  int64
	writeSize int64
	data      []byte
}

// NewMemDevice creates a simulated flash device of pageCount*pageSize bytes,
// initialized to the erase state.
func NewMemDevice(pageCount int, pageSize, writeBlockSize int64) *MemDevice {
	d := &MemDevice{
		pageSize:  pageSize,
		writeSize: writeBlockSize,
		data:      make([]byte, int64(pageCount)*pageSize),
	}
	for i := range d.data {
		d.data[i] = ErasedByte
	}
	return d
}

func (d *MemDevice) Size() int64           { return int64(len(d.data)) }
func (d *MemDevice) PageSize() int64       { return d.pageSize }
func (d *MemDevice) WriteBlockSize() int64 { return d.writeSize }

func (d *MemDevice) InFlash(addr int64) bool {
	return addr >= 0 && addr < d.Size()
}

func (d *MemDevice) PageAligned(addr int64) bool {
	return addr%d.pageSize == 0
}

func (d *MemDevice) Overflow(addr, n int64) bool {
	return addr < 0 || n < 0 || addr+n > d.Size()
}

func (d *MemDevice) PageOverflow(addr, n int64) bool {
	if n == 0 {
		return false
	}
	return PageOf(addr, d.pageSize) != PageOf(addr+n-1, d.pageSize)
}

func (d *MemDevice) ReadAt(p []byte, addr int64) error {
	if d.Overflow(addr, int64(len(p))) {
		return fmt.Errorf("flash: read [%d,%d) out of range", addr, addr+int64(len(p)))
	}
	copy(p, d.data[addr:addr+int64(len(p))])
	return nil
}

func (d *MemDevice) ErasePage(addr int64) error {
	base := PageOf(addr, d.pageSize)
	page := d.data[base : base+d.pageSize]
	if IsErased(page) {
		return nil
	}
	for i := range page {
		page[i] = ErasedByte
	}
	if !IsErased(page) {
		return ErrEraseFailed
	}
	return nil
}

// WriteUnaligned programs src byte-by-byte: each destination byte becomes
// its current value AND the source byte, as real NOR flash only ever
// clears bits until the next erase. Write-block granularity is not
// modeled; every byte is programmed on its own.
func (d *MemDevice) WriteUnaligned(dest int64, src []byte) error {
	if d.Overflow(dest, int64(len(src))) || d.PageOverflow(dest, int64(len(src))) {
		return fmt.Errorf("flash: write [%d,%d) invalid", dest, dest+int64(len(src)))
	}

	for i, b := range src {
		addr := dest + int64(i)
		// NOR flash can only clear bits (1 -> 0) until the next erase:
		// the programmed result is old & b. If the caller asked for a bit
		// to go 0 -> 1, the result silently falls short of b and verify
		// must catch it rather than mask it.
		old := d.data[addr]
		d.data[addr] = old & b
		if d.data[addr] != b {
			return ErrVerify
		}
	}
	return nil
}
