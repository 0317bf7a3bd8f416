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

type bufferState int

const (
	bufferEmpty bufferState = iota
	bufferLoaded
)

// PageBuffer is a single page-sized RAM staging area for read-modify-write
// access to a Device. At most one page is ever dirty in RAM at a time: a
// read or write touching a different page than the one currently staged
// flushes the old page first. See samples/memfs's inode.ReadAt/WriteAt for
// the staging shape this generalizes from whole-slice RAM to one flash page.
type PageBuffer struct {
	dev Device

	state   bufferState
	pageNum int64
	pageOff int64 // page-aligned address of the staged page
	buf     []byte
}

// NewPageBuffer creates an empty page buffer over dev.
func NewPageBuffer(dev Device) *PageBuffer {
	return &PageBuffer{
		dev: dev,
		buf: make([]byte, dev.PageSize()),
	}
}

// ensure loads the page containing addr into the buffer, flushing any
// different page first.
func (b *PageBuffer) ensure(addr int64) error {
	pageOff := PageOf(addr, b.dev.PageSize())

	if b.state == bufferLoaded && b.pageOff == pageOff {
		return nil
	}

	if b.state == bufferLoaded {
		if err := b.Flush(); err != nil {
			return err
		}
	}

	if err := b.dev.ReadAt(b.buf, pageOff); err != nil {
		return fmt.Errorf("pagebuffer: load page at %d: %w", pageOff, err)
	}

	b.state = bufferLoaded
	b.pageOff = pageOff
	b.pageNum = pageOff / b.dev.PageSize()
	return nil
}

// Read copies n bytes starting at src into dest, staging pages as needed.
// A page staged only by reads is not dirty: Flush finds it equal to the
// device and skips the erase and program.
func (b *PageBuffer) Read(dest []byte, src int64, n int) error {
	for i := 0; i < n; {
		if err := b.ensure(src + int64(i)); err != nil {
			return err
		}
		off := (src + int64(i)) - b.pageOff
		chunk := minInt64(int64(n-i), b.dev.PageSize()-off)
		copy(dest[i:i+int(chunk)], b.buf[off:off+chunk])
		i += int(chunk)
	}
	return nil
}

// Write stages n bytes of src at dest, marking the covering page dirty.
// Nothing reaches the device until Flush is called (explicitly, or
// implicitly by a subsequent access to a different page).
func (b *PageBuffer) Write(dest int64, src []byte, n int) error {
	for i := 0; i < n; {
		if err := b.ensure(dest + int64(i)); err != nil {
			return err
		}
		off := (dest + int64(i)) - b.pageOff
		chunk := minInt64(int64(n-i), b.dev.PageSize()-off)
		copy(b.buf[off:off+chunk], src[i:i+int(chunk)])
		i += int(chunk)
	}
	return nil
}

// Flush commits the staged page to the device if it differs from what is
// already there, then marks the buffer empty. A flush after writes that
// stayed within one page costs exactly one erase plus one full-page
// program, per spec.md §4.2.
func (b *PageBuffer) Flush() error {
	if b.state != bufferLoaded {
		return nil
	}

	onDevice := make([]byte, b.dev.PageSize())
	if err := b.dev.ReadAt(onDevice, b.pageOff); err != nil {
		return fmt.Errorf("pagebuffer: flush read-back: %w", err)
	}

	if !bytesEqual(onDevice, b.buf) {
		if err := b.dev.ErasePage(b.pageOff); err != nil {
			return fmt.Errorf("pagebuffer: erase page %d: %w", b.pageOff, err)
		}
		if err := b.dev.WriteUnaligned(b.pageOff, b.buf); err != nil {
			return fmt.Errorf("pagebuffer: program page %d: %w", b.pageOff, err)
		}
	}

	b.state = bufferEmpty
	return nil
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
