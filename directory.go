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

package xipfs

import (
	"encoding/binary"
	"strings"

	"github.com/xipfs/xipfs/flash"
)

// headerSize is the on-NVM size of a file record's fixed header, per the
// layout in spec.md §6: next (8) + path (PathMax) + reserved (4) +
// size[SizeSlots] (4 each) + exec (4).
const headerSize = 8 + PathMax + 4 + SizeSlots*4 + 4

const (
	offNext     = 0
	offPath     = offNext + 8
	offReserved = offPath + PathMax
	offSize     = offReserved + 4
	offExec     = offSize + SizeSlots*4
)

// erasedOffset is the bit pattern an 8-byte erased next field reads as.
const erasedOffset = Offset(-1) // 0xFFFFFFFFFFFFFFFF as two's complement int64

// record is the in-RAM decoding of one on-NVM file record header (spec.md
// §3 "File record").
type record struct {
	self     Offset
	next     Offset
	path     string
	reserved uint32
	sizes    [SizeSlots]uint32
	exec     bool
}

// terminal reports whether this record is the linked list's tail sentinel
// (spec.md invariant 2: "next == self").
func (r *record) terminal() bool { return r.next == r.self }

func encodeRecord(r *record) []byte {
	buf := make([]byte, headerSize)

	binary.LittleEndian.PutUint64(buf[offNext:offNext+8], uint64(r.next))

	var pathBuf [PathMax]byte
	copy(pathBuf[:], r.path)
	// Remainder of the path field (after the NUL terminator written by
	// copy's zero-value fill) stays zero, matching a C-style fixed buffer
	// rather than the NVM erase state — it is overwritten real data, not
	// unwritten flash.
	copy(buf[offPath:offPath+PathMax], pathBuf[:])

	binary.LittleEndian.PutUint32(buf[offReserved:offReserved+4], r.reserved)

	for i, s := range r.sizes {
		o := offSize + i*4
		binary.LittleEndian.PutUint32(buf[o:o+4], s)
	}

	exec := uint32(0)
	if r.exec {
		exec = 1
	}
	binary.LittleEndian.PutUint32(buf[offExec:offExec+4], exec)

	return buf
}

// decodeRecord interprets buf (headerSize bytes read from self) as a file
// record. ok is false if the next field reads as fully erased, meaning no
// record has ever been written at self (spec.md §4.3's "end of list"/
// "file system empty" signal).
func decodeRecord(buf []byte, self Offset) (r *record, ok bool) {
	next := Offset(binary.LittleEndian.Uint64(buf[offNext : offNext+8]))
	if next == erasedOffset {
		return nil, false
	}

	r = &record{self: self, next: next}

	pathBuf := buf[offPath : offPath+PathMax]
	if i := indexByte(pathBuf, 0); i >= 0 {
		r.path = string(pathBuf[:i])
	} else {
		r.path = string(pathBuf)
	}

	r.reserved = binary.LittleEndian.Uint32(buf[offReserved : offReserved+4])

	for i := 0; i < SizeSlots; i++ {
		o := offSize + i*4
		r.sizes[i] = binary.LittleEndian.Uint32(buf[o : o+4])
	}

	r.exec = binary.LittleEndian.Uint32(buf[offExec:offExec+4]) != 0

	return r, true
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

// Directory implements the linked-list-over-NVM operations of spec.md
// §4.3: traversal, free-space accounting, allocation, deletion with
// consolidation, and bulk rename. It generalizes the free-list bookkeeping
// in samples/memfs/fs.go (allocateInode/deallocateInode operate on a RAM
// slice of pointers) to a physically contiguous on-NVM run of pages.
type Directory struct {
	mp *MountPoint
}

// readRecord loads and decodes the header at off. A nil record with a nil
// error means no record exists there.
func (d *Directory) readRecord(off Offset) (*record, error) {
	buf := make([]byte, headerSize)
	if err := d.mp.pb.Read(buf, d.mp.absolute(off), headerSize); err != nil {
		return nil, translateHardwareError(err)
	}
	r, ok := decodeRecord(buf, off)
	if !ok {
		return nil, nil
	}
	return r, nil
}

// writeRecord stages r's header at r.self and flushes immediately, per
// spec.md invariant 9 ("every mutation that touches NVM returns only
// after the Page Buffer is flushed", with bulk operations as the named
// exception).
func (d *Directory) writeRecord(r *record) error {
	buf := encodeRecord(r)
	if err := d.mp.pb.Write(d.mp.absolute(r.self), buf, len(buf)); err != nil {
		return translateHardwareError(err)
	}
	return d.mp.pb.Flush()
}

// Head returns the file record at the mount's base, or nil if the file
// system is empty.
func (d *Directory) Head() (*record, error) {
	return d.headLocked()
}

func (d *Directory) headLocked() (*record, error) {
	return d.readRecord(0)
}

// Next returns the record following f, or nil if f is the terminal record
// or the slot it points to has never been written.
func (d *Directory) Next(f *record) (*record, error) {
	if f.terminal() {
		return nil, nil
	}
	return d.readRecord(f.next)
}

// Tail walks the list to its last record. Complexity is O(number of
// files), per spec.md §4.3.
func (d *Directory) Tail() (*record, error) {
	return d.tailLocked()
}

func (d *Directory) tailLocked() (*record, error) {
	cur, err := d.headLocked()
	if err != nil || cur == nil {
		return cur, err
	}
	for !cur.terminal() {
		nxt, err := d.readRecord(cur.next)
		if err != nil {
			return nil, err
		}
		if nxt == nil {
			break
		}
		cur = nxt
	}
	return cur, nil
}

// TailNext returns the address at which a new file would begin: base if
// the directory is empty, or the tail's next pointer otherwise. It fails
// with ENOSPC if the tail is terminal (the mount is full).
func (d *Directory) TailNext() (Offset, error) {
	tail, err := d.tailLocked()
	if err != nil {
		return 0, err
	}
	if tail == nil {
		return 0, nil
	}
	if tail.terminal() {
		return 0, ENOSPC
	}
	return tail.next, nil
}

// usedPages returns the number of pages occupied by files.
func (d *Directory) usedPages() (int64, error) {
	head, err := d.headLocked()
	if err != nil {
		return 0, err
	}
	if head == nil {
		return 0, nil
	}
	tail, err := d.tailLocked()
	if err != nil {
		return 0, err
	}
	used := (int64(tail.self) + int64(tail.reserved) - int64(head.self))
	return used / d.mp.dev.PageSize(), nil
}

// FreePages returns the number of erase pages not occupied by any file.
func (d *Directory) FreePages() (int64, error) {
	used, err := d.usedPages()
	if err != nil {
		return 0, err
	}
	return d.mp.pageCount - used, nil
}

// reservedFor computes the reserved byte count for a file requesting
// requestedBytes, per spec.md §4.3 step 2: the smallest positive multiple
// of a page that holds it.
func (d *Directory) reservedFor(requestedBytes int64) int64 {
	pageSize := d.mp.dev.PageSize()
	pages := (requestedBytes + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	return pages * pageSize
}

// NewFile validates path and allocates a new file record at the current
// tail position, per spec.md §4.3 "new_file".
func (d *Directory) NewFile(path string, requestedBytes int64, exec bool) (*record, error) {
	if err := ValidatePath(path, false); err != nil {
		return nil, err
	}
	if requestedBytes < 0 {
		return nil, EINVAL
	}

	reserved := d.reservedFor(requestedBytes)
	pageSize := d.mp.dev.PageSize()

	where, err := d.TailNext()
	if err == ENOSPC {
		// TailNext's generic "tail is a self-loop" capacity error becomes
		// EDQUOT at this boundary: spec.md §6's API table and §8 scenario 4
		// both name EDQUOT as new_file's capacity error on an already-full
		// mount, not just on a too-large request (the default: branch below).
		return nil, EDQUOT
	}
	if err != nil {
		return nil, err
	}

	free, err := d.FreePages()
	if err != nil {
		return nil, err
	}

	reservedPages := reserved / pageSize
	var next Offset
	switch {
	case reservedPages < free:
		next = where + Offset(reserved)
	case reservedPages == free:
		next = where // self-loop: mount now full
	default:
		return nil, EDQUOT
	}

	r := &record{
		self:     where,
		next:     next,
		path:     path,
		reserved: uint32(reserved),
		exec:     exec,
	}
	for i := range r.sizes {
		r.sizes[i] = erasedU32
	}

	if err := d.writeRecord(r); err != nil {
		return nil, err
	}
	return r, nil
}

const erasedU32 = 0xffffffff

// Format erases every page in the mount range.
func (d *Directory) Format() error { return d.mp.Format() }

// Remove deletes f and consolidates every successor down by f.reserved
// bytes, per spec.md §4.3's consolidation algorithm. It returns the byte
// displacement applied to every record beyond f. Driver does not use it:
// its handles are keyed by path and re-resolved on every access.
func (d *Directory) Remove(f *record) (displacement int64, err error) {
	if err := d.mp.pb.Flush(); err != nil {
		return 0, translateHardwareError(err)
	}

	// Successor headers are read straight from the device: the shift below
	// erases and programs pages directly, so a page staged in the Page
	// Buffer would go stale and be written back by its next flush.
	readHeader := func(off Offset) (*record, error) {
		page, err := d.readRawPageAt(int64(off))
		if err != nil {
			return nil, err
		}
		r, _ := decodeRecord(page[:headerSize], off)
		return r, nil
	}

	removedReserved := int64(f.reserved)
	pageSize := d.mp.dev.PageSize()

	// Erase the removed file's own pages first: the consolidation shift
	// below always writes into already-erased destination pages, and this
	// is the first such destination window (spec.md §4.3: "After erasing
	// the removed file's pages, the gap is filled by...").
	for p := int64(0); p < removedReserved/pageSize; p++ {
		if err := d.mp.dev.ErasePage(int64(f.self) + p*pageSize); err != nil {
			return 0, translateHardwareError(err)
		}
	}

	var src *record
	if !f.terminal() {
		src, err = readHeader(f.next)
		if err != nil {
			return 0, err
		}
	}

	dst := f.self

	for src != nil {
		srcTerminal := src.terminal()
		origNext := src.next // the successor's address in the old layout

		// Step 1: patch S.next to its new destination-relative value
		// before anything is written, so the list stays traversable at
		// every point (spec.md §4.3's termination argument).
		patched := &record{
			self:     dst,
			path:     src.path,
			reserved: src.reserved,
			sizes:    src.sizes,
			exec:     src.exec,
		}
		// The shift frees f's pages, so even a formerly terminal successor
		// now has free space after it and is no longer a self-loop.
		patched.next = dst + Offset(int64(src.reserved))

		// Step 2: write the patched header to dst. The destination page is
		// already erased (it belonged to a file that was itself already
		// shifted or to the just-removed file), so this is a direct
		// program, not a page-buffer read-modify-write.
		headerBuf := encodeRecord(patched)
		if err := d.mp.dev.WriteUnaligned(d.mp.absolute(dst), headerBuf); err != nil {
			return 0, translateHardwareError(err)
		}

		// Step 3: copy the remainder of S's first page.
		firstPage, err := d.readRawPageAt(int64(src.self))
		if err != nil {
			return 0, err
		}
		if remainder := firstPage[headerSize:]; len(remainder) > 0 {
			if err := d.mp.dev.WriteUnaligned(d.mp.absolute(dst)+int64(headerSize), remainder); err != nil {
				return 0, translateHardwareError(err)
			}
		}

		// Step 4: erase S's old first page.
		if err := d.mp.dev.ErasePage(int64(src.self)); err != nil {
			return 0, translateHardwareError(err)
		}

		// Step 5: shift S's remaining pages one at a time, skipping pages
		// that are already fully erased (common for most of a sparsely
		// written file's payload).
		pages := int64(src.reserved) / pageSize
		for p := int64(1); p < pages; p++ {
			srcPageAddr := int64(src.self) + p*pageSize
			dstPageAddr := int64(dst) + p*pageSize

			pageBuf, err := d.readRawPageAt(srcPageAddr)
			if err != nil {
				return 0, err
			}
			if !flash.IsErased(pageBuf) {
				if err := d.mp.dev.WriteUnaligned(dstPageAddr, pageBuf); err != nil {
					return 0, translateHardwareError(err)
				}
			}
			if err := d.mp.dev.ErasePage(srcPageAddr); err != nil {
				return 0, translateHardwareError(err)
			}
		}

		dst = Offset(int64(dst) + int64(src.reserved))

		if srcTerminal {
			break
		}
		src, err = readHeader(origNext)
		if err != nil {
			return 0, err
		}
	}

	return removedReserved, nil
}

func (d *Directory) readRawPageAt(addr int64) ([]byte, error) {
	pageSize := d.mp.dev.PageSize()
	base := flash.PageOf(addr, pageSize)
	buf := make([]byte, pageSize)
	if err := d.mp.dev.ReadAt(buf, base); err != nil {
		return nil, translateHardwareError(err)
	}
	return buf, nil
}

// RenameResult summarizes a RenameAll call (see SPEC_FULL.md "Open
// Questions resolved", item 1).
type RenameResult struct {
	Renamed   int
	Truncated int
}

// RenameAll rewrites the path of every file whose path begins with
// fromPrefix, replacing that prefix with toPrefix, per spec.md §4.3
// "rename_all". Paths that would exceed PathMax-1 bytes are truncated and
// counted in RenameResult.Truncated rather than silently dropped.
func (d *Directory) RenameAll(fromPrefix, toPrefix string) (RenameResult, error) {
	var result RenameResult

	cur, err := d.headLocked()
	if err != nil {
		return result, err
	}

	for cur != nil {
		if strings.HasPrefix(cur.path, fromPrefix) {
			newPath := toPrefix + strings.TrimPrefix(cur.path, fromPrefix)
			truncated := false
			if len(newPath)+1 > PathMax {
				newPath = newPath[:PathMax-1]
				truncated = true
			}

			cur.path = newPath
			if err := d.writeRecord(cur); err != nil {
				return result, err
			}

			result.Renamed++
			if truncated {
				result.Truncated++
			}
		}

		if cur.terminal() {
			break
		}
		cur, err = d.readRecord(cur.next)
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

// All returns every file record currently in the list, head to tail. It is
// a convenience used by the Path Classifier and by readdir; it is O(n)
// just like repeated calls to Next.
func (d *Directory) All() ([]*record, error) {
	var out []*record
	cur, err := d.headLocked()
	if err != nil || cur == nil {
		return out, err
	}
	for {
		out = append(out, cur)
		if cur.terminal() {
			break
		}
		nxt, err := d.readRecord(cur.next)
		if err != nil {
			return out, err
		}
		if nxt == nil {
			break
		}
		cur = nxt
	}
	return out, nil
}
