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
	"fmt"

	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
	"github.com/xipfs/xipfs/flash"
)

// Size and layout constants from spec.md §3 and §6.
const (
	// PathMax is the maximum size in bytes of a path, including its NUL
	// terminator.
	PathMax = 64

	// SizeSlots is the number of append-only size-history slots in a file
	// record's size[] array.
	SizeSlots = 86
)

// MagicConst validates a MountPoint passed in from outside, per spec.md §3
// ("a sentinel constant used to validate a mount struct").
const MagicConst uint32 = 0x58495046 // "XIPF"

// Offset is a byte address relative to the start of a mount (device
// address 0), not a host pointer. Representing files this way, as spec.md
// §9 recommends, makes the terminal self-loop ("next == self") a plain
// integer comparison with no pointer-provenance hazards.
type Offset int64

// MountPoint is the validated root of one XIPFS instance: a Device plus
// the page accounting that makes it a mount (spec.md §3 "Mount point").
type MountPoint struct {
	dev       flash.Device
	pageCount int64
	magic     uint32

	mu syncutil.InvariantMutex

	pb    *flash.PageBuffer
	clock timeutil.Clock
}

// absolute turns a mount-relative Offset into a device address. The two
// coincide today (mounts always start at device address 0 for the devices
// this repo constructs), but keeping the conversion explicit is what lets
// a MountPoint later describe a sub-range of a larger device without
// touching Directory/File code.
func (mp *MountPoint) absolute(off Offset) int64 { return int64(off) }

func (mp *MountPoint) checkInvariants() {
	if mp.magic != MagicConst {
		panic(fmt.Sprintf("xipfs: bad magic %#x", mp.magic))
	}
	if mp.pageCount <= 0 {
		panic("xipfs: non-positive page count")
	}
}

// NewMountPoint wraps dev as a MountPoint of pageCount pages, without
// touching its contents. Use Format to initialize a fresh device or Mount
// to validate an existing one.
func NewMountPoint(dev flash.Device, pageCount int64, clock timeutil.Clock) *MountPoint {
	mp := &MountPoint{
		dev:       dev,
		pageCount: pageCount,
		magic:     MagicConst,
		pb:        flash.NewPageBuffer(dev),
		clock:     clock,
	}
	mp.mu = syncutil.NewInvariantMutex(mp.checkInvariants)
	return mp
}

// PageSize returns the device's erase-page size.
func (mp *MountPoint) PageSize() int64 { return mp.dev.PageSize() }

// PageCount returns the number of erase pages belonging to this mount.
func (mp *MountPoint) PageCount() int64 { return mp.pageCount }

// Format erases every page in the mount range, leaving an empty file
// system (spec.md §4.3 "format(mp)"). Callers reach this through
// Driver.Format, which holds the mount-wide lock; MountPoint itself does
// not lock, per spec.md §4.6 ("Driver... Holds one global mutex").
func (mp *MountPoint) Format() error {
	// Empty the Page Buffer first, so no later read is served from, and no
	// later flush writes back, a page staged before the erase.
	if err := mp.pb.Flush(); err != nil {
		return translateHardwareError(err)
	}
	for p := int64(0); p < mp.pageCount; p++ {
		if err := mp.dev.ErasePage(p * mp.dev.PageSize()); err != nil {
			return translateHardwareError(err)
		}
	}
	return nil
}

// Mount validates a previously formatted device: it walks to the tail and
// verifies every page past it reads as fully erased (spec.md §5
// "Cancellation and timeouts" — mount performs a tail-consistency check).
// It returns the Directory for the validated mount.
func Mount(dev flash.Device, pageCount int64, clock timeutil.Clock) (*Directory, error) {
	mp := NewMountPoint(dev, pageCount, clock)

	mp.mu.Lock()
	defer mp.mu.Unlock()

	dir := &Directory{mp: mp}

	tail, err := dir.tailLocked()
	if err != nil {
		return nil, err
	}

	var tailEnd int64
	if tail == nil {
		tailEnd = 0
	} else {
		tailEnd = int64(tail.self) + int64(tail.reserved)
	}

	total := mp.pageCount * mp.dev.PageSize()
	if tailEnd > total {
		return nil, EIO
	}

	page := make([]byte, mp.dev.PageSize())
	for addr := tailEnd; addr < total; addr += mp.dev.PageSize() {
		if err := mp.dev.ReadAt(page, addr); err != nil {
			return nil, translateHardwareError(err)
		}
		if !flash.IsErased(page) {
			return nil, EIO
		}
	}

	return dir, nil
}

// translateHardwareError maps a Flash Primitive / Page Buffer failure to
// the caller-visible ENVMC/EIO per spec.md §7.
func translateHardwareError(err error) error {
	if err == nil {
		return nil
	}
	return ENVMC
}
