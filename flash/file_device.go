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

import (
	"fmt"
	"os"

	fallocate "github.com/detailyang/go-fallocate"
)

// FileBackedDevice is a Device that stores its bytes in a regular host
// file instead of RAM, for callers exercising the file system against
// something that survives process restart. Reads and writes go through
// pread(2)/pwrite(2) (see file_device_unix.go) rather than a seek-then-
// read/write pair, so concurrent callers sharing the *os.File (there are
// none today; the mount-wide lock forbids it, but the primitive itself
// should not assume otherwise) never race on the file offset.
type FileBackedDevice struct {
	f         *os.File
	size      int64
	pageSize  int64
	writeSize int64
}

// CreateFileBackedDevice preallocates a pageCount*pageSize byte file at
// path (creating it if absent) and fills it with the erase state. This is
// the Format half of mount.Format for a file-backed mount.
func CreateFileBackedDevice(path string, pageCount int, pageSize, writeBlockSize int64) (*FileBackedDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("flash: open %s: %w", path, err)
	}

	size := int64(pageCount) * pageSize
	if err := fallocate.Fallocate(f, 0, size); err != nil {
		f.Close()
		return nil, fmt.Errorf("flash: fallocate %s to %d bytes: %w", path, size, err)
	}

	d := &FileBackedDevice{f: f, size: size, pageSize: pageSize, writeSize: writeBlockSize}

	erasePage := make([]byte, pageSize)
	for i := range erasePage {
		erasePage[i] = ErasedByte
	}
	for off := int64(0); off < size; off += pageSize {
		if _, err := f.WriteAt(erasePage, off); err != nil {
			f.Close()
			return nil, fmt.Errorf("flash: erase-fill %s: %w", path, err)
		}
	}

	return d, nil
}

// OpenFileBackedDevice opens an existing file-backed device without
// reformatting it, for mounting across process restarts.
func OpenFileBackedDevice(path string, pageCount int, pageSize, writeBlockSize int64) (*FileBackedDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("flash: open %s: %w", path, err)
	}
	return &FileBackedDevice{f: f, size: int64(pageCount) * pageSize, pageSize: pageSize, writeSize: writeBlockSize}, nil
}

func (d *FileBackedDevice) Close() error { return d.f.Close() }

func (d *FileBackedDevice) Size() int64           { return d.size }
func (d *FileBackedDevice) PageSize() int64       { return d.pageSize }
func (d *FileBackedDevice) WriteBlockSize() int64 { return d.writeSize }

func (d *FileBackedDevice) InFlash(addr int64) bool { return addr >= 0 && addr < d.size }

func (d *FileBackedDevice) PageAligned(addr int64) bool { return addr%d.pageSize == 0 }

func (d *FileBackedDevice) Overflow(addr, n int64) bool {
	return addr < 0 || n < 0 || addr+n > d.size
}

func (d *FileBackedDevice) PageOverflow(addr, n int64) bool {
	if n == 0 {
		return false
	}
	return PageOf(addr, d.pageSize) != PageOf(addr+n-1, d.pageSize)
}

func (d *FileBackedDevice) ReadAt(p []byte, addr int64) error {
	if d.Overflow(addr, int64(len(p))) {
		return fmt.Errorf("flash: read [%d,%d) out of range", addr, addr+int64(len(p)))
	}
	return deviceRead(d.f, p, addr)
}

func (d *FileBackedDevice) ErasePage(addr int64) error {
	base := PageOf(addr, d.pageSize)
	page := make([]byte, d.pageSize)
	if err := deviceRead(d.f, page, base); err != nil {
		return err
	}
	if IsErased(page) {
		return nil
	}
	for i := range page {
		page[i] = ErasedByte
	}
	if err := deviceWrite(d.f, page, base); err != nil {
		return err
	}
	readBack := make([]byte, d.pageSize)
	if err := deviceRead(d.f, readBack, base); err != nil {
		return err
	}
	if !IsErased(readBack) {
		return ErrEraseFailed
	}
	return nil
}

func (d *FileBackedDevice) WriteUnaligned(dest int64, src []byte) error {
	if d.Overflow(dest, int64(len(src))) || d.PageOverflow(dest, int64(len(src))) {
		return fmt.Errorf("flash: write [%d,%d) invalid", dest, dest+int64(len(src)))
	}

	old := make([]byte, len(src))
	if err := deviceRead(d.f, old, dest); err != nil {
		return err
	}

	programmed := make([]byte, len(src))
	for i, b := range src {
		programmed[i] = old[i] & b
	}
	if err := deviceWrite(d.f, programmed, dest); err != nil {
		return err
	}

	verify := make([]byte, len(src))
	if err := deviceRead(d.f, verify, dest); err != nil {
		return err
	}
	if !bytesEqual(verify, src) {
		return ErrVerify
	}
	return nil
}
