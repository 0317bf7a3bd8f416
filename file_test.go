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
	. "github.com/jacobsa/ogletest"
)

type FileTest struct {
	dir *Directory
	f   *File
}

func init() { RegisterTestSuite(&FileTest{}) }

func (t *FileTest) SetUp(ti *TestInfo) {
	t.dir = newTestDirectory(4)
	rec, err := t.dir.NewFile("/a", 0, false)
	AssertEq(nil, err)
	t.f = newFile(t.dir, rec)
}

func (t *FileTest) MaxPosIsReservedMinusHeader() {
	ExpectEq(int64(t.f.rec.reserved)-headerSize, t.f.MaxPos())
}

////////////////////////////////////////////////////////////////////////
// Size slots
////////////////////////////////////////////////////////////////////////

func (t *FileTest) FreshFileHasZeroSize() {
	ExpectEq(0, t.f.GetSize())
}

func (t *FileTest) SetSizeThenGetSizeRoundTrips() {
	AssertEq(nil, t.f.SetSize(42))
	ExpectEq(42, t.f.GetSize())

	AssertEq(nil, t.f.SetSize(100))
	ExpectEq(100, t.f.GetSize())
}

func (t *FileTest) SetSizeWrapsAfterAllSlotsAreUsedAndSilentlyLosesTheUpdate() {
	// Exhaust all SizeSlots slots with distinct, increasing sizes.
	for i := 1; i <= SizeSlots; i++ {
		AssertEq(nil, t.f.SetSize(int64(i)))
	}
	ExpectEq(SizeSlots, t.f.GetSize())

	// One more call wraps around to slot 0, overwriting the oldest slot.
	// GetSize's "value before the first erased slot" scan never finds an
	// erased slot once the array is full, so it keeps reporting the last
	// array element regardless: the new size is silently lost, exactly as
	// documented on SetSize.
	AssertEq(nil, t.f.SetSize(999))
	ExpectEq(SizeSlots, t.f.GetSize())
}

////////////////////////////////////////////////////////////////////////
// Byte I/O
////////////////////////////////////////////////////////////////////////

func (t *FileTest) WriteByteThenReadByteRoundTrips() {
	AssertEq(nil, t.f.WriteByte(0, 'h'))
	AssertEq(nil, t.f.WriteByte(1, 'i'))
	AssertEq(nil, t.f.Flush())

	b, err := t.f.ReadByte(0)
	AssertEq(nil, err)
	ExpectEq('h', b)

	b, err = t.f.ReadByte(1)
	AssertEq(nil, err)
	ExpectEq('i', b)
}

func (t *FileTest) ReadByteRejectsOutOfRangePositions() {
	_, err := t.f.ReadByte(-1)
	ExpectEq(EINVAL, err)

	// MaxPos itself is one past the last valid position (it addresses
	// whatever follows this file's reserved run), so it is rejected too.
	_, err = t.f.ReadByte(t.f.MaxPos())
	ExpectEq(EINVAL, err)

	_, err = t.f.ReadByte(t.f.MaxPos() + 1)
	ExpectEq(EINVAL, err)
}

func (t *FileTest) WriteByteRejectsOutOfRangePositions() {
	ExpectEq(EINVAL, t.f.WriteByte(-1, 'x'))
	ExpectEq(EINVAL, t.f.WriteByte(t.f.MaxPos(), 'x'))
	ExpectEq(EINVAL, t.f.WriteByte(t.f.MaxPos()+1, 'x'))
}

////////////////////////////////////////////////////////////////////////
// Rename
////////////////////////////////////////////////////////////////////////

func (t *FileTest) RenameToABitwiseSubsetSucceeds() {
	rec, err := t.dir.NewFile("/abcd", 0, false)
	AssertEq(nil, err)
	f := newFile(t.dir, rec)

	// Shortening to a prefix only ever clears trailing bytes to zero,
	// which is always a bitwise subset of whatever was there before.
	AssertEq(nil, f.Rename("/abc"))
	ExpectEq("/abc", f.rec.path)
}

func (t *FileTest) RenameRejectsNonSubsetBitPatterns() {
	rec, err := t.dir.NewFile("/abc", 0, false)
	AssertEq(nil, err)
	f := newFile(t.dir, rec)

	// 'c' (0x63) -> 'd' (0x64) sets a bit ('d' has 0x04 clear in 'c') that
	// 'c' had already cleared; not representable without an erase.
	err = f.Rename("/abd")
	ExpectEq(EINVAL, err)
}

func (t *FileTest) RenameRejectsOverlongPaths() {
	rec, err := t.dir.NewFile("/a", 0, false)
	AssertEq(nil, err)
	f := newFile(t.dir, rec)

	long := make([]byte, PathMax)
	for i := range long {
		long[i] = 'x'
	}
	err = f.Rename("/" + string(long))
	ExpectEq(ENAMETOOLONG, err)
}

////////////////////////////////////////////////////////////////////////
// Path validation
////////////////////////////////////////////////////////////////////////

func (t *FileTest) ValidatePathAcceptsOrdinaryFilePaths() {
	ExpectEq(nil, ValidatePath("/a/b_c-1.txt", false))
}

func (t *FileTest) ValidatePathRequiresLeadingSlash() {
	ExpectEq(EINVAL, ValidatePath("a", false))
}

func (t *FileTest) ValidatePathRejectsEmptyComponents() {
	ExpectEq(EINVAL, ValidatePath("/a//b", false))
}

func (t *FileTest) ValidatePathRejectsDisallowedCharacters() {
	ExpectEq(EINVAL, ValidatePath("/a b", false))
}

func (t *FileTest) ValidatePathEnforcesDirVsFileSuffix() {
	ExpectEq(EISDIR, ValidatePath("/a/", false))
	ExpectEq(EINVAL, ValidatePath("/a", true))
	ExpectEq(nil, ValidatePath("/a/", true))
}

func (t *FileTest) ValidatePathRejectsOverlongPaths() {
	long := make([]byte, PathMax)
	for i := range long {
		long[i] = 'x'
	}
	ExpectEq(ENAMETOOLONG, ValidatePath("/"+string(long), false))
}
