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

package flash_test

import (
	"errors"

	"github.com/xipfs/xipfs/flash"
	"github.com/xipfs/xipfs/flash/mock_flash"

	. "github.com/jacobsa/oglematchers"
	"github.com/jacobsa/oglemock"
	. "github.com/jacobsa/ogletest"
)

////////////////////////////////////////////////////////////////////////
// PageBuffer over a real MemDevice
////////////////////////////////////////////////////////////////////////

type PageBufferTest struct {
	dev *flash.MemDevice
	pb  *flash.PageBuffer
}

func init() { RegisterTestSuite(&PageBufferTest{}) }

func (t *PageBufferTest) SetUp(ti *TestInfo) {
	t.dev = flash.NewMemDevice(4, 4096, 4)
	t.pb = flash.NewPageBuffer(t.dev)
}

func (t *PageBufferTest) WriteThenReadWithinOnePage() {
	AssertEq(nil, t.pb.Write(10, []byte("hello"), 5))

	buf := make([]byte, 5)
	AssertEq(nil, t.pb.Read(buf, 10, 5))
	ExpectEq("hello", string(buf))
}

func (t *PageBufferTest) NothingOnDeviceUntilFlush() {
	AssertEq(nil, t.pb.Write(10, []byte("hello"), 5))

	raw := make([]byte, 5)
	AssertEq(nil, t.dev.ReadAt(raw, 10))
	ExpectTrue(flash.IsErased(raw))

	AssertEq(nil, t.pb.Flush())

	AssertEq(nil, t.dev.ReadAt(raw, 10))
	ExpectEq("hello", string(raw))
}

func (t *PageBufferTest) AccessingADifferentPageFlushesTheOldOne() {
	AssertEq(nil, t.pb.Write(10, []byte("hello"), 5))

	// Touch a different page: this must implicitly flush page 0 before
	// staging page 1.
	AssertEq(nil, t.pb.Write(4096+10, []byte("world"), 5))

	raw := make([]byte, 5)
	AssertEq(nil, t.dev.ReadAt(raw, 10))
	ExpectEq("hello", string(raw))

	// Page 1 is still only staged, not yet committed.
	AssertEq(nil, t.dev.ReadAt(raw, 4096+10))
	ExpectTrue(flash.IsErased(raw))

	AssertEq(nil, t.pb.Flush())
	AssertEq(nil, t.dev.ReadAt(raw, 4096+10))
	ExpectEq("world", string(raw))
}

func (t *PageBufferTest) FlushOfUnloadedBufferIsANoOp() {
	AssertEq(nil, t.pb.Flush())
}

func (t *PageBufferTest) FlushSkipsProgramWhenUnchanged() {
	// Reading a page without writing to it stages it but should not dirty
	// it: flushing must not erase/reprogram a page that already matches
	// what's staged.
	buf := make([]byte, 5)
	AssertEq(nil, t.pb.Read(buf, 0, 5))
	ExpectTrue(flash.IsErased(buf))

	AssertEq(nil, t.pb.Flush())

	raw := make([]byte, t.dev.PageSize())
	AssertEq(nil, t.dev.ReadAt(raw, 0))
	ExpectTrue(flash.IsErased(raw))
}

////////////////////////////////////////////////////////////////////////
// PageBuffer over a mocked Device, for hardware-failure injection
////////////////////////////////////////////////////////////////////////

// These tests exercise the Page Buffer's error propagation (spec.md §4.2
// "Failure modes") without a real flash part, the same role oglemock plays
// mocking collaborators elsewhere in the corpus (see
// gcsproxy/mutable_content_test.go's mocked bucket).
type PageBufferFailureTest struct {
	dev mock_flash.MockDevice
}

func init() { RegisterTestSuite(&PageBufferFailureTest{}) }

func (t *PageBufferFailureTest) SetUp(ti *TestInfo) {
	t.dev = mock_flash.NewMockDevice(ti.MockController, "dev")
	ExpectCall(t.dev, "PageSize")().
		WillRepeatedly(oglemock.Return(int64(4096)))
}

func (t *PageBufferFailureTest) ReadPropagatesLoadFailure() {
	ExpectCall(t.dev, "ReadAt")(Any(), Any()).
		WillOnce(oglemock.Return(errors.New("read failed")))

	pb := flash.NewPageBuffer(t.dev)
	err := pb.Read(make([]byte, 1), 0, 1)
	ExpectNe(nil, err)
}

func (t *PageBufferFailureTest) FlushPropagatesEraseFailure() {
	// Stage a dirty byte, then let flush's read-back see it as different
	// from the device so it attempts erase+program.
	ExpectCall(t.dev, "ReadAt")(Any(), Any()).
		WillRepeatedly(oglemock.Return(nil))
	ExpectCall(t.dev, "ErasePage")(Any()).
		WillOnce(oglemock.Return(errors.New("erase failed")))

	pb := flash.NewPageBuffer(t.dev)
	AssertEq(nil, pb.Write(0, []byte{0xab}, 1))

	err := pb.Flush()
	ExpectNe(nil, err)
}

func (t *PageBufferFailureTest) FlushPropagatesProgramFailure() {
	ExpectCall(t.dev, "ReadAt")(Any(), Any()).
		WillRepeatedly(oglemock.Return(nil))
	ExpectCall(t.dev, "ErasePage")(Any()).
		WillOnce(oglemock.Return(nil))
	ExpectCall(t.dev, "WriteUnaligned")(Any(), Any()).
		WillOnce(oglemock.Return(errors.New("program failed")))

	pb := flash.NewPageBuffer(t.dev)
	AssertEq(nil, pb.Write(0, []byte{0xab}, 1))

	err := pb.Flush()
	ExpectNe(nil, err)
}
