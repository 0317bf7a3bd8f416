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

package xipfs_test

import (
	"context"
	"testing"

	"github.com/jacobsa/timeutil"
	"github.com/xipfs/xipfs"
	"github.com/xipfs/xipfs/flash"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestDriver(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

func newTestDriver(pageCount int) *xipfs.Driver {
	dev := flash.NewMemDevice(pageCount, 4096, 4)
	var clock timeutil.SimulatedClock
	dir, err := xipfs.Mount(dev, int64(pageCount), &clock)
	if err != nil {
		panic(err)
	}
	return xipfs.NewDriver(dir, 8)
}

type DriverTest struct {
	ctx context.Context
	drv *xipfs.Driver
}

func init() { RegisterTestSuite(&DriverTest{}) }

func (t *DriverTest) SetUp(ti *TestInfo) {
	t.ctx = context.Background()
	t.drv = newTestDriver(8)
}

func (t *DriverTest) writeFile(path string, data []byte) {
	id, err := t.drv.Open(t.ctx, path, xipfs.OWronly|xipfs.OCreat)
	AssertEq(nil, err)
	n, err := t.drv.Write(t.ctx, id, data)
	AssertEq(nil, err)
	AssertEq(len(data), n)
	AssertEq(nil, t.drv.Close(t.ctx, id))
}

func (t *DriverTest) readFile(path string) []byte {
	id, err := t.drv.Open(t.ctx, path, xipfs.ORdonly)
	AssertEq(nil, err)
	defer t.drv.Close(t.ctx, id)

	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := t.drv.Read(t.ctx, id, buf)
		AssertEq(nil, err)
		if n == 0 {
			break
		}
		out = append(out, buf[:n]...)
	}
	return out
}

////////////////////////////////////////////////////////////////////////
// Fresh mount
////////////////////////////////////////////////////////////////////////

func (t *DriverTest) FreshMountHasOnlyTheVirtualInfoFile() {
	id, err := t.drv.Opendir(t.ctx, "/")
	AssertEq(nil, err)
	defer t.drv.Closedir(t.ctx, id)

	name, ok, err := t.drv.Readdir(t.ctx, id)
	AssertEq(nil, err)
	AssertTrue(ok)
	ExpectEq(xipfs.VirtualInfoName, name)

	_, ok, err = t.drv.Readdir(t.ctx, id)
	AssertEq(nil, err)
	ExpectFalse(ok)
}

////////////////////////////////////////////////////////////////////////
// Create, write, read back
////////////////////////////////////////////////////////////////////////

func (t *DriverTest) WriteThenReadBackRoundTrips() {
	t.writeFile("/greeting", []byte("Hello"))
	ExpectEq("Hello", string(t.readFile("/greeting")))

	st, err := t.drv.Stat(t.ctx, "/greeting")
	AssertEq(nil, err)
	ExpectEq(5, st.Size)
	ExpectFalse(st.Exec)
	ExpectFalse(st.IsDir)
}

func (t *DriverTest) OpenWithoutCreatOnMissingPathFails() {
	_, err := t.drv.Open(t.ctx, "/nope", xipfs.ORdonly)
	ExpectEq(xipfs.ENOENT, err)
}

func (t *DriverTest) OpenExclOnExistingFileFails() {
	t.writeFile("/x", []byte("a"))
	_, err := t.drv.Open(t.ctx, "/x", xipfs.OCreat|xipfs.OExcl)
	ExpectEq(xipfs.EEXIST, err)
}

////////////////////////////////////////////////////////////////////////
// Deletion and consolidation
////////////////////////////////////////////////////////////////////////

func (t *DriverTest) UnlinkConsolidatesAndPreservesSurvivingContent() {
	t.writeFile("/a", []byte("aaaa"))
	t.writeFile("/b", []byte("bbbb"))
	t.writeFile("/c", []byte("cccc"))

	AssertEq(nil, t.drv.Unlink(t.ctx, "/a"))

	ExpectEq("bbbb", string(t.readFile("/b")))
	ExpectEq("cccc", string(t.readFile("/c")))

	_, err := t.drv.Stat(t.ctx, "/a")
	ExpectEq(xipfs.ENOENT, err)
}

func (t *DriverTest) UnlinkOnDirectoryFails() {
	AssertEq(nil, t.drv.Mkdir(t.ctx, "/d"))
	err := t.drv.Unlink(t.ctx, "/d")
	ExpectEq(xipfs.EISDIR, err)
}

func (t *DriverTest) UnlinkOfMissingPathFails() {
	err := t.drv.Unlink(t.ctx, "/nope")
	ExpectEq(xipfs.ENOENT, err)
}

////////////////////////////////////////////////////////////////////////
// Directory semantics over flat paths
////////////////////////////////////////////////////////////////////////

func (t *DriverTest) MkdirThenNewFileUnderIt() {
	AssertEq(nil, t.drv.Mkdir(t.ctx, "/sub"))
	AssertEq(nil, t.drv.NewFile(t.ctx, "/sub/f", 0, false))

	st, err := t.drv.Stat(t.ctx, "/sub")
	AssertEq(nil, err)
	ExpectTrue(st.IsDir)

	id, err := t.drv.Opendir(t.ctx, "/sub")
	AssertEq(nil, err)
	defer t.drv.Closedir(t.ctx, id)

	name, ok, err := t.drv.Readdir(t.ctx, id)
	AssertEq(nil, err)
	AssertTrue(ok)
	ExpectEq("f", name)
}

func (t *DriverTest) NewFileUnderMissingParentFails() {
	err := t.drv.NewFile(t.ctx, "/nope/f", 0, false)
	ExpectEq(xipfs.ENOENT, err)
}

func (t *DriverTest) MkdirTwiceFails() {
	AssertEq(nil, t.drv.Mkdir(t.ctx, "/sub"))
	err := t.drv.Mkdir(t.ctx, "/sub")
	ExpectEq(xipfs.EEXIST, err)
}

func (t *DriverTest) RmdirOnNonemptyDirFails() {
	AssertEq(nil, t.drv.Mkdir(t.ctx, "/sub"))
	AssertEq(nil, t.drv.NewFile(t.ctx, "/sub/f", 0, false))
	err := t.drv.Rmdir(t.ctx, "/sub")
	ExpectEq(xipfs.ENOTEMPTY, err)
}

func (t *DriverTest) UnlinkingLastChildLeavesAnEmptyDirSentinelBehind() {
	AssertEq(nil, t.drv.Mkdir(t.ctx, "/sub"))
	AssertEq(nil, t.drv.NewFile(t.ctx, "/sub/f", 0, false))

	AssertEq(nil, t.drv.Unlink(t.ctx, "/sub/f"))

	st, err := t.drv.Stat(t.ctx, "/sub")
	AssertEq(nil, err)
	ExpectTrue(st.IsDir)

	// Now it must be removable as an empty directory.
	AssertEq(nil, t.drv.Rmdir(t.ctx, "/sub"))
	_, err = t.drv.Stat(t.ctx, "/sub")
	ExpectEq(xipfs.ENOENT, err)
}

////////////////////////////////////////////////////////////////////////
// Rename
////////////////////////////////////////////////////////////////////////

func (t *DriverTest) RenameFileMovesContent() {
	t.writeFile("/old", []byte("payload"))
	AssertEq(nil, t.drv.Rename(t.ctx, "/old", "/new"))

	ExpectEq("payload", string(t.readFile("/new")))
	_, err := t.drv.Stat(t.ctx, "/old")
	ExpectEq(xipfs.ENOENT, err)
}

func (t *DriverTest) RenameDirectoryOntoOwnSubpathFails() {
	AssertEq(nil, t.drv.Mkdir(t.ctx, "/a"))
	err := t.drv.Rename(t.ctx, "/a/", "/a/b/")
	ExpectEq(xipfs.EINVAL, err)
}

////////////////////////////////////////////////////////////////////////
// Full mount and handle table edge cases
////////////////////////////////////////////////////////////////////////

func (t *DriverTest) NewFileFailsWithNoSpaceOnASmallMount() {
	drv := newTestDriver(2)
	err := drv.NewFile(t.ctx, "/huge", 4*4096, false)
	ExpectEq(xipfs.EDQUOT, err)
}

func (t *DriverTest) HandleTableIsExhaustedAfterMaxOpens() {
	dev := flash.NewMemDevice(8, 4096, 4)
	var clock timeutil.SimulatedClock
	dir, err := xipfs.Mount(dev, 8, &clock)
	AssertEq(nil, err)
	drv := xipfs.NewDriver(dir, 1)

	AssertEq(nil, drv.NewFile(t.ctx, "/a", 0, false))
	AssertEq(nil, drv.NewFile(t.ctx, "/b", 0, false))

	id1, err := drv.Open(t.ctx, "/a", xipfs.ORdonly)
	AssertEq(nil, err)

	_, err = drv.Open(t.ctx, "/b", xipfs.ORdonly)
	ExpectEq(xipfs.ENFILE, err)

	AssertEq(nil, drv.Close(t.ctx, id1))

	id2, err := drv.Open(t.ctx, "/b", xipfs.ORdonly)
	AssertEq(nil, err)
	AssertEq(nil, drv.Close(t.ctx, id2))
}

func (t *DriverTest) OperationsOnAClosedHandleFailWithEBADF() {
	t.writeFile("/a", []byte("x"))
	id, err := t.drv.Open(t.ctx, "/a", xipfs.ORdonly)
	AssertEq(nil, err)
	AssertEq(nil, t.drv.Close(t.ctx, id))

	_, err = t.drv.Read(t.ctx, id, make([]byte, 1))
	ExpectEq(xipfs.EBADF, err)
}

////////////////////////////////////////////////////////////////////////
// Statvfs
////////////////////////////////////////////////////////////////////////

func (t *DriverTest) StatvfsReportsSpaceAndLimits() {
	st, err := t.drv.Statvfs(t.ctx)
	AssertEq(nil, err)
	ExpectEq(4096, st.Bsize)
	ExpectEq(8, st.Blocks)
	ExpectEq(8, st.Bfree)
	ExpectEq(0, st.Files)
	ExpectEq(xipfs.PathMax-1, st.Namemax)

	t.writeFile("/a", []byte("x"))

	st, err = t.drv.Statvfs(t.ctx)
	AssertEq(nil, err)
	ExpectEq(7, st.Bfree)
	ExpectEq(1, st.Files)
}

////////////////////////////////////////////////////////////////////////
// Virtual info file
////////////////////////////////////////////////////////////////////////

func (t *DriverTest) VirtualInfoFileIsReadOnlyAndReportsLiveState() {
	_, err := t.drv.Open(t.ctx, "/"+xipfs.VirtualInfoName, xipfs.OWronly)
	ExpectEq(xipfs.EACCES, err)

	body := t.readFile("/" + xipfs.VirtualInfoName)
	ExpectThat(string(body), HasSubstr(`"page_count": 8`))
	ExpectThat(string(body), HasSubstr(`"free_pages": 8`))
}
