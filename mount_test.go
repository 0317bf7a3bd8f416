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
	"github.com/jacobsa/timeutil"
	"github.com/xipfs/xipfs/flash"

	. "github.com/jacobsa/ogletest"
)

type MountTest struct {
}

func init() { RegisterTestSuite(&MountTest{}) }

func (t *MountTest) FreshDeviceMountsAsEmpty() {
	dev := flash.NewMemDevice(4, 4096, 4)
	var clock timeutil.SimulatedClock

	dir, err := Mount(dev, 4, &clock)
	AssertEq(nil, err)

	head, err := dir.Head()
	AssertEq(nil, err)
	ExpectTrue(head == nil)
}

func (t *MountTest) FormatThenMountRoundTrips() {
	dev := flash.NewMemDevice(4, 4096, 4)
	var clock timeutil.SimulatedClock

	mp := NewMountPoint(dev, 4, &clock)
	AssertEq(nil, mp.Format())

	dir, err := Mount(dev, 4, &clock)
	AssertEq(nil, err)

	_, err = dir.NewFile("/a", 0, false)
	AssertEq(nil, err)

	all, err := dir.All()
	AssertEq(nil, err)
	AssertEq(1, len(all))
	ExpectEq("/a", all[0].path)
}

func (t *MountTest) MountRejectsAPageDirtyPastTheTail() {
	dev := flash.NewMemDevice(4, 4096, 4)
	var clock timeutil.SimulatedClock

	dir, err := Mount(dev, 4, &clock)
	AssertEq(nil, err)

	_, err = dir.NewFile("/a", 0, false)
	AssertEq(nil, err)

	// /a occupies page 0; corrupt page 2, which lies past the tail and
	// must read as fully erased for the mount to be considered consistent.
	AssertEq(nil, dev.WriteUnaligned(2*4096, []byte{0x00}))

	_, err = Mount(dev, 4, &clock)
	ExpectEq(EIO, err)
}

func (t *MountTest) MountFailsWhenTailExtendsPastTheDevice() {
	dev := flash.NewMemDevice(4, 4096, 4)
	var clock timeutil.SimulatedClock

	dir, err := Mount(dev, 4, &clock)
	AssertEq(nil, err)

	_, err = dir.NewFile("/a", 0, false)
	AssertEq(nil, err)
	_, err = dir.NewFile("/b", 0, false)
	AssertEq(nil, err)

	// /a and /b together occupy two pages; re-mount claiming only one page,
	// fewer than the recorded tail requires.
	_, err = Mount(dev, 1, &clock)
	ExpectEq(EIO, err)
}
