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

//go:build unix

package flash

import (
	"os"

	"golang.org/x/sys/unix"
)

// deviceRead/deviceWrite use pread(2)/pwrite(2) directly so a read or write
// never perturbs the file's shared offset, matching the way
// fuseops/common_op.go reaches for golang.org/x/sys/unix rather than the
// higher-level os package when it needs a specific syscall contract
// (there, unix.Kill/unix.ESRCH; here, positioned I/O without an Lseek).
func deviceRead(f *os.File, p []byte, off int64) error {
	n, err := unix.Pread(int(f.Fd()), p, off)
	if err != nil {
		return err
	}
	if n != len(p) {
		return ErrVerify
	}
	return nil
}

func deviceWrite(f *os.File, p []byte, off int64) error {
	n, err := unix.Pwrite(int(f.Fd()), p, off)
	if err != nil {
		return err
	}
	if n != len(p) {
		return ErrVerify
	}
	return nil
}
