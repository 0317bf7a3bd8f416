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
	"golang.org/x/sys/unix"
)

// Errno is the error type returned at the POSIX-shaped boundary (see
// spec.md §7). It wraps a numeric errno the way the teacher's errors.go
// re-exported kernel errno constants, except sourced from
// golang.org/x/sys/unix rather than a FUSE wire-protocol collaborator this
// repo does not need (see DESIGN.md).
type Errno unix.Errno

func (e Errno) Error() string { return unix.Errno(e).Error() }

// Errno constants corresponding to spec.md §6's API table and §7's
// taxonomy.
const (
	EINVAL       = Errno(unix.EINVAL)
	ENOENT       = Errno(unix.ENOENT)
	EEXIST       = Errno(unix.EEXIST)
	EISDIR       = Errno(unix.EISDIR)
	ENOTDIR      = Errno(unix.ENOTDIR)
	ENOTEMPTY    = Errno(unix.ENOTEMPTY)
	ENAMETOOLONG = Errno(unix.ENAMETOOLONG)
	ENOSPC       = Errno(unix.ENOSPC)
	EDQUOT       = Errno(unix.EDQUOT)
	ENFILE       = Errno(unix.ENFILE)
	EBADF        = Errno(unix.EBADF)
	EFAULT       = Errno(unix.EFAULT)
	EACCES       = Errno(unix.EACCES)
	EIO          = Errno(unix.EIO)
	ENOSYS       = Errno(unix.ENOSYS)
)

// ENVMC is the hardware-failure code from spec.md §7 ("Hardware — erase or
// verify failure"). It is internal to the Flash Primitive / Page Buffer
// layers; the Driver always translates it to EIO before it reaches a
// caller, per spec.md §7's "surfaced to caller as EIO".
const ENVMC = Errno(unix.EIO)

// errString mirrors the teacher's stable string table (spec.md §7, "every
// recognized error maps to a stable string table").
var errString = map[Errno]string{
	EINVAL:       "invalid argument",
	ENOENT:       "no such file or directory",
	EEXIST:       "file exists",
	EISDIR:       "is a directory",
	ENOTDIR:      "not a directory",
	ENOTEMPTY:    "directory not empty",
	ENAMETOOLONG: "path too long",
	ENOSPC:       "no space left on device",
	EDQUOT:       "quota exceeded",
	ENFILE:       "too many open files in system",
	EBADF:        "bad file descriptor",
	EFAULT:       "bad address",
	EACCES:       "permission denied",
	EIO:          "input/output error",
	ENOSYS:       "function not implemented",
}

// String renders the stable, human-readable description of e, falling back
// to the numeric errno's own description for codes outside the table.
func (e Errno) String() string {
	if s, ok := errString[e]; ok {
		return s
	}
	return e.Error()
}
