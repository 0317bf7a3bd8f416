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

//go:build !unix

package flash

import "os"

// Non-unix fallback: os.File's ReadAt/WriteAt are already positioned I/O
// (they do not use or perturb the file's offset), so no raw syscall is
// needed off the unix build tag.
func deviceRead(f *os.File, p []byte, off int64) error {
	_, err := f.ReadAt(p, off)
	return err
}

func deviceWrite(f *os.File, p []byte, off int64) error {
	_, err := f.WriteAt(p, off)
	return err
}
