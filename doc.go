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

// Package xipfs implements an execute-in-place file system for
// memory-mapped non-volatile memory on memory-constrained devices. Files
// live contiguously in flash as aligned runs of erase pages in a singly
// linked list with no directory entries of their own: "directories" are
// implied by path prefixes of the files that exist. See SPEC_FULL.md for
// the full contract and DESIGN.md for how each piece is grounded.
//
// Callers drive the file system entirely through a Driver, which holds the
// single mount-wide lock and the open-file table (§5, §4.6). Everything
// below Driver — MountPoint, Directory, File, the path Classifier — assumes
// that lock is already held.
package xipfs
