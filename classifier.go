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

import "strings"

// Category is one of the six states spec.md §4.5 requires the Path
// Classifier to distinguish for a queried path against the current file
// list.
type Category int

const (
	ExistsAsFile Category = iota
	ExistsAsEmptyDir
	ExistsAsNonemptyDir
	InvalidBecauseNotDirs
	InvalidBecauseNotFound
	Creatable
)

func (c Category) String() string {
	switch c {
	case ExistsAsFile:
		return "EXISTS_AS_FILE"
	case ExistsAsEmptyDir:
		return "EXISTS_AS_EMPTY_DIR"
	case ExistsAsNonemptyDir:
		return "EXISTS_AS_NONEMPTY_DIR"
	case InvalidBecauseNotDirs:
		return "INVALID_BECAUSE_NOT_DIRS"
	case InvalidBecauseNotFound:
		return "INVALID_BECAUSE_NOT_FOUND"
	case Creatable:
		return "CREATABLE"
	default:
		return "UNKNOWN"
	}
}

// Classification is the result of classifying one path: its Category, the
// witness path that established the decision (empty for Creatable, where
// no stored path is responsible), and ParentCount, the number of P's
// ancestor directories found to exist (set only for Creatable; a stored
// empty-dir sentinel and a stored descendant both count as existence).
type Classification struct {
	Category    Category
	Witness     string
	ParentCount int
}

// parentsOf returns the ancestor directory paths of p, e.g. "/a/b/c" ->
// ["/a/", "/a/b/"].
func parentsOf(p string) []string {
	trimmed := strings.TrimSuffix(p, "/")
	comps := strings.Split(strings.Trim(trimmed, "/"), "/")

	var out []string
	prefix := ""
	// Exclude the final component: it is p itself, not an ancestor.
	for i := 0; i < len(comps)-1; i++ {
		prefix += "/" + comps[i]
		out = append(out, prefix+"/")
	}
	return out
}

// Classify decides what category path p falls into given the set of
// existing file paths, per spec.md §4.5. It makes a few linear passes over
// existing: exact match, descendant match, then one pass per ancestor.
func Classify(p string, existing []string) Classification {
	// A file/dir exactly matching p.
	for _, q := range existing {
		if q == p {
			if strings.HasSuffix(p, "/") {
				// Empty unless some other path begins with it.
				for _, other := range existing {
					if other != p && strings.HasPrefix(other, p) {
						return Classification{Category: ExistsAsNonemptyDir, Witness: other}
					}
				}
				return Classification{Category: ExistsAsEmptyDir, Witness: q}
			}
			return Classification{Category: ExistsAsFile, Witness: q}
		}
	}

	// A directory p (possibly without its trailing slash, if the caller
	// passed a bare directory name) with at least one descendant.
	dirForm := p
	if !strings.HasSuffix(dirForm, "/") {
		dirForm += "/"
	}
	for _, q := range existing {
		if strings.HasPrefix(q, dirForm) {
			return Classification{Category: ExistsAsNonemptyDir, Witness: q}
		}
	}

	// Walk p's ancestor chain: every ancestor must exist as a directory. The
	// first one stored as a file gives INVALID_BECAUSE_NOT_DIRS; the first
	// one that does not exist at all gives INVALID_BECAUSE_NOT_FOUND.
	parents := parentsOf(p)
	parentCount := 0

	for _, parent := range parents {
		// An ancestor stored exactly without its trailing slash is a file,
		// not a directory, and blocks descent regardless of anything else
		// in the list.
		fileForm := strings.TrimSuffix(parent, "/")
		for _, q := range existing {
			if q == fileForm {
				return Classification{Category: InvalidBecauseNotDirs, Witness: q}
			}
		}

		// Otherwise the ancestor "exists" as a directory only if some
		// stored path begins with it as a proper prefix, or it is itself
		// stored with a trailing slash (an empty-dir sentinel).
		found := false
		for _, q := range existing {
			if q == parent || strings.HasPrefix(q, parent) {
				found = true
				break
			}
		}

		if !found {
			return Classification{Category: InvalidBecauseNotFound, Witness: parent}
		}

		parentCount++
	}

	return Classification{Category: Creatable, ParentCount: parentCount}
}

// ClassifyMany classifies each of paths against the same existing list in
// one pass, for multi-argument operations like rename (spec.md §4.5
// "accepts a vector of paths in one pass").
func ClassifyMany(paths []string, existing []string) []Classification {
	out := make([]Classification, len(paths))
	for i, p := range paths {
		out[i] = Classify(p, existing)
	}
	return out
}
