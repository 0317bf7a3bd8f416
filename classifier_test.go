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

type ClassifierTest struct {
}

func init() { RegisterTestSuite(&ClassifierTest{}) }

func (t *ClassifierTest) ExistsAsFile() {
	c := Classify("/a", []string{"/a", "/b"})
	ExpectEq(ExistsAsFile, c.Category)
	ExpectEq("/a", c.Witness)
}

func (t *ClassifierTest) ExistsAsEmptyDir() {
	c := Classify("/empty/", []string{"/empty/", "/other"})
	ExpectEq(ExistsAsEmptyDir, c.Category)
	ExpectEq("/empty/", c.Witness)
}

func (t *ClassifierTest) ExistsAsNonemptyDirGivenTrailingSlash() {
	c := Classify("/b/", []string{"/b/c", "/b/d"})
	ExpectEq(ExistsAsNonemptyDir, c.Category)
	ExpectEq("/b/c", c.Witness)
}

func (t *ClassifierTest) ExistsAsNonemptyDirGivenBareName() {
	// A bare directory name with no trailing slash classifies the same way
	// as long as some stored path descends from it.
	c := Classify("/b", []string{"/b/c", "/b/d"})
	ExpectEq(ExistsAsNonemptyDir, c.Category)
	ExpectEq("/b/c", c.Witness)
}

func (t *ClassifierTest) InvalidBecauseNotDirsWhenAncestorIsAFile() {
	c := Classify("/a/b/c", []string{"/a/b"})
	ExpectEq(InvalidBecauseNotDirs, c.Category)
	ExpectEq("/a/b", c.Witness)
}

func (t *ClassifierTest) InvalidBecauseNotDirsForImmediateParent() {
	c := Classify("/a/b", []string{"/a"})
	ExpectEq(InvalidBecauseNotDirs, c.Category)
	ExpectEq("/a", c.Witness)
}

func (t *ClassifierTest) InvalidBecauseNotFoundWhenParentIsMissing() {
	c := Classify("/x/y", []string{"/a"})
	ExpectEq(InvalidBecauseNotFound, c.Category)
	ExpectEq("/x/", c.Witness)
}

func (t *ClassifierTest) CreatableUnderAnExistingEmptyDirSentinel() {
	c := Classify("/a/newfile", []string{"/a/"})
	ExpectEq(Creatable, c.Category)
	ExpectEq(1, c.ParentCount)
}

func (t *ClassifierTest) CreatableUnderAnExistingNonemptyDir() {
	c := Classify("/a/newfile", []string{"/a/other"})
	ExpectEq(Creatable, c.Category)
	ExpectEq(1, c.ParentCount)
}

func (t *ClassifierTest) CreatableAtRootWithNoParents() {
	c := Classify("/a", nil)
	ExpectEq(Creatable, c.Category)
	ExpectEq(0, c.ParentCount)
}

func (t *ClassifierTest) CreatableCountsEveryAncestorLevel() {
	c := Classify("/a/b/c/d", []string{"/a/b/c/other"})
	ExpectEq(Creatable, c.Category)
	ExpectEq(3, c.ParentCount)
}

func (t *ClassifierTest) ClassifyManyMatchesIndividualClassifyCalls() {
	existing := []string{"/a", "/b/c"}
	results := ClassifyMany([]string{"/a", "/missing/x", "/b"}, existing)

	AssertEq(3, len(results))
	ExpectEq(ExistsAsFile, results[0].Category)
	ExpectEq(InvalidBecauseNotFound, results[1].Category)
	ExpectEq(ExistsAsNonemptyDir, results[2].Category)
}
