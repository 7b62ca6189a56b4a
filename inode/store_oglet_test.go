// Copyright 2025 Google LLC
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

package inode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gopintos/kernel/blockdev"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestOgletestStore(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type StoreTest struct {
	dir   string
	store *InodeStore
	fm    *blockdev.FreeMap
}

var _ SetUpInterface = &StoreTest{}
var _ TearDownInterface = &StoreTest{}

func init() { RegisterTestSuite(&StoreTest{}) }

func (t *StoreTest) SetUp(ti *TestInfo) {
	var err error
	t.dir, err = os.MkdirTemp("", "gopintos-store-test")
	AssertEq(nil, err)

	dev, err := blockdev.CreateFileDevice(filepath.Join(t.dir, "disk.img"), 64)
	AssertEq(nil, err)
	t.fm = blockdev.NewFreeMap(64, 1)
	t.store = NewInodeStore(dev, t.fm)
}

func (t *StoreTest) TearDown() {
	os.RemoveAll(t.dir)
}

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func (t *StoreTest) OpenSharesOneInodeAcrossConcurrentOpens() {
	err := t.store.Create(2, 0, TypeFile)
	AssertEq(nil, err)

	a, err := t.store.Open(2)
	AssertEq(nil, err)
	b, err := t.store.Open(2)
	AssertEq(nil, err)

	ExpectTrue(a == b)

	AssertEq(nil, t.store.Close(a))
	AssertEq(nil, t.store.Close(b))
}

func (t *StoreTest) OpenRejectsUnformattedSector() {
	_, err := t.store.Open(5)
	ExpectThat(err, Error(HasSubstr("bad magic")))
}

func (t *StoreTest) DenyWriteRejectsConcurrentWriters() {
	err := t.store.Create(3, 0, TypeFile)
	AssertEq(nil, err)
	ino, err := t.store.Open(3)
	AssertEq(nil, err)
	defer t.store.Close(ino)

	ino.DenyWrite()
	_, err = ino.WriteAt([]byte("x"), 0)
	ExpectThat(err, Error(HasSubstr("write denied")))

	ino.AllowWrite()
	_, err = ino.WriteAt([]byte("x"), 0)
	ExpectEq(nil, err)
}
