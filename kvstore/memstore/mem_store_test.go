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

package memstore_test

import (
	"testing"

	"github.com/jacobsa/kvfs/kvstore/memstore"
	. "github.com/jacobsa/ogletest"
)

func TestMemStore(t *testing.T) { RunTests(t) }

type MemStoreTest struct {
	store *memstore.Store
}

func init() { RegisterTestSuite(&MemStoreTest{}) }

func (t *MemStoreTest) SetUp(ti *TestInfo) {
	t.store = memstore.New()
}

func (t *MemStoreTest) InitiallyEmpty() {
	ExpectEq(0, t.store.Len())

	_, found, err := t.store.Get("a")
	AssertEq(nil, err)
	ExpectFalse(found)
}

func (t *MemStoreTest) PutThenGet() {
	AssertEq(nil, t.store.Put("a", []byte("taco")))

	val, found, err := t.store.Get("a")
	AssertEq(nil, err)
	ExpectTrue(found)
	ExpectEq("taco", string(val))
	ExpectEq(1, t.store.Len())
}

func (t *MemStoreTest) EmptyValueDistinctFromAbsent() {
	AssertEq(nil, t.store.Put("a", nil))

	val, found, err := t.store.Get("a")
	AssertEq(nil, err)
	ExpectTrue(found)
	ExpectEq(0, len(val))

	_, found, err = t.store.Get("b")
	AssertEq(nil, err)
	ExpectFalse(found)
}

func (t *MemStoreTest) OverwriteReplaces() {
	AssertEq(nil, t.store.Put("a", []byte("taco")))
	AssertEq(nil, t.store.Put("a", []byte("burrito")))

	val, _, err := t.store.Get("a")
	AssertEq(nil, err)
	ExpectEq("burrito", string(val))
	ExpectEq(1, t.store.Len())
}

func (t *MemStoreTest) Del() {
	AssertEq(nil, t.store.Put("a", []byte("taco")))
	AssertEq(nil, t.store.Del("a"))

	_, found, err := t.store.Get("a")
	AssertEq(nil, err)
	ExpectFalse(found)

	// Deleting a missing key is not an error.
	ExpectEq(nil, t.store.Del("a"))
}

func (t *MemStoreTest) Clear() {
	AssertEq(nil, t.store.Put("a", []byte("taco")))
	AssertEq(nil, t.store.Put("b", []byte("burrito")))

	AssertEq(nil, t.store.Clear())
	ExpectEq(0, t.store.Len())
}

func (t *MemStoreTest) GetReturnsACopy() {
	AssertEq(nil, t.store.Put("a", []byte("taco")))

	val, _, err := t.store.Get("a")
	AssertEq(nil, err)

	val[0] = 'x'

	val, _, err = t.store.Get("a")
	AssertEq(nil, err)
	ExpectEq("taco", string(val))
}

func (t *MemStoreTest) PutCopiesItsArgument() {
	buf := []byte("taco")
	AssertEq(nil, t.store.Put("a", buf))

	buf[0] = 'x'

	val, _, err := t.store.Get("a")
	AssertEq(nil, err)
	ExpectEq("taco", string(val))
}

func (t *MemStoreTest) SnapshotIsDeep() {
	AssertEq(nil, t.store.Put("a", []byte("taco")))

	snapshot := t.store.Snapshot()
	snapshot["a"][0] = 'x'
	snapshot["b"] = []byte("new")

	val, _, err := t.store.Get("a")
	AssertEq(nil, err)
	ExpectEq("taco", string(val))
	ExpectEq(1, t.store.Len())
}
