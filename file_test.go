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

package kvfs_test

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/jacobsa/kvfs"
	"github.com/jacobsa/kvfs/kvstore"
	"github.com/jacobsa/kvfs/kvstore/memstore"
	"github.com/jacobsa/timeutil"
	. "github.com/jacobsa/ogletest"
)

func TestFile(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type FileTest struct {
	clock timeutil.SimulatedClock
	fs    *kvfs.FileSystem
	f     *kvfs.File
}

func init() { RegisterTestSuite(&FileTest{}) }

func (t *FileTest) SetUp(ti *TestInfo) {
	t.clock.SetTime(time.Date(2012, 8, 15, 22, 56, 0, 0, time.Local))

	var err error
	t.fs, err = kvfs.New(kvstore.WrapSimple(memstore.New()), &t.clock)
	AssertEq(nil, err)

	t.f, err = t.fs.CreateFile("/f", os.O_RDWR, 0666)
	AssertEq(nil, err)
}

////////////////////////////////////////////////////////////////////////
// Test functions
////////////////////////////////////////////////////////////////////////

func (t *FileTest) InitialState() {
	ExpectEq("/f", t.f.Path())
	ExpectEq(uint64(0), t.f.Size())
	ExpectFalse(t.f.Dirty())
}

func (t *FileTest) ReadAtEmptyFile() {
	buf := make([]byte, 4)
	n, err := t.f.ReadAt(buf, 0)

	ExpectEq(0, n)
	ExpectEq(io.EOF, err)
}

func (t *FileTest) ReadAtOffsetPastEOF() {
	_, err := t.f.WriteAt([]byte("taco"), 0)
	AssertEq(nil, err)

	buf := make([]byte, 4)
	n, err := t.f.ReadAt(buf, 100)

	ExpectEq(0, n)
	ExpectEq(io.EOF, err)
}

func (t *FileTest) ShortRead() {
	_, err := t.f.WriteAt([]byte("taco"), 0)
	AssertEq(nil, err)

	buf := make([]byte, 16)
	n, err := t.f.ReadAt(buf, 1)

	ExpectEq(3, n)
	ExpectEq(io.EOF, err)
	ExpectEq("aco", string(buf[:n]))
}

func (t *FileTest) WriteAtExtendsFile() {
	_, err := t.f.WriteAt([]byte("taco"), 0)
	AssertEq(nil, err)

	n, err := t.f.WriteAt([]byte("!!"), 4)
	AssertEq(nil, err)
	AssertEq(2, n)

	ExpectEq(uint64(6), t.f.Size())
	ExpectEq("taco!!", readAll(t.f))
}

func (t *FileTest) WriteAtBeyondEOFZeroFills() {
	n, err := t.f.WriteAt([]byte("x"), 4)
	AssertEq(nil, err)
	AssertEq(1, n)

	AssertEq(uint64(5), t.f.Size())
	ExpectEq("\x00\x00\x00\x00x", readAll(t.f))
}

func (t *FileTest) WriteAtOverwritesInPlace() {
	_, err := t.f.WriteAt([]byte("taco"), 0)
	AssertEq(nil, err)

	_, err = t.f.WriteAt([]byte("BC"), 1)
	AssertEq(nil, err)

	ExpectEq(uint64(4), t.f.Size())
	ExpectEq("tBCo", readAll(t.f))
}

func (t *FileTest) WriteUpdatesMtimeAndDirtiness() {
	t.clock.AdvanceTime(time.Second)
	writeTime := t.clock.Now()

	_, err := t.f.WriteAt([]byte("taco"), 0)
	AssertEq(nil, err)

	ExpectTrue(t.f.Dirty())
	ExpectEq(writeTime.UnixMilli(), t.f.Stats().Mtime.UnixMilli())
}

func (t *FileTest) TruncateShrinks() {
	_, err := t.f.WriteAt([]byte("burrito"), 0)
	AssertEq(nil, err)

	t.f.Truncate(4)

	ExpectEq(uint64(4), t.f.Size())
	ExpectEq("burr", readAll(t.f))
}

func (t *FileTest) TruncateGrowsWithZeroes() {
	_, err := t.f.WriteAt([]byte("hi"), 0)
	AssertEq(nil, err)

	t.f.Truncate(4)

	ExpectEq(uint64(4), t.f.Size())
	ExpectEq("hi\x00\x00", readAll(t.f))
}

func (t *FileTest) TruncatePersistsOnClose() {
	_, err := t.f.WriteAt([]byte("burrito"), 0)
	AssertEq(nil, err)
	AssertEq(nil, t.f.Sync())

	t.f.Truncate(4)
	AssertEq(nil, t.f.Close())

	g, err := t.fs.OpenFile("/f", os.O_RDONLY)
	AssertEq(nil, err)
	ExpectEq("burr", readAll(g))

	attrs, err := t.fs.Stat("/f")
	AssertEq(nil, err)
	ExpectEq(uint64(4), attrs.Size)
}

func (t *FileTest) SyncResetsDirtiness() {
	_, err := t.f.WriteAt([]byte("taco"), 0)
	AssertEq(nil, err)
	AssertTrue(t.f.Dirty())

	AssertEq(nil, t.f.Sync())
	ExpectFalse(t.f.Dirty())

	// A clean sync is a no-op.
	AssertEq(nil, t.f.Sync())
}
