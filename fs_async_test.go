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
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jacobsa/kvfs"
	"github.com/jacobsa/kvfs/kvfstesting"
	"github.com/jacobsa/kvfs/kvstore"
	"github.com/jacobsa/kvfs/kvstore/memstore"
	"github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
	"github.com/jacobsa/timeutil"
	"github.com/kylelemons/godebug/pretty"
	"golang.org/x/net/context"
)

func TestAsyncFileSystem(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type AsyncFileSystemTest struct {
	ctx   context.Context
	clock timeutil.SimulatedClock
	store *memstore.Store
	flaky *kvfstesting.FlakyStore
	fs    *kvfs.AsyncFileSystem
}

func init() { RegisterTestSuite(&AsyncFileSystemTest{}) }

func (t *AsyncFileSystemTest) SetUp(ti *TestInfo) {
	t.ctx = context.Background()
	t.clock.SetTime(time.Date(2012, 8, 15, 22, 56, 0, 0, time.Local))
	t.store = memstore.New()
	t.flaky = kvfstesting.NewFlakyStore(t.store)

	var err error
	t.fs, err = kvfs.NewAsync(
		t.ctx,
		kvstore.NewAsyncAdapter(kvstore.WrapSimple(t.flaky)),
		&t.clock)
	AssertEq(nil, err)
}

func (t *AsyncFileSystemTest) readAll(f *kvfs.AsyncFile) string {
	buf := make([]byte, f.Size())
	n, _ := f.ReadAt(buf, 0)
	return string(buf[:n])
}

////////////////////////////////////////////////////////////////////////
// Test functions
////////////////////////////////////////////////////////////////////////

func (t *AsyncFileSystemTest) ContentsOfEmptyFileSystem() {
	names, err := t.fs.ReadDir(t.ctx, "/")

	AssertEq(nil, err)
	ExpectThat(names, oglematchers.ElementsAre())

	attrs, err := t.fs.Stat(t.ctx, "/")

	AssertEq(nil, err)
	ExpectTrue(attrs.IsDir())
	ExpectEq(uint64(4096), attrs.Size)
}

func (t *AsyncFileSystemTest) CreateWriteReopen() {
	f, err := t.fs.CreateFile(t.ctx, "/a", os.O_RDWR, 0666)
	AssertEq(nil, err)

	_, err = f.WriteAt([]byte("hello"), 0)
	AssertEq(nil, err)
	AssertEq(nil, f.Close(t.ctx))

	g, err := t.fs.OpenFile(t.ctx, "/a", os.O_RDONLY)
	AssertEq(nil, err)

	ExpectEq("hello", t.readAll(g))
	ExpectThat(g.Stats(), kvfstesting.SizeIs(5))
}

func (t *AsyncFileSystemTest) MkdirCreateUnlinkRmdir() {
	AssertEq(nil, t.fs.Mkdir(t.ctx, "/d", 0777))

	f, err := t.fs.CreateFile(t.ctx, "/d/f", os.O_RDWR, 0666)
	AssertEq(nil, err)
	AssertEq(nil, f.Close(t.ctx))

	names, err := t.fs.ReadDir(t.ctx, "/d")
	AssertEq(nil, err)
	ExpectThat(names, oglematchers.ElementsAre("f"))

	err = t.fs.Rmdir(t.ctx, "/d")
	AssertNe(nil, err)
	ExpectEq(kvfs.ENOTEMPTY, kvfs.Errno(err))

	AssertEq(nil, t.fs.Unlink(t.ctx, "/d/f"))
	AssertEq(nil, t.fs.Rmdir(t.ctx, "/d"))

	ExpectEq(2, t.store.Len())
}

func (t *AsyncFileSystemTest) Rename_SameParent() {
	f, err := t.fs.CreateFile(t.ctx, "/a", os.O_RDWR, 0666)
	AssertEq(nil, err)
	AssertEq(nil, f.Close(t.ctx))

	err = t.fs.Rename(t.ctx, "/a", "/b")
	AssertEq(nil, err)

	_, err = t.fs.Stat(t.ctx, "/a")
	ExpectEq(kvfs.ENOENT, kvfs.Errno(err))

	_, err = t.fs.Stat(t.ctx, "/b")
	ExpectEq(nil, err)
}

func (t *AsyncFileSystemTest) Rename_AcrossDirectories() {
	// The two parents' records are fetched concurrently here.
	AssertEq(nil, t.fs.Mkdir(t.ctx, "/src", 0777))
	AssertEq(nil, t.fs.Mkdir(t.ctx, "/dst", 0777))

	f, err := t.fs.CreateFile(t.ctx, "/src/f", os.O_RDWR, 0666)
	AssertEq(nil, err)
	_, err = f.WriteAt([]byte("payload"), 0)
	AssertEq(nil, err)
	AssertEq(nil, f.Close(t.ctx))

	err = t.fs.Rename(t.ctx, "/src/f", "/dst/g")
	AssertEq(nil, err)

	names, err := t.fs.ReadDir(t.ctx, "/src")
	AssertEq(nil, err)
	ExpectThat(names, oglematchers.ElementsAre())

	g, err := t.fs.OpenFile(t.ctx, "/dst/g", os.O_RDONLY)
	AssertEq(nil, err)
	ExpectEq("payload", t.readAll(g))
}

func (t *AsyncFileSystemTest) Rename_AcrossDirectories_SourceMissing() {
	// A failure in one of the concurrent parent fetches must surface
	// exactly once, with the transaction aborted.
	AssertEq(nil, t.fs.Mkdir(t.ctx, "/dst", 0777))

	err := t.fs.Rename(t.ctx, "/missing/f", "/dst/g")

	AssertNe(nil, err)
	ExpectEq(kvfs.ENOENT, kvfs.Errno(err))

	names, err := t.fs.ReadDir(t.ctx, "/dst")
	AssertEq(nil, err)
	ExpectThat(names, oglematchers.ElementsAre())
}

func (t *AsyncFileSystemTest) Rename_IntoItself() {
	AssertEq(nil, t.fs.Mkdir(t.ctx, "/d", 0777))

	err := t.fs.Rename(t.ctx, "/d", "/d/sub")

	AssertNe(nil, err)
	ExpectEq(kvfs.EBUSY, kvfs.Errno(err))
}

func (t *AsyncFileSystemTest) Rename_OverExistingDirectory() {
	f, err := t.fs.CreateFile(t.ctx, "/a", os.O_RDWR, 0666)
	AssertEq(nil, err)
	AssertEq(nil, f.Close(t.ctx))

	AssertEq(nil, t.fs.Mkdir(t.ctx, "/d", 0777))

	err = t.fs.Rename(t.ctx, "/a", "/d")

	AssertNe(nil, err)
	ExpectEq(kvfs.EPERM, kvfs.Errno(err))
}

func (t *AsyncFileSystemTest) Empty() {
	f, err := t.fs.CreateFile(t.ctx, "/a", os.O_RDWR, 0666)
	AssertEq(nil, err)
	AssertEq(nil, f.Close(t.ctx))

	AssertEq(nil, t.fs.Empty(t.ctx))

	names, err := t.fs.ReadDir(t.ctx, "/")
	AssertEq(nil, err)
	ExpectThat(names, oglematchers.ElementsAre())
	ExpectEq(2, t.store.Len())
}

func (t *AsyncFileSystemTest) CancelledContext() {
	ctx, cancel := context.WithCancel(t.ctx)
	cancel()

	_, err := t.fs.Stat(ctx, "/")
	ExpectNe(nil, err)
}

func (t *AsyncFileSystemTest) CreateFileFailingAtEveryStep() {
	injected := errors.New("injected store failure")

	before := t.store.Snapshot()

	attempts := 0
	for n := 1; ; n++ {
		t.flaky.FailNth(n, injected)

		_, err := t.fs.CreateFile(t.ctx, "/a", os.O_RDWR, 0666)
		if err == nil {
			t.flaky.Disarm()
			break
		}

		if diff := pretty.Compare(before, t.store.Snapshot()); diff != "" {
			AddFailure("Store changed by aborted create (n=%d):\n%s", n, diff)
		}

		attempts++
		AssertLt(attempts, 100)
	}

	ExpectGt(attempts, 0)

	_, err := t.fs.Stat(t.ctx, "/a")
	ExpectEq(nil, err)
}
