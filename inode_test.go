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

package kvfs

import (
	"testing"
	"time"

	"github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestInode(t *testing.T) { RunTests(t) }

type InodeTest struct {
}

func init() { RegisterTestSuite(&InodeTest{}) }

func (t *InodeTest) SerializeRoundTrip() {
	now := time.Date(2012, 8, 15, 22, 56, 0, 0, time.UTC)
	in := newInode(randomID(), 17, 0644, TypeFile, now)

	out, err := deserializeInode(in.serialize())
	AssertEq(nil, err)

	ExpectThat(out, oglematchers.DeepEquals(in))
}

func (t *InodeTest) SerializeRoundTrip_Directory() {
	now := time.Date(2012, 8, 15, 22, 56, 0, 123e6, time.UTC)
	in := newInode(randomID(), dirSize, 0755, TypeDirectory, now)

	out, err := deserializeInode(in.serialize())
	AssertEq(nil, err)

	ExpectThat(out, oglematchers.DeepEquals(in))
	ExpectTrue(out.isDir())
	ExpectFalse(out.isFile())
}

func (t *InodeTest) RecordLength() {
	in := newInode(randomID(), 0, 0666, TypeFile, time.Now())

	ExpectEq(inodeLen, len(in.serialize()))
}

func (t *InodeTest) DeserializeMalformedRecord() {
	_, err := deserializeInode(make([]byte, inodeLen-1))
	ExpectNe(nil, err)

	_, err = deserializeInode(nil)
	ExpectNe(nil, err)
}

func (t *InodeTest) ModeEncodesTypeAndPermissions() {
	in := newInode(randomID(), 0, 0644, TypeFile, time.Now())

	ExpectTrue(in.isFile())
	ExpectFalse(in.isDir())

	attrs := in.attributes()
	ExpectEq(TypeFile, attrs.FileType())
	ExpectEq(uint32(0644), attrs.Perm())
}

func (t *InodeTest) TimestampsTruncateToMilliseconds() {
	now := time.Date(2012, 8, 15, 22, 56, 0, 123456789, time.UTC)
	in := newInode(randomID(), 0, 0644, TypeFile, now)

	attrs := in.attributes()
	ExpectEq(now.UnixMilli(), attrs.Mtime.UnixMilli())
}

func (t *InodeTest) UpdateReportsChanges() {
	now := time.Date(2012, 8, 15, 22, 56, 0, 0, time.UTC)
	in := newInode(randomID(), 5, 0644, TypeFile, now)

	// No change.
	ExpectFalse(in.update(in.attributes()))

	// Size change.
	attrs := in.attributes()
	attrs.Size = 6
	ExpectTrue(in.update(attrs))
	ExpectEq(uint64(6), in.Size)

	// Mtime change.
	attrs = in.attributes()
	attrs.Mtime = attrs.Mtime.Add(time.Second)
	ExpectTrue(in.update(attrs))
	ExpectEq(attrs.Mtime.UnixMilli(), in.Mtime)
}

////////////////////////////////////////////////////////////////////////
// Directory listings
////////////////////////////////////////////////////////////////////////

type ListingTest struct {
}

func init() { RegisterTestSuite(&ListingTest{}) }

func (t *ListingTest) EmptyRoundTrip() {
	buf, err := dirListing{}.serialize()
	AssertEq(nil, err)

	// An empty listing must occupy a non-empty blob, so that it remains
	// distinguishable from a missing payload key.
	AssertNe(0, len(buf))

	out, err := deserializeListing(buf)
	AssertEq(nil, err)
	ExpectEq(0, len(out))
}

func (t *ListingTest) NonEmptyRoundTrip() {
	l := dirListing{
		"foo":       randomID(),
		"bar baz":   randomID(),
		"unicode-日": randomID(),
	}

	buf, err := l.serialize()
	AssertEq(nil, err)

	out, err := deserializeListing(buf)
	AssertEq(nil, err)
	ExpectThat(out, oglematchers.DeepEquals(l))
}

func (t *ListingTest) DeserializeGarbage() {
	_, err := deserializeListing([]byte("not json"))
	ExpectNe(nil, err)
}
