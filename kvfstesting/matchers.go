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

package kvfstesting

import (
	"fmt"
	"reflect"
	"time"

	"github.com/jacobsa/kvfs"
	"github.com/jacobsa/oglematchers"
)

// Match kvfs.InodeAttributes values with an mtime equal to the given
// time.
func MtimeIs(expected time.Time) oglematchers.Matcher {
	return oglematchers.NewMatcher(
		func(c interface{}) error { return mtimeIs(c, expected) },
		fmt.Sprintf("mtime is %v", expected))
}

func mtimeIs(c interface{}, expected time.Time) error {
	attrs, ok := c.(kvfs.InodeAttributes)
	if !ok {
		return fmt.Errorf("which is of type %v", reflect.TypeOf(c))
	}

	// Attributes round-trip through millisecond timestamps, so compare at
	// that granularity.
	if attrs.Mtime.UnixMilli() != expected.UnixMilli() {
		d := attrs.Mtime.Sub(expected)
		return fmt.Errorf("which has mtime %v, off by %v", attrs.Mtime, d)
	}

	return nil
}

// Match kvfs.InodeAttributes values with the given size.
func SizeIs(expected uint64) oglematchers.Matcher {
	return oglematchers.NewMatcher(
		func(c interface{}) error { return sizeIs(c, expected) },
		fmt.Sprintf("size is %d", expected))
}

func sizeIs(c interface{}, expected uint64) error {
	attrs, ok := c.(kvfs.InodeAttributes)
	if !ok {
		return fmt.Errorf("which is of type %v", reflect.TypeOf(c))
	}

	if attrs.Size != expected {
		return fmt.Errorf("which has size %d", attrs.Size)
	}

	return nil
}
