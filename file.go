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
	"fmt"
	"io"

	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
)

// The buffered state shared by File and AsyncFile: a complete in-memory
// copy of one file's contents, plus its attributes, accumulated until a
// flush pushes both through the owning file system.
type preload struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	clock timeutil.Clock

	/////////////////////////
	// Constant data
	/////////////////////////

	path string
	flag int

	/////////////////////////
	// Mutable state
	/////////////////////////

	mu syncutil.InvariantMutex

	// The current attributes of the file.
	//
	// INVARIANT: attrs.Size == uint64(len(contents))
	attrs InodeAttributes // GUARDED_BY(mu)

	// The current contents of the file.
	contents []byte // GUARDED_BY(mu)

	// Whether contents or attrs have diverged from what the store holds.
	//
	// INVARIANT: If closed, !dirty
	dirty bool // GUARDED_BY(mu)

	closed bool // GUARDED_BY(mu)
}

func (f *preload) init(
	clock timeutil.Clock,
	p string,
	flag int,
	attrs InodeAttributes,
	contents []byte) {
	f.clock = clock
	f.path = p
	f.flag = flag
	f.attrs = attrs
	f.contents = contents

	f.attrs.Size = uint64(len(contents))
	f.mu = syncutil.NewInvariantMutex(f.checkInvariants)
}

func (f *preload) checkInvariants() {
	// INVARIANT: attrs.Size == uint64(len(contents))
	if f.attrs.Size != uint64(len(f.contents)) {
		panic(fmt.Sprintf(
			"Size mismatch: %d vs. %d",
			f.attrs.Size,
			len(f.contents)))
	}

	// INVARIANT: If closed, !dirty
	if f.closed && f.dirty {
		panic("A closed file must not be dirty.")
	}
}

// Path returns the path with which the file was opened.
func (f *preload) Path() string {
	return f.path
}

// Stats returns the file's current attributes, including any not yet
// flushed to the store.
func (f *preload) Stats() InodeAttributes {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.attrs
}

// Dirty reports whether the buffer has unflushed changes.
func (f *preload) Dirty() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.dirty
}

// Size returns the current length of the buffer.
func (f *preload) Size() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.attrs.Size
}

// ReadAt reads from the buffered contents. See io.ReaderAt.
func (f *preload) ReadAt(p []byte, off int64) (n int, err error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if off > int64(len(f.contents)) {
		err = io.EOF
		return
	}

	n = copy(p, f.contents[off:])
	if n < len(p) {
		err = io.EOF
	}

	return
}

// WriteAt writes to the buffered contents, zero-padding any gap between
// the current end of file and off. See io.WriterAt.
func (f *preload) WriteAt(p []byte, off int64) (n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attrs.Mtime = f.clock.Now()
	f.dirty = true

	newLen := int(off) + len(p)
	if len(f.contents) < newLen {
		padding := make([]byte, newLen-len(f.contents))
		f.contents = append(f.contents, padding...)
		f.attrs.Size = uint64(newLen)
	}

	n = copy(f.contents[off:], p)

	// Sanity check.
	if n != len(p) {
		panic(fmt.Sprintf("Unexpected short copy: %v", n))
	}

	return
}

// Truncate changes the buffer to the given size, zero-filling when
// growing.
func (f *preload) Truncate(size uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attrs.Mtime = f.clock.Now()
	f.dirty = true

	intSize := int(size)
	if intSize <= len(f.contents) {
		f.contents = f.contents[:intSize]
	} else {
		padding := make([]byte, intSize-len(f.contents))
		f.contents = append(f.contents, padding...)
	}

	f.attrs.Size = size
}

// Snapshot the state a flush needs, under the lock.
func (f *preload) flushState() (contents []byte, attrs InodeAttributes, dirty bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.contents, f.attrs, f.dirty
}

func (f *preload) resetDirty() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dirty = false
}

func (f *preload) markClosed() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
}

////////////////////////////////////////////////////////////////////////
// File
////////////////////////////////////////////////////////////////////////

// A File is a buffered handle to a regular file in a FileSystem. Reads
// and writes operate on an in-memory copy of the contents; Sync and
// Close push the buffer and attributes back through the file system.
type File struct {
	preload

	fs *FileSystem
}

func newFile(
	fs *FileSystem,
	p string,
	flag int,
	attrs InodeAttributes,
	contents []byte) *File {
	f := &File{fs: fs}
	f.init(fs.clock, p, flag, attrs, contents)
	return f
}

// Sync flushes the buffer and attributes to the store if the handle is
// dirty.
func (f *File) Sync() error {
	contents, attrs, dirty := f.flushState()
	if !dirty {
		return nil
	}

	if err := f.fs.SyncFile(f.path, contents, attrs); err != nil {
		return err
	}

	f.resetDirty()
	return nil
}

// Close flushes the buffer and marks the handle closed.
func (f *File) Close() error {
	if err := f.Sync(); err != nil {
		return err
	}

	f.markClosed()
	return nil
}
