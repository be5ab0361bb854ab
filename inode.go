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
	"encoding/binary"
	"fmt"
	"time"
)

// The reserved key under which the root directory's inode record lives.
const RootNodeID = "/"

// The size recorded for the root directory, in the tradition of ext2's
// 4 KiB directory blocks. Directories created by Mkdir instead record
// the length of the serialized empty listing they start with.
const dirSize = 4096

const (
	// Length of a node or data id: a hyphenated v4 identifier.
	idLen = 36

	// Length of a serialized inode record: data id, size, mode, and three
	// millisecond timestamps.
	inodeLen = idLen + 8 + 4 + 3*8
)

// An inode is the fixed-schema metadata record for one file system
// object, stored under the object's node id. The payload it describes
// lives under a separate key, DataID.
type inode struct {
	// The key under which the object's payload blob is stored.
	//
	// INVARIANT: len(DataID) == idLen
	DataID string

	// Size of the object in bytes. For the root directory this is
	// dirSize; for any other new object it is the length of its initial
	// payload.
	Size uint64

	// Permission bits in the low nine bits, with the FileType OR-ed in
	// above them.
	Mode uint32

	// Millisecond timestamps.
	Atime int64
	Mtime int64
	Ctime int64
}

// Create an inode stamped with the given time.
func newInode(
	dataID string,
	size uint64,
	perm uint32,
	t FileType,
	now time.Time) *inode {
	ms := now.UnixMilli()
	return &inode{
		DataID: dataID,
		Size:   size,
		Mode:   (perm & permMask) | uint32(t),
		Atime:  ms,
		Mtime:  ms,
		Ctime:  ms,
	}
}

func (in *inode) isDir() bool {
	return typeOf(in.Mode)&TypeDirectory != 0
}

func (in *inode) isFile() bool {
	return typeOf(in.Mode)&TypeFile != 0
}

// attributes derives the caller-visible view of the inode.
func (in *inode) attributes() InodeAttributes {
	return InodeAttributes{
		Size:  in.Size,
		Mode:  in.Mode,
		Atime: time.UnixMilli(in.Atime),
		Mtime: time.UnixMilli(in.Mtime),
		Ctime: time.UnixMilli(in.Ctime),
	}
}

// update merges the supplied attributes into the inode, returning
// whether any field actually changed.
func (in *inode) update(attrs InodeAttributes) (changed bool) {
	if in.Size != attrs.Size {
		in.Size = attrs.Size
		changed = true
	}

	if in.Mode != attrs.Mode {
		in.Mode = attrs.Mode
		changed = true
	}

	if ms := attrs.Atime.UnixMilli(); in.Atime != ms {
		in.Atime = ms
		changed = true
	}

	if ms := attrs.Mtime.UnixMilli(); in.Mtime != ms {
		in.Mtime = ms
		changed = true
	}

	if ms := attrs.Ctime.UnixMilli(); in.Ctime != ms {
		in.Ctime = ms
		changed = true
	}

	return
}

// serialize encodes the inode as a fixed-length big-endian record.
func (in *inode) serialize() []byte {
	buf := make([]byte, inodeLen)

	copy(buf[0:idLen], in.DataID)
	binary.BigEndian.PutUint64(buf[idLen:], in.Size)
	binary.BigEndian.PutUint32(buf[idLen+8:], in.Mode)
	binary.BigEndian.PutUint64(buf[idLen+12:], uint64(in.Atime))
	binary.BigEndian.PutUint64(buf[idLen+20:], uint64(in.Mtime))
	binary.BigEndian.PutUint64(buf[idLen+28:], uint64(in.Ctime))

	return buf
}

// deserializeInode decodes a record produced by serialize.
func deserializeInode(buf []byte) (*inode, error) {
	if len(buf) != inodeLen {
		return nil, fmt.Errorf(
			"malformed inode record: %d bytes, want %d", len(buf), inodeLen)
	}

	return &inode{
		DataID: string(buf[0:idLen]),
		Size:   binary.BigEndian.Uint64(buf[idLen:]),
		Mode:   binary.BigEndian.Uint32(buf[idLen+8:]),
		Atime:  int64(binary.BigEndian.Uint64(buf[idLen+12:])),
		Mtime:  int64(binary.BigEndian.Uint64(buf[idLen+20:])),
		Ctime:  int64(binary.BigEndian.Uint64(buf[idLen+28:])),
	}, nil
}

// InodeAttributes holds the stat-visible attributes of one file system
// object.
type InodeAttributes struct {
	Size uint64

	// Permission bits with the FileType OR-ed in.
	Mode uint32

	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// FileType extracts the type tag from the mode.
func (a InodeAttributes) FileType() FileType {
	return typeOf(a.Mode)
}

// IsDir reports whether the attributes describe a directory.
func (a InodeAttributes) IsDir() bool {
	return a.FileType()&TypeDirectory != 0
}

// Perm returns the nine permission bits of the mode.
func (a InodeAttributes) Perm() uint32 {
	return a.Mode & permMask
}
