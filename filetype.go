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

// A FileType distinguishes the kinds of object a file system can hold.
// It is OR-ed into the high bits of an inode's mode, above the nine
// permission bits.
type FileType uint32

const (
	// Values chosen to match the POSIX S_IFREG and S_IFDIR bits.
	TypeFile      FileType = 0x8000
	TypeDirectory FileType = 0x4000
)

// The portion of a mode holding permission bits.
const permMask = 0x1FF

func (t FileType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	}

	return "unknown"
}

// typeOf extracts the FileType from a mode.
func typeOf(mode uint32) FileType {
	return FileType(mode &^ permMask)
}
