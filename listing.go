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
	"encoding/json"
)

// A dirListing maps child names to child node ids. It is serialized as
// the payload of a directory inode. The empty listing serializes to a
// non-empty blob, so an empty directory is distinguishable from a
// missing payload key.
type dirListing map[string]string

func (l dirListing) serialize() ([]byte, error) {
	return json.Marshal(l)
}

func deserializeListing(buf []byte) (dirListing, error) {
	l := make(dirListing)
	if err := json.Unmarshal(buf, &l); err != nil {
		return nil, err
	}

	return l, nil
}
