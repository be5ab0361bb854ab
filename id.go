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
	"github.com/google/uuid"
	"github.com/jacobsa/kvfs/kvstore"
)

// How many fresh ids to try when allocating a key before concluding the
// random source is broken. With 122 bits of entropy per id this bound
// is never reached in practice; it exists to prevent an infinite loop.
const maxIDAttempts = 5

// randomID returns a fresh 36-character hyphenated v4 identifier.
func randomID() string {
	return uuid.New().String()
}

// putNew stores val under a fresh random key with overwrite disabled,
// retrying on collision. op and p are used for error reporting only.
func putNew(
	tx kvstore.RWTransaction,
	op string,
	p string,
	val []byte) (id string, err error) {
	for i := 0; i < maxIDAttempts; i++ {
		id = randomID()

		var committed bool
		committed, err = tx.Put(id, val, false)
		if err != nil {
			return "", err
		}

		if committed {
			return
		}
	}

	return "", &Error{Op: op, Path: p, Errno: EIO}
}
