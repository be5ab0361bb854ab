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

package kvstore

// WrapSimple presents a SimpleStore as a Store. Read-write transactions
// write through to the underlying store immediately, recording the
// original value of each touched key so that Abort can roll the store
// back to its state at the start of the transaction.
//
// The wrapper assumes single-threaded use per transaction and no
// concurrent transactions against overlapping keys.
func WrapSimple(s SimpleStore) Store {
	return &simpleStore{wrapped: s}
}

type simpleStore struct {
	wrapped SimpleStore
}

func (s *simpleStore) Name() string {
	return s.wrapped.Name()
}

func (s *simpleStore) Clear() error {
	return s.wrapped.Clear()
}

func (s *simpleStore) BeginRO() (ROTransaction, error) {
	return &simpleROTransaction{store: s.wrapped}, nil
}

func (s *simpleStore) BeginRW() (RWTransaction, error) {
	return &simpleRWTransaction{
		store:     s.wrapped,
		originals: make(map[string]originalValue),
	}, nil
}

////////////////////////////////////////////////////////////////////////
// Read-only transactions
////////////////////////////////////////////////////////////////////////

// Reads pass straight through; there is nothing to buffer or release.
type simpleROTransaction struct {
	store SimpleStore
}

func (t *simpleROTransaction) Get(key string) ([]byte, bool, error) {
	return t.store.Get(key)
}

func (t *simpleROTransaction) Abort() error {
	return nil
}

////////////////////////////////////////////////////////////////////////
// Read-write transactions
////////////////////////////////////////////////////////////////////////

// The value a key held when the transaction first touched it. present
// is false for keys that did not exist at first touch.
type originalValue struct {
	val     []byte
	present bool
}

type simpleRWTransaction struct {
	store SimpleStore

	// Keys modified under this transaction, in order of first
	// modification.
	//
	// INVARIANT: Contains no duplicates.
	// INVARIANT: Every element is a key of originals.
	modifiedKeys []string

	// The original value of each key the transaction has touched, whether
	// by reading or by writing. Only the value observed at first touch is
	// stashed.
	originals map[string]originalValue

	// Set once Commit or Abort has run.
	done bool
}

// Record the value currently held by the given key, if we have not seen
// the key before, and return it.
func (t *simpleRWTransaction) stashOldValue(key string) (val []byte, present bool, err error) {
	if _, ok := t.originals[key]; ok {
		// Already seen; read through so the caller observes its own writes.
		return t.store.Get(key)
	}

	val, present, err = t.store.Get(key)
	if err != nil {
		return
	}

	t.originals[key] = originalValue{val: val, present: present}
	return
}

// Note that the given key is about to be written or deleted, stashing
// its original value first if needed.
func (t *simpleRWTransaction) markModified(key string) (val []byte, present bool, err error) {
	val, present, err = t.stashOldValue(key)
	if err != nil {
		return
	}

	for _, k := range t.modifiedKeys {
		if k == key {
			return
		}
	}

	t.modifiedKeys = append(t.modifiedKeys, key)
	return
}

func (t *simpleRWTransaction) Get(key string) ([]byte, bool, error) {
	return t.stashOldValue(key)
}

func (t *simpleRWTransaction) Put(
	key string,
	val []byte,
	overwrite bool) (committed bool, err error) {
	_, present, err := t.markModified(key)
	if err != nil {
		return
	}

	if present && !overwrite {
		return false, nil
	}

	if err = t.store.Put(key, val); err != nil {
		return
	}

	return true, nil
}

func (t *simpleRWTransaction) Del(key string) error {
	if _, _, err := t.markModified(key); err != nil {
		return err
	}

	return t.store.Del(key)
}

// Writes have already landed in the store, so there is nothing to do.
func (t *simpleRWTransaction) Commit() error {
	t.done = true
	return nil
}

func (t *simpleRWTransaction) Abort() error {
	if t.done {
		return nil
	}
	t.done = true

	// Restore in the reverse of first-modification order. Only the
	// earliest value of each key was stashed, and a single restoration of
	// it suffices.
	for i := len(t.modifiedKeys) - 1; i >= 0; i-- {
		key := t.modifiedKeys[i]
		orig := t.originals[key]

		var err error
		if orig.present {
			err = t.store.Put(key, orig.val)
		} else {
			err = t.store.Del(key)
		}

		if err != nil {
			return err
		}
	}

	return nil
}
