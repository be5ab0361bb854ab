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

// Package memstore provides an in-memory kvstore.SimpleStore, holding
// all blobs in a map. It is the canonical store used by tests: wrap it
// with kvstore.WrapSimple to obtain transactional semantics.
package memstore

import (
	"fmt"

	"github.com/jacobsa/syncutil"
)

// A Store holds blobs in memory. Safe for concurrent access.
type Store struct {
	/////////////////////////
	// Mutable state
	/////////////////////////

	mu syncutil.InvariantMutex

	// INVARIANT: No value is nil.
	data map[string][]byte // GUARDED_BY(mu)
}

// New creates an empty in-memory store.
func New() *Store {
	s := &Store{
		data: make(map[string][]byte),
	}

	s.mu = syncutil.NewInvariantMutex(s.checkInvariants)
	return s
}

func (s *Store) checkInvariants() {
	// INVARIANT: No value is nil.
	for k, v := range s.data {
		if v == nil {
			panic(fmt.Sprintf("Nil value for key: %q", k))
		}
	}
}

func (s *Store) Name() string {
	return "memory"
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string][]byte)
	return nil
}

func (s *Store) Get(key string) (val []byte, found bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, found := s.data[key]
	if !found {
		return
	}

	// Hand out a copy so the caller cannot mutate stored state.
	val = append([]byte(nil), stored...)
	if val == nil {
		val = []byte{}
	}

	return
}

func (s *Store) Put(key string, val []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := append([]byte(nil), val...)
	if stored == nil {
		stored = []byte{}
	}

	s.data[key] = stored
	return nil
}

func (s *Store) Del(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Len returns the number of keys currently stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}

// Snapshot returns a deep copy of the store's contents, for use in
// tests that compare store states.
func (s *Store) Snapshot() map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		snapshot[k] = append([]byte{}, v...)
	}

	return snapshot
}
