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

// Package kvfstesting provides support code for tests against kvfs file
// systems and kvstore stores.
package kvfstesting

import (
	"github.com/jacobsa/kvfs/kvstore"
)

// A FlakyStore wraps a SimpleStore, injecting a failure into exactly
// one upcoming operation. It is used to verify that transactions roll
// back cleanly no matter which store operation fails.
//
// Not safe for concurrent access.
type FlakyStore struct {
	wrapped kvstore.SimpleStore

	// When armed, the number of operations remaining up to and including
	// the one that fails.
	armed     bool
	countdown int
	err       error
}

// NewFlakyStore wraps the supplied store. Until FailNth is called, all
// operations pass through.
func NewFlakyStore(wrapped kvstore.SimpleStore) *FlakyStore {
	return &FlakyStore{wrapped: wrapped}
}

// FailNth arranges for the nth upcoming Get, Put, or Del (1-based) to
// fail with the supplied error. Operations after the failing one pass
// through again, so that transaction rollback can proceed.
func (s *FlakyStore) FailNth(n int, err error) {
	s.armed = true
	s.countdown = n
	s.err = err
}

// Disarm cancels any pending injection.
func (s *FlakyStore) Disarm() {
	s.armed = false
}

// tick consumes one operation, returning the injected error if this is
// the chosen one.
func (s *FlakyStore) tick() error {
	if !s.armed {
		return nil
	}

	s.countdown--
	if s.countdown == 0 {
		s.armed = false
		return s.err
	}

	return nil
}

func (s *FlakyStore) Name() string {
	return s.wrapped.Name()
}

func (s *FlakyStore) Clear() error {
	return s.wrapped.Clear()
}

func (s *FlakyStore) Get(key string) ([]byte, bool, error) {
	if err := s.tick(); err != nil {
		return nil, false, err
	}

	return s.wrapped.Get(key)
}

func (s *FlakyStore) Put(key string, val []byte) error {
	if err := s.tick(); err != nil {
		return err
	}

	return s.wrapped.Put(key, val)
}

func (s *FlakyStore) Del(key string) error {
	if err := s.tick(); err != nil {
		return err
	}

	return s.wrapped.Del(key)
}
