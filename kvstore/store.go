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

// Package kvstore defines the contract between the file system and any
// backing key-value store: a flat namespace of opaque byte blobs indexed
// by string keys, mutated through transactions.
//
// Two flavors exist. A Store completes every operation before returning.
// An AsyncStore (see async.go) exposes the identical surface through
// context-taking methods that may block on I/O.
package kvstore

// A Store is a named collection of blobs that can hand out transactions.
//
// Stores need not provide serializable isolation between concurrent
// transactions; the file system holds at most one transaction in flight
// per operation, and within a transaction it never re-reads a key it
// has already written, so it does not rely on read-your-writes either.
type Store interface {
	// Return a human-readable name for the store, for use in diagnostics.
	Name() string

	// Remove all keys from the store.
	Clear() error

	// Begin a read-only transaction. The caller must eventually release it
	// with Abort, on every path.
	BeginRO() (ROTransaction, error)

	// Begin a read-write transaction. The caller must bring it to a
	// terminal state with Commit or Abort, on every path.
	BeginRW() (RWTransaction, error)
}

// A read-only view on a store.
type ROTransaction interface {
	// Look up the blob stored under the given key. An absent key is
	// reported via found, and is distinct from an empty blob.
	Get(key string) (val []byte, found bool, err error)

	// Release the transaction, discarding any buffered state. For a
	// transaction that has already been committed this is a no-op, so it
	// is safe to defer an Abort at acquisition time.
	Abort() error
}

// A read-write view on a store. A successful Commit is the point past
// which changes must survive; before that, Abort must leave the store
// observably unchanged relative to the start of the transaction.
type RWTransaction interface {
	ROTransaction

	// Store val under the given key. If the key already exists and
	// overwrite is false, the write is not performed and committed is
	// false; no error is returned.
	Put(key string, val []byte, overwrite bool) (committed bool, err error)

	// Remove the given key, if present.
	Del(key string) error

	// Apply all writes performed under the transaction.
	Commit() error
}

// A SimpleStore is an unbuffered store with no transactional semantics
// of its own. Wrap one with WrapSimple to obtain a Store whose
// read-write transactions support rollback.
//
// Writes issued through a wrapped SimpleStore land immediately, so they
// are visible to other readers of the same store before the enclosing
// transaction commits. The file system tolerates this because it never
// runs concurrent transactions.
type SimpleStore interface {
	// Return a human-readable name for the store, for use in diagnostics.
	Name() string

	// Remove all keys from the store.
	Clear() error

	// Look up the blob stored under the given key. An absent key is
	// reported via found, and is distinct from an empty blob.
	Get(key string) (val []byte, found bool, err error)

	// Store val under the given key, overwriting any previous value.
	Put(key string, val []byte) error

	// Remove the given key, if present.
	Del(key string) error
}
