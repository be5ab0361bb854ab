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

import (
	"sync"

	"golang.org/x/net/context"
)

// An AsyncStore is a Store whose operations may block on I/O. The
// surface is identical to Store with a context threaded through each
// call.
//
// Unlike their synchronous counterparts, async transactions must be
// safe for concurrent access from multiple goroutines: the file system
// fetches independent records concurrently within a single transaction.
type AsyncStore interface {
	// Return a human-readable name for the store, for use in diagnostics.
	Name() string

	// Remove all keys from the store.
	Clear(ctx context.Context) error

	// Begin a read-only transaction. The caller must eventually release it
	// with Abort, on every path.
	BeginRO(ctx context.Context) (AsyncROTransaction, error)

	// Begin a read-write transaction. The caller must bring it to a
	// terminal state with Commit or Abort, on every path.
	BeginRW(ctx context.Context) (AsyncRWTransaction, error)
}

// A read-only view on an async store.
type AsyncROTransaction interface {
	// Look up the blob stored under the given key. An absent key is
	// reported via found, and is distinct from an empty blob.
	Get(ctx context.Context, key string) (val []byte, found bool, err error)

	// Release the transaction. A no-op after a successful Commit.
	//
	// Abort ignores context cancellation: a transaction that has already
	// issued writes must be able to roll them back.
	Abort(ctx context.Context) error
}

// A read-write view on an async store.
type AsyncRWTransaction interface {
	AsyncROTransaction

	// Store val under the given key. If the key already exists and
	// overwrite is false, the write is not performed and committed is
	// false; no error is returned.
	Put(ctx context.Context, key string, val []byte, overwrite bool) (committed bool, err error)

	// Remove the given key, if present.
	Del(ctx context.Context, key string) error

	// Apply all writes performed under the transaction.
	Commit(ctx context.Context) error
}

////////////////////////////////////////////////////////////////////////
// Adapter
////////////////////////////////////////////////////////////////////////

// NewAsyncAdapter presents a synchronous Store through the asynchronous
// contract. Each operation other than Abort checks for context
// cancellation before touching the wrapped store, and a mutex
// serializes each transaction's operations so that
// the file system's concurrent fetches are safe against wrapped stores
// that are not.
func NewAsyncAdapter(s Store) AsyncStore {
	return &asyncAdapter{wrapped: s}
}

type asyncAdapter struct {
	wrapped Store
}

func (a *asyncAdapter) Name() string {
	return a.wrapped.Name()
}

func (a *asyncAdapter) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return a.wrapped.Clear()
}

func (a *asyncAdapter) BeginRO(ctx context.Context) (AsyncROTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := a.wrapped.BeginRO()
	if err != nil {
		return nil, err
	}

	return &asyncROTransaction{tx: tx}, nil
}

func (a *asyncAdapter) BeginRW(ctx context.Context) (AsyncRWTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := a.wrapped.BeginRW()
	if err != nil {
		return nil, err
	}

	return &asyncRWTransaction{tx: tx}, nil
}

type asyncROTransaction struct {
	mu sync.Mutex
	tx ROTransaction // GUARDED_BY(mu)
}

func (t *asyncROTransaction) Get(
	ctx context.Context,
	key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.tx.Get(key)
}

func (t *asyncROTransaction) Abort(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.tx.Abort()
}

type asyncRWTransaction struct {
	mu sync.Mutex
	tx RWTransaction // GUARDED_BY(mu)
}

func (t *asyncRWTransaction) Get(
	ctx context.Context,
	key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.tx.Get(key)
}

func (t *asyncRWTransaction) Put(
	ctx context.Context,
	key string,
	val []byte,
	overwrite bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.tx.Put(key, val, overwrite)
}

func (t *asyncRWTransaction) Del(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.tx.Del(key)
}

func (t *asyncRWTransaction) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.tx.Commit()
}

// Note: no cancellation check. Abort must run even when the context has
// expired, since rollback is what keeps the store consistent.
func (t *asyncRWTransaction) Abort(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.tx.Abort()
}
