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

// Package boltstore provides a kvstore.Store backed by a bbolt database
// file. Transactions map directly onto bbolt transactions, so commit
// and abort carry bbolt's atomicity and durability rather than the
// write-through rollback of kvstore.WrapSimple.
package boltstore

import (
	"bytes"
	"fmt"

	"github.com/jacobsa/kvfs/kvstore"
	bolt "go.etcd.io/bbolt"
)

var bucketBlobs = []byte("blobs")

// A Store keeps all blobs in a single bucket of a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at the given path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketBlobs); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketBlobs, err)
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Name() string {
	return "bolt"
}

func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketBlobs); err != nil {
			return err
		}

		_, err := tx.CreateBucket(bucketBlobs)
		return err
	})
}

func (s *Store) BeginRO() (kvstore.ROTransaction, error) {
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, err
	}

	return &roTransaction{tx: tx}, nil
}

func (s *Store) BeginRW() (kvstore.RWTransaction, error) {
	tx, err := s.db.Begin(true)
	if err != nil {
		return nil, err
	}

	return &rwTransaction{tx: tx}, nil
}

// Look up key in the blobs bucket of tx, distinguishing an absent key
// from an empty value via the cursor.
func get(tx *bolt.Tx, key string) (val []byte, found bool, err error) {
	c := tx.Bucket(bucketBlobs).Cursor()

	k, v := c.Seek([]byte(key))
	if k == nil || !bytes.Equal(k, []byte(key)) {
		return
	}

	found = true
	val = append([]byte{}, v...)
	return
}

////////////////////////////////////////////////////////////////////////
// Read-only transactions
////////////////////////////////////////////////////////////////////////

type roTransaction struct {
	tx   *bolt.Tx
	done bool
}

func (t *roTransaction) Get(key string) ([]byte, bool, error) {
	return get(t.tx, key)
}

func (t *roTransaction) Abort() error {
	if t.done {
		return nil
	}
	t.done = true

	return t.tx.Rollback()
}

////////////////////////////////////////////////////////////////////////
// Read-write transactions
////////////////////////////////////////////////////////////////////////

type rwTransaction struct {
	tx   *bolt.Tx
	done bool
}

func (t *rwTransaction) Get(key string) ([]byte, bool, error) {
	return get(t.tx, key)
}

func (t *rwTransaction) Put(
	key string,
	val []byte,
	overwrite bool) (committed bool, err error) {
	if !overwrite {
		if _, found, err := get(t.tx, key); err != nil || found {
			return false, err
		}
	}

	if err = t.tx.Bucket(bucketBlobs).Put([]byte(key), val); err != nil {
		return
	}

	return true, nil
}

func (t *rwTransaction) Del(key string) error {
	return t.tx.Bucket(bucketBlobs).Delete([]byte(key))
}

func (t *rwTransaction) Commit() error {
	t.done = true
	return t.tx.Commit()
}

func (t *rwTransaction) Abort() error {
	if t.done {
		return nil
	}
	t.done = true

	return t.tx.Rollback()
}
