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

// Package kvfs implements a POSIX-flavored hierarchical file system
// whose entire persistent state lives as opaque byte blobs under string
// keys in a pluggable key-value store.
//
// The primary elements of interest are:
//
//  *  The FileSystem type, which translates path operations into ordered
//     sequences of transactional store operations against a
//     kvstore.Store.
//
//  *  The AsyncFileSystem type, the same engine expressed against a
//     kvstore.AsyncStore whose operations may block on I/O.
//
//  *  The File and AsyncFile types, buffered handles that accumulate
//     reads and writes in memory and flush through the owning file
//     system on Sync or Close.
//
// Store implementations live under kvstore/: memstore holds blobs in a
// map, boltstore in a bbolt database file. Any store exposing bare
// get/put/del can participate via kvstore.WrapSimple, which layers
// rollback on top.
package kvfs
